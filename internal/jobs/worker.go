// Package jobs runs the extraction job loop: poll for the oldest queued job, claim it
// with a conditional update, extract memory units and finalize the job.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/KhushM7/UncTube/internal/logging"
	"github.com/KhushM7/UncTube/internal/memory"
	"github.com/KhushM7/UncTube/internal/observability"
)

const DefaultPollInterval = 3 * time.Second

// InterruptedDetail is recorded on a job that was still running when Shutdown gave up
// waiting for it.
const InterruptedDetail = "Interrupted by shutdown"

const interruptTimeout = 5 * time.Second

type Config struct {
	PollInterval time.Duration
}

// Status is the worker's operational snapshot.
type Status struct {
	Running   bool       `json:"running"`
	LastError string     `json:"last_error,omitempty"`
	LastTick  *time.Time `json:"last_tick,omitempty"`
	Processed int        `json:"processed"`
	Failed    int        `json:"failed"`
}

// Worker processes one job per loop iteration. Several workers, in one process or
// many, may share a store; ClaimJob decides which of them owns a job.
type Worker struct {
	store        memory.Store
	extractor    *Extractor
	metrics      *observability.Metrics
	pollInterval time.Duration
	now          func() time.Time

	mu        sync.Mutex
	running   bool
	stop      chan struct{}
	done      chan struct{}
	restart   context.Context
	current   int64
	claimedAt time.Time
	lastError string
	lastTick  time.Time
	processed int
	failed    int
}

func NewWorker(cfg Config, store memory.Store, extractor *Extractor, metrics *observability.Metrics) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Worker{
		store:        store,
		extractor:    extractor,
		metrics:      metrics,
		pollInterval: cfg.PollInterval,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Start launches the loop. It reports false when the worker is already running.
// The loop exits when Stop is called or ctx is done. Starting while a timed-out Stop
// is still waiting on an in-flight job relaunches the loop once that job finishes.
func (w *Worker) Start(ctx context.Context) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		if !isClosed(w.stop) || w.restart != nil {
			return false
		}
		w.restart = ctx
		logging.FromCtx(ctx).Info().Int64("job_id", w.current).Msg("extraction worker restart scheduled")
		return true
	}
	w.launch(ctx)
	return true
}

// launch must be called with w.mu held.
func (w *Worker) launch(ctx context.Context) {
	w.running = true
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	w.metrics.SetWorkerRunning(true)
	go w.loop(ctx, w.stop, w.done)
	logging.FromCtx(ctx).Info().Dur("poll_interval", w.pollInterval).Msg("extraction worker started")
}

// Stop signals the loop and waits for the current iteration to finish, or for ctx.
// Stopping a stopped worker is a no-op. Stop also cancels a restart scheduled by Start.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.restart = nil
	stop, done := w.stop, w.done
	if !isClosed(stop) {
		close(stop)
	}
	w.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for worker to stop: %w", ctx.Err())
	}
}

// Shutdown stops the worker for good. If ctx expires while a job is in flight, that
// job is marked failed so it is not left running once the store goes away; the
// extraction itself keeps going in the background and its result is discarded.
func (w *Worker) Shutdown(ctx context.Context) error {
	err := w.Stop(ctx)
	if err == nil {
		return nil
	}

	w.mu.Lock()
	id, claimedAt := w.current, w.claimedAt
	w.mu.Unlock()
	if id == 0 {
		return err
	}

	finCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), interruptTimeout)
	defer cancel()
	finished := w.now()
	ferr := w.store.FinishJob(finCtx, id, memory.JobStatusFailed, InterruptedDetail, finished)
	switch {
	case errors.Is(ferr, memory.ErrJobNotRunning):
		return err
	case ferr != nil:
		return errors.Join(err, fmt.Errorf("interrupt job %d: %w", id, ferr))
	}
	w.mu.Lock()
	w.failed++
	w.lastError = InterruptedDetail
	w.mu.Unlock()
	w.metrics.ObserveJobFinished(string(memory.JobStatusFailed), finished.Sub(claimedAt))
	logging.FromCtx(ctx).Warn().Int64("job_id", id).Msg("in-flight job marked failed on shutdown")
	return err
}

func (w *Worker) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	st := Status{
		Running:   w.running,
		LastError: w.lastError,
		Processed: w.processed,
		Failed:    w.failed,
	}
	if !w.lastTick.IsZero() {
		t := w.lastTick
		st.LastTick = &t
	}
	return st
}

func (w *Worker) loop(ctx context.Context, stop, done chan struct{}) {
	defer func() {
		w.mu.Lock()
		restart := w.restart
		w.restart = nil
		if restart != nil {
			w.launch(restart)
		} else {
			w.running = false
		}
		w.mu.Unlock()
		if restart == nil {
			w.metrics.SetWorkerRunning(false)
			logging.FromCtx(ctx).Info().Msg("extraction worker stopped")
		}
		close(done)
	}()

	// In-flight jobs are not interrupted by Stop or by ctx cancellation.
	jobCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		worked, err := w.safeRunOnce(jobCtx)
		if err != nil {
			w.setLastError(err.Error())
			logging.FromCtx(ctx).Error().Err(err).Msg("unexpected error in extraction worker")
		}
		if worked && err == nil {
			continue
		}

		timer := time.NewTimer(w.pollInterval)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (w *Worker) safeRunOnce(ctx context.Context) (worked bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			worked, err = false, fmt.Errorf("worker panic: %v", r)
		}
	}()
	return w.RunOnce(ctx)
}

// RunOnce polls, claims and executes at most one job. It reports whether a job was
// claimed. A lost claim is not an error.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	now := w.now()
	w.mu.Lock()
	w.lastTick = now
	w.mu.Unlock()
	w.metrics.MarkWorkerTick(now)

	job, err := w.store.NextQueuedJob(ctx, memory.JobTypeExtract)
	if errors.Is(err, memory.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("poll queued job: %w", err)
	}

	claimed, err := w.store.ClaimJob(ctx, job.ID, now)
	if err != nil {
		return false, err
	}
	w.metrics.ObserveClaim(claimed)
	if !claimed {
		logging.FromCtx(ctx).Debug().Int64("job_id", job.ID).Msg("job claimed by another worker")
		return false, nil
	}

	logger := logging.FromCtx(ctx).With().
		Int64("job_id", job.ID).
		Str("media_asset_id", job.MediaAssetID).
		Int("attempt", job.Attempt+1).
		Logger()
	logger.Info().Msg("job claimed")

	w.setCurrent(job.ID, now)
	defer w.setCurrent(0, time.Time{})

	res, runErr := w.execute(logger.WithContext(ctx), job)
	finished := w.now()
	if runErr == nil {
		if err := w.store.FinishJob(ctx, job.ID, memory.JobStatusDone, "", finished); err != nil {
			return true, finalizeErr(logger, job.ID, err)
		}
		w.mu.Lock()
		w.processed++
		w.mu.Unlock()
		w.metrics.ObserveJobFinished(string(memory.JobStatusDone), finished.Sub(now))
		logger.Info().Int("inserted", res.Inserted).Int("existing", res.Existing).Msg("job done")
		return true, nil
	}

	detail := failureDetail(runErr)
	if err := w.store.FinishJob(ctx, job.ID, memory.JobStatusFailed, detail, finished); err != nil {
		return true, finalizeErr(logger, job.ID, err)
	}
	w.mu.Lock()
	w.failed++
	w.lastError = detail
	w.mu.Unlock()
	w.metrics.ObserveJobFinished(string(memory.JobStatusFailed), finished.Sub(now))
	logger.Warn().Err(runErr).Str("detail", detail).Msg("job failed")
	return true, nil
}

// execute runs the extractor, turning a panic into a job failure.
func (w *Worker) execute(ctx context.Context, job memory.Job) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during extraction: %v", r)
		}
	}()
	return w.extractor.Run(ctx, job)
}

// finalizeErr treats a job that is no longer running as already settled, which is
// what Shutdown leaves behind.
func finalizeErr(logger zerolog.Logger, id int64, err error) error {
	if errors.Is(err, memory.ErrJobNotRunning) {
		logger.Warn().Msg("job was finalized before extraction finished; result discarded")
		return nil
	}
	return fmt.Errorf("finalize job %d: %w", id, err)
}

func (w *Worker) setCurrent(id int64, claimedAt time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.current = id
	w.claimedAt = claimedAt
}

func isClosed(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func (w *Worker) setLastError(msg string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastError = msg
}
