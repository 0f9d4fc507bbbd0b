package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/KhushM7/UncTube/internal/extraction"
	"github.com/KhushM7/UncTube/internal/logging"
	"github.com/KhushM7/UncTube/internal/media"
	"github.com/KhushM7/UncTube/internal/memory"
	"github.com/KhushM7/UncTube/internal/objectstore"
)

// FailureError is a domain failure; Detail is stored on the job as error_detail.
type FailureError struct {
	Detail string
	Err    error
}

func (e *FailureError) Error() string {
	if e.Err != nil {
		return e.Detail + ": " + e.Err.Error()
	}
	return e.Detail
}

func (e *FailureError) Unwrap() error { return e.Err }

func failf(format string, args ...any) error {
	return &FailureError{Detail: fmt.Sprintf(format, args...)}
}

func failWrap(err error, format string, args ...any) error {
	return &FailureError{Detail: fmt.Sprintf(format, args...) + ": " + err.Error(), Err: err}
}

// failureDetail maps a job error onto the text persisted with the failed job.
func failureDetail(err error) string {
	var fe *FailureError
	if errors.As(err, &fe) {
		return fe.Detail
	}
	return "Unexpected error: " + err.Error()
}

// Extractor runs the extraction algorithm for one claimed job.
type Extractor struct {
	store   memory.Store
	objects objectstore.Store
	collab  extraction.Collaborator
	tempDir string
}

func NewExtractor(store memory.Store, objects objectstore.Store, collab extraction.Collaborator, tempDir string) *Extractor {
	return &Extractor{store: store, objects: objects, collab: collab, tempDir: tempDir}
}

// Result summarizes persistence for a successful job.
type Result struct {
	Inserted int
	Existing int
}

func (e *Extractor) Run(ctx context.Context, job memory.Job) (Result, error) {
	asset, err := e.store.GetMediaAsset(ctx, job.MediaAssetID)
	if errors.Is(err, memory.ErrNotFound) {
		return Result{}, failf("Missing media asset")
	}
	if err != nil {
		return Result{}, fmt.Errorf("load media asset: %w", err)
	}
	if asset.ObjectKey == "" {
		return Result{}, failf("Missing object key")
	}
	if !media.IsSupportedMIME(asset.MIMEType) {
		return Result{}, failf("Unsupported mime type: %s", asset.MIMEType)
	}
	if err := e.checkObject(ctx, asset); err != nil {
		return Result{}, err
	}

	facts, err := e.extract(ctx, asset)
	if err != nil {
		return Result{}, err
	}
	facts = extraction.Normalize(facts)
	if media.ModalityForMIME(asset.MIMEType) == media.ModalityImage && len(facts) > 1 {
		facts = facts[:1]
	}
	if len(facts) == 0 {
		return Result{}, failf("No memory units produced")
	}

	res, err := e.persist(ctx, asset, facts)
	if err != nil {
		return Result{}, err
	}
	if res.Inserted == 0 && res.Existing == 0 {
		return Result{}, failf("No memory units written")
	}
	return res, nil
}

// checkObject re-reads the object size; oversized objects are deleted.
func (e *Extractor) checkObject(ctx context.Context, asset memory.MediaAsset) error {
	info, err := e.objects.Head(ctx, asset.ObjectKey)
	if errors.Is(err, objectstore.ErrNotFound) {
		return failf("Object not found in storage: %s", asset.ObjectKey)
	}
	if err != nil {
		return fmt.Errorf("head object: %w", err)
	}
	if media.ValidateUploadSize(info.Size) != nil {
		if err := e.objects.Delete(ctx, asset.ObjectKey); err != nil {
			logging.FromCtx(ctx).Error().Err(err).Str("object_key", asset.ObjectKey).Msg("delete oversized object failed")
		}
		return failf("File exceeds 100 MB limit")
	}
	return nil
}

func (e *Extractor) extract(ctx context.Context, asset memory.MediaAsset) ([]extraction.Fact, error) {
	modality := media.ModalityForMIME(asset.MIMEType)
	switch modality {
	case media.ModalityText:
		data, err := e.objects.Download(ctx, asset.ObjectKey)
		if err != nil {
			return nil, fmt.Errorf("download object: %w", err)
		}
		facts, err := e.collab.ExtractFromText(ctx, string(data), modality)
		if err != nil {
			return nil, failWrap(err, "Extraction failed")
		}
		return facts, nil

	case media.ModalityImage:
		var facts []extraction.Fact
		err := e.withTempFile(ctx, asset, func(path string) error {
			var err error
			facts, err = e.collab.ExtractFromFile(ctx, path, asset.MIMEType, modality)
			if err != nil {
				return failWrap(err, "Extraction failed")
			}
			return nil
		})
		return facts, err

	case media.ModalityAudio, media.ModalityVideo:
		var facts []extraction.Fact
		err := e.withTempFile(ctx, asset, func(path string) error {
			transcript, err := e.collab.Transcribe(ctx, path, asset.MIMEType, modality)
			if err != nil {
				return failWrap(err, "Transcription failed")
			}
			facts, err = e.collab.ExtractFromText(ctx, transcript, modality)
			if err != nil {
				return failWrap(err, "Extraction failed")
			}
			return nil
		})
		return facts, err

	default:
		return nil, failf("Unsupported modality for mime type: %s", asset.MIMEType)
	}
}

// withTempFile downloads the asset into a private per-job directory and always
// removes the directory, including any partial files the download leaves beside
// the target.
func (e *Extractor) withTempFile(ctx context.Context, asset memory.MediaAsset, fn func(path string) error) error {
	dir, err := os.MkdirTemp(e.tempDir, "heirloom-job-*")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			logging.FromCtx(ctx).Warn().Err(err).Str("dir", dir).Msg("temp dir cleanup failed")
		}
	}()

	path := filepath.Join(dir, "asset"+media.ExtensionForMIME(asset.MIMEType))
	if err := e.objects.DownloadToFile(ctx, asset.ObjectKey, path); err != nil {
		return fmt.Errorf("download object: %w", err)
	}
	return fn(path)
}

// persist inserts facts whose derived key is not already stored for the asset.
func (e *Extractor) persist(ctx context.Context, asset memory.MediaAsset, facts []extraction.Fact) (Result, error) {
	existing, err := e.store.ListMemoryUnits(ctx, asset.ID)
	if err != nil {
		return Result{}, fmt.Errorf("list memory units: %w", err)
	}
	seen := make(map[string]struct{}, len(existing)+len(facts))
	for _, u := range existing {
		seen[u.DerivedKey()] = struct{}{}
	}

	pending := make([]memory.MemoryUnit, 0, len(facts))
	for _, f := range facts {
		key := memory.DerivedKey(asset.ID, f.Title)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		pending = append(pending, memory.MemoryUnit{
			ProfileID:    asset.ProfileID,
			MediaAssetID: asset.ID,
			Title:        f.Title,
			Summary:      f.Summary,
			Description:  f.Description,
			EventType:    f.EventType,
			Places:       f.Places,
			Dates:        f.Dates,
			Keywords:     f.Keywords,
		})
	}

	inserted := []memory.MemoryUnit{}
	if len(pending) > 0 {
		inserted, err = e.store.InsertMemoryUnits(ctx, pending)
		if err != nil {
			return Result{}, fmt.Errorf("insert memory units: %w", err)
		}
	}
	return Result{Inserted: len(inserted), Existing: len(existing)}, nil
}
