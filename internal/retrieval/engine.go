// Package retrieval turns a question into keywords, selects and ranks a profile's memory
// units, and asks the collaborator for an answer grounded only in the ranked context.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KhushM7/UncTube/internal/extraction"
	"github.com/KhushM7/UncTube/internal/logging"
	"github.com/KhushM7/UncTube/internal/memory"
	"github.com/KhushM7/UncTube/internal/objectstore"
	"github.com/KhushM7/UncTube/internal/observability"
)

// NoContextAnswer is returned verbatim when nothing in the profile matches.
const NoContextAnswer = "I don't know."

const (
	DefaultTopK        = 8
	DefaultKeywordTopN = 8
)

var ErrEmptyQuestion = errors.New("question is required")

type Config struct {
	TopK         int
	KeywordTopN  int
	SourcePolicy SourcePolicy
	URLStyle     URLStyle
	PresignTTL   time.Duration
}

// Result is the response body of an ask.
type Result struct {
	AnswerText string   `json:"answer_text"`
	SourceURLs []string `json:"source_urls"`
	// NoContext is set when nothing matched and the collaborator was not asked.
	NoContext bool `json:"-"`
}

// Retrieval is everything selected for one question before the collaborator answers.
type Retrieval struct {
	Inference  Inference
	Candidates int
	Ranked     []memory.RetrievedMemory
	Pack       extraction.ContextPack
}

type Engine struct {
	store   memory.Store
	objects objectstore.Store
	collab  extraction.Collaborator
	metrics *observability.Metrics
	cfg     Config
}

func NewEngine(cfg Config, store memory.Store, objects objectstore.Store, collab extraction.Collaborator, metrics *observability.Metrics) *Engine {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.KeywordTopN <= 0 {
		cfg.KeywordTopN = DefaultKeywordTopN
	}
	if cfg.SourcePolicy == "" {
		cfg.SourcePolicy = SourcesUsed
	}
	if cfg.URLStyle == "" {
		cfg.URLStyle = URLPublic
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = time.Hour
	}
	return &Engine{store: store, objects: objects, collab: collab, metrics: metrics, cfg: cfg}
}

// Retrieve infers keywords and event hints, selects candidates and builds the context pack.
func (e *Engine) Retrieve(ctx context.Context, profileID, question string) (Retrieval, error) {
	logger := logging.FromCtx(ctx)

	start := time.Now()
	inventory, err := e.store.ProfileKeywords(ctx, profileID)
	if err != nil {
		return Retrieval{}, fmt.Errorf("list profile keywords: %w", err)
	}
	inf := InferKeywords(ctx, e.collab, question, inventory, e.cfg.KeywordTopN)
	e.metrics.ObserveStage("ask_infer_keywords", time.Since(start))
	if inf.FromInventory {
		e.metrics.ObserveIndicator("keywords_from_inventory")
	} else {
		e.metrics.ObserveIndicator("keywords_from_tokens")
	}

	start = time.Now()
	candidates, err := e.store.SearchMemoryUnits(ctx, profileID, memory.SearchQuery{
		Keywords:   inf.Keywords,
		EventTypes: inf.EventTypes,
	})
	if err != nil {
		return Retrieval{}, fmt.Errorf("search memory units: %w", err)
	}
	ranked := Rank(candidates, inf.Keywords, e.cfg.TopK)
	e.metrics.ObserveStage("ask_search", time.Since(start))
	e.metrics.ObserveCandidates(len(candidates))

	logger.Debug().
		Str("profile_id", profileID).
		Strs("keywords", inf.Keywords).
		Strs("event_types", inf.EventTypes).
		Int("candidates", len(candidates)).
		Int("ranked", len(ranked)).
		Msg("retrieval")

	return Retrieval{
		Inference:  inf,
		Candidates: len(candidates),
		Ranked:     ranked,
		Pack:       BuildContextPack(question, ranked),
	}, nil
}

// Ask answers question from the profile's memories. With no candidates it returns
// NoContextAnswer without calling the collaborator.
func (e *Engine) Ask(ctx context.Context, profileID, question string) (Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Result{}, ErrEmptyQuestion
	}
	started := time.Now()

	r, err := e.Retrieve(ctx, profileID, question)
	if err != nil {
		e.metrics.ObserveAsk("error", time.Since(started))
		return Result{}, err
	}
	if len(r.Ranked) == 0 {
		e.metrics.ObserveAsk("no_context", time.Since(started))
		return Result{AnswerText: NoContextAnswer, SourceURLs: []string{}, NoContext: true}, nil
	}

	stageStart := time.Now()
	answer, err := e.collab.Answer(ctx, question, r.Pack)
	e.metrics.ObserveStage("ask_answer", time.Since(stageStart))
	if err != nil {
		e.metrics.ObserveAsk("error", time.Since(started))
		return Result{}, fmt.Errorf("answer question: %w", err)
	}

	urls, err := e.sourceURLs(ctx, r.Ranked, answer.UsedIDs)
	if err != nil {
		e.metrics.ObserveAsk("error", time.Since(started))
		return Result{}, err
	}

	text := strings.TrimSpace(answer.Text)
	if text == "" {
		text = NoContextAnswer
	}
	e.metrics.ObserveAsk("answered", time.Since(started))
	e.metrics.ObserveStage("ask_total", time.Since(started))
	logging.FromCtx(ctx).Info().
		Str("profile_id", profileID).
		Str("question", logging.Preview(question, 120)).
		Int("context", len(r.Ranked)).
		Int("used", len(answer.UsedIDs)).
		Int("sources", len(urls)).
		Msg("question answered")
	return Result{AnswerText: text, SourceURLs: urls}, nil
}

// BuildContextPack exposes only the ranked units' public fields and asset references.
func BuildContextPack(question string, ranked []memory.RetrievedMemory) extraction.ContextPack {
	memories := make([]extraction.ContextMemory, 0, len(ranked))
	for _, rm := range ranked {
		u := rm.Unit
		memories = append(memories, extraction.ContextMemory{
			MemoryUnitID:  u.ID,
			Title:         u.Title,
			Summary:       u.Summary,
			Description:   u.Description,
			EventType:     u.EventType,
			Places:        nonNil(u.Places),
			Dates:         nonNil(u.Dates),
			Keywords:      nonNil(u.Keywords),
			AssetKey:      rm.AssetKey,
			AssetMIMEType: rm.AssetMIMEType,
		})
	}
	return extraction.ContextPack{Question: question, Memories: memories}
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
