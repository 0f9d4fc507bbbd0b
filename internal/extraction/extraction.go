// Package extraction is the client side of the language-model collaborator that turns
// media into memory units, writes transcripts, matches keywords and answers questions.
package extraction

import (
	"context"
	"errors"

	"github.com/KhushM7/UncTube/internal/media"
)

var (
	ErrEmptyResponse = errors.New("collaborator returned empty response")
	ErrMissingJSON   = errors.New("collaborator response missing JSON payload")
	ErrMissingUnits  = errors.New("collaborator response missing memory_units")
)

// Fact is one candidate memory unit as returned by the collaborator, before normalization.
type Fact struct {
	Title       string   `json:"title"`
	Summary     string   `json:"summary"`
	Description *string  `json:"description"`
	EventType   string   `json:"event_type"`
	Places      []string `json:"places"`
	Dates       []string `json:"dates"`
	Keywords    []string `json:"keywords"`
}

// ContextMemory is the only view of a memory unit the answering side may see.
type ContextMemory struct {
	MemoryUnitID  string   `json:"memory_unit_id"`
	Title         string   `json:"title"`
	Summary       string   `json:"summary"`
	Description   *string  `json:"description"`
	EventType     string   `json:"event_type"`
	Places        []string `json:"places"`
	Dates         []string `json:"dates"`
	Keywords      []string `json:"keywords"`
	AssetKey      string   `json:"asset_key"`
	AssetMIMEType string   `json:"asset_mime_type"`
}

type ContextPack struct {
	Question string          `json:"question"`
	Memories []ContextMemory `json:"memories"`
}

// Answer is a grounded reply. UsedIDs lists memory_unit_id values the reply relied on.
type Answer struct {
	Text    string
	UsedIDs []string
}

type Match struct {
	Keyword         string  `json:"keyword"`
	Score           float64 `json:"score"`
	QuestionKeyword string  `json:"question_keyword"`
}

// KeywordMatch scores inventory keywords against a question.
type KeywordMatch struct {
	Matches  []Match
	Keywords []string
}

// Collaborator is the extraction and answering engine.
type Collaborator interface {
	ExtractFromFile(ctx context.Context, path, mimeType string, modality media.Modality) ([]Fact, error)
	ExtractFromText(ctx context.Context, text string, modality media.Modality) ([]Fact, error)
	Transcribe(ctx context.Context, path, mimeType string, modality media.Modality) (string, error)
	Answer(ctx context.Context, question string, pack ContextPack) (Answer, error)
	MatchKeywords(ctx context.Context, question string, inventory []string, topN int) (KeywordMatch, error)
}
