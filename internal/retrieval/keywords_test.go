package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/KhushM7/UncTube/internal/extraction"
)

func TestFallbackKeywordsOrdersByFrequencyThenFirstSeen(t *testing.T) {
	got := FallbackKeywords("Why did you move to London? London was big", 8)
	assert.Equal(t, []string{"london", "move", "big"}, got)

	got = FallbackKeywords("Grandma's garden, grandma's roses, the garden gate", 2)
	assert.Equal(t, []string{"grandma's", "garden"}, got)

	assert.Empty(t, FallbackKeywords("what is it?", 8))
}

func TestInferKeywordsUsesInventoryAboveThreshold(t *testing.T) {
	collab := &extraction.MockCollaborator{
		MatchFunc: func(string, []string, int) (extraction.KeywordMatch, error) {
			return extraction.KeywordMatch{
				Matches: []extraction.Match{
					{Keyword: "LONDON", Score: 9, QuestionKeyword: "london"},
					{Keyword: "Emigration", Score: 8},
					{Keyword: "Wedding", Score: 7.9},
					{Keyword: "unknown", Score: 10},
				},
			}, nil
		},
	}
	inf := InferKeywords(context.Background(), collab, "Why did you leave for London?",
		[]string{"London", "Emigration", "Wedding"}, 8)

	assert.True(t, inf.FromInventory)
	assert.Equal(t, []string{"London", "Emigration"}, inf.Keywords)
	assert.Len(t, inf.Matches, 2)
	assert.Equal(t, "London", inf.Matches[0].Keyword)
}

func TestInferKeywordsStrictFilterWithoutScoredMatches(t *testing.T) {
	collab := &extraction.MockCollaborator{
		MatchFunc: func(string, []string, int) (extraction.KeywordMatch, error) {
			return extraction.KeywordMatch{
				Matches:  []extraction.Match{{Keyword: "London", Score: 3}},
				Keywords: []string{"paris trip", "london", "missing"},
			}, nil
		},
	}
	inf := InferKeywords(context.Background(), collab, "Tell me about London",
		[]string{"London", "Paris Trip"}, 8)
	assert.Equal(t, []string{"London"}, inf.Keywords)

	// No keyword shares a term with the question, so every resolved keyword is kept.
	inf = InferKeywords(context.Background(), collab, "Tell me a story",
		[]string{"London", "Paris Trip"}, 8)
	assert.Equal(t, []string{"Paris Trip", "London"}, inf.Keywords)
}

func TestInferKeywordsFallsBack(t *testing.T) {
	failing := &extraction.MockCollaborator{
		MatchFunc: func(string, []string, int) (extraction.KeywordMatch, error) {
			return extraction.KeywordMatch{}, errors.New("quota exceeded")
		},
	}
	inf := InferKeywords(context.Background(), failing, "Our wedding day", []string{"London"}, 8)
	assert.False(t, inf.FromInventory)
	assert.Equal(t, []string{"wedding", "day"}, inf.Keywords)
	assert.Equal(t, []string{"wedding"}, inf.EventTypes)

	empty := &extraction.MockCollaborator{
		MatchFunc: func(string, []string, int) (extraction.KeywordMatch, error) {
			return extraction.KeywordMatch{}, nil
		},
	}
	inf = InferKeywords(context.Background(), empty, "the trip", []string{"London"}, 8)
	assert.Equal(t, []string{"trip"}, inf.Keywords)

	silent := extraction.NewMockCollaborator()
	inf = InferKeywords(context.Background(), silent, "the trip", nil, 8)
	assert.Equal(t, []string{"trip"}, inf.Keywords)
	assert.Zero(t, silent.CallCount("MatchKeywords"), "no inventory, no collaborator call")
}

func TestEventHints(t *testing.T) {
	assert.Equal(t, []string{"travel", "wedding"}, EventHints([]string{"Wedding", "trip", "vacation", "cake", "marriage"}))
	assert.Equal(t, []string{"holiday"}, EventHints([]string{"christmas", "thanksgiving"}))
	assert.Empty(t, EventHints(nil))
}
