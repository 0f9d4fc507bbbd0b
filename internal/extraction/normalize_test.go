package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFillsDefaults(t *testing.T) {
	blank := "   "
	got := Normalize([]Fact{{
		Title:       "  ",
		Summary:     " ",
		Description: &blank,
		EventType:   "Wedding",
		Places:      []string{" ", ""},
		Keywords:    []string{"london", " ", "move "},
	}})

	require.Len(t, got, 1)
	f := got[0]
	assert.Equal(t, "Untitled", f.Title)
	assert.Equal(t, "", f.Summary)
	assert.Nil(t, f.Description)
	assert.Equal(t, "Other", f.EventType)
	assert.Equal(t, []string{"unknown"}, f.Places)
	assert.Equal(t, []string{"unspecified"}, f.Dates)
	assert.Equal(t, []string{"london", "move"}, f.Keywords)
}

func TestNormalizeKeepsValidValues(t *testing.T) {
	desc := "We sailed from Southampton."
	got := Normalize([]Fact{{
		Title:       "Moving to London",
		Summary:     "We moved in 1962.",
		Description: &desc,
		EventType:   "MovingMigration",
		Places:      []string{"London"},
		Dates:       []string{"1962"},
	}})

	require.Len(t, got, 1)
	assert.Equal(t, "MovingMigration", got[0].EventType)
	assert.Equal(t, []string{"London"}, got[0].Places)
	require.NotNil(t, got[0].Description)
	assert.Equal(t, desc, *got[0].Description)
	assert.NotNil(t, got[0].Keywords)
}

func TestEventTypesVocabulary(t *testing.T) {
	assert.Len(t, EventTypes, 17)
	assert.True(t, IsEventType("HistoricalWitness"))
	assert.False(t, IsEventType("historicalwitness"))
}
