package transcription

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompactorInterimComposition(t *testing.T) {
	var c Compactor

	interim, changed := c.Ingest([]Token{
		{Text: "hello "},
		{Text: "wor"},
	})
	assert.True(t, changed)
	assert.Equal(t, "hello wor", interim)
	assert.Len(t, c.Tail(), 2)

	// Next cycle finalizes "hello " and replaces the tail.
	interim, changed = c.Ingest([]Token{
		{Text: "hello ", IsFinal: true},
		{Text: "world"},
	})
	assert.True(t, changed)
	assert.Equal(t, "hello world", interim)
	assert.Len(t, c.Tail(), 1)
}

func TestCompactorEmitsOnlyOnChange(t *testing.T) {
	var c Compactor

	_, changed := c.Ingest([]Token{{Text: "hi"}})
	require.True(t, changed)

	// Identical tail again: no emission.
	_, changed = c.Ingest([]Token{{Text: "hi"}})
	assert.False(t, changed)

	// Empty batch clears the tail, which changes the text.
	interim, changed := c.Ingest(nil)
	assert.True(t, changed)
	assert.Equal(t, "", interim)
}

func TestFinalEqualsLastInterim(t *testing.T) {
	batches := [][]Token{
		{{Text: "the "}},
		{{Text: "the ", IsFinal: true}, {Text: "quick "}},
		{{Text: "quick ", IsFinal: true}, {Text: "brown "}, {Text: "fox"}},
		{{Text: "brown ", IsFinal: true}, {Text: "fox ", IsFinal: true}, {Text: "jumps"}},
	}

	var c Compactor
	var lastEmitted string
	for _, b := range batches {
		if interim, changed := c.Ingest(b); changed {
			lastEmitted = interim
		}
	}

	final, ok := c.Finalize()
	require.True(t, ok)
	assert.Equal(t, lastEmitted, final)
	assert.Equal(t, "the quick brown fox jumps", final)
}

func TestFinalizeResetsForNextUtterance(t *testing.T) {
	var c Compactor
	c.Ingest([]Token{{Text: "first utterance"}})
	_, ok := c.Finalize()
	require.True(t, ok)

	// New utterance starts clean.
	interim, changed := c.Ingest([]Token{{Text: "second"}})
	assert.True(t, changed)
	assert.Equal(t, "second", interim)

	// Finalize with nothing emitted is not an emission.
	c.Reset()
	_, ok = c.Finalize()
	assert.False(t, ok)
}

func TestTailIsBoundedByCadence(t *testing.T) {
	var c Compactor

	// A very long utterance: each cycle finalizes the previous token and
	// carries exactly one tail token.
	for i := 0; i < 10000; i++ {
		c.Ingest([]Token{
			{Text: "w ", IsFinal: true},
			{Text: "w"},
		})
		require.LessOrEqual(t, len(c.Tail()), 1)
	}
}
