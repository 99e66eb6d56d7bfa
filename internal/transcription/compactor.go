package transcription

import "strings"

// Token is one provider speech token. Finalized token objects are discarded
// after their text is absorbed; only tail tokens are retained as objects.
type Token struct {
	Text       string
	IsFinal    bool
	Confidence float64
	StartMs    int64
	EndMs      int64
}

// Compactor bounds the memory of one live utterance. Finalized text folds
// into a flat accumulator; only the not-yet-final tail survives as tokens,
// and the tail is replaced wholesale on every provider cycle, so retention
// is bounded by provider emission cadence, not utterance length.
type Compactor struct {
	finalized   strings.Builder
	tail        []Token
	lastInterim string
}

// Ingest absorbs one provider token batch. It returns the interim text and
// whether it changed since the last emission; callers emit only on change.
func (c *Compactor) Ingest(tokens []Token) (string, bool) {
	newTail := c.tail[:0]
	for _, tok := range tokens {
		if tok.IsFinal {
			c.finalized.WriteString(tok.Text)
		} else {
			newTail = append(newTail, tok)
		}
	}
	c.tail = newTail

	interim := c.interimText()
	if interim == c.lastInterim {
		return interim, false
	}
	c.lastInterim = interim
	return interim, true
}

// Tail returns a copy of the current tail tokens, the only per-token
// metadata ever attached to an interim.
func (c *Compactor) Tail() []Token {
	if len(c.tail) == 0 {
		return nil
	}
	return append([]Token(nil), c.tail...)
}

// Finalize ends the utterance. The returned final text is exactly the last
// emitted interim; ok is false when nothing was ever emitted. State is
// cleared for the next utterance either way.
func (c *Compactor) Finalize() (string, bool) {
	final := c.lastInterim
	c.Reset()
	return final, final != ""
}

// Reset clears all utterance state without emitting.
func (c *Compactor) Reset() {
	c.finalized.Reset()
	c.tail = nil
	c.lastInterim = ""
}

func (c *Compactor) interimText() string {
	if len(c.tail) == 0 {
		return c.finalized.String()
	}
	var b strings.Builder
	b.WriteString(c.finalized.String())
	for _, tok := range c.tail {
		b.WriteString(tok.Text)
	}
	return b.String()
}
