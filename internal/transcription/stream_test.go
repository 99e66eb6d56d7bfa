package transcription

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"glasses-cloud-be/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProvider exposes the event channel so tests can act as the STT
// vendor.
type scriptedProvider struct {
	events chan<- ProviderEvent
	audio  [][]byte
	mu     sync.Mutex
}

func (p *scriptedProvider) Start(_ context.Context, _ string, events chan<- ProviderEvent) error {
	p.events = events
	return nil
}

func (p *scriptedProvider) SendAudio(chunk []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.audio = append(p.audio, chunk)
	return nil
}

func (p *scriptedProvider) Stop() error { return nil }

type recordingSink struct {
	mu       sync.Mutex
	interims []string
	finals   []string
	errs     []error
	tails    [][]Token
}

func (s *recordingSink) OnInterim(_ string, text string, tail []Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interims = append(s.interims, text)
	s.tails = append(s.tails, tail)
}

func (s *recordingSink) OnFinal(_ string, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finals = append(s.finals, text)
}

func (s *recordingSink) OnError(_ string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

func (s *recordingSink) snapshot() (interims, finals []string, errs []error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.interims...), append([]string(nil), s.finals...), append([]error(nil), s.errs...)
}

func startStream(t *testing.T) (*Stream, *scriptedProvider, *recordingSink) {
	t.Helper()
	provider := &scriptedProvider{}
	sink := &recordingSink{}
	stream := NewStream("en-US", provider, sink, logger.NewNopLogger())
	require.NoError(t, stream.Start(context.Background()))
	return stream, provider, sink
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

func TestStreamLifecycle(t *testing.T) {
	stream, provider, sink := startStream(t)
	assert.Equal(t, StateInitializing, stream.State())

	provider.events <- ProviderEvent{Ready: true}
	waitFor(t, func() bool { return stream.State() == StateReady })

	provider.events <- ProviderEvent{Tokens: []Token{{Text: "hey"}}}
	waitFor(t, func() bool { return stream.State() == StateActive })

	interims, _, _ := sink.snapshot()
	require.Equal(t, []string{"hey"}, interims)

	stream.Stop()
	<-stream.Done()
	assert.Equal(t, StateClosed, stream.State())
}

func TestStreamFinalMatchesLastInterim(t *testing.T) {
	stream, provider, sink := startStream(t)
	provider.events <- ProviderEvent{Ready: true}

	provider.events <- ProviderEvent{Tokens: []Token{{Text: "good "}}}
	provider.events <- ProviderEvent{Tokens: []Token{{Text: "good ", IsFinal: true}, {Text: "morning"}}}
	provider.events <- ProviderEvent{EndOfUtterance: true}

	waitFor(t, func() bool {
		_, finals, _ := sink.snapshot()
		return len(finals) == 1
	})

	interims, finals, _ := sink.snapshot()
	assert.Equal(t, interims[len(interims)-1], finals[0])
	assert.Equal(t, "good morning", finals[0])

	stream.Stop()
	<-stream.Done()
}

func TestStreamForceFinalize(t *testing.T) {
	stream, provider, sink := startStream(t)
	provider.events <- ProviderEvent{Ready: true}
	provider.events <- ProviderEvent{Tokens: []Token{{Text: "cut off mid"}}}

	waitFor(t, func() bool {
		interims, _, _ := sink.snapshot()
		return len(interims) == 1
	})

	stream.ForceFinalize()

	waitFor(t, func() bool {
		_, finals, _ := sink.snapshot()
		return len(finals) == 1
	})
	_, finals, _ := sink.snapshot()
	assert.Equal(t, "cut off mid", finals[0])

	// The next utterance starts clean.
	provider.events <- ProviderEvent{Tokens: []Token{{Text: "fresh"}}}
	waitFor(t, func() bool {
		interims, _, _ := sink.snapshot()
		return len(interims) == 2
	})
	interims, _, _ := sink.snapshot()
	assert.Equal(t, "fresh", interims[1])

	stream.Stop()
	<-stream.Done()
}

func TestStreamEmptyTokenBatchClearsTail(t *testing.T) {
	stream, provider, sink := startStream(t)
	provider.events <- ProviderEvent{Ready: true}

	provider.events <- ProviderEvent{Tokens: []Token{
		{Text: "good ", IsFinal: true},
		{Text: "morning"},
	}}
	waitFor(t, func() bool {
		interims, _, _ := sink.snapshot()
		return len(interims) == 1
	})

	// A present-but-empty batch retracts the tail: the interim shrinks back
	// to the finalized text.
	provider.events <- ProviderEvent{Tokens: []Token{}}
	waitFor(t, func() bool {
		interims, _, _ := sink.snapshot()
		return len(interims) == 2
	})

	interims, _, _ := sink.snapshot()
	assert.Equal(t, "good morning", interims[0])
	assert.Equal(t, "good ", interims[1])

	sink.mu.Lock()
	assert.Nil(t, sink.tails[1])
	sink.mu.Unlock()

	stream.Stop()
	<-stream.Done()
}

func TestStreamProviderErrorSurfacesAndStops(t *testing.T) {
	stream, provider, sink := startStream(t)
	provider.events <- ProviderEvent{Ready: true}
	provider.events <- ProviderEvent{Err: errors.New("provider connection lost")}

	<-stream.Done()
	assert.Equal(t, StateError, stream.State())

	_, finals, errs := sink.snapshot()
	require.Len(t, errs, 1)
	assert.Empty(t, finals)
}

func TestStreamDropsAudioUntilReady(t *testing.T) {
	stream, provider, _ := startStream(t)

	require.NoError(t, stream.SendAudio([]byte{1, 2, 3}))
	provider.mu.Lock()
	assert.Empty(t, provider.audio)
	provider.mu.Unlock()

	provider.events <- ProviderEvent{Ready: true}
	waitFor(t, func() bool { return stream.State() == StateReady })

	require.NoError(t, stream.SendAudio([]byte{4, 5, 6}))
	waitFor(t, func() bool {
		provider.mu.Lock()
		defer provider.mu.Unlock()
		return len(provider.audio) == 1
	})

	stream.Stop()
	<-stream.Done()
}

func TestStreamInterimTailIsBounded(t *testing.T) {
	stream, provider, sink := startStream(t)
	provider.events <- ProviderEvent{Ready: true}

	for i := 0; i < 50; i++ {
		provider.events <- ProviderEvent{Tokens: []Token{
			{Text: "x ", IsFinal: true},
			{Text: "y"},
		}}
	}

	waitFor(t, func() bool {
		interims, _, _ := sink.snapshot()
		return len(interims) == 50
	})

	sink.mu.Lock()
	for _, tail := range sink.tails {
		assert.LessOrEqual(t, len(tail), 1)
	}
	sink.mu.Unlock()

	stream.Stop()
	<-stream.Done()
}
