package transcription

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"glasses-cloud-be/internal/pkg/logger"
)

// State is a stream's lifecycle position.
type State int32

const (
	StateInitializing State = iota
	StateReady
	StateActive
	StateClosing
	StateClosed
	StateError
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateError:
		return "error"
	}
	return "unknown"
}

// Sink receives the compacted interim/final contract. The session
// implements it by routing results to subscribed apps.
type Sink interface {
	OnInterim(language, text string, tail []Token)
	OnFinal(language, text string)
	OnError(language string, err error)
}

// Stream is one live speech-to-text stream for one language. Every provider
// callback and every control action funnels through a single ordered queue,
// so partial updates can never interleave.
type Stream struct {
	language  string
	provider  Provider
	sink      Sink
	log       logger.ILogger
	state     atomic.Int32
	compactor Compactor
	queue     chan ProviderEvent
	done      chan struct{}
	stopOnce  sync.Once
}

func NewStream(language string, provider Provider, sink Sink, log logger.ILogger) *Stream {
	return &Stream{
		language: language,
		provider: provider,
		sink:     sink,
		log:      log,
		queue:    make(chan ProviderEvent, 64),
		done:     make(chan struct{}),
	}
}

func (s *Stream) Language() string {
	return s.language
}

func (s *Stream) State() State {
	return State(s.state.Load())
}

// Start connects the provider and begins consuming its events.
func (s *Stream) Start(ctx context.Context) error {
	if err := s.provider.Start(ctx, s.language, s.queue); err != nil {
		s.state.Store(int32(StateError))
		return fmt.Errorf("start provider for %s: %w", s.language, err)
	}
	go s.run()
	return nil
}

// SendAudio forwards a decoded audio chunk to the provider. Chunks arriving
// before the provider is ready or after close are dropped.
func (s *Stream) SendAudio(chunk []byte) error {
	switch s.State() {
	case StateReady, StateActive:
		return s.provider.SendAudio(chunk)
	}
	return nil
}

// ForceFinalize ends the current utterance as if the provider had signaled
// the boundary. VAD stop drives this.
func (s *Stream) ForceFinalize() {
	s.enqueue(ProviderEvent{EndOfUtterance: true})
}

// Stop shuts the stream down. Idempotent; pending provider work completes
// and is discarded.
func (s *Stream) Stop() {
	s.stopOnce.Do(func() {
		s.state.Store(int32(StateClosing))
		s.enqueue(ProviderEvent{Closed: true})
	})
}

// Done closes when the stream's loop has exited.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

func (s *Stream) enqueue(ev ProviderEvent) {
	select {
	case s.queue <- ev:
	case <-s.done:
	}
}

func (s *Stream) run() {
	defer close(s.done)

	for ev := range s.queue {
		switch {
		case ev.Err != nil:
			s.compactor.Reset()
			s.state.Store(int32(StateError))
			s.sink.OnError(s.language, ev.Err)
			if err := s.provider.Stop(); err != nil {
				s.log.Warn("Transcription", "Provider stop failed", map[string]interface{}{
					"language": s.language, "error": err.Error(),
				})
			}
			return

		case ev.Closed:
			s.compactor.Reset()
			s.state.Store(int32(StateClosed))
			if err := s.provider.Stop(); err != nil {
				s.log.Warn("Transcription", "Provider stop failed", map[string]interface{}{
					"language": s.language, "error": err.Error(),
				})
			}
			return

		case ev.Ready:
			if s.State() == StateInitializing {
				s.state.Store(int32(StateReady))
			}

		case ev.EndOfUtterance:
			if final, ok := s.compactor.Finalize(); ok {
				s.sink.OnFinal(s.language, final)
			}

		case ev.Tokens != nil:
			// An empty (non-nil) batch is a provider tail-clear and must
			// reach the compactor like any other token update.
			if s.State() == StateReady {
				s.state.Store(int32(StateActive))
			}
			if interim, changed := s.compactor.Ingest(ev.Tokens); changed {
				s.sink.OnInterim(s.language, interim, s.compactor.Tail())
			}
		}
	}
}
