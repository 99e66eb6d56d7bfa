package transcription

import "context"

// ProviderEvent is one inbound event from a speech-to-text provider
// session. Exactly one of the fields is meaningful per event.
type ProviderEvent struct {
	// Ready signals the provider accepted the stream configuration.
	Ready bool
	// Tokens is a batch of recognized tokens, final and tail mixed.
	Tokens []Token
	// EndOfUtterance marks the provider-detected utterance boundary.
	EndOfUtterance bool
	// Err is a provider failure; the stream surfaces it upward and stops.
	// Retry/reconnect is the provider session's job, not the stream's.
	Err error
	// Closed signals a clean provider shutdown.
	Closed bool
}

// Provider is a streaming speech-to-text session. Implementations push
// events into the channel given to Start; the stream serializes them.
type Provider interface {
	Start(ctx context.Context, language string, events chan<- ProviderEvent) error
	SendAudio(chunk []byte) error
	Stop() error
}

// ProviderFactory builds one provider session per language stream.
type ProviderFactory func() Provider

// nullProvider accepts audio and produces nothing. Default wiring until a
// vendor adapter is configured; also used by tests that drive the event
// channel directly.
type nullProvider struct {
	events chan<- ProviderEvent
}

// NewNullProvider returns a provider that never emits tokens.
func NewNullProvider() Provider {
	return &nullProvider{}
}

// NullProviderFactory wires sessions with null providers.
func NullProviderFactory() Provider {
	return NewNullProvider()
}

func (p *nullProvider) Start(_ context.Context, _ string, events chan<- ProviderEvent) error {
	p.events = events
	events <- ProviderEvent{Ready: true}
	return nil
}

func (p *nullProvider) SendAudio(_ []byte) error {
	return nil
}

func (p *nullProvider) Stop() error {
	if p.events != nil {
		select {
		case p.events <- ProviderEvent{Closed: true}:
		default:
		}
	}
	return nil
}
