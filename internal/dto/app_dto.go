package dto

import "encoding/json"

// AppConnectionInitPayload is the registration handshake an app must send
// within the handshake timeout after its socket opens.
type AppConnectionInitPayload struct {
	PackageName string `json:"package_name"`
	APIKey      string `json:"api_key"`
	SessionID   string `json:"session_id"`
}

type AppConnectionAckPayload struct {
	SessionID string   `json:"session_id"`
	Granted   []string `json:"granted_subscriptions,omitempty"`
}

// SubscriptionUpdatePayload carries the app's full subscription list;
// semantics are replace-all, never merge.
type SubscriptionUpdatePayload struct {
	Subscriptions []string `json:"subscriptions"`
}

type DashboardContentPayload struct {
	Content string   `json:"content"`
	Modes   []string `json:"modes"` // "main" | "expanded"
}

type DashboardModePayload struct {
	Mode string `json:"mode"` // "none" | "main" | "expanded"
}

type DashboardSystemStatusPayload struct {
	Status string `json:"status"`
}

// DisplayRequestPayload asks the cloud to show app content outside the
// dashboard surface.
type DisplayRequestPayload struct {
	Text       string `json:"text"`
	DurationMs int    `json:"duration_ms,omitempty"`
}

type LocationPollPayload struct {
	Accuracy      string `json:"accuracy"`
	CorrelationID string `json:"correlation_id"`
}

// DataStreamPayload wraps a routed device event for app delivery.
type DataStreamPayload struct {
	StreamType string          `json:"stream_type"`
	SessionID  string          `json:"session_id"`
	Data       json.RawMessage `json:"data"`
}

type LocationResultPayload struct {
	CorrelationID string  `json:"correlation_id"`
	Lat           float64 `json:"lat"`
	Lng           float64 `json:"lng"`
	Accuracy      string  `json:"accuracy,omitempty"`
	FromCache     bool    `json:"from_cache"`
	AgeMs         int64   `json:"age_ms,omitempty"`
}

type LocationTimeoutPayload struct {
	CorrelationID string `json:"correlation_id"`
}

// TranscriptionResultPayload is the provider-agnostic interim/final
// contract: the final text of an utterance is byte-equal to its last interim.
type TranscriptionResultPayload struct {
	Language string            `json:"language"`
	Text     string            `json:"text"`
	IsFinal  bool              `json:"is_final"`
	Tail     []TailTokenRecord `json:"tail,omitempty"`
}

// TailTokenRecord is the bounded metadata attached to interims, never the
// full token history.
type TailTokenRecord struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence,omitempty"`
	StartMs    int64   `json:"start_ms,omitempty"`
	EndMs      int64   `json:"end_ms,omitempty"`
}
