package dto

import (
	"encoding/json"
	"time"
)

// Envelope is the outer frame of every websocket message, device- or
// app-origin. Exactly one of SessionID / PackageName identifies the sender
// depending on the socket the frame arrived on.
type Envelope struct {
	Type        string          `json:"type"`
	SessionID   string          `json:"session_id,omitempty"`
	PackageName string          `json:"package_name,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope stamps an outbound frame.
func NewEnvelope(msgType string, payload interface{}) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: msgType, Timestamp: time.Now(), Payload: raw}, nil
}
