package events

import "time"

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "APP_CONNECTED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent is the concrete carrier used on the session bus.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// Session lifecycle event codes emitted on the session bus.
const (
	DeviceConnected     = "DEVICE_CONNECTED"
	DeviceDisconnected  = "DEVICE_DISCONNECTED"
	AppConnected        = "APP_CONNECTED"
	AppDisconnected     = "APP_DISCONNECTED"
	AppStopped          = "APP_STOPPED"
	SubscriptionChanged = "SUBSCRIPTION_CHANGED"
	AppReregistered     = "APP_REREGISTERED"
)

// NewSessionEvent builds a session-scoped lifecycle event.
func NewSessionEvent(eventType, sessionID, userID string, extra map[string]interface{}) BaseEvent {
	data := map[string]interface{}{
		"session_id": sessionID,
		"user_id":    userID,
	}
	for k, v := range extra {
		data[k] = v
	}
	return BaseEvent{Type: eventType, Data: data, OccurredAt: time.Now()}
}
