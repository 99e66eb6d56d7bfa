package dto

// ConnectionInitPayload is the first frame a device sends after the socket
// opens.
type ConnectionInitPayload struct {
	UserID    string `json:"user_id"`
	CoreToken string `json:"core_token,omitempty"`
}

// ConnectionAckPayload answers a successful device handshake with the
// current app-state snapshot so a reconnecting device resumes seamlessly.
type ConnectionAckPayload struct {
	SessionID    string   `json:"session_id"`
	SessionToken string   `json:"session_token,omitempty"`
	LoadingApps  []string `json:"loading_apps"`
	ActiveApps   []string `json:"active_apps"`
}

// ConnectionErrorPayload carries a machine-readable rejection.
type ConnectionErrorPayload struct {
	Reason  string `json:"reason"`
	Message string `json:"message,omitempty"`
}

// AppStateChangePayload notifies the device that an app started, finished
// loading, or stopped.
type AppStateChangePayload struct {
	LoadingApps []string `json:"loading_apps"`
	ActiveApps  []string `json:"active_apps"`
}

type VadPayload struct {
	Speaking bool `json:"speaking"`
}

type HeadPositionPayload struct {
	Position string `json:"position"` // "up" | "down"
}

type ButtonPressPayload struct {
	ButtonID  string `json:"button_id"`
	PressType string `json:"press_type"` // "short" | "long"
}

type BatteryPayload struct {
	Level    int  `json:"level"`
	Charging bool `json:"charging"`
}

// LocationUpdatePayload is a device fix. CorrelationID is set when the fix
// answers a single-fix poll, empty on continuous-stream broadcasts.
type LocationUpdatePayload struct {
	Lat           float64 `json:"lat"`
	Lng           float64 `json:"lng"`
	Accuracy      string  `json:"accuracy,omitempty"`
	CorrelationID string  `json:"correlation_id,omitempty"`
}

// DisplayEventPayload is the opaque display payload rendered by the
// dashboard arbiter or requested directly by an app.
type DisplayEventPayload struct {
	View   string `json:"view"` // "main" | "expanded" | "app"
	Text   string `json:"text"`
	Source string `json:"source,omitempty"` // contributing package, informational
}

// SetLocationTierPayload commands the device hardware tier.
type SetLocationTierPayload struct {
	Tier string `json:"tier"`
}

// RequestSingleFixPayload commands one hardware fix for a pending poll.
type RequestSingleFixPayload struct {
	Accuracy      string `json:"accuracy"`
	CorrelationID string `json:"correlation_id"`
}
