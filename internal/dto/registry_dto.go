package dto

// RegisterAppRequest is the HTTP body of POST /api/apps/register.
type RegisterAppRequest struct {
	PackageName string `json:"package_name" validate:"required,min=3"`
	PublicURL   string `json:"public_url" validate:"required,url"`
	APIKey      string `json:"api_key" validate:"required,min=16"`
	IsSystemApp bool   `json:"is_system_app"`
}

// HeartbeatRequest announces that an app server restarted and wants its
// sessions reconnected.
type HeartbeatRequest struct {
	PackageName string `json:"package_name" validate:"required"`
}

// AppResponse is the public view of a registry record.
type AppResponse struct {
	PackageName  string `json:"package_name"`
	PublicURL    string `json:"public_url"`
	IsSystemApp  bool   `json:"is_system_app"`
	RegisteredAt string `json:"registered_at"`
}

// HealthResponse summarizes process state for GET /api/health.
type HealthResponse struct {
	Status         string `json:"status"`
	ActiveSessions int    `json:"active_sessions"`
}

// WebhookSessionRequest is posted to an app server's publicUrl asking it to
// open (or re-open) its websocket for one session.
type WebhookSessionRequest struct {
	Type         string `json:"type"`
	SessionID    string `json:"session_id"`
	UserID       string `json:"user_id"`
	WebsocketURL string `json:"websocket_url"`
}
