package constant

// Wire message types: glasses -> cloud.
const (
	GlassesConnectionInit = "connection_init"
	GlassesVad            = "vad"
	GlassesHeadPosition   = "head_position"
	GlassesButtonPress    = "button_press"
	GlassesBattery        = "glasses_battery_update"
	GlassesLocationUpdate = "location_update"
	GlassesAudioChunk     = "audio_chunk"
)

// Wire message types: cloud -> glasses.
const (
	CloudConnectionAck       = "connection_ack"
	CloudConnectionError     = "connection_error"
	CloudAppStateChange      = "app_state_change"
	CloudDisplayEvent        = "display_event"
	CloudSetLocationTier     = "set_location_tier"
	CloudRequestSingleFix    = "request_single_location"
	CloudWebsocketConnecting = "websocket_connecting"
)

// Wire message types: app <-> cloud.
const (
	AppConnectionInit        = "tpa_connection_init"
	AppConnectionAck         = "tpa_connection_ack"
	AppConnectionError       = "tpa_connection_error"
	AppSubscriptionUpdate    = "subscription_update"
	AppDisplayRequest        = "display_request"
	AppDashboardContent      = "dashboard_content_update"
	AppDashboardMode         = "dashboard_mode_change"
	AppDashboardSystemStatus = "dashboard_system_update"
	AppLocationPoll          = "location_poll_request"
	CloudDataStream          = "data_stream"
	CloudLocationResult      = "location_poll_result"
	CloudLocationTimeout     = "location_poll_timeout"
	CloudTranscription       = "transcription_result"
	CloudAppStopped          = "app_stopped"
)

// Machine-readable close reasons for rejected connections.
const (
	CloseReasonBadHandshake     = "BAD_HANDSHAKE"
	CloseReasonAuthFailed       = "AUTH_FAILED"
	CloseReasonHandshakeTimeout = "HANDSHAKE_TIMEOUT"
	CloseReasonSuperseded       = "SUPERSEDED"
	CloseReasonSessionEnded     = "SESSION_ENDED"
	CloseReasonUnknownSession   = "UNKNOWN_SESSION"
	CloseReasonBadSubscription  = "INVALID_SUBSCRIPTION"
	CloseReasonUnknownKind      = "UNSUPPORTED_MESSAGE"
)
