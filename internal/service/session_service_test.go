package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glasses-cloud-be/internal/config"
	"glasses-cloud-be/internal/dto"
	"glasses-cloud-be/internal/pkg/logger"
	"glasses-cloud-be/internal/repository/memory"
	"glasses-cloud-be/internal/session"
	"glasses-cloud-be/internal/transcription"
)

type stubConn struct {
	mu          sync.Mutex
	closed      bool
	closeReason string
}

func (c *stubConn) WriteJSON(v interface{}) error { return nil }

func (c *stubConn) CloseWithReason(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.closeReason = reason
}

// webhookRecorder captures session_request webhooks an app server would
// receive.
type webhookRecorder struct {
	mu       sync.Mutex
	requests []dto.WebhookSessionRequest
	server   *httptest.Server
}

func newWebhookRecorder(t *testing.T) *webhookRecorder {
	t.Helper()
	r := &webhookRecorder{}
	r.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var body dto.WebhookSessionRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		r.mu.Lock()
		r.requests = append(r.requests, body)
		r.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(r.server.Close)
	return r
}

func (r *webhookRecorder) received() []dto.WebhookSessionRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]dto.WebhookSessionRequest, len(r.requests))
	copy(out, r.requests)
	return out
}

func serviceTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{BaseURL: "ws://localhost:8002"},
		Session: config.SessionConfig{
			HandshakeTimeout:       5 * time.Second,
			PollTimeout:            100 * time.Millisecond,
			ReconnectGrace:         time.Minute,
			SystemDashboardPackage: "system.glasses.dashboard",
		},
		Keys:     config.APIKeys{JwtSecret: "test-secret"},
		Location: config.LocationConfig{Tiers: config.DefaultTierTable()},
	}
}

func newTestSessionService(t *testing.T) (ISessionService, IAppRegistryService) {
	t.Helper()
	cfg := serviceTestConfig()
	appsRepo := memory.NewAppRepository()
	appRegistry := NewAppRegistryService(appsRepo, nil, logger.NewNopLogger())
	auth := NewAuthService(appsRepo, cfg.Keys.JwtSecret)
	registry := session.NewRegistry(cfg.Session.ReconnectGrace, logger.NewNopLogger())

	svc := NewSessionService(cfg, registry, auth, appRegistry,
		memory.NewUserStorage(), transcription.NullProviderFactory, nil, logger.NewNopLogger())
	t.Cleanup(svc.Shutdown)
	return svc, appRegistry
}

const testAPIKey = "super-secret-api-key"

func registerRunningApp(t *testing.T, svc ISessionService, apps IAppRegistryService, publicURL string) (sessionID string, appConn *stubConn) {
	t.Helper()
	_, err := apps.Register(context.Background(), dto.RegisterAppRequest{
		PackageName: "com.example.captions",
		PublicURL:   publicURL,
		APIKey:      testAPIKey,
	})
	require.NoError(t, err)

	_, ack, err := svc.OnDeviceConnect(context.Background(), &stubConn{},
		dto.ConnectionInitPayload{UserID: "user@example.com"})
	require.NoError(t, err)

	appConn = &stubConn{}
	_, err = svc.OnAppConnect(context.Background(), appConn, dto.AppConnectionInitPayload{
		PackageName: "com.example.captions",
		SessionID:   ack.SessionID,
		APIKey:      testAPIKey,
	})
	require.NoError(t, err)
	return ack.SessionID, appConn
}

func TestReregistrationRecoversSessionAfterAppServerRestart(t *testing.T) {
	svc, apps := newTestSessionService(t)
	recorder := newWebhookRecorder(t)
	sessionID, appConn := registerRunningApp(t, svc, apps, recorder.server.URL)

	// An app-server restart drops the app socket first; the heartbeat that
	// announces the restart arrives only afterwards.
	sess, ok := svc.(*sessionService).registry.GetByID(sessionID)
	require.True(t, ok)
	svc.OnAppDisconnect(sess, "com.example.captions", appConn)

	require.NoError(t, svc.HandleAppReregistered(context.Background(), "com.example.captions"))

	reqs := recorder.received()
	require.Len(t, reqs, 1)
	assert.Equal(t, "session_request", reqs[0].Type)
	assert.Equal(t, sessionID, reqs[0].SessionID)
	assert.Equal(t, "user@example.com", reqs[0].UserID)
}

func TestReregistrationSkipsExplicitlyStoppedApp(t *testing.T) {
	svc, apps := newTestSessionService(t)
	recorder := newWebhookRecorder(t)
	sessionID, _ := registerRunningApp(t, svc, apps, recorder.server.URL)

	require.NoError(t, svc.StopApp(sessionID, "com.example.captions"))

	require.NoError(t, svc.HandleAppReregistered(context.Background(), "com.example.captions"))
	assert.Empty(t, recorder.received())
}

func TestReregistrationWebhooksLiveSessions(t *testing.T) {
	svc, apps := newTestSessionService(t)
	recorder := newWebhookRecorder(t)
	sessionID, _ := registerRunningApp(t, svc, apps, recorder.server.URL)

	require.NoError(t, svc.HandleAppReregistered(context.Background(), "com.example.captions"))

	reqs := recorder.received()
	require.Len(t, reqs, 1)
	assert.Equal(t, sessionID, reqs[0].SessionID)
}
