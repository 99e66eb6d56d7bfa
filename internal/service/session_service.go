package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"

	"glasses-cloud-be/internal/config"
	"glasses-cloud-be/internal/constant"
	"glasses-cloud-be/internal/dto"
	"glasses-cloud-be/internal/pkg/logger"
	"glasses-cloud-be/internal/repository/contract"
	"glasses-cloud-be/internal/session"
	"glasses-cloud-be/internal/transcription"
	"glasses-cloud-be/pkg/events"
)

var (
	ErrUnknownSession = errors.New("unknown session id")
	ErrNoPublicURL    = errors.New("app has no public url")
)

// SessionEventsTopic is the in-process bus topic carrying session
// lifecycle events.
const SessionEventsTopic = "session_events"

type ISessionService interface {
	// OnDeviceConnect resolves the handshake: an existing session for the
	// user is reclaimed, otherwise a new one is created. Returns the ack
	// payload for the device.
	OnDeviceConnect(ctx context.Context, conn session.Conn, init dto.ConnectionInitPayload) (*session.UserSession, dto.ConnectionAckPayload, error)
	// OnDeviceDisconnect starts the reconnect grace timer when conn was
	// the session's current device socket.
	OnDeviceDisconnect(s *session.UserSession, conn session.Conn)
	// OnAppConnect authenticates the app handshake and attaches the
	// connection to its session.
	OnAppConnect(ctx context.Context, conn session.Conn, init dto.AppConnectionInitPayload) (*session.UserSession, error)
	OnAppDisconnect(s *session.UserSession, packageName string, conn session.Conn)
	// StartApp webhooks the app server so it opens a websocket for the
	// session.
	StartApp(ctx context.Context, sessionID, packageName string) error
	StopApp(sessionID, packageName string) error
	// HandleAppReregistered re-webhooks every session currently running
	// the package. Driven by the NATS fan-out.
	HandleAppReregistered(ctx context.Context, packageName string) error
	SendToDevice(sessionID, msgType string, payload interface{}) error
	SendToApp(sessionID, packageName, msgType string, payload interface{}) error
	ActiveSessionCount() int
	Shutdown()
}

type sessionService struct {
	cfg      *config.Config
	registry *session.Registry
	auth     IAuthService
	apps     IAppRegistryService
	storage  contract.IUserStorage
	factory  transcription.ProviderFactory
	pubSub   *gochannel.GoChannel
	http     *http.Client
	log      logger.ILogger
}

func NewSessionService(
	cfg *config.Config,
	registry *session.Registry,
	auth IAuthService,
	apps IAppRegistryService,
	storage contract.IUserStorage,
	factory transcription.ProviderFactory,
	pubSub *gochannel.GoChannel,
	log logger.ILogger,
) ISessionService {
	return &sessionService{
		cfg:      cfg,
		registry: registry,
		auth:     auth,
		apps:     apps,
		storage:  storage,
		factory:  factory,
		pubSub:   pubSub,
		http:     &http.Client{Timeout: 10 * time.Second},
		log:      log,
	}
}

func (s *sessionService) OnDeviceConnect(ctx context.Context, conn session.Conn, init dto.ConnectionInitPayload) (*session.UserSession, dto.ConnectionAckPayload, error) {
	if init.UserID == "" {
		return nil, dto.ConnectionAckPayload{}, errors.New("missing user id")
	}
	if init.CoreToken != "" {
		if err := s.auth.ValidateCoreToken(init.CoreToken, init.UserID); err != nil {
			return nil, dto.ConnectionAckPayload{}, err
		}
	}

	sess, reclaimed := s.registry.GetByUser(init.UserID)
	if reclaimed {
		s.registry.Reclaim(sess)
		s.log.Info("SessionService", "Device reclaimed existing session", map[string]interface{}{
			"session_id": sess.ID, "user_id": init.UserID,
		})
	} else {
		sess = session.New(uuid.NewString(), init.UserID, session.Deps{
			Cfg:             s.cfg,
			Storage:         s.storage,
			ProviderFactory: s.factory,
			Logger:          s.log,
			Publish:         s.publishSessionEvent,
		})
		sess.Start(ctx)
		s.registry.Add(sess)
		s.log.Info("SessionService", "Session created", map[string]interface{}{
			"session_id": sess.ID, "user_id": init.UserID,
		})
	}

	loading, active := sess.AttachDevice(conn)

	token, err := s.auth.IssueSessionToken(init.UserID, sess.ID)
	if err != nil {
		s.log.Warn("SessionService", "Session token mint failed", map[string]interface{}{
			"session_id": sess.ID, "error": err.Error(),
		})
	}

	return sess, dto.ConnectionAckPayload{
		SessionID:    sess.ID,
		SessionToken: token,
		LoadingApps:  loading,
		ActiveApps:   active,
	}, nil
}

func (s *sessionService) OnDeviceDisconnect(sess *session.UserSession, conn session.Conn) {
	if sess.DetachDevice(conn) {
		s.registry.MarkOrphaned(sess)
	}
}

func (s *sessionService) OnAppConnect(ctx context.Context, conn session.Conn, init dto.AppConnectionInitPayload) (*session.UserSession, error) {
	if err := s.auth.ValidateAppKey(init.PackageName, init.APIKey); err != nil {
		return nil, err
	}
	sess, ok := s.registry.GetByID(init.SessionID)
	if !ok {
		return nil, ErrUnknownSession
	}
	sess.ConnectApp(init.PackageName, conn)
	return sess, nil
}

func (s *sessionService) OnAppDisconnect(sess *session.UserSession, packageName string, conn session.Conn) {
	sess.AppDisconnected(packageName, conn)
}

func (s *sessionService) StartApp(ctx context.Context, sessionID, packageName string) error {
	sess, ok := s.registry.GetByID(sessionID)
	if !ok {
		return ErrUnknownSession
	}
	app, err := s.apps.Lookup(packageName)
	if err != nil {
		return ErrUnknownApp
	}
	if app.PublicURL == "" {
		return ErrNoPublicURL
	}

	sess.MarkLoading(packageName)
	_ = sess.SendToDevice(constant.CloudWebsocketConnecting, map[string]string{"package_name": packageName})
	if err := s.webhookSession(ctx, app.PublicURL, sess); err != nil {
		return fmt.Errorf("webhook to %s failed: %w", packageName, err)
	}
	return nil
}

func (s *sessionService) StopApp(sessionID, packageName string) error {
	sess, ok := s.registry.GetByID(sessionID)
	if !ok {
		return ErrUnknownSession
	}
	sess.StopApp(packageName)
	return nil
}

func (s *sessionService) HandleAppReregistered(ctx context.Context, packageName string) error {
	app, err := s.apps.Lookup(packageName)
	if err != nil || app.PublicURL == "" {
		return ErrUnknownApp
	}

	for _, sess := range s.registry.All() {
		recoverable := false
		for _, pkg := range sess.RecoverableApps() {
			if pkg == packageName {
				recoverable = true
				break
			}
		}
		if !recoverable {
			continue
		}
		if err := s.webhookSession(ctx, app.PublicURL, sess); err != nil {
			s.log.Warn("SessionService", "Recovery webhook failed", map[string]interface{}{
				"session_id": sess.ID, "package": packageName, "error": err.Error(),
			})
		}
	}
	return nil
}

func (s *sessionService) webhookSession(ctx context.Context, publicURL string, sess *session.UserSession) error {
	body, err := json.Marshal(dto.WebhookSessionRequest{
		Type:         "session_request",
		SessionID:    sess.ID,
		UserID:       sess.UserID,
		WebsocketURL: s.cfg.App.BaseURL + "/app-ws",
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, publicURL+"/webhook", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (s *sessionService) publishSessionEvent(ev events.BaseEvent) {
	if s.pubSub == nil {
		return
	}
	payload, err := json.Marshal(map[string]interface{}{
		"type":        ev.Type,
		"data":        ev.Data,
		"occurred_at": ev.OccurredAt,
	})
	if err != nil {
		return
	}
	msg := message.NewMessage(uuid.NewString(), payload)
	if err := s.pubSub.Publish(SessionEventsTopic, msg); err != nil {
		s.log.Warn("SessionService", "Session event publish failed", map[string]interface{}{
			"type": ev.Type, "error": err.Error(),
		})
	}
}

func (s *sessionService) SendToDevice(sessionID, msgType string, payload interface{}) error {
	sess, ok := s.registry.GetByID(sessionID)
	if !ok {
		return ErrUnknownSession
	}
	return sess.SendToDevice(msgType, payload)
}

func (s *sessionService) SendToApp(sessionID, packageName, msgType string, payload interface{}) error {
	sess, ok := s.registry.GetByID(sessionID)
	if !ok {
		return ErrUnknownSession
	}
	return sess.SendToApp(packageName, msgType, payload)
}

func (s *sessionService) ActiveSessionCount() int {
	return s.registry.Count()
}

func (s *sessionService) Shutdown() {
	s.registry.Shutdown(constant.CloseReasonSessionEnded)
}
