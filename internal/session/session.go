package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"
	"time"

	"glasses-cloud-be/internal/config"
	"glasses-cloud-be/internal/constant"
	"glasses-cloud-be/internal/dashboard"
	"glasses-cloud-be/internal/dto"
	"glasses-cloud-be/internal/location"
	"glasses-cloud-be/internal/pkg/logger"
	"glasses-cloud-be/internal/repository/contract"
	"glasses-cloud-be/internal/subscription"
	"glasses-cloud-be/internal/transcription"
	"glasses-cloud-be/pkg/events"
	"glasses-cloud-be/pkg/streams"
)

// Deps carries everything a session needs beyond its identity.
type Deps struct {
	Cfg             *config.Config
	Storage         contract.IUserStorage
	ProviderFactory transcription.ProviderFactory
	Logger          logger.ILogger
	Publish         func(events.BaseEvent)
}

// UserSession is the server-side aggregate of one device connection plus
// all its app connections. All arbiter state is mutated on a single
// dispatch loop, so concurrent device/app messages for the same session
// never interleave their effects; different sessions run fully in parallel.
//
// The mutex guards only the connection maps, which outbound sends read from
// arbitrary goroutines (poll-timeout janitor, transcription streams).
type UserSession struct {
	ID        string
	UserID    string
	CreatedAt time.Time

	mu      sync.RWMutex
	device  Conn
	apps    map[string]*AppConnection
	loading map[string]time.Time
	active  map[string]bool
	lost    map[string]*AppConnection

	subs        *subscription.Manager
	dash        *dashboard.Manager
	loc         *location.Manager
	transcripts map[string]*transcription.Stream

	deps     Deps
	dispatch chan func()
	closed   chan struct{}
	stopOnce sync.Once
}

func New(id, userID string, deps Deps) *UserSession {
	s := &UserSession{
		ID:          id,
		UserID:      userID,
		CreatedAt:   time.Now(),
		apps:        make(map[string]*AppConnection),
		loading:     make(map[string]time.Time),
		active:      make(map[string]bool),
		lost:        make(map[string]*AppConnection),
		transcripts: make(map[string]*transcription.Stream),
		deps:        deps,
		dispatch:    make(chan func(), 256),
		closed:      make(chan struct{}),
	}
	s.subs = subscription.NewManager(deps.Cfg.Location.Tiers, deps.Logger)
	s.dash = dashboard.NewManager(deps.Cfg.Session.SystemDashboardPackage, s, deps.Logger)
	s.loc = location.NewManager(userID, deps.Cfg.Location.Tiers, s.subs, s, deps.Storage,
		deps.Cfg.Session.PollTimeout, deps.Logger)
	return s
}

// Start launches the dispatch loop and primes arbiter state from storage.
func (s *UserSession) Start(ctx context.Context) {
	go s.run()
	s.post(func() { s.loc.Prime(ctx) })
}

func (s *UserSession) run() {
	for {
		select {
		case f := <-s.dispatch:
			f()
		case <-s.closed:
			return
		}
	}
}

// post queues work onto the session loop; it is dropped after teardown.
func (s *UserSession) post(f func()) {
	select {
	case s.dispatch <- f:
	case <-s.closed:
	}
}

// call runs f on the session loop and waits for it.
func (s *UserSession) call(f func()) {
	done := make(chan struct{})
	s.post(func() {
		defer close(done)
		f()
	})
	select {
	case <-done:
	case <-s.closed:
	}
}

// --- device lifecycle ---

// AttachDevice installs (or replaces) the device connection and returns the
// app-state snapshot for the connection ack. A superseded device socket is
// closed.
func (s *UserSession) AttachDevice(conn Conn) (loading, active []string) {
	s.call(func() {
		s.mu.Lock()
		old := s.device
		s.device = conn
		loading, active = s.snapshotLocked()
		s.mu.Unlock()

		if old != nil && old != conn {
			old.CloseWithReason(constant.CloseReasonSuperseded)
		}
		s.publish(events.DeviceConnected, nil)
	})
	return loading, active
}

// DetachDevice clears the device connection if conn is still current.
// Returns true when the session became orphaned; app connections stay
// intact so a quick reconnect is seamless.
func (s *UserSession) DetachDevice(conn Conn) (orphaned bool) {
	s.call(func() {
		s.mu.Lock()
		if s.device == conn {
			s.device = nil
			orphaned = true
		}
		s.mu.Unlock()
		if orphaned {
			s.publish(events.DeviceDisconnected, nil)
		}
	})
	return orphaned
}

// HasDevice reports whether a device connection is currently attached.
func (s *UserSession) HasDevice() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.device != nil
}

// Snapshot returns the loading/active package lists.
func (s *UserSession) Snapshot() (loading, active []string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *UserSession) snapshotLocked() (loading, active []string) {
	loading = make([]string, 0, len(s.loading))
	for pkg := range s.loading {
		loading = append(loading, pkg)
	}
	active = make([]string, 0, len(s.active))
	for pkg := range s.active {
		active = append(active, pkg)
	}
	return loading, active
}

// --- app lifecycle ---

// MarkLoading records that an app server was asked to connect for this
// session and tells the device. The entry expires after the handshake
// timeout so an app server that never dials back does not leave a phantom
// loading app on the device.
func (s *UserSession) MarkLoading(packageName string) {
	s.post(func() {
		markedAt := time.Now()
		s.mu.Lock()
		s.loading[packageName] = markedAt
		s.mu.Unlock()
		s.notifyAppState()

		time.AfterFunc(s.deps.Cfg.Session.HandshakeTimeout, func() {
			s.post(func() { s.expireLoading(packageName, markedAt) })
		})
	})
}

// expireLoading drops a loading entry that was never promoted to a
// connection. A newer MarkLoading for the same package resets the clock,
// so only the matching entry expires.
func (s *UserSession) expireLoading(packageName string, markedAt time.Time) {
	s.mu.Lock()
	at, ok := s.loading[packageName]
	if !ok || !at.Equal(markedAt) {
		s.mu.Unlock()
		return
	}
	delete(s.loading, packageName)
	s.mu.Unlock()

	s.deps.Logger.Warn("Session", "App never connected before handshake timeout", map[string]interface{}{
		"session_id": s.ID, "package": packageName,
	})
	s.notifyAppState()
}

// ConnectApp installs an authenticated app connection, superseding any
// previous connection for the same package, and acks the app.
func (s *UserSession) ConnectApp(packageName string, conn Conn) {
	s.call(func() {
		s.mu.Lock()
		old := s.apps[packageName]
		s.apps[packageName] = &AppConnection{
			PackageName: packageName,
			Conn:        conn,
			State:       AppStateActive,
			ConnectedAt: time.Now(),
		}
		delete(s.loading, packageName)
		delete(s.lost, packageName)
		s.active[packageName] = true
		s.mu.Unlock()

		if old != nil && old.Conn != conn {
			old.Conn.CloseWithReason(constant.CloseReasonSuperseded)
		}

		s.sendEnvelope(conn, constant.AppConnectionAck, dto.AppConnectionAckPayload{SessionID: s.ID})
		s.notifyAppState()
		s.publish(events.AppConnected, map[string]interface{}{"package": packageName})
	})
}

// AppDisconnected tears down one app's footprint in the session: its
// socket, subscriptions, and dashboard content. The package itself is
// parked in the lost set so a reregistering app server gets a recovery
// webhook for this session; only an explicit stop or teardown forgets it.
// No-op when conn is not the package's current connection (a superseded
// socket closing late).
func (s *UserSession) AppDisconnected(packageName string, conn Conn) {
	s.post(func() {
		s.mu.Lock()
		current := s.apps[packageName]
		if current == nil || (conn != nil && current.Conn != conn) {
			s.mu.Unlock()
			return
		}
		delete(s.apps, packageName)
		delete(s.loading, packageName)
		delete(s.active, packageName)
		current.Conn = nil
		current.State = AppStateDisconnected
		s.lost[packageName] = current
		s.mu.Unlock()

		s.subs.RemoveApp(packageName)
		s.dash.RemoveApp(packageName)
		if err := s.loc.HandleSubscriptionChange(context.Background()); err != nil {
			s.deps.Logger.Warn("Session", "Tier recompute after app disconnect failed", map[string]interface{}{
				"session_id": s.ID, "package": packageName, "error": err.Error(),
			})
		}
		s.syncTranscriptionStreams(context.Background())

		s.notifyAppState()
		s.publish(events.AppDisconnected, map[string]interface{}{"package": packageName})
	})
}

// StopApp removes an app from the session for good: the socket is told to
// stop and closed, and the package is forgotten entirely, so a later app
// server reregistration does not resurrect it.
func (s *UserSession) StopApp(packageName string) {
	s.call(func() {
		s.mu.Lock()
		current := s.apps[packageName]
		delete(s.apps, packageName)
		delete(s.loading, packageName)
		delete(s.active, packageName)
		delete(s.lost, packageName)
		s.mu.Unlock()

		if current != nil {
			_ = s.sendEnvelope(current.Conn, constant.CloudAppStopped, map[string]string{"reason": "stopped_by_user"})
			current.Conn.CloseWithReason(constant.CloseReasonSessionEnded)
		}

		s.subs.RemoveApp(packageName)
		s.dash.RemoveApp(packageName)
		if err := s.loc.HandleSubscriptionChange(context.Background()); err != nil {
			s.deps.Logger.Warn("Session", "Tier recompute after app stop failed", map[string]interface{}{
				"session_id": s.ID, "package": packageName, "error": err.Error(),
			})
		}
		s.syncTranscriptionStreams(context.Background())

		s.notifyAppState()
		s.publish(events.AppStopped, map[string]interface{}{"package": packageName})
	})
}

// ActiveApps lists packages with a live app connection.
func (s *UserSession) ActiveApps() []string {
	_, active := s.Snapshot()
	return active
}

// RecoverableApps lists packages that should get a recovery webhook when
// their app server reregisters: everything currently connected plus
// everything that dropped without an explicit stop.
func (s *UserSession) RecoverableApps() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pkgs := make([]string, 0, len(s.active)+len(s.lost))
	for pkg := range s.active {
		pkgs = append(pkgs, pkg)
	}
	for pkg := range s.lost {
		if !s.active[pkg] {
			pkgs = append(pkgs, pkg)
		}
	}
	return pkgs
}

// --- message handling ---

// HandleDeviceMessage dispatches one parsed device frame on the session
// loop.
func (s *UserSession) HandleDeviceMessage(env dto.Envelope) {
	s.post(func() { s.handleDeviceMessage(env) })
}

func (s *UserSession) handleDeviceMessage(env dto.Envelope) {
	switch env.Type {
	case constant.GlassesVad:
		var p dto.VadPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			s.logBadPayload("device", env.Type, err)
			return
		}
		if !p.Speaking {
			for _, stream := range s.transcripts {
				stream.ForceFinalize()
			}
		}
		s.routeEvent(streams.Spec{Type: streams.TypeVad}, env.Payload)

	case constant.GlassesHeadPosition:
		var p dto.HeadPositionPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			s.logBadPayload("device", env.Type, err)
			return
		}
		if p.Position == "up" {
			s.dash.HandleHeadUp()
		}
		s.routeEvent(streams.Spec{Type: streams.TypeHeadPosition}, env.Payload)

	case constant.GlassesLocationUpdate:
		var p dto.LocationUpdatePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			s.logBadPayload("device", env.Type, err)
			return
		}
		s.loc.HandleDeviceLocationUpdate(context.Background(), p)

	case constant.GlassesButtonPress:
		s.routeEvent(streams.Spec{Type: streams.TypeButtonPress}, env.Payload)

	case constant.GlassesBattery:
		s.routeEvent(streams.Spec{Type: streams.TypeGlassesBattery}, env.Payload)

	default:
		s.deps.Logger.Warn("Session", "Unknown device message type", map[string]interface{}{
			"session_id": s.ID, "type": env.Type,
		})
	}
}

// HandleDeviceAudio feeds a binary audio frame to every live transcription
// stream and forwards it to audio subscribers.
func (s *UserSession) HandleDeviceAudio(chunk []byte) {
	s.post(func() {
		for _, stream := range s.transcripts {
			if err := stream.SendAudio(chunk); err != nil {
				s.deps.Logger.Warn("Session", "Audio forward failed", map[string]interface{}{
					"session_id": s.ID, "language": stream.Language(), "error": err.Error(),
				})
			}
		}
		targets := s.subs.RouteDeviceEvent(streams.Spec{Type: streams.TypeAudioChunk})
		if len(targets) == 0 {
			return
		}
		encoded, _ := json.Marshal(base64.StdEncoding.EncodeToString(chunk))
		for _, pkg := range targets {
			s.sendToAppInternal(pkg, constant.CloudDataStream, dto.DataStreamPayload{
				StreamType: string(streams.TypeAudioChunk),
				SessionID:  s.ID,
				Data:       encoded,
			})
		}
	})
}

// HandleAppMessage dispatches one parsed app frame on the session loop.
func (s *UserSession) HandleAppMessage(packageName string, env dto.Envelope) {
	s.post(func() { s.handleAppMessage(packageName, env) })
}

func (s *UserSession) handleAppMessage(packageName string, env dto.Envelope) {
	switch env.Type {
	case constant.AppSubscriptionUpdate:
		s.handleSubscriptionUpdate(packageName, env)

	case constant.AppDashboardContent:
		var p dto.DashboardContentPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			s.logBadPayload(packageName, env.Type, err)
			return
		}
		modes := make([]dashboard.Mode, 0, len(p.Modes))
		for _, raw := range p.Modes {
			mode, err := dashboard.ParseMode(raw)
			if err != nil {
				s.logBadPayload(packageName, env.Type, err)
				return
			}
			modes = append(modes, mode)
		}
		s.dash.UpdateContent(packageName, p.Content, modes)

	case constant.AppDashboardMode:
		var p dto.DashboardModePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			s.logBadPayload(packageName, env.Type, err)
			return
		}
		mode, err := dashboard.ParseMode(p.Mode)
		if err != nil {
			s.logBadPayload(packageName, env.Type, err)
			return
		}
		// Unauthorized attempts are logged inside the arbiter and
		// rejected silently; the app connection is unaffected.
		_ = s.dash.SetMode(packageName, mode)

	case constant.AppDashboardSystemStatus:
		var p dto.DashboardSystemStatusPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			s.logBadPayload(packageName, env.Type, err)
			return
		}
		if packageName != s.deps.Cfg.Session.SystemDashboardPackage {
			s.deps.Logger.Warn("Session", "Unauthorized system status update", map[string]interface{}{
				"session_id": s.ID, "package": packageName,
			})
			return
		}
		s.dash.SetSystemStatus(p.Status)

	case constant.AppLocationPoll:
		var p dto.LocationPollPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			s.logBadPayload(packageName, env.Type, err)
			return
		}
		if err := s.loc.HandlePollRequest(context.Background(), p.Accuracy, p.CorrelationID, packageName); err != nil {
			s.sendToAppInternal(packageName, constant.AppConnectionError, dto.ConnectionErrorPayload{
				Reason:  constant.CloseReasonBadSubscription,
				Message: err.Error(),
			})
		}

	case constant.AppDisplayRequest:
		var p dto.DisplayRequestPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			s.logBadPayload(packageName, env.Type, err)
			return
		}
		s.sendToDeviceInternal(constant.CloudDisplayEvent, dto.DisplayEventPayload{
			View:   "app",
			Text:   p.Text,
			Source: packageName,
		})

	default:
		// Unknown kinds are a protocol error: reject machine-readably and
		// close only the offending connection. The session survives.
		s.deps.Logger.Warn("Session", "Unknown app message type", map[string]interface{}{
			"session_id": s.ID, "package": packageName, "type": env.Type,
		})
		s.mu.RLock()
		app := s.apps[packageName]
		s.mu.RUnlock()
		if app != nil {
			s.sendEnvelope(app.Conn, constant.AppConnectionError, dto.ConnectionErrorPayload{
				Reason:  constant.CloseReasonUnknownKind,
				Message: "unsupported message type " + env.Type,
			})
			app.Conn.CloseWithReason(constant.CloseReasonUnknownKind)
		}
	}
}

func (s *UserSession) handleSubscriptionUpdate(packageName string, env dto.Envelope) {
	var p dto.SubscriptionUpdatePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		s.logBadPayload(packageName, env.Type, err)
		return
	}

	specs, err := streams.ParseSpecs(p.Subscriptions)
	if err != nil {
		// Invalid subscription syntax closes the offending connection
		// with a machine-readable reason; nothing is partially applied.
		s.mu.RLock()
		app := s.apps[packageName]
		s.mu.RUnlock()
		if app != nil {
			s.sendEnvelope(app.Conn, constant.AppConnectionError, dto.ConnectionErrorPayload{
				Reason:  constant.CloseReasonBadSubscription,
				Message: err.Error(),
			})
			app.Conn.CloseWithReason(constant.CloseReasonBadSubscription)
		}
		return
	}

	s.subs.UpdateSubscriptions(packageName, specs)
	if err := s.loc.HandleSubscriptionChange(context.Background()); err != nil {
		s.deps.Logger.Warn("Session", "Tier recompute failed", map[string]interface{}{
			"session_id": s.ID, "error": err.Error(),
		})
	}
	s.syncTranscriptionStreams(context.Background())
	s.publish(events.SubscriptionChanged, map[string]interface{}{"package": packageName})
}

// syncTranscriptionStreams starts provider streams for newly wanted
// languages and stops those nobody wants anymore.
func (s *UserSession) syncTranscriptionStreams(ctx context.Context) {
	wanted := make(map[string]bool)
	for _, lang := range s.subs.TranscriptionLanguages() {
		wanted[lang] = true
	}

	for lang, stream := range s.transcripts {
		if !wanted[lang] {
			stream.Stop()
			delete(s.transcripts, lang)
		}
	}

	for lang := range wanted {
		if _, ok := s.transcripts[lang]; ok {
			continue
		}
		stream := transcription.NewStream(lang, s.deps.ProviderFactory(), s, s.deps.Logger)
		if err := stream.Start(ctx); err != nil {
			s.deps.Logger.Error("Session", "Transcription stream start failed", map[string]interface{}{
				"session_id": s.ID, "language": lang, "error": err.Error(),
			})
			continue
		}
		s.transcripts[lang] = stream
	}
}

// --- transcription sink (called from stream goroutines) ---

func (s *UserSession) OnInterim(language, text string, tail []transcription.Token) {
	s.post(func() { s.emitTranscription(language, text, tail, false) })
}

func (s *UserSession) OnFinal(language, text string) {
	s.post(func() { s.emitTranscription(language, text, nil, true) })
}

func (s *UserSession) OnError(language string, err error) {
	s.post(func() {
		s.deps.Logger.Error("Session", "Transcription provider failed", map[string]interface{}{
			"session_id": s.ID, "language": language, "error": err.Error(),
		})
		// The stream already cleared itself; drop it so a later
		// subscription change can start a fresh provider session.
		delete(s.transcripts, language)
	})
}

func (s *UserSession) emitTranscription(language, text string, tail []transcription.Token, isFinal bool) {
	payload := dto.TranscriptionResultPayload{
		Language: language,
		Text:     text,
		IsFinal:  isFinal,
	}
	for _, tok := range tail {
		payload.Tail = append(payload.Tail, dto.TailTokenRecord{
			Text:       tok.Text,
			Confidence: tok.Confidence,
			StartMs:    tok.StartMs,
			EndMs:      tok.EndMs,
		})
	}
	ev := streams.Spec{Type: streams.TypeTranscription, Param: language}
	for _, pkg := range s.subs.RouteDeviceEvent(ev) {
		s.sendToAppInternal(pkg, constant.CloudTranscription, payload)
	}
}

// --- routing & command surface ---

func (s *UserSession) routeEvent(ev streams.Spec, data json.RawMessage) {
	for _, pkg := range s.subs.RouteDeviceEvent(ev) {
		s.sendToAppInternal(pkg, constant.CloudDataStream, dto.DataStreamPayload{
			StreamType: ev.String(),
			SessionID:  s.ID,
			Data:       data,
		})
	}
}

// SendToDevice queues a message for the device. Safe from any goroutine.
func (s *UserSession) SendToDevice(msgType string, payload interface{}) error {
	return s.sendToDeviceInternal(msgType, payload)
}

// SendToApp queues a message for one app. Safe from any goroutine.
func (s *UserSession) SendToApp(packageName, msgType string, payload interface{}) error {
	return s.sendToAppInternal(packageName, msgType, payload)
}

func (s *UserSession) sendToDeviceInternal(msgType string, payload interface{}) error {
	s.mu.RLock()
	conn := s.device
	s.mu.RUnlock()
	if conn == nil {
		return ErrNoDevice
	}
	return s.sendEnvelope(conn, msgType, payload)
}

func (s *UserSession) sendToAppInternal(packageName, msgType string, payload interface{}) error {
	s.mu.RLock()
	app := s.apps[packageName]
	s.mu.RUnlock()
	if app == nil {
		return ErrNoApp
	}
	return s.sendEnvelope(app.Conn, msgType, payload)
}

func (s *UserSession) sendEnvelope(conn Conn, msgType string, payload interface{}) error {
	env, err := dto.NewEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	env.SessionID = s.ID
	return conn.WriteJSON(env)
}

func (s *UserSession) notifyAppState() {
	loading, active := s.Snapshot()
	if err := s.sendToDeviceInternal(constant.CloudAppStateChange, dto.AppStateChangePayload{
		LoadingApps: loading,
		ActiveApps:  active,
	}); err != nil && err != ErrNoDevice {
		s.deps.Logger.Warn("Session", "App state notify failed", map[string]interface{}{
			"session_id": s.ID, "error": err.Error(),
		})
	}
}

func (s *UserSession) publish(eventType string, extra map[string]interface{}) {
	if s.deps.Publish == nil {
		return
	}
	s.deps.Publish(events.NewSessionEvent(eventType, s.ID, s.UserID, extra))
}

func (s *UserSession) logBadPayload(origin, msgType string, err error) {
	s.deps.Logger.Warn("Session", "Malformed payload", map[string]interface{}{
		"session_id": s.ID, "origin": origin, "type": msgType, "error": err.Error(),
	})
}

// --- teardown ---

// Teardown cascades session destruction: every app socket closes, all
// three arbiters are disposed, timers and pending polls are cancelled.
// In-flight provider calls complete and are discarded. Idempotent.
func (s *UserSession) Teardown(reason string) {
	s.stopOnce.Do(func() {
		done := make(chan struct{})
		s.post(func() {
			defer close(done)

			s.mu.Lock()
			device := s.device
			apps := s.apps
			s.device = nil
			s.apps = make(map[string]*AppConnection)
			s.loading = make(map[string]time.Time)
			s.active = make(map[string]bool)
			s.lost = make(map[string]*AppConnection)
			s.mu.Unlock()

			for _, app := range apps {
				app.Conn.CloseWithReason(reason)
			}
			if device != nil {
				device.CloseWithReason(reason)
			}

			s.loc.Dispose()
			for lang, stream := range s.transcripts {
				stream.Stop()
				delete(s.transcripts, lang)
			}
		})
		<-done
		close(s.closed)
	})
}
