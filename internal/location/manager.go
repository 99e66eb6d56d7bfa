package location

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"glasses-cloud-be/internal/config"
	"glasses-cloud-be/internal/constant"
	"glasses-cloud-be/internal/dto"
	"glasses-cloud-be/internal/pkg/logger"
	"glasses-cloud-be/internal/repository/contract"

	"github.com/patrickmn/go-cache"
)

// Sender is the session command surface; the arbiter never writes a socket.
type Sender interface {
	SendToDevice(msgType string, payload interface{}) error
	SendToApp(packageName, msgType string, payload interface{}) error
}

// SubscriptionView is the slice of the subscription router the arbiter
// reads from.
type SubscriptionView interface {
	EffectiveLocationTier() config.Tier
	HasLocationStream() bool
	LocationStreamSubscribers() []string
}

// pendingPoll correlates a hardware single-fix command back to the app that
// asked. fulfilled guards the eviction callback so timeout and fulfillment
// cannot both fire. The timer delivers the timeout at the deadline itself;
// the cache janitor is only a backstop.
type pendingPoll struct {
	correlationID string
	requester     string
	fulfilled     atomic.Bool
	timer         *time.Timer
}

// Manager turns many overlapping accuracy requests into one hardware tier
// and serves polls from cache when fresh enough. One instance per session,
// driven from the session's message loop; only the pending-poll TTL janitor
// runs outside it.
type Manager struct {
	userID        string
	tiers         config.TierTable
	subs          SubscriptionView
	sender        Sender
	storage       contract.IUserStorage
	log           logger.ILogger
	pending       *cache.Cache
	pollTimeout   time.Duration
	lastFix       *contract.LocationFix
	effectiveTier string
	now           func() time.Time
}

func NewManager(
	userID string,
	tiers config.TierTable,
	subs SubscriptionView,
	sender Sender,
	storage contract.IUserStorage,
	pollTimeout time.Duration,
	log logger.ILogger,
) *Manager {
	janitor := pollTimeout / 4
	if janitor < 10*time.Millisecond {
		janitor = 10 * time.Millisecond
	}

	m := &Manager{
		userID:        userID,
		tiers:         tiers,
		subs:          subs,
		sender:        sender,
		storage:       storage,
		log:           log,
		pending:       cache.New(pollTimeout, janitor),
		pollTimeout:   pollTimeout,
		effectiveTier: tiers.Lowest().Name,
		now:           time.Now,
	}
	m.pending.OnEvicted(func(_ string, v interface{}) {
		m.onPollEvicted(v.(*pendingPoll))
	})
	return m
}

// Prime loads the persisted last-known fix so a fresh session can serve
// polls from cache immediately. Best-effort.
func (m *Manager) Prime(ctx context.Context) {
	fix, err := m.storage.LoadLocationCache(ctx, m.userID)
	if err != nil {
		m.log.Warn("Location", "Could not load persisted fix", map[string]interface{}{
			"user_id": m.userID, "error": err.Error(),
		})
		return
	}
	m.lastFix = fix
}

// EffectiveTier is the tier currently commanded of the hardware.
func (m *Manager) EffectiveTier() string {
	return m.effectiveTier
}

// HandleSubscriptionChange recomputes the effective tier from the router's
// aggregate. The new value is persisted before the device is commanded so a
// crash mid-update cannot leave stored state and hardware disagreeing; a
// same-tier result is a no-op.
func (m *Manager) HandleSubscriptionChange(ctx context.Context) error {
	tier := m.subs.EffectiveLocationTier()
	if tier.Name == m.effectiveTier {
		return nil
	}

	if err := m.storage.SavePreference(ctx, m.userID, "location_tier", tier.Name); err != nil {
		m.log.Error("Location", "Tier persist failed, device not commanded", map[string]interface{}{
			"user_id": m.userID, "tier": tier.Name, "error": err.Error(),
		})
		return fmt.Errorf("persist effective tier: %w", err)
	}

	if err := m.sender.SendToDevice(constant.CloudSetLocationTier, dto.SetLocationTierPayload{Tier: tier.Name}); err != nil {
		m.log.Warn("Location", "Tier command delivery failed", map[string]interface{}{
			"user_id": m.userID, "tier": tier.Name, "error": err.Error(),
		})
	}

	m.effectiveTier = tier.Name
	return nil
}

// HandlePollRequest resolves a single-fix poll in three short-circuiting
// steps: hot continuous stream, fresh cache, hardware fix.
func (m *Manager) HandlePollRequest(ctx context.Context, accuracy, correlationID, requester string) error {
	tier, ok := m.tiers.Lookup(accuracy)
	if !ok {
		return fmt.Errorf("unknown accuracy tier %q", accuracy)
	}

	// 1. A continuous stream at or above "high" keeps the cache hot enough
	// for any poll.
	if m.lastFix != nil && m.subs.HasLocationStream() && m.tiers.AtLeast(m.effectiveTier, "high") {
		return m.answerFromCache(correlationID, requester)
	}

	// 2. Cache age within the requested tier's budget, boundary inclusive.
	if m.lastFix != nil {
		age := m.now().Sub(m.lastFix.Timestamp)
		if age.Milliseconds() <= tier.MaxAge.Milliseconds() {
			return m.answerFromCache(correlationID, requester)
		}
	}

	// 3. Hardware fix: register the correlation first so a fast reply
	// cannot race an unregistered poll.
	poll := &pendingPoll{correlationID: correlationID, requester: requester}
	m.pending.Set(correlationID, poll, cache.DefaultExpiration)
	poll.timer = time.AfterFunc(m.pollTimeout, func() {
		m.pending.Delete(correlationID)
	})

	if err := m.sender.SendToDevice(constant.CloudRequestSingleFix, dto.RequestSingleFixPayload{
		Accuracy:      accuracy,
		CorrelationID: correlationID,
	}); err != nil {
		return fmt.Errorf("request single fix: %w", err)
	}
	return nil
}

// HandleDeviceLocationUpdate consumes a fix from the device: a poll reply
// goes only to its original requester, a continuous broadcast to every
// stream subscriber. The cache refreshes on both paths, best-effort.
func (m *Manager) HandleDeviceLocationUpdate(ctx context.Context, update dto.LocationUpdatePayload) {
	fix := contract.LocationFix{
		Lat:       update.Lat,
		Lng:       update.Lng,
		Accuracy:  update.Accuracy,
		Timestamp: m.now(),
	}

	if update.CorrelationID != "" {
		if v, found := m.pending.Get(update.CorrelationID); found {
			poll := v.(*pendingPoll)
			poll.fulfilled.Store(true)
			if poll.timer != nil {
				poll.timer.Stop()
			}
			m.pending.Delete(update.CorrelationID)

			if err := m.sender.SendToApp(poll.requester, constant.CloudLocationResult, dto.LocationResultPayload{
				CorrelationID: update.CorrelationID,
				Lat:           update.Lat,
				Lng:           update.Lng,
				Accuracy:      update.Accuracy,
			}); err != nil {
				m.log.Warn("Location", "Poll result delivery failed", map[string]interface{}{
					"package": poll.requester, "error": err.Error(),
				})
			}
		}
		// Unknown correlation means the poll already timed out; the fix
		// still refreshes the cache below.
	} else {
		for _, pkg := range m.subs.LocationStreamSubscribers() {
			if err := m.sender.SendToApp(pkg, constant.CloudLocationResult, dto.LocationResultPayload{
				Lat:      update.Lat,
				Lng:      update.Lng,
				Accuracy: update.Accuracy,
			}); err != nil {
				m.log.Warn("Location", "Stream delivery failed", map[string]interface{}{
					"package": pkg, "error": err.Error(),
				})
			}
		}
	}

	m.lastFix = &fix
	if err := m.storage.SaveLocationCache(ctx, m.userID, fix); err != nil {
		m.log.Warn("Location", "Cache persist failed", map[string]interface{}{
			"user_id": m.userID, "error": err.Error(),
		})
	}
}

// PendingCount reports outstanding polls; health and tests use it.
func (m *Manager) PendingCount() int {
	return m.pending.ItemCount()
}

// Dispose drops all pending polls without firing timeouts. Called on
// session teardown.
func (m *Manager) Dispose() {
	for _, item := range m.pending.Items() {
		poll := item.Object.(*pendingPoll)
		poll.fulfilled.Store(true)
		if poll.timer != nil {
			poll.timer.Stop()
		}
	}
	m.pending.Flush()
}

func (m *Manager) answerFromCache(correlationID, requester string) error {
	age := m.now().Sub(m.lastFix.Timestamp)
	return m.sender.SendToApp(requester, constant.CloudLocationResult, dto.LocationResultPayload{
		CorrelationID: correlationID,
		Lat:           m.lastFix.Lat,
		Lng:           m.lastFix.Lng,
		Accuracy:      m.lastFix.Accuracy,
		FromCache:     true,
		AgeMs:         age.Milliseconds(),
	})
}

// onPollEvicted fires when a pending entry leaves the table. Fulfilled
// entries were already answered; everything else gets a timeout error.
func (m *Manager) onPollEvicted(poll *pendingPoll) {
	if poll.fulfilled.Load() {
		return
	}
	m.log.Warn("Location", "Poll timed out", map[string]interface{}{
		"correlation_id": poll.correlationID, "package": poll.requester,
	})
	if err := m.sender.SendToApp(poll.requester, constant.CloudLocationTimeout, dto.LocationTimeoutPayload{
		CorrelationID: poll.correlationID,
	}); err != nil {
		m.log.Warn("Location", "Timeout delivery failed", map[string]interface{}{
			"package": poll.requester, "error": err.Error(),
		})
	}
}
