package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"

	"glasses-cloud-be/internal/constant"
	"glasses-cloud-be/internal/pkg/logger"
)

// graceEntry guards the eviction callback: Delete also fires it, so
// Reclaim flips reclaimed first and the callback becomes a no-op.
type graceEntry struct {
	session   *UserSession
	reclaimed atomic.Bool
}

// Registry owns every live session. One session per user: a device
// reconnect reclaims the existing session within the grace window instead
// of building a new one, so app connections and subscriptions survive
// brief network drops.
type Registry struct {
	mu     sync.RWMutex
	byID   map[string]*UserSession
	byUser map[string]*UserSession

	grace *cache.Cache
	log   logger.ILogger
}

func NewRegistry(gracePeriod time.Duration, log logger.ILogger) *Registry {
	janitor := gracePeriod / 4
	if janitor < 100*time.Millisecond {
		janitor = 100 * time.Millisecond
	}

	r := &Registry{
		byID:   make(map[string]*UserSession),
		byUser: make(map[string]*UserSession),
		grace:  cache.New(gracePeriod, janitor),
		log:    log,
	}
	r.grace.OnEvicted(func(_ string, v interface{}) {
		r.onGraceExpired(v.(*graceEntry))
	})
	return r
}

// Add registers a freshly built session under both indexes.
func (r *Registry) Add(s *UserSession) {
	r.mu.Lock()
	r.byID[s.ID] = s
	r.byUser[s.UserID] = s
	r.mu.Unlock()
}

func (r *Registry) GetByID(id string) (*UserSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	return s, ok
}

func (r *Registry) GetByUser(userID string) (*UserSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byUser[userID]
	return s, ok
}

// MarkOrphaned starts the grace timer after the device socket drops. If no
// device reclaims the session before the timer fires, the session is torn
// down.
func (r *Registry) MarkOrphaned(s *UserSession) {
	r.grace.Set(s.ID, &graceEntry{session: s}, cache.DefaultExpiration)
	r.log.Info("Registry", "Session orphaned, grace timer started", map[string]interface{}{
		"session_id": s.ID, "user_id": s.UserID,
	})
}

// Reclaim cancels the grace timer when a device reattaches in time.
func (r *Registry) Reclaim(s *UserSession) {
	if v, ok := r.grace.Get(s.ID); ok {
		v.(*graceEntry).reclaimed.Store(true)
	}
	r.grace.Delete(s.ID)
}

func (r *Registry) onGraceExpired(e *graceEntry) {
	if e.reclaimed.Load() || e.session.HasDevice() {
		return
	}
	r.log.Info("Registry", "Grace period expired, tearing session down", map[string]interface{}{
		"session_id": e.session.ID, "user_id": e.session.UserID,
	})
	r.Remove(e.session.ID, constant.CloseReasonSessionEnded)
}

// Remove tears the session down and drops it from both indexes.
func (r *Registry) Remove(id, reason string) {
	r.mu.Lock()
	s, ok := r.byID[id]
	if ok {
		delete(r.byID, id)
		if r.byUser[s.UserID] == s {
			delete(r.byUser, s.UserID)
		}
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	s.Teardown(reason)
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// All snapshots the live sessions, for health reporting.
func (r *Registry) All() []*UserSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*UserSession, 0, len(r.byID))
	for _, s := range r.byID {
		out = append(out, s)
	}
	return out
}

// Shutdown tears every session down. Used on server stop.
func (r *Registry) Shutdown(reason string) {
	for _, s := range r.All() {
		r.Remove(s.ID, reason)
	}
	r.grace.Flush()
}
