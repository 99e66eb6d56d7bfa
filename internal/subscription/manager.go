package subscription

import (
	"sort"

	"glasses-cloud-be/internal/config"
	"glasses-cloud-be/internal/pkg/logger"
	"glasses-cloud-be/pkg/streams"
)

// Manager is the per-session subscription table. It computes routing targets
// and effective-rate aggregates; it never touches a socket. All methods are
// called from the owning session's message loop, so no locking here.
type Manager struct {
	subs  map[string][]streams.Spec // packageName -> current subscription list
	tiers config.TierTable
	log   logger.ILogger
}

func NewManager(tiers config.TierTable, log logger.ILogger) *Manager {
	return &Manager{
		subs:  make(map[string][]streams.Spec),
		tiers: tiers,
		log:   log,
	}
}

// UpdateSubscriptions replaces the app's subscription list wholesale. The
// previous list is gone regardless of overlap; incremental merge is
// explicitly not supported.
func (m *Manager) UpdateSubscriptions(packageName string, specs []streams.Spec) {
	if len(specs) == 0 {
		delete(m.subs, packageName)
	} else {
		m.subs[packageName] = append([]streams.Spec(nil), specs...)
	}
	m.log.Debug("Subscription", "Subscriptions replaced", map[string]interface{}{
		"package": packageName,
		"count":   len(specs),
	})
}

// RemoveApp drops every subscription held by the app.
func (m *Manager) RemoveApp(packageName string) {
	delete(m.subs, packageName)
}

// Subscriptions returns the app's current list (read-only view).
func (m *Manager) Subscriptions(packageName string) []streams.Spec {
	return m.subs[packageName]
}

// RouteDeviceEvent returns every app whose subscription covers the event,
// parameterized kinds included. Result order is deterministic.
func (m *Manager) RouteDeviceEvent(event streams.Spec) []string {
	var targets []string
	for pkg, specs := range m.subs {
		for _, s := range specs {
			if s.Matches(event) {
				targets = append(targets, pkg)
				break
			}
		}
	}
	sort.Strings(targets)
	return targets
}

// EffectiveLocationTier aggregates all location_stream subscriptions into
// the single tier actually requested of the hardware: the highest-fidelity
// tier wins, ties are a no-op, no subscribers means the lowest tier.
func (m *Manager) EffectiveLocationTier() config.Tier {
	var names []string
	for _, specs := range m.subs {
		for _, s := range specs {
			if s.Type == streams.TypeLocationStream && s.Param != "" {
				names = append(names, s.Param)
			}
		}
	}
	if tier, ok := m.tiers.Highest(names); ok {
		return tier
	}
	return m.tiers.Lowest()
}

// HasLocationStream reports whether any app holds a continuous location
// subscription at all (tiered or bare).
func (m *Manager) HasLocationStream() bool {
	for _, specs := range m.subs {
		for _, s := range specs {
			if s.Type == streams.TypeLocationStream {
				return true
			}
		}
	}
	return false
}

// LocationStreamSubscribers lists every app holding a continuous location
// subscription, whatever its tier. Continuous broadcasts go to all of them;
// the tier parameter grades the hardware request, it does not filter
// delivery.
func (m *Manager) LocationStreamSubscribers() []string {
	var targets []string
	for pkg, specs := range m.subs {
		for _, s := range specs {
			if s.Type == streams.TypeLocationStream {
				targets = append(targets, pkg)
				break
			}
		}
	}
	sort.Strings(targets)
	return targets
}

// TranscriptionLanguages lists the distinct languages apps currently want
// transcribed, sorted. The session uses this to start and stop provider
// streams.
func (m *Manager) TranscriptionLanguages() []string {
	seen := make(map[string]bool)
	for _, specs := range m.subs {
		for _, s := range specs {
			if s.Type == streams.TypeTranscription {
				seen[s.Param] = true
			}
		}
	}
	langs := make([]string, 0, len(seen))
	for l := range seen {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	return langs
}
