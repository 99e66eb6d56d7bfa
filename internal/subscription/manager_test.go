package subscription

import (
	"testing"

	"glasses-cloud-be/internal/config"
	"glasses-cloud-be/internal/pkg/logger"
	"glasses-cloud-be/pkg/streams"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(config.DefaultTierTable(), logger.NewNopLogger())
}

func mustSpecs(t *testing.T, raw ...string) []streams.Spec {
	t.Helper()
	specs, err := streams.ParseSpecs(raw)
	require.NoError(t, err)
	return specs
}

func mustSpec(t *testing.T, raw string) streams.Spec {
	t.Helper()
	s, err := streams.ParseSpec(raw)
	require.NoError(t, err)
	return s
}

func TestRouteDeviceEvent(t *testing.T) {
	m := newManager(t)
	m.UpdateSubscriptions("com.example.captions", mustSpecs(t, "transcription:en-US", "vad"))
	m.UpdateSubscriptions("com.example.subtitulos", mustSpecs(t, "transcription:es-ES"))
	m.UpdateSubscriptions("com.example.recorder", mustSpecs(t, "all"))

	tests := []struct {
		name  string
		event string
		want  []string
	}{
		{
			name:  "language parameter selects only matching app plus all",
			event: "transcription:en-US",
			want:  []string{"com.example.captions", "com.example.recorder"},
		},
		{
			name:  "other language excludes non-matching app",
			event: "transcription:es-ES",
			want:  []string{"com.example.recorder", "com.example.subtitulos"},
		},
		{
			name:  "plain kind",
			event: "vad",
			want:  []string{"com.example.captions", "com.example.recorder"},
		},
		{
			name:  "unsubscribed kind only hits all",
			event: "button_press",
			want:  []string{"com.example.recorder"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.RouteDeviceEvent(mustSpec(t, tt.event)))
		})
	}
}

func TestUpdateSubscriptionsIsWholesaleReplacement(t *testing.T) {
	m := newManager(t)
	m.UpdateSubscriptions("com.example.app", mustSpecs(t, "vad", "button_press"))
	m.UpdateSubscriptions("com.example.app", mustSpecs(t, "head_position"))

	assert.Empty(t, m.RouteDeviceEvent(mustSpec(t, "vad")))
	assert.Equal(t, []string{"com.example.app"}, m.RouteDeviceEvent(mustSpec(t, "head_position")))

	// Empty update clears the app entirely.
	m.UpdateSubscriptions("com.example.app", nil)
	assert.Empty(t, m.RouteDeviceEvent(mustSpec(t, "head_position")))
}

func TestEffectiveLocationTier(t *testing.T) {
	m := newManager(t)

	// No subscribers: lowest tier.
	assert.Equal(t, "reduced", m.EffectiveLocationTier().Name)

	m.UpdateSubscriptions("a", mustSpecs(t, "location_stream:kilometer"))
	m.UpdateSubscriptions("b", mustSpecs(t, "location_stream:high"))
	m.UpdateSubscriptions("c", mustSpecs(t, "location_stream:reduced"))
	assert.Equal(t, "high", m.EffectiveLocationTier().Name)

	// Removing the only app at the highest tier lowers the effective tier
	// to the next-highest remaining.
	m.RemoveApp("b")
	assert.Equal(t, "kilometer", m.EffectiveLocationTier().Name)

	m.RemoveApp("a")
	m.RemoveApp("c")
	assert.Equal(t, "reduced", m.EffectiveLocationTier().Name)
}

func TestHasLocationStream(t *testing.T) {
	m := newManager(t)
	assert.False(t, m.HasLocationStream())

	m.UpdateSubscriptions("a", mustSpecs(t, "location_stream"))
	assert.True(t, m.HasLocationStream())

	m.UpdateSubscriptions("a", mustSpecs(t, "vad"))
	assert.False(t, m.HasLocationStream())
}

func TestTranscriptionLanguages(t *testing.T) {
	m := newManager(t)
	m.UpdateSubscriptions("a", mustSpecs(t, "transcription:en-US"))
	m.UpdateSubscriptions("b", mustSpecs(t, "transcription:es-ES", "transcription:en-US"))

	assert.Equal(t, []string{"en-US", "es-ES"}, m.TranscriptionLanguages())

	m.RemoveApp("b")
	assert.Equal(t, []string{"en-US"}, m.TranscriptionLanguages())
}
