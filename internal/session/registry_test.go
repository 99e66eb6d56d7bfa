package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glasses-cloud-be/internal/constant"
	"glasses-cloud-be/internal/pkg/logger"
	"glasses-cloud-be/internal/repository/memory"
	"glasses-cloud-be/internal/transcription"
)

func newRegistrySession(t *testing.T, id, userID string) *UserSession {
	t.Helper()
	s := New(id, userID, Deps{
		Cfg:             testConfig(),
		Storage:         memory.NewUserStorage(),
		ProviderFactory: transcription.NullProviderFactory,
		Logger:          logger.NewNopLogger(),
	})
	s.Start(context.Background())
	return s
}

func TestRegistryIndexesByIDAndUser(t *testing.T) {
	r := NewRegistry(time.Minute, logger.NewNopLogger())
	defer r.Shutdown(constant.CloseReasonSessionEnded)

	s := newRegistrySession(t, "sess-1", "user@example.com")
	r.Add(s)

	got, ok := r.GetByID("sess-1")
	require.True(t, ok)
	assert.Same(t, s, got)

	got, ok = r.GetByUser("user@example.com")
	require.True(t, ok)
	assert.Same(t, s, got)

	assert.Equal(t, 1, r.Count())
}

func TestRegistryRemoveTearsDown(t *testing.T) {
	r := NewRegistry(time.Minute, logger.NewNopLogger())

	s := newRegistrySession(t, "sess-1", "user@example.com")
	r.Add(s)
	appConn := &fakeConn{}
	s.ConnectApp("com.example.captions", appConn)

	r.Remove("sess-1", constant.CloseReasonSessionEnded)

	_, ok := r.GetByID("sess-1")
	assert.False(t, ok)
	_, ok = r.GetByUser("user@example.com")
	assert.False(t, ok)

	closed, reason := appConn.closedWith()
	assert.True(t, closed)
	assert.Equal(t, constant.CloseReasonSessionEnded, reason)
}

func TestRegistryGraceExpiryTearsDownOrphan(t *testing.T) {
	r := NewRegistry(50*time.Millisecond, logger.NewNopLogger())

	s := newRegistrySession(t, "sess-1", "user@example.com")
	r.Add(s)
	appConn := &fakeConn{}
	s.ConnectApp("com.example.captions", appConn)

	r.MarkOrphaned(s)

	assert.Eventually(t, func() bool {
		return r.Count() == 0
	}, 2*time.Second, 20*time.Millisecond)

	closed, reason := appConn.closedWith()
	assert.True(t, closed)
	assert.Equal(t, constant.CloseReasonSessionEnded, reason)
}

func TestRegistryReclaimCancelsGrace(t *testing.T) {
	r := NewRegistry(50*time.Millisecond, logger.NewNopLogger())
	defer r.Shutdown(constant.CloseReasonSessionEnded)

	s := newRegistrySession(t, "sess-1", "user@example.com")
	r.Add(s)

	r.MarkOrphaned(s)
	r.Reclaim(s)

	time.Sleep(400 * time.Millisecond)
	_, ok := r.GetByID("sess-1")
	assert.True(t, ok)
}

func TestRegistryGraceSparesReattachedDevice(t *testing.T) {
	r := NewRegistry(50*time.Millisecond, logger.NewNopLogger())
	defer r.Shutdown(constant.CloseReasonSessionEnded)

	s := newRegistrySession(t, "sess-1", "user@example.com")
	r.Add(s)
	r.MarkOrphaned(s)

	// Device reattaches but Reclaim is lost (crash between the two steps).
	// The eviction callback still spares the session.
	s.AttachDevice(&fakeConn{})

	time.Sleep(400 * time.Millisecond)
	_, ok := r.GetByID("sess-1")
	assert.True(t, ok)
}

func TestRegistryShutdown(t *testing.T) {
	r := NewRegistry(time.Minute, logger.NewNopLogger())

	for _, id := range []string{"sess-1", "sess-2", "sess-3"} {
		r.Add(newRegistrySession(t, id, id+"@example.com"))
	}
	require.Equal(t, 3, r.Count())

	r.Shutdown(constant.CloseReasonSessionEnded)
	assert.Equal(t, 0, r.Count())
}
