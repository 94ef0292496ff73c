package coordinator

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teleconsult-backend/internal/domain"
	apperrors "teleconsult-backend/pkg/errors"
)

// TestGetOrCreateIdempotent checks one session object per key under concurrency
func TestGetOrCreateIdempotent(t *testing.T) {
	registry := testRegistry(newCaptureSender(), nil)

	const workers = 16
	sessions := make([]*CallSession, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessions[i] = registry.GetOrCreate("consult-1")
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		assert.Same(t, sessions[0], sessions[i])
	}
	assert.Equal(t, 1, registry.SessionCount())
}

// TestGetUnknownSession checks lookup signals SessionNotFound
func TestGetUnknownSession(t *testing.T) {
	registry := testRegistry(newCaptureSender(), nil)

	_, err := registry.Get("consult-missing")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSessionNotFound))
}

// TestDisconnectClearsConnectionIndex checks reverse lookup bookkeeping
func TestDisconnectClearsConnectionIndex(t *testing.T) {
	registry := testRegistry(newCaptureSender(), nil)

	_, _, err := registry.Join("consult-1", "conn-a", testJoinInfo(domain.RolePatient, "Alice"))
	require.NoError(t, err)
	assert.Equal(t, 1, registry.ConnectionCount())

	_, err = registry.Disconnect("conn-a", domain.LeaveGraceful)
	require.NoError(t, err)
	assert.Equal(t, 0, registry.ConnectionCount())

	_, err = registry.Disconnect("conn-a", domain.LeaveGraceful)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSessionNotFound))
}

// TestJanitorEvictsStaleSession covers the stale sweep and clean recreation:
// an idle empty session is removed and the key starts fresh afterwards
func TestJanitorEvictsStaleSession(t *testing.T) {
	registry := NewRegistry(Config{StaleThreshold: 10 * time.Millisecond}, newCaptureSender(), nil, nil)

	stale := registry.GetOrCreate("consult-1")
	_, err := stale.Chat("conn-ghost", "hi") // unknown sender, state untouched
	require.Error(t, err)

	time.Sleep(20 * time.Millisecond)
	registry.sweep(time.Now())

	assert.Equal(t, 0, registry.SessionCount())

	fresh := registry.GetOrCreate("consult-1")
	assert.NotSame(t, stale, fresh)
	assert.Equal(t, domain.SessionWaiting, fresh.State())
	assert.Equal(t, 0, fresh.ParticipantCount())
}

// TestJanitorKeepsOccupiedSession checks an occupied session never expires
func TestJanitorKeepsOccupiedSession(t *testing.T) {
	registry := NewRegistry(Config{StaleThreshold: time.Nanosecond}, newCaptureSender(), nil, nil)

	_, _, err := registry.Join("consult-1", "conn-a", testJoinInfo(domain.RolePatient, "Alice"))
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	registry.sweep(time.Now())

	assert.Equal(t, 1, registry.SessionCount())
}

// TestFinalizedSessionRemovedAfterGrace checks the delayed eviction path
func TestFinalizedSessionRemovedAfterGrace(t *testing.T) {
	registry := NewRegistry(Config{RemovalGrace: 20 * time.Millisecond}, newCaptureSender(), nil, nil)

	session, _, err := registry.Join("consult-1", "conn-a", testJoinInfo(domain.RoleDoctor, "Dr. Bob"))
	require.NoError(t, err)

	require.NoError(t, session.EndCall("conn-a"))
	assert.Equal(t, domain.SessionEnded, session.State())

	// the session lingers through the grace window for trailing events
	assert.Equal(t, 1, registry.SessionCount())

	assert.Eventually(t, func() bool {
		return registry.SessionCount() == 0
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, registry.ConnectionCount())
}

// TestJoinReplacesFinalizedSession checks no residual state leaks when a
// new call starts while the previous one waits out its grace window
func TestJoinReplacesFinalizedSession(t *testing.T) {
	registry := NewRegistry(Config{RemovalGrace: time.Hour}, newCaptureSender(), nil, nil)

	old, _, err := registry.Join("consult-1", "conn-a", testJoinInfo(domain.RoleDoctor, "Dr. Bob"))
	require.NoError(t, err)
	require.NoError(t, old.EndCall("conn-a"))

	fresh, _, err := registry.Join("consult-1", "conn-b", testJoinInfo(domain.RolePatient, "Alice"))
	require.NoError(t, err)

	assert.NotSame(t, old, fresh)
	assert.Equal(t, domain.SessionWaiting, fresh.State())
	assert.Equal(t, 1, fresh.ParticipantCount())
}
