package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teleconsult-backend/internal/domain"
	apperrors "teleconsult-backend/pkg/errors"
)

// TestTwoPartyCallGoesLive covers the join/ready happy path:
// two participants join, both signal ready, the session connects
func TestTwoPartyCallGoesLive(t *testing.T) {
	sender := newCaptureSender()
	registry := testRegistry(sender, nil)

	session, _, err := registry.Join("consult-1", "conn-a", testJoinInfo(domain.RolePatient, "Alice"))
	require.NoError(t, err)
	_, _, err = registry.Join("consult-1", "conn-b", testJoinInfo(domain.RoleDoctor, "Dr. Bob"))
	require.NoError(t, err)

	// existing participant is told about the joiner, not the joiner itself
	assert.Equal(t, 1, sender.count("conn-a", EventParticipantJoined))
	assert.Equal(t, 0, sender.count("conn-b", EventParticipantJoined))

	assert.Equal(t, domain.SessionWaiting, session.State())

	session.SetReady("conn-a")
	assert.Equal(t, domain.SessionWaiting, session.State())

	session.SetReady("conn-b")
	assert.Equal(t, domain.SessionConnected, session.State())

	snap := session.Snapshot()
	require.NotNil(t, snap.StartedAt)
	startedAt := *snap.StartedAt

	// both participants hear the call start exactly once
	assert.Equal(t, 1, sender.count("conn-a", EventCallStarted))
	assert.Equal(t, 1, sender.count("conn-b", EventCallStarted))

	// a later ready event must not restart the call or move startedAt
	session.SetReady("conn-a")
	assert.Equal(t, domain.SessionConnected, session.State())
	assert.Equal(t, startedAt, *session.Snapshot().StartedAt)
}

// TestSessionNotConnectedBeforeTwoReady ensures a lone ready participant waits
func TestSessionNotConnectedBeforeTwoReady(t *testing.T) {
	sender := newCaptureSender()
	registry := testRegistry(sender, nil)

	session, _, err := registry.Join("consult-1", "conn-a", testJoinInfo(domain.RolePatient, "Alice"))
	require.NoError(t, err)

	session.SetReady("conn-a")
	assert.Equal(t, domain.SessionWaiting, session.State())
	assert.Equal(t, 0, sender.totalOfType(EventCallStarted))
}

// TestDuplicateConnectionRejected ensures a connection ID cannot join twice
func TestDuplicateConnectionRejected(t *testing.T) {
	registry := testRegistry(newCaptureSender(), nil)

	_, _, err := registry.Join("consult-1", "conn-a", testJoinInfo(domain.RolePatient, "Alice"))
	require.NoError(t, err)

	_, _, err = registry.Join("consult-1", "conn-a", testJoinInfo(domain.RoleDoctor, "Dr. Bob"))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDuplicateConnection))

	// the same connection ID is also rejected for a different consultation
	_, _, err = registry.Join("consult-2", "conn-a", testJoinInfo(domain.RoleDoctor, "Dr. Bob"))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDuplicateConnection))
}

// TestReadyFromUnknownConnectionIgnored covers the defensive no-op contract
func TestReadyFromUnknownConnectionIgnored(t *testing.T) {
	sender := newCaptureSender()
	registry := testRegistry(sender, nil)

	session, _, err := registry.Join("consult-1", "conn-a", testJoinInfo(domain.RolePatient, "Alice"))
	require.NoError(t, err)

	session.SetReady("conn-ghost")
	assert.Equal(t, domain.SessionWaiting, session.State())
	assert.Equal(t, 0, sender.totalOfType(EventParticipantReady))
}

// TestTimeoutDisconnectFallsBackToWaiting covers the live-call partial failure:
// one of two connected participants drops, the survivor keeps the session
func TestTimeoutDisconnectFallsBackToWaiting(t *testing.T) {
	sender := newCaptureSender()
	registry := testRegistry(sender, nil)

	session, _, err := registry.Join("consult-1", "conn-a", testJoinInfo(domain.RolePatient, "Alice"))
	require.NoError(t, err)
	_, _, err = registry.Join("consult-1", "conn-b", testJoinInfo(domain.RoleDoctor, "Dr. Bob"))
	require.NoError(t, err)

	session.SetReady("conn-a")
	session.SetReady("conn-b")
	require.Equal(t, domain.SessionConnected, session.State())

	_, err = registry.Disconnect("conn-b", domain.LeaveTimeout)
	require.NoError(t, err)

	assert.Equal(t, domain.SessionWaiting, session.State())

	left := sender.byType("conn-a", EventParticipantLeft)
	require.Len(t, left, 1)
	payload, ok := left[0].Payload.(ParticipantLeftPayload)
	require.True(t, ok)
	assert.Equal(t, domain.LeaveTimeout, payload.Reason)
	assert.Equal(t, "conn-b", payload.ConnectionID)
}

// TestLastLeaveEndsSessionWithFullSummary covers finalization: the summary
// counts every participant that ever joined, not just those present at the end
func TestLastLeaveEndsSessionWithFullSummary(t *testing.T) {
	sender := newCaptureSender()
	store := newFakeStore()
	registry := testRegistry(sender, store)

	session, _, err := registry.Join("consult-1", "conn-a", testJoinInfo(domain.RolePatient, "Alice"))
	require.NoError(t, err)
	_, _, err = registry.Join("consult-1", "conn-b", testJoinInfo(domain.RoleDoctor, "Dr. Bob"))
	require.NoError(t, err)

	session.SetReady("conn-a")
	session.SetReady("conn-b")
	require.Equal(t, domain.SessionConnected, session.State())

	_, err = registry.Disconnect("conn-a", domain.LeaveGraceful)
	require.NoError(t, err)
	_, err = registry.Disconnect("conn-b", domain.LeaveGraceful)
	require.NoError(t, err)

	assert.Equal(t, domain.SessionEnded, session.State())

	result := store.waitResult(t)
	assert.Equal(t, "consult-1", result.ConsultationID)
	assert.Equal(t, domain.SessionEnded, result.Status)
	assert.Equal(t, 2, result.Summary.ParticipantCount)
	assert.NotNil(t, result.StartedAt)
	assert.NotNil(t, result.EndedAt)
}

// TestMediaStatePatchMerged checks partial media updates merge and broadcast
func TestMediaStatePatchMerged(t *testing.T) {
	sender := newCaptureSender()
	registry := testRegistry(sender, nil)

	session, _, err := registry.Join("consult-1", "conn-a", testJoinInfo(domain.RolePatient, "Alice"))
	require.NoError(t, err)
	_, _, err = registry.Join("consult-1", "conn-b", testJoinInfo(domain.RoleDoctor, "Dr. Bob"))
	require.NoError(t, err)

	on := true
	session.UpdateMediaState("conn-a", domain.MediaStatePatch{AudioEnabled: &on})
	session.UpdateMediaState("conn-a", domain.MediaStatePatch{ScreenSharing: &on})

	changes := sender.byType("conn-b", EventMediaChange)
	require.Len(t, changes, 2)
	merged, ok := changes[1].Payload.(MediaChangePayload)
	require.True(t, ok)
	assert.True(t, merged.Media.AudioEnabled)
	assert.True(t, merged.Media.ScreenSharing)
	assert.False(t, merged.Media.VideoEnabled)

	// the actor does not receive its own media broadcast
	assert.Equal(t, 0, sender.count("conn-a", EventMediaChange))
}

// TestChatFanOutAndArchive checks chat reaches everyone and the archive
func TestChatFanOutAndArchive(t *testing.T) {
	sender := newCaptureSender()
	store := newFakeStore()
	registry := testRegistry(sender, store)

	session, _, err := registry.Join("consult-1", "conn-a", testJoinInfo(domain.RolePatient, "Alice"))
	require.NoError(t, err)
	_, _, err = registry.Join("consult-1", "conn-b", testJoinInfo(domain.RoleDoctor, "Dr. Bob"))
	require.NoError(t, err)

	msg, err := session.Chat("conn-a", "hello doctor")
	require.NoError(t, err)

	assert.Equal(t, 1, sender.count("conn-a", EventChatMessage))
	assert.Equal(t, 1, sender.count("conn-b", EventChatMessage))

	archived := store.waitChat(t)
	assert.Equal(t, msg.MessageID, archived.MessageID)
	assert.Equal(t, "hello doctor", archived.Content)
}

// TestChatReplayForNewJoiner checks a late joiner gets the capped history
func TestChatReplayForNewJoiner(t *testing.T) {
	sender := newCaptureSender()
	registry := NewRegistry(Config{ChatReplayLimit: 3}, sender, nil, nil)

	session, _, err := registry.Join("consult-1", "conn-a", testJoinInfo(domain.RolePatient, "Alice"))
	require.NoError(t, err)

	for _, text := range []string{"one", "two", "three", "four", "five"} {
		_, err := session.Chat("conn-a", text)
		require.NoError(t, err)
	}

	_, _, err = registry.Join("consult-1", "conn-b", testJoinInfo(domain.RoleDoctor, "Dr. Bob"))
	require.NoError(t, err)

	history := sender.byType("conn-b", EventChatHistory)
	require.Len(t, history, 1)
	payload, ok := history[0].Payload.(ChatHistoryPayload)
	require.True(t, ok)
	require.Len(t, payload.Messages, 3)
	assert.Equal(t, "three", payload.Messages[0].Content)
	assert.Equal(t, "five", payload.Messages[2].Content)
}

// TestEndCallRequiresModerator checks the role gate on explicit end
func TestEndCallRequiresModerator(t *testing.T) {
	sender := newCaptureSender()
	registry := testRegistry(sender, nil)

	session, _, err := registry.Join("consult-1", "conn-a", testJoinInfo(domain.RolePatient, "Alice"))
	require.NoError(t, err)
	_, _, err = registry.Join("consult-1", "conn-b", testJoinInfo(domain.RoleDoctor, "Dr. Bob"))
	require.NoError(t, err)

	err = session.EndCall("conn-a")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUnauthorized))
	assert.Equal(t, domain.SessionWaiting, session.State())

	err = session.EndCall("conn-b")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionEnded, session.State())
	assert.Equal(t, 1, sender.count("conn-a", EventCallForceEnded))
	assert.Equal(t, 1, sender.count("conn-a", EventCallEnded))
}

// TestKick checks moderator removal with the kicked reason code
func TestKick(t *testing.T) {
	sender := newCaptureSender()
	registry := testRegistry(sender, nil)

	_, _, err := registry.Join("consult-1", "conn-a", testJoinInfo(domain.RolePatient, "Alice"))
	require.NoError(t, err)
	_, _, err = registry.Join("consult-1", "conn-b", testJoinInfo(domain.RoleDoctor, "Dr. Bob"))
	require.NoError(t, err)

	// a patient may not kick
	err = registry.Kick("conn-a", "conn-b")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUnauthorized))

	err = registry.Kick("conn-b", "conn-a")
	require.NoError(t, err)

	left := sender.byType("conn-b", EventParticipantLeft)
	require.Len(t, left, 1)
	payload, ok := left[0].Payload.(ParticipantLeftPayload)
	require.True(t, ok)
	assert.Equal(t, domain.LeaveKicked, payload.Reason)
	assert.Equal(t, 1, registry.ConnectionCount())
}

// TestFailBroadcastsSingleError checks error termination semantics
func TestFailBroadcastsSingleError(t *testing.T) {
	sender := newCaptureSender()
	registry := testRegistry(sender, nil)

	session, _, err := registry.Join("consult-1", "conn-a", testJoinInfo(domain.RolePatient, "Alice"))
	require.NoError(t, err)
	_, _, err = registry.Join("consult-1", "conn-b", testJoinInfo(domain.RoleDoctor, "Dr. Bob"))
	require.NoError(t, err)

	session.Fail(apperrors.UnrecoverableError(assert.AnError))
	assert.Equal(t, domain.SessionFailed, session.State())
	assert.Equal(t, 1, sender.count("conn-a", EventError))
	assert.Equal(t, 1, sender.count("conn-b", EventError))

	// a second failure is absorbed by the terminal state
	session.Fail(apperrors.UnrecoverableError(assert.AnError))
	assert.Equal(t, 1, sender.count("conn-a", EventError))
}
