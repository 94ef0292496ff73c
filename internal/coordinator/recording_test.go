package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teleconsult-backend/internal/domain"
	apperrors "teleconsult-backend/pkg/errors"
)

func recordingSession(t *testing.T, sender Sender) *CallSession {
	t.Helper()
	registry := testRegistry(sender, nil)

	session, _, err := registry.Join("consult-1", "conn-patient", testJoinInfo(domain.RolePatient, "Alice"))
	require.NoError(t, err)
	_, _, err = registry.Join("consult-1", "conn-doctor", testJoinInfo(domain.RoleDoctor, "Dr. Bob"))
	require.NoError(t, err)
	return session
}

// TestPatientCannotStartRecording covers the authorization gate:
// the rejected call must not produce any recording broadcast
func TestPatientCannotStartRecording(t *testing.T) {
	sender := newCaptureSender()
	session := recordingSession(t, sender)

	err := session.StartRecording("conn-patient")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUnauthorized))
	assert.Equal(t, 0, sender.totalOfType(EventRecordingStarted))
	assert.False(t, session.Snapshot().Recording.IsRecording)
}

// TestStartRecordingIdempotent checks a double start yields one broadcast
func TestStartRecordingIdempotent(t *testing.T) {
	sender := newCaptureSender()
	session := recordingSession(t, sender)

	require.NoError(t, session.StartRecording("conn-doctor"))
	firstID := session.Snapshot().Recording.RecordingID

	require.NoError(t, session.StartRecording("conn-doctor"))

	assert.Equal(t, 1, sender.count("conn-patient", EventRecordingStarted))
	assert.Equal(t, firstID, session.Snapshot().Recording.RecordingID)
}

// TestStopRecording checks stop clears state and reports a duration
func TestStopRecording(t *testing.T) {
	sender := newCaptureSender()
	session := recordingSession(t, sender)

	require.NoError(t, session.StartRecording("conn-doctor"))
	startedID := session.Snapshot().Recording.RecordingID

	require.NoError(t, session.StopRecording("conn-doctor"))

	stopped := sender.byType("conn-patient", EventRecordingStopped)
	require.Len(t, stopped, 1)
	payload, ok := stopped[0].Payload.(RecordingStoppedPayload)
	require.True(t, ok)
	assert.Equal(t, startedID, payload.RecordingID)
	assert.GreaterOrEqual(t, payload.DurationMs, int64(0))

	assert.False(t, session.Snapshot().Recording.IsRecording)

	// stopping again is a silent no-op
	require.NoError(t, session.StopRecording("conn-doctor"))
	assert.Equal(t, 1, sender.count("conn-patient", EventRecordingStopped))
}

// TestPatientCannotStopRecording checks the same gate applies to stop
func TestPatientCannotStopRecording(t *testing.T) {
	sender := newCaptureSender()
	session := recordingSession(t, sender)

	require.NoError(t, session.StartRecording("conn-doctor"))

	err := session.StopRecording("conn-patient")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUnauthorized))
	assert.True(t, session.Snapshot().Recording.IsRecording)
}
