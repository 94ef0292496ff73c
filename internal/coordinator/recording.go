package coordinator

import (
	"time"

	"github.com/google/uuid"

	"teleconsult-backend/internal/domain"
	apperrors "teleconsult-backend/pkg/errors"
)

// StartRecording begins recording the session. Only doctors and admins may
// start a recording; calling it while one is running is a no-op.
func (s *CallSession) StartRecording(connectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[connectionID]
	if !ok {
		return apperrors.NotFoundError("participant")
	}
	if !p.Role.CanModerate() {
		return apperrors.UnauthorizedError("only a doctor or admin may start recording")
	}
	if s.state.Terminal() {
		return apperrors.SessionFinalizedError(s.key)
	}
	if s.recording.IsRecording {
		return nil
	}

	now := time.Now()
	s.recording = domain.RecordingState{
		IsRecording: true,
		RecordingID: uuid.New(),
		StartedAt:   &now,
		InitiatedBy: p.UserID,
	}
	s.touch()

	s.broadcast(EventRecordingStarted, RecordingStartedPayload{
		RecordingID: s.recording.RecordingID,
		InitiatedBy: p.UserID,
		StartedAt:   now,
	})
	return nil
}

// StopRecording ends the running recording and announces its duration.
// Stopping when nothing records is a no-op.
func (s *CallSession) StopRecording(connectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[connectionID]
	if !ok {
		return apperrors.NotFoundError("participant")
	}
	if !p.Role.CanModerate() {
		return apperrors.UnauthorizedError("only a doctor or admin may stop recording")
	}
	if !s.recording.IsRecording {
		return nil
	}

	var durationMs int64
	if s.recording.StartedAt != nil {
		durationMs = time.Since(*s.recording.StartedAt).Milliseconds()
	}
	recordingID := s.recording.RecordingID
	s.recording = domain.RecordingState{}
	s.touch()

	s.broadcast(EventRecordingStopped, RecordingStoppedPayload{
		RecordingID: recordingID,
		StoppedBy:   p.UserID,
		DurationMs:  durationMs,
	})
	return nil
}
