package domain

import (
	"time"

	"github.com/google/uuid"
)

// SessionState represents the lifecycle state of a call session
type SessionState string

const (
	// SessionWaiting indicates the session is waiting for participants to become ready
	SessionWaiting SessionState = "waiting"

	// SessionConnecting indicates participants are negotiating their connections
	SessionConnecting SessionState = "connecting"

	// SessionConnected indicates the call is live
	SessionConnected SessionState = "connected"

	// SessionReconnecting is declared for parity with clients; the coordinator
	// currently falls back to SessionWaiting when a call drops to one participant
	SessionReconnecting SessionState = "reconnecting"

	// SessionEnded indicates the call finished normally
	SessionEnded SessionState = "ended"

	// SessionFailed indicates the session was terminated by an unrecoverable error
	SessionFailed SessionState = "failed"
)

// Terminal reports whether the state admits no further transitions
func (s SessionState) Terminal() bool {
	return s == SessionEnded || s == SessionFailed
}

// RecordingState tracks recording as a sub-state of a call session
type RecordingState struct {
	IsRecording bool       `json:"is_recording"`
	RecordingID uuid.UUID  `json:"recording_id,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	InitiatedBy uuid.UUID  `json:"initiated_by,omitempty"`
}

// CallResult is the finalized session record handed to the storage collaborator
// Keyed by the owning consultation identifier
type CallResult struct {
	ConsultationID string       `json:"consultation_id" db:"consultation_id"`
	Status         SessionState `json:"status" db:"status"`
	StartedAt      *time.Time   `json:"started_at,omitempty" db:"started_at"`
	EndedAt        *time.Time   `json:"ended_at,omitempty" db:"ended_at"`
	DurationMs     int64        `json:"duration_ms" db:"duration_ms"`
	Summary        CallSummary  `json:"summary"`
}
