package coordinator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"teleconsult-backend/internal/domain"
)

// Outbound event types delivered to a session's broadcast group
const (
	EventParticipantJoined = "participant-joined"
	EventParticipantLeft   = "participant-left"
	EventParticipantReady  = "participant-ready"
	EventCallStarted       = "call-started"
	EventCallStateChange   = "call-state-change"
	EventSignal            = "signal"
	EventMediaChange       = "participant-media-change"
	EventChatMessage       = "chat-message"
	EventChatHistory       = "chat-history"
	EventRecordingStarted  = "recording-started"
	EventRecordingStopped  = "recording-stopped"
	EventCallEnded         = "call-ended"
	EventCallForceEnded    = "call-force-ended"
	EventError             = "error"
	EventSessionSnapshot   = "session-snapshot"
)

// Envelope kinds accepted by the signaling relay
const (
	SignalKindOffer            = "offer"
	SignalKindAnswer           = "answer"
	SignalKindICECandidate     = "ice-candidate"
	SignalKindPeerDisconnected = "peer-disconnected"
)

// Event is a coordinator-originated message for one or more connections
type Event struct {
	Type       string    `json:"type"`
	SessionKey string    `json:"session_key"`
	Timestamp  time.Time `json:"timestamp"`
	Payload    any       `json:"payload,omitempty"`
}

// Envelope is an opaque negotiation/control message relayed between peers.
// The coordinator reads the kind tag and optional target; the payload is
// never inspected.
type Envelope struct {
	Kind               string          `json:"kind"`
	FromConnectionID   string          `json:"from_connection_id,omitempty"`
	TargetConnectionID string          `json:"target_connection_id,omitempty"`
	Payload            json.RawMessage `json:"payload,omitempty"`
}

// ValidKind reports whether the envelope carries a known kind tag
func (e *Envelope) ValidKind() bool {
	switch e.Kind {
	case SignalKindOffer, SignalKindAnswer, SignalKindICECandidate, SignalKindPeerDisconnected:
		return true
	}
	return false
}

// ParticipantJoinedPayload announces a new participant to existing ones
type ParticipantJoinedPayload struct {
	Participant *domain.Participant `json:"participant"`
}

// ParticipantLeftPayload announces a departure with its reason code
type ParticipantLeftPayload struct {
	UserID       uuid.UUID          `json:"user_id"`
	ConnectionID string             `json:"connection_id"`
	DisplayName  string             `json:"display_name"`
	Reason       domain.LeaveReason `json:"reason"`
}

// ParticipantReadyPayload announces a readiness change
type ParticipantReadyPayload struct {
	UserID       uuid.UUID `json:"user_id"`
	ConnectionID string    `json:"connection_id"`
}

// CallStartedPayload marks the Waiting to Connected transition
type CallStartedPayload struct {
	StartedAt time.Time `json:"started_at"`
}

// StateChangePayload reports a session state transition
type StateChangePayload struct {
	From domain.SessionState `json:"from"`
	To   domain.SessionState `json:"to"`
}

// MediaChangePayload carries a participant's merged media state
type MediaChangePayload struct {
	UserID       uuid.UUID         `json:"user_id"`
	ConnectionID string            `json:"connection_id"`
	Media        domain.MediaState `json:"media_state"`
}

// ChatHistoryPayload replays the capped recent chat log to a new joiner
type ChatHistoryPayload struct {
	Messages []domain.ChatMessage `json:"messages"`
}

// RecordingStartedPayload announces a started recording
type RecordingStartedPayload struct {
	RecordingID uuid.UUID `json:"recording_id"`
	InitiatedBy uuid.UUID `json:"initiated_by"`
	StartedAt   time.Time `json:"started_at"`
}

// RecordingStoppedPayload announces a stopped recording with its duration
type RecordingStoppedPayload struct {
	RecordingID uuid.UUID `json:"recording_id"`
	StoppedBy   uuid.UUID `json:"stopped_by"`
	DurationMs  int64     `json:"duration_ms"`
}

// CallEndedPayload carries the final quality summary
type CallEndedPayload struct {
	Status  domain.SessionState `json:"status"`
	Summary domain.CallSummary  `json:"summary"`
}

// ForceEndedPayload identifies who ended the call
type ForceEndedPayload struct {
	EndedBy uuid.UUID `json:"ended_by"`
}

// ErrorPayload is the single error event broadcast before a session fails
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Sender delivers events to live connections. Implementations must not
// block: delivery to a slow or departed connection is dropped, and events
// handed over for one connection are delivered in hand-over order.
type Sender interface {
	Send(connectionID string, event *Event)
}

// Store is the external storage collaborator. All writes are best-effort:
// the coordinator invokes them asynchronously and never rolls back
// in-memory state when they fail.
type Store interface {
	AppendChatMessage(ctx context.Context, sessionKey string, msg *domain.ChatMessage) error
	SaveCallResult(ctx context.Context, result *domain.CallResult) error
}

// MetricsRecorder receives coordinator lifecycle counters. A nil recorder
// disables instrumentation.
type MetricsRecorder interface {
	SessionCreated()
	SessionRemoved()
	ParticipantJoined()
	ParticipantLeft()
	CallStarted()
	CallEnded(status string, duration time.Duration)
	SignalRelayed(kind string)
}
