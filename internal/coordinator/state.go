package coordinator

import (
	"teleconsult-backend/internal/domain"
	"teleconsult-backend/pkg/constants"
)

// StateEvent is an input to the session state machine
type StateEvent string

const (
	// StateEventAllReady fires when every current participant is ready
	StateEventAllReady StateEvent = "all_ready"

	// StateEventParticipantLeft fires after a participant is removed
	StateEventParticipantLeft StateEvent = "participant_left"

	// StateEventEndCall fires on an authorized explicit end-call command
	StateEventEndCall StateEvent = "end_call"

	// StateEventInternalError fires on an unrecoverable relay or storage error
	StateEventInternalError StateEvent = "internal_error"
)

// NextState computes the state a session moves to when the given event
// occurs with the given number of present participants. Terminal states
// absorb every event. When no transition applies the current state is
// returned unchanged.
//
// A live call that drops to a single participant falls back to Waiting
// rather than Reconnecting; the remaining participant keeps the session
// alive until a peer rejoins and readiness is re-established.
func NextState(current domain.SessionState, event StateEvent, participants int) domain.SessionState {
	if current.Terminal() {
		return current
	}

	switch event {
	case StateEventAllReady:
		if current == domain.SessionWaiting && participants >= constants.MinConnectedParticipants {
			return domain.SessionConnected
		}

	case StateEventParticipantLeft:
		if participants == 0 {
			return domain.SessionEnded
		}
		if participants == 1 && current == domain.SessionConnected {
			return domain.SessionWaiting
		}

	case StateEventEndCall:
		return domain.SessionEnded

	case StateEventInternalError:
		return domain.SessionFailed
	}

	return current
}
