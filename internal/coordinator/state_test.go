package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"teleconsult-backend/internal/domain"
)

// TestNextState verifies every edge of the transition table
func TestNextState(t *testing.T) {
	tests := []struct {
		name         string
		current      domain.SessionState
		event        StateEvent
		participants int
		want         domain.SessionState
	}{
		{"waiting goes live when all ready with two", domain.SessionWaiting, StateEventAllReady, 2, domain.SessionConnected},
		{"waiting stays waiting when all ready alone", domain.SessionWaiting, StateEventAllReady, 1, domain.SessionWaiting},
		{"connected ignores all ready", domain.SessionConnected, StateEventAllReady, 2, domain.SessionConnected},
		{"connected falls back to waiting at one participant", domain.SessionConnected, StateEventParticipantLeft, 1, domain.SessionWaiting},
		{"connected ends at zero participants", domain.SessionConnected, StateEventParticipantLeft, 0, domain.SessionEnded},
		{"waiting ends at zero participants", domain.SessionWaiting, StateEventParticipantLeft, 0, domain.SessionEnded},
		{"waiting unchanged at one participant", domain.SessionWaiting, StateEventParticipantLeft, 1, domain.SessionWaiting},
		{"connected unchanged above one participant", domain.SessionConnected, StateEventParticipantLeft, 2, domain.SessionConnected},
		{"explicit end from waiting", domain.SessionWaiting, StateEventEndCall, 2, domain.SessionEnded},
		{"explicit end from connected", domain.SessionConnected, StateEventEndCall, 2, domain.SessionEnded},
		{"internal error fails the session", domain.SessionConnected, StateEventInternalError, 2, domain.SessionFailed},
		{"ended absorbs events", domain.SessionEnded, StateEventAllReady, 2, domain.SessionEnded},
		{"failed absorbs events", domain.SessionFailed, StateEventEndCall, 2, domain.SessionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextState(tt.current, tt.event, tt.participants)
			assert.Equal(t, tt.want, got)
		})
	}
}
