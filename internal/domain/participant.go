package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role represents a participant's role within a consultation
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// CanModerate reports whether the role may end calls, control recording,
// or remove other participants
func (r Role) CanModerate() bool {
	return r == RoleDoctor || r == RoleAdmin
}

// ParseRole maps a role claim string to a known Role
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RolePatient, RoleDoctor, RoleAdmin:
		return Role(s), true
	}
	return "", false
}

// LeaveReason explains why a participant left a session
type LeaveReason string

const (
	LeaveGraceful LeaveReason = "graceful"
	LeaveTimeout  LeaveReason = "timeout"
	LeaveKicked   LeaveReason = "kicked"
	LeaveError    LeaveReason = "error"
)

// MediaState is a participant's last self-reported media flags
type MediaState struct {
	AudioEnabled  bool `json:"audio_enabled"`
	VideoEnabled  bool `json:"video_enabled"`
	ScreenSharing bool `json:"screen_sharing"`
}

// MediaStatePatch is a partial media-state update; nil fields are left unchanged
type MediaStatePatch struct {
	AudioEnabled  *bool `json:"audio_enabled,omitempty"`
	VideoEnabled  *bool `json:"video_enabled,omitempty"`
	ScreenSharing *bool `json:"screen_sharing,omitempty"`
}

// Apply merges the patch into the given media state
func (p *MediaStatePatch) Apply(state *MediaState) {
	if p.AudioEnabled != nil {
		state.AudioEnabled = *p.AudioEnabled
	}
	if p.VideoEnabled != nil {
		state.VideoEnabled = *p.VideoEnabled
	}
	if p.ScreenSharing != nil {
		state.ScreenSharing = *p.ScreenSharing
	}
}

// Participant represents one connected endpoint inside a call session
// A user joining from two devices yields two participants
type Participant struct {
	UserID       uuid.UUID  `json:"user_id"`
	Role         Role       `json:"role"`
	DisplayName  string     `json:"display_name"`
	ConnectionID string     `json:"connection_id"`
	JoinedAt     time.Time  `json:"joined_at"`
	LeftAt       *time.Time `json:"left_at,omitempty"`
	IsReady      bool       `json:"is_ready"`
	Media        MediaState `json:"media_state"`
}
