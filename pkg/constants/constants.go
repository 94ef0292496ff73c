// Package constants defines application-wide constants for timeouts, limits, and durations.
package constants

import "time"

// Time-related constants
const (
	// DefaultTimeout is the default timeout for most operations
	DefaultTimeout = 30 * time.Second

	// StorageWriteTimeout bounds best-effort writes to the storage collaborator
	StorageWriteTimeout = 10 * time.Second

	// WebSocketPingInterval is the interval for WebSocket ping/pong
	WebSocketPingInterval = 60 * time.Second

	// WebSocketWriteTimeout is the deadline for a single WebSocket write
	WebSocketWriteTimeout = 10 * time.Second

	// GracefulShutdownTimeout is the timeout for graceful server shutdown
	GracefulShutdownTimeout = 30 * time.Second
)

// JWT-related constants
const (
	// AccessTokenExpiry is the default access token lifetime
	AccessTokenExpiry = 15 * time.Minute

	// RefreshTokenExpiry is the default refresh token lifetime
	RefreshTokenExpiry = 24 * time.Hour
)

// Database connection constants
const (
	// MaxConnLifetime is the maximum lifetime of a database connection
	MaxConnLifetime = 1 * time.Hour

	// MaxConnIdleTime is the maximum idle time for a database connection
	MaxConnIdleTime = 30 * time.Minute

	// HealthCheckPeriod is the interval between database health checks
	HealthCheckPeriod = 1 * time.Minute
)

// Call session constants
const (
	// MaxCallDuration is the maximum allowed call duration (24 hours)
	MaxCallDuration = 24 * time.Hour

	// SessionRemovalGrace is how long a finalized session lingers so that
	// trailing events can still be delivered before the registry drops it
	SessionRemovalGrace = 10 * time.Second

	// StaleSessionThreshold is the idle age after which an empty session
	// becomes eligible for janitor eviction
	StaleSessionThreshold = 5 * time.Minute

	// JanitorSweepInterval is how often the janitor scans for stale sessions
	JanitorSweepInterval = 1 * time.Minute

	// MinConnectedParticipants is the participant count required before a
	// waiting session may go live
	MinConnectedParticipants = 2
)

// Chat constants
const (
	// ChatReplayLimit is the number of recent chat messages replayed to a new joiner
	ChatReplayLimit = 50

	// MaxChatMessageLength is the maximum allowed chat message length
	MaxChatMessageLength = 10000
)

// Quality monitoring constants
const (
	// InitialQualityScore is the score every participant starts with
	InitialQualityScore = 100

	// PenaltyLow is the score deduction for a low-severity issue
	PenaltyLow = 5

	// PenaltyMedium is the score deduction for a medium-severity issue
	PenaltyMedium = 15

	// PenaltyHigh is the score deduction for a high-severity issue
	PenaltyHigh = 30
)

// Presence constants
const (
	// PresenceTTL is how long a presence mark survives without refresh
	PresenceTTL = 2 * time.Minute

	// UserStatusOnline indicates a user has a live call connection
	UserStatusOnline = "online"

	// UserStatusOffline indicates a user has no live call connection
	UserStatusOffline = "offline"
)
