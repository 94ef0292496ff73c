package domain

import (
	"time"

	"github.com/google/uuid"
)

// IssueSeverity classifies a reported quality issue
type IssueSeverity string

const (
	SeverityLow    IssueSeverity = "low"
	SeverityMedium IssueSeverity = "medium"
	SeverityHigh   IssueSeverity = "high"
)

// QualityIssue is a single participant-reported network/media problem
type QualityIssue struct {
	Type      string        `json:"type"` // e.g. frozen_video, audio_dropout, high_latency
	Severity  IssueSeverity `json:"severity"`
	Timestamp time.Time     `json:"timestamp"`
}

// NetworkStats is the last-reported aggregate network snapshot for a session
// Each report overwrites the previous one
type NetworkStats struct {
	LatencyMs     int       `json:"latency_ms"`
	PacketLossPct float64   `json:"packet_loss_pct"`
	BandwidthKbps int       `json:"bandwidth_kbps"`
	ReportedAt    time.Time `json:"reported_at"`
}

// ParticipantQuality is the per-connection quality record included in a summary
type ParticipantQuality struct {
	UserID       uuid.UUID      `json:"user_id"`
	ConnectionID string         `json:"connection_id"`
	QualityScore int            `json:"quality_score"` // 0-100, only ever decreases
	Issues       []QualityIssue `json:"issues,omitempty"`
}

// CallSummary is the quality roll-up computed when a session ends
type CallSummary struct {
	DurationMs          int64                `json:"duration_ms"`
	ParticipantCount    int                  `json:"participant_count"`
	AverageQualityScore float64              `json:"average_quality_score"`
	IssueCount          int                  `json:"issue_count"`
	NetworkStats        *NetworkStats        `json:"network_stats,omitempty"`
	PerParticipant      []ParticipantQuality `json:"per_participant,omitempty"`
}
