package coordinator

import (
	"time"

	"github.com/google/uuid"

	"teleconsult-backend/internal/domain"
	"teleconsult-backend/pkg/constants"
)

// severityPenalty maps issue severities to quality score deductions
var severityPenalty = map[domain.IssueSeverity]int{
	domain.SeverityLow:    constants.PenaltyLow,
	domain.SeverityMedium: constants.PenaltyMedium,
	domain.SeverityHigh:   constants.PenaltyHigh,
}

// QualityMonitor aggregates participant-reported quality signals for one
// session. It is owned exclusively by its CallSession and relies on the
// session mutex for serialization; it has no lock of its own.
type QualityMonitor struct {
	active   map[string]*domain.ParticipantQuality // keyed by connection ID
	departed []*domain.ParticipantQuality
	stats    *domain.NetworkStats
}

// NewQualityMonitor creates an empty monitor
func NewQualityMonitor() *QualityMonitor {
	return &QualityMonitor{
		active: make(map[string]*domain.ParticipantQuality),
	}
}

// Track opens a fresh quality record for a connection. A participant that
// left and rejoined gets a new record; scores never carry over.
func (m *QualityMonitor) Track(connectionID string, userID uuid.UUID) {
	m.active[connectionID] = &domain.ParticipantQuality{
		UserID:       userID,
		ConnectionID: connectionID,
		QualityScore: constants.InitialQualityScore,
	}
}

// Retire moves a connection's record out of the active set while keeping
// it for the final summary
func (m *QualityMonitor) Retire(connectionID string) {
	if pq, ok := m.active[connectionID]; ok {
		delete(m.active, connectionID)
		m.departed = append(m.departed, pq)
	}
}

// ReportIssue appends the issue to the participant's record and applies the
// severity-indexed penalty, flooring the score at zero. Reports for unknown
// connections are ignored.
func (m *QualityMonitor) ReportIssue(connectionID string, issue domain.QualityIssue) {
	pq, ok := m.active[connectionID]
	if !ok {
		return
	}
	if issue.Timestamp.IsZero() {
		issue.Timestamp = time.Now()
	}
	pq.Issues = append(pq.Issues, issue)

	penalty, ok := severityPenalty[issue.Severity]
	if !ok {
		penalty = constants.PenaltyLow
	}
	pq.QualityScore -= penalty
	if pq.QualityScore < 0 {
		pq.QualityScore = 0
	}
}

// UpdateNetworkStats overwrites the session-level network snapshot
func (m *QualityMonitor) UpdateNetworkStats(stats domain.NetworkStats) {
	if stats.ReportedAt.IsZero() {
		stats.ReportedAt = time.Now()
	}
	m.stats = &stats
}

// TrackedCount returns the number of connections ever tracked
func (m *QualityMonitor) TrackedCount() int {
	return len(m.active) + len(m.departed)
}

// Summarize computes the end-of-call quality roll-up across every
// connection ever tracked, present or departed
func (m *QualityMonitor) Summarize(duration time.Duration) domain.CallSummary {
	all := make([]domain.ParticipantQuality, 0, m.TrackedCount())
	for _, pq := range m.departed {
		all = append(all, *pq)
	}
	for _, pq := range m.active {
		all = append(all, *pq)
	}

	var scoreTotal, issueTotal int
	for _, pq := range all {
		scoreTotal += pq.QualityScore
		issueTotal += len(pq.Issues)
	}

	avg := 0.0
	if len(all) > 0 {
		avg = float64(scoreTotal) / float64(len(all))
	}

	return domain.CallSummary{
		DurationMs:          duration.Milliseconds(),
		ParticipantCount:    len(all),
		AverageQualityScore: avg,
		IssueCount:          issueTotal,
		NetworkStats:        m.stats,
		PerParticipant:      all,
	}
}
