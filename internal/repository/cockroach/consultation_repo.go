package cockroach

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"teleconsult-backend/internal/domain"
)

// ConsultationRepository handles consultation records
type ConsultationRepository struct {
	pool *pgxpool.Pool
}

// NewConsultationRepository creates a new consultation repository
func NewConsultationRepository(pool *pgxpool.Pool) *ConsultationRepository {
	return &ConsultationRepository{pool: pool}
}

// IsParticipant reports whether the user is booked on the consultation,
// either as the patient or as the assigned doctor
func (r *ConsultationRepository) IsParticipant(ctx context.Context, consultationID string, userID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM consultations
			WHERE consultation_id = $1
			  AND (patient_id = $2 OR doctor_id = $2)
		)
	`

	var ok bool
	err := r.pool.QueryRow(ctx, query, consultationID, userID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("failed to check consultation participant: %w", err)
	}

	return ok, nil
}

// Exists reports whether the consultation is known
func (r *ConsultationRepository) Exists(ctx context.Context, consultationID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM consultations WHERE consultation_id = $1)`

	var ok bool
	err := r.pool.QueryRow(ctx, query, consultationID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("failed to check consultation: %w", err)
	}

	return ok, nil
}

// SaveCallResult records the outcome of a finished call on its consultation.
// The quality summary is stored as JSONB alongside the timing columns.
func (r *ConsultationRepository) SaveCallResult(ctx context.Context, result *domain.CallResult) error {
	summary, err := json.Marshal(result.Summary)
	if err != nil {
		return fmt.Errorf("failed to encode call summary: %w", err)
	}

	query := `
		UPDATE consultations
		SET call_status = $2,
		    call_started_at = $3,
		    call_ended_at = $4,
		    call_duration_ms = $5,
		    call_summary = $6
		WHERE consultation_id = $1
	`

	tag, err := r.pool.Exec(ctx, query,
		result.ConsultationID,
		string(result.Status),
		result.StartedAt,
		result.EndedAt,
		result.DurationMs,
		summary,
	)
	if err != nil {
		return fmt.Errorf("failed to save call result: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("consultation not found: %s", result.ConsultationID)
	}

	return nil
}

// GetCallResult retrieves the stored outcome of a consultation's call
func (r *ConsultationRepository) GetCallResult(ctx context.Context, consultationID string) (*domain.CallResult, error) {
	query := `
		SELECT consultation_id, call_status, call_started_at, call_ended_at,
		       call_duration_ms, call_summary
		FROM consultations
		WHERE consultation_id = $1
	`

	result := &domain.CallResult{}
	var status *string
	var summary []byte
	err := r.pool.QueryRow(ctx, query, consultationID).Scan(
		&result.ConsultationID,
		&status,
		&result.StartedAt,
		&result.EndedAt,
		&result.DurationMs,
		&summary,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("consultation not found")
		}
		return nil, fmt.Errorf("failed to get call result: %w", err)
	}

	if status != nil {
		result.Status = domain.SessionState(*status)
	}
	if len(summary) > 0 {
		if err := json.Unmarshal(summary, &result.Summary); err != nil {
			return nil, fmt.Errorf("failed to decode call summary: %w", err)
		}
	}

	return result, nil
}
