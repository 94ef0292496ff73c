package consult

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"teleconsult-backend/internal/domain"
	apperrors "teleconsult-backend/pkg/errors"
	"teleconsult-backend/pkg/logger"

	"go.uber.org/zap"
)

// ConsultationRepository abstracts the consultation record store
type ConsultationRepository interface {
	IsParticipant(ctx context.Context, consultationID string, userID uuid.UUID) (bool, error)
	Exists(ctx context.Context, consultationID string) (bool, error)
	SaveCallResult(ctx context.Context, result *domain.CallResult) error
	GetCallResult(ctx context.Context, consultationID string) (*domain.CallResult, error)
}

// ChatArchive abstracts the chat transcript store
type ChatArchive interface {
	Append(ctx context.Context, sessionKey string, msg *domain.ChatMessage) error
}

// PresenceStore abstracts the online-status store
type PresenceStore interface {
	SetUserOnline(ctx context.Context, userID uuid.UUID) error
	SetUserOffline(ctx context.Context, userID uuid.UUID) error
	RefreshPresence(ctx context.Context, userID uuid.UUID) error
}

// Service handles consultation call business logic. It authorizes joins
// against the booking record and acts as the coordinator's storage
// collaborator for transcripts and final call results.
type Service struct {
	consultations ConsultationRepository
	chats         ChatArchive
	presence      PresenceStore
}

// NewService creates a new consult service
func NewService(consultations ConsultationRepository, chats ChatArchive, presence PresenceStore) *Service {
	return &Service{
		consultations: consultations,
		chats:         chats,
		presence:      presence,
	}
}

// AuthorizeJoin verifies the user may attach to the consultation's call.
// Admins may join any known consultation; patients and doctors must be
// booked on it.
func (s *Service) AuthorizeJoin(ctx context.Context, consultationID string, userID uuid.UUID, role domain.Role) error {
	if role == domain.RoleAdmin {
		known, err := s.consultations.Exists(ctx, consultationID)
		if err != nil {
			return apperrors.DatabaseError(err)
		}
		if !known {
			return apperrors.NotFoundError("consultation")
		}
		return nil
	}

	ok, err := s.consultations.IsParticipant(ctx, consultationID, userID)
	if err != nil {
		return apperrors.DatabaseError(err)
	}
	if !ok {
		return apperrors.ForbiddenError(fmt.Sprintf("user is not booked on consultation %s", consultationID))
	}

	return nil
}

// AppendChatMessage archives one in-call chat message
func (s *Service) AppendChatMessage(ctx context.Context, sessionKey string, msg *domain.ChatMessage) error {
	if err := s.chats.Append(ctx, sessionKey, msg); err != nil {
		return apperrors.StorageWriteError(err)
	}
	return nil
}

// SaveCallResult records the outcome of a finished call
func (s *Service) SaveCallResult(ctx context.Context, result *domain.CallResult) error {
	if err := s.consultations.SaveCallResult(ctx, result); err != nil {
		return apperrors.StorageWriteError(err)
	}
	return nil
}

// GetCallResult returns the stored outcome of a past call
func (s *Service) GetCallResult(ctx context.Context, consultationID string) (*domain.CallResult, error) {
	result, err := s.consultations.GetCallResult(ctx, consultationID)
	if err != nil {
		return nil, apperrors.NotFoundError("consultation")
	}
	return result, nil
}

// MarkOnline flags the user as holding a live call connection.
// Presence is advisory; failures are logged, never surfaced to the call path.
func (s *Service) MarkOnline(ctx context.Context, userID uuid.UUID) {
	if s.presence == nil {
		return
	}
	if err := s.presence.SetUserOnline(ctx, userID); err != nil {
		logger.Warn("Failed to mark user online",
			zap.String("user_id", userID.String()),
			zap.Error(err))
	}
}

// RefreshOnline extends the user's presence mark while the connection lives
func (s *Service) RefreshOnline(ctx context.Context, userID uuid.UUID) {
	if s.presence == nil {
		return
	}
	if err := s.presence.RefreshPresence(ctx, userID); err != nil {
		logger.Warn("Failed to refresh presence",
			zap.String("user_id", userID.String()),
			zap.Error(err))
	}
}

// MarkOffline clears the user's live-connection flag
func (s *Service) MarkOffline(ctx context.Context, userID uuid.UUID) {
	if s.presence == nil {
		return
	}
	if err := s.presence.SetUserOffline(ctx, userID); err != nil {
		logger.Warn("Failed to mark user offline",
			zap.String("user_id", userID.String()),
			zap.Error(err))
	}
}
