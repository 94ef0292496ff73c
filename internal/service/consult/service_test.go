package consult

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"teleconsult-backend/internal/domain"
	apperrors "teleconsult-backend/pkg/errors"
	"teleconsult-backend/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.InitDefault()
	m.Run()
}

// MockConsultationRepository is a mock implementation of ConsultationRepository
type MockConsultationRepository struct {
	mock.Mock
}

func (m *MockConsultationRepository) IsParticipant(ctx context.Context, consultationID string, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, consultationID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockConsultationRepository) Exists(ctx context.Context, consultationID string) (bool, error) {
	args := m.Called(ctx, consultationID)
	return args.Bool(0), args.Error(1)
}

func (m *MockConsultationRepository) SaveCallResult(ctx context.Context, result *domain.CallResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

func (m *MockConsultationRepository) GetCallResult(ctx context.Context, consultationID string) (*domain.CallResult, error) {
	args := m.Called(ctx, consultationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CallResult), args.Error(1)
}

// MockChatArchive is a mock implementation of ChatArchive
type MockChatArchive struct {
	mock.Mock
}

func (m *MockChatArchive) Append(ctx context.Context, sessionKey string, msg *domain.ChatMessage) error {
	args := m.Called(ctx, sessionKey, msg)
	return args.Error(0)
}

// MockPresenceStore is a mock implementation of PresenceStore
type MockPresenceStore struct {
	mock.Mock
}

func (m *MockPresenceStore) SetUserOnline(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockPresenceStore) SetUserOffline(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockPresenceStore) RefreshPresence(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func TestAuthorizeJoinBookedParticipant(t *testing.T) {
	consultations := new(MockConsultationRepository)
	svc := NewService(consultations, new(MockChatArchive), nil)

	userID := uuid.New()
	consultations.On("IsParticipant", mock.Anything, "consult-42", userID).Return(true, nil)

	err := svc.AuthorizeJoin(context.Background(), "consult-42", userID, domain.RolePatient)

	assert.NoError(t, err)
	consultations.AssertExpectations(t)
}

func TestAuthorizeJoinRejectsStranger(t *testing.T) {
	consultations := new(MockConsultationRepository)
	svc := NewService(consultations, new(MockChatArchive), nil)

	userID := uuid.New()
	consultations.On("IsParticipant", mock.Anything, "consult-42", userID).Return(false, nil)

	err := svc.AuthorizeJoin(context.Background(), "consult-42", userID, domain.RoleDoctor)

	assert.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeForbidden))
}

func TestAuthorizeJoinAdminBypassesBooking(t *testing.T) {
	consultations := new(MockConsultationRepository)
	svc := NewService(consultations, new(MockChatArchive), nil)

	userID := uuid.New()
	consultations.On("Exists", mock.Anything, "consult-42").Return(true, nil)

	err := svc.AuthorizeJoin(context.Background(), "consult-42", userID, domain.RoleAdmin)

	assert.NoError(t, err)
	consultations.AssertNotCalled(t, "IsParticipant", mock.Anything, mock.Anything, mock.Anything)
}

func TestAuthorizeJoinAdminUnknownConsultation(t *testing.T) {
	consultations := new(MockConsultationRepository)
	svc := NewService(consultations, new(MockChatArchive), nil)

	consultations.On("Exists", mock.Anything, "consult-missing").Return(false, nil)

	err := svc.AuthorizeJoin(context.Background(), "consult-missing", uuid.New(), domain.RoleAdmin)

	assert.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
}

func TestAuthorizeJoinDatabaseError(t *testing.T) {
	consultations := new(MockConsultationRepository)
	svc := NewService(consultations, new(MockChatArchive), nil)

	consultations.On("IsParticipant", mock.Anything, "consult-42", mock.Anything).
		Return(false, errors.New("connection refused"))

	err := svc.AuthorizeJoin(context.Background(), "consult-42", uuid.New(), domain.RolePatient)

	assert.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDatabase))
}

func TestAppendChatMessageWrapsStorageError(t *testing.T) {
	chats := new(MockChatArchive)
	svc := NewService(new(MockConsultationRepository), chats, nil)

	msg := &domain.ChatMessage{
		MessageID: uuid.New(),
		SenderID:  uuid.New(),
		Content:   "hello",
		SentAt:    time.Now(),
	}
	chats.On("Append", mock.Anything, "consult-42", msg).Return(errors.New("timeout"))

	err := svc.AppendChatMessage(context.Background(), "consult-42", msg)

	assert.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeStorageWrite))
}

func TestSaveCallResult(t *testing.T) {
	consultations := new(MockConsultationRepository)
	svc := NewService(consultations, new(MockChatArchive), nil)

	result := &domain.CallResult{
		ConsultationID: "consult-42",
		Status:         domain.SessionEnded,
		DurationMs:     90000,
	}
	consultations.On("SaveCallResult", mock.Anything, result).Return(nil)

	err := svc.SaveCallResult(context.Background(), result)

	assert.NoError(t, err)
	consultations.AssertExpectations(t)
}

func TestMarkOnlineSwallowsPresenceError(t *testing.T) {
	presence := new(MockPresenceStore)
	svc := NewService(new(MockConsultationRepository), new(MockChatArchive), presence)

	userID := uuid.New()
	presence.On("SetUserOnline", mock.Anything, userID).Return(errors.New("redis down"))

	// Must not panic or surface the error
	svc.MarkOnline(context.Background(), userID)
	presence.AssertExpectations(t)
}
