package consult

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"teleconsult-backend/internal/coordinator"
	"teleconsult-backend/internal/domain"
	consultsvc "teleconsult-backend/internal/service/consult"
	apperrors "teleconsult-backend/pkg/errors"
	"teleconsult-backend/pkg/response"
)

// Handler handles consultation call HTTP requests
type Handler struct {
	registry       *coordinator.Registry
	consultService *consultsvc.Service
}

// NewHandler creates a new consult handler
func NewHandler(registry *coordinator.Registry, consultService *consultsvc.Service) *Handler {
	return &Handler{
		registry:       registry,
		consultService: consultService,
	}
}

// CallStatusResponse describes the call attached to a consultation. Exactly
// one of Live or Result is set.
type CallStatusResponse struct {
	ConsultationID string                       `json:"consultation_id"`
	Live           *coordinator.SessionSnapshot `json:"live,omitempty"`
	Result         *domain.CallResult           `json:"result,omitempty"`
}

// GetCallStatus returns the live session snapshot, or the stored outcome
// once the session has been evicted
// GET /v1/consultations/:id/call
func (h *Handler) GetCallStatus(c *gin.Context) {
	consultationID := c.Param("id")
	if consultationID == "" {
		response.ValidationError(c, "consultation id required")
		return
	}

	userID, role, ok := identity(c)
	if !ok {
		response.Unauthorized(c, "Not authenticated")
		return
	}

	if err := h.consultService.AuthorizeJoin(c.Request.Context(), consultationID, userID, role); err != nil {
		writeAppError(c, err)
		return
	}

	if session, err := h.registry.Get(consultationID); err == nil {
		snapshot := session.Snapshot()
		response.Success(c, http.StatusOK, CallStatusResponse{
			ConsultationID: consultationID,
			Live:           &snapshot,
		})
		return
	}

	result, err := h.consultService.GetCallResult(c.Request.Context(), consultationID)
	if err != nil {
		writeAppError(c, err)
		return
	}

	response.Success(c, http.StatusOK, CallStatusResponse{
		ConsultationID: consultationID,
		Result:         result,
	})
}

// GetSessionCounts reports registry occupancy for operations dashboards
// GET /v1/sessions/stats
func (h *Handler) GetSessionCounts(c *gin.Context) {
	_, role, ok := identity(c)
	if !ok {
		response.Unauthorized(c, "Not authenticated")
		return
	}
	if role != domain.RoleAdmin {
		response.Forbidden(c, "Admin access required")
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"sessions":    h.registry.SessionCount(),
		"connections": h.registry.ConnectionCount(),
	})
}

func identity(c *gin.Context) (uuid.UUID, domain.Role, bool) {
	userIDVal, exists := c.Get("user_id")
	if !exists {
		return uuid.Nil, "", false
	}
	userID, ok := userIDVal.(uuid.UUID)
	if !ok {
		return uuid.Nil, "", false
	}
	role, ok := domain.ParseRole(c.GetString("role"))
	if !ok {
		return uuid.Nil, "", false
	}
	return userID, role, true
}

func writeAppError(c *gin.Context, err error) {
	if appErr := apperrors.GetAppError(err); appErr != nil {
		response.Error(c, appErr.StatusCode, string(appErr.Code), appErr.Message)
		return
	}
	response.InternalError(c, "Internal server error")
}
