package committees

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexusesi/backend/internal/middleware"
	"github.com/nexusesi/backend/internal/models"
	"github.com/nexusesi/backend/pkg/response"
)

// Handler handles committee HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a committees handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// CommitteeRequest is the body for POST /events/:id/committees and PUT /committees/:id.
type CommitteeRequest struct {
	Name string `json:"name" binding:"required,max=255"`
}

// MemberRequest is the body for POST /committees/:id/members.
type MemberRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
	Role   string `json:"role" binding:"omitempty,max=32"`
}

// Create handles POST /events/:id/committees.
func (h *Handler) Create(c *gin.Context) {
	eventID, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req CommitteeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	committee, err := h.svc.Create(c.Request.Context(), middleware.ActorFrom(c), eventID, req.Name)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, committee)
}

// ListByEvent handles GET /events/:id/committees.
func (h *Handler) ListByEvent(c *gin.Context) {
	eventID, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	list, err := h.svc.ListByEvent(c.Request.Context(), middleware.ActorFrom(c), eventID)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	if list == nil {
		list = []models.Committee{}
	}
	response.OK(c, list)
}

// Update handles PUT /committees/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req CommitteeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	committee, err := h.svc.Update(c.Request.Context(), middleware.ActorFrom(c), id, req.Name)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, committee)
}

// Delete handles DELETE /committees/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), middleware.ActorFrom(c), id); err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OKMessage(c, "committee deleted", nil)
}

// Members handles GET /committees/:id/members.
func (h *Handler) Members(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	list, err := h.svc.Members(c.Request.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	if list == nil {
		list = []models.CommitteeMember{}
	}
	response.OK(c, list)
}

// AddMember handles POST /committees/:id/members.
func (h *Handler) AddMember(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req MemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	userID, _ := uuid.Parse(req.UserID)
	m, err := h.svc.AddMember(c.Request.Context(), middleware.ActorFrom(c), id, userID, req.Role)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, m)
}

// RemoveMember handles DELETE /committees/:id/members/:userId.
func (h *Handler) RemoveMember(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	userID, ok := middleware.ParamUUID(c, "userId")
	if !ok {
		return
	}
	if err := h.svc.RemoveMember(c.Request.Context(), middleware.ActorFrom(c), id, userID); err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OKMessage(c, "member removed", nil)
}
