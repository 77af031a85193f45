package auth

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexusesi/backend/internal/middleware"
	"github.com/nexusesi/backend/internal/models"
	"github.com/nexusesi/backend/pkg/apperr"
	"github.com/nexusesi/backend/pkg/response"
)

// RegisterRequest is the body for POST /auth/register.
type RegisterRequest struct {
	Email         string `json:"email" binding:"required,email"`
	Password      string `json:"password" binding:"required,min=8"`
	FullName      string `json:"full_name" binding:"required"`
	InstitutionID string `json:"institution_id" binding:"required,uuid"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Register handles POST /auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	instID, _ := uuid.Parse(req.InstitutionID)
	out, err := h.svc.Register(c.Request.Context(), RegisterInput{
		Email:         req.Email,
		Password:      req.Password,
		FullName:      req.FullName,
		InstitutionID: instID,
	})
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, out)
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	out, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, apperr.ErrUnauthenticated) {
			response.Unauthorized(c, "invalid email or password")
			return
		}
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, out)
}

// Me handles GET /auth/me.
func (h *Handler) Me(c *gin.Context) {
	response.OK(c, middleware.UserFrom(c).ToPublic())
}

// CreateUserRequest is the body for POST /admin/users.
type CreateUserRequest struct {
	Email         string     `json:"email" binding:"required,email"`
	Password      string     `json:"password" binding:"required,min=8"`
	FullName      string     `json:"full_name" binding:"required"`
	Role          string     `json:"role" binding:"required,oneof=admin coordinator seedbed_leader"`
	InstitutionID *uuid.UUID `json:"institution_id"`
}

// ChangeRoleRequest is the body for PUT /admin/users/:id/role.
type ChangeRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=admin coordinator seedbed_leader"`
}

// SetStatusRequest is the body for PUT /admin/users/:id/status.
type SetStatusRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// ListUsers handles GET /admin/users?institution_id=&role=.
func (h *Handler) ListUsers(c *gin.Context) {
	var f ListFilter
	if v := c.Query("institution_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.Unprocessable(c, map[string]string{"institution_id": "must be a valid id"})
			return
		}
		f.InstitutionID = &id
	}
	if v := c.Query("role"); v != "" {
		f.Role = models.Role(v)
		if !f.Role.Valid() {
			response.Unprocessable(c, map[string]string{"role": "must be one of: admin coordinator seedbed_leader"})
			return
		}
	}
	users, err := h.svc.ListUsers(c.Request.Context(), middleware.ActorFrom(c), f)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	out := make([]models.UserPublic, 0, len(users))
	for i := range users {
		out = append(out, users[i].ToPublic())
	}
	response.OK(c, out)
}

// CreateUser handles POST /admin/users.
func (h *Handler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	user, err := h.svc.CreateUser(c.Request.Context(), middleware.ActorFrom(c), CreateUserInput{
		Email:         req.Email,
		Password:      req.Password,
		FullName:      req.FullName,
		Role:          models.Role(req.Role),
		InstitutionID: req.InstitutionID,
	})
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, user.ToPublic())
}

// ChangeRole handles PUT /admin/users/:id/role.
func (h *Handler) ChangeRole(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req ChangeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	user, err := h.svc.ChangeRole(c.Request.Context(), middleware.ActorFrom(c), id, models.Role(req.Role))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OKMessage(c, "role updated", user.ToPublic())
}

// SetStatus handles PUT /admin/users/:id/status.
func (h *Handler) SetStatus(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	user, err := h.svc.SetActive(c.Request.Context(), middleware.ActorFrom(c), id, *req.IsActive)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, user.ToPublic())
}
