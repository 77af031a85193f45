package institutions

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nexusesi/backend/internal/middleware"
	"github.com/nexusesi/backend/pkg/response"
)

// Handler handles institution HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an institutions handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// InstitutionRequest is the body for POST and PUT /admin/institutions.
type InstitutionRequest struct {
	Name string `json:"name" binding:"required,max=255"`
	Code string `json:"code" binding:"required,max=64"`
}

// ListPublic handles GET /institutions.
func (h *Handler) ListPublic(c *gin.Context) {
	list, err := h.svc.ListActive(c.Request.Context())
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, list)
}

// List handles GET /admin/institutions.
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context(), middleware.ActorFrom(c))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, list)
}

// Create handles POST /admin/institutions.
func (h *Handler) Create(c *gin.Context) {
	var req InstitutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	inst, err := h.svc.Create(c.Request.Context(), middleware.ActorFrom(c), req.Name, req.Code)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, inst)
}

// Get handles GET /admin/institutions/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	inst, err := h.svc.Get(c.Request.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, inst)
}

// Update handles PUT /admin/institutions/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req InstitutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	inst, err := h.svc.Update(c.Request.Context(), middleware.ActorFrom(c), id, req.Name, req.Code)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, inst)
}

// Toggle handles PUT /admin/institutions/:id/toggle.
func (h *Handler) Toggle(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	inst, err := h.svc.Toggle(c.Request.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, inst)
}
