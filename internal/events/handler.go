package events

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nexusesi/backend/internal/middleware"
	"github.com/nexusesi/backend/internal/models"
	"github.com/nexusesi/backend/pkg/apperr"
	"github.com/nexusesi/backend/pkg/response"
	"github.com/nexusesi/backend/pkg/utils"
)

// Handler handles event HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an events handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// EventRequest is the body for POST /events and POST /events/:id/reuse.
type EventRequest struct {
	Name        string `json:"name" binding:"required,max=255"`
	Description string `json:"description"`
	StartDate   string `json:"start_date" binding:"required"`
	EndDate     string `json:"end_date" binding:"required"`
}

// UpdateEventRequest is the body for PUT /events/:id.
type UpdateEventRequest struct {
	Name        *string `json:"name" binding:"omitempty,max=255"`
	Description *string `json:"description"`
	StartDate   *string `json:"start_date"`
	EndDate     *string `json:"end_date"`
}

// StatusRequest is the body for PUT /events/:id/status.
type StatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active inactive finished"`
}

func (r EventRequest) input() (Input, error) {
	verr := &apperr.ValidationError{}
	start, err := utils.ParseDate(r.StartDate)
	if err != nil {
		verr.Add("start_date", "must be a valid date")
	}
	end, err := utils.ParseDate(r.EndDate)
	if err != nil {
		verr.Add("end_date", "must be a valid date")
	}
	return Input{Name: r.Name, Description: r.Description, StartDate: start, EndDate: end}, verr.OrNil()
}

func parseOptionalDate(verr *apperr.ValidationError, field string, s *string) *time.Time {
	if s == nil {
		return nil
	}
	t, err := utils.ParseDate(*s)
	if err != nil {
		verr.Add(field, "must be a valid date")
		return nil
	}
	return &t
}

// Create handles POST /events.
func (h *Handler) Create(c *gin.Context) {
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	in, err := req.input()
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	ev, err := h.svc.Create(c.Request.Context(), middleware.ActorFrom(c), in)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, ev)
}

// List handles GET /events?status=.
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context(), middleware.ActorFrom(c), models.EventStatus(c.Query("status")))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	if list == nil {
		list = []models.Event{}
	}
	response.OK(c, list)
}

// Get handles GET /events/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	ev, err := h.svc.Get(c.Request.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, ev)
}

// Update handles PUT /events/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	verr := &apperr.ValidationError{}
	in := UpdateInput{
		Name:        req.Name,
		Description: req.Description,
		StartDate:   parseOptionalDate(verr, "start_date", req.StartDate),
		EndDate:     parseOptionalDate(verr, "end_date", req.EndDate),
	}
	if verr.HasErrors() {
		response.Unprocessable(c, verr.Fields)
		return
	}
	ev, err := h.svc.Update(c.Request.Context(), middleware.ActorFrom(c), id, in)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, ev)
}

// ChangeStatus handles PUT /events/:id/status.
func (h *Handler) ChangeStatus(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	ev, err := h.svc.ChangeStatus(c.Request.Context(), middleware.ActorFrom(c), id, models.EventStatus(req.Status))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, ev)
}

// Finish handles PUT /events/:id/finish.
func (h *Handler) Finish(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	ev, err := h.svc.Finish(c.Request.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OKMessage(c, "event finished", ev)
}

// Delete handles DELETE /events/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), middleware.ActorFrom(c), id); err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OKMessage(c, "event deleted", nil)
}

// Participate handles POST /events/:id/participate.
func (h *Handler) Participate(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	p, err := h.svc.Participate(c.Request.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, p)
}

// Leave handles POST /events/:id/leave.
func (h *Handler) Leave(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Leave(c.Request.Context(), middleware.ActorFrom(c), id); err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OKMessage(c, "participation ended", nil)
}

// Participants handles GET /events/:id/participants.
func (h *Handler) Participants(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	list, err := h.svc.Participants(c.Request.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	if list == nil {
		list = []models.EventParticipant{}
	}
	response.OK(c, list)
}

// Reuse handles POST /events/:id/reuse.
func (h *Handler) Reuse(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	in, err := req.input()
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	summary, err := h.svc.Reuse(c.Request.Context(), middleware.ActorFrom(c), id, in)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, summary)
}
