package tasks

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexusesi/backend/internal/middleware"
	"github.com/nexusesi/backend/internal/models"
	"github.com/nexusesi/backend/pkg/apperr"
	"github.com/nexusesi/backend/pkg/response"
	"github.com/nexusesi/backend/pkg/storage"
	"github.com/nexusesi/backend/pkg/utils"
)

// Handler handles task, progress and incident HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a tasks handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// TaskRequest is the body for POST /events/:id/tasks.
type TaskRequest struct {
	Title       string  `json:"title" binding:"required,max=255"`
	Description string  `json:"description"`
	DueDate     string  `json:"due_date" binding:"required"`
	CommitteeID *string `json:"committee_id" binding:"omitempty,uuid"`
}

func (r TaskRequest) input() (Input, error) {
	due, err := utils.ParseDate(r.DueDate)
	if err != nil {
		return Input{}, apperr.Invalid("due_date", "must be a valid date")
	}
	in := Input{Title: r.Title, Description: r.Description, DueDate: due}
	if r.CommitteeID != nil {
		id, _ := uuid.Parse(*r.CommitteeID)
		in.CommitteeID = &id
	}
	return in, nil
}

// UpdateTaskRequest is the body for PUT /tasks/:id.
type UpdateTaskRequest struct {
	Title       *string `json:"title" binding:"omitempty,max=255"`
	Description *string `json:"description"`
	DueDate     *string `json:"due_date"`
	CommitteeID *string `json:"committee_id" binding:"omitempty,uuid"`
}

// AssignRequest is the body for POST /tasks/:id/assign.
type AssignRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
}

// TaskStatusRequest is the body for PUT /tasks/:id/status.
type TaskStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=Pending InProgress Completed Delayed Paused"`
}

// ReportRequest is the JSON body for progress and incident reports without a file.
type ReportRequest struct {
	Description string `json:"description" binding:"required"`
}

// ResolveRequest is the body for PUT /incidents/:id/resolve.
type ResolveRequest struct {
	Resolution      string       `json:"resolution"`
	RemediationTask *TaskRequest `json:"remediation_task"`
}

func respondList[T any](c *gin.Context, list []T) {
	if list == nil {
		list = []T{}
	}
	response.OK(c, list)
}

// Create handles POST /events/:id/tasks.
func (h *Handler) Create(c *gin.Context) {
	eventID, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	in, err := req.input()
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	t, err := h.svc.Create(c.Request.Context(), middleware.ActorFrom(c), eventID, in)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, t)
}

// ListByEvent handles GET /events/:id/tasks.
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
	respondList(c, list)
}

// Mine handles GET /tasks/mine.
func (h *Handler) Mine(c *gin.Context) {
	list, err := h.svc.Mine(c.Request.Context(), middleware.ActorFrom(c))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	respondList(c, list)
}

// Get handles GET /tasks/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	t, err := h.svc.Get(c.Request.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, t)
}

// Update handles PUT /tasks/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	in := UpdateInput{Title: req.Title, Description: req.Description}
	if req.DueDate != nil {
		due, err := utils.ParseDate(*req.DueDate)
		if err != nil {
			response.Unprocessable(c, map[string]string{"due_date": "must be a valid date"})
			return
		}
		in.DueDate = &due
	}
	if req.CommitteeID != nil {
		cid, _ := uuid.Parse(*req.CommitteeID)
		in.CommitteeID = &cid
	}
	t, err := h.svc.Update(c.Request.Context(), middleware.ActorFrom(c), id, in)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, t)
}

// Delete handles DELETE /tasks/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), middleware.ActorFrom(c), id); err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OKMessage(c, "task deleted", nil)
}

// Assign handles POST /tasks/:id/assign.
func (h *Handler) Assign(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	target, _ := uuid.Parse(req.UserID)
	t, err := h.svc.Assign(c.Request.Context(), middleware.ActorFrom(c), id, target)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OKMessage(c, "task assigned", t)
}

// Complete handles PUT /tasks/:id/complete.
func (h *Handler) Complete(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	t, err := h.svc.Complete(c.Request.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OKMessage(c, "task completed", t)
}

// ChangeStatus handles PUT /tasks/:id/status.
func (h *Handler) ChangeStatus(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req TaskStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	t, err := h.svc.ChangeStatus(c.Request.Context(), middleware.ActorFrom(c), id, models.TaskStatus(req.Status))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, t)
}

// readReport accepts either multipart/form-data (description + optional file) or JSON.
// The returned cleanup closes the uploaded file.
func (h *Handler) readReport(c *gin.Context) (string, *Upload, func(), bool) {
	noop := func() {}
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		var req ReportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BindError(c, err)
			return "", nil, noop, false
		}
		return req.Description, nil, noop, true
	}
	c.Request.Body = limitBody(c, storage.MaxAttachmentSize+1<<20)
	description := c.PostForm("description")
	if strings.TrimSpace(description) == "" {
		response.Unprocessable(c, map[string]string{"description": "is required"})
		return "", nil, noop, false
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return description, nil, noop, true
	}
	f, err := fh.Open()
	if err != nil {
		response.Unprocessable(c, map[string]string{"file": "could not be read"})
		return "", nil, noop, false
	}
	return description, &Upload{Name: fh.Filename, Size: fh.Size, Body: f}, func() { _ = f.Close() }, true
}

// ReportProgress handles POST /tasks/:id/progress.
func (h *Handler) ReportProgress(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	description, file, cleanup, ok := h.readReport(c)
	if !ok {
		return
	}
	defer cleanup()
	p, err := h.svc.ReportProgress(c.Request.Context(), middleware.ActorFrom(c), id, description, file)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, p)
}

// Progress handles GET /tasks/:id/progress.
func (h *Handler) Progress(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	list, err := h.svc.Progress(c.Request.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	respondList(c, list)
}

// ReportIncident handles POST /tasks/:id/incidents.
func (h *Handler) ReportIncident(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	description, file, cleanup, ok := h.readReport(c)
	if !ok {
		return
	}
	defer cleanup()
	inc, err := h.svc.ReportIncident(c.Request.Context(), middleware.ActorFrom(c), id, description, file)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, inc)
}

// Incidents handles GET /tasks/:id/incidents.
func (h *Handler) Incidents(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	list, err := h.svc.Incidents(c.Request.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	respondList(c, list)
}

// ResolveIncident handles PUT /incidents/:id/resolve.
func (h *Handler) ResolveIncident(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	in := ResolveInput{Resolution: req.Resolution}
	if req.RemediationTask != nil {
		rem, err := req.RemediationTask.input()
		if err != nil {
			response.Error(c, h.logger, err)
			return
		}
		in.Remediation = &rem
	}
	inc, err := h.svc.ResolveIncident(c.Request.Context(), middleware.ActorFrom(c), id, in)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OKMessage(c, "incident resolved", inc)
}

func limitBody(c *gin.Context, n int64) io.ReadCloser {
	return http.MaxBytesReader(c.Writer, c.Request.Body, n)
}
