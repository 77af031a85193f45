package meetings

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexusesi/backend/internal/middleware"
	"github.com/nexusesi/backend/internal/models"
	"github.com/nexusesi/backend/pkg/apperr"
	"github.com/nexusesi/backend/pkg/response"
	"github.com/nexusesi/backend/pkg/utils"
)

// Handler handles meeting HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a meetings handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// MeetingRequest is the body for POST /events/:id/meetings.
type MeetingRequest struct {
	CommitteeID *string   `json:"committee_id" binding:"omitempty,uuid"`
	Title       string    `json:"title" binding:"required,max=255"`
	Description string    `json:"description"`
	ScheduledAt string    `json:"scheduled_at" binding:"required"`
	Location    string    `json:"location" binding:"max=255"`
	MeetingType string    `json:"meeting_type" binding:"omitempty,oneof=planning coordination committee general"`
	InviteeIDs  *[]string `json:"invitee_ids" binding:"omitempty,dive,uuid"`
}

// RespondRequest is the body for POST /meetings/:id/respond.
type RespondRequest struct {
	Status string `json:"status" binding:"required,oneof=accepted declined"`
}

// ManualAttendanceRequest is the body for POST /meetings/:id/attendance.
type ManualAttendanceRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
}

const alreadyRecordedMessage = "attendance already recorded"

// Create handles POST /events/:id/meetings.
func (h *Handler) Create(c *gin.Context) {
	eventID, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req MeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	scheduledAt, err := utils.ParseDate(req.ScheduledAt)
	if err != nil {
		response.Error(c, h.logger, apperr.Invalid("scheduled_at", "must be a valid date"))
		return
	}
	in := CreateInput{
		Title:       req.Title,
		Description: req.Description,
		ScheduledAt: scheduledAt,
		Location:    req.Location,
		MeetingType: models.MeetingType(req.MeetingType),
	}
	if req.CommitteeID != nil {
		id, _ := uuid.Parse(*req.CommitteeID)
		in.CommitteeID = &id
	}
	if req.InviteeIDs != nil {
		in.InviteeIDs = make([]uuid.UUID, 0, len(*req.InviteeIDs))
		for _, s := range *req.InviteeIDs {
			id, _ := uuid.Parse(s)
			in.InviteeIDs = append(in.InviteeIDs, id)
		}
	}
	m, err := h.svc.Create(c.Request.Context(), middleware.ActorFrom(c), eventID, in)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, m)
}

// ListByEvent handles GET /events/:id/meetings.
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
		list = []models.Meeting{}
	}
	response.OK(c, list)
}

// Get handles GET /meetings/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	m, err := h.svc.Get(c.Request.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, m)
}

// Cancel handles PUT /meetings/:id/cancel.
func (h *Handler) Cancel(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Cancel(c.Request.Context(), middleware.ActorFrom(c), id); err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OKMessage(c, "meeting cancelled", nil)
}

// Respond handles POST /meetings/:id/respond.
func (h *Handler) Respond(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	inv, err := h.svc.Respond(c.Request.Context(), middleware.ActorFrom(c), id, req.Status == string(models.InvitationAccepted))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, inv)
}

// GenerateQR handles POST /meetings/:id/generate-qr.
func (h *Handler) GenerateQR(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	m, err := h.svc.GenerateQR(c.Request.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, gin.H{"qr_code": m.QRCode, "qr_expires_at": m.QRExpiresAt, "meeting": m})
}

// Attendance handles GET /meetings/:id/attendance.
func (h *Handler) Attendance(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	list, err := h.svc.Attendance(c.Request.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	if list == nil {
		list = []models.MeetingAttendance{}
	}
	response.OK(c, list)
}

// RecordManual handles POST /meetings/:id/attendance.
func (h *Handler) RecordManual(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req ManualAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	userID, _ := uuid.Parse(req.UserID)
	out, err := h.svc.RecordManual(c.Request.Context(), middleware.ActorFrom(c), id, userID)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	h.respondCheckIn(c, out)
}

// ValidateQR handles GET /public/meetings/check-in/:token/validate.
func (h *Handler) ValidateQR(c *gin.Context) {
	info, err := h.svc.Validate(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OKMessage(c, "QR code valid", info)
}

// CheckIn handles POST /public/meetings/check-in/:token. The bearer token identifies the attendee.
func (h *Handler) CheckIn(c *gin.Context) {
	out, err := h.svc.CheckIn(c.Request.Context(), middleware.ActorFrom(c), c.Param("token"))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	h.respondCheckIn(c, out)
}

func (h *Handler) respondCheckIn(c *gin.Context, out *CheckInResult) {
	if out.AlreadyRecorded {
		response.OKMessage(c, alreadyRecordedMessage, out)
		return
	}
	response.Created(c, out)
}
