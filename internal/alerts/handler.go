package alerts

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexusesi/backend/internal/middleware"
	"github.com/nexusesi/backend/internal/models"
	"github.com/nexusesi/backend/pkg/response"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Inbox is the recipient-scoped read side of alerts.
type Inbox interface {
	ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]models.Alert, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID) (*models.Alert, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
}

// Handler handles alert HTTP endpoints.
type Handler struct {
	inbox  Inbox
	logger *zap.Logger
}

// NewHandler creates an alerts handler.
func NewHandler(inbox Inbox, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{inbox: inbox, logger: logger}
}

// ListMine handles GET /alerts?unread=true&limit=50.
func (h *Handler) ListMine(c *gin.Context) {
	limit := defaultListLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			response.Unprocessable(c, map[string]string{"limit": "must be a positive integer"})
			return
		}
		limit = min(n, maxListLimit)
	}
	list, err := h.inbox.ListForUser(c.Request.Context(), middleware.ActorFrom(c).UserID, c.Query("unread") == "true", limit)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	if list == nil {
		list = []models.Alert{}
	}
	response.OK(c, list)
}

// MarkRead handles PUT /alerts/:id/read.
func (h *Handler) MarkRead(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	a, err := h.inbox.MarkRead(c.Request.Context(), id, middleware.ActorFrom(c).UserID)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, a)
}

// MarkAllRead handles PUT /alerts/read-all.
func (h *Handler) MarkAllRead(c *gin.Context) {
	n, err := h.inbox.MarkAllRead(c.Request.Context(), middleware.ActorFrom(c).UserID)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, gin.H{"updated": n})
}
