package notifications

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

// Inbox is the read side used by the handler.
type Inbox interface {
	ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID) (*models.Notification, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
}

// Handler handles notification HTTP endpoints.
type Handler struct {
	inbox  Inbox
	logger *zap.Logger
}

// NewHandler creates a notifications handler.
func NewHandler(inbox Inbox, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{inbox: inbox, logger: logger}
}

// ListMine handles GET /notifications?unread=true&limit=50.
func (h *Handler) ListMine(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	limit := defaultListLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			response.Unprocessable(c, map[string]string{"limit": "must be a positive integer"})
			return
		}
		limit = min(n, maxListLimit)
	}
	list, err := h.inbox.ListForUser(c.Request.Context(), actor.UserID, c.Query("unread") == "true", limit)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	if list == nil {
		list = []models.Notification{}
	}
	response.OK(c, list)
}

// MarkRead handles PUT /notifications/:id/read.
func (h *Handler) MarkRead(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	n, err := h.inbox.MarkRead(c.Request.Context(), id, middleware.ActorFrom(c).UserID)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, n)
}

// MarkAllRead handles PUT /notifications/read-all.
func (h *Handler) MarkAllRead(c *gin.Context) {
	n, err := h.inbox.MarkAllRead(c.Request.Context(), middleware.ActorFrom(c).UserID)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, gin.H{"updated": n})
}
