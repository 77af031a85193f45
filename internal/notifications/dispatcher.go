package notifications

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexusesi/backend/internal/models"
	"github.com/nexusesi/backend/pkg/queue"
)

// EventNotification is the websocket event carrying a new notification.
const EventNotification = "notification"

const dispatchTimeout = 5 * time.Second

// Message is a notification to deliver.
type Message struct {
	UserID uuid.UUID
	Type   string
	Title  string
	Body   string
	Data   map[string]interface{}
	Email  bool
}

// Notifier delivers notifications. Delivery never fails the caller.
type Notifier interface {
	Notify(ctx context.Context, msgs ...Message)
}

// Nop drops every notification.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, ...Message) {}

// Store persists notifications.
type Store interface {
	Create(ctx context.Context, n *models.Notification) error
	SetEmailStatus(ctx context.Context, id uuid.UUID, status, errMsg string, at time.Time) error
}

// Publisher pushes events to a user's live connections.
type Publisher interface {
	PublishToUser(ctx context.Context, userID uuid.UUID, event string, payload interface{}) error
}

// EmailEnqueuer queues email jobs for the worker.
type EmailEnqueuer interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// UserLookup resolves recipients' addresses.
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Dispatcher persists a notification, pushes it over websocket and queues its email.
// Each step is best effort: failures are logged and the remaining steps still run.
type Dispatcher struct {
	store    Store
	realtime Publisher
	emails   EmailEnqueuer
	users    UserLookup
	logger   *zap.Logger
}

// NewDispatcher creates a dispatcher. realtime and emails may be nil.
func NewDispatcher(store Store, realtime Publisher, emails EmailEnqueuer, users UserLookup, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{store: store, realtime: realtime, emails: emails, users: users, logger: logger}
}

// Notify delivers msgs. It outlives request cancellation but is bounded by a timeout.
func (d *Dispatcher) Notify(ctx context.Context, msgs ...Message) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dispatchTimeout)
	defer cancel()
	for _, m := range msgs {
		d.deliver(ctx, m)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, m Message) {
	log := d.logger.With(zap.String("user_id", m.UserID.String()), zap.String("type", m.Type))

	n := &models.Notification{
		UserID:      m.UserID,
		Type:        m.Type,
		Title:       m.Title,
		Message:     m.Body,
		EmailStatus: models.EmailSkipped,
	}
	if len(m.Data) > 0 {
		if data, err := json.Marshal(m.Data); err == nil {
			n.Data = data
		}
	}
	wantEmail := m.Email && d.emails != nil && d.users != nil
	if wantEmail {
		n.EmailStatus = models.EmailPending
	}

	stored := true
	if err := d.store.Create(ctx, n); err != nil {
		stored = false
		log.Warn("notification not persisted", zap.Error(err))
	}

	if d.realtime != nil {
		if err := d.realtime.PublishToUser(ctx, m.UserID, EventNotification, n); err != nil {
			log.Warn("notification not published", zap.Error(err))
		}
	}

	if !wantEmail {
		return
	}
	if err := d.enqueueEmail(ctx, n); err != nil {
		log.Warn("notification email not queued", zap.Error(err))
		if stored {
			if err := d.store.SetEmailStatus(ctx, n.ID, models.EmailFailed, err.Error(), time.Now()); err != nil {
				log.Warn("email status not recorded", zap.Error(err))
			}
		}
	}
}

func (d *Dispatcher) enqueueEmail(ctx context.Context, n *models.Notification) error {
	user, err := d.users.GetByID(ctx, n.UserID)
	if err != nil {
		return err
	}
	return d.emails.EnqueueEmail(ctx, queue.EmailPayload{
		UserID:         n.UserID,
		NotificationID: n.ID,
		RecipientEmail: user.Email,
		RecipientName:  user.FullName,
		Subject:        n.Title,
		Body:           n.Message,
	})
}
