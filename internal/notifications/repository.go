package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nexusesi/backend/internal/models"
	"github.com/nexusesi/backend/pkg/apperr"
	"github.com/nexusesi/backend/pkg/database"
)

const notificationColumns = `id, user_id, type, title, message, data, read_at, email_status, emailed_at, COALESCE(email_error, ''), created_at`

// Repository handles notification persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a notifications repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanNotification(row pgx.Row) (*models.Notification, error) {
	var n models.Notification
	var data []byte
	if err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &data, &n.ReadAt,
		&n.EmailStatus, &n.EmailedAt, &n.EmailError, &n.CreatedAt); err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	n.Data = data
	return &n, nil
}

// Create inserts n and fills its id and created_at.
func (r *Repository) Create(ctx context.Context, n *models.Notification) error {
	const q = `INSERT INTO notifications (user_id, type, title, message, data, email_status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`
	var data interface{}
	if len(n.Data) > 0 {
		data = []byte(n.Data)
	}
	return r.pool.QueryRow(ctx, q, n.UserID, n.Type, n.Title, n.Message, data, n.EmailStatus).Scan(&n.ID, &n.CreatedAt)
}

// ListForUser returns the user's notifications, newest first.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]models.Notification, error) {
	q := `SELECT ` + notificationColumns + ` FROM notifications
		WHERE user_id = $1 AND (NOT $2 OR read_at IS NULL)
		ORDER BY created_at DESC
		LIMIT $3`
	rows, err := r.pool.Query(ctx, q, userID, unreadOnly, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *n)
	}
	return list, rows.Err()
}

// MarkRead marks one of the user's notifications as read. Other users' rows are not found.
func (r *Repository) MarkRead(ctx context.Context, id, userID uuid.UUID) (*models.Notification, error) {
	q := `UPDATE notifications SET read_at = COALESCE(read_at, NOW())
		WHERE id = $1 AND user_id = $2
		RETURNING ` + notificationColumns
	return scanNotification(r.pool.QueryRow(ctx, q, id, userID))
}

// MarkAllRead marks every unread notification of the user as read.
func (r *Repository) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET read_at = NOW() WHERE user_id = $1 AND read_at IS NULL`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// SetEmailStatus records the outcome of the email mirror of a notification.
func (r *Repository) SetEmailStatus(ctx context.Context, id uuid.UUID, status, errMsg string, at time.Time) error {
	const q = `UPDATE notifications SET email_status = $2, email_error = NULLIF($3, ''), emailed_at = $4 WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, status, errMsg, at)
	return err
}
