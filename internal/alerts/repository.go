package alerts

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nexusesi/backend/internal/models"
	"github.com/nexusesi/backend/pkg/apperr"
	"github.com/nexusesi/backend/pkg/database"
)

const alertColumns = `id, user_id, task_id, type, message, is_read, read_at, created_at`

// Repository handles alert persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an alerts repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanAlert(row pgx.Row) (*models.Alert, error) {
	var a models.Alert
	var typ string
	if err := row.Scan(&a.ID, &a.UserID, &a.TaskID, &typ, &a.Message, &a.IsRead, &a.ReadAt, &a.CreatedAt); err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	a.Type = models.AlertType(typ)
	return &a, nil
}

// ListForUser returns the user's alerts, newest first.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]models.Alert, error) {
	q := `SELECT ` + alertColumns + ` FROM alerts
		WHERE user_id = $1 AND (NOT $2 OR NOT is_read)
		ORDER BY created_at DESC
		LIMIT $3`
	rows, err := r.pool.Query(ctx, q, userID, unreadOnly, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *a)
	}
	return list, rows.Err()
}

// MarkRead marks one of the user's alerts as read. Other users' alerts are not found.
func (r *Repository) MarkRead(ctx context.Context, id, userID uuid.UUID) (*models.Alert, error) {
	q := `UPDATE alerts SET is_read = TRUE, read_at = COALESCE(read_at, NOW())
		WHERE id = $1 AND user_id = $2
		RETURNING ` + alertColumns
	return scanAlert(r.pool.QueryRow(ctx, q, id, userID))
}

// MarkAllRead marks every unread alert of the user as read.
func (r *Repository) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE alerts SET is_read = TRUE, read_at = NOW() WHERE user_id = $1 AND NOT is_read`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CreateAlert inserts an alert outside a risk transition.
func (r *Repository) CreateAlert(ctx context.Context, a *models.Alert) error {
	const q = `INSERT INTO alerts (user_id, task_id, type, message) VALUES ($1, $2, $3, $4)
		RETURNING id, is_read, created_at`
	return r.pool.QueryRow(ctx, q, a.UserID, a.TaskID, string(a.Type), a.Message).Scan(&a.ID, &a.IsRead, &a.CreatedAt)
}

// ApplyRisk moves an open task from one stored risk level to another and, when alert is
// non-nil, records the alert in the same transaction. It reports false without writing
// when the task's stored level is no longer from or the task was completed meanwhile.
func (r *Repository) ApplyRisk(ctx context.Context, taskID uuid.UUID, from, to models.RiskLevel, alert *models.Alert) (bool, error) {
	applied := false
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE tasks SET risk_level = $3, updated_at = NOW()
			WHERE id = $1 AND risk_level = $2 AND status <> 'Completed'`, taskID, string(from), string(to))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		applied = true
		if alert == nil {
			return nil
		}
		const q = `INSERT INTO alerts (user_id, task_id, type, message) VALUES ($1, $2, $3, $4)
			RETURNING id, is_read, created_at`
		return tx.QueryRow(ctx, q, alert.UserID, alert.TaskID, string(alert.Type), alert.Message).
			Scan(&alert.ID, &alert.IsRead, &alert.CreatedAt)
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}
