package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nexusesi/backend/internal/models"
	"github.com/nexusesi/backend/pkg/apperr"
	"github.com/nexusesi/backend/pkg/database"
)

const (
	eventColumns       = `id, name, description, start_date, end_date, coordinator_id, institution_id, status, created_at, updated_at`
	participantColumns = `p.id, p.event_id, p.user_id, p.participation_role, p.is_active, p.ended_at, p.created_at, p.updated_at`

	// oneActiveIndex is the partial unique index allowing one active participation per user.
	oneActiveIndex = "event_participants_one_active"
)

// Repository handles event and participation persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an events repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanEvent(row pgx.Row) (*models.Event, error) {
	var e models.Event
	var status string
	if err := row.Scan(&e.ID, &e.Name, &e.Description, &e.StartDate, &e.EndDate, &e.CoordinatorID,
		&e.InstitutionID, &status, &e.CreatedAt, &e.UpdatedAt); err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	e.Status = models.EventStatus(status)
	return &e, nil
}

func collectEvents(rows pgx.Rows) ([]models.Event, error) {
	defer rows.Close()
	var list []models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *e)
	}
	return list, rows.Err()
}

// Create inserts a new event.
func (r *Repository) Create(ctx context.Context, e *models.Event) error {
	const q = `INSERT INTO events (name, description, start_date, end_date, coordinator_id, institution_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, e.Name, e.Description, e.StartDate, e.EndDate, e.CoordinatorID, e.InstitutionID, string(e.Status)).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

// GetByID returns an event by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	return scanEvent(r.pool.QueryRow(ctx, q, id))
}

// ListByInstitution returns an institution's events, newest start first. Empty status matches all.
func (r *Repository) ListByInstitution(ctx context.Context, institutionID uuid.UUID, status models.EventStatus) ([]models.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events
		WHERE institution_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY start_date DESC`
	rows, err := r.pool.Query(ctx, q, institutionID, string(status))
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

// ListDueForClosing returns non-finished events whose end_date passed.
func (r *Repository) ListDueForClosing(ctx context.Context, now time.Time) ([]models.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events WHERE status <> 'finished' AND end_date < $1 ORDER BY end_date`
	rows, err := r.pool.Query(ctx, q, now)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

// Update saves name, description and dates.
func (r *Repository) Update(ctx context.Context, e *models.Event) error {
	const q = `UPDATE events SET name = $2, description = $3, start_date = $4, end_date = $5, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, e.ID, e.Name, e.Description, e.StartDate, e.EndDate).Scan(&e.UpdatedAt)
	if database.IsNoRows(err) {
		return apperr.ErrNotFound
	}
	return err
}

// SetStatus moves a non-finished event between active and inactive.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status models.EventStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE events SET status = $2, updated_at = NOW() WHERE id = $1 AND status <> 'finished'`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyFinished
	}
	return nil
}

// Delete removes an event and everything under it.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// Finish marks the event finished and closes every participation in one transaction.
// Returns the users whose participation was closed.
func (r *Repository) Finish(ctx context.Context, id uuid.UUID, at time.Time) ([]uuid.UUID, error) {
	var closed []uuid.UUID
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE events SET status = 'finished', updated_at = $2 WHERE id = $1 AND status <> 'finished'`, id, at)
		if err != nil {
			return fmt.Errorf("finish event: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrAlreadyFinished
		}
		rows, err := tx.Query(ctx, `UPDATE event_participants
			SET is_active = FALSE, ended_at = COALESCE(ended_at, $2), updated_at = $2
			WHERE event_id = $1 AND (is_active OR ended_at IS NULL)
			RETURNING user_id`, id, at)
		if err != nil {
			return fmt.Errorf("close participants: %w", err)
		}
		closed, err = pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
		return err
	})
	if err != nil {
		return nil, err
	}
	return closed, nil
}

// ActiveParticipation returns the user's active participation, or ErrNotFound.
func (r *Repository) ActiveParticipation(ctx context.Context, userID uuid.UUID) (*models.EventParticipant, error) {
	q := `SELECT ` + participantColumns + ` FROM event_participants p WHERE p.user_id = $1 AND p.is_active`
	var p models.EventParticipant
	err := r.pool.QueryRow(ctx, q, userID).Scan(&p.ID, &p.EventID, &p.UserID, &p.ParticipationRole, &p.IsActive, &p.EndedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// AddParticipant inserts an active participation. A concurrent second active row returns ErrAlreadyActive.
func (r *Repository) AddParticipant(ctx context.Context, eventID, userID uuid.UUID, role string) (*models.EventParticipant, error) {
	const q = `INSERT INTO event_participants (event_id, user_id, participation_role)
		VALUES ($1, $2, $3)
		RETURNING id, event_id, user_id, participation_role, is_active, ended_at, created_at, updated_at`
	var p models.EventParticipant
	err := r.pool.QueryRow(ctx, q, eventID, userID, role).
		Scan(&p.ID, &p.EventID, &p.UserID, &p.ParticipationRole, &p.IsActive, &p.EndedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err, oneActiveIndex) {
			return nil, ErrAlreadyActive
		}
		return nil, fmt.Errorf("insert participant: %w", err)
	}
	return &p, nil
}

// Leave closes the user's active participation in the event.
func (r *Repository) Leave(ctx context.Context, eventID, userID uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE event_participants SET is_active = FALSE, ended_at = $3, updated_at = $3
		WHERE event_id = $1 AND user_id = $2 AND is_active`, eventID, userID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// ListParticipants returns every participation of the event with user names.
func (r *Repository) ListParticipants(ctx context.Context, eventID uuid.UUID) ([]models.EventParticipant, error) {
	q := `SELECT ` + participantColumns + `, u.full_name, u.email
		FROM event_participants p JOIN users u ON u.id = p.user_id
		WHERE p.event_id = $1
		ORDER BY p.is_active DESC, u.full_name`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.EventParticipant
	for rows.Next() {
		var p models.EventParticipant
		if err := rows.Scan(&p.ID, &p.EventID, &p.UserID, &p.ParticipationRole, &p.IsActive, &p.EndedAt,
			&p.CreatedAt, &p.UpdatedAt, &p.FullName, &p.Email); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// ReuseSummary reports what a reuse cloned.
type ReuseSummary struct {
	Event      *models.Event `json:"event"`
	Committees int           `json:"committees"`
	Tasks      int           `json:"tasks"`
}

type taskTemplate struct {
	CommitteeID *uuid.UUID
	Title       string
	Description string
	DueDate     time.Time
}

// Reuse creates dst and clones the committees and tasks of srcID into it in one transaction.
// Task due dates move by shift; cloned tasks are unassigned and Pending.
func (r *Repository) Reuse(ctx context.Context, srcID uuid.UUID, dst *models.Event, shift time.Duration, now time.Time) (*ReuseSummary, error) {
	summary := &ReuseSummary{Event: dst}
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		const insertEvent = `INSERT INTO events (name, description, start_date, end_date, coordinator_id, institution_id, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, created_at, updated_at`
		if err := tx.QueryRow(ctx, insertEvent, dst.Name, dst.Description, dst.StartDate, dst.EndDate,
			dst.CoordinatorID, dst.InstitutionID, string(dst.Status)).Scan(&dst.ID, &dst.CreatedAt, &dst.UpdatedAt); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}

		rows, err := tx.Query(ctx, `SELECT id, name FROM committees WHERE event_id = $1 ORDER BY created_at`, srcID)
		if err != nil {
			return err
		}
		type committeeRow struct {
			ID   uuid.UUID
			Name string
		}
		committees, err := pgx.CollectRows(rows, pgx.RowToStructByPos[committeeRow])
		if err != nil {
			return fmt.Errorf("load committees: %w", err)
		}
		mapped := make(map[uuid.UUID]uuid.UUID, len(committees))
		for _, c := range committees {
			var newID uuid.UUID
			if err := tx.QueryRow(ctx, `INSERT INTO committees (event_id, name) VALUES ($1, $2) RETURNING id`, dst.ID, c.Name).Scan(&newID); err != nil {
				return fmt.Errorf("clone committee: %w", err)
			}
			mapped[c.ID] = newID
		}
		summary.Committees = len(committees)

		rows, err = tx.Query(ctx, `SELECT committee_id, title, description, due_date FROM tasks WHERE event_id = $1 ORDER BY created_at`, srcID)
		if err != nil {
			return err
		}
		tasks, err := pgx.CollectRows(rows, pgx.RowToStructByPos[taskTemplate])
		if err != nil {
			return fmt.Errorf("load tasks: %w", err)
		}
		const insertTask = `INSERT INTO tasks (event_id, committee_id, title, description, due_date, status, risk_level, created_by)
			VALUES ($1, $2, $3, $4, $5, 'Pending', $6, $7)`
		for _, t := range tasks {
			var committeeID *uuid.UUID
			if t.CommitteeID != nil {
				if id, ok := mapped[*t.CommitteeID]; ok {
					committeeID = &id
				}
			}
			due := t.DueDate.Add(shift)
			if _, err := tx.Exec(ctx, insertTask, dst.ID, committeeID, t.Title, t.Description, due,
				string(models.ComputeRisk(due, now)), dst.CoordinatorID); err != nil {
				return fmt.Errorf("clone task: %w", err)
			}
		}
		summary.Tasks = len(tasks)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}
