package tasks

import (
	"context"
	"errors"
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
	taskColumns = `id, event_id, committee_id, title, description, due_date, status, risk_level,
		assigned_to, created_by, completed_at, created_at, updated_at`
	progressColumns = `id, task_id, user_id, description, file_key, file_name, created_at`
	incidentColumns = `id, task_id, reported_by, description, status, file_key, file_name,
		solution_task_id, resolution, resolved_by, resolved_at, created_at, updated_at`
)

// Repository handles task, progress and incident persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a tasks repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanTask(row pgx.Row) (*models.Task, error) {
	var t models.Task
	var status, risk string
	if err := row.Scan(&t.ID, &t.EventID, &t.CommitteeID, &t.Title, &t.Description, &t.DueDate, &status, &risk,
		&t.AssignedTo, &t.CreatedBy, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	t.Status = models.TaskStatus(status)
	t.RiskLevel = models.RiskLevel(risk)
	return &t, nil
}

func collectTasks(rows pgx.Rows) ([]models.Task, error) {
	defer rows.Close()
	var list []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *t)
	}
	return list, rows.Err()
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertTask(ctx context.Context, db querier, t *models.Task) error {
	const q = `INSERT INTO tasks (event_id, committee_id, title, description, due_date, status, risk_level, assigned_to, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`
	return db.QueryRow(ctx, q, t.EventID, t.CommitteeID, t.Title, t.Description, t.DueDate,
		string(t.Status), string(t.RiskLevel), t.AssignedTo, t.CreatedBy).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

// Create inserts a task.
func (r *Repository) Create(ctx context.Context, t *models.Task) error {
	return insertTask(ctx, r.pool, t)
}

// GetByID returns a task by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	q := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	return scanTask(r.pool.QueryRow(ctx, q, id))
}

// ListByEvent returns an event's tasks by due date.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Task, error) {
	q := `SELECT ` + taskColumns + ` FROM tasks WHERE event_id = $1 ORDER BY due_date, created_at`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	return collectTasks(rows)
}

// ListAssignedTo returns the tasks assigned to a user, open ones first.
func (r *Repository) ListAssignedTo(ctx context.Context, userID uuid.UUID) ([]models.Task, error) {
	q := `SELECT ` + taskColumns + ` FROM tasks WHERE assigned_to = $1
		ORDER BY (status = 'Completed'), due_date`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	return collectTasks(rows)
}

// ListOpenAssigned returns every assigned, non-completed task of a non-finished event.
// Used by the risk evaluator.
func (r *Repository) ListOpenAssigned(ctx context.Context) ([]models.Task, error) {
	q := `SELECT ` + taskColumns + ` FROM tasks
		WHERE assigned_to IS NOT NULL AND status <> 'Completed'
		AND EXISTS (SELECT 1 FROM events e WHERE e.id = tasks.event_id AND e.status <> 'finished')
		ORDER BY due_date`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	return collectTasks(rows)
}

// Update saves the editable fields and the refreshed risk level.
func (r *Repository) Update(ctx context.Context, t *models.Task) error {
	const q = `UPDATE tasks SET committee_id = $2, title = $3, description = $4, due_date = $5, risk_level = $6, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, t.ID, t.CommitteeID, t.Title, t.Description, t.DueDate, string(t.RiskLevel)).Scan(&t.UpdatedAt)
	if database.IsNoRows(err) {
		return apperr.ErrNotFound
	}
	return err
}

// Delete removes a task.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// Assign sets the assignee of a non-completed task. With onlyIfUnassigned the update
// only applies while nobody holds the task, which makes concurrent claims race-free.
// Returns the updated task, or nil when the condition did not match.
func (r *Repository) Assign(ctx context.Context, id, userID uuid.UUID, risk models.RiskLevel, onlyIfUnassigned bool) (*models.Task, error) {
	q := `UPDATE tasks
		SET assigned_to = $2,
			status = CASE WHEN status = 'Pending' THEN 'InProgress' ELSE status END,
			risk_level = $3,
			updated_at = NOW()
		WHERE id = $1 AND status <> 'Completed'`
	if onlyIfUnassigned {
		q += ` AND assigned_to IS NULL`
	}
	q += ` RETURNING ` + taskColumns
	t, err := scanTask(r.pool.QueryRow(ctx, q, id, userID, string(risk)))
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	return t, err
}

// Complete marks the task completed if the user still holds it.
func (r *Repository) Complete(ctx context.Context, id, userID uuid.UUID, at time.Time) (*models.Task, error) {
	q := `UPDATE tasks SET status = 'Completed', completed_at = $3, updated_at = $3
		WHERE id = $1 AND assigned_to = $2 AND status <> 'Completed'
		RETURNING ` + taskColumns
	t, err := scanTask(r.pool.QueryRow(ctx, q, id, userID, at))
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	return t, err
}

// SetStatus moves a task between coordinator-controlled states.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, from, to models.TaskStatus, risk models.RiskLevel) (*models.Task, error) {
	q := `UPDATE tasks SET status = $3, risk_level = $4, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + taskColumns
	t, err := scanTask(r.pool.QueryRow(ctx, q, id, string(from), string(to), string(risk)))
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, ErrStatusChanged
	}
	return t, err
}

// EventByID implements policy.EventLookup.
func (r *Repository) EventByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return r.event(ctx, `SELECT id, name, institution_id, coordinator_id, status, start_date, end_date FROM events WHERE id = $1`, id)
}

// EventByCommittee implements policy.EventLookup.
func (r *Repository) EventByCommittee(ctx context.Context, committeeID uuid.UUID) (*models.Event, error) {
	return r.event(ctx, `SELECT e.id, e.name, e.institution_id, e.coordinator_id, e.status, e.start_date, e.end_date
		FROM committees c JOIN events e ON e.id = c.event_id WHERE c.id = $1`, committeeID)
}

func (r *Repository) event(ctx context.Context, q string, id uuid.UUID) (*models.Event, error) {
	var e models.Event
	var status string
	err := r.pool.QueryRow(ctx, q, id).Scan(&e.ID, &e.Name, &e.InstitutionID, &e.CoordinatorID, &status, &e.StartDate, &e.EndDate)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	e.Status = models.EventStatus(status)
	return &e, nil
}

// CommitteeEventID returns the event a committee belongs to.
func (r *Repository) CommitteeEventID(ctx context.Context, committeeID uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT event_id FROM committees WHERE id = $1`, committeeID).Scan(&id)
	if database.IsNoRows(err) {
		return uuid.Nil, apperr.ErrNotFound
	}
	return id, err
}

// IsMember reports whether the user belongs to the committee and still actively participates in
// its event. Memberships outlive participation, so leaving an event ends claim eligibility.
func (r *Repository) IsMember(ctx context.Context, committeeID, userID uuid.UUID) (bool, error) {
	const q = `SELECT EXISTS (
		SELECT 1 FROM committee_members cm
		JOIN committees c ON c.id = cm.committee_id
		JOIN event_participants ep ON ep.event_id = c.event_id AND ep.user_id = cm.user_id AND ep.is_active
		WHERE cm.committee_id = $1 AND cm.user_id = $2)`
	var ok bool
	err := r.pool.QueryRow(ctx, q, committeeID, userID).Scan(&ok)
	return ok, err
}

// AddProgress appends a progress entry. p.ID is set by the caller so attachment keys can embed it.
func (r *Repository) AddProgress(ctx context.Context, p *models.TaskProgress) error {
	const q = `INSERT INTO task_progress (id, task_id, user_id, description, file_key, file_name)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`
	return r.pool.QueryRow(ctx, q, p.ID, p.TaskID, p.UserID, p.Description, p.FileKey, p.FileName).Scan(&p.CreatedAt)
}

// ListProgress returns a task's progress entries, oldest first.
func (r *Repository) ListProgress(ctx context.Context, taskID uuid.UUID) ([]models.TaskProgress, error) {
	q := `SELECT ` + progressColumns + ` FROM task_progress WHERE task_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.TaskProgress
	for rows.Next() {
		var p models.TaskProgress
		if err := rows.Scan(&p.ID, &p.TaskID, &p.UserID, &p.Description, &p.FileKey, &p.FileName, &p.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

func scanIncident(row pgx.Row) (*models.Incident, error) {
	var i models.Incident
	var status string
	if err := row.Scan(&i.ID, &i.TaskID, &i.ReportedBy, &i.Description, &status, &i.FileKey, &i.FileName,
		&i.SolutionTaskID, &i.Resolution, &i.ResolvedBy, &i.ResolvedAt, &i.CreatedAt, &i.UpdatedAt); err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	i.Status = models.IncidentStatus(status)
	return &i, nil
}

// CreateIncident inserts a reported incident. inc.ID is set by the caller.
func (r *Repository) CreateIncident(ctx context.Context, inc *models.Incident) error {
	const q = `INSERT INTO incidents (id, task_id, reported_by, description, status, file_key, file_name)
		VALUES ($1, $2, $3, $4, 'Reported', $5, $6) RETURNING created_at, updated_at`
	inc.Status = models.IncidentReported
	return r.pool.QueryRow(ctx, q, inc.ID, inc.TaskID, inc.ReportedBy, inc.Description, inc.FileKey, inc.FileName).
		Scan(&inc.CreatedAt, &inc.UpdatedAt)
}

// GetIncident returns an incident by ID.
func (r *Repository) GetIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	q := `SELECT ` + incidentColumns + ` FROM incidents WHERE id = $1`
	return scanIncident(r.pool.QueryRow(ctx, q, id))
}

// ListIncidents returns a task's incidents, newest first.
func (r *Repository) ListIncidents(ctx context.Context, taskID uuid.UUID) ([]models.Incident, error) {
	q := `SELECT ` + incidentColumns + ` FROM incidents WHERE task_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Incident
	for rows.Next() {
		i, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *i)
	}
	return list, rows.Err()
}

// ResolveIncident marks the incident resolved and, when remediation is given, creates that task
// and links it, in one transaction.
func (r *Repository) ResolveIncident(ctx context.Context, id, resolvedBy uuid.UUID, resolution string, remediation *models.Task, at time.Time) (*models.Incident, error) {
	var out *models.Incident
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var solutionID *uuid.UUID
		if remediation != nil {
			if err := insertTask(ctx, tx, remediation); err != nil {
				return fmt.Errorf("create remediation task: %w", err)
			}
			solutionID = &remediation.ID
		}
		q := `UPDATE incidents
			SET status = 'Resolved', resolution = $3, resolved_by = $4, resolved_at = $5,
				solution_task_id = COALESCE($2, solution_task_id), updated_at = $5
			WHERE id = $1 AND status = 'Reported'
			RETURNING ` + incidentColumns
		inc, err := scanIncident(tx.QueryRow(ctx, q, id, solutionID, resolution, resolvedBy, at))
		if errors.Is(err, apperr.ErrNotFound) {
			return ErrIncidentResolved
		}
		if err != nil {
			return err
		}
		out = inc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
