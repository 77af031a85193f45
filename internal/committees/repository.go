package committees

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nexusesi/backend/internal/models"
	"github.com/nexusesi/backend/pkg/apperr"
	"github.com/nexusesi/backend/pkg/database"
)

const committeeColumns = `id, event_id, name, created_at, updated_at`

// Repository handles committee and membership persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a committees repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanCommittee(row pgx.Row) (*models.Committee, error) {
	var c models.Committee
	if err := row.Scan(&c.ID, &c.EventID, &c.Name, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// Create inserts a committee.
func (r *Repository) Create(ctx context.Context, c *models.Committee) error {
	const q = `INSERT INTO committees (event_id, name) VALUES ($1, $2) RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, c.EventID, c.Name).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

// GetByID returns a committee by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Committee, error) {
	q := `SELECT ` + committeeColumns + ` FROM committees WHERE id = $1`
	return scanCommittee(r.pool.QueryRow(ctx, q, id))
}

// ListByEvent returns the committees of an event by name.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Committee, error) {
	q := `SELECT ` + committeeColumns + ` FROM committees WHERE event_id = $1 ORDER BY name`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Committee
	for rows.Next() {
		c, err := scanCommittee(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *c)
	}
	return list, rows.Err()
}

// Rename changes a committee's name.
func (r *Repository) Rename(ctx context.Context, c *models.Committee) error {
	err := r.pool.QueryRow(ctx, `UPDATE committees SET name = $2, updated_at = NOW() WHERE id = $1 RETURNING updated_at`, c.ID, c.Name).
		Scan(&c.UpdatedAt)
	if database.IsNoRows(err) {
		return apperr.ErrNotFound
	}
	return err
}

// Delete removes a committee and its memberships. Tasks and meetings of the committee stay with
// the event and are detached first, so progress and incident history is kept.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE tasks SET committee_id = NULL, updated_at = NOW() WHERE committee_id = $1`, id); err != nil {
			return fmt.Errorf("detach tasks: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE meetings SET committee_id = NULL, updated_at = NOW() WHERE committee_id = $1`, id); err != nil {
			return fmt.Errorf("detach meetings: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM committees WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return apperr.ErrNotFound
		}
		return nil
	})
}

// AddMember inserts a membership. A duplicate returns ErrAlreadyMember.
func (r *Repository) AddMember(ctx context.Context, committeeID, userID uuid.UUID, role string) (*models.CommitteeMember, error) {
	const q = `INSERT INTO committee_members (committee_id, user_id, role) VALUES ($1, $2, $3) RETURNING assigned_at`
	m := &models.CommitteeMember{CommitteeID: committeeID, UserID: userID, Role: role}
	if err := r.pool.QueryRow(ctx, q, committeeID, userID, role).Scan(&m.AssignedAt); err != nil {
		if database.IsUniqueViolation(err, "committee_members_pkey") {
			return nil, ErrAlreadyMember
		}
		return nil, fmt.Errorf("insert member: %w", err)
	}
	return m, nil
}

// RemoveMember deletes a membership.
func (r *Repository) RemoveMember(ctx context.Context, committeeID, userID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM committee_members WHERE committee_id = $1 AND user_id = $2`, committeeID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// ListMembers returns a committee's members with names.
func (r *Repository) ListMembers(ctx context.Context, committeeID uuid.UUID) ([]models.CommitteeMember, error) {
	const q = `SELECT m.committee_id, m.user_id, m.role, m.assigned_at, u.full_name, u.email
		FROM committee_members m JOIN users u ON u.id = m.user_id
		WHERE m.committee_id = $1
		ORDER BY u.full_name`
	rows, err := r.pool.Query(ctx, q, committeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.CommitteeMember
	for rows.Next() {
		var m models.CommitteeMember
		if err := rows.Scan(&m.CommitteeID, &m.UserID, &m.Role, &m.AssignedAt, &m.FullName, &m.Email); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// MemberIDs returns the user ids of a committee's members.
func (r *Repository) MemberIDs(ctx context.Context, committeeID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id FROM committee_members WHERE committee_id = $1`, committeeID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

// IsActiveParticipant reports whether the user actively participates in the event.
func (r *Repository) IsActiveParticipant(ctx context.Context, eventID, userID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM event_participants WHERE event_id = $1 AND user_id = $2 AND is_active)`,
		eventID, userID).Scan(&ok)
	return ok, err
}
