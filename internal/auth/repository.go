package auth

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

const userColumns = `id, email, password_hash, full_name, role, institution_id, is_active, created_at, updated_at`

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var role string
	if err := row.Scan(&u.ID, &u.Email, &u.Password, &u.FullName, &role, &u.InstitutionID,
		&u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	u.Role = models.Role(role)
	return &u, nil
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, q, id))
}

// GetByEmail returns a user by email (case-insensitive).
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	return scanUser(r.pool.QueryRow(ctx, q, email))
}

// ListFilter narrows List. Zero values match everything.
type ListFilter struct {
	InstitutionID *uuid.UUID
	Role          models.Role
}

// List returns users ordered by name.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users
		WHERE ($1::uuid IS NULL OR institution_id = $1)
		  AND ($2 = '' OR role = $2)
		ORDER BY full_name, email`
	rows, err := r.pool.Query(ctx, q, f.InstitutionID, string(f.Role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *u)
	}
	return list, rows.Err()
}

// CreateUserParams holds the fields of a new user.
type CreateUserParams struct {
	Email         string
	PasswordHash  string
	FullName      string
	Role          models.Role
	InstitutionID *uuid.UUID
}

// Create inserts a new user. A duplicate email returns ErrEmailTaken.
func (r *Repository) Create(ctx context.Context, p CreateUserParams) (*models.User, error) {
	q := `INSERT INTO users (email, password_hash, full_name, role, institution_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + userColumns
	u, err := scanUser(r.pool.QueryRow(ctx, q, p.Email, p.PasswordHash, p.FullName, string(p.Role), p.InstitutionID))
	if err != nil {
		if database.IsUniqueViolation(err, "users_email_key") {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// UpdateRole sets a user's role.
func (r *Repository) UpdateRole(ctx context.Context, id uuid.UUID, role models.Role) (*models.User, error) {
	q := `UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, q, id, string(role)))
}

// SetActive activates or deactivates a user.
func (r *Repository) SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.User, error) {
	q := `UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, q, id, active))
}

// ActiveMembersOf returns the active users of an institution with the given ids.
// Used to check that assignees and invitees belong to the caller's institution.
func (r *Repository) ActiveMembersOf(ctx context.Context, institutionID uuid.UUID, ids []uuid.UUID) ([]models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users
		WHERE institution_id = $1 AND is_active AND id = ANY($2)`
	rows, err := r.pool.Query(ctx, q, institutionID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *u)
	}
	return list, rows.Err()
}
