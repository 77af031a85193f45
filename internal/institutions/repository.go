package institutions

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

const institutionColumns = `id, name, code, is_active, created_at, updated_at`

// Repository handles institution persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an institutions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanInstitution(row pgx.Row) (*models.Institution, error) {
	var inst models.Institution
	if err := row.Scan(&inst.ID, &inst.Name, &inst.Code, &inst.IsActive, &inst.CreatedAt, &inst.UpdatedAt); err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &inst, nil
}

// Create inserts an institution. A duplicate code returns ErrCodeTaken.
func (r *Repository) Create(ctx context.Context, name, code string) (*models.Institution, error) {
	q := `INSERT INTO institutions (name, code) VALUES ($1, $2) RETURNING ` + institutionColumns
	inst, err := scanInstitution(r.pool.QueryRow(ctx, q, name, code))
	if err != nil {
		if database.IsUniqueViolation(err, "institutions_code_key") {
			return nil, ErrCodeTaken
		}
		return nil, fmt.Errorf("insert institution: %w", err)
	}
	return inst, nil
}

// GetByID returns an institution by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Institution, error) {
	q := `SELECT ` + institutionColumns + ` FROM institutions WHERE id = $1`
	return scanInstitution(r.pool.QueryRow(ctx, q, id))
}

// List returns institutions ordered by name, optionally only active ones.
func (r *Repository) List(ctx context.Context, activeOnly bool) ([]models.Institution, error) {
	q := `SELECT ` + institutionColumns + ` FROM institutions WHERE (NOT $1 OR is_active) ORDER BY name`
	rows, err := r.pool.Query(ctx, q, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Institution
	for rows.Next() {
		inst, err := scanInstitution(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *inst)
	}
	return list, rows.Err()
}

// Update sets name and code.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, name, code string) (*models.Institution, error) {
	q := `UPDATE institutions SET name = $2, code = $3, updated_at = NOW() WHERE id = $1 RETURNING ` + institutionColumns
	inst, err := scanInstitution(r.pool.QueryRow(ctx, q, id, name, code))
	if err != nil && database.IsUniqueViolation(err, "institutions_code_key") {
		return nil, ErrCodeTaken
	}
	return inst, err
}

// Toggle flips is_active.
func (r *Repository) Toggle(ctx context.Context, id uuid.UUID) (*models.Institution, error) {
	q := `UPDATE institutions SET is_active = NOT is_active, updated_at = NOW() WHERE id = $1 RETURNING ` + institutionColumns
	return scanInstitution(r.pool.QueryRow(ctx, q, id))
}
