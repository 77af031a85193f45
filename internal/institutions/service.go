package institutions

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexusesi/backend/internal/models"
	"github.com/nexusesi/backend/internal/policy"
	"github.com/nexusesi/backend/pkg/apperr"
)

// Code must be uppercase alphanumeric and hyphens only, 2-64 chars.
var codeRegex = regexp.MustCompile(`^[A-Z0-9][A-Z0-9-]{1,63}$`)

// ErrCodeTaken is returned when an institution code is already used.
var ErrCodeTaken = apperr.Business("an institution with this code already exists")

// Store is the persistence the service needs.
type Store interface {
	Create(ctx context.Context, name, code string) (*models.Institution, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Institution, error)
	List(ctx context.Context, activeOnly bool) ([]models.Institution, error)
	Update(ctx context.Context, id uuid.UUID, name, code string) (*models.Institution, error)
	Toggle(ctx context.Context, id uuid.UUID) (*models.Institution, error)
}

// Service implements institution administration.
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService creates an institutions service.
func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

func normalize(name, code string) (string, string, error) {
	name = strings.TrimSpace(name)
	code = strings.ToUpper(strings.TrimSpace(code))
	verr := &apperr.ValidationError{}
	if name == "" || len(name) > 255 {
		verr.Add("name", "must be 1-255 characters")
	}
	if !codeRegex.MatchString(code) {
		verr.Add("code", "must be 2-64 chars, letters, numbers, hyphens only")
	}
	return name, code, verr.OrNil()
}

// Create adds an institution.
func (s *Service) Create(ctx context.Context, actor policy.Actor, name, code string) (*models.Institution, error) {
	if !policy.CanManageInstitutions(actor) {
		return nil, apperr.ErrForbidden
	}
	name, code, err := normalize(name, code)
	if err != nil {
		return nil, err
	}
	inst, err := s.store.Create(ctx, name, code)
	if err != nil {
		return nil, err
	}
	s.logger.Info("institution created", zap.String("institution_id", inst.ID.String()), zap.String("code", inst.Code))
	return inst, nil
}

// Get returns one institution.
func (s *Service) Get(ctx context.Context, actor policy.Actor, id uuid.UUID) (*models.Institution, error) {
	if !policy.CanManageInstitutions(actor) {
		return nil, apperr.ErrForbidden
	}
	return s.store.GetByID(ctx, id)
}

// List returns all institutions for admins.
func (s *Service) List(ctx context.Context, actor policy.Actor) ([]models.Institution, error) {
	if !policy.CanManageInstitutions(actor) {
		return nil, apperr.ErrForbidden
	}
	return s.store.List(ctx, false)
}

// ListActive returns active institutions; used by the public registration form.
func (s *Service) ListActive(ctx context.Context) ([]models.Institution, error) {
	return s.store.List(ctx, true)
}

// Update renames an institution.
func (s *Service) Update(ctx context.Context, actor policy.Actor, id uuid.UUID, name, code string) (*models.Institution, error) {
	if !policy.CanManageInstitutions(actor) {
		return nil, apperr.ErrForbidden
	}
	name, code, err := normalize(name, code)
	if err != nil {
		return nil, err
	}
	return s.store.Update(ctx, id, name, code)
}

// Toggle activates or deactivates an institution.
func (s *Service) Toggle(ctx context.Context, actor policy.Actor, id uuid.UUID) (*models.Institution, error) {
	if !policy.CanManageInstitutions(actor) {
		return nil, apperr.ErrForbidden
	}
	inst, err := s.store.Toggle(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("institution toggled", zap.String("institution_id", inst.ID.String()), zap.Bool("is_active", inst.IsActive))
	return inst, nil
}
