package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexusesi/backend/internal/models"
	"github.com/nexusesi/backend/internal/policy"
	"github.com/nexusesi/backend/pkg/apperr"
	"github.com/nexusesi/backend/pkg/utils"
)

var (
	// ErrEmailTaken is returned when registering an email that already exists.
	ErrEmailTaken = apperr.Business("email already registered")
	// ErrInvalidCredentials is returned for unknown emails, wrong passwords and inactive users alike.
	ErrInvalidCredentials = fmt.Errorf("invalid email or password: %w", apperr.ErrUnauthenticated)
)

var validate = validator.New()

// UserStore is the persistence the auth service needs.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, f ListFilter) ([]models.User, error)
	Create(ctx context.Context, p CreateUserParams) (*models.User, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role models.Role) (*models.User, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.User, error)
}

// InstitutionReader looks up institutions users are attached to.
type InstitutionReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Institution, error)
}

// Service implements registration, login and admin user management.
type Service struct {
	users        UserStore
	institutions InstitutionReader
	jwt          *JWTService
	logger       *zap.Logger
}

// NewService creates an auth service.
func NewService(users UserStore, institutions InstitutionReader, jwt *JWTService, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{users: users, institutions: institutions, jwt: jwt, logger: logger}
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string            `json:"token"`
	User  models.UserPublic `json:"user"`
}

// RegisterInput is a self-registration. Registered users are seedbed leaders.
type RegisterInput struct {
	Email         string
	Password      string
	FullName      string
	InstitutionID uuid.UUID
}

// Register creates a seedbed leader in an active institution and returns a token.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*TokenResponse, error) {
	verr := validateUserInput(in.Email, in.Password, in.FullName)
	if verr.HasErrors() {
		return nil, verr
	}
	if err := s.requireActiveInstitution(ctx, in.InstitutionID); err != nil {
		return nil, err
	}
	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	instID := in.InstitutionID
	user, err := s.users.Create(ctx, CreateUserParams{
		Email:         normalizeEmail(in.Email),
		PasswordHash:  hash,
		FullName:      strings.TrimSpace(in.FullName),
		Role:          models.RoleSeedbedLeader,
		InstitutionID: &instID,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID.String()))
	return s.issue(user)
}

// Login checks credentials of an active user and returns a token.
func (s *Service) Login(ctx context.Context, email, password string) (*TokenResponse, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !utils.CheckPassword(password, user.Password) || !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	return s.issue(user)
}

func (s *Service) issue(user *models.User) (*TokenResponse, error) {
	token, err := s.jwt.Generate(user)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &TokenResponse{Token: token, User: user.ToPublic()}, nil
}

// ListUsers returns users matching f. Admin only.
func (s *Service) ListUsers(ctx context.Context, actor policy.Actor, f ListFilter) ([]models.User, error) {
	if !policy.CanManageUsers(actor) {
		return nil, apperr.ErrForbidden
	}
	return s.users.List(ctx, f)
}

// CreateUserInput is an admin-created account.
type CreateUserInput struct {
	Email         string
	Password      string
	FullName      string
	Role          models.Role
	InstitutionID *uuid.UUID
}

// CreateUser creates an account with any role. Non-admins need an existing institution.
func (s *Service) CreateUser(ctx context.Context, actor policy.Actor, in CreateUserInput) (*models.User, error) {
	if !policy.CanManageUsers(actor) {
		return nil, apperr.ErrForbidden
	}
	verr := validateUserInput(in.Email, in.Password, in.FullName)
	if !in.Role.Valid() {
		verr.Add("role", "must be one of: admin coordinator seedbed_leader")
	}
	if in.Role != models.RoleAdmin && in.InstitutionID == nil {
		verr.Add("institution_id", "is required")
	}
	if verr.HasErrors() {
		return nil, verr
	}
	if in.InstitutionID != nil {
		if _, err := s.institutions.GetByID(ctx, *in.InstitutionID); err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return nil, apperr.Invalid("institution_id", "does not exist")
			}
			return nil, err
		}
	}
	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user, err := s.users.Create(ctx, CreateUserParams{
		Email:         normalizeEmail(in.Email),
		PasswordHash:  hash,
		FullName:      strings.TrimSpace(in.FullName),
		Role:          in.Role,
		InstitutionID: in.InstitutionID,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("user created", zap.String("user_id", user.ID.String()), zap.String("role", string(user.Role)),
		zap.String("by", actor.UserID.String()))
	return user, nil
}

// ChangeRole assigns a new role. Reassigning the current role is a business error.
func (s *Service) ChangeRole(ctx context.Context, actor policy.Actor, userID uuid.UUID, role models.Role) (*models.User, error) {
	if !policy.CanManageUsers(actor) {
		return nil, apperr.ErrForbidden
	}
	if !role.Valid() {
		return nil, apperr.Invalid("role", "must be one of: admin coordinator seedbed_leader")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role == role {
		return nil, apperr.Business("role already assigned")
	}
	if role != models.RoleAdmin && user.InstitutionID == nil {
		return nil, apperr.Invalid("role", "user has no institution")
	}
	if user.ID == actor.UserID {
		return nil, apperr.Business("you cannot change your own role")
	}
	return s.users.UpdateRole(ctx, userID, role)
}

// SetActive activates or deactivates an account. Admins cannot deactivate themselves.
func (s *Service) SetActive(ctx context.Context, actor policy.Actor, userID uuid.UUID, active bool) (*models.User, error) {
	if !policy.CanManageUsers(actor) {
		return nil, apperr.ErrForbidden
	}
	if userID == actor.UserID && !active {
		return nil, apperr.Business("you cannot deactivate your own account")
	}
	return s.users.SetActive(ctx, userID, active)
}

func (s *Service) requireActiveInstitution(ctx context.Context, id uuid.UUID) error {
	inst, err := s.institutions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.Invalid("institution_id", "does not exist")
		}
		return err
	}
	if !inst.IsActive {
		return apperr.Business("institution is not active")
	}
	return nil
}

func validateUserInput(email, password, fullName string) *apperr.ValidationError {
	verr := &apperr.ValidationError{}
	if err := validate.Var(strings.TrimSpace(email), "required,email"); err != nil {
		verr.Add("email", "must be a valid email address")
	}
	if len(password) < utils.MinPasswordLength {
		verr.Add("password", fmt.Sprintf("must be at least %d characters", utils.MinPasswordLength))
	}
	if strings.TrimSpace(fullName) == "" {
		verr.Add("full_name", "is required")
	}
	return verr
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
