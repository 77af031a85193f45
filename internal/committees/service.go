package committees

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexusesi/backend/internal/models"
	"github.com/nexusesi/backend/internal/policy"
	"github.com/nexusesi/backend/pkg/apperr"
)

// ErrAlreadyMember is returned when adding a user twice to a committee.
var ErrAlreadyMember = apperr.Business("user already in committee")

// Store is the persistence the committees service needs.
type Store interface {
	Create(ctx context.Context, c *models.Committee) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Committee, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Committee, error)
	Rename(ctx context.Context, c *models.Committee) error
	Delete(ctx context.Context, id uuid.UUID) error
	AddMember(ctx context.Context, committeeID, userID uuid.UUID, role string) (*models.CommitteeMember, error)
	RemoveMember(ctx context.Context, committeeID, userID uuid.UUID) error
	ListMembers(ctx context.Context, committeeID uuid.UUID) ([]models.CommitteeMember, error)
	IsActiveParticipant(ctx context.Context, eventID, userID uuid.UUID) (bool, error)
}

// EventReader loads the event a committee belongs to.
type EventReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// Service implements committee management.
type Service struct {
	store  Store
	events EventReader
	logger *zap.Logger
}

// NewService creates a committees service.
func NewService(store Store, events EventReader, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, events: events, logger: logger}
}

func validateName(name string) error {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return apperr.Invalid("name", "is required")
	case len(name) > 255:
		return apperr.Invalid("name", "may not be greater than 255 characters")
	}
	return nil
}

func (s *Service) event(ctx context.Context, actor policy.Actor, eventID uuid.UUID, manage bool) (*models.Event, error) {
	ev, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	allowed := true
	if manage {
		allowed = policy.CanManageCommittees(actor, ev)
	}
	if err := policy.Authorize(policy.CanViewEvent(actor, ev), allowed); err != nil {
		return nil, err
	}
	if manage && ev.IsFinished() {
		return nil, apperr.Business("committees of a finished event cannot be changed")
	}
	return ev, nil
}

func (s *Service) committee(ctx context.Context, actor policy.Actor, id uuid.UUID, manage bool) (*models.Committee, *models.Event, error) {
	c, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	ev, err := s.event(ctx, actor, c.EventID, manage)
	if err != nil {
		return nil, nil, err
	}
	return c, ev, nil
}

// Create adds a committee to an event.
func (s *Service) Create(ctx context.Context, actor policy.Actor, eventID uuid.UUID, name string) (*models.Committee, error) {
	ev, err := s.event(ctx, actor, eventID, true)
	if err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	c := &models.Committee{EventID: ev.ID, Name: strings.TrimSpace(name)}
	if err := s.store.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create committee: %w", err)
	}
	return c, nil
}

// ListByEvent returns an event's committees.
func (s *Service) ListByEvent(ctx context.Context, actor policy.Actor, eventID uuid.UUID) ([]models.Committee, error) {
	ev, err := s.event(ctx, actor, eventID, false)
	if err != nil {
		return nil, err
	}
	return s.store.ListByEvent(ctx, ev.ID)
}

// Update renames a committee.
func (s *Service) Update(ctx context.Context, actor policy.Actor, id uuid.UUID, name string) (*models.Committee, error) {
	c, _, err := s.committee(ctx, actor, id, true)
	if err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	c.Name = strings.TrimSpace(name)
	if err := s.store.Rename(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Delete removes a committee.
func (s *Service) Delete(ctx context.Context, actor policy.Actor, id uuid.UUID) error {
	c, _, err := s.committee(ctx, actor, id, true)
	if err != nil {
		return err
	}
	return s.store.Delete(ctx, c.ID)
}

// AddMember adds an active participant of the committee's event.
func (s *Service) AddMember(ctx context.Context, actor policy.Actor, id, userID uuid.UUID, role string) (*models.CommitteeMember, error) {
	c, ev, err := s.committee(ctx, actor, id, true)
	if err != nil {
		return nil, err
	}
	if role == "" {
		role = models.DefaultCommitteeRole
	}
	ok, err := s.store.IsActiveParticipant(ctx, ev.ID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Business("user is not an active participant of the event")
	}
	m, err := s.store.AddMember(ctx, c.ID, userID, role)
	if err != nil {
		return nil, err
	}
	s.logger.Info("committee member added", zap.String("committee_id", c.ID.String()), zap.String("user_id", userID.String()))
	return m, nil
}

// RemoveMember removes a user from a committee.
func (s *Service) RemoveMember(ctx context.Context, actor policy.Actor, id, userID uuid.UUID) error {
	c, _, err := s.committee(ctx, actor, id, true)
	if err != nil {
		return err
	}
	return s.store.RemoveMember(ctx, c.ID, userID)
}

// Members lists a committee's members.
func (s *Service) Members(ctx context.Context, actor policy.Actor, id uuid.UUID) ([]models.CommitteeMember, error) {
	c, _, err := s.committee(ctx, actor, id, false)
	if err != nil {
		return nil, err
	}
	return s.store.ListMembers(ctx, c.ID)
}
