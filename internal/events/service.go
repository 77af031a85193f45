package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexusesi/backend/internal/models"
	"github.com/nexusesi/backend/internal/notifications"
	"github.com/nexusesi/backend/internal/policy"
	"github.com/nexusesi/backend/pkg/apperr"
)

var (
	// ErrAlreadyActive is returned when a leader already has an active participation.
	ErrAlreadyActive = apperr.Business("user already has an active event")
	// ErrAlreadyFinished is returned for operations on a finished event that need it open.
	ErrAlreadyFinished = apperr.Business("event is already finished")
)

// Store is the persistence the events service needs.
type Store interface {
	Create(ctx context.Context, e *models.Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	ListByInstitution(ctx context.Context, institutionID uuid.UUID, status models.EventStatus) ([]models.Event, error)
	ListDueForClosing(ctx context.Context, now time.Time) ([]models.Event, error)
	Update(ctx context.Context, e *models.Event) error
	SetStatus(ctx context.Context, id uuid.UUID, status models.EventStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
	Finish(ctx context.Context, id uuid.UUID, at time.Time) ([]uuid.UUID, error)
	ActiveParticipation(ctx context.Context, userID uuid.UUID) (*models.EventParticipant, error)
	AddParticipant(ctx context.Context, eventID, userID uuid.UUID, role string) (*models.EventParticipant, error)
	Leave(ctx context.Context, eventID, userID uuid.UUID, at time.Time) error
	ListParticipants(ctx context.Context, eventID uuid.UUID) ([]models.EventParticipant, error)
	Reuse(ctx context.Context, srcID uuid.UUID, dst *models.Event, shift time.Duration, now time.Time) (*ReuseSummary, error)
}

// Service implements the event lifecycle and participation rules.
type Service struct {
	store    Store
	notifier notifications.Notifier
	gate     policy.ReuseGate
	now      func() time.Time
	logger   *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithReuseGate replaces the default reuse gate.
func WithReuseGate(g policy.ReuseGate) Option {
	return func(s *Service) { s.gate = g }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates an events service.
func NewService(store Store, notifier notifications.Notifier, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = notifications.Nop{}
	}
	s := &Service{store: store, notifier: notifier, gate: policy.AllowReuse, now: time.Now, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Input holds the fields of a new event.
type Input struct {
	Name        string
	Description string
	StartDate   time.Time
	EndDate     time.Time
}

// UpdateInput holds an event patch. Nil fields are left unchanged.
type UpdateInput struct {
	Name        *string
	Description *string
	StartDate   *time.Time
	EndDate     *time.Time
}

func (u UpdateInput) touchesMoreThanDescription() bool {
	return u.Name != nil || u.StartDate != nil || u.EndDate != nil
}

func validateEvent(name string, start, end time.Time) error {
	verr := &apperr.ValidationError{}
	if strings.TrimSpace(name) == "" {
		verr.Add("name", "is required")
	} else if len(name) > 255 {
		verr.Add("name", "may not be greater than 255 characters")
	}
	if start.IsZero() {
		verr.Add("start_date", "is required")
	}
	if end.IsZero() {
		verr.Add("end_date", "is required")
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		verr.Add("end_date", "must be a date after or equal to start_date")
	}
	return verr.OrNil()
}

// Create stores a new active event owned by the coordinator, in the coordinator's institution.
func (s *Service) Create(ctx context.Context, actor policy.Actor, in Input) (*models.Event, error) {
	if !policy.CanCreateEvent(actor) {
		return nil, apperr.ErrForbidden
	}
	if err := validateEvent(in.Name, in.StartDate, in.EndDate); err != nil {
		return nil, err
	}
	e := &models.Event{
		Name:          strings.TrimSpace(in.Name),
		Description:   in.Description,
		StartDate:     in.StartDate,
		EndDate:       in.EndDate,
		CoordinatorID: actor.UserID,
		InstitutionID: *actor.InstitutionID,
		Status:        models.EventActive,
	}
	if err := s.store.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	s.logger.Info("event created", zap.String("event_id", e.ID.String()), zap.String("coordinator_id", actor.UserID.String()))
	return e, nil
}

// Get returns an event visible to the actor.
func (s *Service) Get(ctx context.Context, actor policy.Actor, id uuid.UUID) (*models.Event, error) {
	ev, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanViewEvent(actor, ev) {
		return nil, apperr.ErrNotFound
	}
	return ev, nil
}

// List returns the events of the actor's institution, optionally filtered by status.
func (s *Service) List(ctx context.Context, actor policy.Actor, status models.EventStatus) ([]models.Event, error) {
	if actor.InstitutionID == nil {
		return nil, apperr.ErrForbidden
	}
	if status != "" && !status.Valid() {
		return nil, apperr.Invalid("status", "must be one of: active inactive finished")
	}
	return s.store.ListByInstitution(ctx, *actor.InstitutionID, status)
}

func (s *Service) loadManaged(ctx context.Context, actor policy.Actor, id uuid.UUID) (*models.Event, error) {
	ev, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(policy.CanViewEvent(actor, ev), policy.CanManageEvent(actor, ev)); err != nil {
		return nil, err
	}
	return ev, nil
}

// Update patches an event. Finished events accept description changes only.
func (s *Service) Update(ctx context.Context, actor policy.Actor, id uuid.UUID, in UpdateInput) (*models.Event, error) {
	ev, err := s.loadManaged(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if ev.IsFinished() && in.touchesMoreThanDescription() {
		return nil, apperr.Business("finished events only accept description changes")
	}
	if in.Name != nil {
		ev.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		ev.Description = *in.Description
	}
	if in.StartDate != nil {
		ev.StartDate = *in.StartDate
	}
	if in.EndDate != nil {
		ev.EndDate = *in.EndDate
	}
	if err := validateEvent(ev.Name, ev.StartDate, ev.EndDate); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, ev); err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	return ev, nil
}

// ChangeStatus applies a status transition. Moving to finished goes through Finish.
func (s *Service) ChangeStatus(ctx context.Context, actor policy.Actor, id uuid.UUID, status models.EventStatus) (*models.Event, error) {
	if !status.Valid() {
		return nil, apperr.Invalid("status", "must be one of: active inactive finished")
	}
	ev, err := s.loadManaged(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if ev.Status == status {
		return nil, apperr.Business(fmt.Sprintf("event is already %s", status))
	}
	if !ev.Status.CanTransitionTo(status) {
		return nil, apperr.Business(fmt.Sprintf("cannot change event status from %s to %s", ev.Status, status))
	}
	if status == models.EventFinished {
		return s.finish(ctx, ev)
	}
	if err := s.store.SetStatus(ctx, ev.ID, status); err != nil {
		return nil, err
	}
	ev.Status = status
	return ev, nil
}

// Finish ends the event and closes every participation.
func (s *Service) Finish(ctx context.Context, actor policy.Actor, id uuid.UUID) (*models.Event, error) {
	ev, err := s.loadManaged(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if ev.IsFinished() {
		return nil, ErrAlreadyFinished
	}
	return s.finish(ctx, ev)
}

func (s *Service) finish(ctx context.Context, ev *models.Event) (*models.Event, error) {
	closed, err := s.store.Finish(ctx, ev.ID, s.now())
	if err != nil {
		return nil, err
	}
	ev.Status = models.EventFinished
	s.logger.Info("event finished", zap.String("event_id", ev.ID.String()), zap.Int("participants_closed", len(closed)))

	msgs := make([]notifications.Message, 0, len(closed))
	for _, uid := range closed {
		msgs = append(msgs, notifications.Message{
			UserID: uid,
			Type:   models.NotifyEventFinished,
			Title:  "Event finished",
			Body:   fmt.Sprintf("The event %q has finished. Your participation was closed.", ev.Name),
			Data:   map[string]interface{}{"event_id": ev.ID},
		})
	}
	s.notifier.Notify(ctx, msgs...)
	return ev, nil
}

// FinishDue finishes every event whose end date has passed. Used by the worker.
func (s *Service) FinishDue(ctx context.Context) (int, error) {
	due, err := s.store.ListDueForClosing(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("list due events: %w", err)
	}
	finished := 0
	for i := range due {
		if ctx.Err() != nil {
			return finished, ctx.Err()
		}
		if _, err := s.finish(ctx, &due[i]); err != nil {
			if errors.Is(err, ErrAlreadyFinished) {
				continue
			}
			s.logger.Error("auto finish failed", zap.String("event_id", due[i].ID.String()), zap.Error(err))
			continue
		}
		finished++
	}
	return finished, nil
}

// Delete removes an event that has not started yet.
func (s *Service) Delete(ctx context.Context, actor policy.Actor, id uuid.UUID) error {
	ev, err := s.loadManaged(ctx, actor, id)
	if err != nil {
		return err
	}
	if !ev.InPlanningPhase(s.now()) {
		return apperr.Business("events can only be deleted during the planning phase")
	}
	return s.store.Delete(ctx, ev.ID)
}

// Participate joins the leader to an active event. A leader holds one active participation at a time.
func (s *Service) Participate(ctx context.Context, actor policy.Actor, id uuid.UUID) (*models.EventParticipant, error) {
	ev, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(policy.CanViewEvent(actor, ev), policy.CanParticipate(actor, ev)); err != nil {
		return nil, err
	}
	if ev.Status != models.EventActive {
		return nil, apperr.Business("event is not active")
	}
	current, err := s.store.ActiveParticipation(ctx, actor.UserID)
	switch {
	case err == nil && current.EventID == ev.ID:
		return nil, apperr.Business("already participating in this event")
	case err == nil:
		return nil, ErrAlreadyActive
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, err
	}
	p, err := s.store.AddParticipant(ctx, ev.ID, actor.UserID, models.DefaultParticipationRole)
	if err != nil {
		return nil, err
	}
	s.logger.Info("participation started", zap.String("event_id", ev.ID.String()), zap.String("user_id", actor.UserID.String()))
	return p, nil
}

// Leave ends the actor's active participation in the event.
func (s *Service) Leave(ctx context.Context, actor policy.Actor, id uuid.UUID) error {
	ev, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !policy.CanViewEvent(actor, ev) {
		return apperr.ErrNotFound
	}
	if err := s.store.Leave(ctx, ev.ID, actor.UserID, s.now()); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.Business("not participating in this event")
		}
		return err
	}
	return nil
}

// Participants lists everyone who joined the event.
func (s *Service) Participants(ctx context.Context, actor policy.Actor, id uuid.UUID) ([]models.EventParticipant, error) {
	ev, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.store.ListParticipants(ctx, ev.ID)
}

// Reuse clones a finished event's committees and tasks into a new event.
func (s *Service) Reuse(ctx context.Context, actor policy.Actor, id uuid.UUID, in Input) (*ReuseSummary, error) {
	ev, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(policy.CanViewEvent(actor, ev), policy.CanManageEvent(actor, ev)); err != nil {
		return nil, err
	}
	if !ev.IsFinished() {
		return nil, apperr.Business("only finished events can be reused")
	}
	if !policy.CanReuseEvent(actor, ev, s.gate) {
		return nil, apperr.ErrForbidden
	}
	if err := validateEvent(in.Name, in.StartDate, in.EndDate); err != nil {
		return nil, err
	}
	dst := &models.Event{
		Name:          strings.TrimSpace(in.Name),
		Description:   in.Description,
		StartDate:     in.StartDate,
		EndDate:       in.EndDate,
		CoordinatorID: actor.UserID,
		InstitutionID: ev.InstitutionID,
		Status:        models.EventActive,
	}
	if dst.Description == "" {
		dst.Description = ev.Description
	}
	summary, err := s.store.Reuse(ctx, ev.ID, dst, in.StartDate.Sub(ev.StartDate), s.now())
	if err != nil {
		return nil, fmt.Errorf("reuse event: %w", err)
	}
	s.logger.Info("event reused",
		zap.String("source_id", ev.ID.String()),
		zap.String("event_id", summary.Event.ID.String()),
		zap.Int("committees", summary.Committees),
		zap.Int("tasks", summary.Tasks),
	)
	return summary, nil
}
