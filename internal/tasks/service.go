package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
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
	// ErrAlreadyAssigned is returned to a leader claiming a task someone already holds.
	ErrAlreadyAssigned = apperr.Business("task already assigned")
	// ErrTaskCompleted is returned when assigning a completed task.
	ErrTaskCompleted = apperr.Business("completed tasks cannot be assigned")
	// ErrAlreadyCompleted is returned when completing a task twice.
	ErrAlreadyCompleted = apperr.Business("task already completed")
	// ErrStatusChanged is returned when the task moved between read and write.
	ErrStatusChanged = apperr.Business("task status changed, reload and try again")
	// ErrIncidentResolved is returned when resolving an incident twice.
	ErrIncidentResolved = apperr.Business("incident already resolved")
	// ErrEventFinished is returned for task writes on a finished event.
	ErrEventFinished = apperr.Business("the event is finished")
)

// Store is the persistence the tasks service needs.
type Store interface {
	policy.EventLookup
	Create(ctx context.Context, t *models.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Task, error)
	ListAssignedTo(ctx context.Context, userID uuid.UUID) ([]models.Task, error)
	Update(ctx context.Context, t *models.Task) error
	Delete(ctx context.Context, id uuid.UUID) error
	Assign(ctx context.Context, id, userID uuid.UUID, risk models.RiskLevel, onlyIfUnassigned bool) (*models.Task, error)
	Complete(ctx context.Context, id, userID uuid.UUID, at time.Time) (*models.Task, error)
	SetStatus(ctx context.Context, id uuid.UUID, from, to models.TaskStatus, risk models.RiskLevel) (*models.Task, error)
	CommitteeEventID(ctx context.Context, committeeID uuid.UUID) (uuid.UUID, error)
	IsMember(ctx context.Context, committeeID, userID uuid.UUID) (bool, error)
	AddProgress(ctx context.Context, p *models.TaskProgress) error
	ListProgress(ctx context.Context, taskID uuid.UUID) ([]models.TaskProgress, error)
	CreateIncident(ctx context.Context, inc *models.Incident) error
	GetIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	ListIncidents(ctx context.Context, taskID uuid.UUID) ([]models.Incident, error)
	ResolveIncident(ctx context.Context, id, resolvedBy uuid.UUID, resolution string, remediation *models.Task, at time.Time) (*models.Incident, error)
}

// UserReader loads assignment targets.
type UserReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Attachments stores uploaded files and signs download links.
type Attachments interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	PresignDownload(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// AssignmentAlerter raises the risk alert of a task handed to a new assignee.
type AssignmentAlerter interface {
	AlertAssigned(ctx context.Context, t *models.Task) (*models.Alert, error)
}

// Service implements task management, assignment, progress and incidents.
type Service struct {
	store    Store
	users    UserReader
	files    Attachments
	notifier notifications.Notifier
	alerter  AssignmentAlerter
	now      func() time.Time
	logger   *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithAssignmentAlerts raises a risk alert when a task is assigned inside its Medium or High window.
func WithAssignmentAlerts(a AssignmentAlerter) Option {
	return func(s *Service) { s.alerter = a }
}

// NewService creates a tasks service. files may be nil when attachments are not configured.
func NewService(store Store, users UserReader, files Attachments, notifier notifications.Notifier, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = notifications.Nop{}
	}
	s := &Service{store: store, users: users, files: files, notifier: notifier, now: time.Now, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Input holds the fields of a new task.
type Input struct {
	Title       string
	Description string
	DueDate     time.Time
	CommitteeID *uuid.UUID
}

// UpdateInput holds a task patch. Nil fields are left unchanged.
type UpdateInput struct {
	Title       *string
	Description *string
	DueDate     *time.Time
	CommitteeID *uuid.UUID
}

func validateTask(title string, due time.Time) *apperr.ValidationError {
	verr := &apperr.ValidationError{}
	title = strings.TrimSpace(title)
	if title == "" {
		verr.Add("title", "is required")
	} else if len(title) > 255 {
		verr.Add("title", "may not be greater than 255 characters")
	}
	if due.IsZero() {
		verr.Add("due_date", "is required")
	}
	return verr
}

// load returns a task and its resolved event, presenting invisible tasks as missing.
func (s *Service) load(ctx context.Context, actor policy.Actor, id uuid.UUID) (*models.Task, *models.Event, error) {
	t, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	ev, err := policy.ResolveEvent(ctx, policy.ScopeOf(t), s.store)
	if err != nil {
		return nil, nil, err
	}
	if !policy.CanViewTask(actor, ev) {
		return nil, nil, apperr.ErrNotFound
	}
	return t, ev, nil
}

func (s *Service) checkCommittee(ctx context.Context, committeeID *uuid.UUID, ev *models.Event) error {
	if committeeID == nil {
		return nil
	}
	eventID, err := s.store.CommitteeEventID(ctx, *committeeID)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	if err != nil || eventID != ev.ID {
		return apperr.Invalid("committee_id", "must be a committee of the event")
	}
	return nil
}

// Create adds a Pending task to an event.
func (s *Service) Create(ctx context.Context, actor policy.Actor, eventID uuid.UUID, in Input) (*models.Task, error) {
	ev, err := s.store.EventByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(policy.CanViewTask(actor, ev), policy.CanManageTasks(actor, ev)); err != nil {
		return nil, err
	}
	if ev.IsFinished() {
		return nil, ErrEventFinished
	}
	if verr := validateTask(in.Title, in.DueDate); verr.HasErrors() {
		return nil, verr
	}
	if err := s.checkCommittee(ctx, in.CommitteeID, ev); err != nil {
		return nil, err
	}
	t := &models.Task{
		EventID:     ev.ID,
		CommitteeID: in.CommitteeID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		DueDate:     in.DueDate,
		Status:      models.TaskPending,
		RiskLevel:   models.ComputeRisk(in.DueDate, s.now()),
		CreatedBy:   actor.UserID,
	}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return t, nil
}

// ListByEvent returns an event's tasks.
func (s *Service) ListByEvent(ctx context.Context, actor policy.Actor, eventID uuid.UUID) ([]models.Task, error) {
	ev, err := s.store.EventByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !policy.CanViewTask(actor, ev) {
		return nil, apperr.ErrNotFound
	}
	return s.withRisk(s.store.ListByEvent(ctx, ev.ID))
}

// Mine returns the tasks assigned to the actor.
func (s *Service) Mine(ctx context.Context, actor policy.Actor) ([]models.Task, error) {
	return s.withRisk(s.store.ListAssignedTo(ctx, actor.UserID))
}

// withRisk recomputes the risk level of open tasks; the stored value is only a cache.
func (s *Service) withRisk(list []models.Task, err error) ([]models.Task, error) {
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range list {
		if list[i].Status != models.TaskCompleted {
			list[i].RiskLevel = models.ComputeRisk(list[i].DueDate, now)
		}
	}
	return list, nil
}

// Get returns a task visible to the actor.
func (s *Service) Get(ctx context.Context, actor policy.Actor, id uuid.UUID) (*models.Task, error) {
	t, _, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if t.Status != models.TaskCompleted {
		t.RiskLevel = models.ComputeRisk(t.DueDate, s.now())
	}
	return t, nil
}

// Update patches a task and refreshes its risk level.
func (s *Service) Update(ctx context.Context, actor policy.Actor, id uuid.UUID, in UpdateInput) (*models.Task, error) {
	t, ev, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanManageTasks(actor, ev) {
		return nil, apperr.ErrForbidden
	}
	if ev.IsFinished() {
		return nil, ErrEventFinished
	}
	if t.Status == models.TaskCompleted {
		return nil, apperr.Business("completed tasks cannot be edited")
	}
	if in.Title != nil {
		t.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		t.Description = *in.Description
	}
	if in.DueDate != nil {
		t.DueDate = *in.DueDate
	}
	if in.CommitteeID != nil {
		if err := s.checkCommittee(ctx, in.CommitteeID, ev); err != nil {
			return nil, err
		}
		t.CommitteeID = in.CommitteeID
	}
	if verr := validateTask(t.Title, t.DueDate); verr.HasErrors() {
		return nil, verr
	}
	t.RiskLevel = models.ComputeRisk(t.DueDate, s.now())
	if err := s.store.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return t, nil
}

// Delete removes a task.
func (s *Service) Delete(ctx context.Context, actor policy.Actor, id uuid.UUID) error {
	t, ev, err := s.load(ctx, actor, id)
	if err != nil {
		return err
	}
	if !policy.CanManageTasks(actor, ev) {
		return apperr.ErrForbidden
	}
	return s.store.Delete(ctx, t.ID)
}
