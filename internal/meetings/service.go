package meetings

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
	"github.com/nexusesi/backend/pkg/utils"
)

// DefaultQRValidity is how long after the scheduled start a QR code stays valid.
const DefaultQRValidity = time.Hour

var (
	// ErrQRExpired is returned for a known check-in token past its expiry.
	ErrQRExpired = apperr.Business("QR code expired")
	// ErrNotScheduled is returned for operations that need a scheduled meeting.
	ErrNotScheduled = apperr.Business("meeting is not scheduled")
)

// Store is the persistence the meetings service needs.
type Store interface {
	CreateWithInvitations(ctx context.Context, m *models.Meeting, invitees []uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Meeting, error)
	GetByQRCode(ctx context.Context, code string) (*models.Meeting, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Meeting, error)
	Cancel(ctx context.Context, id uuid.UUID) error
	SetQRCode(ctx context.Context, id uuid.UUID, code string, expiresAt time.Time) error
	RecordAttendance(ctx context.Context, meetingID, userID uuid.UUID, via models.CheckInMethod, at time.Time) (*models.MeetingAttendance, bool, error)
	ListAttendance(ctx context.Context, meetingID uuid.UUID) ([]models.MeetingAttendance, error)
	RespondInvitation(ctx context.Context, meetingID, userID uuid.UUID, status models.InvitationStatus, at time.Time) (*models.MeetingInvitation, error)
	InviteeIDs(ctx context.Context, meetingID uuid.UUID) ([]uuid.UUID, error)
}

// EventReader loads a meeting's event.
type EventReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// CommitteeReader loads committees and their members for default invitations.
type CommitteeReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Committee, error)
	MemberIDs(ctx context.Context, committeeID uuid.UUID) ([]uuid.UUID, error)
}

// UserDirectory filters user ids down to active users of an institution.
type UserDirectory interface {
	ActiveMembersOf(ctx context.Context, institutionID uuid.UUID, ids []uuid.UUID) ([]models.User, error)
}

// Service implements meetings, invitations and QR check-in.
type Service struct {
	store      Store
	events     EventReader
	committees CommitteeReader
	users      UserDirectory
	notifier   notifications.Notifier
	qrValidity time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithQRValidity sets how long after scheduled_at a QR code stays valid.
func WithQRValidity(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.qrValidity = d
		}
	}
}

// NewService creates a meetings service.
func NewService(store Store, events EventReader, committees CommitteeReader, users UserDirectory, notifier notifications.Notifier, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = notifications.Nop{}
	}
	s := &Service{
		store:      store,
		events:     events,
		committees: committees,
		users:      users,
		notifier:   notifier,
		qrValidity: DefaultQRValidity,
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput holds a new meeting. A nil InviteeIDs with a committee invites the committee's members.
type CreateInput struct {
	CommitteeID *uuid.UUID
	Title       string
	Description string
	ScheduledAt time.Time
	Location    string
	MeetingType models.MeetingType
	InviteeIDs  []uuid.UUID
}

// CheckInResult is the outcome of a check-in. AlreadyRecorded marks a repeated check-in.
type CheckInResult struct {
	Attendance      *models.MeetingAttendance `json:"attendance"`
	AlreadyRecorded bool                      `json:"already_recorded"`
}

// CheckInInfo is what a scanned QR code reveals before check-in.
type CheckInInfo struct {
	MeetingID   uuid.UUID `json:"meeting_id"`
	Title       string    `json:"title"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Location    string    `json:"location"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (s *Service) loadEvent(ctx context.Context, actor policy.Actor, eventID uuid.UUID, manage bool) (*models.Event, error) {
	ev, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	allowed := !manage || policy.CanManageMeetings(actor, ev)
	if err := policy.Authorize(policy.CanViewEvent(actor, ev), allowed); err != nil {
		return nil, err
	}
	return ev, nil
}

func (s *Service) load(ctx context.Context, actor policy.Actor, id uuid.UUID, manage bool) (*models.Meeting, *models.Event, error) {
	m, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	ev, err := s.loadEvent(ctx, actor, m.EventID, manage)
	if err != nil {
		return nil, nil, err
	}
	return m, ev, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// Create schedules a meeting and invites its participants in one transaction.
func (s *Service) Create(ctx context.Context, actor policy.Actor, eventID uuid.UUID, in CreateInput) (*models.Meeting, error) {
	ev, err := s.loadEvent(ctx, actor, eventID, true)
	if err != nil {
		return nil, err
	}
	if ev.IsFinished() {
		return nil, apperr.Business("meetings cannot be scheduled for a finished event")
	}
	verr := &apperr.ValidationError{}
	if strings.TrimSpace(in.Title) == "" {
		verr.Add("title", "is required")
	}
	if in.ScheduledAt.IsZero() {
		verr.Add("scheduled_at", "is required")
	}
	if in.MeetingType == "" {
		in.MeetingType = models.MeetingGeneral
	}
	if !in.MeetingType.Valid() {
		verr.Add("meeting_type", "must be one of: planning coordination committee general")
	}
	if verr.HasErrors() {
		return nil, verr
	}

	invitees := in.InviteeIDs
	if in.CommitteeID != nil {
		c, err := s.committees.GetByID(ctx, *in.CommitteeID)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		if err != nil || c.EventID != ev.ID {
			return nil, apperr.Invalid("committee_id", "must be a committee of the event")
		}
		if invitees == nil {
			if invitees, err = s.committees.MemberIDs(ctx, c.ID); err != nil {
				return nil, err
			}
		}
	}
	invitees = dedupe(invitees)
	if len(invitees) > 0 {
		found, err := s.users.ActiveMembersOf(ctx, ev.InstitutionID, invitees)
		if err != nil {
			return nil, err
		}
		if len(found) != len(invitees) {
			return nil, apperr.Invalid("invitee_ids", "must be active users of the institution")
		}
	}

	m := &models.Meeting{
		EventID:     ev.ID,
		CommitteeID: in.CommitteeID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		ScheduledAt: in.ScheduledAt,
		Location:    in.Location,
		MeetingType: in.MeetingType,
		Status:      models.MeetingScheduled,
		CreatedBy:   actor.UserID,
	}
	if err := s.store.CreateWithInvitations(ctx, m, invitees); err != nil {
		return nil, fmt.Errorf("create meeting: %w", err)
	}
	s.logger.Info("meeting scheduled", zap.String("meeting_id", m.ID.String()), zap.Int("invitees", len(invitees)))

	msgs := make([]notifications.Message, 0, len(invitees))
	for _, uid := range invitees {
		msgs = append(msgs, notifications.Message{
			UserID: uid,
			Type:   models.NotifyMeetingInvitation,
			Title:  "Meeting invitation",
			Body:   fmt.Sprintf("You are invited to %q on %s.", m.Title, m.ScheduledAt.Format("2006-01-02 15:04")),
			Data:   map[string]interface{}{"meeting_id": m.ID, "event_id": ev.ID},
			Email:  true,
		})
	}
	s.notifier.Notify(ctx, msgs...)
	return m, nil
}

// Get returns a meeting visible to the actor. The QR code is only shown to managers.
func (s *Service) Get(ctx context.Context, actor policy.Actor, id uuid.UUID) (*models.Meeting, error) {
	m, ev, err := s.load(ctx, actor, id, false)
	if err != nil {
		return nil, err
	}
	if !policy.CanManageMeetings(actor, ev) {
		m.QRCode = nil
	}
	return m, nil
}

// ListByEvent returns an event's meetings.
func (s *Service) ListByEvent(ctx context.Context, actor policy.Actor, eventID uuid.UUID) ([]models.Meeting, error) {
	ev, err := s.loadEvent(ctx, actor, eventID, false)
	if err != nil {
		return nil, err
	}
	list, err := s.store.ListByEvent(ctx, ev.ID)
	if err != nil {
		return nil, err
	}
	if !policy.CanManageMeetings(actor, ev) {
		for i := range list {
			list[i].QRCode = nil
		}
	}
	return list, nil
}

// Cancel cancels a scheduled meeting and tells the invitees.
func (s *Service) Cancel(ctx context.Context, actor policy.Actor, id uuid.UUID) error {
	m, _, err := s.load(ctx, actor, id, true)
	if err != nil {
		return err
	}
	if m.Status != models.MeetingScheduled {
		return ErrNotScheduled
	}
	if err := s.store.Cancel(ctx, m.ID); err != nil {
		return err
	}
	invitees, err := s.store.InviteeIDs(ctx, m.ID)
	if err != nil {
		s.logger.Warn("load invitees for cancellation", zap.String("meeting_id", m.ID.String()), zap.Error(err))
		return nil
	}
	msgs := make([]notifications.Message, 0, len(invitees))
	for _, uid := range invitees {
		msgs = append(msgs, notifications.Message{
			UserID: uid,
			Type:   models.NotifyMeetingCancelled,
			Title:  "Meeting cancelled",
			Body:   fmt.Sprintf("The meeting %q was cancelled.", m.Title),
			Data:   map[string]interface{}{"meeting_id": m.ID},
			Email:  true,
		})
	}
	s.notifier.Notify(ctx, msgs...)
	return nil
}

// Respond records an invitee's answer.
func (s *Service) Respond(ctx context.Context, actor policy.Actor, id uuid.UUID, accept bool) (*models.MeetingInvitation, error) {
	m, _, err := s.load(ctx, actor, id, false)
	if err != nil {
		return nil, err
	}
	if m.Status != models.MeetingScheduled {
		return nil, ErrNotScheduled
	}
	status := models.InvitationDeclined
	if accept {
		status = models.InvitationAccepted
	}
	inv, err := s.store.RespondInvitation(ctx, m.ID, actor.UserID, status, s.now())
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.ErrForbidden
	}
	return inv, err
}

// GenerateQR issues a fresh check-in token valid until scheduled_at plus the QR validity.
// Any previous token stops working.
func (s *Service) GenerateQR(ctx context.Context, actor policy.Actor, id uuid.UUID) (*models.Meeting, error) {
	m, _, err := s.load(ctx, actor, id, true)
	if err != nil {
		return nil, err
	}
	if m.Status != models.MeetingScheduled {
		return nil, ErrNotScheduled
	}
	code, err := utils.GenerateToken()
	if err != nil {
		return nil, err
	}
	expires := m.ScheduledAt.Add(s.qrValidity)
	if err := s.store.SetQRCode(ctx, m.ID, code, expires); err != nil {
		return nil, err
	}
	m.QRCode = &code
	m.QRExpiresAt = &expires
	return m, nil
}

func (s *Service) byToken(ctx context.Context, token string) (*models.Meeting, error) {
	if token == "" {
		return nil, apperr.ErrNotFound
	}
	m, err := s.store.GetByQRCode(ctx, token)
	if err != nil {
		return nil, err
	}
	if !m.QRValid(s.now()) {
		return nil, ErrQRExpired
	}
	return m, nil
}

// Validate reports whether a check-in token is usable now.
func (s *Service) Validate(ctx context.Context, token string) (*CheckInInfo, error) {
	m, err := s.byToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return &CheckInInfo{
		MeetingID:   m.ID,
		Title:       m.Title,
		ScheduledAt: m.ScheduledAt,
		Location:    m.Location,
		ExpiresAt:   *m.QRExpiresAt,
	}, nil
}

// CheckIn records the actor's attendance through a QR token. Repeating it is harmless.
func (s *Service) CheckIn(ctx context.Context, actor policy.Actor, token string) (*CheckInResult, error) {
	m, err := s.byToken(ctx, token)
	if err != nil {
		return nil, err
	}
	ev, err := s.events.GetByID(ctx, m.EventID)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(policy.CanViewEvent(actor, ev), policy.CanCheckIn(actor, ev)); err != nil {
		return nil, err
	}
	return s.record(ctx, m.ID, actor.UserID, models.CheckInQR)
}

// RecordManual registers attendance for a user on the coordinator's behalf.
func (s *Service) RecordManual(ctx context.Context, actor policy.Actor, id, userID uuid.UUID) (*CheckInResult, error) {
	m, ev, err := s.load(ctx, actor, id, true)
	if err != nil {
		return nil, err
	}
	if m.Status == models.MeetingCancelled {
		return nil, apperr.Business("meeting was cancelled")
	}
	found, err := s.users.ActiveMembersOf(ctx, ev.InstitutionID, []uuid.UUID{userID})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, apperr.Invalid("user_id", "must be an active user of the institution")
	}
	return s.record(ctx, m.ID, userID, models.CheckInManual)
}

func (s *Service) record(ctx context.Context, meetingID, userID uuid.UUID, via models.CheckInMethod) (*CheckInResult, error) {
	a, recorded, err := s.store.RecordAttendance(ctx, meetingID, userID, via, s.now())
	if err != nil {
		return nil, err
	}
	if recorded {
		s.logger.Info("attendance recorded",
			zap.String("meeting_id", meetingID.String()),
			zap.String("user_id", userID.String()),
			zap.String("via", string(via)),
		)
	}
	return &CheckInResult{Attendance: a, AlreadyRecorded: !recorded}, nil
}

// Attendance lists who attended a meeting.
func (s *Service) Attendance(ctx context.Context, actor policy.Actor, id uuid.UUID) ([]models.MeetingAttendance, error) {
	m, _, err := s.load(ctx, actor, id, false)
	if err != nil {
		return nil, err
	}
	return s.store.ListAttendance(ctx, m.ID)
}
