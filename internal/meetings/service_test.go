package meetings

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusesi/backend/internal/models"
	"github.com/nexusesi/backend/internal/notifications"
	"github.com/nexusesi/backend/internal/policy"
	"github.com/nexusesi/backend/pkg/apperr"
)

type attendanceKey struct{ meeting, user uuid.UUID }

type memStore struct {
	mu          sync.Mutex
	meetings    map[uuid.UUID]*models.Meeting
	invitations map[uuid.UUID][]uuid.UUID
	attendance  map[attendanceKey]*models.MeetingAttendance
	responses   map[attendanceKey]models.InvitationStatus
}

func newMemStore() *memStore {
	return &memStore{
		meetings:    make(map[uuid.UUID]*models.Meeting),
		invitations: make(map[uuid.UUID][]uuid.UUID),
		attendance:  make(map[attendanceKey]*models.MeetingAttendance),
		responses:   make(map[attendanceKey]models.InvitationStatus),
	}
}

func (m *memStore) CreateWithInvitations(_ context.Context, mt *models.Meeting, invitees []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mt.ID = uuid.New()
	cp := *mt
	m.meetings[mt.ID] = &cp
	m.invitations[mt.ID] = append([]uuid.UUID(nil), invitees...)
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.Meeting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mt, ok := m.meetings[id]; ok {
		cp := *mt
		return &cp, nil
	}
	return nil, apperr.ErrNotFound
}

func (m *memStore) GetByQRCode(_ context.Context, code string) (*models.Meeting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mt := range m.meetings {
		if mt.QRCode != nil && *mt.QRCode == code {
			cp := *mt
			return &cp, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (m *memStore) ListByEvent(_ context.Context, eventID uuid.UUID) ([]models.Meeting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Meeting
	for _, mt := range m.meetings {
		if mt.EventID == eventID {
			out = append(out, *mt)
		}
	}
	return out, nil
}

func (m *memStore) Cancel(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mt, ok := m.meetings[id]
	if !ok || mt.Status != models.MeetingScheduled {
		return ErrNotScheduled
	}
	mt.Status = models.MeetingCancelled
	mt.QRCode = nil
	return nil
}

func (m *memStore) SetQRCode(_ context.Context, id uuid.UUID, code string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mt := m.meetings[id]
	mt.QRCode = &code
	mt.QRExpiresAt = &expiresAt
	return nil
}

func (m *memStore) RecordAttendance(_ context.Context, meetingID, userID uuid.UUID, via models.CheckInMethod, at time.Time) (*models.MeetingAttendance, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := attendanceKey{meetingID, userID}
	if a, ok := m.attendance[k]; ok {
		cp := *a
		return &cp, false, nil
	}
	a := &models.MeetingAttendance{ID: uuid.New(), MeetingID: meetingID, UserID: userID, CheckedInVia: via, CheckedInAt: at}
	m.attendance[k] = a
	cp := *a
	return &cp, true, nil
}

func (m *memStore) ListAttendance(_ context.Context, meetingID uuid.UUID) ([]models.MeetingAttendance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.MeetingAttendance
	for k, a := range m.attendance {
		if k.meeting == meetingID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memStore) RespondInvitation(_ context.Context, meetingID, userID uuid.UUID, status models.InvitationStatus, at time.Time) (*models.MeetingInvitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.invitations[meetingID] {
		if id == userID {
			m.responses[attendanceKey{meetingID, userID}] = status
			return &models.MeetingInvitation{MeetingID: meetingID, UserID: userID, Status: status, RespondedAt: &at}, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (m *memStore) InviteeIDs(_ context.Context, meetingID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uuid.UUID(nil), m.invitations[meetingID]...), nil
}

type memEvents map[uuid.UUID]*models.Event

func (e memEvents) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	if ev, ok := e[id]; ok {
		cp := *ev
		return &cp, nil
	}
	return nil, apperr.ErrNotFound
}

type memCommittees struct {
	committees map[uuid.UUID]*models.Committee
	members    map[uuid.UUID][]uuid.UUID
}

func (c *memCommittees) GetByID(_ context.Context, id uuid.UUID) (*models.Committee, error) {
	if cm, ok := c.committees[id]; ok {
		cp := *cm
		return &cp, nil
	}
	return nil, apperr.ErrNotFound
}

func (c *memCommittees) MemberIDs(_ context.Context, committeeID uuid.UUID) ([]uuid.UUID, error) {
	return c.members[committeeID], nil
}

type memUsers map[uuid.UUID]*models.User

func (u memUsers) ActiveMembersOf(_ context.Context, institutionID uuid.UUID, ids []uuid.UUID) ([]models.User, error) {
	var out []models.User
	for _, id := range ids {
		if usr, ok := u[id]; ok && usr.IsActive && usr.InstitutionID != nil && *usr.InstitutionID == institutionID {
			out = append(out, *usr)
		}
	}
	return out, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notifications.Message
}

func (r *recordingNotifier) Notify(_ context.Context, msgs ...notifications.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msgs...)
}

func (r *recordingNotifier) ofType(typ string) []notifications.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notifications.Message
	for _, m := range r.msgs {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

var scheduledAt = time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)

type fixture struct {
	svc         *Service
	store       *memStore
	notifier    *recordingNotifier
	clock       *clock
	event       *models.Event
	committee   *models.Committee
	coordinator policy.Actor
	leaders     []policy.Actor
	outsider    policy.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	inst := uuid.New()
	otherInst := uuid.New()
	f := &fixture{
		store:       newMemStore(),
		notifier:    &recordingNotifier{},
		clock:       &clock{now: scheduledAt.Add(-24 * time.Hour)},
		coordinator: policy.Actor{UserID: uuid.New(), Role: models.RoleCoordinator, InstitutionID: &inst},
		outsider:    policy.Actor{UserID: uuid.New(), Role: models.RoleSeedbedLeader, InstitutionID: &otherInst},
	}
	users := memUsers{
		f.coordinator.UserID: {ID: f.coordinator.UserID, Role: models.RoleCoordinator, InstitutionID: &inst, IsActive: true},
		f.outsider.UserID:    {ID: f.outsider.UserID, Role: models.RoleSeedbedLeader, InstitutionID: &otherInst, IsActive: true},
	}
	for i := 0; i < 3; i++ {
		a := policy.Actor{UserID: uuid.New(), Role: models.RoleSeedbedLeader, InstitutionID: &inst}
		f.leaders = append(f.leaders, a)
		users[a.UserID] = &models.User{ID: a.UserID, Role: a.Role, InstitutionID: &inst, IsActive: true}
	}
	f.event = &models.Event{
		ID:            uuid.New(),
		Name:          "Research Week",
		InstitutionID: inst,
		CoordinatorID: f.coordinator.UserID,
		Status:        models.EventActive,
		StartDate:     scheduledAt.Add(-48 * time.Hour),
		EndDate:       scheduledAt.Add(72 * time.Hour),
	}
	f.committee = &models.Committee{ID: uuid.New(), EventID: f.event.ID, Name: "Logistics"}
	committees := &memCommittees{
		committees: map[uuid.UUID]*models.Committee{f.committee.ID: f.committee},
		members:    map[uuid.UUID][]uuid.UUID{f.committee.ID: {f.leaders[0].UserID, f.leaders[1].UserID}},
	}
	f.svc = NewService(f.store, memEvents{f.event.ID: f.event}, committees, users, f.notifier, nil,
		WithClock(f.clock.Now))
	return f
}

func (f *fixture) schedule(t *testing.T, in CreateInput) *models.Meeting {
	t.Helper()
	if in.Title == "" {
		in.Title = "Kickoff"
	}
	if in.ScheduledAt.IsZero() {
		in.ScheduledAt = scheduledAt
	}
	m, err := f.svc.Create(context.Background(), f.coordinator, f.event.ID, in)
	require.NoError(t, err)
	return m
}

func TestCreate_DefaultsToCommitteeMembers(t *testing.T) {
	f := newFixture(t)

	m := f.schedule(t, CreateInput{CommitteeID: &f.committee.ID})

	assert.Equal(t, models.MeetingGeneral, m.MeetingType)
	assert.Equal(t, models.MeetingScheduled, m.Status)
	invitees, _ := f.store.InviteeIDs(context.Background(), m.ID)
	assert.ElementsMatch(t, []uuid.UUID{f.leaders[0].UserID, f.leaders[1].UserID}, invitees)
	assert.Len(t, f.notifier.ofType(models.NotifyMeetingInvitation), 2)
}

func TestCreate_ExplicitInvitees(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("duplicates collapse", func(t *testing.T) {
		m := f.schedule(t, CreateInput{InviteeIDs: []uuid.UUID{f.leaders[2].UserID, f.leaders[2].UserID}})
		invitees, _ := f.store.InviteeIDs(ctx, m.ID)
		assert.Equal(t, []uuid.UUID{f.leaders[2].UserID}, invitees)
	})

	t.Run("users of another institution are rejected", func(t *testing.T) {
		_, err := f.svc.Create(ctx, f.coordinator, f.event.ID, CreateInput{
			Title:       "Sync",
			ScheduledAt: scheduledAt,
			InviteeIDs:  []uuid.UUID{f.leaders[0].UserID, f.outsider.UserID},
		})
		var verr *apperr.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "invitee_ids")
	})

	t.Run("committee of another event is rejected", func(t *testing.T) {
		foreign := uuid.New()
		_, err := f.svc.Create(ctx, f.coordinator, f.event.ID, CreateInput{Title: "Sync", ScheduledAt: scheduledAt, CommitteeID: &foreign})
		var verr *apperr.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "committee_id")
	})

	t.Run("unknown meeting type", func(t *testing.T) {
		_, err := f.svc.Create(ctx, f.coordinator, f.event.ID, CreateInput{Title: "Sync", ScheduledAt: scheduledAt, MeetingType: "party"})
		var verr *apperr.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "meeting_type")
	})

	t.Run("leaders cannot schedule", func(t *testing.T) {
		_, err := f.svc.Create(ctx, f.leaders[0], f.event.ID, CreateInput{Title: "Sync", ScheduledAt: scheduledAt})
		assert.ErrorIs(t, err, apperr.ErrForbidden)
	})
}

func TestGet_HidesQRFromNonManagers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.schedule(t, CreateInput{})
	_, err := f.svc.GenerateQR(ctx, f.coordinator, m.ID)
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, f.coordinator, m.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.QRCode)

	got, err = f.svc.Get(ctx, f.leaders[0], m.ID)
	require.NoError(t, err)
	assert.Nil(t, got.QRCode)

	_, err = f.svc.Get(ctx, f.outsider, m.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestQRExpiryBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.schedule(t, CreateInput{})
	qr, err := f.svc.GenerateQR(ctx, f.coordinator, m.ID)
	require.NoError(t, err)
	require.NotNil(t, qr.QRCode)
	expires := scheduledAt.Add(DefaultQRValidity)
	assert.Equal(t, expires, *qr.QRExpiresAt)

	cases := []struct {
		name  string
		at    time.Time
		valid bool
	}{
		{"one second before expiry", expires.Add(-time.Second), true},
		{"at expiry", expires, false},
		{"after expiry", expires.Add(time.Second), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f.clock.Set(tc.at)
			info, err := f.svc.Validate(ctx, *qr.QRCode)
			if tc.valid {
				require.NoError(t, err)
				assert.Equal(t, m.ID, info.MeetingID)
				return
			}
			assert.ErrorIs(t, err, ErrQRExpired)
		})
	}
}

func TestCheckIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.schedule(t, CreateInput{})
	qr, err := f.svc.GenerateQR(ctx, f.coordinator, m.ID)
	require.NoError(t, err)
	f.clock.Set(scheduledAt.Add(5 * time.Minute))

	t.Run("first check-in records attendance", func(t *testing.T) {
		out, err := f.svc.CheckIn(ctx, f.leaders[0], *qr.QRCode)
		require.NoError(t, err)
		assert.False(t, out.AlreadyRecorded)
		assert.Equal(t, models.CheckInQR, out.Attendance.CheckedInVia)
	})

	t.Run("repeat check-in is idempotent", func(t *testing.T) {
		out, err := f.svc.CheckIn(ctx, f.leaders[0], *qr.QRCode)
		require.NoError(t, err)
		assert.True(t, out.AlreadyRecorded)
		list, err := f.svc.Attendance(ctx, f.coordinator, m.ID)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("unknown token", func(t *testing.T) {
		_, err := f.svc.CheckIn(ctx, f.leaders[1], "not-a-token")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		_, err = f.svc.CheckIn(ctx, f.leaders[1], "")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("other institution cannot check in", func(t *testing.T) {
		_, err := f.svc.CheckIn(ctx, f.outsider, *qr.QRCode)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("regenerating invalidates the previous token", func(t *testing.T) {
		fresh, err := f.svc.GenerateQR(ctx, f.coordinator, m.ID)
		require.NoError(t, err)
		_, err = f.svc.CheckIn(ctx, f.leaders[1], *qr.QRCode)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		out, err := f.svc.CheckIn(ctx, f.leaders[1], *fresh.QRCode)
		require.NoError(t, err)
		assert.False(t, out.AlreadyRecorded)
	})
}

func TestRecordManual(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.schedule(t, CreateInput{})

	out, err := f.svc.RecordManual(ctx, f.coordinator, m.ID, f.leaders[2].UserID)
	require.NoError(t, err)
	assert.Equal(t, models.CheckInManual, out.Attendance.CheckedInVia)

	_, err = f.svc.RecordManual(ctx, f.coordinator, m.ID, f.outsider.UserID)
	var verr *apperr.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = f.svc.RecordManual(ctx, f.leaders[0], m.ID, f.leaders[2].UserID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.schedule(t, CreateInput{CommitteeID: &f.committee.ID})
	qr, err := f.svc.GenerateQR(ctx, f.coordinator, m.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.Cancel(ctx, f.coordinator, m.ID))
	assert.Len(t, f.notifier.ofType(models.NotifyMeetingCancelled), 2)

	assert.ErrorIs(t, f.svc.Cancel(ctx, f.coordinator, m.ID), ErrNotScheduled)
	_, err = f.svc.Validate(ctx, *qr.QRCode)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.svc.GenerateQR(ctx, f.coordinator, m.ID)
	assert.ErrorIs(t, err, ErrNotScheduled)
}

func TestRespond(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.schedule(t, CreateInput{CommitteeID: &f.committee.ID})

	inv, err := f.svc.Respond(ctx, f.leaders[0], m.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationAccepted, inv.Status)

	_, err = f.svc.Respond(ctx, f.leaders[2], m.ID, false)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}
