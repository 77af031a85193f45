package tasks

import (
	"bytes"
	"context"
	"errors"
	"io"
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

type memStore struct {
	mu         sync.Mutex
	events     map[uuid.UUID]*models.Event
	committees map[uuid.UUID]uuid.UUID
	members    map[uuid.UUID]map[uuid.UUID]bool
	tasks      map[uuid.UUID]*models.Task
	progress   []models.TaskProgress
	incidents  map[uuid.UUID]*models.Incident
	failSave   bool
}

func newMemStore() *memStore {
	return &memStore{
		events:     make(map[uuid.UUID]*models.Event),
		committees: make(map[uuid.UUID]uuid.UUID),
		members:    make(map[uuid.UUID]map[uuid.UUID]bool),
		tasks:      make(map[uuid.UUID]*models.Task),
		incidents:  make(map[uuid.UUID]*models.Incident),
	}
}

func (m *memStore) EventByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev, ok := m.events[id]; ok {
		cp := *ev
		return &cp, nil
	}
	return nil, apperr.ErrNotFound
}

func (m *memStore) EventByCommittee(ctx context.Context, committeeID uuid.UUID) (*models.Event, error) {
	m.mu.Lock()
	eventID, ok := m.committees[committeeID]
	m.mu.Unlock()
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return m.EventByID(ctx, eventID)
}

func (m *memStore) Create(_ context.Context, t *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = uuid.New()
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tasks[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, apperr.ErrNotFound
}

func (m *memStore) list(match func(*models.Task) bool) []models.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Task
	for _, t := range m.tasks {
		if match(t) {
			out = append(out, *t)
		}
	}
	return out
}

func (m *memStore) ListByEvent(_ context.Context, eventID uuid.UUID) ([]models.Task, error) {
	return m.list(func(t *models.Task) bool { return t.EventID == eventID }), nil
}

func (m *memStore) ListAssignedTo(_ context.Context, userID uuid.UUID) ([]models.Task, error) {
	return m.list(func(t *models.Task) bool { return t.IsAssignedTo(userID) }), nil
}

func (m *memStore) Update(_ context.Context, t *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

func (m *memStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, id)
	return nil
}

// Assign applies the same condition as the SQL update, atomically.
func (m *memStore) Assign(_ context.Context, id, userID uuid.UUID, risk models.RiskLevel, onlyIfUnassigned bool) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.tasks[id]
	if t.Status == models.TaskCompleted || (onlyIfUnassigned && t.AssignedTo != nil) {
		return nil, nil
	}
	uid := userID
	t.AssignedTo = &uid
	t.Status = t.Status.AfterAssign()
	t.RiskLevel = risk
	cp := *t
	return &cp, nil
}

func (m *memStore) Complete(_ context.Context, id, userID uuid.UUID, at time.Time) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.tasks[id]
	if !t.IsAssignedTo(userID) || t.Status == models.TaskCompleted {
		return nil, nil
	}
	t.Status = models.TaskCompleted
	t.CompletedAt = &at
	cp := *t
	return &cp, nil
}

func (m *memStore) SetStatus(_ context.Context, id uuid.UUID, from, to models.TaskStatus, risk models.RiskLevel) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.tasks[id]
	if t.Status != from {
		return nil, ErrStatusChanged
	}
	t.Status = to
	t.RiskLevel = risk
	cp := *t
	return &cp, nil
}

func (m *memStore) CommitteeEventID(_ context.Context, committeeID uuid.UUID) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.committees[committeeID]; ok {
		return id, nil
	}
	return uuid.Nil, apperr.ErrNotFound
}

func (m *memStore) IsMember(_ context.Context, committeeID, userID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.members[committeeID][userID], nil
}

func (m *memStore) AddProgress(_ context.Context, p *models.TaskProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave {
		return errors.New("insert failed")
	}
	m.progress = append(m.progress, *p)
	return nil
}

func (m *memStore) ListProgress(_ context.Context, taskID uuid.UUID) ([]models.TaskProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TaskProgress
	for _, p := range m.progress {
		if p.TaskID == taskID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) CreateIncident(_ context.Context, inc *models.Incident) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inc.Status = models.IncidentReported
	cp := *inc
	m.incidents[inc.ID] = &cp
	return nil
}

func (m *memStore) GetIncident(_ context.Context, id uuid.UUID) (*models.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inc, ok := m.incidents[id]; ok {
		cp := *inc
		return &cp, nil
	}
	return nil, apperr.ErrNotFound
}

func (m *memStore) ListIncidents(_ context.Context, taskID uuid.UUID) ([]models.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Incident
	for _, inc := range m.incidents {
		if inc.TaskID == taskID {
			out = append(out, *inc)
		}
	}
	return out, nil
}

func (m *memStore) ResolveIncident(ctx context.Context, id, resolvedBy uuid.UUID, resolution string, remediation *models.Task, at time.Time) (*models.Incident, error) {
	if remediation != nil {
		if err := m.Create(ctx, remediation); err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	inc := m.incidents[id]
	if inc.Status == models.IncidentResolved {
		return nil, ErrIncidentResolved
	}
	inc.Status = models.IncidentResolved
	inc.Resolution = &resolution
	inc.ResolvedBy = &resolvedBy
	inc.ResolvedAt = &at
	if remediation != nil {
		inc.SolutionTaskID = &remediation.ID
	}
	cp := *inc
	return &cp, nil
}

type memUsers map[uuid.UUID]*models.User

func (m memUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := m[id]; ok {
		return u, nil
	}
	return nil, apperr.ErrNotFound
}

type memFiles struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *memFiles) Upload(_ context.Context, key, _ string, body io.Reader, _ int64) error {
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = b
	return nil
}

func (f *memFiles) PresignDownload(_ context.Context, key string) (string, error) {
	return "https://files.test/" + key, nil
}

func (f *memFiles) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
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

func (r *recordingNotifier) last() notifications.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.msgs[len(r.msgs)-1]
}

var today = time.Date(2025, 5, 12, 9, 0, 0, 0, time.UTC)

type tasksFixture struct {
	svc         *Service
	store       *memStore
	files       *memFiles
	notifier    *recordingNotifier
	users       memUsers
	event       *models.Event
	committee   uuid.UUID
	coordinator policy.Actor
	l1, l2      policy.Actor
	nonMember   policy.Actor
	outsider    policy.Actor
}

func newTasksFixture() tasksFixture {
	inst, otherInst := uuid.New(), uuid.New()
	store := newMemStore()
	coordinator := policy.Actor{UserID: uuid.New(), Role: models.RoleCoordinator, InstitutionID: &inst}
	ev := &models.Event{ID: uuid.New(), Name: "E", InstitutionID: inst, CoordinatorID: coordinator.UserID, Status: models.EventActive}
	store.events[ev.ID] = ev
	committee := uuid.New()
	store.committees[committee] = ev.ID

	leader := func(instID *uuid.UUID) policy.Actor {
		return policy.Actor{UserID: uuid.New(), Role: models.RoleSeedbedLeader, InstitutionID: instID}
	}
	l1, l2, nonMember, outsider := leader(&inst), leader(&inst), leader(&inst), leader(&otherInst)
	store.members[committee] = map[uuid.UUID]bool{l1.UserID: true, l2.UserID: true}

	users := memUsers{}
	for _, a := range []policy.Actor{coordinator, l1, l2, nonMember, outsider} {
		users[a.UserID] = &models.User{ID: a.UserID, Role: a.Role, InstitutionID: a.InstitutionID, IsActive: true}
	}
	files := &memFiles{objects: make(map[string][]byte)}
	notifier := &recordingNotifier{}
	return tasksFixture{
		svc:         NewService(store, users, files, notifier, nil, WithClock(func() time.Time { return today })),
		store:       store,
		files:       files,
		notifier:    notifier,
		users:       users,
		event:       ev,
		committee:   committee,
		coordinator: coordinator,
		l1:          l1,
		l2:          l2,
		nonMember:   nonMember,
		outsider:    outsider,
	}
}

func (f tasksFixture) createTask(t *testing.T, due time.Time, committee *uuid.UUID) *models.Task {
	t.Helper()
	task, err := f.svc.Create(context.Background(), f.coordinator, f.event.ID, Input{Title: "Reservar auditorio", DueDate: due, CommitteeID: committee})
	require.NoError(t, err)
	return task
}

func TestService_ClaimScenario(t *testing.T) {
	ctx := context.Background()
	f := newTasksFixture()
	task := f.createTask(t, today.Add(24*time.Hour), &f.committee)
	assert.Equal(t, models.TaskPending, task.Status)

	claimed, err := f.svc.Assign(ctx, f.l1, task.ID, f.l1.UserID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskInProgress, claimed.Status)
	assert.True(t, claimed.IsAssignedTo(f.l1.UserID))
	assert.Equal(t, models.RiskHigh, claimed.RiskLevel)
	assert.Equal(t, models.NotifyTaskAssigned, f.notifier.last().Type)

	_, err = f.svc.Assign(ctx, f.l2, task.ID, f.l2.UserID)
	assert.ErrorIs(t, err, ErrAlreadyAssigned)
	assert.EqualError(t, err, "task already assigned")

	reassigned, err := f.svc.Assign(ctx, f.coordinator, task.ID, f.l2.UserID)
	require.NoError(t, err)
	assert.True(t, reassigned.IsAssignedTo(f.l2.UserID))
	assert.Equal(t, models.TaskInProgress, reassigned.Status)
}

func TestService_ClaimContention(t *testing.T) {
	ctx := context.Background()
	for round := 0; round < 20; round++ {
		f := newTasksFixture()
		task := f.createTask(t, today.Add(10*24*time.Hour), &f.committee)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i, leader := range []policy.Actor{f.l1, f.l2} {
			wg.Add(1)
			go func(i int, leader policy.Actor) {
				defer wg.Done()
				_, errs[i] = f.svc.Assign(ctx, leader, task.ID, leader.UserID)
			}(i, leader)
		}
		wg.Wait()

		wins := 0
		for _, err := range errs {
			if err == nil {
				wins++
				continue
			}
			assert.ErrorIs(t, err, ErrAlreadyAssigned)
		}
		require.Equal(t, 1, wins)
	}
}

type recordingAlerter struct {
	mu    sync.Mutex
	tasks []models.Task
	err   error
}

func (r *recordingAlerter) AlertAssigned(_ context.Context, t *models.Task) (*models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, *t)
	return nil, r.err
}

func TestService_AssignRaisesRiskAlert(t *testing.T) {
	ctx := context.Background()
	f := newTasksFixture()
	alerter := &recordingAlerter{}
	WithAssignmentAlerts(alerter)(f.svc)

	urgent := f.createTask(t, today.Add(24*time.Hour), &f.committee)
	_, err := f.svc.Assign(ctx, f.l1, urgent.ID, f.l1.UserID)
	require.NoError(t, err)

	require.Len(t, alerter.tasks, 1)
	assert.Equal(t, urgent.ID, alerter.tasks[0].ID)
	assert.Equal(t, models.RiskHigh, alerter.tasks[0].RiskLevel)
	assert.True(t, alerter.tasks[0].IsAssignedTo(f.l1.UserID))

	alerter.err = errors.New("connection reset")
	reassigned, err := f.svc.Assign(ctx, f.coordinator, urgent.ID, f.l2.UserID)
	require.NoError(t, err, "alert failures do not undo the assignment")
	assert.True(t, reassigned.IsAssignedTo(f.l2.UserID))
	assert.Len(t, alerter.tasks, 2)
}

func TestService_AssignDenials(t *testing.T) {
	ctx := context.Background()
	f := newTasksFixture()
	inCommittee := f.createTask(t, today.Add(72*time.Hour), &f.committee)
	direct := f.createTask(t, today.Add(72*time.Hour), nil)

	_, err := f.svc.Assign(ctx, f.l1, inCommittee.ID, f.l2.UserID)
	assert.ErrorIs(t, err, apperr.ErrForbidden, "leaders cannot assign others")

	_, err = f.svc.Assign(ctx, f.nonMember, inCommittee.ID, f.nonMember.UserID)
	assert.ErrorIs(t, err, apperr.ErrForbidden, "claim outside own committee")

	_, err = f.svc.Assign(ctx, f.l1, direct.ID, f.l1.UserID)
	assert.ErrorIs(t, err, apperr.ErrForbidden, "tasks without committee cannot be claimed")

	_, err = f.svc.Assign(ctx, f.outsider, inCommittee.ID, f.outsider.UserID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.Assign(ctx, f.coordinator, inCommittee.ID, f.outsider.UserID)
	var verr *apperr.ValidationError
	assert.ErrorAs(t, err, &verr, "coordinator targets must share the institution")

	f.users[f.nonMember.UserID].IsActive = false
	_, err = f.svc.Assign(ctx, f.coordinator, inCommittee.ID, f.nonMember.UserID)
	assert.ErrorAs(t, err, &verr, "inactive target")
}

func TestService_CompleteFlow(t *testing.T) {
	ctx := context.Background()
	f := newTasksFixture()
	task := f.createTask(t, today.Add(72*time.Hour), &f.committee)
	_, err := f.svc.Assign(ctx, f.l1, task.ID, f.l1.UserID)
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, f.l2, task.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	done, err := f.svc.Complete(ctx, f.l1, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskCompleted, done.Status)
	assert.NotNil(t, done.CompletedAt)
	last := f.notifier.last()
	assert.Equal(t, f.coordinator.UserID, last.UserID)
	assert.Equal(t, models.NotifyTaskCompleted, last.Type)

	_, err = f.svc.Complete(ctx, f.l1, task.ID)
	assert.ErrorIs(t, err, ErrAlreadyCompleted)

	_, err = f.svc.Assign(ctx, f.coordinator, task.ID, f.l2.UserID)
	assert.ErrorIs(t, err, ErrTaskCompleted)
}

func TestService_ChangeStatus(t *testing.T) {
	ctx := context.Background()
	f := newTasksFixture()
	task := f.createTask(t, today.Add(72*time.Hour), &f.committee)

	_, err := f.svc.ChangeStatus(ctx, f.coordinator, task.ID, models.TaskDelayed)
	assert.True(t, apperr.IsBusiness(err), "pending tasks only move by assignment")

	_, err = f.svc.Assign(ctx, f.coordinator, task.ID, f.l1.UserID)
	require.NoError(t, err)

	out, err := f.svc.ChangeStatus(ctx, f.coordinator, task.ID, models.TaskPaused)
	require.NoError(t, err)
	assert.Equal(t, models.TaskPaused, out.Status)

	out, err = f.svc.ChangeStatus(ctx, f.coordinator, task.ID, models.TaskDelayed)
	require.NoError(t, err)
	assert.Equal(t, models.TaskDelayed, out.Status)

	_, err = f.svc.ChangeStatus(ctx, f.coordinator, task.ID, models.TaskCompleted)
	assert.True(t, apperr.IsBusiness(err))

	_, err = f.svc.ChangeStatus(ctx, f.coordinator, task.ID, models.TaskPending)
	assert.True(t, apperr.IsBusiness(err))

	_, err = f.svc.ChangeStatus(ctx, f.l1, task.ID, models.TaskInProgress)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestService_CreateRules(t *testing.T) {
	ctx := context.Background()
	f := newTasksFixture()

	task := f.createTask(t, today.Add(10*24*time.Hour), nil)
	assert.Equal(t, models.RiskLow, task.RiskLevel)

	foreign := uuid.New()
	f.store.committees[foreign] = uuid.New()
	_, err := f.svc.Create(ctx, f.coordinator, f.event.ID, Input{Title: "x", DueDate: today, CommitteeID: &foreign})
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "committee_id")

	_, err = f.svc.Create(ctx, f.l1, f.event.ID, Input{Title: "x", DueDate: today})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.svc.Create(ctx, f.outsider, f.event.ID, Input{Title: "x", DueDate: today})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	f.store.events[f.event.ID].Status = models.EventFinished
	_, err = f.svc.Create(ctx, f.coordinator, f.event.ID, Input{Title: "x", DueDate: today})
	assert.ErrorIs(t, err, ErrEventFinished)
}

func TestService_InstitutionIsolation(t *testing.T) {
	ctx := context.Background()
	f := newTasksFixture()
	task := f.createTask(t, today.Add(72*time.Hour), &f.committee)
	title := "x"

	_, err := f.svc.Get(ctx, f.outsider, task.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.svc.Update(ctx, f.outsider, task.ID, UpdateInput{Title: &title})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, f.outsider, task.ID), apperr.ErrNotFound)
	_, err = f.svc.ListByEvent(ctx, f.outsider, f.event.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.svc.Progress(ctx, f.outsider, task.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.Update(ctx, f.l1, task.ID, UpdateInput{Title: &title})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestService_TaskWithoutEventFailsClosed(t *testing.T) {
	f := newTasksFixture()
	orphan := &models.Task{ID: uuid.New(), Title: "orphan", Status: models.TaskPending}
	f.store.tasks[orphan.ID] = orphan

	_, err := f.svc.Get(context.Background(), f.coordinator, orphan.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestService_UpdateRefreshesRisk(t *testing.T) {
	f := newTasksFixture()
	task := f.createTask(t, today.Add(10*24*time.Hour), nil)
	due := today.Add(3 * 24 * time.Hour)

	out, err := f.svc.Update(context.Background(), f.coordinator, task.ID, UpdateInput{DueDate: &due})
	require.NoError(t, err)
	assert.Equal(t, models.RiskMedium, out.RiskLevel)
}

func TestService_Progress(t *testing.T) {
	ctx := context.Background()
	f := newTasksFixture()
	task := f.createTask(t, today.Add(72*time.Hour), &f.committee)
	_, err := f.svc.Assign(ctx, f.l1, task.ID, f.l1.UserID)
	require.NoError(t, err)

	_, err = f.svc.ReportProgress(ctx, f.l2, task.ID, "done half", nil)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	file := &Upload{Name: "acta.pdf", Size: 4, Body: bytes.NewReader([]byte("%PDF"))}
	p, err := f.svc.ReportProgress(ctx, f.l1, task.ID, "done half", file)
	require.NoError(t, err)
	require.NotNil(t, p.FileKey)
	assert.Contains(t, f.files.objects, *p.FileKey)
	assert.Contains(t, p.FileURL, *p.FileKey)

	_, err = f.svc.ReportProgress(ctx, f.l1, task.ID, "virus", &Upload{Name: "x.exe", Size: 1, Body: bytes.NewReader([]byte("x"))})
	var verr *apperr.ValidationError
	assert.ErrorAs(t, err, &verr)

	list, err := f.svc.Progress(ctx, f.coordinator, task.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.NotEmpty(t, list[0].FileURL)

	got, err := f.svc.Get(ctx, f.coordinator, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskInProgress, got.Status)
}

func TestService_ProgressRemovesOrphanedUpload(t *testing.T) {
	ctx := context.Background()
	f := newTasksFixture()
	task := f.createTask(t, today.Add(72*time.Hour), &f.committee)
	_, err := f.svc.Assign(ctx, f.l1, task.ID, f.l1.UserID)
	require.NoError(t, err)
	f.store.failSave = true

	_, err = f.svc.ReportProgress(ctx, f.l1, task.ID, "notes", &Upload{Name: "a.txt", Size: 2, Body: bytes.NewReader([]byte("hi"))})
	require.Error(t, err)
	assert.Empty(t, f.files.objects)
}

func TestService_Incidents(t *testing.T) {
	ctx := context.Background()
	f := newTasksFixture()
	task := f.createTask(t, today.Add(72*time.Hour), &f.committee)
	_, err := f.svc.Assign(ctx, f.l1, task.ID, f.l1.UserID)
	require.NoError(t, err)

	inc, err := f.svc.ReportIncident(ctx, f.l1, task.ID, "auditorio no disponible", nil)
	require.NoError(t, err)
	assert.Equal(t, models.IncidentReported, inc.Status)
	assert.Equal(t, f.coordinator.UserID, f.notifier.last().UserID)

	_, err = f.svc.ResolveIncident(ctx, f.l1, inc.ID, ResolveInput{Resolution: "x"})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	resolved, err := f.svc.ResolveIncident(ctx, f.coordinator, inc.ID, ResolveInput{
		Resolution:  "buscar otro espacio",
		Remediation: &Input{Title: "Reservar sala B", DueDate: today.Add(48 * time.Hour)},
	})
	require.NoError(t, err)
	assert.Equal(t, models.IncidentResolved, resolved.Status)
	require.NotNil(t, resolved.SolutionTaskID)

	remediation, err := f.svc.Get(ctx, f.coordinator, *resolved.SolutionTaskID)
	require.NoError(t, err)
	assert.Equal(t, f.event.ID, remediation.EventID)
	require.NotNil(t, remediation.CommitteeID)
	assert.Equal(t, f.committee, *remediation.CommitteeID)
	assert.Equal(t, models.TaskPending, remediation.Status)
	assert.Equal(t, f.l1.UserID, f.notifier.last().UserID)

	_, err = f.svc.ResolveIncident(ctx, f.coordinator, inc.ID, ResolveInput{})
	assert.ErrorIs(t, err, ErrIncidentResolved)

	list, err := f.svc.Incidents(ctx, f.coordinator, task.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestService_Mine(t *testing.T) {
	ctx := context.Background()
	f := newTasksFixture()
	a := f.createTask(t, today.Add(72*time.Hour), &f.committee)
	f.createTask(t, today.Add(72*time.Hour), &f.committee)
	_, err := f.svc.Assign(ctx, f.l1, a.ID, f.l1.UserID)
	require.NoError(t, err)

	mine, err := f.svc.Mine(ctx, f.l1)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, a.ID, mine[0].ID)
}
