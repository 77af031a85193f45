package committees

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusesi/backend/internal/models"
	"github.com/nexusesi/backend/internal/policy"
	"github.com/nexusesi/backend/pkg/apperr"
)

type memStore struct {
	mu           sync.Mutex
	committees   map[uuid.UUID]*models.Committee
	members      map[uuid.UUID]map[uuid.UUID]string
	participants map[uuid.UUID]map[uuid.UUID]bool
}

func newMemStore() *memStore {
	return &memStore{
		committees:   make(map[uuid.UUID]*models.Committee),
		members:      make(map[uuid.UUID]map[uuid.UUID]string),
		participants: make(map[uuid.UUID]map[uuid.UUID]bool),
	}
}

func (m *memStore) join(eventID, userID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.participants[eventID] == nil {
		m.participants[eventID] = make(map[uuid.UUID]bool)
	}
	m.participants[eventID][userID] = true
}

func (m *memStore) Create(_ context.Context, c *models.Committee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = uuid.New()
	cp := *c
	m.committees[c.ID] = &cp
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.Committee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.committees[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, apperr.ErrNotFound
}

func (m *memStore) ListByEvent(_ context.Context, eventID uuid.UUID) ([]models.Committee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Committee
	for _, c := range m.committees {
		if c.EventID == eventID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memStore) Rename(_ context.Context, c *models.Committee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.committees[c.ID].Name = c.Name
	return nil
}

func (m *memStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.committees, id)
	delete(m.members, id)
	return nil
}

func (m *memStore) AddMember(_ context.Context, committeeID, userID uuid.UUID, role string) (*models.CommitteeMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.members[committeeID] == nil {
		m.members[committeeID] = make(map[uuid.UUID]string)
	}
	if _, ok := m.members[committeeID][userID]; ok {
		return nil, ErrAlreadyMember
	}
	m.members[committeeID][userID] = role
	return &models.CommitteeMember{CommitteeID: committeeID, UserID: userID, Role: role, AssignedAt: time.Now()}, nil
}

func (m *memStore) RemoveMember(_ context.Context, committeeID, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.members[committeeID][userID]; !ok {
		return apperr.ErrNotFound
	}
	delete(m.members[committeeID], userID)
	return nil
}

func (m *memStore) ListMembers(_ context.Context, committeeID uuid.UUID) ([]models.CommitteeMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.CommitteeMember
	for uid, role := range m.members[committeeID] {
		out = append(out, models.CommitteeMember{CommitteeID: committeeID, UserID: uid, Role: role})
	}
	return out, nil
}

func (m *memStore) IsActiveParticipant(_ context.Context, eventID, userID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.participants[eventID][userID], nil
}

type memEvents map[uuid.UUID]*models.Event

func (m memEvents) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	if ev, ok := m[id]; ok {
		cp := *ev
		return &cp, nil
	}
	return nil, apperr.ErrNotFound
}

type committeesFixture struct {
	svc         *Service
	store       *memStore
	event       *models.Event
	finished    *models.Event
	coordinator policy.Actor
	leader      policy.Actor
	outsider    policy.Actor
}

func newCommitteesFixture() committeesFixture {
	inst, otherInst := uuid.New(), uuid.New()
	coordinator := policy.Actor{UserID: uuid.New(), Role: models.RoleCoordinator, InstitutionID: &inst}
	ev := &models.Event{ID: uuid.New(), Name: "Feria", InstitutionID: inst, CoordinatorID: coordinator.UserID, Status: models.EventActive}
	fin := &models.Event{ID: uuid.New(), Name: "Old", InstitutionID: inst, CoordinatorID: coordinator.UserID, Status: models.EventFinished}
	store := newMemStore()
	return committeesFixture{
		svc:         NewService(store, memEvents{ev.ID: ev, fin.ID: fin}, nil),
		store:       store,
		event:       ev,
		finished:    fin,
		coordinator: coordinator,
		leader:      policy.Actor{UserID: uuid.New(), Role: models.RoleSeedbedLeader, InstitutionID: &inst},
		outsider:    policy.Actor{UserID: uuid.New(), Role: models.RoleCoordinator, InstitutionID: &otherInst},
	}
}

func TestService_CreateAndList(t *testing.T) {
	ctx := context.Background()
	f := newCommitteesFixture()

	c, err := f.svc.Create(ctx, f.coordinator, f.event.ID, "  Logística ")
	require.NoError(t, err)
	assert.Equal(t, "Logística", c.Name)
	assert.Equal(t, f.event.ID, c.EventID)

	list, err := f.svc.ListByEvent(ctx, f.leader, f.event.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = f.svc.Create(ctx, f.leader, f.event.ID, "Nope")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.svc.Create(ctx, f.outsider, f.event.ID, "Nope")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.ListByEvent(ctx, f.outsider, f.event.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.Create(ctx, f.coordinator, f.event.ID, "")
	var verr *apperr.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = f.svc.Create(ctx, f.coordinator, f.finished.ID, "Late")
	assert.True(t, apperr.IsBusiness(err))
}

func TestService_Members(t *testing.T) {
	ctx := context.Background()
	f := newCommitteesFixture()
	c, err := f.svc.Create(ctx, f.coordinator, f.event.ID, "Logística")
	require.NoError(t, err)

	_, err = f.svc.AddMember(ctx, f.coordinator, c.ID, f.leader.UserID, "")
	assert.EqualError(t, err, "user is not an active participant of the event")

	f.store.join(f.event.ID, f.leader.UserID)
	m, err := f.svc.AddMember(ctx, f.coordinator, c.ID, f.leader.UserID, "")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultCommitteeRole, m.Role)

	_, err = f.svc.AddMember(ctx, f.coordinator, c.ID, f.leader.UserID, "")
	assert.ErrorIs(t, err, ErrAlreadyMember)

	members, err := f.svc.Members(ctx, f.leader, c.ID)
	require.NoError(t, err)
	assert.Len(t, members, 1)

	err = f.svc.RemoveMember(ctx, f.leader, c.ID, f.leader.UserID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	require.NoError(t, f.svc.RemoveMember(ctx, f.coordinator, c.ID, f.leader.UserID))
	err = f.svc.RemoveMember(ctx, f.coordinator, c.ID, f.leader.UserID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestService_UpdateDelete(t *testing.T) {
	ctx := context.Background()
	f := newCommitteesFixture()
	c, err := f.svc.Create(ctx, f.coordinator, f.event.ID, "Logística")
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, f.outsider, c.ID, "Hack")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	out, err := f.svc.Update(ctx, f.coordinator, c.ID, "Comunicaciones")
	require.NoError(t, err)
	assert.Equal(t, "Comunicaciones", out.Name)

	require.NoError(t, f.svc.Delete(ctx, f.coordinator, c.ID))
	_, err = f.svc.Members(ctx, f.coordinator, c.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
