package tasks

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusesi/backend/internal/models"
	"github.com/nexusesi/backend/pkg/database/dbtest"
)

type repoFixture struct {
	repo        *Repository
	institution uuid.UUID
	coordinator uuid.UUID
	event       uuid.UUID
	committee   uuid.UUID
}

func newRepoFixture(t *testing.T) repoFixture {
	pool := dbtest.Pool(t)
	inst := dbtest.Institution(t, pool)
	coord := dbtest.User(t, pool, inst, string(models.RoleCoordinator))
	ev := dbtest.Event(t, pool, inst, coord, string(models.EventActive))
	return repoFixture{
		repo:        NewRepository(pool),
		institution: inst,
		coordinator: coord,
		event:       ev,
		committee:   dbtest.Committee(t, pool, ev),
	}
}

func (f repoFixture) leader(t *testing.T) uuid.UUID {
	pool := dbtest.Pool(t)
	id := dbtest.User(t, pool, f.institution, string(models.RoleSeedbedLeader))
	dbtest.Participate(t, pool, f.event, id)
	dbtest.Member(t, pool, f.committee, id)
	return id
}

func TestRepository_ClaimOnlyWhileUnassigned(t *testing.T) {
	ctx := context.Background()
	f := newRepoFixture(t)
	l1, l2 := f.leader(t), f.leader(t)
	taskID := dbtest.Task(t, dbtest.Pool(t), f.event, &f.committee, f.coordinator, time.Now().AddDate(0, 0, 10))

	claimed, err := f.repo.Assign(ctx, taskID, l1, models.RiskLow, true)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.True(t, claimed.IsAssignedTo(l1))
	assert.Equal(t, models.TaskInProgress, claimed.Status)

	lost, err := f.repo.Assign(ctx, taskID, l2, models.RiskLow, true)
	require.NoError(t, err)
	assert.Nil(t, lost)

	overridden, err := f.repo.Assign(ctx, taskID, l2, models.RiskLow, false)
	require.NoError(t, err)
	require.NotNil(t, overridden)
	assert.True(t, overridden.IsAssignedTo(l2))
}

func TestRepository_ConcurrentClaimsHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	f := newRepoFixture(t)
	leaders := []uuid.UUID{f.leader(t), f.leader(t), f.leader(t), f.leader(t)}
	taskID := dbtest.Task(t, dbtest.Pool(t), f.event, &f.committee, f.coordinator, time.Now().AddDate(0, 0, 10))

	var wg sync.WaitGroup
	results := make([]*models.Task, len(leaders))
	errs := make([]error, len(leaders))
	for i, l := range leaders {
		wg.Add(1)
		go func(i int, l uuid.UUID) {
			defer wg.Done()
			results[i], errs[i] = f.repo.Assign(ctx, taskID, l, models.RiskLow, true)
		}(i, l)
	}
	wg.Wait()

	winners := 0
	for i := range leaders {
		require.NoError(t, errs[i])
		if results[i] != nil {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}

func TestRepository_IsMemberRequiresActiveParticipation(t *testing.T) {
	ctx := context.Background()
	f := newRepoFixture(t)
	leader := f.leader(t)

	ok, err := f.repo.IsMember(ctx, f.committee, leader)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = dbtest.Pool(t).Exec(ctx, `UPDATE event_participants SET is_active = FALSE, ended_at = NOW()
		WHERE event_id = $1 AND user_id = $2`, f.event, leader)
	require.NoError(t, err)

	ok, err = f.repo.IsMember(ctx, f.committee, leader)
	require.NoError(t, err)
	assert.False(t, ok, "membership of a left event does not allow claims")
}

func TestRepository_ListOpenAssignedSkipsFinishedEvents(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(t)
	f := newRepoFixture(t)
	leader := f.leader(t)
	finished := dbtest.Event(t, pool, f.institution, f.coordinator, string(models.EventFinished))

	due := time.Now().AddDate(0, 0, 1)
	open := dbtest.Task(t, pool, f.event, nil, f.coordinator, due)
	closed := dbtest.Task(t, pool, finished, nil, f.coordinator, due)
	for _, id := range []uuid.UUID{open, closed} {
		_, err := f.repo.Assign(ctx, id, leader, models.RiskLow, false)
		require.NoError(t, err)
	}

	list, err := f.repo.ListOpenAssigned(ctx)
	require.NoError(t, err)
	seen := map[uuid.UUID]bool{}
	for _, task := range list {
		seen[task.ID] = true
	}
	assert.True(t, seen[open])
	assert.False(t, seen[closed])
}
