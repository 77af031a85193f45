package committees

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusesi/backend/internal/models"
	"github.com/nexusesi/backend/pkg/apperr"
	"github.com/nexusesi/backend/pkg/database/dbtest"
)

func TestRepository_DeleteDetachesTasksAndMeetings(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(t)
	repo := NewRepository(pool)
	inst := dbtest.Institution(t, pool)
	coord := dbtest.User(t, pool, inst, string(models.RoleCoordinator))
	ev := dbtest.Event(t, pool, inst, coord, string(models.EventActive))
	committee := dbtest.Committee(t, pool, ev)
	taskID := dbtest.Task(t, pool, ev, &committee, coord, time.Now().AddDate(0, 0, 5))

	_, err := pool.Exec(ctx, `INSERT INTO task_progress (task_id, user_id, description) VALUES ($1, $2, 'Venue booked')`, taskID, coord)
	require.NoError(t, err)
	var meetingID uuid.UUID
	require.NoError(t, pool.QueryRow(ctx, `INSERT INTO meetings (event_id, committee_id, title, scheduled_at, meeting_type, created_by)
		VALUES ($1, $2, 'Weekly sync', NOW(), 'committee', $3) RETURNING id`, ev, committee, coord).Scan(&meetingID))

	require.NoError(t, repo.Delete(ctx, committee))

	var taskCommittee, meetingCommittee *uuid.UUID
	require.NoError(t, pool.QueryRow(ctx, `SELECT committee_id FROM tasks WHERE id = $1`, taskID).Scan(&taskCommittee))
	assert.Nil(t, taskCommittee)
	require.NoError(t, pool.QueryRow(ctx, `SELECT committee_id FROM meetings WHERE id = $1`, meetingID).Scan(&meetingCommittee))
	assert.Nil(t, meetingCommittee)

	var progress int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM task_progress WHERE task_id = $1`, taskID).Scan(&progress))
	assert.Equal(t, 1, progress)

	assert.ErrorIs(t, repo.Delete(ctx, committee), apperr.ErrNotFound)
}

func TestRepository_DeleteWithoutDetachIsRejected(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(t)
	inst := dbtest.Institution(t, pool)
	coord := dbtest.User(t, pool, inst, string(models.RoleCoordinator))
	ev := dbtest.Event(t, pool, inst, coord, string(models.EventActive))
	committee := dbtest.Committee(t, pool, ev)
	taskID := dbtest.Task(t, pool, ev, &committee, coord, time.Now().AddDate(0, 0, 5))

	_, err := pool.Exec(ctx, `DELETE FROM committees WHERE id = $1`, committee)
	require.Error(t, err, "a raw delete must not cascade into tasks")

	var exists bool
	require.NoError(t, pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1)`, taskID).Scan(&exists))
	assert.True(t, exists)
}
