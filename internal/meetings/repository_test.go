package meetings

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusesi/backend/internal/models"
	"github.com/nexusesi/backend/pkg/database/dbtest"
)

func TestRepository_RecordAttendanceOnce(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(t)
	repo := NewRepository(pool)
	inst := dbtest.Institution(t, pool)
	coord := dbtest.User(t, pool, inst, string(models.RoleCoordinator))
	leader := dbtest.User(t, pool, inst, string(models.RoleSeedbedLeader))
	ev := dbtest.Event(t, pool, inst, coord, string(models.EventActive))

	m := &models.Meeting{
		EventID:     ev,
		Title:       "Kickoff",
		ScheduledAt: time.Now().Add(time.Hour),
		MeetingType: models.MeetingGeneral,
		Status:      models.MeetingScheduled,
		CreatedBy:   coord,
	}
	require.NoError(t, repo.CreateWithInvitations(ctx, m, []uuid.UUID{leader, leader}))
	invitees, err := repo.InviteeIDs(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{leader}, invitees)

	first, recorded, err := repo.RecordAttendance(ctx, m.ID, leader, models.CheckInQR, time.Now())
	require.NoError(t, err)
	assert.True(t, recorded)

	again, recorded, err := repo.RecordAttendance(ctx, m.ID, leader, models.CheckInManual, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, recorded)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, models.CheckInQR, again.CheckedInVia)

	list, err := repo.ListAttendance(ctx, m.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
