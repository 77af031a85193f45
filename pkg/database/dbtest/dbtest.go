// Package dbtest connects repository tests to a real Postgres. Tests skip unless
// TEST_DATABASE_URL is set. Every helper seeds fresh rows with random keys, so packages
// can share one database and run in parallel without truncating.
package dbtest

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nexusesi/backend/pkg/database"
)

// EnvDSN names the variable holding the test database DSN.
const EnvDSN = "TEST_DATABASE_URL"

// migrationLock serializes migrations across test binaries.
const migrationLock = 74_221_001

var (
	once    sync.Once
	pool    *pgxpool.Pool
	openErr error
)

// Pool returns a migrated pool, or skips the test when no database is configured.
func Pool(t testing.TB) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv(EnvDSN)
	if dsn == "" {
		t.Skipf("%s not set", EnvDSN)
	}
	once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		pool, openErr = database.NewPostgresPool(ctx, dsn, database.PoolOptions{MaxConns: 8}, zap.NewNop())
		if openErr != nil {
			return
		}
		conn, err := pool.Acquire(ctx)
		if err != nil {
			openErr = err
			return
		}
		defer conn.Release()
		if _, openErr = conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, migrationLock); openErr != nil {
			return
		}
		defer func() { _, _ = conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, migrationLock) }()
		openErr = database.Migrate(ctx, pool, zap.NewNop())
	})
	require.NoError(t, openErr)
	return pool
}

func insertID(t testing.TB, db *pgxpool.Pool, q string, args ...interface{}) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	require.NoError(t, db.QueryRow(context.Background(), q, args...).Scan(&id))
	return id
}

// Institution inserts an active institution.
func Institution(t testing.TB, db *pgxpool.Pool) uuid.UUID {
	t.Helper()
	code := uuid.NewString()[:8]
	return insertID(t, db, `INSERT INTO institutions (name, code) VALUES ($1, $2) RETURNING id`, "Institution "+code, code)
}

// User inserts an active user of the institution with the given role.
func User(t testing.TB, db *pgxpool.Pool, institutionID uuid.UUID, role string) uuid.UUID {
	t.Helper()
	email := uuid.NewString() + "@example.test"
	return insertID(t, db, `INSERT INTO users (email, password_hash, full_name, role, institution_id)
		VALUES ($1, 'x', $2, $3, $4) RETURNING id`, email, "User "+email[:8], role, institutionID)
}

// Event inserts an event of the institution coordinated by coordinatorID.
func Event(t testing.TB, db *pgxpool.Pool, institutionID, coordinatorID uuid.UUID, status string) uuid.UUID {
	t.Helper()
	start := time.Now().UTC().AddDate(0, 0, 7)
	return insertID(t, db, `INSERT INTO events (name, start_date, end_date, coordinator_id, institution_id, status)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`, "Event "+uuid.NewString()[:8], start, start.AddDate(0, 0, 2),
		coordinatorID, institutionID, status)
}

// Committee inserts a committee of the event.
func Committee(t testing.TB, db *pgxpool.Pool, eventID uuid.UUID) uuid.UUID {
	t.Helper()
	return insertID(t, db, `INSERT INTO committees (event_id, name) VALUES ($1, 'Logistics') RETURNING id`, eventID)
}

// Participate inserts an active participation.
func Participate(t testing.TB, db *pgxpool.Pool, eventID, userID uuid.UUID) uuid.UUID {
	t.Helper()
	return insertID(t, db, `INSERT INTO event_participants (event_id, user_id) VALUES ($1, $2) RETURNING id`, eventID, userID)
}

// Member adds the user to the committee.
func Member(t testing.TB, db *pgxpool.Pool, committeeID, userID uuid.UUID) {
	t.Helper()
	_, err := db.Exec(context.Background(), `INSERT INTO committee_members (committee_id, user_id) VALUES ($1, $2)`, committeeID, userID)
	require.NoError(t, err)
}

// Task inserts a pending task of the event, optionally in a committee.
func Task(t testing.TB, db *pgxpool.Pool, eventID uuid.UUID, committeeID *uuid.UUID, createdBy uuid.UUID, due time.Time) uuid.UUID {
	t.Helper()
	return insertID(t, db, `INSERT INTO tasks (event_id, committee_id, title, due_date, created_by)
		VALUES ($1, $2, 'Book venue', $3, $4) RETURNING id`, eventID, committeeID, due, createdBy)
}
