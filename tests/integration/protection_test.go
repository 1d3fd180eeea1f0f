package integration

import (
	"context"
	"flag"
	"log"
	"os"
	"testing"
	"time"

	"github.com/cloudytech/loginguard/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDB *TestDB

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()
	db, err := SetupTestDatabase(ctx)
	if err != nil {
		log.Fatalf("failed to set up test database: %v", err)
	}
	testDB = db

	code := m.Run()
	_ = db.Teardown(ctx)
	os.Exit(code)
}

// setup hands each test the shared container with clean tables
func setup(t *testing.T) (*TestDB, context.Context) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	require.NoError(t, testDB.CleanupTables(ctx))
	return testDB, ctx
}

func TestAttemptLedgerLifecycle(t *testing.T) {
	db, ctx := setup(t)
	_, ledger, _, _ := InitializeRepositories(db.DB)

	now := time.Now()
	address := "203.0.113.7"

	// No lock on a clean address
	lock, err := ledger.ActiveLock(ctx, address, now)
	require.NoError(t, err)
	assert.Nil(t, lock)

	for i := 0; i < 5; i++ {
		err := ledger.Insert(ctx, &models.AttemptRecord{
			Address:     address,
			AttemptedAt: now.Add(time.Duration(-i) * time.Minute),
		})
		require.NoError(t, err)
	}

	count, err := ledger.CountSince(ctx, address, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	// Rows at the cutoff age do not count
	count, err = ledger.CountSince(ctx, address, now)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	until := now.Add(30 * time.Minute)
	require.NoError(t, ledger.ArmLock(ctx, address, until))

	lock, err = ledger.ActiveLock(ctx, address, now)
	require.NoError(t, err)
	require.NotNil(t, lock)
	assert.WithinDuration(t, until, *lock, time.Second)

	// The lock is invisible once its window has passed
	lock, err = ledger.ActiveLock(ctx, address, until.Add(time.Second))
	require.NoError(t, err)
	assert.Nil(t, lock)

	// Success path clears history and lock together
	require.NoError(t, ledger.DeleteForAddress(ctx, address))
	count, err = ledger.CountSince(ctx, address, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestAttemptLedgerPurge(t *testing.T) {
	db, ctx := setup(t)
	_, ledger, _, _ := InitializeRepositories(db.DB)

	now := time.Now()
	require.NoError(t, SeedFailedAttempts(ctx, db.Pool, "198.51.100.9", 3, now.Add(-72*time.Hour)))
	require.NoError(t, SeedFailedAttempts(ctx, db.Pool, "198.51.100.9", 2, now))

	deleted, err := ledger.PurgeAllOlderThan(ctx, now.Add(-48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	count, err := ledger.CountSince(ctx, "198.51.100.9", now.Add(-96*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestActivityRoundTrip(t *testing.T) {
	db, ctx := setup(t)
	_, _, activity, _ := InitializeRepositories(db.DB)

	user, err := SeedUser(ctx, db.Pool, "alice", "correct-password", "user")
	require.NoError(t, err)

	_, err = activity.Get(ctx, user.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	stamp := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, activity.Upsert(ctx, user.ID, stamp))

	record, err := activity.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, stamp, record.LastActivity, time.Second)

	// Upsert overwrites in place
	later := stamp.Add(10 * time.Minute)
	require.NoError(t, activity.Upsert(ctx, user.ID, later))
	record, err = activity.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, later, record.LastActivity, time.Second)

	require.NoError(t, activity.Delete(ctx, user.ID))
	_, err = activity.Get(ctx, user.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSettingsSeedAndUpdate(t *testing.T) {
	db, ctx := setup(t)
	_, _, _, settings := InitializeRepositories(db.DB)

	defaults := models.DefaultProtectionSettings()
	require.NoError(t, settings.EnsureDefaults(ctx, defaults))

	// Seeding again is a no-op
	require.NoError(t, settings.EnsureDefaults(ctx, defaults))

	current, err := settings.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, defaults, current)

	current.MaxLoginAttempts = 3
	current.NewLoginPath = "members-entrance"
	require.NoError(t, settings.Update(ctx, current))

	updated, err := settings.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, updated.MaxLoginAttempts)
	assert.Equal(t, "members-entrance", updated.NewLoginPath)
}

func TestUserLookup(t *testing.T) {
	db, ctx := setup(t)
	users, _, _, _ := InitializeRepositories(db.DB)

	seeded, err := SeedUser(ctx, db.Pool, "root", "correct-password", "admin")
	require.NoError(t, err)

	found, err := users.GetByUsername(ctx, "root")
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, found.ID)
	assert.Equal(t, "admin", found.Role)

	_, err = users.GetByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
