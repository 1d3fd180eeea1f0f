package services

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/cloudytech/loginguard/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryActivity implements ActivityStore over a map
type memoryActivity struct {
	records   map[string]time.Time
	failReads bool
}

var errActivityDown = errors.New("activity store unavailable")

func newMemoryActivity() *memoryActivity {
	return &memoryActivity{records: make(map[string]time.Time)}
}

func (m *memoryActivity) Get(ctx context.Context, principalID string) (*models.ActivityRecord, error) {
	if m.failReads {
		return nil, errActivityDown
	}
	last, ok := m.records[principalID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &models.ActivityRecord{PrincipalID: principalID, LastActivity: last}, nil
}

func (m *memoryActivity) Upsert(ctx context.Context, principalID string, lastActivity time.Time) error {
	m.records[principalID] = lastActivity
	return nil
}

func (m *memoryActivity) Delete(ctx context.Context, principalID string) error {
	delete(m.records, principalID)
	return nil
}

func (m *memoryActivity) DeleteAll(ctx context.Context) (int64, error) {
	n := int64(len(m.records))
	m.records = make(map[string]time.Time)
	return n, nil
}

func testTracker(store ActivityStore, settings models.ProtectionSettings, now time.Time) *SessionTracker {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	tracker := NewSessionTracker(store, settings, logger)
	tracker.now = func() time.Time { return now }
	return tracker
}

func TestSessionTrackerEnabled(t *testing.T) {
	settings := models.DefaultProtectionSettings()
	tracker := testTracker(newMemoryActivity(), settings, time.Now())
	assert.True(t, tracker.Enabled())

	settings.SessionTimeout = 0
	tracker = testTracker(newMemoryActivity(), settings, time.Now())
	assert.False(t, tracker.Enabled())
}

func TestSessionTrackerEffectiveTimeout_ElevatedDoubles(t *testing.T) {
	settings := models.DefaultProtectionSettings()
	tracker := testTracker(newMemoryActivity(), settings, time.Now())

	assert.Equal(t, 60*time.Minute, tracker.EffectiveTimeout(false))
	assert.Equal(t, 120*time.Minute, tracker.EffectiveTimeout(true))
}

func TestSessionTrackerIsExpired_FirstObservationTouches(t *testing.T) {
	store := newMemoryActivity()
	now := time.Now()
	tracker := testTracker(store, models.DefaultProtectionSettings(), now)

	expired := tracker.IsExpired(context.Background(), "user-1", false)

	assert.False(t, expired)
	// The missing record was created, not treated as expired
	assert.Equal(t, now, store.records["user-1"])
}

func TestSessionTrackerIsExpired_IdlePastTimeout(t *testing.T) {
	store := newMemoryActivity()
	now := time.Now()
	store.records["user-1"] = now.Add(-61 * time.Minute)
	tracker := testTracker(store, models.DefaultProtectionSettings(), now)

	assert.True(t, tracker.IsExpired(context.Background(), "user-1", false))
}

func TestSessionTrackerIsExpired_ExactTimeoutStillAlive(t *testing.T) {
	store := newMemoryActivity()
	now := time.Now()
	store.records["user-1"] = now.Add(-60 * time.Minute)
	tracker := testTracker(store, models.DefaultProtectionSettings(), now)

	// Idle must exceed the timeout, not merely reach it
	assert.False(t, tracker.IsExpired(context.Background(), "user-1", false))
}

func TestSessionTrackerIsExpired_ElevatedOutlivesBaseTimeout(t *testing.T) {
	store := newMemoryActivity()
	now := time.Now()
	store.records["admin-1"] = now.Add(-90 * time.Minute)
	tracker := testTracker(store, models.DefaultProtectionSettings(), now)

	assert.True(t, tracker.IsExpired(context.Background(), "admin-1", false))
	assert.False(t, tracker.IsExpired(context.Background(), "admin-1", true))

	store.records["admin-1"] = now.Add(-121 * time.Minute)
	assert.True(t, tracker.IsExpired(context.Background(), "admin-1", true))
}

func TestSessionTrackerIsExpired_FailsOpenOnStoreError(t *testing.T) {
	store := newMemoryActivity()
	store.failReads = true
	tracker := testTracker(store, models.DefaultProtectionSettings(), time.Now())

	assert.False(t, tracker.IsExpired(context.Background(), "user-1", false))
}

func TestSessionTrackerTouch_RefreshesTimestamp(t *testing.T) {
	store := newMemoryActivity()
	now := time.Now()
	store.records["user-1"] = now.Add(-50 * time.Minute)
	tracker := testTracker(store, models.DefaultProtectionSettings(), now)

	require.NoError(t, tracker.Touch(context.Background(), "user-1"))

	assert.Equal(t, now, store.records["user-1"])
	assert.False(t, tracker.IsExpired(context.Background(), "user-1", false))
}

func TestSessionTrackerExpire_RemovesRecord(t *testing.T) {
	store := newMemoryActivity()
	now := time.Now()
	store.records["user-1"] = now
	tracker := testTracker(store, models.DefaultProtectionSettings(), now)

	require.NoError(t, tracker.Expire(context.Background(), "user-1"))

	_, ok := store.records["user-1"]
	assert.False(t, ok)
}

func TestSessionTrackerResetAll_ClearsEveryRecord(t *testing.T) {
	store := newMemoryActivity()
	now := time.Now()
	store.records["user-1"] = now
	store.records["user-2"] = now
	tracker := testTracker(store, models.DefaultProtectionSettings(), now)

	cleared, err := tracker.ResetAll(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(2), cleared)
	assert.Empty(t, store.records)
}
