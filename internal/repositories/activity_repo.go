package repositories

import (
	"context"
	"time"

	"github.com/cloudytech/loginguard/internal/database"
	"github.com/cloudytech/loginguard/internal/models"
)

// ActivityRepository handles database operations for session activity records
type ActivityRepository struct {
	db *database.DB
}

// NewActivityRepository creates a new ActivityRepository
func NewActivityRepository(db *database.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Get returns the activity record for a principal, or models.ErrNotFound
// when the principal has not been tracked yet
func (r *ActivityRepository) Get(ctx context.Context, principalID string) (*models.ActivityRecord, error) {
	query := `SELECT principal_id, last_activity FROM session_activity WHERE principal_id = $1`

	var record models.ActivityRecord
	err := r.db.Pool.QueryRow(ctx, query, principalID).Scan(&record.PrincipalID, &record.LastActivity)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &record, nil
}

// Upsert overwrites the principal's last-activity timestamp in place
func (r *ActivityRepository) Upsert(ctx context.Context, principalID string, lastActivity time.Time) error {
	query := `
		INSERT INTO session_activity (principal_id, last_activity)
		VALUES ($1, $2)
		ON CONFLICT (principal_id) DO UPDATE SET last_activity = EXCLUDED.last_activity
	`

	_, err := r.db.Pool.Exec(ctx, query, principalID, lastActivity)
	return err
}

// Delete removes a principal's activity record (forced logout)
func (r *ActivityRepository) Delete(ctx context.Context, principalID string) error {
	query := `DELETE FROM session_activity WHERE principal_id = $1`
	_, err := r.db.Pool.Exec(ctx, query, principalID)
	return err
}

// DeleteAll clears every activity record; invoked when the timeout policy
// is administratively reset
func (r *ActivityRepository) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM session_activity`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
