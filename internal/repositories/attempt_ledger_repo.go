package repositories

import (
	"context"
	"time"

	"github.com/cloudytech/loginguard/internal/database"
	"github.com/cloudytech/loginguard/internal/models"
	"github.com/jackc/pgx/v5"
)

// AttemptLedgerRepository handles database operations for the failed-attempt ledger
type AttemptLedgerRepository struct {
	db *database.DB
}

// NewAttemptLedgerRepository creates a new AttemptLedgerRepository
func NewAttemptLedgerRepository(db *database.DB) *AttemptLedgerRepository {
	return &AttemptLedgerRepository{db: db}
}

// ActiveLock returns the lock expiry for an address if any row carries a
// locked_until in the future, or nil when the address is not locked
func (r *AttemptLedgerRepository) ActiveLock(ctx context.Context, address string, now time.Time) (*time.Time, error) {
	query := `
		SELECT locked_until FROM login_attempts
		WHERE address = $1 AND locked_until IS NOT NULL AND locked_until > $2
		LIMIT 1
	`

	var lockedUntil time.Time
	err := r.db.Pool.QueryRow(ctx, query, address, now).Scan(&lockedUntil)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &lockedUntil, nil
}

// Insert records a failed attempt for an address
func (r *AttemptLedgerRepository) Insert(ctx context.Context, record *models.AttemptRecord) error {
	query := `
		INSERT INTO login_attempts (address, attempted_at)
		VALUES ($1, $2)
	`

	_, err := r.db.Pool.Exec(ctx, query, record.Address, record.AttemptedAt)
	return err
}

// CountSince returns the number of attempts for an address strictly newer
// than the cutoff; a row exactly at the cutoff age does not count
func (r *AttemptLedgerRepository) CountSince(ctx context.Context, address string, cutoff time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM login_attempts
		WHERE address = $1 AND attempted_at > $2
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, address, cutoff).Scan(&count)
	return count, err
}

// ArmLock sets locked_until on every current row for the address
func (r *AttemptLedgerRepository) ArmLock(ctx context.Context, address string, until time.Time) error {
	query := `UPDATE login_attempts SET locked_until = $2 WHERE address = $1`
	_, err := r.db.Pool.Exec(ctx, query, address, until)
	return err
}

// PurgeOlderThan removes rows for an address older than the cutoff.
// Called inline before each write; there is no background sweep in the
// core, so addresses that never retry keep stale rows until PurgeAllOlderThan.
func (r *AttemptLedgerRepository) PurgeOlderThan(ctx context.Context, address string, cutoff time.Time) error {
	query := `DELETE FROM login_attempts WHERE address = $1 AND attempted_at < $2`
	_, err := r.db.Pool.Exec(ctx, query, address, cutoff)
	return err
}

// DeleteForAddress removes every row for an address, clearing both the
// attempt count and any armed lock
func (r *AttemptLedgerRepository) DeleteForAddress(ctx context.Context, address string) error {
	query := `DELETE FROM login_attempts WHERE address = $1`
	_, err := r.db.Pool.Exec(ctx, query, address)
	return err
}

// PurgeAllOlderThan removes stale rows across all addresses; used by the
// administrative purge, never by the request path
func (r *AttemptLedgerRepository) PurgeAllOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM login_attempts WHERE attempted_at < $1 AND (locked_until IS NULL OR locked_until < $1)`
	tag, err := r.db.Pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
