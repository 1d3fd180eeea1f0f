package models

import "time"

// AttemptRecord is a single failed login attempt in the ledger.
// LockedUntil is set on every row for an address once the rolling count
// reaches the configured maximum; a row with a future LockedUntil means
// the address is locked.
type AttemptRecord struct {
	ID          int64      `db:"id"`
	Address     string     `db:"address"`
	AttemptedAt time.Time  `db:"attempted_at"`
	LockedUntil *time.Time `db:"locked_until"`
}
