package models

import "time"

// ActivityRecord tracks when an authenticated principal was last seen.
// Absence of a record means "not yet tracked", never "expired".
type ActivityRecord struct {
	PrincipalID  string    `db:"principal_id"`
	LastActivity time.Time `db:"last_activity"`
}
