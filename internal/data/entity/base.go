package entity

import (
	"time"

	"github.com/google/uuid"
)

type Base struct {
	ID        uuid.UUID `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// NewBase stamps a fresh row. Timestamps are kept at the microsecond
// precision Postgres stores, so a reloaded row compares equal.
func NewBase(now time.Time) Base {
	now = now.UTC().Truncate(time.Microsecond)
	return Base{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}
