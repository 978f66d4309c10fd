package entity

import (
	"time"

	"github.com/google/uuid"
)

// Session is issued by the identity service; this service only reads it.
type Session struct {
	UserID    uuid.UUID `db:"user_id"`
	Token     uuid.UUID `db:"token"`
	ExpiresAt time.Time `db:"expires_at"`
}
