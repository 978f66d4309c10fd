package database

import (
	"context"
	"fmt"
)

const (
	// ActiveReservationIndex allows one PENDING or CONFIRMED reservation per room.
	ActiveReservationIndex = "uq_reservations_active_room"
	// LivePaymentIndex allows one non-FAILED payment per reservation.
	LivePaymentIndex = "uq_payments_live_reservation"
)

// Tables owned by collaborators (profiles, sessions, apartments, rooms) are
// created here only so a fresh database can boot; their rows are written elsewhere.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		user_id    UUID PRIMARY KEY,
		username   VARCHAR(150) NOT NULL,
		phone      VARCHAR(20),
		role       VARCHAR(20) NOT NULL CHECK (role IN ('student', 'landlord', 'admin')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		token      UUID PRIMARY KEY,
		user_id    UUID NOT NULL REFERENCES profiles(user_id) ON DELETE CASCADE,
		expires_at TIMESTAMPTZ NOT NULL,
		revoked_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS apartments (
		id          UUID PRIMARY KEY,
		landlord_id UUID NOT NULL REFERENCES profiles(user_id),
		name        VARCHAR(120) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS rooms (
		id           UUID PRIMARY KEY,
		apartment_id UUID NOT NULL REFERENCES apartments(id) ON DELETE CASCADE,
		label        VARCHAR(30) NOT NULL,
		room_type    VARCHAR(20) NOT NULL DEFAULT 'single'
	)`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id             UUID PRIMARY KEY,
		room_id        UUID NOT NULL REFERENCES rooms(id) ON DELETE RESTRICT,
		requester_id   UUID NOT NULL REFERENCES profiles(user_id),
		full_name      VARCHAR(120) NOT NULL,
		phone          VARCHAR(20) NOT NULL,
		student_number VARCHAR(50),
		status         VARCHAR(12) NOT NULL CHECK (status IN ('PENDING', 'CONFIRMED', 'CANCELLED')),
		created_at     TIMESTAMPTZ NOT NULL,
		updated_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ` + ActiveReservationIndex + `
		ON reservations (room_id) WHERE status IN ('PENDING', 'CONFIRMED')`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_requester ON reservations (requester_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id             UUID PRIMARY KEY,
		reservation_id UUID NOT NULL REFERENCES reservations(id) ON DELETE CASCADE,
		payer_id       UUID NOT NULL REFERENCES profiles(user_id),
		amount         BIGINT NOT NULL CHECK (amount > 0),
		method         VARCHAR(20) NOT NULL,
		checkout_id    VARCHAR(120) UNIQUE,
		receipt_number VARCHAR(64),
		result_desc    TEXT,
		status         VARCHAR(12) NOT NULL CHECK (status IN ('NOT_PAID', 'PENDING', 'PAID', 'FAILED')),
		submitted_at   TIMESTAMPTZ,
		created_at     TIMESTAMPTZ NOT NULL,
		updated_at     TIMESTAMPTZ NOT NULL
	)`,
	`ALTER TABLE payments ADD COLUMN IF NOT EXISTS submitted_at TIMESTAMPTZ`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ` + LivePaymentIndex + `
		ON payments (reservation_id) WHERE status IN ('NOT_PAID', 'PENDING', 'PAID')`,
	`CREATE INDEX IF NOT EXISTS idx_payments_pending_updated ON payments (updated_at) WHERE status = 'PENDING'`,
	`CREATE INDEX IF NOT EXISTS idx_payments_unrecorded_submitted ON payments (submitted_at) WHERE status = 'NOT_PAID'`,
}

// EnsureSchema creates missing tables and indexes. It is safe to run on every boot.
func EnsureSchema(ctx context.Context, db PgxIface) error {
	for _, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
