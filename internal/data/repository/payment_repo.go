package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hostel-booking/internal/data/entity"
	"hostel-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type PaymentRepository interface {
	// Create inserts a NOT_PAID payment; ErrLivePaymentExists if the
	// reservation already holds a non-failed one.
	Create(ctx context.Context, payment *entity.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Payment, error)
	FindByCheckoutID(ctx context.Context, checkoutID string) (*entity.Payment, error)
	FindLiveByReservation(ctx context.Context, reservationID uuid.UUID) (*entity.Payment, error)
	ListByReservation(ctx context.Context, reservationID uuid.UUID) ([]*entity.Payment, error)
	CountFailedByReservation(ctx context.Context, reservationID uuid.UUID) (int, error)

	// ClaimSubmission takes the push lease on an unleased NOT_PAID payment.
	// Exactly one concurrent caller gets true.
	ClaimSubmission(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	// ReleaseSubmission drops the lease after a push the gateway did not
	// accept, so the row can be pushed again.
	ReleaseSubmission(ctx context.Context, id uuid.UUID, now time.Time) error
	// MarkPending records the gateway checkout id and the amount actually
	// pushed, NOT_PAID -> PENDING.
	MarkPending(ctx context.Context, id uuid.UUID, checkoutID string, amount int64, now time.Time) (bool, error)
	// Settle moves a PENDING payment to PAID or FAILED.
	Settle(ctx context.Context, id uuid.UUID, outcome Settlement, now time.Time) (bool, error)

	// ListStale returns PENDING payments not updated since cutoff and
	// NOT_PAID payments whose push lease was taken before cutoff.
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*entity.Payment, error)
	// ExpireStale fails one stale payment and, when no newer live payment
	// exists, cancels its still-PENDING reservation, atomically.
	ExpireStale(ctx context.Context, id uuid.UUID, cutoff, now time.Time) (ExpireResult, error)
}

type Settlement struct {
	Status        entity.PaymentStatus
	ReceiptNumber *string
	ResultDesc    *string
}

type ExpireResult struct {
	Expired  bool
	Released bool
	// Unrecorded is set when the expired payment was leased for a push but
	// never got a checkout id.
	Unrecorded    bool
	ReservationID uuid.UUID
}

type paymentRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewPaymentRepository(db database.PgxIface, log *zap.Logger) PaymentRepository {
	return &paymentRepository{
		db:  db,
		log: log.With(zap.String("repository", "payment")),
	}
}

const paymentColumns = `id, reservation_id, payer_id, amount, method, checkout_id, receipt_number, result_desc, status, submitted_at, created_at, updated_at`

func scanPayment(row pgx.Row) (*entity.Payment, error) {
	var p entity.Payment
	err := row.Scan(
		&p.ID,
		&p.ReservationID,
		&p.PayerID,
		&p.Amount,
		&p.Method,
		&p.CheckoutID,
		&p.ReceiptNumber,
		&p.ResultDesc,
		&p.Status,
		&p.SubmittedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepository) Create(ctx context.Context, payment *entity.Payment) error {
	query := `
		INSERT INTO payments (id, reservation_id, payer_id, amount, method, checkout_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Exec(ctx, query,
		payment.ID,
		payment.ReservationID,
		payment.PayerID,
		payment.Amount,
		payment.Method,
		payment.CheckoutID,
		payment.Status,
		payment.CreatedAt,
		payment.UpdatedAt,
	)

	if database.IsUniqueViolation(err, database.LivePaymentIndex) {
		return ErrLivePaymentExists
	}
	if err != nil {
		r.log.Error("Failed to create payment",
			zap.Error(err),
			zap.String("reservation_id", payment.ReservationID.String()),
		)
		return fmt.Errorf("create payment for reservation %s: %w", payment.ReservationID, err)
	}

	return nil
}

func (r *paymentRepository) findOne(ctx context.Context, what, where string, arg any) (*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE ` + where

	p, err := scanPayment(r.db.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find payment by "+what,
			zap.Error(err),
			zap.Any(what, arg),
		)
		return nil, fmt.Errorf("find payment by %s %v: %w", what, arg, err)
	}

	return p, nil
}

func (r *paymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Payment, error) {
	return r.findOne(ctx, "id", "id = $1", id)
}

func (r *paymentRepository) FindByCheckoutID(ctx context.Context, checkoutID string) (*entity.Payment, error) {
	return r.findOne(ctx, "checkout_id", "checkout_id = $1", checkoutID)
}

func (r *paymentRepository) FindLiveByReservation(ctx context.Context, reservationID uuid.UUID) (*entity.Payment, error) {
	return r.findOne(ctx, "reservation_id", "reservation_id = $1 AND status <> 'FAILED'", reservationID)
}

func (r *paymentRepository) ListByReservation(ctx context.Context, reservationID uuid.UUID) ([]*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE reservation_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, reservationID)
}

func (r *paymentRepository) list(ctx context.Context, query string, args ...any) ([]*entity.Payment, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to list payments", zap.Error(err))
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []*entity.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			r.log.Error("Failed to scan payment row", zap.Error(err))
			return nil, fmt.Errorf("scan payment row: %w", err)
		}
		payments = append(payments, p)
	}

	return payments, rows.Err()
}

func (r *paymentRepository) CountFailedByReservation(ctx context.Context, reservationID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM payments WHERE reservation_id = $1 AND status = 'FAILED'`

	var count int
	if err := r.db.QueryRow(ctx, query, reservationID).Scan(&count); err != nil {
		r.log.Error("Failed to count failed payments",
			zap.Error(err),
			zap.String("reservation_id", reservationID.String()),
		)
		return 0, fmt.Errorf("count failed payments for reservation %s: %w", reservationID, err)
	}

	return count, nil
}

func (r *paymentRepository) ClaimSubmission(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	query := `
		UPDATE payments
		SET submitted_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'NOT_PAID' AND submitted_at IS NULL
	`

	result, err := r.db.Exec(ctx, query, id, now)
	if err != nil {
		r.log.Error("Failed to claim payment submission",
			zap.Error(err),
			zap.String("payment_id", id.String()),
		)
		return false, fmt.Errorf("claim submission of payment %s: %w", id, err)
	}

	return result.RowsAffected() == 1, nil
}

func (r *paymentRepository) ReleaseSubmission(ctx context.Context, id uuid.UUID, now time.Time) error {
	query := `
		UPDATE payments
		SET submitted_at = NULL, updated_at = $2
		WHERE id = $1 AND status = 'NOT_PAID'
	`

	if _, err := r.db.Exec(ctx, query, id, now); err != nil {
		r.log.Error("Failed to release payment submission",
			zap.Error(err),
			zap.String("payment_id", id.String()),
		)
		return fmt.Errorf("release submission of payment %s: %w", id, err)
	}

	return nil
}

func (r *paymentRepository) MarkPending(ctx context.Context, id uuid.UUID, checkoutID string, amount int64, now time.Time) (bool, error) {
	query := `
		UPDATE payments
		SET status = 'PENDING', checkout_id = $2, amount = $3, updated_at = $4
		WHERE id = $1 AND status = 'NOT_PAID'
	`

	result, err := r.db.Exec(ctx, query, id, checkoutID, amount, now)
	if err != nil {
		r.log.Error("Failed to mark payment pending",
			zap.Error(err),
			zap.String("payment_id", id.String()),
			zap.String("checkout_id", checkoutID),
		)
		return false, fmt.Errorf("mark payment %s pending: %w", id, err)
	}

	return result.RowsAffected() == 1, nil
}

func (r *paymentRepository) Settle(ctx context.Context, id uuid.UUID, outcome Settlement, now time.Time) (bool, error) {
	if !entity.PaymentStatusPending.CanTransition(outcome.Status) {
		return false, fmt.Errorf("payment %s: cannot settle as %s", id, outcome.Status)
	}

	query := `
		UPDATE payments
		SET status = $2, receipt_number = $3, result_desc = $4, updated_at = $5
		WHERE id = $1 AND status = 'PENDING'
	`

	result, err := r.db.Exec(ctx, query, id, outcome.Status, outcome.ReceiptNumber, outcome.ResultDesc, now)
	if err != nil {
		r.log.Error("Failed to settle payment",
			zap.Error(err),
			zap.String("payment_id", id.String()),
			zap.String("status", string(outcome.Status)),
		)
		return false, fmt.Errorf("settle payment %s as %s: %w", id, outcome.Status, err)
	}

	return result.RowsAffected() == 1, nil
}

// staleCondition matches a payment the sweep may fail, given cutoff as $2.
const staleCondition = `
	((status = 'PENDING' AND updated_at < $2) OR
	 (status = 'NOT_PAID' AND submitted_at < $2))`

func (r *paymentRepository) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*entity.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE ` + staleCondition + `
		ORDER BY updated_at
		LIMIT $1
	`
	return r.list(ctx, query, limit, cutoff)
}

const (
	sweepResultDesc      = "no callback received before the grace period elapsed"
	unrecordedResultDesc = "push submitted but its checkout id was never recorded"
)

func (r *paymentRepository) ExpireStale(ctx context.Context, id uuid.UUID, cutoff, now time.Time) (ExpireResult, error) {
	var result ExpireResult

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return result, fmt.Errorf("begin expire payment %s: %w", id, err)
	}
	defer tx.Rollback(ctx)

	var createdAt time.Time
	err = tx.QueryRow(ctx, `
		UPDATE payments
		SET status = 'FAILED',
		    result_desc = CASE WHEN checkout_id IS NULL THEN $5 ELSE $3 END,
		    updated_at = $4
		WHERE id = $1 AND `+staleCondition+`
		RETURNING reservation_id, created_at, checkout_id IS NULL
	`, id, cutoff, sweepResultDesc, now, unrecordedResultDesc).Scan(&result.ReservationID, &createdAt, &result.Unrecorded)
	if errors.Is(err, pgx.ErrNoRows) {
		// settled or refreshed since it was listed
		return result, nil
	}
	if err != nil {
		r.log.Error("Failed to expire payment", zap.Error(err), zap.String("payment_id", id.String()))
		return result, fmt.Errorf("expire payment %s: %w", id, err)
	}
	result.Expired = true

	var newer bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM payments
			WHERE reservation_id = $1 AND id <> $2 AND status <> 'FAILED' AND created_at >= $3
		)
	`, result.ReservationID, id, createdAt).Scan(&newer)
	if err != nil {
		return ExpireResult{}, fmt.Errorf("check newer payments for reservation %s: %w", result.ReservationID, err)
	}

	if !newer {
		tag, err := tx.Exec(ctx, `
			UPDATE reservations SET status = 'CANCELLED', updated_at = $2
			WHERE id = $1 AND status = 'PENDING'
		`, result.ReservationID, now)
		if err != nil {
			return ExpireResult{}, fmt.Errorf("release reservation %s: %w", result.ReservationID, err)
		}
		result.Released = tag.RowsAffected() == 1
	}

	if err := tx.Commit(ctx); err != nil {
		return ExpireResult{}, fmt.Errorf("commit expire payment %s: %w", id, err)
	}

	return result, nil
}
