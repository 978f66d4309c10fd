package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentStatusNotPaid PaymentStatus = "NOT_PAID"
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPaid    PaymentStatus = "PAID"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

// NOT_PAID -> PENDING -> {PAID | FAILED}. Nothing leaves PAID or FAILED.
// NOT_PAID -> FAILED retires a submission whose checkout id was never
// recorded.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusNotPaid: {PaymentStatusPending, PaymentStatusFailed},
	PaymentStatusPending: {PaymentStatusPaid, PaymentStatusFailed},
	PaymentStatusPaid:    nil,
	PaymentStatusFailed:  nil,
}

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	status := PaymentStatus(s)
	if _, ok := paymentTransitions[status]; !ok {
		return "", fmt.Errorf("unknown payment status %q", s)
	}
	return status, nil
}

func (s PaymentStatus) Terminal() bool {
	return len(paymentTransitions[s]) == 0
}

// Live payments occupy the reservation's single payment slot.
func (s PaymentStatus) Live() bool {
	return s != PaymentStatusFailed
}

func (s PaymentStatus) CanTransition(to PaymentStatus) bool {
	for _, next := range paymentTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodMpesa PaymentMethod = "MPESA"
)

type Payment struct {
	Base
	ReservationID uuid.UUID     `db:"reservation_id"`
	PayerID       uuid.UUID     `db:"payer_id"`
	Amount        int64         `db:"amount"`
	Method        PaymentMethod `db:"method"`
	CheckoutID    *string       `db:"checkout_id"`
	ReceiptNumber *string       `db:"receipt_number"`
	ResultDesc    *string       `db:"result_desc"`
	Status        PaymentStatus `db:"status"`
	// SubmittedAt is set while one caller owns the push for a NOT_PAID row.
	SubmittedAt *time.Time `db:"submitted_at"`
}
