package usecase

import "errors"

// Error kinds surfaced to callers. Handlers match them with errors.Is.
var (
	// reservation
	ErrRoomUnavailable   = errors.New("room already has an active reservation")
	ErrNotAStudent       = errors.New("only students can reserve rooms")
	ErrForbidden         = errors.New("not allowed to act on this reservation")
	ErrAlreadyTerminal   = errors.New("reservation is already cancelled")
	ErrInvalidTransition = errors.New("invalid reservation status transition")

	// payment
	ErrReservationNotPending    = errors.New("reservation is not pending")
	ErrPaymentAlreadyInFlight   = errors.New("a payment for this reservation is already in flight")
	ErrPaymentAttemptsExhausted = errors.New("payment attempts exhausted for this reservation")
	ErrGatewayUnavailable       = errors.New("payment gateway unavailable")
	ErrGatewayRejected          = errors.New("payment gateway rejected the request")

	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
)
