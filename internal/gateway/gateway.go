package gateway

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable covers network failures, 5xx answers and token failures.
	// Nothing was accepted by the gateway, so the caller may retry.
	ErrUnavailable = errors.New("payment gateway unavailable")
	// ErrRejected means the gateway answered and refused the request.
	ErrRejected = errors.New("payment gateway rejected request")
)

// PushRequest asks the payer's phone to approve a payment.
type PushRequest struct {
	Amount           int64
	Phone            string
	AccountReference string
	Description      string
}

// PushResult is the gateway's acceptance of a push request. CheckoutID ties
// the later callback to the payment.
type PushResult struct {
	CheckoutID        string
	MerchantRequestID string
	CustomerMessage   string
}

// Client is what the payment engine needs from a push-pay gateway.
type Client interface {
	Push(ctx context.Context, req PushRequest) (*PushResult, error)
}
