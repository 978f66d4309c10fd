package request

type InitiatePaymentRequest struct {
	Amount int64  `json:"amount" validate:"required,min=1"`
	Method string `json:"method" validate:"required,oneof=MPESA"`
	// Phone overrides the reservation's contact phone for the push prompt.
	Phone *string `json:"phone,omitempty" validate:"omitempty,phone"`
}
