package response

import (
	"time"

	"hostel-booking/internal/data/entity"
)

type PaymentResponse struct {
	ID              string    `json:"id"`
	ReservationID   string    `json:"reservation_id"`
	Amount          int64     `json:"amount"`
	Method          string    `json:"method"`
	CheckoutID      *string   `json:"checkout_id,omitempty"`
	ReceiptNumber   *string   `json:"receipt_number,omitempty"`
	ResultDesc      *string   `json:"result_desc,omitempty"`
	Status          string    `json:"status"`
	CustomerMessage string    `json:"customer_message,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func NewPaymentResponse(p *entity.Payment) *PaymentResponse {
	return &PaymentResponse{
		ID:            p.ID.String(),
		ReservationID: p.ReservationID.String(),
		Amount:        p.Amount,
		Method:        string(p.Method),
		CheckoutID:    p.CheckoutID,
		ReceiptNumber: p.ReceiptNumber,
		ResultDesc:    p.ResultDesc,
		Status:        string(p.Status),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}
