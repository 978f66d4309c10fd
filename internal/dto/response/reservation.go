package response

import (
	"time"

	"hostel-booking/internal/data/entity"
)

type ReservationResponse struct {
	ID            string    `json:"id"`
	RoomID        string    `json:"room_id"`
	RequesterID   string    `json:"requester_id"`
	FullName      string    `json:"full_name"`
	Phone         string    `json:"phone"`
	StudentNumber *string   `json:"student_number,omitempty"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func NewReservationResponse(r *entity.Reservation) *ReservationResponse {
	return &ReservationResponse{
		ID:            r.ID.String(),
		RoomID:        r.RoomID.String(),
		RequesterID:   r.RequesterID.String(),
		FullName:      r.Contact.FullName,
		Phone:         r.Contact.Phone,
		StudentNumber: r.Contact.StudentNumber,
		Status:        string(r.Status),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

// AvailabilityResponse is derived from the room's active reservation, if any.
type AvailabilityResponse struct {
	RoomID        string  `json:"room_id"`
	Available     bool    `json:"available"`
	ReservationID *string `json:"reservation_id,omitempty"`
	Status        *string `json:"status,omitempty"`
}
