package request

type CreateReservationRequest struct {
	RoomID        string  `json:"room_id" validate:"required,uuid4"`
	FullName      string  `json:"full_name" validate:"required,min=2,max=100"`
	Phone         string  `json:"phone" validate:"required,phone"`
	StudentNumber *string `json:"student_number,omitempty" validate:"omitempty,max=20"`
}

type ListReservationsRequest struct {
	PaginatedRequest
	Status string `json:"status" validate:"omitempty,oneof=PENDING CONFIRMED CANCELLED"`
}
