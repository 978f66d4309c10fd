package repository

import (
	"errors"

	"hostel-booking/pkg/database"

	"go.uber.org/zap"
)

var (
	// ErrRoomTaken is returned when an insert would give a room a second active reservation.
	ErrRoomTaken = errors.New("room already has an active reservation")
	// ErrLivePaymentExists is returned when a reservation already has a non-failed payment.
	ErrLivePaymentExists = errors.New("reservation already has a live payment")
)

type Repository struct {
	Reservation ReservationRepository
	Payment     PaymentRepository
	Room        RoomRepository
	Profile     ProfileRepository
	Session     SessionRepository
}

func NewRepository(db database.PgxIface, log *zap.Logger) *Repository {
	return &Repository{
		Reservation: NewReservationRepository(db, log),
		Payment:     NewPaymentRepository(db, log),
		Room:        NewRoomRepository(db, log),
		Profile:     NewProfileRepository(db, log),
		Session:     NewSessionRepository(db, log),
	}
}
