package entity

import (
	"fmt"

	"github.com/google/uuid"
)

type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "PENDING"
	ReservationStatusConfirmed ReservationStatus = "CONFIRMED"
	ReservationStatusCancelled ReservationStatus = "CANCELLED"
)

// reservationTransitions lists every legal move. CONFIRMED -> CANCELLED is
// the admin override; callers enforce who may take it.
var reservationTransitions = map[ReservationStatus][]ReservationStatus{
	ReservationStatusPending:   {ReservationStatusConfirmed, ReservationStatusCancelled},
	ReservationStatusConfirmed: {ReservationStatusCancelled},
	ReservationStatusCancelled: nil,
}

func ParseReservationStatus(s string) (ReservationStatus, error) {
	status := ReservationStatus(s)
	if _, ok := reservationTransitions[status]; !ok {
		return "", fmt.Errorf("unknown reservation status %q", s)
	}
	return status, nil
}

// Active reports whether the status blocks new reservations on the same room.
func (s ReservationStatus) Active() bool {
	return s == ReservationStatusPending || s == ReservationStatusConfirmed
}

func (s ReservationStatus) Terminal() bool {
	return len(reservationTransitions[s]) == 0
}

func (s ReservationStatus) CanTransition(to ReservationStatus) bool {
	for _, next := range reservationTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// ActiveReservationStatuses is the set the per-room uniqueness rule covers.
var ActiveReservationStatuses = []ReservationStatus{ReservationStatusPending, ReservationStatusConfirmed}

type ContactInfo struct {
	FullName      string  `db:"full_name"`
	Phone         string  `db:"phone"`
	StudentNumber *string `db:"student_number"`
}

type Reservation struct {
	Base
	RoomID      uuid.UUID         `db:"room_id"`
	RequesterID uuid.UUID         `db:"requester_id"`
	Contact     ContactInfo       `db:"-"`
	Status      ReservationStatus `db:"status"`
}

// ShortRef is the human-facing reference sent to the gateway as the account reference.
func (r *Reservation) ShortRef() string {
	return "Booking" + r.ID.String()[:8]
}
