package entity

import "github.com/google/uuid"

// Room is owned by the listing service. It carries no vacancy flag:
// availability is derived from the active reservation on the room.
type Room struct {
	ID          uuid.UUID `db:"id"`
	ApartmentID uuid.UUID `db:"apartment_id"`
	LandlordID  uuid.UUID `db:"landlord_id"`
	Label       string    `db:"label"`
	RoomType    string    `db:"room_type"`
}
