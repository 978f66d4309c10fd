package entity

import "github.com/google/uuid"

// Capability is what the identity service says an actor may do.
type Capability string

const (
	CapabilityStudent  Capability = "student"
	CapabilityLandlord Capability = "landlord"
	CapabilityAdmin    Capability = "admin"
)

func (c Capability) Valid() bool {
	switch c {
	case CapabilityStudent, CapabilityLandlord, CapabilityAdmin:
		return true
	}
	return false
}

// Profile is the identity collaborator's view of a user.
type Profile struct {
	UserID     uuid.UUID  `db:"user_id"`
	Username   string     `db:"username"`
	Phone      *string    `db:"phone"`
	Capability Capability `db:"role"`
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID         uuid.UUID
	Capability Capability
}

func (a Actor) IsAdmin() bool   { return a.Capability == CapabilityAdmin }
func (a Actor) IsStudent() bool { return a.Capability == CapabilityStudent }
