package usecase

import (
	"context"
	"fmt"
	"time"

	"hostel-booking/internal/data/entity"
	"hostel-booking/internal/data/repository"
	"hostel-booking/internal/gateway"
	"hostel-booking/pkg/metrics"
	"hostel-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service struct {
	Reservation ReservationService
	Payment     PaymentService
}

func NewService(
	repo *repository.Repository,
	gw gateway.Client,
	config *utils.Config,
	m *metrics.Metrics,
	log *zap.Logger,
) *Service {
	reservation := NewReservationService(repo, m, log)
	return &Service{
		Reservation: reservation,
		Payment:     NewPaymentService(repo, reservation, gw, config.Payment, m, log),
	}
}

// Every service reads the clock through this so tests can move time.
type clock func() time.Time

func parseID(kind, id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s ID format %q", ErrValidation, kind, id)
	}
	return parsed, nil
}

// accessLevel says how an actor relates to a reservation.
type accessLevel int

const (
	accessNone accessLevel = iota
	accessOwner
	accessLandlord
	accessAdmin
)

// access resolves the actor's relation to the reservation. Admins win over
// the other relations, ownership over landlordship.
func access(ctx context.Context, rooms repository.RoomRepository, actor entity.Actor, res *entity.Reservation) (accessLevel, error) {
	if actor.IsAdmin() {
		return accessAdmin, nil
	}
	if actor.ID == res.RequesterID {
		return accessOwner, nil
	}
	if actor.Capability != entity.CapabilityLandlord {
		return accessNone, nil
	}

	landlord, err := rooms.LandlordOf(ctx, res.RoomID)
	if err != nil {
		return accessNone, fmt.Errorf("resolve landlord of room %s: %w", res.RoomID, err)
	}
	if landlord == actor.ID {
		return accessLandlord, nil
	}
	return accessNone, nil
}

// loadReadable returns the reservation if the actor may see it.
func loadReadable(ctx context.Context, repo *repository.Repository, actor entity.Actor, id string) (*entity.Reservation, accessLevel, error) {
	resID, err := parseID("reservation", id)
	if err != nil {
		return nil, accessNone, err
	}

	res, err := repo.Reservation.FindByID(ctx, resID)
	if err != nil {
		return nil, accessNone, fmt.Errorf("get reservation: %w", err)
	}
	if res == nil {
		return nil, accessNone, fmt.Errorf("reservation %s: %w", id, ErrNotFound)
	}

	level, err := access(ctx, repo.Room, actor, res)
	if err != nil {
		return nil, accessNone, err
	}
	if level == accessNone {
		return nil, accessNone, fmt.Errorf("reservation %s: %w", id, ErrForbidden)
	}

	return res, level, nil
}
