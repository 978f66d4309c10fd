package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hostel-booking/internal/data/entity"
	"hostel-booking/internal/data/repository"
	"hostel-booking/internal/dto/request"
	"hostel-booking/internal/dto/response"
	"hostel-booking/pkg/metrics"
	"hostel-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ReservationService interface {
	Create(ctx context.Context, actor entity.Actor, req *request.CreateReservationRequest) (*response.ReservationResponse, error)
	Cancel(ctx context.Context, actor entity.Actor, reservationID string) (*response.ReservationResponse, error)
	Get(ctx context.Context, actor entity.Actor, reservationID string) (*response.ReservationResponse, error)
	List(ctx context.Context, actor entity.Actor, req *request.ListReservationsRequest) (*response.PaginatedResponse[response.ReservationResponse], error)
	Availability(ctx context.Context, roomID string) (*response.AvailabilityResponse, error)

	// Confirm is driven by payment reconciliation only. Confirming an already
	// CONFIRMED reservation is a no-op.
	Confirm(ctx context.Context, reservationID uuid.UUID) error
}

type reservationService struct {
	repo    *repository.Repository
	metrics *metrics.Metrics
	log     *zap.Logger
	now     clock
}

func NewReservationService(repo *repository.Repository, m *metrics.Metrics, log *zap.Logger) ReservationService {
	return &reservationService{
		repo:    repo,
		metrics: m,
		log:     log.With(zap.String("service", "reservation")),
		now:     time.Now,
	}
}

func (s *reservationService) Create(ctx context.Context, actor entity.Actor, req *request.CreateReservationRequest) (*response.ReservationResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Create reservation validation failed", zap.Any("errors", errs))
		return nil, fmt.Errorf("%w: %s", ErrValidation, utils.FormatValidationErrors(errs))
	}

	if !actor.IsStudent() {
		s.log.Warn("Non-student attempted a reservation",
			zap.String("actor_id", actor.ID.String()),
			zap.String("capability", string(actor.Capability)),
		)
		return nil, ErrNotAStudent
	}

	roomID, err := parseID("room", req.RoomID)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.Room.Exists(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("check room: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("room %s: %w", req.RoomID, ErrNotFound)
	}

	now := s.now()
	reservation := &entity.Reservation{
		Base:        entity.NewBase(now),
		RoomID:      roomID,
		RequesterID: actor.ID,
		Contact: entity.ContactInfo{
			FullName:      req.FullName,
			Phone:         req.Phone,
			StudentNumber: req.StudentNumber,
		},
		Status: entity.ReservationStatusPending,
	}

	// The store decides concurrent claims on the same room; no pre-check.
	if err := s.repo.Reservation.Create(ctx, reservation); err != nil {
		if errors.Is(err, repository.ErrRoomTaken) {
			s.metrics.Reservations.WithLabelValues("conflict").Inc()
			s.log.Info("Room already claimed",
				zap.String("room_id", req.RoomID),
				zap.String("requester_id", actor.ID.String()),
			)
			return nil, ErrRoomUnavailable
		}
		return nil, fmt.Errorf("create reservation: %w", err)
	}

	s.metrics.Reservations.WithLabelValues("created").Inc()
	s.log.Info("Reservation created",
		zap.String("reservation_id", reservation.ID.String()),
		zap.String("room_id", req.RoomID),
		zap.String("requester_id", actor.ID.String()),
	)

	return response.NewReservationResponse(reservation), nil
}

func (s *reservationService) Cancel(ctx context.Context, actor entity.Actor, reservationID string) (*response.ReservationResponse, error) {
	reservation, level, err := loadReadable(ctx, s.repo, actor, reservationID)
	if err != nil {
		return nil, err
	}

	// A concurrent transition can win between the read and the update; one
	// reload settles it since every path out ends in a terminal answer.
	for attempt := 0; attempt < 2; attempt++ {
		switch reservation.Status {
		case entity.ReservationStatusCancelled:
			return nil, ErrAlreadyTerminal
		case entity.ReservationStatusConfirmed:
			if level != accessAdmin {
				s.log.Warn("Non-admin attempted to cancel a confirmed reservation",
					zap.String("reservation_id", reservationID),
					zap.String("actor_id", actor.ID.String()),
				)
				return nil, fmt.Errorf("cancel confirmed reservation: %w", ErrForbidden)
			}
		}

		now := s.now()
		changed, err := s.repo.Reservation.UpdateStatus(ctx, reservation.ID, reservation.Status, entity.ReservationStatusCancelled, now)
		if err != nil {
			return nil, fmt.Errorf("cancel reservation: %w", err)
		}
		if changed {
			s.metrics.Reservations.WithLabelValues("cancelled").Inc()
			s.log.Info("Reservation cancelled",
				zap.String("reservation_id", reservationID),
				zap.String("from", string(reservation.Status)),
				zap.String("actor_id", actor.ID.String()),
			)
			reservation.Status = entity.ReservationStatusCancelled
			reservation.UpdatedAt = now
			return response.NewReservationResponse(reservation), nil
		}

		reservation, err = s.repo.Reservation.FindByID(ctx, reservation.ID)
		if err != nil {
			return nil, fmt.Errorf("reload reservation: %w", err)
		}
		if reservation == nil {
			return nil, fmt.Errorf("reservation %s: %w", reservationID, ErrNotFound)
		}
	}

	return nil, fmt.Errorf("cancel reservation %s: status kept changing", reservationID)
}

func (s *reservationService) Confirm(ctx context.Context, reservationID uuid.UUID) error {
	changed, err := s.repo.Reservation.UpdateStatus(ctx, reservationID,
		entity.ReservationStatusPending, entity.ReservationStatusConfirmed, s.now())
	if err != nil {
		return fmt.Errorf("confirm reservation: %w", err)
	}
	if changed {
		s.metrics.Reservations.WithLabelValues("confirmed").Inc()
		s.log.Info("Reservation confirmed", zap.String("reservation_id", reservationID.String()))
		return nil
	}

	reservation, err := s.repo.Reservation.FindByID(ctx, reservationID)
	if err != nil {
		return fmt.Errorf("reload reservation: %w", err)
	}
	if reservation == nil {
		return fmt.Errorf("reservation %s: %w", reservationID, ErrNotFound)
	}

	switch reservation.Status {
	case entity.ReservationStatusConfirmed:
		return nil
	case entity.ReservationStatusCancelled:
		return fmt.Errorf("confirm reservation %s: %w", reservationID, ErrInvalidTransition)
	default:
		// PENDING again would mean the row changed under us and changed back,
		// which no transition allows.
		return fmt.Errorf("confirm reservation %s: unexpected status %s", reservationID, reservation.Status)
	}
}

func (s *reservationService) Get(ctx context.Context, actor entity.Actor, reservationID string) (*response.ReservationResponse, error) {
	reservation, _, err := loadReadable(ctx, s.repo, actor, reservationID)
	if err != nil {
		return nil, err
	}
	return response.NewReservationResponse(reservation), nil
}

func (s *reservationService) List(ctx context.Context, actor entity.Actor, req *request.ListReservationsRequest) (*response.PaginatedResponse[response.ReservationResponse], error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrValidation, utils.FormatValidationErrors(errs))
	}

	var filter repository.ReservationFilter
	switch actor.Capability {
	case entity.CapabilityAdmin:
	case entity.CapabilityLandlord:
		filter.LandlordID = &actor.ID
	default:
		filter.RequesterID = &actor.ID
	}
	if req.Status != "" {
		status, err := entity.ParseReservationStatus(req.Status)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		filter.Status = &status
	}

	reservations, err := s.repo.Reservation.List(ctx, filter, req.Limit(), req.Offset())
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}

	total, err := s.repo.Reservation.Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count reservations: %w", err)
	}

	items := make([]response.ReservationResponse, len(reservations))
	for i, r := range reservations {
		items[i] = *response.NewReservationResponse(r)
	}

	return response.NewPaginatedResponse(items, req.PaginatedRequest, total), nil
}

func (s *reservationService) Availability(ctx context.Context, roomID string) (*response.AvailabilityResponse, error) {
	id, err := parseID("room", roomID)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.Room.Exists(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("check room: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("room %s: %w", roomID, ErrNotFound)
	}

	active, err := s.repo.Reservation.FindActiveByRoom(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find active reservation: %w", err)
	}

	out := &response.AvailabilityResponse{RoomID: id.String(), Available: active == nil}
	if active != nil {
		resID := active.ID.String()
		status := string(active.Status)
		out.ReservationID = &resID
		out.Status = &status
	}
	return out, nil
}
