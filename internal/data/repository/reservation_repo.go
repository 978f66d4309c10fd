package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hostel-booking/internal/data/entity"
	"hostel-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type ReservationRepository interface {
	// Create inserts a PENDING reservation. The partial unique index on
	// room_id decides concurrent inserts; the loser gets ErrRoomTaken.
	Create(ctx context.Context, reservation *entity.Reservation) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Reservation, error)
	FindActiveByRoom(ctx context.Context, roomID uuid.UUID) (*entity.Reservation, error)
	List(ctx context.Context, filter ReservationFilter, limit, offset int) ([]*entity.Reservation, error)
	Count(ctx context.Context, filter ReservationFilter) (int64, error)

	// UpdateStatus moves a reservation from one status to another only if it
	// is still in `from`. It reports whether a row changed.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to entity.ReservationStatus, now time.Time) (bool, error)
}

// ReservationFilter scopes listings. Zero value lists everything.
type ReservationFilter struct {
	RequesterID *uuid.UUID
	LandlordID  *uuid.UUID
	Status      *entity.ReservationStatus
}

type reservationRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewReservationRepository(db database.PgxIface, log *zap.Logger) ReservationRepository {
	return &reservationRepository{
		db:  db,
		log: log.With(zap.String("repository", "reservation")),
	}
}

const reservationColumns = `r.id, r.room_id, r.requester_id, r.full_name, r.phone, r.student_number, r.status, r.created_at, r.updated_at`

func scanReservation(row pgx.Row) (*entity.Reservation, error) {
	var res entity.Reservation
	err := row.Scan(
		&res.ID,
		&res.RoomID,
		&res.RequesterID,
		&res.Contact.FullName,
		&res.Contact.Phone,
		&res.Contact.StudentNumber,
		&res.Status,
		&res.CreatedAt,
		&res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *reservationRepository) Create(ctx context.Context, reservation *entity.Reservation) error {
	query := `
		INSERT INTO reservations (id, room_id, requester_id, full_name, phone, student_number, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Exec(ctx, query,
		reservation.ID,
		reservation.RoomID,
		reservation.RequesterID,
		reservation.Contact.FullName,
		reservation.Contact.Phone,
		reservation.Contact.StudentNumber,
		reservation.Status,
		reservation.CreatedAt,
		reservation.UpdatedAt,
	)

	if database.IsUniqueViolation(err, database.ActiveReservationIndex) {
		return ErrRoomTaken
	}
	if err != nil {
		r.log.Error("Failed to create reservation",
			zap.Error(err),
			zap.String("room_id", reservation.RoomID.String()),
			zap.String("requester_id", reservation.RequesterID.String()),
		)
		return fmt.Errorf("create reservation for room %s: %w", reservation.RoomID, err)
	}

	return nil
}

func (r *reservationRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations r WHERE r.id = $1`

	res, err := scanReservation(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find reservation by ID",
			zap.Error(err),
			zap.String("reservation_id", id.String()),
		)
		return nil, fmt.Errorf("find reservation by ID %s: %w", id, err)
	}

	return res, nil
}

func (r *reservationRepository) FindActiveByRoom(ctx context.Context, roomID uuid.UUID) (*entity.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations r
		WHERE r.room_id = $1 AND r.status IN ('PENDING', 'CONFIRMED')
	`

	res, err := scanReservation(r.db.QueryRow(ctx, query, roomID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find active reservation by room",
			zap.Error(err),
			zap.String("room_id", roomID.String()),
		)
		return nil, fmt.Errorf("find active reservation for room %s: %w", roomID, err)
	}

	return res, nil
}

// where builds the shared WHERE clause of List and Count.
func (f ReservationFilter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.RequesterID != nil {
		args = append(args, *f.RequesterID)
		conds = append(conds, fmt.Sprintf("r.requester_id = $%d", len(args)))
	}
	if f.LandlordID != nil {
		args = append(args, *f.LandlordID)
		conds = append(conds, fmt.Sprintf("a.landlord_id = $%d", len(args)))
	}
	if f.Status != nil {
		args = append(args, *f.Status)
		conds = append(conds, fmt.Sprintf("r.status = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

const reservationListFrom = `
	FROM reservations r
	INNER JOIN rooms rm ON rm.id = r.room_id
	INNER JOIN apartments a ON a.id = rm.apartment_id
`

func (r *reservationRepository) List(ctx context.Context, filter ReservationFilter, limit, offset int) ([]*entity.Reservation, error) {
	where, args := filter.where()
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s %s %s ORDER BY r.created_at DESC LIMIT $%d OFFSET $%d`,
		reservationColumns, reservationListFrom, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to list reservations",
			zap.Error(err),
			zap.Int("limit", limit),
			zap.Int("offset", offset),
		)
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	var reservations []*entity.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			r.log.Error("Failed to scan reservation row", zap.Error(err))
			return nil, fmt.Errorf("scan reservation row: %w", err)
		}
		reservations = append(reservations, res)
	}

	return reservations, rows.Err()
}

func (r *reservationRepository) Count(ctx context.Context, filter ReservationFilter) (int64, error) {
	where, args := filter.where()
	query := `SELECT COUNT(*) ` + reservationListFrom + where

	var count int64
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		r.log.Error("Failed to count reservations", zap.Error(err))
		return 0, fmt.Errorf("count reservations: %w", err)
	}

	return count, nil
}

func (r *reservationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to entity.ReservationStatus, now time.Time) (bool, error) {
	if !from.CanTransition(to) {
		return false, fmt.Errorf("reservation %s: illegal transition %s -> %s", id, from, to)
	}

	query := `UPDATE reservations SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`

	result, err := r.db.Exec(ctx, query, id, from, to, now)
	if err != nil {
		r.log.Error("Failed to update reservation status",
			zap.Error(err),
			zap.String("reservation_id", id.String()),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
		)
		return false, fmt.Errorf("update reservation %s status to %s: %w", id, to, err)
	}

	return result.RowsAffected() == 1, nil
}
