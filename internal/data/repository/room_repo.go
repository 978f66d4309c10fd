package repository

import (
	"context"
	"errors"
	"fmt"

	"hostel-booking/internal/data/entity"
	"hostel-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// RoomRepository is the read side of the listing service.
type RoomRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Room, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	LandlordOf(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

type roomRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewRoomRepository(db database.PgxIface, log *zap.Logger) RoomRepository {
	return &roomRepository{
		db:  db,
		log: log.With(zap.String("repository", "room")),
	}
}

func (r *roomRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Room, error) {
	query := `
		SELECT rm.id, rm.apartment_id, a.landlord_id, rm.label, rm.room_type
		FROM rooms rm
		INNER JOIN apartments a ON a.id = rm.apartment_id
		WHERE rm.id = $1
	`

	var room entity.Room
	err := r.db.QueryRow(ctx, query, id).Scan(
		&room.ID,
		&room.ApartmentID,
		&room.LandlordID,
		&room.Label,
		&room.RoomType,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find room by ID",
			zap.Error(err),
			zap.String("room_id", id.String()),
		)
		return nil, fmt.Errorf("find room by ID %s: %w", id, err)
	}

	return &room, nil
}

func (r *roomRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM rooms WHERE id = $1)`, id).Scan(&exists); err != nil {
		r.log.Error("Failed to check room", zap.Error(err), zap.String("room_id", id.String()))
		return false, fmt.Errorf("check room %s: %w", id, err)
	}
	return exists, nil
}

func (r *roomRepository) LandlordOf(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	room, err := r.FindByID(ctx, id)
	if err != nil {
		return uuid.Nil, err
	}
	if room == nil {
		return uuid.Nil, fmt.Errorf("room %s not found", id)
	}
	return room.LandlordID, nil
}
