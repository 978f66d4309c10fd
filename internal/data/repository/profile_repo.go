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

// ProfileRepository is the read side of the identity service.
type ProfileRepository interface {
	FindByID(ctx context.Context, userID uuid.UUID) (*entity.Profile, error)
}

type profileRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewProfileRepository(db database.PgxIface, log *zap.Logger) ProfileRepository {
	return &profileRepository{
		db:  db,
		log: log.With(zap.String("repository", "profile")),
	}
}

func (r *profileRepository) FindByID(ctx context.Context, userID uuid.UUID) (*entity.Profile, error) {
	query := `SELECT user_id, username, phone, role FROM profiles WHERE user_id = $1`

	var p entity.Profile
	err := r.db.QueryRow(ctx, query, userID).Scan(&p.UserID, &p.Username, &p.Phone, &p.Capability)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find profile",
			zap.Error(err),
			zap.String("user_id", userID.String()),
		)
		return nil, fmt.Errorf("find profile %s: %w", userID, err)
	}

	return &p, nil
}
