package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrNoCoordinates = errors.New("user has no coordinates")
)

// UserRepo reads the slice of the users table this subsystem needs:
// existence and stored coordinates. Everything else about users belongs to
// the profile CRUD layer.
type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

type CoordinatesRecord struct {
	Lat float64
	Lon float64
}

func (r *UserRepo) Exists(ctx context.Context, userID int64) (bool, error) {
	if userID <= 0 {
		return false, fmt.Errorf("invalid user id")
	}
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}

	var one int
	err := r.pool.QueryRow(ctx, `
SELECT 1
FROM users
WHERE id = $1
`, userID).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check user exists: %w", err)
	}

	return true, nil
}

func (r *UserRepo) FindCoordinates(ctx context.Context, userID int64) (CoordinatesRecord, error) {
	if userID <= 0 {
		return CoordinatesRecord{}, fmt.Errorf("invalid user id")
	}
	if r.pool == nil {
		return CoordinatesRecord{}, fmt.Errorf("postgres pool is nil")
	}

	var lat, lon *float64
	err := r.pool.QueryRow(ctx, `
SELECT latitude, longitude
FROM users
WHERE id = $1
`, userID).Scan(&lat, &lon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CoordinatesRecord{}, ErrUserNotFound
		}
		return CoordinatesRecord{}, fmt.Errorf("find user coordinates: %w", err)
	}

	if lat == nil || lon == nil {
		return CoordinatesRecord{}, ErrNoCoordinates
	}

	return CoordinatesRecord{Lat: *lat, Lon: *lon}, nil
}
