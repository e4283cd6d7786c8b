package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrMatchNotFound = errors.New("match not found")

const uniqueViolationCode = "23505"

// MatchRepo stores matches with the numerically smaller user id first, so
// one unordered pair can never produce two active rows. A partial unique
// index on (user_low_id, user_high_id) WHERE active backs the guarantee.
type MatchRepo struct {
	pool *pgxpool.Pool
}

func NewMatchRepo(pool *pgxpool.Pool) *MatchRepo {
	return &MatchRepo{pool: pool}
}

type MatchRecord struct {
	ID         int64
	UserLowID  int64
	UserHighID int64
	Active     bool
	CreatedAt  time.Time
}

func (r *MatchRepo) FindByID(ctx context.Context, matchID int64) (MatchRecord, error) {
	if matchID <= 0 {
		return MatchRecord{}, fmt.Errorf("invalid match id")
	}
	if r.pool == nil {
		return MatchRecord{}, fmt.Errorf("postgres pool is nil")
	}

	var rec MatchRecord
	err := r.pool.QueryRow(ctx, `
SELECT id, user_low_id, user_high_id, active, created_at
FROM matches
WHERE id = $1
`, matchID).Scan(&rec.ID, &rec.UserLowID, &rec.UserHighID, &rec.Active, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MatchRecord{}, ErrMatchNotFound
		}
		return MatchRecord{}, fmt.Errorf("find match by id: %w", err)
	}

	return rec, nil
}

func (r *MatchRepo) FindActive(ctx context.Context, userLowID, userHighID int64) (MatchRecord, error) {
	if userLowID <= 0 || userHighID <= 0 || userLowID >= userHighID {
		return MatchRecord{}, fmt.Errorf("invalid canonical pair (%d, %d)", userLowID, userHighID)
	}
	if r.pool == nil {
		return MatchRecord{}, fmt.Errorf("postgres pool is nil")
	}

	var rec MatchRecord
	err := r.pool.QueryRow(ctx, `
SELECT id, user_low_id, user_high_id, active, created_at
FROM matches
WHERE user_low_id = $1 AND user_high_id = $2 AND active
`, userLowID, userHighID).Scan(&rec.ID, &rec.UserLowID, &rec.UserHighID, &rec.Active, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MatchRecord{}, ErrMatchNotFound
		}
		return MatchRecord{}, fmt.Errorf("find active match: %w", err)
	}

	return rec, nil
}

// Create inserts an active match for the canonical pair. When a concurrent
// writer beat us to it the insert is a no-op and the existing row is
// returned with created=false; a unique violation raced through a different
// path is treated the same way, never as an error.
func (r *MatchRepo) Create(ctx context.Context, userLowID, userHighID int64, now time.Time) (MatchRecord, bool, error) {
	if userLowID <= 0 || userHighID <= 0 || userLowID >= userHighID {
		return MatchRecord{}, false, fmt.Errorf("invalid canonical pair (%d, %d)", userLowID, userHighID)
	}
	if r.pool == nil {
		return MatchRecord{}, false, fmt.Errorf("postgres pool is nil")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var rec MatchRecord
	err := r.pool.QueryRow(ctx, `
INSERT INTO matches (
	user_low_id,
	user_high_id,
	active,
	created_at
) VALUES ($1, $2, TRUE, $3)
ON CONFLICT (user_low_id, user_high_id) WHERE active DO NOTHING
RETURNING id, user_low_id, user_high_id, active, created_at
`, userLowID, userHighID, now.UTC()).Scan(&rec.ID, &rec.UserLowID, &rec.UserHighID, &rec.Active, &rec.CreatedAt)
	if err == nil {
		return rec, true, nil
	}

	if !errors.Is(err, pgx.ErrNoRows) && !isUniqueViolation(err) {
		return MatchRecord{}, false, fmt.Errorf("create match: %w", err)
	}

	existing, err := r.FindActive(ctx, userLowID, userHighID)
	if err != nil {
		return MatchRecord{}, false, fmt.Errorf("lookup match after conflict: %w", err)
	}

	return existing, false, nil
}

func (r *MatchRepo) Deactivate(ctx context.Context, matchID int64) error {
	if matchID <= 0 {
		return fmt.Errorf("invalid match id")
	}
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	result, err := r.pool.Exec(ctx, `
UPDATE matches
SET active = FALSE
WHERE id = $1 AND active
`, matchID)
	if err != nil {
		return fmt.Errorf("deactivate match: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrMatchNotFound
	}

	return nil
}

func (r *MatchRepo) IsMember(ctx context.Context, matchID, userID int64) (bool, error) {
	if matchID <= 0 || userID <= 0 {
		return false, fmt.Errorf("invalid membership payload")
	}
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}

	var one int
	err := r.pool.QueryRow(ctx, `
SELECT 1
FROM matches
WHERE id = $1 AND (user_low_id = $2 OR user_high_id = $2)
`, matchID, userID).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check match membership: %w", err)
	}

	return true, nil
}

func (r *MatchRepo) ListActiveForUser(ctx context.Context, userID int64, limit int) ([]MatchRecord, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("invalid user id")
	}
	if limit <= 0 {
		limit = 100
	}
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, user_low_id, user_high_id, active, created_at
FROM matches
WHERE (user_low_id = $1 OR user_high_id = $1) AND active
ORDER BY created_at DESC, id DESC
LIMIT $2
`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list active matches: %w", err)
	}
	defer rows.Close()

	items := make([]MatchRecord, 0, limit)
	for rows.Next() {
		var rec MatchRecord
		if err := rows.Scan(&rec.ID, &rec.UserLowID, &rec.UserHighID, &rec.Active, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		items = append(items, rec)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate matches: %w", rows.Err())
	}

	return items, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}
