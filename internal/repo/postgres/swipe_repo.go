package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrSwipeNotFound = errors.New("swipe not found")

// SwipeRepo stores swipe intents. At most one row exists per ordered
// (actor, target) pair; a later swipe overwrites the disposition but keeps
// the row identity.
type SwipeRepo struct {
	pool *pgxpool.Pool
}

func NewSwipeRepo(pool *pgxpool.Pool) *SwipeRepo {
	return &SwipeRepo{pool: pool}
}

type SwipeRecord struct {
	ID           int64
	ActorUserID  int64
	TargetUserID int64
	Disposition  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (r *SwipeRepo) Find(ctx context.Context, actorUserID, targetUserID int64) (SwipeRecord, error) {
	if actorUserID <= 0 || targetUserID <= 0 {
		return SwipeRecord{}, fmt.Errorf("invalid swipe lookup payload")
	}
	if r.pool == nil {
		return SwipeRecord{}, fmt.Errorf("postgres pool is nil")
	}

	var rec SwipeRecord
	err := r.pool.QueryRow(ctx, `
SELECT id, actor_user_id, target_user_id, disposition, created_at, updated_at
FROM swipes
WHERE actor_user_id = $1 AND target_user_id = $2
`, actorUserID, targetUserID).Scan(
		&rec.ID,
		&rec.ActorUserID,
		&rec.TargetUserID,
		&rec.Disposition,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SwipeRecord{}, ErrSwipeNotFound
		}
		return SwipeRecord{}, fmt.Errorf("find swipe: %w", err)
	}

	return rec, nil
}

func (r *SwipeRepo) Upsert(ctx context.Context, actorUserID, targetUserID int64, disposition string, now time.Time) (SwipeRecord, error) {
	if actorUserID <= 0 || targetUserID <= 0 || strings.TrimSpace(disposition) == "" {
		return SwipeRecord{}, fmt.Errorf("invalid swipe payload")
	}
	if r.pool == nil {
		return SwipeRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var rec SwipeRecord
	err := r.pool.QueryRow(ctx, `
INSERT INTO swipes (
	actor_user_id,
	target_user_id,
	disposition,
	created_at,
	updated_at
) VALUES ($1, $2, $3, $4, $4)
ON CONFLICT (actor_user_id, target_user_id) DO UPDATE SET
	disposition = EXCLUDED.disposition,
	updated_at = EXCLUDED.updated_at
RETURNING id, actor_user_id, target_user_id, disposition, created_at, updated_at
`, actorUserID, targetUserID, strings.ToUpper(strings.TrimSpace(disposition)), now.UTC()).Scan(
		&rec.ID,
		&rec.ActorUserID,
		&rec.TargetUserID,
		&rec.Disposition,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return SwipeRecord{}, fmt.Errorf("upsert swipe: %w", err)
	}

	return rec, nil
}
