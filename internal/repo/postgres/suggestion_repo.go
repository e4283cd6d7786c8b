package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrSuggestionNotFound = errors.New("suggestion not found")

// SuggestionRepo stores suggested meeting points. Rows are unique per
// (match_id, external_id), so re-running a suggestion pipeline only inserts
// what is missing. Rows are owned by their match and removed with it
// (ON DELETE CASCADE on the schema side).
type SuggestionRepo struct {
	pool *pgxpool.Pool
}

func NewSuggestionRepo(pool *pgxpool.Pool) *SuggestionRepo {
	return &SuggestionRepo{pool: pool}
}

type SuggestionRecord struct {
	ID              int64
	MatchID         int64
	ExternalID      string
	SourceKind      string
	Latitude        float64
	Longitude       float64
	DistanceUserAKm float64
	DistanceUserBKm float64
	TotalDistanceKm float64
	FairnessGapKm   float64
	Score           float64
	Tags            map[string]string
	SuggestedAt     time.Time
	Accepted        bool
	AcceptedAt      *time.Time
}

func (r *SuggestionRepo) Find(ctx context.Context, matchID int64, externalID string) (SuggestionRecord, error) {
	if matchID <= 0 || externalID == "" {
		return SuggestionRecord{}, fmt.Errorf("invalid suggestion lookup payload")
	}
	if r.pool == nil {
		return SuggestionRecord{}, fmt.Errorf("postgres pool is nil")
	}

	var rec SuggestionRecord
	err := r.pool.QueryRow(ctx, `
SELECT id, match_id, external_id, source_kind, latitude, longitude,
	distance_user_a_km, distance_user_b_km, total_distance_km,
	fairness_gap_km, score, tags, suggested_at, accepted, accepted_at
FROM meeting_points
WHERE match_id = $1 AND external_id = $2
`, matchID, externalID).Scan(
		&rec.ID, &rec.MatchID, &rec.ExternalID, &rec.SourceKind,
		&rec.Latitude, &rec.Longitude,
		&rec.DistanceUserAKm, &rec.DistanceUserBKm, &rec.TotalDistanceKm,
		&rec.FairnessGapKm, &rec.Score, &rec.Tags,
		&rec.SuggestedAt, &rec.Accepted, &rec.AcceptedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SuggestionRecord{}, ErrSuggestionNotFound
		}
		return SuggestionRecord{}, fmt.Errorf("find suggestion: %w", err)
	}

	return rec, nil
}

// InsertMissing persists the given suggestions in one short transaction,
// skipping rows whose (match_id, external_id) key already exists. The
// external map query must complete before this runs; no network call ever
// happens inside the transaction.
func (r *SuggestionRepo) InsertMissing(ctx context.Context, matchID int64, records []SuggestionRecord) error {
	if matchID <= 0 {
		return fmt.Errorf("invalid match id")
	}
	if len(records) == 0 {
		return nil
	}

	return WithTx(ctx, r.pool, func(txCtx context.Context, tx pgx.Tx) error {
		for _, rec := range records {
			if rec.ExternalID == "" {
				return fmt.Errorf("suggestion without external id for match %d", matchID)
			}
			if _, err := tx.Exec(txCtx, `
INSERT INTO meeting_points (
	match_id,
	external_id,
	source_kind,
	latitude,
	longitude,
	distance_user_a_km,
	distance_user_b_km,
	total_distance_km,
	fairness_gap_km,
	score,
	tags,
	suggested_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (match_id, external_id) DO NOTHING
`,
				matchID,
				rec.ExternalID,
				rec.SourceKind,
				rec.Latitude,
				rec.Longitude,
				rec.DistanceUserAKm,
				rec.DistanceUserBKm,
				rec.TotalDistanceKm,
				rec.FairnessGapKm,
				rec.Score,
				rec.Tags,
				rec.SuggestedAt.UTC(),
			); err != nil {
				return fmt.Errorf("insert suggestion %s: %w", rec.ExternalID, err)
			}
		}
		return nil
	})
}

func (r *SuggestionRepo) List(ctx context.Context, matchID int64) ([]SuggestionRecord, error) {
	if matchID <= 0 {
		return nil, fmt.Errorf("invalid match id")
	}
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, match_id, external_id, source_kind, latitude, longitude,
	distance_user_a_km, distance_user_b_km, total_distance_km,
	fairness_gap_km, score, tags, suggested_at, accepted, accepted_at
FROM meeting_points
WHERE match_id = $1
ORDER BY score ASC, id ASC
`, matchID)
	if err != nil {
		return nil, fmt.Errorf("list suggestions: %w", err)
	}
	defer rows.Close()

	items := make([]SuggestionRecord, 0)
	for rows.Next() {
		var rec SuggestionRecord
		if err := rows.Scan(
			&rec.ID, &rec.MatchID, &rec.ExternalID, &rec.SourceKind,
			&rec.Latitude, &rec.Longitude,
			&rec.DistanceUserAKm, &rec.DistanceUserBKm, &rec.TotalDistanceKm,
			&rec.FairnessGapKm, &rec.Score, &rec.Tags,
			&rec.SuggestedAt, &rec.Accepted, &rec.AcceptedAt,
		); err != nil {
			return nil, fmt.Errorf("scan suggestion: %w", err)
		}
		items = append(items, rec)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate suggestions: %w", rows.Err())
	}

	return items, nil
}

var errSuggestionNotOwned = errors.New("suggestion does not belong to match")

// Accept marks one suggestion as the agreed meeting point. Any previously
// accepted row for the match is revoked in the same transaction, keeping at
// most one accepted suggestion per match. Returns false when the suggestion
// does not belong to the match; the revoke is rolled back in that case.
func (r *SuggestionRepo) Accept(ctx context.Context, matchID, suggestionID int64, at time.Time) (bool, error) {
	if matchID <= 0 || suggestionID <= 0 {
		return false, fmt.Errorf("invalid accept payload")
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	err := WithTx(ctx, r.pool, func(txCtx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(txCtx, `
UPDATE meeting_points
SET accepted = FALSE, accepted_at = NULL
WHERE match_id = $1 AND accepted
`, matchID); err != nil {
			return fmt.Errorf("revoke prior acceptance: %w", err)
		}

		result, err := tx.Exec(txCtx, `
UPDATE meeting_points
SET accepted = TRUE, accepted_at = $3
WHERE id = $2 AND match_id = $1
`, matchID, suggestionID, at.UTC())
		if err != nil {
			return fmt.Errorf("mark suggestion accepted: %w", err)
		}
		if result.RowsAffected() == 0 {
			return errSuggestionNotOwned
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errSuggestionNotOwned) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

func (r *SuggestionRepo) FindAccepted(ctx context.Context, matchID int64) (SuggestionRecord, error) {
	if matchID <= 0 {
		return SuggestionRecord{}, fmt.Errorf("invalid match id")
	}
	if r.pool == nil {
		return SuggestionRecord{}, fmt.Errorf("postgres pool is nil")
	}

	var rec SuggestionRecord
	err := r.pool.QueryRow(ctx, `
SELECT id, match_id, external_id, source_kind, latitude, longitude,
	distance_user_a_km, distance_user_b_km, total_distance_km,
	fairness_gap_km, score, tags, suggested_at, accepted, accepted_at
FROM meeting_points
WHERE match_id = $1 AND accepted
`, matchID).Scan(
		&rec.ID, &rec.MatchID, &rec.ExternalID, &rec.SourceKind,
		&rec.Latitude, &rec.Longitude,
		&rec.DistanceUserAKm, &rec.DistanceUserBKm, &rec.TotalDistanceKm,
		&rec.FairnessGapKm, &rec.Score, &rec.Tags,
		&rec.SuggestedAt, &rec.Accepted, &rec.AcceptedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SuggestionRecord{}, ErrSuggestionNotFound
		}
		return SuggestionRecord{}, fmt.Errorf("find accepted suggestion: %w", err)
	}

	return rec, nil
}
