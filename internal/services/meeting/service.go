package meeting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sani4forever/BenchTalk-API/internal/domain/geo"
	"github.com/sani4forever/BenchTalk-API/internal/infra/overpass"
	pgrepo "github.com/sani4forever/BenchTalk-API/internal/repo/postgres"
)

var (
	ErrValidation         = errors.New("validation error")
	ErrMatchNotFound      = errors.New("match not found")
	ErrSuggestionNotFound = errors.New("suggestion not found")
)

// RateLimitedError is returned when the per-match map-query budget is
// exhausted. RetryAfterSec tells the caller when the window resets.
type RateLimitedError struct {
	RetryAfterSec int64
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("map query rate limit exceeded, retry in %ds", e.RetryAfterSec)
}

type MatchReader interface {
	FindByID(ctx context.Context, matchID int64) (pgrepo.MatchRecord, error)
	IsMember(ctx context.Context, matchID, userID int64) (bool, error)
}

type CoordinatesStore interface {
	FindCoordinates(ctx context.Context, userID int64) (pgrepo.CoordinatesRecord, error)
}

type SuggestionStore interface {
	InsertMissing(ctx context.Context, matchID int64, records []pgrepo.SuggestionRecord) error
	List(ctx context.Context, matchID int64) ([]pgrepo.SuggestionRecord, error)
	Accept(ctx context.Context, matchID, suggestionID int64, at time.Time) (bool, error)
	FindAccepted(ctx context.Context, matchID int64) (pgrepo.SuggestionRecord, error)
}

type POIFinder interface {
	FindPointsOfInterest(ctx context.Context, centerLat, centerLon float64, radiusMeters int) []overpass.Candidate
}

type QueryLimiter interface {
	AllowQuery(ctx context.Context, matchID int64) (int64, bool, error)
}

type Suggestion struct {
	ID              int64
	MatchID         int64
	ExternalID      string
	SourceKind      string
	Lat             float64
	Lon             float64
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

// SearchResult is the outcome of a stateless meeting-point search. The
// SearchID only correlates logs and responses, nothing is persisted.
type SearchResult struct {
	SearchID string
	Points   []RankedCandidate
}

type Service struct {
	matchReader     MatchReader
	coordinateStore CoordinatesStore
	suggestionStore SuggestionStore
	poiFinder       POIFinder
	limiter         QueryLimiter
	defaultLimit    int
	logger          *zap.Logger
	now             func() time.Time
}

type Dependencies struct {
	MatchReader     MatchReader
	CoordinateStore CoordinatesStore
	SuggestionStore SuggestionStore
	POIFinder       POIFinder
	Limiter         QueryLimiter
	DefaultLimit    int
	Logger          *zap.Logger
}

func NewService(deps Dependencies) *Service {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	limit := deps.DefaultLimit
	if limit <= 0 {
		limit = 10
	}

	return &Service{
		matchReader:     deps.MatchReader,
		coordinateStore: deps.CoordinateStore,
		suggestionStore: deps.SuggestionStore,
		poiFinder:       deps.POIFinder,
		limiter:         deps.Limiter,
		defaultLimit:    limit,
		logger:          log,
		now:             time.Now,
	}
}

// Suggest runs the full pipeline for a match with explicit coordinates:
// search zone, map-source fetch, ranking, idempotent persistence. The
// returned list is everything stored for the match ordered by score, so
// repeated calls converge instead of duplicating rows. An empty or
// degraded map-source answer yields an empty list and nil error.
func (s *Service) Suggest(ctx context.Context, matchID int64, latA, lonA, latB, lonB float64, limit int) ([]Suggestion, error) {
	if matchID <= 0 {
		return nil, ErrValidation
	}
	if err := geo.ValidateCoordinates(latA, lonA); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}
	if err := geo.ValidateCoordinates(latB, lonB); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}
	limit = s.normalizeLimit(limit)

	match, err := s.matchReader.FindByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("lookup match: %w", err)
	}

	if s.limiter != nil {
		retryAfter, allowed, err := s.limiter.AllowQuery(ctx, match.ID)
		if err != nil {
			// A broken limiter must not take suggestions down with it.
			s.logger.Warn("map query limiter unavailable", zap.Int64("match_id", match.ID), zap.Error(err))
		} else if !allowed {
			return nil, &RateLimitedError{RetryAfterSec: retryAfter}
		}
	}

	centerLat, centerLon, radius := geo.SearchZone(latA, lonA, latB, lonB)
	candidates := s.poiFinder.FindPointsOfInterest(ctx, centerLat, centerLon, radius)
	if len(candidates) == 0 {
		return []Suggestion{}, nil
	}

	ranked := rankCandidates(latA, lonA, latB, lonB, candidates)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	now := s.now().UTC()
	records := make([]pgrepo.SuggestionRecord, 0, len(ranked))
	for _, rc := range ranked {
		records = append(records, pgrepo.SuggestionRecord{
			MatchID:         match.ID,
			ExternalID:      rc.ExternalID,
			SourceKind:      rc.SourceKind,
			Latitude:        rc.Lat,
			Longitude:       rc.Lon,
			DistanceUserAKm: rc.DistanceUserAKm,
			DistanceUserBKm: rc.DistanceUserBKm,
			TotalDistanceKm: rc.TotalDistanceKm,
			FairnessGapKm:   rc.FairnessGapKm,
			Score:           rc.Score,
			Tags:            rc.Tags,
			SuggestedAt:     now,
		})
	}

	if err := s.suggestionStore.InsertMissing(ctx, match.ID, records); err != nil {
		return nil, fmt.Errorf("persist suggestions: %w", err)
	}

	stored, err := s.suggestionStore.List(ctx, match.ID)
	if err != nil {
		return nil, fmt.Errorf("list suggestions: %w", err)
	}
	if len(stored) > limit {
		stored = stored[:limit]
	}

	return toSuggestions(stored), nil
}

// SuggestAuto resolves both members' stored coordinates and runs Suggest.
// Anything that makes the match unusable for a meeting right now (inactive
// match, missing user, no coordinates on file) degrades to an empty list
// with a warn log rather than an error.
func (s *Service) SuggestAuto(ctx context.Context, matchID int64, limit int) ([]Suggestion, error) {
	if matchID <= 0 {
		return nil, ErrValidation
	}

	match, err := s.matchReader.FindByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("lookup match: %w", err)
	}
	if !match.Active {
		s.logger.Warn("suggestions requested for inactive match", zap.Int64("match_id", match.ID))
		return []Suggestion{}, nil
	}

	coordsA, err := s.coordinateStore.FindCoordinates(ctx, match.UserLowID)
	if err != nil {
		return s.emptyOnCoordinateError(match.ID, match.UserLowID, err)
	}
	coordsB, err := s.coordinateStore.FindCoordinates(ctx, match.UserHighID)
	if err != nil {
		return s.emptyOnCoordinateError(match.ID, match.UserHighID, err)
	}

	return s.Suggest(ctx, match.ID, coordsA.Lat, coordsA.Lon, coordsB.Lat, coordsB.Lon, limit)
}

func (s *Service) emptyOnCoordinateError(matchID, userID int64, err error) ([]Suggestion, error) {
	if errors.Is(err, pgrepo.ErrUserNotFound) || errors.Is(err, pgrepo.ErrNoCoordinates) {
		s.logger.Warn("match member has no usable coordinates",
			zap.Int64("match_id", matchID),
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		return []Suggestion{}, nil
	}
	return nil, fmt.Errorf("resolve coordinates for user %d: %w", userID, err)
}

func (s *Service) List(ctx context.Context, matchID int64) ([]Suggestion, error) {
	if matchID <= 0 {
		return nil, ErrValidation
	}

	if _, err := s.matchReader.FindByID(ctx, matchID); err != nil {
		if errors.Is(err, pgrepo.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("lookup match: %w", err)
	}

	stored, err := s.suggestionStore.List(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("list suggestions: %w", err)
	}
	return toSuggestions(stored), nil
}

// Accept marks one suggestion as the agreed meeting point. Any previously
// accepted suggestion for the match is revoked in the same transaction, so
// at most one row per match is ever accepted. Returns false when the
// suggestion does not belong to the match.
func (s *Service) Accept(ctx context.Context, matchID, suggestionID int64) (bool, error) {
	if matchID <= 0 || suggestionID <= 0 {
		return false, ErrValidation
	}

	if _, err := s.matchReader.FindByID(ctx, matchID); err != nil {
		if errors.Is(err, pgrepo.ErrMatchNotFound) {
			return false, ErrMatchNotFound
		}
		return false, fmt.Errorf("lookup match: %w", err)
	}

	ok, err := s.suggestionStore.Accept(ctx, matchID, suggestionID, s.now().UTC())
	if err != nil {
		return false, fmt.Errorf("accept suggestion: %w", err)
	}
	return ok, nil
}

func (s *Service) Accepted(ctx context.Context, matchID int64) (Suggestion, error) {
	if matchID <= 0 {
		return Suggestion{}, ErrValidation
	}

	rec, err := s.suggestionStore.FindAccepted(ctx, matchID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrSuggestionNotFound) {
			return Suggestion{}, ErrSuggestionNotFound
		}
		return Suggestion{}, fmt.Errorf("lookup accepted suggestion: %w", err)
	}
	return toSuggestion(rec), nil
}

// SearchBetween runs the pipeline for two ad-hoc positions without any
// match context or persistence.
func (s *Service) SearchBetween(ctx context.Context, latA, lonA, latB, lonB float64, limit int) (SearchResult, error) {
	if err := geo.ValidateCoordinates(latA, lonA); err != nil {
		return SearchResult{}, fmt.Errorf("%w: %s", ErrValidation, err)
	}
	if err := geo.ValidateCoordinates(latB, lonB); err != nil {
		return SearchResult{}, fmt.Errorf("%w: %s", ErrValidation, err)
	}
	limit = s.normalizeLimit(limit)

	searchID := uuid.NewString()
	centerLat, centerLon, radius := geo.SearchZone(latA, lonA, latB, lonB)
	candidates := s.poiFinder.FindPointsOfInterest(ctx, centerLat, centerLon, radius)

	ranked := rankCandidates(latA, lonA, latB, lonB, candidates)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	s.logger.Info("ad-hoc meeting point search",
		zap.String("search_id", searchID),
		zap.Int("candidates", len(candidates)),
		zap.Int("returned", len(ranked)),
	)

	return SearchResult{SearchID: searchID, Points: ranked}, nil
}

func (s *Service) IsMember(ctx context.Context, matchID, userID int64) (bool, error) {
	if matchID <= 0 || userID <= 0 {
		return false, ErrValidation
	}
	return s.matchReader.IsMember(ctx, matchID, userID)
}

func (s *Service) normalizeLimit(limit int) int {
	if limit <= 0 {
		return s.defaultLimit
	}
	return limit
}

func toSuggestions(records []pgrepo.SuggestionRecord) []Suggestion {
	items := make([]Suggestion, 0, len(records))
	for _, rec := range records {
		items = append(items, toSuggestion(rec))
	}
	return items
}

func toSuggestion(rec pgrepo.SuggestionRecord) Suggestion {
	return Suggestion{
		ID:              rec.ID,
		MatchID:         rec.MatchID,
		ExternalID:      rec.ExternalID,
		SourceKind:      rec.SourceKind,
		Lat:             rec.Latitude,
		Lon:             rec.Longitude,
		DistanceUserAKm: rec.DistanceUserAKm,
		DistanceUserBKm: rec.DistanceUserBKm,
		TotalDistanceKm: rec.TotalDistanceKm,
		FairnessGapKm:   rec.FairnessGapKm,
		Score:           rec.Score,
		Tags:            rec.Tags,
		SuggestedAt:     rec.SuggestedAt,
		Accepted:        rec.Accepted,
		AcceptedAt:      rec.AcceptedAt,
	}
}
