package matching

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	pgrepo "github.com/sani4forever/BenchTalk-API/internal/repo/postgres"
)

const (
	dispositionLike    = "LIKE"
	dispositionDislike = "DISLIKE"
)

var (
	ErrValidation             = errors.New("validation error")
	ErrUnsupportedDisposition = errors.New("unsupported disposition")
	ErrUserNotFound           = errors.New("user not found")
)

type SwipeStore interface {
	Find(ctx context.Context, actorUserID, targetUserID int64) (pgrepo.SwipeRecord, error)
	Upsert(ctx context.Context, actorUserID, targetUserID int64, disposition string, now time.Time) (pgrepo.SwipeRecord, error)
}

type MatchStore interface {
	FindActive(ctx context.Context, userLowID, userHighID int64) (pgrepo.MatchRecord, error)
	Create(ctx context.Context, userLowID, userHighID int64, now time.Time) (pgrepo.MatchRecord, bool, error)
	Deactivate(ctx context.Context, matchID int64) error
	IsMember(ctx context.Context, matchID, userID int64) (bool, error)
	ListActiveForUser(ctx context.Context, userID int64, limit int) ([]pgrepo.MatchRecord, error)
}

type UserStore interface {
	Exists(ctx context.Context, userID int64) (bool, error)
}

type Match struct {
	ID         int64
	UserLowID  int64
	UserHighID int64
	Active     bool
	CreatedAt  time.Time
}

type Swipe struct {
	ActorUserID  int64
	TargetUserID int64
	Disposition  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SwipeOutcome reports what a recorded swipe produced. Match is non-nil
// whenever an active match exists for the pair after the swipe.
// MatchCreated marks the one case worth notifying users about: the match
// came into existence on this very call.
type SwipeOutcome struct {
	Intent       Swipe
	Match        *Match
	MatchCreated bool
}

type Service struct {
	swipeStore SwipeStore
	matchStore MatchStore
	userStore  UserStore
	logger     *zap.Logger
	now        func() time.Time
}

type Dependencies struct {
	SwipeStore SwipeStore
	MatchStore MatchStore
	UserStore  UserStore
	Logger     *zap.Logger
}

func NewService(deps Dependencies) *Service {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Service{
		swipeStore: deps.SwipeStore,
		matchStore: deps.MatchStore,
		userStore:  deps.UserStore,
		logger:     log,
		now:        time.Now,
	}
}

// RecordSwipe drives the pair state machine:
// no relation -> one-sided like -> matched -> unmatched.
//
// Repeating an identical swipe is a no-op and never reports a match, a
// different disposition overwrites the stored intent. A like meeting a
// reciprocal like creates the match on the canonical (low, high) pair
// unless one already exists; a dislike deactivates any active match for
// the pair without deleting history.
func (s *Service) RecordSwipe(ctx context.Context, actorID, targetID int64, disposition string) (SwipeOutcome, error) {
	if actorID <= 0 || targetID <= 0 || actorID == targetID {
		return SwipeOutcome{}, ErrValidation
	}

	normalized, err := normalizeDisposition(disposition)
	if err != nil {
		return SwipeOutcome{}, err
	}

	if s.swipeStore == nil || s.matchStore == nil || s.userStore == nil {
		return SwipeOutcome{}, fmt.Errorf("swipe dependencies are not configured")
	}

	for _, userID := range []int64{actorID, targetID} {
		exists, err := s.userStore.Exists(ctx, userID)
		if err != nil {
			return SwipeOutcome{}, fmt.Errorf("check user %d: %w", userID, err)
		}
		if !exists {
			return SwipeOutcome{}, ErrUserNotFound
		}
	}

	now := s.now().UTC()

	existing, err := s.swipeStore.Find(ctx, actorID, targetID)
	switch {
	case err == nil:
		if existing.Disposition == normalized {
			// Idempotent repeat: the stored intent stands, no state
			// transition happens and no match is reported.
			return SwipeOutcome{Intent: toSwipe(existing)}, nil
		}
	case errors.Is(err, pgrepo.ErrSwipeNotFound):
		// First swipe for this ordered pair.
	default:
		return SwipeOutcome{}, fmt.Errorf("lookup swipe: %w", err)
	}

	recorded, err := s.swipeStore.Upsert(ctx, actorID, targetID, normalized, now)
	if err != nil {
		return SwipeOutcome{}, fmt.Errorf("record swipe: %w", err)
	}

	outcome := SwipeOutcome{Intent: toSwipe(recorded)}
	userLow, userHigh := canonicalPair(actorID, targetID)

	switch normalized {
	case dispositionLike:
		reciprocal, err := s.swipeStore.Find(ctx, targetID, actorID)
		if err != nil {
			if errors.Is(err, pgrepo.ErrSwipeNotFound) {
				return outcome, nil
			}
			return SwipeOutcome{}, fmt.Errorf("lookup reciprocal swipe: %w", err)
		}
		if reciprocal.Disposition != dispositionLike {
			return outcome, nil
		}

		match, created, err := s.matchStore.Create(ctx, userLow, userHigh, now)
		if err != nil {
			return SwipeOutcome{}, fmt.Errorf("create match: %w", err)
		}

		m := toMatch(match)
		outcome.Match = &m
		outcome.MatchCreated = created
		if created {
			s.logger.Info("match created",
				zap.Int64("match_id", match.ID),
				zap.Int64("user_low_id", userLow),
				zap.Int64("user_high_id", userHigh),
			)
		}

	case dispositionDislike:
		active, err := s.matchStore.FindActive(ctx, userLow, userHigh)
		if err != nil {
			if errors.Is(err, pgrepo.ErrMatchNotFound) {
				return outcome, nil
			}
			return SwipeOutcome{}, fmt.Errorf("lookup active match: %w", err)
		}
		if err := s.matchStore.Deactivate(ctx, active.ID); err != nil && !errors.Is(err, pgrepo.ErrMatchNotFound) {
			return SwipeOutcome{}, fmt.Errorf("deactivate match: %w", err)
		}
	}

	return outcome, nil
}

// Unmatch deactivates the active match for the unordered pair. Swipe
// history stays put, so a later mutual like can form a fresh match.
func (s *Service) Unmatch(ctx context.Context, userID, targetID int64) (bool, error) {
	if userID <= 0 || targetID <= 0 || userID == targetID {
		return false, ErrValidation
	}
	if s.matchStore == nil {
		return false, fmt.Errorf("match store is nil")
	}

	userLow, userHigh := canonicalPair(userID, targetID)

	active, err := s.matchStore.FindActive(ctx, userLow, userHigh)
	if err != nil {
		if errors.Is(err, pgrepo.ErrMatchNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("lookup active match: %w", err)
	}

	if err := s.matchStore.Deactivate(ctx, active.ID); err != nil {
		if errors.Is(err, pgrepo.ErrMatchNotFound) {
			// Lost a race with a concurrent unmatch; the end state is
			// what the caller asked for.
			return false, nil
		}
		return false, fmt.Errorf("deactivate match: %w", err)
	}

	return true, nil
}

func (s *Service) ListMatches(ctx context.Context, userID int64, limit int) ([]Match, error) {
	if userID <= 0 {
		return nil, ErrValidation
	}
	if s.matchStore == nil {
		return nil, fmt.Errorf("match store is nil")
	}

	records, err := s.matchStore.ListActiveForUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	items := make([]Match, 0, len(records))
	for _, rec := range records {
		items = append(items, toMatch(rec))
	}
	return items, nil
}

func (s *Service) IsMember(ctx context.Context, matchID, userID int64) (bool, error) {
	if matchID <= 0 || userID <= 0 {
		return false, ErrValidation
	}
	if s.matchStore == nil {
		return false, fmt.Errorf("match store is nil")
	}
	return s.matchStore.IsMember(ctx, matchID, userID)
}

func canonicalPair(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}

func normalizeDisposition(input string) (string, error) {
	value := strings.ToUpper(strings.TrimSpace(input))
	switch value {
	case dispositionLike, dispositionDislike:
		return value, nil
	default:
		return "", ErrUnsupportedDisposition
	}
}

func toSwipe(rec pgrepo.SwipeRecord) Swipe {
	return Swipe{
		ActorUserID:  rec.ActorUserID,
		TargetUserID: rec.TargetUserID,
		Disposition:  rec.Disposition,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}
}

func toMatch(rec pgrepo.MatchRecord) Match {
	return Match{
		ID:         rec.ID,
		UserLowID:  rec.UserLowID,
		UserHighID: rec.UserHighID,
		Active:     rec.Active,
		CreatedAt:  rec.CreatedAt,
	}
}
