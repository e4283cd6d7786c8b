package rate

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

const queryWindow = time.Minute

type WindowStore interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// Limiter caps map-data queries per match. The external query is the only
// expensive call in the suggestion pipeline, and suggestion requests are
// cheap to repeat from a client, so each match gets a fixed per-minute
// budget of fresh searches.
type Limiter struct {
	store     WindowStore
	perMinute int
}

func NewLimiter(store WindowStore, perMinute int) *Limiter {
	if perMinute < 0 {
		perMinute = 0
	}

	return &Limiter{
		store:     store,
		perMinute: perMinute,
	}
}

// AllowQuery reports whether a map-data query for the match fits into the
// current window. A zero per-minute budget disables limiting entirely.
func (l *Limiter) AllowQuery(ctx context.Context, matchID int64) (int64, bool, error) {
	if matchID <= 0 {
		return 0, false, fmt.Errorf("invalid match id")
	}
	if l.perMinute == 0 {
		return 0, true, nil
	}
	if l.store == nil {
		return 0, false, fmt.Errorf("rate limiter store is nil")
	}

	count, ttl, err := l.store.IncrementWindow(ctx, queryKey(matchID), queryWindow)
	if err != nil {
		return 0, false, err
	}
	if count > int64(l.perMinute) {
		return ceilSeconds(ttl), false, nil
	}

	return 0, true, nil
}

func queryKey(matchID int64) string {
	return "rate:mapquery:min:" + strconv.FormatInt(matchID, 10)
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	sec := int64(d / time.Second)
	if d%time.Second != 0 {
		sec++
	}
	if sec <= 0 {
		sec = 1
	}
	return sec
}
