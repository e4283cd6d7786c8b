package meeting

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/sani4forever/BenchTalk-API/internal/infra/overpass"
	pgrepo "github.com/sani4forever/BenchTalk-API/internal/repo/postgres"
)

type stubMatchReader struct {
	matches map[int64]pgrepo.MatchRecord
}

func (s *stubMatchReader) FindByID(_ context.Context, matchID int64) (pgrepo.MatchRecord, error) {
	rec, ok := s.matches[matchID]
	if !ok {
		return pgrepo.MatchRecord{}, pgrepo.ErrMatchNotFound
	}
	return rec, nil
}

func (s *stubMatchReader) IsMember(_ context.Context, matchID, userID int64) (bool, error) {
	rec, ok := s.matches[matchID]
	if !ok {
		return false, nil
	}
	return rec.UserLowID == userID || rec.UserHighID == userID, nil
}

type stubCoordinatesStore struct {
	coords map[int64]pgrepo.CoordinatesRecord
	errs   map[int64]error
}

func (s *stubCoordinatesStore) FindCoordinates(_ context.Context, userID int64) (pgrepo.CoordinatesRecord, error) {
	if err, ok := s.errs[userID]; ok {
		return pgrepo.CoordinatesRecord{}, err
	}
	rec, ok := s.coords[userID]
	if !ok {
		return pgrepo.CoordinatesRecord{}, pgrepo.ErrUserNotFound
	}
	return rec, nil
}

type suggestionKey struct {
	matchID    int64
	externalID string
}

type stubSuggestionStore struct {
	records map[suggestionKey]pgrepo.SuggestionRecord
	nextID  int64
	inserts int
}

func newStubSuggestionStore() *stubSuggestionStore {
	return &stubSuggestionStore{records: map[suggestionKey]pgrepo.SuggestionRecord{}}
}

func (s *stubSuggestionStore) InsertMissing(_ context.Context, matchID int64, records []pgrepo.SuggestionRecord) error {
	s.inserts++
	for _, rec := range records {
		key := suggestionKey{matchID: matchID, externalID: rec.ExternalID}
		if _, ok := s.records[key]; ok {
			continue
		}
		s.nextID++
		rec.ID = s.nextID
		rec.MatchID = matchID
		s.records[key] = rec
	}
	return nil
}

func (s *stubSuggestionStore) List(_ context.Context, matchID int64) ([]pgrepo.SuggestionRecord, error) {
	var out []pgrepo.SuggestionRecord
	for key, rec := range s.records {
		if key.matchID == matchID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score < out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *stubSuggestionStore) Accept(_ context.Context, matchID, suggestionID int64, at time.Time) (bool, error) {
	var target *suggestionKey
	for key, rec := range s.records {
		if key.matchID == matchID && rec.ID == suggestionID {
			k := key
			target = &k
			break
		}
	}
	if target == nil {
		return false, nil
	}
	for key, rec := range s.records {
		if key.matchID == matchID && rec.Accepted {
			rec.Accepted = false
			rec.AcceptedAt = nil
			s.records[key] = rec
		}
	}
	rec := s.records[*target]
	rec.Accepted = true
	acceptedAt := at
	rec.AcceptedAt = &acceptedAt
	s.records[*target] = rec
	return true, nil
}

func (s *stubSuggestionStore) FindAccepted(_ context.Context, matchID int64) (pgrepo.SuggestionRecord, error) {
	for key, rec := range s.records {
		if key.matchID == matchID && rec.Accepted {
			return rec, nil
		}
	}
	return pgrepo.SuggestionRecord{}, pgrepo.ErrSuggestionNotFound
}

type stubPOIFinder struct {
	candidates []overpass.Candidate
	calls      int
}

func (s *stubPOIFinder) FindPointsOfInterest(_ context.Context, _, _ float64, _ int) []overpass.Candidate {
	s.calls++
	return s.candidates
}

type stubLimiter struct {
	allowed    bool
	retryAfter int64
	err        error
}

func (s *stubLimiter) AllowQuery(_ context.Context, _ int64) (int64, bool, error) {
	if s.err != nil {
		return 0, false, s.err
	}
	return s.retryAfter, s.allowed, nil
}

type meetingFixture struct {
	svc     *Service
	matches *stubMatchReader
	coords  *stubCoordinatesStore
	store   *stubSuggestionStore
	finder  *stubPOIFinder
	limiter *stubLimiter
}

func newMeetingFixture() *meetingFixture {
	matches := &stubMatchReader{matches: map[int64]pgrepo.MatchRecord{
		7: {ID: 7, UserLowID: 1, UserHighID: 2, Active: true},
	}}
	coords := &stubCoordinatesStore{
		coords: map[int64]pgrepo.CoordinatesRecord{
			1: {Lat: 55.7558, Lon: 37.6173},
			2: {Lat: 55.7500, Lon: 37.6200},
		},
		errs: map[int64]error{},
	}
	store := newStubSuggestionStore()
	finder := &stubPOIFinder{candidates: []overpass.Candidate{
		{ExternalID: "node/1", SourceKind: "node", Lat: 55.7529, Lon: 37.61865},
		{ExternalID: "way/2", SourceKind: "way", Lat: 55.7545, Lon: 37.6180},
	}}
	limiter := &stubLimiter{allowed: true}

	svc := NewService(Dependencies{
		MatchReader:     matches,
		CoordinateStore: coords,
		SuggestionStore: store,
		POIFinder:       finder,
		Limiter:         limiter,
		DefaultLimit:    10,
	})
	return &meetingFixture{svc: svc, matches: matches, coords: coords, store: store, finder: finder, limiter: limiter}
}

func TestSuggestUnknownMatch(t *testing.T) {
	f := newMeetingFixture()

	_, err := f.svc.Suggest(context.Background(), 99, 55.75, 37.61, 55.76, 37.62, 10)
	if !errors.Is(err, ErrMatchNotFound) {
		t.Fatalf("expected ErrMatchNotFound, got %v", err)
	}
}

func TestSuggestInvalidCoordinates(t *testing.T) {
	f := newMeetingFixture()

	_, err := f.svc.Suggest(context.Background(), 7, 123.0, 37.61, 55.76, 37.62, 10)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestSuggestDegradedSourceReturnsEmpty(t *testing.T) {
	f := newMeetingFixture()
	f.finder.candidates = nil

	got, err := f.svc.Suggest(context.Background(), 7, 55.7558, 37.6173, 55.7500, 37.6200, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty list, got %d suggestions", len(got))
	}
	if f.store.inserts != 0 {
		t.Fatalf("nothing should be persisted for an empty candidate set, got %d inserts", f.store.inserts)
	}
}

func TestSuggestPersistsOnceAndReturnsRanked(t *testing.T) {
	f := newMeetingFixture()
	ctx := context.Background()

	first, err := f.svc.Suggest(ctx, 7, 55.7558, 37.6173, 55.7500, 37.6200, 10)
	if err != nil {
		t.Fatalf("first suggest: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("expected 2 suggestions, got %d", len(first))
	}
	for i := 1; i < len(first); i++ {
		if first[i].Score < first[i-1].Score {
			t.Fatalf("suggestions out of score order: %f before %f", first[i-1].Score, first[i].Score)
		}
	}

	second, err := f.svc.Suggest(ctx, 7, 55.7558, 37.6173, 55.7500, 37.6200, 10)
	if err != nil {
		t.Fatalf("second suggest: %v", err)
	}
	if len(second) != 2 {
		t.Fatalf("repeat suggest must not duplicate rows, got %d", len(second))
	}
	if len(f.store.records) != 2 {
		t.Fatalf("expected 2 stored rows, got %d", len(f.store.records))
	}
	if f.finder.calls != 2 {
		t.Fatalf("expected the map source to be queried per call, got %d", f.finder.calls)
	}
}

func TestSuggestHonorsLimit(t *testing.T) {
	f := newMeetingFixture()

	got, err := f.svc.Suggest(context.Background(), 7, 55.7558, 37.6173, 55.7500, 37.6200, 1)
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected the list truncated to 1, got %d", len(got))
	}
}

func TestSuggestRateLimited(t *testing.T) {
	f := newMeetingFixture()
	f.limiter.allowed = false
	f.limiter.retryAfter = 42

	_, err := f.svc.Suggest(context.Background(), 7, 55.7558, 37.6173, 55.7500, 37.6200, 10)
	var rl *RateLimitedError
	if !errors.As(err, &rl) {
		t.Fatalf("expected RateLimitedError, got %v", err)
	}
	if rl.RetryAfterSec != 42 {
		t.Fatalf("expected retry after 42s, got %d", rl.RetryAfterSec)
	}
	if f.finder.calls != 0 {
		t.Fatal("map source must not be queried when rate limited")
	}
}

func TestSuggestLimiterFailureDoesNotBlock(t *testing.T) {
	f := newMeetingFixture()
	f.limiter.err = errors.New("redis down")

	got, err := f.svc.Suggest(context.Background(), 7, 55.7558, 37.6173, 55.7500, 37.6200, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected suggestions despite limiter failure, got %d", len(got))
	}
}

func TestSuggestAutoUsesStoredCoordinates(t *testing.T) {
	f := newMeetingFixture()

	got, err := f.svc.SuggestAuto(context.Background(), 7, 10)
	if err != nil {
		t.Fatalf("suggest auto: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 suggestions, got %d", len(got))
	}
}

func TestSuggestAutoInactiveMatch(t *testing.T) {
	f := newMeetingFixture()
	rec := f.matches.matches[7]
	rec.Active = false
	f.matches.matches[7] = rec

	got, err := f.svc.SuggestAuto(context.Background(), 7, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty list for inactive match, got %d", len(got))
	}
	if f.finder.calls != 0 {
		t.Fatal("map source must not be queried for an inactive match")
	}
}

func TestSuggestAutoMissingCoordinates(t *testing.T) {
	f := newMeetingFixture()
	f.coords.errs[2] = pgrepo.ErrNoCoordinates

	got, err := f.svc.SuggestAuto(context.Background(), 7, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty list when a member has no coordinates, got %d", len(got))
	}
}

func TestAcceptRevokesPrevious(t *testing.T) {
	f := newMeetingFixture()
	ctx := context.Background()

	stored, err := f.svc.Suggest(ctx, 7, 55.7558, 37.6173, 55.7500, 37.6200, 10)
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}

	ok, err := f.svc.Accept(ctx, 7, stored[0].ID)
	if err != nil || !ok {
		t.Fatalf("first accept: ok=%v err=%v", ok, err)
	}
	ok, err = f.svc.Accept(ctx, 7, stored[1].ID)
	if err != nil || !ok {
		t.Fatalf("second accept: ok=%v err=%v", ok, err)
	}

	accepted, err := f.svc.Accepted(ctx, 7)
	if err != nil {
		t.Fatalf("accepted: %v", err)
	}
	if accepted.ID != stored[1].ID {
		t.Fatalf("expected the latest acceptance to win, got id %d", accepted.ID)
	}

	var count int
	for _, rec := range f.store.records {
		if rec.Accepted {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one accepted row, got %d", count)
	}
}

func TestAcceptForeignSuggestion(t *testing.T) {
	f := newMeetingFixture()
	f.matches.matches[8] = pgrepo.MatchRecord{ID: 8, UserLowID: 3, UserHighID: 4, Active: true}
	ctx := context.Background()

	stored, err := f.svc.Suggest(ctx, 7, 55.7558, 37.6173, 55.7500, 37.6200, 10)
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}

	ok, err := f.svc.Accept(ctx, 8, stored[0].ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("accepting another match's suggestion must report false")
	}
}

func TestAcceptedNone(t *testing.T) {
	f := newMeetingFixture()

	_, err := f.svc.Accepted(context.Background(), 7)
	if !errors.Is(err, ErrSuggestionNotFound) {
		t.Fatalf("expected ErrSuggestionNotFound, got %v", err)
	}
}

func TestSearchBetweenIsStateless(t *testing.T) {
	f := newMeetingFixture()

	result, err := f.svc.SearchBetween(context.Background(), 55.7558, 37.6173, 55.7500, 37.6200, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if result.SearchID == "" {
		t.Fatal("expected a non-empty search id")
	}
	if len(result.Points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(result.Points))
	}
	if len(f.store.records) != 0 || f.store.inserts != 0 {
		t.Fatal("ad-hoc search must not persist anything")
	}
}

func TestListRequiresExistingMatch(t *testing.T) {
	f := newMeetingFixture()

	_, err := f.svc.List(context.Background(), 99)
	if !errors.Is(err, ErrMatchNotFound) {
		t.Fatalf("expected ErrMatchNotFound, got %v", err)
	}

	got, err := f.svc.List(context.Background(), 7)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty list before any suggest call, got %d", len(got))
	}
}
