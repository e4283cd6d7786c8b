package dto

import "time"

type SuggestRequest struct {
	LatA  *float64 `json:"lat_a,omitempty"`
	LonA  *float64 `json:"lon_a,omitempty"`
	LatB  *float64 `json:"lat_b,omitempty"`
	LonB  *float64 `json:"lon_b,omitempty"`
	Limit int      `json:"limit,omitempty"`
}

// Coordinates are all-or-nothing: a request either carries the four
// explicit values or none, in which case stored user locations are used.
func (r SuggestRequest) HasCoordinates() bool {
	return r.LatA != nil && r.LonA != nil && r.LatB != nil && r.LonB != nil
}

func (r SuggestRequest) HasPartialCoordinates() bool {
	set := 0
	for _, v := range []*float64{r.LatA, r.LonA, r.LatB, r.LonB} {
		if v != nil {
			set++
		}
	}
	return set > 0 && set < 4
}

type SuggestionResponse struct {
	ID              int64             `json:"id"`
	MatchID         int64             `json:"match_id"`
	ExternalID      string            `json:"external_id"`
	SourceKind      string            `json:"source_kind"`
	Lat             float64           `json:"lat"`
	Lon             float64           `json:"lon"`
	DistanceUserAKm float64           `json:"distance_user_a_km"`
	DistanceUserBKm float64           `json:"distance_user_b_km"`
	TotalDistanceKm float64           `json:"total_distance_km"`
	FairnessGapKm   float64           `json:"fairness_gap_km"`
	Score           float64           `json:"score"`
	Tags            map[string]string `json:"tags,omitempty"`
	SuggestedAt     time.Time         `json:"suggested_at"`
	Accepted        bool              `json:"accepted"`
	AcceptedAt      *time.Time        `json:"accepted_at,omitempty"`
}

type SuggestionsResponse struct {
	Items []SuggestionResponse `json:"items"`
}

type AcceptResponse struct {
	OK       bool `json:"ok"`
	Accepted bool `json:"accepted"`
}
