package dto

type SearchPointResponse struct {
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
}

type SearchResponse struct {
	SearchID string                `json:"search_id"`
	Items    []SearchPointResponse `json:"items"`
}
