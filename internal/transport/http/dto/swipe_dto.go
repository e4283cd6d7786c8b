package dto

type SwipeRequest struct {
	TargetID    int64  `json:"target_id"`
	Disposition string `json:"disposition"`
}

type SwipeResponse struct {
	OK           bool           `json:"ok"`
	Disposition  string         `json:"disposition"`
	MatchCreated bool           `json:"match_created"`
	Match        *MatchResponse `json:"match,omitempty"`
}
