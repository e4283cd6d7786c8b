package dto

import "time"

type MatchResponse struct {
	ID         int64     `json:"id"`
	UserLowID  int64     `json:"user_low_id"`
	UserHighID int64     `json:"user_high_id"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}

type MatchesResponse struct {
	Items []MatchResponse `json:"items"`
}

type UnmatchRequest struct {
	TargetID int64 `json:"target_id"`
}

type UnmatchResponse struct {
	OK      bool `json:"ok"`
	Removed bool `json:"removed"`
}
