package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	meetingsvc "github.com/sani4forever/BenchTalk-API/internal/services/meeting"
	"github.com/sani4forever/BenchTalk-API/internal/transport/http/dto"
	httperrors "github.com/sani4forever/BenchTalk-API/internal/transport/http/errors"
)

type MeetingHandler struct {
	service *meetingsvc.Service
}

func NewMeetingHandler(service *meetingsvc.Service) *MeetingHandler {
	return &MeetingHandler{service: service}
}

// Suggest builds meeting point suggestions for the match. Explicit
// coordinates in the body override stored user locations.
func (h *MeetingHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	matchID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	req := dto.SuggestRequest{}
	if r.Body != nil && r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
			return
		}
	}
	if req.HasPartialCoordinates() {
		writeBadRequest(w, "VALIDATION_ERROR", "either all four coordinates or none must be provided")
		return
	}

	var (
		items []meetingsvc.Suggestion
		err   error
	)
	if req.HasCoordinates() {
		items, err = h.service.Suggest(r.Context(), matchID, *req.LatA, *req.LonA, *req.LatB, *req.LonB, req.Limit)
	} else {
		items, err = h.service.SuggestAuto(r.Context(), matchID, req.Limit)
	}
	if err != nil {
		h.writeServiceError(w, err, "failed to build suggestions")
		return
	}

	httperrors.Write(w, http.StatusOK, suggestionsResponse(items))
}

func (h *MeetingHandler) List(w http.ResponseWriter, r *http.Request) {
	matchID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	items, err := h.service.List(r.Context(), matchID)
	if err != nil {
		h.writeServiceError(w, err, "failed to load suggestions")
		return
	}

	httperrors.Write(w, http.StatusOK, suggestionsResponse(items))
}

func (h *MeetingHandler) Accept(w http.ResponseWriter, r *http.Request) {
	matchID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	suggestionID, ok := parseInt64Param(chi.URLParam(r, "suggestion_id"))
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid suggestion id")
		return
	}

	accepted, err := h.service.Accept(r.Context(), matchID, suggestionID)
	if err != nil {
		h.writeServiceError(w, err, "failed to accept suggestion")
		return
	}
	if !accepted {
		writeNotFound(w, "SUGGESTION_NOT_FOUND", "suggestion not found for this match")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.AcceptResponse{OK: true, Accepted: true})
}

func (h *MeetingHandler) Accepted(w http.ResponseWriter, r *http.Request) {
	matchID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	item, err := h.service.Accepted(r.Context(), matchID)
	if err != nil {
		if errors.Is(err, meetingsvc.ErrSuggestionNotFound) {
			writeNotFound(w, "SUGGESTION_NOT_FOUND", "no accepted suggestion for this match")
			return
		}
		h.writeServiceError(w, err, "failed to load accepted suggestion")
		return
	}

	httperrors.Write(w, http.StatusOK, suggestionResponse(item))
}

// authorize resolves the acting user and the match, then gates on
// membership. Non-members get the same 404 as a missing match so the
// endpoint does not leak which match ids exist.
func (h *MeetingHandler) authorize(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := actingUserID(r)
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return 0, false
	}
	if h.service == nil {
		writeInternal(w, "MEETING_SERVICE_UNAVAILABLE", "meeting service is unavailable")
		return 0, false
	}

	matchID, ok := parseInt64Param(chi.URLParam(r, "match_id"))
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid match id")
		return 0, false
	}

	member, err := h.service.IsMember(r.Context(), matchID, userID)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to check match membership")
		return 0, false
	}
	if !member {
		writeNotFound(w, "MATCH_NOT_FOUND", "match not found or access denied")
		return 0, false
	}

	return matchID, true
}

func (h *MeetingHandler) writeServiceError(w http.ResponseWriter, err error, fallback string) {
	var rl *meetingsvc.RateLimitedError
	switch {
	case errors.Is(err, meetingsvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "invalid coordinates or request payload")
	case errors.Is(err, meetingsvc.ErrMatchNotFound):
		writeNotFound(w, "MATCH_NOT_FOUND", "match not found or access denied")
	case errors.As(err, &rl):
		httperrors.Write(w, http.StatusTooManyRequests, httperrors.RateLimitError{
			Code:          "RATE_LIMITED",
			Message:       "too many map queries for this match, try again later",
			RetryAfterSec: rl.RetryAfterSec,
		})
	default:
		writeInternal(w, "INTERNAL_ERROR", fallback)
	}
}

func suggestionsResponse(items []meetingsvc.Suggestion) dto.SuggestionsResponse {
	responseItems := make([]dto.SuggestionResponse, 0, len(items))
	for _, item := range items {
		responseItems = append(responseItems, suggestionResponse(item))
	}
	return dto.SuggestionsResponse{Items: responseItems}
}

func suggestionResponse(item meetingsvc.Suggestion) dto.SuggestionResponse {
	return dto.SuggestionResponse{
		ID:              item.ID,
		MatchID:         item.MatchID,
		ExternalID:      item.ExternalID,
		SourceKind:      item.SourceKind,
		Lat:             item.Lat,
		Lon:             item.Lon,
		DistanceUserAKm: item.DistanceUserAKm,
		DistanceUserBKm: item.DistanceUserBKm,
		TotalDistanceKm: item.TotalDistanceKm,
		FairnessGapKm:   item.FairnessGapKm,
		Score:           item.Score,
		Tags:            item.Tags,
		SuggestedAt:     item.SuggestedAt,
		Accepted:        item.Accepted,
		AcceptedAt:      item.AcceptedAt,
	}
}
