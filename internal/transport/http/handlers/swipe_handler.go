package handlers

import (
	"errors"
	"net/http"
	"strings"

	matchingsvc "github.com/sani4forever/BenchTalk-API/internal/services/matching"
	"github.com/sani4forever/BenchTalk-API/internal/transport/http/dto"
	httperrors "github.com/sani4forever/BenchTalk-API/internal/transport/http/errors"
)

type SwipeHandler struct {
	service *matchingsvc.Service
}

func NewSwipeHandler(service *matchingsvc.Service) *SwipeHandler {
	return &SwipeHandler{service: service}
}

func (h *SwipeHandler) Handle(w http.ResponseWriter, r *http.Request) {
	userID, ok := actingUserID(r)
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "SWIPE_SERVICE_UNAVAILABLE", "swipe service is unavailable")
		return
	}

	var req dto.SwipeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if req.TargetID <= 0 || strings.TrimSpace(req.Disposition) == "" {
		writeBadRequest(w, "VALIDATION_ERROR", "target_id and disposition are required")
		return
	}

	outcome, err := h.service.RecordSwipe(r.Context(), userID, req.TargetID, req.Disposition)
	if err != nil {
		switch {
		case errors.Is(err, matchingsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid swipe request")
		case errors.Is(err, matchingsvc.ErrUnsupportedDisposition):
			writeBadRequest(w, "VALIDATION_ERROR", "unsupported disposition")
		case errors.Is(err, matchingsvc.ErrUserNotFound):
			writeNotFound(w, "USER_NOT_FOUND", "user not found")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to process swipe")
		}
		return
	}

	resp := dto.SwipeResponse{
		OK:           true,
		Disposition:  outcome.Intent.Disposition,
		MatchCreated: outcome.MatchCreated,
	}
	if outcome.Match != nil {
		resp.Match = matchResponse(*outcome.Match)
	}

	httperrors.Write(w, http.StatusOK, resp)
}

func matchResponse(match matchingsvc.Match) *dto.MatchResponse {
	return &dto.MatchResponse{
		ID:         match.ID,
		UserLowID:  match.UserLowID,
		UserHighID: match.UserHighID,
		Active:     match.Active,
		CreatedAt:  match.CreatedAt,
	}
}
