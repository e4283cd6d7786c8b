package handlers

import (
	"errors"
	"net/http"

	meetingsvc "github.com/sani4forever/BenchTalk-API/internal/services/meeting"
	"github.com/sani4forever/BenchTalk-API/internal/transport/http/dto"
	httperrors "github.com/sani4forever/BenchTalk-API/internal/transport/http/errors"
)

// SearchHandler serves ad-hoc meeting point searches between two
// arbitrary positions, with no match context and no persistence.
type SearchHandler struct {
	service *meetingsvc.Service
}

func NewSearchHandler(service *meetingsvc.Service) *SearchHandler {
	return &SearchHandler{service: service}
}

func (h *SearchHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if _, ok := actingUserID(r); !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "MEETING_SERVICE_UNAVAILABLE", "meeting service is unavailable")
		return
	}

	latA, okLatA := parseFloatQuery(r, "lat_a")
	lonA, okLonA := parseFloatQuery(r, "lon_a")
	latB, okLatB := parseFloatQuery(r, "lat_b")
	lonB, okLonB := parseFloatQuery(r, "lon_b")
	if !okLatA || !okLonA || !okLatB || !okLonB {
		writeBadRequest(w, "VALIDATION_ERROR", "lat_a, lon_a, lat_b and lon_b are required")
		return
	}

	result, err := h.service.SearchBetween(r.Context(), latA, lonA, latB, lonB, parseIntOrDefault(r.URL.Query().Get("limit"), 0))
	if err != nil {
		if errors.Is(err, meetingsvc.ErrValidation) {
			writeBadRequest(w, "VALIDATION_ERROR", "coordinates are out of range")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to search meeting points")
		return
	}

	items := make([]dto.SearchPointResponse, 0, len(result.Points))
	for _, point := range result.Points {
		items = append(items, dto.SearchPointResponse{
			ExternalID:      point.ExternalID,
			SourceKind:      point.SourceKind,
			Lat:             point.Lat,
			Lon:             point.Lon,
			DistanceUserAKm: point.DistanceUserAKm,
			DistanceUserBKm: point.DistanceUserBKm,
			TotalDistanceKm: point.TotalDistanceKm,
			FairnessGapKm:   point.FairnessGapKm,
			Score:           point.Score,
			Tags:            point.Tags,
		})
	}

	httperrors.Write(w, http.StatusOK, dto.SearchResponse{SearchID: result.SearchID, Items: items})
}
