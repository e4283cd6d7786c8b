package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sani4forever/BenchTalk-API/internal/config"
	matchingsvc "github.com/sani4forever/BenchTalk-API/internal/services/matching"
	meetingsvc "github.com/sani4forever/BenchTalk-API/internal/services/meeting"
	"github.com/sani4forever/BenchTalk-API/internal/transport/http/handlers"
)

type Dependencies struct {
	MatchingService *matchingsvc.Service
	MeetingService  *meetingsvc.Service
	Logger          *zap.Logger
	Config          config.Config
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler()
	swipeHandler := handlers.NewSwipeHandler(deps.MatchingService)
	matchesHandler := handlers.NewMatchesHandler(deps.MatchingService)
	meetingHandler := handlers.NewMeetingHandler(deps.MeetingService)
	searchHandler := handlers.NewSearchHandler(deps.MeetingService)

	r.Get("/healthz", healthHandler.Get)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/swipes", swipeHandler.Handle)
		r.Get("/matches", matchesHandler.List)
		r.Post("/unmatch", matchesHandler.Unmatch)
		r.Route("/matches/{match_id}/suggestions", func(r chi.Router) {
			r.Post("/", meetingHandler.Suggest)
			r.Get("/", meetingHandler.List)
			r.Get("/accepted", meetingHandler.Accepted)
			r.Post("/{suggestion_id}/accept", meetingHandler.Accept)
		})
		r.Get("/meeting-points/search", searchHandler.Handle)
	})
}
