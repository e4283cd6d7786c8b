package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sani4forever/BenchTalk-API/internal/config"
	"github.com/sani4forever/BenchTalk-API/internal/infra/httpclient"
	"github.com/sani4forever/BenchTalk-API/internal/infra/overpass"
	pgrepo "github.com/sani4forever/BenchTalk-API/internal/repo/postgres"
	redrepo "github.com/sani4forever/BenchTalk-API/internal/repo/redis"
	matchingsvc "github.com/sani4forever/BenchTalk-API/internal/services/matching"
	meetingsvc "github.com/sani4forever/BenchTalk-API/internal/services/meeting"
	ratesvc "github.com/sani4forever/BenchTalk-API/internal/services/rate"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	rateRepo := redrepo.NewRateRepo(redisClient)
	swipeRepo := pgrepo.NewSwipeRepo(pool)
	matchRepo := pgrepo.NewMatchRepo(pool)
	userRepo := pgrepo.NewUserRepo(pool)
	suggestionRepo := pgrepo.NewSuggestionRepo(pool)

	overpassClient := overpass.NewClient(
		httpclient.New(cfg.Overpass.Timeout),
		cfg.Overpass.URL,
		cfg.Overpass.Amenity,
		log,
	)
	queryLimiter := ratesvc.NewLimiter(rateRepo, cfg.Meeting.QueriesPerMinute)

	matchingService := matchingsvc.NewService(matchingsvc.Dependencies{
		SwipeStore: swipeRepo,
		MatchStore: matchRepo,
		UserStore:  userRepo,
		Logger:     log,
	})
	meetingService := meetingsvc.NewService(meetingsvc.Dependencies{
		MatchReader:     matchRepo,
		CoordinateStore: userRepo,
		SuggestionStore: suggestionRepo,
		POIFinder:       overpassClient,
		Limiter:         queryLimiter,
		DefaultLimit:    cfg.Meeting.DefaultLimit,
		Logger:          log,
	})

	RegisterRoutes(r, Dependencies{
		MatchingService: matchingService,
		MeetingService:  meetingService,
		Logger:          log,
		Config:          cfg,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		httpRouter: r,
	}, nil
}

func (a *App) Run() error {
	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
