package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/kasboi/payecards-bot/internal/usecase"
)

// HealthCheck reports whether one dependency is usable.
type HealthCheck func(ctx context.Context) error

// Server is the admin HTTP API.
type Server struct {
	statsUC     usecase.StatsUseCase
	broadcastUC usecase.BroadcastUseCase
	auth        *AuthManager
	apiKey      string
	checks      map[string]HealthCheck
	validate    *validator.Validate
	log         *zerolog.Logger

	srv *http.Server
}

func NewServer(
	statsUC usecase.StatsUseCase,
	broadcastUC usecase.BroadcastUseCase,
	auth *AuthManager,
	apiKey string,
	checks map[string]HealthCheck,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		statsUC:     statsUC,
		broadcastUC: broadcastUC,
		auth:        auth,
		apiKey:      apiKey,
		checks:      checks,
		validate:    validator.New(),
		log:         logger,
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log), Timeout(15*time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/token", s.handleToken)
		r.Group(func(r chi.Router) {
			r.Use(s.auth.middleware)
			r.Get("/stats", s.handleStats)
			r.Get("/broadcasts", s.handleBroadcasts)
		})
	})
	return r
}

// Start blocks serving on port until Shutdown.
func (s *Server) Start(port int) error {
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Info().Int("port", port).Msg("admin http server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
