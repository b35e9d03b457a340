// Package api exposes the local HTTP intake surface. Networked scan guns and
// the station front end POST raw payloads here; the rest is read-only session
// and progress introspection.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/opslatam/pistoleado/internal/log"
	"github.com/opslatam/pistoleado/internal/pipeline"
	"github.com/opslatam/pistoleado/internal/session"
	"github.com/opslatam/pistoleado/internal/shipment"
	"github.com/opslatam/pistoleado/internal/stats"
)

// ProviderLister is the provider directory of the remote service.
type ProviderLister interface {
	ListProviders(ctx context.Context, date time.Time) ([]shipment.Provider, error)
}

// Server is the local HTTP intake server.
type Server struct {
	pipeline  *pipeline.Pipeline
	store     *session.Store
	stats     *stats.Refresher
	providers ProviderLister
	logger    zerolog.Logger
	now       func() time.Time
}

// NewServer wires the intake endpoints.
func NewServer(p *pipeline.Pipeline, store *session.Store, refresher *stats.Refresher, providers ProviderLister) *Server {
	return &Server{
		pipeline:  p,
		store:     store,
		stats:     refresher,
		providers: providers,
		logger:    log.WithComponent("api"),
		now:       time.Now,
	}
}

// Router builds the chi router with middleware and all routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// A human with two scan guns cannot exceed this; a runaway feed can.
		r.Use(httprate.Limit(30, time.Second, httprate.WithKeyFuncs(httprate.KeyByIP)))

		r.Post("/scan", s.handleScan)
		r.Get("/session", s.handleSession)
		r.Get("/events", s.handleEvents)
		r.Get("/progress", s.handleProgress)
		r.Get("/providers", s.handleProviders)
		r.Post("/provider", s.handleSelectProvider)
		r.Post("/operator", s.handleSetOperator)
		r.Post("/audio", s.handleAudio)
	})

	return r
}
