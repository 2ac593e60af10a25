package server

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/dqcore/internal/config"
	"github.com/inferloop/dqcore/internal/dataset"
	"github.com/inferloop/dqcore/internal/engine"
	"github.com/inferloop/dqcore/pkg/constants"
)

// Server is the HTTP host around the check engine. It owns the suite loaded
// at startup; requests select an asset from it and optionally carry inline
// data for dataframe-sourced assets.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	logger     *logrus.Logger
	config     *config.Config
	engine     *engine.Engine
	suite      *config.Suite
	resolver   *dataset.Resolver
	registry   *prometheus.Registry
}

// NewServer creates the HTTP server and wires its routes.
func NewServer(cfg *config.Config, logger *logrus.Logger, eng *engine.Engine, suite *config.Suite, resolver *dataset.Resolver, promRegistry *prometheus.Registry) *Server {
	if logger == nil {
		logger = logrus.New()
	}

	s := &Server{
		router:   mux.NewRouter(),
		logger:   logger,
		config:   cfg,
		engine:   eng,
		suite:    suite,
		resolver: resolver,
		registry: promRegistry,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s
}

// Start serves until the listener fails or Stop is called.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Starting HTTP server")
	return s.httpServer.ListenAndServe()
}

// Stop gracefully drains in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/version", s.handleVersion).Methods("GET")

	if s.registry != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods("GET")
	}

	apiRouter := s.router.PathPrefix(constants.APIPrefix).Subrouter()
	apiRouter.HandleFunc("/checks/run", s.handleRunChecks).Methods("POST")
	apiRouter.HandleFunc("/assets", s.handleListAssets).Methods("GET")

	s.router.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
}

func (s *Server) setupMiddleware() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.recoveryMiddleware)
}
