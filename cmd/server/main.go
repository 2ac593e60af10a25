package main

import (
	"context"
	"database/sql"
	"net/http"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/dqcore/internal/checks"
	"github.com/inferloop/dqcore/internal/config"
	"github.com/inferloop/dqcore/internal/dataset"
	"github.com/inferloop/dqcore/internal/engine"
	"github.com/inferloop/dqcore/internal/history"
	"github.com/inferloop/dqcore/internal/observability"
	"github.com/inferloop/dqcore/internal/server"
)

func main() {
	flags := ParseFlags()

	cfg, err := config.Load(flags.ConfigFile)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	logger := setupLogger(cfg.Logging.Level, cfg.Logging.Format)
	logger.WithFields(logrus.Fields{
		"version":   Version,
		"commit":    GitCommit,
		"buildDate": BuildDate,
	}).Info("Starting data quality check server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := checks.NewRegistry(logger)
	suite, err := config.LoadSuite(flags.SuiteFile, flags.Environment, registry)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load check suite")
	}
	logger.WithFields(logrus.Fields{
		"environment": suite.Environment,
		"assets":      len(suite.Assets),
	}).Info("Check suite loaded")

	historyStore, err := history.NewStore(ctx, &cfg.History, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize history store")
	}
	defer historyStore.Close()

	resolver := dataset.NewResolver(logger)
	for key, dsn := range cfg.DataSources {
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			logger.WithError(err).WithField("resource_key", key).Fatal("Failed to open data source")
		}
		defer db.Close()
		resolver.RegisterDB(key, db)
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector())
	promRegistry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(promRegistry)

	eng := engine.New(
		&engine.Config{CheckTimeout: cfg.Evaluation.CheckTimeout},
		logger, registry, historyStore, resolver, metrics,
	)

	srv := server.NewServer(cfg, logger, eng, suite, resolver, promRegistry)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	if err := srv.Stop(context.Background()); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}
	logger.Info("Server stopped")
}

func setupLogger(level, format string) *logrus.Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}
