package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mbjoseph/floodfreq/internal/adapter/fitter"
	httpadapter "github.com/mbjoseph/floodfreq/internal/adapter/http"
	kafkaadapter "github.com/mbjoseph/floodfreq/internal/adapter/kafka"
	"github.com/mbjoseph/floodfreq/internal/adapter/usgs"
	"github.com/mbjoseph/floodfreq/internal/analysis"
	"github.com/mbjoseph/floodfreq/internal/config"
	"github.com/mbjoseph/floodfreq/internal/domain"
	"github.com/mbjoseph/floodfreq/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	client := usgs.NewClient(cfg.USGSBaseURL, cfg.USGSTimeout, metrics, logger)
	source := usgs.NewCachedSource(client, cfg.USGSCacheSize, metrics)

	// Model-based estimation is feature-flagged via FITTER_ENABLED / FITTER_URL.
	var gevFitter domain.DistributionFitter
	if cfg.FitterEnabled {
		gevFitter = fitter.NewClient(cfg.FitterURL, cfg.FitterTimeout, metrics, logger)
		metrics.FitterEnabled.Set(1)
		logger.Info("GEV fitter enabled", "url", cfg.FitterURL, "timeout", cfg.FitterTimeout)
	} else {
		logger.Info("GEV fitter disabled, serving empirical estimates only")
	}

	var publisher domain.MaximaPublisher
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		publisher = writer
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaMaximaTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("kafka publishing disabled")
	}

	analyzer := analysis.New(source, gevFitter, publisher, cfg.Stations,
		analysis.Period{Start: cfg.PeriodStart, End: cfg.PeriodEnd},
		cfg.RefreshInterval, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, analyzer, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start the analysis loop.
	go func() {
		if err := analyzer.Run(ctx); err != nil {
			logger.Error("analyzer error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
