package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/storm-nowcast/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/storm-nowcast/internal/adapter/kafka"
	"github.com/couchcryptid/storm-nowcast/internal/adapter/netcdf"
	"github.com/couchcryptid/storm-nowcast/internal/config"
	"github.com/couchcryptid/storm-nowcast/internal/observability"
	"github.com/couchcryptid/storm-nowcast/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	radar, err := config.LoadRadarConfig(cfg.RadarConfigPath)
	if err != nil {
		logger.Error("failed to load radar catalog", "path", cfg.RadarConfigPath, "error", err)
		os.Exit(1)
	}
	logger.Info("radar catalog loaded",
		"fields", len(radar.Fields),
		"grid_rows", radar.Grid.NumRows,
		"grid_columns", radar.Grid.NumColumns)

	grids := netcdf.NewCachedGridStore(netcdf.NewFileGridStore(), cfg.GridCacheSize, metrics)

	extractor, err := pipeline.NewImageExtractor(grids, radar, cfg.GridTopDir, cfg.ImageTopDir,
		cfg.ExtractWorkers, logger, metrics)
	if err != nil {
		logger.Error("failed to build image extractor", "error", err)
		os.Exit(1)
	}

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)

	p := pipeline.New(reader, extractor, writer, logger, metrics, cfg.BatchSize)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start extraction pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}
