// Command server runs the incident map dashboard. Each page load fetches
// the source sheet, expands it, renders the table and map, and pushes the
// result to the configured ArcGIS feature layer.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/karpatalabs/incident-map-etl/internal/adapter/arcgis"
	"github.com/karpatalabs/incident-map-etl/internal/adapter/gsheet"
	"github.com/karpatalabs/incident-map-etl/internal/adapter/xlsx"
	"github.com/karpatalabs/incident-map-etl/internal/config"
	"github.com/karpatalabs/incident-map-etl/internal/domain"
	"github.com/karpatalabs/incident-map-etl/internal/observability"
	"github.com/karpatalabs/incident-map-etl/internal/pipeline"
	"github.com/karpatalabs/incident-map-etl/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source, err := buildSource(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize record source", "error", err)
		os.Exit(1)
	}

	// Feature uploads are feature-flagged via ARCGIS_ENABLED / ARCGIS_URL.
	var sink pipeline.FeatureSink
	if cfg.ArcGISEnabled {
		sink = arcgis.NewClient(cfg, clock, metrics, logger)
		logger.Info("arcgis upload enabled", "item_id", cfg.ArcGISItemID, "chunk_size", cfg.UploadChunk)
	} else {
		logger.Info("arcgis upload disabled")
	}

	p := pipeline.New(source, sink, logger, metrics, clock)

	normalizer := domain.Normalizer{Scale: cfg.CoordScale}
	srv := web.NewServer(cfg.HTTPAddr, p, normalizer, cfg.MapMaxPoints, metrics, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}

func buildSource(ctx context.Context, cfg *config.Config, logger *slog.Logger) (pipeline.RecordSource, error) {
	if cfg.SourceKind == config.SourceLocalXLSX {
		logger.Info("using local workbook source", "path", cfg.SourceXLSX)
		return xlsx.NewSource(cfg.SourceXLSX, logger), nil
	}
	logger.Info("using google sheet source", "spreadsheet_id", gsheet.SpreadsheetID(cfg.SheetURL))
	return gsheet.NewClient(ctx, cfg.SheetURL, cfg.CredentialsFile, logger)
}
