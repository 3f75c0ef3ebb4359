// Command runonce executes a single fetch-expand-upload cycle and exits,
// for cron jobs and manual syncs without the dashboard.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/karpatalabs/incident-map-etl/internal/adapter/arcgis"
	"github.com/karpatalabs/incident-map-etl/internal/adapter/gsheet"
	"github.com/karpatalabs/incident-map-etl/internal/adapter/xlsx"
	"github.com/karpatalabs/incident-map-etl/internal/config"
	"github.com/karpatalabs/incident-map-etl/internal/observability"
	"github.com/karpatalabs/incident-map-etl/internal/pipeline"
)

func main() {
	timeout := flag.Duration("timeout", 5*time.Minute, "overall run deadline")
	dryRun := flag.Bool("dry-run", false, "expand and report but skip the feature upload")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var source pipeline.RecordSource
	if cfg.SourceKind == config.SourceLocalXLSX {
		source = xlsx.NewSource(cfg.SourceXLSX, logger)
	} else {
		source, err = gsheet.NewClient(ctx, cfg.SheetURL, cfg.CredentialsFile, logger)
		if err != nil {
			logger.Error("failed to initialize sheet client", "error", err)
			os.Exit(1)
		}
	}

	var sink pipeline.FeatureSink
	if cfg.ArcGISEnabled && !*dryRun {
		sink = arcgis.NewClient(cfg, clock, metrics, logger)
	}

	p := pipeline.New(source, sink, logger, metrics, clock)

	res, err := p.Refresh(ctx)
	if err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}

	logger.Info("run complete",
		"run_id", res.RunID,
		"records", res.Records,
		"empty_records", res.EmptyRecords,
		"rows", len(res.Rows),
		"uploaded", res.Uploaded,
		"duration", res.Duration,
	)

	// The upload stage is non-fatal for the dashboard, but a cron sync
	// whose whole point is the upload should report it as a failure.
	if res.UploadErr != nil {
		logger.Error("upload failed", "error", res.UploadErr)
		os.Exit(1)
	}
}
