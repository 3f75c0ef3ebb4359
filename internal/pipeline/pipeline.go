package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/karpatalabs/incident-map-etl/internal/domain"
	"github.com/karpatalabs/incident-map-etl/internal/observability"
)

// RecordSource fetches the full source table from the spreadsheet.
type RecordSource interface {
	FetchRecords(ctx context.Context) ([]domain.ReportRecord, error)
}

// FeatureSink persists expanded rows as point features.
type FeatureSink interface {
	UploadRows(ctx context.Context, rows []domain.ExpandedRow) error
}

// Result is the outcome of one refresh run. Rows preserve source order; the
// sink and the presenter both consume this exact sequence.
type Result struct {
	RunID   string
	Started time.Time

	Records      int // source records fetched
	EmptyRecords int // records that contributed no rows
	Rows         []domain.ExpandedRow
	Uploaded     bool
	UploadErr    error // non-nil when the sink stage failed; rows are still valid
	Duration     time.Duration
}

// Pipeline runs the fetch-expand-upload cycle. A nil sink disables the
// upload stage. Safe for concurrent Refresh calls: each run owns its data
// and only the ready flag and metrics are shared.
type Pipeline struct {
	source  RecordSource
	sink    FeatureSink
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock
	ready   atomic.Bool
}

// New creates a Pipeline with the given stages and observability.
func New(source RecordSource, sink FeatureSink, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock) *Pipeline {
	return &Pipeline{
		source:  source,
		sink:    sink,
		logger:  logger,
		metrics: metrics,
		clock:   clock,
	}
}

// CheckReadiness returns nil once at least one refresh has completed.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no refresh has completed yet")
	}
	return nil
}

// Refresh executes one full cycle. Fetch failure is the only run-level
// error; expansion never fails, and a sink failure is reported on the
// Result so partial output can still be shown.
func (p *Pipeline) Refresh(ctx context.Context) (*Result, error) {
	res := &Result{
		RunID:   uuid.NewString(),
		Started: p.clock.Now(),
	}
	logger := p.logger.With("run_id", res.RunID)
	start := time.Now()

	records, err := p.source.FetchRecords(ctx)
	if err != nil {
		p.metrics.RefreshRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("fetch records: %w", err)
	}
	res.Records = len(records)
	p.metrics.RecordsFetched.Add(float64(len(records)))

	if len(records) == 0 {
		// An empty table is an empty result, not an error.
		logger.Warn("source table has no records")
	}

	for _, rec := range records {
		rows := domain.Expand(rec)
		if len(rows) == 0 {
			res.EmptyRecords++
			continue
		}
		res.Rows = append(res.Rows, rows...)
	}
	p.metrics.RecordsEmpty.Add(float64(res.EmptyRecords))
	p.metrics.RowsExpanded.Add(float64(len(res.Rows)))
	p.metrics.RowsPerRefresh.Observe(float64(len(res.Rows)))

	logger.Info("expansion complete",
		"records", res.Records,
		"empty_records", res.EmptyRecords,
		"rows", len(res.Rows),
	)

	if p.sink != nil && len(res.Rows) > 0 {
		if err := p.sink.UploadRows(ctx, res.Rows); err != nil {
			logger.Error("feature upload failed", "error", err)
			p.metrics.UploadErrors.Inc()
			res.UploadErr = err
		} else {
			res.Uploaded = true
			logger.Info("feature upload complete", "rows", len(res.Rows))
		}
	}

	res.Duration = time.Since(start)
	p.metrics.RefreshDuration.Observe(res.Duration.Seconds())
	p.metrics.RefreshRuns.WithLabelValues("success").Inc()
	p.ready.Store(true)
	p.metrics.ServiceReady.Set(1)

	return res, nil
}
