// Package xlsx reads the source table from a local workbook, used for
// development and offline runs instead of the live Google Sheet.
package xlsx

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"github.com/karpatalabs/incident-map-etl/internal/domain"
)

// Source implements pipeline.RecordSource over a local .xlsx file.
type Source struct {
	path   string
	logger *slog.Logger
}

// NewSource creates a workbook-backed record source.
func NewSource(path string, logger *slog.Logger) *Source {
	return &Source{path: path, logger: logger}
}

// FetchRecords reads the first sheet of the workbook. The workbook is
// reopened on every call so edits between refreshes are picked up.
func (s *Source) FetchRecords(ctx context.Context) ([]domain.ReportRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", s.path, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	records := domain.RecordsFromTable(rows)
	s.logger.Debug("workbook read", "path", s.path, "sheet", sheet, "records", len(records))
	return records, nil
}
