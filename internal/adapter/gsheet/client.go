// Package gsheet reads the source table from a Google Sheet using a
// service-account credential file.
package gsheet

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/karpatalabs/incident-map-etl/internal/domain"
)

// readRange covers the used range of the first sheet; the Sheets API trims
// it to the actual data extent.
const readRange = "A1:ZZ"

// spreadsheetIDRe extracts the document ID from a full sheet URL,
// e.g. https://docs.google.com/spreadsheets/d/<id>/edit#gid=0.
var spreadsheetIDRe = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9_-]+)`)

// Client implements pipeline.RecordSource over the Google Sheets API.
type Client struct {
	svc           *sheets.Service
	spreadsheetID string
	logger        *slog.Logger
}

// NewClient authenticates with the service-account JSON key file and
// prepares a reader for the sheet identified by sheetURL (a full URL or a
// bare spreadsheet ID).
func NewClient(ctx context.Context, sheetURL, credentialsFile string, logger *slog.Logger) (*Client, error) {
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsReadonlyScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: SpreadsheetID(sheetURL),
		logger:        logger,
	}, nil
}

// SpreadsheetID extracts the spreadsheet ID from a full sheet URL, or
// returns the input unchanged when it is already a bare ID.
func SpreadsheetID(sheetURL string) string {
	if m := spreadsheetIDRe.FindStringSubmatch(sheetURL); len(m) == 2 {
		return m[1]
	}
	return sheetURL
}

// FetchRecords reads the first sheet and converts it into report records.
// A sheet with no data rows yields an empty slice and no error.
func (c *Client) FetchRecords(ctx context.Context) ([]domain.ReportRecord, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", c.spreadsheetID, err)
	}

	table := make([][]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = cellString(cell)
		}
		table = append(table, cells)
	}

	records := domain.RecordsFromTable(table)
	c.logger.Debug("sheet fetched", "spreadsheet_id", c.spreadsheetID, "records", len(records))
	return records, nil
}

// cellString renders an API cell value as a string. Values arrive as
// strings for formatted cells but as float64 for plain numbers; the latter
// must not pick up scientific notation, or fixed-point coordinates would
// become unparseable downstream.
func cellString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
