package domain

import "fmt"

// Header keys as they appear in the source sheet.
const (
	KeyDate   = "Дата"
	KeyRegion = "Область"
	KeyCity   = "Місто"
	KeyLon    = "long"
	KeyLat    = "lat"
)

// ValueColumns is the number of "Значення N" columns a record carries.
const ValueColumns = 10

// ValueKey returns the header key of the n-th value column (1-based).
func ValueKey(n int) string {
	return fmt.Sprintf("Значення %d", n)
}

// ReportRecord is one source row exactly as read from the sheet. Missing
// cells are empty strings; numeric fields stay raw until expansion.
type ReportRecord struct {
	Date   string
	Region string
	City   string
	RawLon string
	RawLat string
	Values [ValueColumns]string
}

// ExpandedRow is one derived row produced by the unary expansion. The
// coordinate strings are copied verbatim from the source record; consumers
// that need degrees run them through a Normalizer.
type ExpandedRow struct {
	Date       string
	Region     string
	City       string
	RawLon     string
	RawLat     string
	Indicators [ValueColumns]int
}

// RecordFromRow builds a ReportRecord from a header-keyed row. Absent keys
// yield empty fields.
func RecordFromRow(row map[string]string) ReportRecord {
	rec := ReportRecord{
		Date:   row[KeyDate],
		Region: row[KeyRegion],
		City:   row[KeyCity],
		RawLon: row[KeyLon],
		RawLat: row[KeyLat],
	}
	for i := 0; i < ValueColumns; i++ {
		rec.Values[i] = row[ValueKey(i+1)]
	}
	return rec
}

// RecordsFromTable converts a raw sheet table (header row first) into
// records. Short rows are padded with empty cells; a table with no data
// rows yields an empty slice.
func RecordsFromTable(table [][]string) []ReportRecord {
	if len(table) < 2 {
		return nil
	}

	header := table[0]
	records := make([]ReportRecord, 0, len(table)-1)
	for _, cells := range table[1:] {
		row := make(map[string]string, len(header))
		for i, key := range header {
			if i < len(cells) {
				row[key] = cells[i]
			}
		}
		records = append(records, RecordFromRow(row))
	}
	return records
}
