package domain

import "math"

// Expand applies the unary expansion rule to one record and returns its
// derived rows, eagerly. With M = floor(max(values)), the record yields M
// rows when M > 0 and none otherwise; row i (1-based) carries indicator 1
// in column k exactly when i <= value[k]. Blank or unparseable cells count
// as 0, and negative values pass through unclamped — they can never satisfy
// i <= value, so they behave like 0 without being rewritten.
func Expand(rec ReportRecord) []ExpandedRow {
	var values [ValueColumns]float64
	maxValue := math.Inf(-1)
	for i, raw := range rec.Values {
		values[i] = parseDecimalOrZero(raw)
		if values[i] > maxValue {
			maxValue = values[i]
		}
	}

	limit := int(math.Floor(maxValue))
	if limit <= 0 {
		return nil
	}

	rows := make([]ExpandedRow, 0, limit)
	for i := 1; i <= limit; i++ {
		row := ExpandedRow{
			Date:   rec.Date,
			Region: rec.Region,
			City:   rec.City,
			RawLon: rec.RawLon,
			RawLat: rec.RawLat,
		}
		for k := 0; k < ValueColumns; k++ {
			if float64(i) <= values[k] {
				row.Indicators[k] = 1
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// ExpandAll expands every record and concatenates the contributions in
// source order, so output ordering is (source index, then row index) and
// repeat runs over the same table are byte-identical. A record that
// contributes nothing is skipped silently.
func ExpandAll(records []ReportRecord) []ExpandedRow {
	var out []ExpandedRow
	for _, rec := range records {
		out = append(out, Expand(rec)...)
	}
	return out
}
