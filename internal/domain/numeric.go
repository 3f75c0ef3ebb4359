package domain

import (
	"strconv"
	"strings"
)

// ParseDecimal parses a numeric string that may use a comma as the decimal
// separator, as exported by localized spreadsheets. Returns false for empty
// or non-numeric input.
func ParseDecimal(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.Replace(s, ",", ".", 1)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseDecimalOrZero coerces empty or unparseable input to 0. This is the
// value-column policy: one bad cell never drops its record.
func parseDecimalOrZero(s string) float64 {
	v, ok := ParseDecimal(s)
	if !ok {
		return 0
	}
	return v
}
