package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected float64
		ok       bool
	}{
		{"plain integer", "3", 3, true},
		{"period decimal", "2.5", 2.5, true},
		{"comma decimal", "2,5", 2.5, true},
		{"negative comma decimal", "-1,25", -1.25, true},
		{"surrounding whitespace", "  7,5  ", 7.5, true},
		{"fixed-point coordinate", "464702111", 464702111, true},
		{"empty", "", 0, false},
		{"whitespace only", "   ", 0, false},
		{"non-numeric", "n/a", 0, false},
		{"lone separator", ",", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := ParseDecimal(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, v)
		})
	}
}

func TestParseDecimalOrZero(t *testing.T) {
	assert.Equal(t, 2.5, parseDecimalOrZero("2,5"))
	assert.Equal(t, 0.0, parseDecimalOrZero(""))
	assert.Equal(t, 0.0, parseDecimalOrZero("abc"))
	assert.Equal(t, -3.0, parseDecimalOrZero("-3"))
}
