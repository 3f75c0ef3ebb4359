package gsheet

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpreadsheetID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			"edit URL",
			"https://docs.google.com/spreadsheets/d/1AbC_dEf-123/edit#gid=0",
			"1AbC_dEf-123",
		},
		{
			"share URL",
			"https://docs.google.com/spreadsheets/d/1AbC_dEf-123/edit?usp=sharing",
			"1AbC_dEf-123",
		},
		{
			"bare ID passes through",
			"1AbC_dEf-123",
			"1AbC_dEf-123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SpreadsheetID(tt.input))
		})
	}
}

func TestCellString(t *testing.T) {
	assert.Equal(t, "Одеса", cellString("Одеса"))
	assert.Equal(t, "464702111", cellString(float64(464702111)))
	assert.Equal(t, "2.5", cellString(2.5))
	assert.Equal(t, "true", cellString(true))
}
