package web

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karpatalabs/incident-map-etl/internal/domain"
)

func mapRow(city, lon, lat string) domain.ExpandedRow {
	return domain.ExpandedRow{Date: "01.05.2024", City: city, RawLon: lon, RawLat: lat}
}

func TestBuildMapView(t *testing.T) {
	var n domain.Normalizer

	t.Run("plots normalized points and centers on their mean", func(t *testing.T) {
		rows := []domain.ExpandedRow{
			mapRow("A", "30.0", "46.0"),
			mapRow("B", "32.0", "48.0"),
		}
		mv, dropped, err := BuildMapView(rows, n, 1000)
		require.NoError(t, err)
		require.NotNil(t, mv)

		assert.Equal(t, 2, mv.Points)
		assert.Equal(t, 47.0, mv.CenterLat)
		assert.Equal(t, 31.0, mv.CenterLon)
		assert.Empty(t, dropped)
		assert.Contains(t, string(mv.GeoJSON), `"FeatureCollection"`)
		assert.Contains(t, string(mv.GeoJSON), `"city":"A"`)
	})

	t.Run("drops unusable rows by failure kind", func(t *testing.T) {
		rows := []domain.ExpandedRow{
			mapRow("ok", "30.0", "46.0"),
			mapRow("zero", "0", "0"),
			mapRow("blank", "", ""),
			mapRow("junk", "north", "46.0"),
		}
		mv, dropped, err := BuildMapView(rows, n, 1000)
		require.NoError(t, err)
		require.NotNil(t, mv)

		assert.Equal(t, 1, mv.Points)
		assert.Equal(t, map[string]int{"zero": 1, "missing": 1, "invalid_format": 1}, dropped)
	})

	t.Run("caps plotted points", func(t *testing.T) {
		rows := []domain.ExpandedRow{
			mapRow("A", "30.0", "46.0"),
			mapRow("B", "31.0", "47.0"),
			mapRow("C", "32.0", "48.0"),
		}
		mv, _, err := BuildMapView(rows, n, 2)
		require.NoError(t, err)
		require.NotNil(t, mv)
		assert.Equal(t, 2, mv.Points)
	})

	t.Run("no plottable rows yields nil view", func(t *testing.T) {
		rows := []domain.ExpandedRow{mapRow("zero", "0", "0")}
		mv, dropped, err := BuildMapView(rows, n, 1000)
		require.NoError(t, err)
		assert.Nil(t, mv)
		assert.Equal(t, 1, dropped["zero"])
	})

	t.Run("empty input yields nil view", func(t *testing.T) {
		mv, dropped, err := BuildMapView(nil, n, 1000)
		require.NoError(t, err)
		assert.Nil(t, mv)
		assert.Empty(t, dropped)
	})

	t.Run("fixed-point coordinates are rescaled before plotting", func(t *testing.T) {
		rows := []domain.ExpandedRow{mapRow("Одеса", "307306393", "464702111")}
		mv, _, err := BuildMapView(rows, n, 1000)
		require.NoError(t, err)
		require.NotNil(t, mv)
		assert.InDelta(t, 46.4702111, mv.CenterLat, 1e-9)
		assert.InDelta(t, 30.7306393, mv.CenterLon, 1e-9)
	})
}
