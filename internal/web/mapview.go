package web

import (
	"encoding/json"
	"fmt"
	"html/template"

	"github.com/montanaflynn/stats"
	"github.com/paulmach/orb/geojson"

	"github.com/karpatalabs/incident-map-etl/internal/domain"
)

// MapView is the Leaflet view model: a GeoJSON payload of point features
// and the map center, computed as the mean of the plotted coordinates.
type MapView struct {
	CenterLat float64
	CenterLon float64
	Points    int
	GeoJSON   template.JS
}

// BuildMapView normalizes row coordinates and assembles the map payload,
// capped at maxPoints plotted features. Rows that fail normalization are
// counted per failure kind in the returned map and excluded from the view
// but not from the table. Returns a nil view when nothing is plottable.
func BuildMapView(rows []domain.ExpandedRow, normalizer domain.Normalizer, maxPoints int) (*MapView, map[string]int, error) {
	dropped := make(map[string]int)
	fc := geojson.NewFeatureCollection()
	var lats, lons []float64

	for _, row := range rows {
		if len(fc.Features) >= maxPoints {
			break
		}
		pt, err := normalizer.Normalize(row.RawLon, row.RawLat)
		if err != nil {
			dropped[domain.FailureKind(err)]++
			continue
		}

		f := geojson.NewFeature(pt)
		f.Properties["city"] = row.City
		f.Properties["date"] = row.Date
		fc.Append(f)
		lons = append(lons, pt.Lon())
		lats = append(lats, pt.Lat())
	}

	if len(fc.Features) == 0 {
		return nil, dropped, nil
	}

	centerLat, err := stats.Mean(lats)
	if err != nil {
		return nil, dropped, fmt.Errorf("map center latitude: %w", err)
	}
	centerLon, err := stats.Mean(lons)
	if err != nil {
		return nil, dropped, fmt.Errorf("map center longitude: %w", err)
	}

	payload, err := json.Marshal(fc)
	if err != nil {
		return nil, dropped, fmt.Errorf("encode geojson: %w", err)
	}

	return &MapView{
		CenterLat: centerLat,
		CenterLon: centerLon,
		Points:    len(fc.Features),
		GeoJSON:   template.JS(payload),
	}, dropped, nil
}
