package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/paulmach/orb"
)

// DefaultCoordScale is the fixed-point divisor for coordinates exported as
// degrees × 10^7. Tied to the known export format of the feed; other feeds
// can configure a different scale on the Normalizer.
const DefaultCoordScale = 1e7

// Coordinate normalization failure kinds. The affected row is excluded from
// geospatial output, never the whole run.
var (
	ErrMissingCoordinate = errors.New("missing coordinate")
	ErrInvalidFormat     = errors.New("invalid coordinate format")
	ErrZeroCoordinate    = errors.New("zero coordinate")
	ErrOutOfRange        = errors.New("coordinate out of range")
)

// FailureKind maps a normalization error to a short label suitable for
// metric values and log fields. Returns "" for nil or foreign errors.
func FailureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingCoordinate):
		return "missing"
	case errors.Is(err, ErrInvalidFormat):
		return "invalid_format"
	case errors.Is(err, ErrZeroCoordinate):
		return "zero"
	case errors.Is(err, ErrOutOfRange):
		return "out_of_range"
	default:
		return ""
	}
}

// Normalizer converts raw coordinate strings into WGS-84 degree points.
// The zero value uses DefaultCoordScale.
type Normalizer struct {
	// Scale divides a coordinate whose magnitude exceeds the valid degree
	// range, recovering fixed-point integer exports. Values <= 0 fall back
	// to DefaultCoordScale.
	Scale float64
}

// Normalize parses and validates a raw (longitude, latitude) pair. The
// returned point is orb's (lon, lat) order. Pure and deterministic: every
// input maps to a valid point or exactly one failure kind, and an already
// normalized pair round-trips unchanged.
func (n Normalizer) Normalize(rawLon, rawLat string) (orb.Point, error) {
	lonStr := strings.TrimSpace(rawLon)
	latStr := strings.TrimSpace(rawLat)
	if lonStr == "" || latStr == "" {
		return orb.Point{}, fmt.Errorf("lon=%q lat=%q: %w", rawLon, rawLat, ErrMissingCoordinate)
	}

	lon, ok := ParseDecimal(lonStr)
	if !ok {
		return orb.Point{}, fmt.Errorf("longitude %q: %w", rawLon, ErrInvalidFormat)
	}
	lat, ok := ParseDecimal(latStr)
	if !ok {
		return orb.Point{}, fmt.Errorf("latitude %q: %w", rawLat, ErrInvalidFormat)
	}

	// (0, 0) is the feed's "no location recorded" sentinel.
	if lon == 0 && lat == 0 {
		return orb.Point{}, ErrZeroCoordinate
	}

	scale := n.Scale
	if scale <= 0 {
		scale = DefaultCoordScale
	}
	if math.Abs(lat) > 90 {
		lat /= scale
	}
	if math.Abs(lon) > 180 {
		lon /= scale
	}

	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return orb.Point{}, fmt.Errorf("lon=%g lat=%g: %w", lon, lat, ErrOutOfRange)
	}
	return orb.Point{lon, lat}, nil
}
