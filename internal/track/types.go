package track

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidPosition is returned when a coordinate is not finite or falls
// outside the valid latitude/longitude range.
var ErrInvalidPosition = errors.New("invalid position")

// GeoPosition is a point on the Earth's surface in degrees.
type GeoPosition struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// NewGeoPosition returns a validated position.
func NewGeoPosition(lat, lng float64) (GeoPosition, error) {
	p := GeoPosition{Latitude: lat, Longitude: lng}
	if err := p.Validate(); err != nil {
		return GeoPosition{}, err
	}
	return p, nil
}

// Validate checks lat ∈ [-90,90] and lng ∈ [-180,180], rejecting NaN and Inf.
func (p GeoPosition) Validate() error {
	if !finite(p.Latitude) || p.Latitude < -90 || p.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v", ErrInvalidPosition, p.Latitude)
	}
	if !finite(p.Longitude) || p.Longitude < -180 || p.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v", ErrInvalidPosition, p.Longitude)
	}
	return nil
}

// Velocity is a linear ground-track rate in degrees per second.
type Velocity struct {
	DLat float64 `json:"dlat"`
	DLng float64 `json:"dlng"`
}

// SatelliteSample is one observation of a satellite, produced once per poll
// tick and never modified afterwards.
type SatelliteSample struct {
	Name       string      `json:"name"`
	Position   GeoPosition `json:"position"`
	Velocity   Velocity    `json:"velocity"`
	ObservedAt time.Time   `json:"observed_at"`
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
