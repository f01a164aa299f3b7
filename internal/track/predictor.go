// Package track holds the satellite ground-track model: validated positions,
// the append-only traveled track and the dead-reckoning predictor.
package track

import "time"

const (
	DefaultSteps    = 5
	DefaultInterval = 5 * time.Second
)

// Predict extrapolates the sample's position linearly: point i (1-based) is
// position + velocity*(i*interval). It does not model orbital curvature or
// wrap around the poles and antimeridian, so longitudes may leave
// [-180,180]; callers draw them unnormalized. A zero velocity yields steps
// copies of the current position.
func Predict(s SatelliteSample, steps int, interval time.Duration) []GeoPosition {
	if steps <= 0 {
		return nil
	}

	dt := interval.Seconds()
	path := make([]GeoPosition, 0, steps)
	for i := 1; i <= steps; i++ {
		elapsed := float64(i) * dt
		path = append(path, GeoPosition{
			Latitude:  s.Position.Latitude + s.Velocity.DLat*elapsed,
			Longitude: s.Position.Longitude + s.Velocity.DLng*elapsed,
		})
	}
	return path
}
