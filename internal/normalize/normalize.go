// Package normalize maps the upstream JSON shapes onto the stable types the
// dashboard renders and predicts from.
package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/kimxines02/AstroNext/internal/n2yo"
	"github.com/kimxines02/AstroNext/internal/track"
)

const unknownSatellite = "Unknown Satellite"

// VisibilityPass is one predicted visible pass over the observer.
type VisibilityPass struct {
	StartTime       time.Time `json:"start_time"`
	MaxTime         time.Time `json:"max_time"`
	EndTime         time.Time `json:"end_time"`
	StartAzimuth    float64   `json:"start_azimuth"`
	MaxElevation    float64   `json:"max_elevation"`
	EndAzimuth      float64   `json:"end_azimuth"`
	StartCompass    string    `json:"start_compass"`
	EndCompass      string    `json:"end_compass"`
	DurationSeconds int       `json:"duration_seconds"`
}

// AboveSatellite is one entry of the satellites-above-observer list.
type AboveSatellite struct {
	SatID         int               `json:"satid"`
	SatName       string            `json:"satname"`
	IntDesignator string            `json:"int_designator,omitempty"`
	LaunchDate    string            `json:"launch_date,omitempty"`
	Position      track.GeoPosition `json:"position"`
	AltitudeKm    float64           `json:"altitude_km"`
}

// Normalize dispatches raw to the normalizer for kind. The concrete result is
// a track.SatelliteSample, []VisibilityPass or []AboveSatellite.
func Normalize(kind n2yo.Kind, raw []byte, now time.Time) (any, error) {
	switch kind {
	case n2yo.KindPositions:
		return Positions(raw, now)
	case n2yo.KindVisualPasses:
		return VisualPasses(raw)
	case n2yo.KindAbove:
		return Above(raw)
	default:
		return nil, fmt.Errorf("%w: unknown request kind %q", ErrMalformedUpstreamShape, kind)
	}
}

type positionsBody struct {
	Error     string                       `json:"error"`
	Info      map[string]json.RawMessage   `json:"info"`
	Positions []map[string]json.RawMessage `json:"positions"`
}

// Positions extracts the first position record. satlatitude and satlongitude
// are required; satlatvelocity and satlongvelocity default to zero. now is
// used as the observation time when the record has no timestamp.
func Positions(raw []byte, now time.Time) (track.SatelliteSample, error) {
	var body positionsBody
	if err := decode(raw, &body); err != nil {
		return track.SatelliteSample{}, err
	}
	if body.Error != "" {
		return track.SatelliteSample{}, &ReportedError{Message: body.Error}
	}
	if len(body.Positions) == 0 {
		return track.SatelliteSample{}, fmt.Errorf("%w: positions array is missing or empty", ErrInvalidPositionData)
	}

	rec := body.Positions[0]
	lat, ok := number(rec["satlatitude"])
	if !ok {
		return track.SatelliteSample{}, fmt.Errorf("%w: satlatitude %s", ErrInvalidPositionData, describe(rec["satlatitude"]))
	}
	lng, ok := number(rec["satlongitude"])
	if !ok {
		return track.SatelliteSample{}, fmt.Errorf("%w: satlongitude %s", ErrInvalidPositionData, describe(rec["satlongitude"]))
	}
	pos, err := track.NewGeoPosition(lat, lng)
	if err != nil {
		return track.SatelliteSample{}, fmt.Errorf("%w: %v", ErrInvalidPositionData, err)
	}

	var vel track.Velocity
	if v, ok := number(rec["satlatvelocity"]); ok {
		vel.DLat = v
	}
	if v, ok := number(rec["satlongvelocity"]); ok {
		vel.DLng = v
	}

	observedAt := now.UTC()
	if ts, ok := number(rec["timestamp"]); ok && ts > 0 {
		observedAt = time.Unix(int64(ts), 0).UTC()
	}

	name := unknownSatellite
	if s, ok := text(body.Info["satname"]); ok && s != "" {
		name = s
	}

	return track.SatelliteSample{
		Name:       name,
		Position:   pos,
		Velocity:   vel,
		ObservedAt: observedAt,
	}, nil
}

type passesBody struct {
	Error    string                     `json:"error"`
	Info     map[string]json.RawMessage `json:"info"`
	Passes   *[]passRecord              `json:"passes"`
	NextPass *[]passRecord              `json:"nextPass"`
}

type passRecord struct {
	StartAz        float64 `json:"startAz"`
	StartAzCompass string  `json:"startAzCompass"`
	StartUTC       int64   `json:"startUTC"`
	MaxEl          float64 `json:"maxEl"`
	MaxUTC         int64   `json:"maxUTC"`
	EndAz          float64 `json:"endAz"`
	EndAzCompass   string  `json:"endAzCompass"`
	EndUTC         int64   `json:"endUTC"`
	Duration       int     `json:"duration"`
}

// VisualPasses converts the passes (or nextPass) array, turning epoch-second
// timestamps into UTC instants. An empty array, or an absent one alongside
// info.passescount == 0, yields ErrNoUpcomingPasses. An absent array without
// that count is ErrMalformedUpstreamShape.
func VisualPasses(raw []byte) ([]VisibilityPass, error) {
	var body passesBody
	if err := decode(raw, &body); err != nil {
		return nil, err
	}
	if body.Error != "" {
		return nil, &ReportedError{Message: body.Error}
	}

	records := body.Passes
	if records == nil {
		records = body.NextPass
	}
	if records == nil {
		if count, ok := number(body.Info["passescount"]); ok && count == 0 {
			return nil, ErrNoUpcomingPasses
		}
		return nil, fmt.Errorf("%w: passes array is missing", ErrMalformedUpstreamShape)
	}
	if len(*records) == 0 {
		return nil, ErrNoUpcomingPasses
	}

	passes := make([]VisibilityPass, 0, len(*records))
	for _, r := range *records {
		passes = append(passes, VisibilityPass{
			StartTime:       time.Unix(r.StartUTC, 0).UTC(),
			MaxTime:         time.Unix(r.MaxUTC, 0).UTC(),
			EndTime:         time.Unix(r.EndUTC, 0).UTC(),
			StartAzimuth:    r.StartAz,
			MaxElevation:    r.MaxEl,
			EndAzimuth:      r.EndAz,
			StartCompass:    r.StartAzCompass,
			EndCompass:      r.EndAzCompass,
			DurationSeconds: r.Duration,
		})
	}
	return passes, nil
}

type aboveBody struct {
	Error string          `json:"error"`
	Above json.RawMessage `json:"above"`
}

type aboveRecord struct {
	SatID         int             `json:"satid"`
	SatName       string          `json:"satname"`
	IntDesignator string          `json:"intDesignator"`
	LaunchDate    string          `json:"launchDate"`
	SatLat        json.RawMessage `json:"satlat"`
	SatLng        json.RawMessage `json:"satlng"`
	SatAlt        json.RawMessage `json:"satalt"`
}

// Above converts the above array. A missing or non-array field is
// ErrMalformedUpstreamShape; an empty array is ErrEmptyResult.
func Above(raw []byte) ([]AboveSatellite, error) {
	var body aboveBody
	if err := decode(raw, &body); err != nil {
		return nil, err
	}
	if body.Error != "" {
		return nil, &ReportedError{Message: body.Error}
	}

	trimmed := strings.TrimSpace(string(body.Above))
	if !strings.HasPrefix(trimmed, "[") {
		return nil, fmt.Errorf("%w: above is not an array", ErrMalformedUpstreamShape)
	}

	var records []aboveRecord
	if err := json.Unmarshal(body.Above, &records); err != nil {
		return nil, fmt.Errorf("%w: above records: %v", ErrMalformedUpstreamShape, err)
	}
	if len(records) == 0 {
		return nil, ErrEmptyResult
	}

	sats := make([]AboveSatellite, 0, len(records))
	for _, r := range records {
		s := AboveSatellite{
			SatID:         r.SatID,
			SatName:       r.SatName,
			IntDesignator: r.IntDesignator,
			LaunchDate:    r.LaunchDate,
		}
		lat, latOK := number(r.SatLat)
		lng, lngOK := number(r.SatLng)
		if latOK && lngOK {
			if p, err := track.NewGeoPosition(lat, lng); err == nil {
				s.Position = p
			}
		}
		if alt, ok := number(r.SatAlt); ok {
			s.AltitudeKm = alt
		}
		sats = append(sats, s)
	}
	return sats, nil
}

func decode(raw []byte, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedUpstreamShape, err)
	}
	return nil
}

// number accepts a JSON number or a numeric string and reports whether the
// value is present and finite.
func number(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, !math.IsNaN(f) && !math.IsInf(f, 0)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func text(raw json.RawMessage) (string, bool) {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return "", false
	}
	return s, true
}

func describe(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "is missing"
	}
	return fmt.Sprintf("%s is not a number", raw)
}
