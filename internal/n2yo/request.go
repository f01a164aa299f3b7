// Package n2yo builds and executes the three N2YO REST queries the dashboard
// needs, either directly against the upstream API or through the proxy
// endpoint of another AstroNext process.
package n2yo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
)

// Kind selects one of the supported upstream queries.
type Kind string

const (
	KindPositions    Kind = "positions"
	KindVisualPasses Kind = "visualpasses"
	KindAbove        Kind = "above"
)

// Fixed query inputs the dashboard never varies.
const (
	PositionSeconds     = 30
	AboveCategory       = 18
	DefaultSearchRadius = 90
	MaxPassDays         = 10
)

// ErrInvalidRequest is returned for unknown kinds, missing parameters and
// values outside their accepted range.
var ErrInvalidRequest = errors.New("invalid request parameters")

// Fetcher returns the raw JSON body for a request. Both the upstream Client
// and the ProxyClient implement it, as does the caching proxy service.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (json.RawMessage, error)
}

// Kinds lists the supported kinds in a stable order.
func Kinds() []Kind {
	return []Kind{KindPositions, KindVisualPasses, KindAbove}
}

// Request is a typed upstream query. Only the fields relevant to Kind are
// used.
type Request struct {
	Kind          Kind
	SatelliteID   int
	ObserverLat   float64
	ObserverLng   float64
	ObserverAlt   float64
	Days          int
	MinVisibility int
	SearchRadius  int
}

// PositionsRequest returns the current-position query for satID.
func PositionsRequest(satID int) Request {
	return Request{Kind: KindPositions, SatelliteID: satID}
}

// VisualPassesRequest returns the visible-passes query for an observer.
func VisualPassesRequest(satID int, lat, lng, alt float64, days, minVisibility int) Request {
	return Request{
		Kind:          KindVisualPasses,
		SatelliteID:   satID,
		ObserverLat:   lat,
		ObserverLng:   lng,
		ObserverAlt:   alt,
		Days:          days,
		MinVisibility: minVisibility,
	}
}

// AboveRequest returns the satellites-above query for an observer.
func AboveRequest(lat, lng, alt float64, radius int) Request {
	return Request{
		Kind:         KindAbove,
		ObserverLat:  lat,
		ObserverLng:  lng,
		ObserverAlt:  alt,
		SearchRadius: radius,
	}
}

// Validate checks the fields Kind requires.
func (r Request) Validate() error {
	switch r.Kind {
	case KindPositions:
		return validateSatellite(r.SatelliteID)
	case KindVisualPasses:
		if err := validateSatellite(r.SatelliteID); err != nil {
			return err
		}
		if err := validateObserver(r.ObserverLat, r.ObserverLng, r.ObserverAlt); err != nil {
			return err
		}
		if r.Days < 1 || r.Days > MaxPassDays {
			return fmt.Errorf("%w: days must be between 1 and %d, got %d", ErrInvalidRequest, MaxPassDays, r.Days)
		}
		if r.MinVisibility < 0 {
			return fmt.Errorf("%w: minVisibility must not be negative, got %d", ErrInvalidRequest, r.MinVisibility)
		}
		return nil
	case KindAbove:
		if err := validateObserver(r.ObserverLat, r.ObserverLng, r.ObserverAlt); err != nil {
			return err
		}
		if r.SearchRadius < 0 || r.SearchRadius > 90 {
			return fmt.Errorf("%w: searchRadius must be between 0 and 90, got %d", ErrInvalidRequest, r.SearchRadius)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidRequest, r.Kind)
	}
}

// Path returns the upstream path relative to the API base URL.
func (r Request) Path() string {
	switch r.Kind {
	case KindPositions:
		return fmt.Sprintf("positions/%d/0/0/0/%d", r.SatelliteID, PositionSeconds)
	case KindVisualPasses:
		return fmt.Sprintf("visualpasses/%d/%s/%s/%s/%d/%d/",
			r.SatelliteID, ftoa(r.ObserverLat), ftoa(r.ObserverLng), ftoa(r.ObserverAlt), r.Days, r.MinVisibility)
	case KindAbove:
		return fmt.Sprintf("above/%s/%s/%s/%d/%d/",
			ftoa(r.ObserverLat), ftoa(r.ObserverLng), ftoa(r.ObserverAlt), r.SearchRadius, AboveCategory)
	default:
		return ""
	}
}

// Key identifies the request for caching and coalescing. Two requests with
// the same key produce the same upstream call.
func (r Request) Key() string {
	return string(r.Kind) + ":" + r.Path()
}

// Query encodes the request as proxy endpoint query parameters. ParseQuery
// is its inverse.
func (r Request) Query() url.Values {
	q := url.Values{}
	q.Set("type", string(r.Kind))
	switch r.Kind {
	case KindPositions:
		q.Set("satelliteId", strconv.Itoa(r.SatelliteID))
	case KindVisualPasses:
		q.Set("satelliteId", strconv.Itoa(r.SatelliteID))
		q.Set("observerLat", ftoa(r.ObserverLat))
		q.Set("observerLng", ftoa(r.ObserverLng))
		q.Set("observerAlt", ftoa(r.ObserverAlt))
		q.Set("days", strconv.Itoa(r.Days))
		q.Set("minVisibility", strconv.Itoa(r.MinVisibility))
	case KindAbove:
		q.Set("observerLat", ftoa(r.ObserverLat))
		q.Set("observerLng", ftoa(r.ObserverLng))
		q.Set("observerAlt", ftoa(r.ObserverAlt))
		q.Set("searchRadius", strconv.Itoa(r.SearchRadius))
	}
	return q
}

// ParseQuery builds a validated Request from proxy endpoint parameters.
func ParseQuery(q url.Values) (Request, error) {
	p := paramParser{q: q}
	req := Request{Kind: Kind(q.Get("type"))}

	switch req.Kind {
	case KindPositions:
		req.SatelliteID = p.intParam("satelliteId", true, 0)
	case KindVisualPasses:
		req.SatelliteID = p.intParam("satelliteId", true, 0)
		req.ObserverLat = p.floatParam("observerLat", true, 0)
		req.ObserverLng = p.floatParam("observerLng", true, 0)
		req.ObserverAlt = p.floatParam("observerAlt", true, 0)
		req.Days = p.intParam("days", true, 0)
		req.MinVisibility = p.intParam("minVisibility", true, 0)
	case KindAbove:
		req.ObserverLat = p.floatParam("observerLat", true, 0)
		req.ObserverLng = p.floatParam("observerLng", true, 0)
		req.ObserverAlt = p.floatParam("observerAlt", false, 0)
		req.SearchRadius = p.intParam("searchRadius", false, DefaultSearchRadius)
	case "":
		return Request{}, fmt.Errorf("%w: type is required", ErrInvalidRequest)
	default:
		return Request{}, fmt.Errorf("%w: unknown type %q, want one of %v", ErrInvalidRequest, req.Kind, Kinds())
	}

	if p.err != nil {
		return Request{}, p.err
	}
	if err := req.Validate(); err != nil {
		return Request{}, err
	}
	return req, nil
}

// paramParser records the first parse failure so ParseQuery can read all
// fields linearly.
type paramParser struct {
	q   url.Values
	err error
}

func (p *paramParser) raw(name string, required bool) (string, bool) {
	v := p.q.Get(name)
	if v == "" {
		if required && p.err == nil {
			p.err = fmt.Errorf("%w: %s is required", ErrInvalidRequest, name)
		}
		return "", false
	}
	return v, true
}

func (p *paramParser) intParam(name string, required bool, def int) int {
	v, ok := p.raw(name, required)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		if p.err == nil {
			p.err = fmt.Errorf("%w: %s must be an integer", ErrInvalidRequest, name)
		}
		return def
	}
	return n
}

func (p *paramParser) floatParam(name string, required bool, def float64) float64 {
	v, ok := p.raw(name, required)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		if p.err == nil {
			p.err = fmt.Errorf("%w: %s must be a finite number", ErrInvalidRequest, name)
		}
		return def
	}
	return f
}

func validateSatellite(id int) error {
	if id <= 0 {
		return fmt.Errorf("%w: satelliteId must be positive, got %d", ErrInvalidRequest, id)
	}
	return nil
}

func validateObserver(lat, lng, alt float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return fmt.Errorf("%w: observerLat out of range: %v", ErrInvalidRequest, lat)
	}
	if math.IsNaN(lng) || lng < -180 || lng > 180 {
		return fmt.Errorf("%w: observerLng out of range: %v", ErrInvalidRequest, lng)
	}
	if math.IsNaN(alt) || math.IsInf(alt, 0) {
		return fmt.Errorf("%w: observerAlt must be finite", ErrInvalidRequest)
	}
	return nil
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
