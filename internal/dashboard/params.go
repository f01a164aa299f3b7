package dashboard

import (
	"github.com/kimxines02/AstroNext/internal/n2yo"
)

// Params are the user-adjustable inputs shared by the three views.
type Params struct {
	SatelliteID   int     `json:"satellite_id"`
	ObserverLat   float64 `json:"observer_lat"`
	ObserverLng   float64 `json:"observer_lng"`
	ObserverAlt   float64 `json:"observer_alt"`
	PassDays      int     `json:"pass_days"`
	MinVisibility int     `json:"min_visibility"`
	SearchRadius  int     `json:"search_radius"`
}

// DefaultParams tracks the ISS from Manila.
func DefaultParams() Params {
	return Params{
		SatelliteID:   25544,
		ObserverLat:   14.5995,
		ObserverLng:   120.9842,
		ObserverAlt:   0,
		PassDays:      1,
		MinVisibility: 90,
		SearchRadius:  n2yo.DefaultSearchRadius,
	}
}

// Validate checks every request the params produce.
func (p Params) Validate() error {
	for _, req := range []n2yo.Request{p.positionsRequest(), p.passesRequest(), p.aboveRequest()} {
		if err := req.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (p Params) positionsRequest() n2yo.Request {
	return n2yo.PositionsRequest(p.SatelliteID)
}

func (p Params) passesRequest() n2yo.Request {
	return n2yo.VisualPassesRequest(p.SatelliteID, p.ObserverLat, p.ObserverLng, p.ObserverAlt, p.PassDays, p.MinVisibility)
}

func (p Params) aboveRequest() n2yo.Request {
	return n2yo.AboveRequest(p.ObserverLat, p.ObserverLng, p.ObserverAlt, p.SearchRadius)
}

// changedViews names the views whose upstream request differs between old
// and p. Equal requests share a cache key, so comparing keys is exact.
func (p Params) changedViews(old Params) []string {
	var views []string
	if p.positionsRequest().Key() != old.positionsRequest().Key() {
		views = append(views, ViewPosition)
	}
	if p.passesRequest().Key() != old.passesRequest().Key() {
		views = append(views, ViewPasses)
	}
	if p.aboveRequest().Key() != old.aboveRequest().Key() {
		views = append(views, ViewAbove)
	}
	return views
}
