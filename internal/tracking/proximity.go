package tracking

import (
	"github.com/JINHEE420/ShineDump-sub000/internal/shared/geo"
	"github.com/JINHEE420/ShineDump-sub000/internal/trip"
)

// ArrivalBufferM widens every arrival radius so a vehicle skirting the zone
// edge still registers.
const ArrivalBufferM = 50.0

// Target is a proximity target with its one-shot notified flag. Flags reset
// only when a new trip starts.
type Target struct {
	Kind     string // "loading" or "unloading"
	Area     trip.Area
	Notified bool
}

func newTargets(loading, unloading trip.Area) []*Target {
	return []*Target{
		{Kind: "loading", Area: loading},
		{Kind: "unloading", Area: unloading},
	}
}

func (t *Target) DistanceM(lat, lng float64) float64 {
	return geo.HaversineM(lat, lng, t.Area.Lat, t.Area.Lng)
}

// Within reports whether the position falls inside the arrival radius plus
// buffer. Loading and unloading checks are independent; no arrival ordering
// is enforced.
func (t *Target) Within(lat, lng float64) bool {
	return t.DistanceM(lat, lng) <= t.Area.RadiusM+ArrivalBufferM
}
