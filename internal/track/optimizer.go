package track

import (
	"math"

	"github.com/JINHEE420/ShineDump-sub000/internal/shared/geo"
)

// DefaultToleranceM is the perpendicular-distance tolerance used when
// simplifying a track before distance computation.
const DefaultToleranceM = 5.0

// Point is one sample of a recorded track. The optimizer never mutates its
// input; every stage returns a fresh slice.
type Point struct {
	Lat      float64
	Lng      float64
	SpeedMps float64
}

// Optimize runs the full cleanup pipeline over one trip's ordered samples:
// zero-speed filtering, moving-average smoothing and perpendicular-distance
// simplification. The result is suitable for distance summation.
func Optimize(points []Point) []Point {
	filtered := FilterZeroSpeed(points)
	smoothed := Smooth(filtered)
	return Simplify(smoothed, DefaultToleranceM)
}

// OptimizedDistanceM runs Optimize and sums great-circle distances between
// the surviving points.
func OptimizedDistanceM(points []Point) float64 {
	return TotalDistanceM(Optimize(points))
}

// FilterZeroSpeed drops samples recorded at zero speed. The first sample is
// always kept so the track stays anchored at the trip origin.
func FilterZeroSpeed(points []Point) []Point {
	if len(points) == 0 {
		return nil
	}
	out := make([]Point, 0, len(points))
	out = append(out, points[0])
	for _, p := range points[1:] {
		if p.SpeedMps != 0 {
			out = append(out, p)
		}
	}
	return out
}

// Smooth applies a centered moving average of window 3 over latitude and
// longitude. The endpoints are preserved verbatim.
func Smooth(points []Point) []Point {
	out := make([]Point, len(points))
	copy(out, points)
	for i := 1; i < len(points)-1; i++ {
		out[i].Lat = (points[i-1].Lat + points[i].Lat + points[i+1].Lat) / 3
		out[i].Lng = (points[i-1].Lng + points[i].Lng + points[i+1].Lng) / 3
	}
	return out
}

// Simplify reduces the track with recursive perpendicular-distance splitting:
// a segment keeps its point of maximum deviation from the chord between the
// segment endpoints only when that deviation exceeds toleranceM.
func Simplify(points []Point, toleranceM float64) []Point {
	if len(points) <= 2 {
		out := make([]Point, len(points))
		copy(out, points)
		return out
	}

	keep := make([]bool, len(points))
	keep[0] = true
	keep[len(points)-1] = true
	simplifySegment(points, 0, len(points)-1, toleranceM, keep)

	out := make([]Point, 0, len(points))
	for i, k := range keep {
		if k {
			out = append(out, points[i])
		}
	}
	return out
}

func simplifySegment(points []Point, first, last int, toleranceM float64, keep []bool) {
	if last-first < 2 {
		return
	}

	maxDist := 0.0
	maxIdx := first
	for i := first + 1; i < last; i++ {
		d := perpendicularDistanceM(points[i], points[first], points[last])
		if d > maxDist {
			maxDist = d
			maxIdx = i
		}
	}

	if maxDist > toleranceM {
		keep[maxIdx] = true
		simplifySegment(points, first, maxIdx, toleranceM, keep)
		simplifySegment(points, maxIdx, last, toleranceM, keep)
	}
}

// TotalDistanceM sums the great-circle distances between consecutive points.
func TotalDistanceM(points []Point) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += geo.HaversineM(points[i-1].Lat, points[i-1].Lng, points[i].Lat, points[i].Lng)
	}
	return total
}

// perpendicularDistanceM measures how far p strays from the chord between a
// and b, using an equirectangular projection centered on the chord. Accurate
// enough at track scale.
func perpendicularDistanceM(p, a, b Point) float64 {
	const earthRadiusM = 6371000.0
	latRef := (a.Lat + b.Lat) / 2 * math.Pi / 180
	cosRef := math.Cos(latRef)

	ax, ay := 0.0, 0.0
	bx := (b.Lng - a.Lng) * math.Pi / 180 * cosRef * earthRadiusM
	by := (b.Lat - a.Lat) * math.Pi / 180 * earthRadiusM
	px := (p.Lng - a.Lng) * math.Pi / 180 * cosRef * earthRadiusM
	py := (p.Lat - a.Lat) * math.Pi / 180 * earthRadiusM

	dx, dy := bx-ax, by-ay
	segLenSq := dx*dx + dy*dy
	if segLenSq == 0 {
		return math.Hypot(px-ax, py-ay)
	}

	t := ((px-ax)*dx + (py-ay)*dy) / segLenSq
	t = math.Max(0, math.Min(1, t))
	cx, cy := ax+t*dx, ay+t*dy
	return math.Hypot(px-cx, py-cy)
}
