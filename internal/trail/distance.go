package trail

import (
	"math"

	"github.com/golang/geo/s2"
)

// EarthRadiusKm is the mean earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance between a and b in kilometres.
func HaversineKm(a, b LatLng) float64 {
	p1 := s2.LatLngFromDegrees(a.Latitude, a.Longitude)
	p2 := s2.LatLngFromDegrees(b.Latitude, b.Longitude)
	return p1.Distance(p2).Radians() * EarthRadiusKm
}

// InitialBearing returns the forward azimuth from a to b in degrees [0, 360).
func InitialBearing(a, b LatLng) float64 {
	p1 := s2.LatLngFromDegrees(a.Latitude, a.Longitude)
	p2 := s2.LatLngFromDegrees(b.Latitude, b.Longitude)

	lat1 := p1.Lat.Radians()
	lat2 := p2.Lat.Radians()
	dLng := p2.Lng.Radians() - p1.Lng.Radians()

	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)
	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

// PathDistanceKm sums the haversine distance between consecutive points.
func PathDistanceKm(path []LatLng) float64 {
	total := 0.0
	for i := 1; i < len(path); i++ {
		total += HaversineKm(path[i-1], path[i])
	}
	return total
}

// DistanceAccumulator folds samples into a running distance in arrival order.
// The zero value is ready to use.
type DistanceAccumulator struct {
	last    *LatLng
	totalKm float64
}

// Add records p and returns the distance from the previous point.
// The first point contributes zero.
func (a *DistanceAccumulator) Add(p LatLng) float64 {
	if a.last == nil {
		a.last = &p
		return 0
	}
	delta := HaversineKm(*a.last, p)
	a.totalKm += delta
	a.last = &p
	return delta
}

// TotalKm returns the accumulated distance.
func (a *DistanceAccumulator) TotalKm() float64 {
	return a.totalKm
}

// Reset clears the accumulator.
func (a *DistanceAccumulator) Reset() {
	a.last = nil
	a.totalKm = 0
}
