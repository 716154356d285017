package geo

import (
	"math"

	"github.com/pauljones0/cph-deal-finder/internal/models"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// DistanceKm returns the haversine great-circle distance between a and b in kilometres.
func DistanceKm(a, b models.Coordinate) float64 {
	φ1 := a.Lat * math.Pi / 180
	φ2 := b.Lat * math.Pi / 180
	Δφ := (b.Lat - a.Lat) * math.Pi / 180
	Δλ := (b.Lng - a.Lng) * math.Pi / 180
	h := math.Sin(Δφ/2)*math.Sin(Δφ/2) + math.Cos(φ1)*math.Cos(φ2)*math.Sin(Δλ/2)*math.Sin(Δλ/2)
	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// DistanceFrom builds a per-deal distance function around a lookup of resolved locations.
// Deals whose location the lookup cannot place report false.
func DistanceFrom(user models.Coordinate, lookup func(label string) (models.Coordinate, bool)) func(models.Deal) (float64, bool) {
	return func(d models.Deal) (float64, bool) {
		if d.Location == "" {
			return 0, false
		}
		c, ok := lookup(d.Location)
		if !ok {
			return 0, false
		}
		return DistanceKm(user, c), true
	}
}
