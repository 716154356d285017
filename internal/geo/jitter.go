package geo

import (
	"math"
	"unicode/utf16"

	"github.com/pauljones0/cph-deal-finder/internal/models"
)

// JitterRadius is the largest marker offset in degrees.
const JitterRadius = 0.002

// Jitter offsets base deterministically by dealID so deals sharing a neighborhood
// coordinate do not stack on the map. The hash is the sum of the ID's UTF-16 code units.
func Jitter(dealID string, base models.Coordinate) models.Coordinate {
	hash := 0
	for _, u := range utf16.Encode([]rune(dealID)) {
		hash += int(u)
	}
	angle := float64(hash%360) * math.Pi / 180
	factor := float64(hash%5+1) / 5
	return models.Coordinate{
		Lat: base.Lat + math.Cos(angle)*JitterRadius*factor,
		Lng: base.Lng + math.Sin(angle)*JitterRadius*factor,
	}
}
