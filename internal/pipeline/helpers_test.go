package pipeline

import (
	"slices"
	"time"

	"github.com/pauljones0/cph-deal-finder/internal/models"
)

func price(f float64) *float64 { return &f }

func at(t time.Time) models.Timestamp { return models.Timestamp{Time: t} }

func ids(deals []models.Deal) []string {
	out := make([]string, len(deals))
	for i, d := range deals {
		out[i] = d.ID
	}
	return out
}

func sameIDs(a, b []models.Deal) bool {
	x, y := ids(a), ids(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}
