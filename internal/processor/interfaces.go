package processor

import (
	"context"

	"github.com/pauljones0/cph-deal-finder/internal/models"
)

// DealSource abstracts the catalog API.
type DealSource interface {
	Deals(ctx context.Context, category models.Category, maxPrice float64, limit int) ([]models.Deal, error)
	Search(ctx context.Context, query string, maxPrice float64) ([]models.Deal, error)
	Expiring(ctx context.Context, hours int) ([]models.Deal, error)
}

// LocationLookup answers location queries without waiting on the remote geocoder.
type LocationLookup interface {
	Peek(ctx context.Context, label string) (models.Coordinate, bool)
}

// LocationWarmer resolves the locations of a deal collection in the background.
type LocationWarmer interface {
	Refresh(deals []models.Deal)
	Pending() bool
}
