package pipeline

import (
	"cmp"
	"math"
	"slices"

	"github.com/pauljones0/cph-deal-finder/internal/models"
)

// SortKey selects the ranking order.
type SortKey string

const (
	SortNewest   SortKey = "newest"
	SortCheapest SortKey = "cheapest"
	SortDiscount SortKey = "discount"
	SortExpiring SortKey = "expiring"
	SortNearest  SortKey = "nearest"
)

// ParseSortKey maps a user-supplied value to a sort key. Unknown values fall back to newest.
func ParseSortKey(s string) (SortKey, bool) {
	switch k := SortKey(s); k {
	case SortNewest, SortCheapest, SortDiscount, SortExpiring, SortNearest:
		return k, true
	default:
		return SortNewest, false
	}
}

// DistanceFunc returns the distance in kilometres from the user to the deal's location,
// or false when the location is unresolved.
type DistanceFunc func(models.Deal) (float64, bool)

// Rank returns a newly ordered copy of deals. Sorting is stable and missing values
// never cause a panic: absent prices, expiries and distances sort last, absent discounts count as 0.
func Rank(deals []models.Deal, key SortKey, dist DistanceFunc) []models.Deal {
	out := slices.Clone(deals)
	switch key {
	case SortNewest:
		slices.SortStableFunc(out, func(a, b models.Deal) int {
			return b.AddedAt().Compare(a.AddedAt())
		})
	case SortCheapest:
		slices.SortStableFunc(out, func(a, b models.Deal) int {
			return cmp.Compare(priceKey(a), priceKey(b))
		})
	case SortDiscount:
		slices.SortStableFunc(out, func(a, b models.Deal) int {
			return cmp.Compare(discountKey(b), discountKey(a))
		})
	case SortExpiring:
		slices.SortStableFunc(out, func(a, b models.Deal) int {
			return cmp.Compare(expiryKey(a), expiryKey(b))
		})
	case SortNearest:
		if dist == nil {
			return out
		}
		distanceKey := func(d models.Deal) float64 {
			if km, ok := dist(d); ok && !math.IsNaN(km) {
				return km
			}
			return math.Inf(1)
		}
		slices.SortStableFunc(out, func(a, b models.Deal) int {
			return cmp.Compare(distanceKey(a), distanceKey(b))
		})
	}
	return out
}

// Order ranks deals for a view. The expiring view always sorts soonest-first regardless of
// the chosen key. When near-me is active with a known user position the result is re-sorted
// by distance, which replaces the primary order rather than refining it.
func Order(deals []models.Deal, c Criteria, dist DistanceFunc) []models.Deal {
	key := c.Sort
	if c.Source.Kind() == SourceExpiring {
		key = SortExpiring
	}
	out := Rank(deals, key, dist)
	if _, ok := c.UserPosition(); ok && dist != nil && key != SortNearest {
		out = Rank(out, SortNearest, dist)
	}
	return out
}

func priceKey(d models.Deal) float64 {
	if d.DealPrice == nil {
		return math.Inf(1)
	}
	return *d.DealPrice
}

func discountKey(d models.Deal) float64 {
	if d.DiscountPct == nil {
		return 0
	}
	return *d.DiscountPct
}

func expiryKey(d models.Deal) int64 {
	if d.Expiry.IsZero() {
		return math.MaxInt64
	}
	return d.Expiry.UnixNano()
}
