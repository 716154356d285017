package pipeline

import (
	"math"
	"strings"
	"time"

	"github.com/pauljones0/cph-deal-finder/internal/models"
)

// SourceKind names which upstream result set a view is built from.
type SourceKind int

const (
	SourceCategory SourceKind = iota
	SourceSearch
	SourceExpiring
)

func (k SourceKind) String() string {
	switch k {
	case SourceSearch:
		return "search"
	case SourceExpiring:
		return "expiring"
	default:
		return "category"
	}
}

// Source is the tagged union {Category(cat), Search(query), Expiring}.
// Construct it with CategorySource, SearchSource, ExpiringSource or NewSource.
type Source struct {
	kind     SourceKind
	category models.Category
	query    string
}

// CategorySource selects the category listing. An empty category means all categories.
func CategorySource(c models.Category) Source {
	return Source{kind: SourceCategory, category: c}
}

func SearchSource(query string) Source {
	return Source{kind: SourceSearch, query: strings.TrimSpace(query)}
}

func ExpiringSource() Source {
	return Source{kind: SourceExpiring}
}

// NewSource resolves the user's raw selections into a single source.
// Non-empty search text wins over expiring mode, which wins over the category listing.
func NewSource(category models.Category, query string, expiring bool) Source {
	switch {
	case strings.TrimSpace(query) != "":
		return SearchSource(query)
	case expiring:
		return ExpiringSource()
	default:
		return CategorySource(category)
	}
}

func (s Source) Kind() SourceKind          { return s.kind }
func (s Source) Category() models.Category { return s.category }
func (s Source) Query() string             { return s.query }

// ResultSets holds the upstream listings a source can select from.
type ResultSets struct {
	Category []models.Deal
	Search   []models.Deal
	Expiring []models.Deal
}

// Select returns the result set this source filters.
func (s Source) Select(sets ResultSets) []models.Deal {
	switch s.kind {
	case SourceSearch:
		return sets.Search
	case SourceExpiring:
		return sets.Expiring
	default:
		return sets.Category
	}
}

// Criteria is the immutable set of user-chosen filter and sort parameters.
// Derive a changed copy instead of mutating a shared value.
type Criteria struct {
	Source      Source
	MaxPrice    float64 // 0 = unbounded
	MaxAgeHours int     // 0 = unbounded
	HideSoldOut bool
	Sort        SortKey
	NearMe      bool
	User        *models.Coordinate
}

// PageKey is the part of the criteria that invalidates pagination when it changes.
// Toggling near-me or moving the user does not reset the pager.
func (c Criteria) PageKey() Criteria {
	c.NearMe = false
	c.User = nil
	return c
}

// UserPosition returns the user coordinate when near-me sorting is active.
func (c Criteria) UserPosition() (models.Coordinate, bool) {
	if !c.NearMe || c.User == nil {
		return models.Coordinate{}, false
	}
	return *c.User, true
}

const maxAgeWindowHours = math.MaxInt64 / int64(time.Hour)

// Apply selects the source's result set and filters it. See Filter.
func Apply(sets ResultSets, c Criteria, now time.Time) []models.Deal {
	return Filter(c.Source.Select(sets), c, now)
}

// Filter applies recency, sold-out visibility and client-side category/price parity
// to an already selected result set. It never grows the input and keeps its order.
func Filter(deals []models.Deal, c Criteria, now time.Time) []models.Deal {
	var cutoff time.Time
	// Windows too long for a time.Duration are unbounded.
	recency := c.MaxAgeHours > 0 && int64(c.MaxAgeHours) <= maxAgeWindowHours
	if recency {
		cutoff = now.Add(-time.Duration(c.MaxAgeHours) * time.Hour)
	}
	kind := c.Source.Kind()
	// The upstream expiring query takes no price parameter.
	priceCeiling := c.MaxPrice > 0 && kind != SourceExpiring

	kept := make([]models.Deal, 0, len(deals))
	for _, d := range deals {
		if kind == SourceCategory && c.Source.Category() != "" && d.Category != c.Source.Category() {
			continue
		}
		if priceCeiling && d.DealPrice != nil && *d.DealPrice > c.MaxPrice {
			continue
		}
		if recency && d.AddedAt().Before(cutoff) {
			continue
		}
		if c.HideSoldOut && bool(d.SoldOut) {
			continue
		}
		kept = append(kept, d)
	}
	return kept
}
