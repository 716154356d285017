package processor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pauljones0/cph-deal-finder/internal/geo"
	"github.com/pauljones0/cph-deal-finder/internal/models"
	"github.com/pauljones0/cph-deal-finder/internal/pipeline"
)

// Options tunes the upstream queries. Zero values select the catalog defaults.
type Options struct {
	Limit         int
	ExpiringHours int
}

// DealProcessor turns the viewer's criteria into a ranked deal view:
// fetch → junk filter → criteria filter → distance annotation → ranking.
type DealProcessor struct {
	source   DealSource
	lookup   LocationLookup
	warmer   LocationWarmer
	junk     *pipeline.JunkFilter
	mapCfg   geo.MapConfig
	limit    int
	expiring int
	now      func() time.Time
}

func New(source DealSource, lookup LocationLookup, warmer LocationWarmer, junk *pipeline.JunkFilter, opts Options) *DealProcessor {
	if junk == nil {
		junk = pipeline.NewJunkFilter(pipeline.DefaultRules())
	}
	return &DealProcessor{
		source:   source,
		lookup:   lookup,
		warmer:   warmer,
		junk:     junk,
		mapCfg:   geo.DefaultMapConfig(),
		limit:    opts.Limit,
		expiring: opts.ExpiringHours,
		now:      time.Now,
	}
}

// View is one ranked, filtered collection. Distances holds kilometres from the
// user keyed by deal ID, for deals whose location is already known.
type View struct {
	Deals     []models.Deal
	Distances map[string]float64
}

// Fetch returns the source's result set with junk removed.
func (p *DealProcessor) Fetch(ctx context.Context, src pipeline.Source, maxPrice float64) ([]models.Deal, error) {
	var (
		deals []models.Deal
		err   error
	)
	switch src.Kind() {
	case pipeline.SourceSearch:
		deals, err = p.source.Search(ctx, src.Query(), maxPrice)
	case pipeline.SourceExpiring:
		deals, err = p.source.Expiring(ctx, p.expiring)
	default:
		deals, err = p.source.Deals(ctx, src.Category(), maxPrice, p.limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s deals: %w", src.Kind(), err)
	}

	kept := p.junk.Filter(deals)
	slog.Debug("Fetched deals", "source", src.Kind().String(), "fetched", len(deals), "kept", len(kept))
	return kept, nil
}

// View builds the ranked collection for c.
func (p *DealProcessor) View(ctx context.Context, c pipeline.Criteria) (View, error) {
	deals, err := p.Fetch(ctx, c.Source, c.MaxPrice)
	if err != nil {
		return View{}, err
	}
	filtered := pipeline.Filter(deals, c, p.now())

	var dist pipeline.DistanceFunc
	distances := map[string]float64{}
	if user, ok := c.UserPosition(); ok {
		if p.warmer != nil {
			p.warmer.Refresh(filtered)
		}
		measure := geo.DistanceFrom(user, func(label string) (models.Coordinate, bool) {
			return p.lookup.Peek(ctx, label)
		})
		for _, d := range filtered {
			if km, ok := measure(d); ok {
				distances[d.ID] = km
			}
		}
		dist = func(d models.Deal) (float64, bool) {
			km, ok := distances[d.ID]
			return km, ok
		}
	}

	return View{
		Deals:     pipeline.Order(filtered, c, dist),
		Distances: distances,
	}, nil
}

// Marker is one deal pin on the map.
type Marker struct {
	DealID    string            `json:"deal_id"`
	Title     string            `json:"title"`
	Category  models.Category   `json:"category"`
	Color     string            `json:"color"`
	URL       string            `json:"url"`
	DealPrice *float64          `json:"deal_price"`
	Location  string            `json:"location"`
	Position  models.Coordinate `json:"position"`
}

// MapView is the map-ready projection of a view.
type MapView struct {
	Config   geo.MapConfig `json:"config"`
	Markers  []Marker      `json:"markers"`
	Unmapped int           `json:"unmapped"`
	Pending  bool          `json:"pending"`
}

// Map places the deals of c whose locations are already resolved and starts
// resolving the rest in the background.
func (p *DealProcessor) Map(ctx context.Context, c pipeline.Criteria) (MapView, error) {
	deals, err := p.Fetch(ctx, c.Source, c.MaxPrice)
	if err != nil {
		return MapView{}, err
	}
	filtered := pipeline.Filter(deals, c, p.now())
	view := MapView{Config: p.mapCfg, Markers: []Marker{}}
	if p.warmer != nil {
		p.warmer.Refresh(filtered)
		view.Pending = p.warmer.Pending()
	}

	for _, d := range filtered {
		if d.Location == "" {
			view.Unmapped++
			continue
		}
		base, ok := p.lookup.Peek(ctx, d.Location)
		if !ok {
			view.Unmapped++
			continue
		}
		view.Markers = append(view.Markers, Marker{
			DealID:    d.ID,
			Title:     d.Title,
			Category:  d.Category,
			Color:     p.mapCfg.MarkerColor(d.Category),
			URL:       d.URL,
			DealPrice: d.DealPrice,
			Location:  d.Location,
			Position:  geo.Jitter(d.ID, base),
		})
	}
	return view, nil
}
