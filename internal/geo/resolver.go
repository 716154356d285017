package geo

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pauljones0/cph-deal-finder/internal/metrics"
	"github.com/pauljones0/cph-deal-finder/internal/models"
	"github.com/pauljones0/cph-deal-finder/internal/util"
)

// QuerySuffix scopes remote lookups to the city.
const QuerySuffix = ", Copenhagen, Denmark"

// PeekMissTTL is how long Peek remembers that the persistent store had no entry.
const PeekMissTTL = 30 * time.Second

// LocationStore persists resolution outcomes across restarts.
// A nil coordinate records a location known to be unresolvable.
type LocationStore interface {
	Get(ctx context.Context, key string) (coord *models.Coordinate, found bool, err error)
	Put(ctx context.Context, key string, coord *models.Coordinate) error
	Clear(ctx context.Context) error
}

// Resolver maps free-text location labels to coordinates through three tiers:
// the static gazetteer, the persistent store, and the paced remote geocoder.
// Results are memoized per normalized label for the life of the process.
type Resolver struct {
	gazetteer Gazetteer
	store     LocationStore
	geocoder  Geocoder
	pacer     *Pacer

	mu     sync.Mutex
	memo   map[string]*models.Coordinate
	misses map[string]time.Time
	now    func() time.Time

	group singleflight.Group
}

// NewResolver wires the tiers. store and geocoder may be nil, disabling that tier.
func NewResolver(gazetteer Gazetteer, store LocationStore, geocoder Geocoder, pacer *Pacer) *Resolver {
	if pacer == nil {
		pacer = NewPacer(DefaultDelay)
	}
	return &Resolver{
		gazetteer: gazetteer,
		store:     store,
		geocoder:  geocoder,
		pacer:     pacer,
		memo:      make(map[string]*models.Coordinate),
		misses:    make(map[string]time.Time),
		now:       time.Now,
	}
}

// Resolve returns the coordinate for label, or false when it is empty or unresolvable.
// Concurrent calls for the same label share one lookup.
func (r *Resolver) Resolve(ctx context.Context, label string) (models.Coordinate, bool) {
	key := util.NormalizeKey(label)
	if key == "" {
		return models.Coordinate{}, false
	}
	if c, ok := r.gazetteer[key]; ok {
		metrics.GeocodeLookups.WithLabelValues("static", "hit").Inc()
		return c, true
	}
	if c, found := r.memoized(key); found {
		metrics.GeocodeLookups.WithLabelValues("memo", resultLabel(c)).Inc()
		return deref(c)
	}

	for {
		v, err, _ := r.group.Do(key, func() (any, error) {
			if c, found := r.memoized(key); found {
				return c, nil
			}
			if c, found := r.fromStore(ctx, key); found {
				r.remember(key, c)
				return c, nil
			}
			c, err := r.remote(ctx, label)
			if err != nil {
				return nil, err
			}
			r.persist(ctx, key, c)
			r.remember(key, c)
			return c, nil
		})
		// A shared lookup abandoned by another caller's context is retried under ours.
		if err != nil && ctx.Err() == nil && isContextErr(err) {
			continue
		}
		c, _ := v.(*models.Coordinate)
		return deref(c)
	}
}

// Peek answers from the static, memo and persistent tiers only. It never calls the
// remote geocoder, so it never waits on the pacer.
func (r *Resolver) Peek(ctx context.Context, label string) (models.Coordinate, bool) {
	key := util.NormalizeKey(label)
	if key == "" {
		return models.Coordinate{}, false
	}
	if c, ok := r.gazetteer[key]; ok {
		return c, true
	}
	if c, found := r.memoized(key); found {
		return deref(c)
	}
	if r.recentMiss(key) {
		return models.Coordinate{}, false
	}
	if c, found := r.fromStore(ctx, key); found {
		r.remember(key, c)
		return deref(c)
	}
	r.mu.Lock()
	r.misses[key] = r.now()
	r.mu.Unlock()
	return models.Coordinate{}, false
}

// ResolveAll resolves the distinct non-empty locations of deals one at a time, in
// first-encounter order. Unresolvable labels are left out of the result. If ctx is
// cancelled part way, the partial result is returned with ctx's error.
func (r *Resolver) ResolveAll(ctx context.Context, deals []models.Deal) (map[string]models.Coordinate, error) {
	out := make(map[string]models.Coordinate)
	seen := make(map[string]struct{})
	for _, d := range deals {
		if d.Location == "" {
			continue
		}
		if _, dup := seen[d.Location]; dup {
			continue
		}
		seen[d.Location] = struct{}{}

		if err := ctx.Err(); err != nil {
			return out, err
		}
		if c, ok := r.Resolve(ctx, d.Location); ok {
			out[d.Location] = c
		}
	}
	return out, ctx.Err()
}

// Clear forgets every memoized and persisted outcome. The static gazetteer is unaffected.
func (r *Resolver) Clear(ctx context.Context) error {
	r.mu.Lock()
	r.memo = make(map[string]*models.Coordinate)
	r.misses = make(map[string]time.Time)
	r.mu.Unlock()

	if r.store == nil {
		return nil
	}
	return r.store.Clear(ctx)
}

func (r *Resolver) memoized(key string) (*models.Coordinate, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, found := r.memo[key]
	return c, found
}

func (r *Resolver) remember(key string, c *models.Coordinate) {
	r.mu.Lock()
	r.memo[key] = c
	delete(r.misses, key)
	r.mu.Unlock()
}

// recentMiss reports whether Peek found no stored entry for key within PeekMissTTL.
func (r *Resolver) recentMiss(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	at, ok := r.misses[key]
	if !ok {
		return false
	}
	if r.now().Sub(at) > PeekMissTTL {
		delete(r.misses, key)
		return false
	}
	return true
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (r *Resolver) fromStore(ctx context.Context, key string) (*models.Coordinate, bool) {
	if r.store == nil {
		return nil, false
	}
	c, found, err := r.store.Get(ctx, key)
	if err != nil {
		metrics.StorageFaults.WithLabelValues("get").Inc()
		slog.Warn("Location cache read failed", "key", key, "error", err)
		return nil, false
	}
	if found {
		metrics.GeocodeLookups.WithLabelValues("store", resultLabel(c)).Inc()
	}
	return c, found
}

func (r *Resolver) persist(ctx context.Context, key string, c *models.Coordinate) {
	if r.store == nil {
		return
	}
	if err := r.store.Put(ctx, key, c); err != nil {
		metrics.StorageFaults.WithLabelValues("put").Inc()
		slog.Warn("Location cache write failed", "key", key, "error", err)
	}
}

// remote asks the geocoder through the pacer. Transport and decode failures are
// reported as unresolvable; only cancellation is returned as an error.
func (r *Resolver) remote(ctx context.Context, label string) (*models.Coordinate, error) {
	if r.geocoder == nil {
		return nil, nil
	}

	var (
		coord models.Coordinate
		ok    bool
	)
	err := r.pacer.Do(ctx, func(ctx context.Context) error {
		var gerr error
		coord, ok, gerr = r.geocoder.Geocode(ctx, strings.TrimSpace(label)+QuerySuffix)
		return gerr
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		metrics.GeocodeLookups.WithLabelValues("remote", "error").Inc()
		slog.Warn("Geocoding failed, caching as unresolvable", "location", label, "error", err)
		return nil, nil
	}
	if !ok || !coord.Valid() {
		metrics.GeocodeLookups.WithLabelValues("remote", "miss").Inc()
		return nil, nil
	}
	metrics.GeocodeLookups.WithLabelValues("remote", "hit").Inc()
	return &coord, nil
}

func resultLabel(c *models.Coordinate) string {
	if c == nil {
		return "miss"
	}
	return "hit"
}

func deref(c *models.Coordinate) (models.Coordinate, bool) {
	if c == nil {
		return models.Coordinate{}, false
	}
	return *c, true
}
