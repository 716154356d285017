package geo

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pauljones0/cph-deal-finder/internal/models"
)

type geocodeResult struct {
	coord models.Coordinate
	ok    bool
	err   error
}

type fakeGeocoder struct {
	mu      sync.Mutex
	results map[string]geocodeResult
	queries []string
	// block, when set, is waited on before answering (or until ctx is done).
	block chan struct{}
}

func (f *fakeGeocoder) Geocode(ctx context.Context, query string) (models.Coordinate, bool, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	res := f.results[query]
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return models.Coordinate{}, false, ctx.Err()
		}
	}
	return res.coord, res.ok, res.err
}

func (f *fakeGeocoder) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

type fakeStore struct {
	mu      sync.Mutex
	entries map[string]*models.Coordinate
	puts    int
	gets    int
	getErr  error
	putErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: map[string]*models.Coordinate{}}
}

func (s *fakeStore) Get(_ context.Context, key string) (*models.Coordinate, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	c, ok := s.entries[key]
	return c, ok, nil
}

func (s *fakeStore) Put(_ context.Context, key string, c *models.Coordinate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	if s.putErr != nil {
		return s.putErr
	}
	s.entries[key] = c
	return nil
}

func (s *fakeStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = map[string]*models.Coordinate{}
	return nil
}

func (s *fakeStore) getCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets
}

func (s *fakeStore) putCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *sleepRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

var errTransport = errors.New("connection reset by peer")

func newTestResolver(g Geocoder, store LocationStore) (*Resolver, *sleepRecorder) {
	rec := &sleepRecorder{}
	pacer := NewPacer(DefaultDelay).WithSleep(rec.sleep)
	return NewResolver(LoadGazetteer(""), store, g, pacer), rec
}
