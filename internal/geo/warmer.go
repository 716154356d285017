package geo

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/pauljones0/cph-deal-finder/internal/models"
)

// Warmer resolves the locations of the latest deal collection in the background.
// Resolved labels land in the resolver's memo and store, where Peek finds them.
// A newer Refresh cancels the batch in flight, and a superseded batch never
// touches the warmer's state.
type Warmer struct {
	resolver *Resolver
	base     context.Context

	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc
	running bool
	stopped bool
	labels  string

	wg sync.WaitGroup
}

// NewWarmer returns a warmer whose batches run under ctx.
func NewWarmer(ctx context.Context, resolver *Resolver) *Warmer {
	return &Warmer{
		resolver: resolver,
		base:     ctx,
	}
}

// Refresh starts resolving deals and abandons any earlier batch. A collection with
// the same distinct locations as the running or last finished batch is ignored,
// so repeated renders do not restart a paced batch. After Stop it does nothing.
func (w *Warmer) Refresh(deals []models.Deal) {
	labels := labelSignature(deals)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped || (labels == w.labels && w.gen > 0) {
		return
	}
	w.labels = labels
	gen := w.abandonLocked()
	ctx, cancel := context.WithCancel(w.base)
	w.cancel = cancel
	w.running = true

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer cancel()

		coords, err := w.resolver.ResolveAll(ctx, deals)

		w.mu.Lock()
		defer w.mu.Unlock()
		if gen != w.gen {
			return
		}
		w.running = false
		if err != nil {
			w.labels = ""
			if !errors.Is(err, context.Canceled) {
				slog.Warn("Location warm-up abandoned", "error", err)
			}
			return
		}
		slog.Debug("Location warm-up finished", "resolved", len(coords), "deals", len(deals))
	}()
}

// abandonLocked cancels the batch in flight and returns the next generation.
func (w *Warmer) abandonLocked() uint64 {
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.gen++
	w.running = false
	return w.gen
}

// Pending reports whether the newest batch is still resolving.
func (w *Warmer) Pending() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Stop cancels the batch in flight, refuses further batches and waits for every
// batch goroutine to exit.
func (w *Warmer) Stop() {
	w.mu.Lock()
	w.stopped = true
	w.abandonLocked()
	w.mu.Unlock()
	w.wg.Wait()
}

// Clear abandons the batch in flight and clears the resolver, so the next
// Refresh resolves its collection again.
func (w *Warmer) Clear(ctx context.Context) error {
	w.mu.Lock()
	w.abandonLocked()
	w.labels = ""
	w.mu.Unlock()
	return w.resolver.Clear(ctx)
}

// Wait blocks until every started batch has finished.
func (w *Warmer) Wait() {
	w.wg.Wait()
}

func labelSignature(deals []models.Deal) string {
	seen := make(map[string]struct{}, len(deals))
	var b strings.Builder
	for _, d := range deals {
		if d.Location == "" {
			continue
		}
		if _, dup := seen[d.Location]; dup {
			continue
		}
		seen[d.Location] = struct{}{}
		b.WriteString(d.Location)
		b.WriteByte(0)
	}
	return b.String()
}
