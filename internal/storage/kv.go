package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pauljones0/cph-deal-finder/internal/metrics"
)

// KV is a small durable key-value store. Keys are namespaced by prefix
// (for example "geo:" for location outcomes) so one backend can serve several adapters.
type KV interface {
	// Get returns the stored value and whether the key exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set creates or overwrites key. Last writer wins.
	Set(ctx context.Context, key string, value []byte) error
	// DeletePrefix removes every key starting with prefix and returns how many were removed.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	// Count returns how many keys start with prefix.
	Count(ctx context.Context, prefix string) (int, error)
	Close() error
}

const (
	BackendMemory    = "memory"
	BackendSQLite    = "sqlite"
	BackendRedis     = "redis"
	BackendFirestore = "firestore"
)

// Options selects and configures a backend.
type Options struct {
	Backend   string
	Path      string // sqlite file
	RedisURL  string
	ProjectID string // firestore
}

// Open connects the backend named in opts.
func Open(ctx context.Context, opts Options) (KV, error) {
	switch strings.ToLower(opts.Backend) {
	case BackendMemory:
		return NewMemory(), nil
	case BackendSQLite, "":
		kv, err := OpenSQLite(ctx, opts.Path)
		if err != nil {
			return nil, err
		}
		return kv, nil
	case BackendRedis:
		kv, err := OpenRedis(ctx, opts.RedisURL)
		if err != nil {
			return nil, err
		}
		return kv, nil
	case BackendFirestore:
		kv, err := OpenFirestore(ctx, opts.ProjectID)
		if err != nil {
			return nil, err
		}
		return kv, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}

// OpenOrMemory opens the backend named in opts. When it is unavailable the service
// runs on an empty in-process store instead; fallback reports that case.
func OpenOrMemory(ctx context.Context, opts Options) (kv KV, fallback bool) {
	kv, err := Open(ctx, opts)
	if err != nil {
		metrics.StorageFaults.WithLabelValues("open").Inc()
		slog.Warn("Cache backend unavailable, using in-memory cache", "backend", opts.Backend, "error", err)
		return NewMemory(), true
	}
	return kv, false
}
