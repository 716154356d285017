package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// testBackends returns every backend that can run without external services.
func testBackends(t *testing.T) map[string]KV {
	t.Helper()
	ctx := context.Background()

	sqlite, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "kv.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	mr := miniredis.RunT(t)
	rdb, err := NewRedis(ctx, redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	if err != nil {
		t.Fatalf("NewRedis() error = %v", err)
	}
	t.Cleanup(func() { rdb.Close() })

	return map[string]KV{
		BackendMemory: NewMemory(),
		BackendSQLite: sqlite,
		BackendRedis:  rdb,
	}
}

func TestKV_GetSet(t *testing.T) {
	for name, kv := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if _, found, err := kv.Get(ctx, "missing"); err != nil || found {
				t.Fatalf("Get(missing) = found %v, err %v", found, err)
			}

			if err := kv.Set(ctx, "geo:valby", []byte(`{"lat":1,"lng":2}`)); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			if err := kv.Set(ctx, "geo:valby", []byte(`null`)); err != nil {
				t.Fatalf("Set() overwrite error = %v", err)
			}
			got, found, err := kv.Get(ctx, "geo:valby")
			if err != nil || !found || string(got) != "null" {
				t.Errorf("Get() = %q, %v, %v; want last write", got, found, err)
			}
		})
	}
}

func TestKV_DeletePrefixAndCount(t *testing.T) {
	for name, kv := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, k := range []string{"geo:a", "geo:b", "geo:50%_off", "pref:x:theme", "geoX"} {
				if err := kv.Set(ctx, k, []byte("v")); err != nil {
					t.Fatal(err)
				}
			}

			if n, err := kv.Count(ctx, "geo:"); err != nil || n != 3 {
				t.Errorf("Count(geo:) = %d, %v; want 3", n, err)
			}
			if n, err := kv.Count(ctx, "geo:50%"); err != nil || n != 1 {
				t.Errorf("Count(geo:50%%) = %d, %v; want 1 (wildcards are literal)", n, err)
			}

			n, err := kv.DeletePrefix(ctx, "geo:")
			if err != nil || n != 3 {
				t.Errorf("DeletePrefix() = %d, %v; want 3", n, err)
			}
			if _, found, _ := kv.Get(ctx, "pref:x:theme"); !found {
				t.Error("DeletePrefix removed a key outside the prefix")
			}
			if _, found, _ := kv.Get(ctx, "geoX"); !found {
				t.Error("DeletePrefix removed geoX")
			}
			if n, _ := kv.Count(ctx, "geo:"); n != 0 {
				t.Errorf("Count after delete = %d, want 0", n)
			}
		})
	}
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	kv, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if err := kv.Set(ctx, "geo:skovlunde", []byte(`{"lat":55.72,"lng":12.4}`)); err != nil {
		t.Fatal(err)
	}
	kv.Close()

	reopened, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	if _, found, err := reopened.Get(ctx, "geo:skovlunde"); err != nil || !found {
		t.Errorf("entry lost across reopen: found %v, err %v", found, err)
	}
}

func TestRedis_FaultsSurface(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	kv, err := NewRedis(ctx, redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1}))
	if err != nil {
		t.Fatal(err)
	}
	defer kv.Close()

	mr.Close()
	if _, _, err := kv.Get(ctx, "geo:a"); err == nil {
		t.Error("Get() against a stopped server should fail")
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	kv, err := Open(ctx, Options{Backend: "memory"})
	if err != nil {
		t.Fatalf("Open(memory) error = %v", err)
	}
	if _, ok := kv.(*Memory); !ok {
		t.Errorf("Open(memory) = %T", kv)
	}

	kv, err = Open(ctx, Options{Backend: "SQLite", Path: filepath.Join(t.TempDir(), "x.db")})
	if err != nil {
		t.Fatalf("Open(sqlite) error = %v", err)
	}
	kv.Close()

	mr := miniredis.RunT(t)
	kv, err = Open(ctx, Options{Backend: "redis", RedisURL: "redis://" + mr.Addr() + "/0"})
	if err != nil {
		t.Fatalf("Open(redis) error = %v", err)
	}
	kv.Close()

	if _, err := Open(ctx, Options{Backend: "redis"}); err == nil {
		t.Error("Open(redis) without URL should fail")
	}
	if _, err := Open(ctx, Options{Backend: "firestore"}); err == nil {
		t.Error("Open(firestore) without project should fail")
	}
	if _, err := Open(ctx, Options{Backend: "etcd"}); err == nil {
		t.Error("Open(etcd) should fail")
	}
}

func TestOpenOrMemory_FallsBackWhenUnavailable(t *testing.T) {
	ctx := context.Background()

	stopped := miniredis.NewMiniRedis()
	if err := stopped.Start(); err != nil {
		t.Fatal(err)
	}
	addr := stopped.Addr()
	stopped.Close()

	notADir := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(notADir, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		opts Options
	}{
		{"redis unreachable", Options{Backend: BackendRedis, RedisURL: "redis://" + addr + "/0"}},
		{"redis without URL", Options{Backend: BackendRedis}},
		{"sqlite path not creatable", Options{Backend: BackendSQLite, Path: filepath.Join(notADir, "cache.db")}},
		{"firestore without project", Options{Backend: BackendFirestore}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv, fallback := OpenOrMemory(ctx, tt.opts)
			defer kv.Close()
			if !fallback {
				t.Fatal("fallback = false, want true")
			}
			if _, ok := kv.(*Memory); !ok {
				t.Fatalf("OpenOrMemory() = %T, want *Memory", kv)
			}
			if err := kv.Set(ctx, "geo:valby", []byte("null")); err != nil {
				t.Errorf("Set() on fallback error = %v", err)
			}
		})
	}
}

func TestOpenOrMemory_UsesConfiguredBackend(t *testing.T) {
	kv, fallback := OpenOrMemory(context.Background(), Options{Backend: BackendSQLite, Path: filepath.Join(t.TempDir(), "x.db")})
	defer kv.Close()
	if fallback {
		t.Error("fallback = true for a healthy backend")
	}
	if _, ok := kv.(*SQLite); !ok {
		t.Errorf("OpenOrMemory() = %T, want *SQLite", kv)
	}
}
