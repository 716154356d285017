package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/time/rate"
)

func TestNominatimClient_Geocode(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantOK     bool
		wantErr    bool
	}{
		{name: "First hit", statusCode: http.StatusOK, body: `[{"lat":"55.7200","lon":"12.4000","display_name":"Skovlunde"},{"lat":"1","lon":"1"}]`, wantOK: true},
		{name: "No hits", statusCode: http.StatusOK, body: `[]`},
		{name: "Server error", statusCode: http.StatusInternalServerError, body: `oops`, wantErr: true},
		{name: "Bad JSON", statusCode: http.StatusOK, body: `{"lat":`, wantErr: true},
		{name: "Bad latitude", statusCode: http.StatusOK, body: `[{"lat":"north","lon":"12.4"}]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/search" {
					t.Errorf("path = %s, want /search", r.URL.Path)
				}
				q := r.URL.Query()
				if q.Get("q") != "Skovlunde, Copenhagen, Denmark" || q.Get("format") != "json" || q.Get("limit") != "1" {
					t.Errorf("unexpected query %v", q)
				}
				if ua := r.Header.Get("User-Agent"); ua != DefaultUserAgent {
					t.Errorf("User-Agent = %q, want %q", ua, DefaultUserAgent)
				}
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewNominatim(server.URL+"/", "")
			client.rateLimiter = rate.NewLimiter(rate.Inf, 1)

			coord, ok, err := client.Geocode(context.Background(), "Skovlunde, Copenhagen, Denmark")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Geocode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if ok != tt.wantOK {
				t.Errorf("Geocode() ok = %v, want %v", ok, tt.wantOK)
			}
			if tt.wantOK && (coord.Lat != 55.72 || coord.Lng != 12.40) {
				t.Errorf("Geocode() = %v, want {55.72 12.40}", coord)
			}
		})
	}
}

func TestNominatimClient_ResolverIntegration(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`[{"lat":"55.7200","lon":"12.4000"}]`))
	}))
	defer server.Close()

	client := NewNominatim(server.URL, "test-agent/1.0")
	client.rateLimiter = rate.NewLimiter(rate.Inf, 1)
	rec := &sleepRecorder{}
	r := NewResolver(LoadGazetteer(""), newFakeStore(), client, NewPacer(DefaultDelay).WithSleep(rec.sleep))

	for range 3 {
		if _, ok := r.Resolve(context.Background(), "Skovlunde"); !ok {
			t.Fatal("Resolve() should succeed")
		}
	}
	if calls != 1 {
		t.Errorf("server hits = %d, want 1", calls)
	}
}
