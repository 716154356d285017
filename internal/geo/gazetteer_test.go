package geo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pauljones0/cph-deal-finder/internal/models"
)

// peekStatic answers from the static table alone.
func peekStatic(g Gazetteer, label string) (models.Coordinate, bool) {
	return NewResolver(g, nil, nil, nil).Peek(context.Background(), label)
}

func TestLoadGazetteer_Embedded(t *testing.T) {
	g := LoadGazetteer("")
	if len(g) != 27 {
		t.Errorf("len(gazetteer) = %d, want 27", len(g))
	}

	tests := []struct {
		label string
		want  models.Coordinate
	}{
		{"Nørrebro", models.Coordinate{Lat: 55.6961, Lng: 12.5530}},
		{"København K", models.Coordinate{Lat: 55.6786, Lng: 12.5738}},
		{"Islands Brygge", models.Coordinate{Lat: 55.6610, Lng: 12.5850}},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, ok := peekStatic(g, tt.label)
			if !ok || got != tt.want {
				t.Errorf("lookup %q = %v, %v; want %v", tt.label, got, ok, tt.want)
			}
		})
	}

	if _, ok := peekStatic(g, "Skovlunde"); ok {
		t.Error("Skovlunde is not a static entry")
	}
}

func TestLoadGazetteer_ExternalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gazetteer.json")
	if err := os.WriteFile(path, []byte(`{"Skovlunde": {"lat": 55.72, "lng": 12.40}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	g := LoadGazetteer(path)
	if got, ok := peekStatic(g, "skovlunde"); !ok || got.Lat != 55.72 {
		t.Errorf("lookup skovlunde = %v, %v", got, ok)
	}
}

func TestLoadGazetteer_BadFileFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gazetteer.json")
	if err := os.WriteFile(path, []byte(`{"x": {"lat": 123, "lng": 0}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if g := LoadGazetteer(path); len(g) != 27 {
		t.Errorf("invalid file should fall back to the embedded table, got %d entries", len(g))
	}
}

func TestParseGazetteer_Errors(t *testing.T) {
	for _, in := range []string{`{}`, `[]`, `not json`} {
		if _, err := ParseGazetteer([]byte(in)); err == nil {
			t.Errorf("ParseGazetteer(%s) should fail", in)
		}
	}
}
