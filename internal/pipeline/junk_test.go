package pipeline

import (
	"slices"
	"testing"

	"github.com/pauljones0/cph-deal-finder/internal/models"
)

func TestJunkFilter_IsJunk(t *testing.T) {
	tests := []struct {
		name string
		deal models.Deal
		want bool
	}{
		{
			name: "Genuine experience",
			deal: models.Deal{ID: "1", Source: "Bownty", Title: "Yoga class", Provider: "Studio X", Location: "Nørrebro"},
			want: false,
		},
		{
			name: "Blocked provider",
			deal: models.Deal{ID: "2", Title: "Anything", Provider: "Just-Half-Price"},
			want: true,
		},
		{
			name: "Blocked provider in other case",
			deal: models.Deal{ID: "3", Title: "Trip", Provider: "TravelDeal"},
			want: true,
		},
		{
			name: "Padded provider name is not a blocked name",
			deal: models.Deal{ID: "3b", Title: "Trip", Provider: "  TravelDeal ", Location: "Valby"},
			want: false,
		},
		{
			name: "Low-quality feed without provider or location",
			deal: models.Deal{ID: "4", Source: "Bownty", Title: "Hotel night"},
			want: true,
		},
		{
			name: "Low-quality feed with location",
			deal: models.Deal{ID: "5", Source: "Bownty", Title: "Hotel night", Location: "Valby"},
			want: false,
		},
		{
			name: "Low-quality feed with whitespace location",
			deal: models.Deal{ID: "5b", Source: "Bownty", Title: "Hotel night", Location: "  "},
			want: false,
		},
		{
			name: "Other feed without provider or location",
			deal: models.Deal{ID: "6", Source: "Sweetdeal", Title: "Cinema"},
			want: false,
		},
		{
			name: "Product keyword in title",
			deal: models.Deal{ID: "7", Title: "Lækker Støvsuger til hjemmet", Location: "Amager"},
			want: true,
		},
		{
			name: "Product keyword in HTML description",
			deal: models.Deal{ID: "8", Title: "Tilbud", Description: "<p>Ren <b>CBD olie</b></p>", Location: "Amager"},
			want: true,
		},
		{
			name: "Non-target location",
			deal: models.Deal{ID: "9", Title: "Spa", Location: "Roskilde Centrum"},
			want: true,
		},
		{
			name: "Double-encoded non-target location",
			deal: models.Deal{ID: "10", Title: "Golf", Location: "NordsjÃ¦lland"},
			want: true,
		},
	}

	f := NewJunkFilter(DefaultRules())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.IsJunk(tt.deal); got != tt.want {
				t.Errorf("IsJunk() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterJunk_PreservesOrder(t *testing.T) {
	deals := []models.Deal{
		{ID: "a", Title: "Escape room", Location: "Indre By"},
		{ID: "b", Title: "Gasblus sæt", Location: "Indre By"},
		{ID: "c", Title: "Tapas", Location: "Vesterbro"},
		{ID: "d", Title: "Spa", Location: "Aarhus C"},
		{ID: "e", Title: "Bowling", Location: "Valby"},
	}

	got := ids(FilterJunk(deals))
	want := []string{"a", "c", "e"}
	if !slices.Equal(got, want) {
		t.Errorf("FilterJunk() = %v, want %v", got, want)
	}
}

func TestFilterJunk_Idempotent(t *testing.T) {
	deals := []models.Deal{
		{ID: "a", Source: "Bownty", Title: "Massageapparat"},
		{ID: "b", Source: "Bownty"},
		{ID: "c", Source: "Bownty", Title: "Brunch", Location: "Østerbro"},
		{ID: "d", Title: "Kayak", Provider: "odendo"},
		{ID: "e", Title: "Kayak", Provider: "Kajak Ex"},
	}

	once := FilterJunk(deals)
	twice := FilterJunk(once)
	if !slices.Equal(ids(once), ids(twice)) {
		t.Errorf("FilterJunk not idempotent: once=%v twice=%v", ids(once), ids(twice))
	}
}

func TestFilterJunk_Empty(t *testing.T) {
	if got := FilterJunk(nil); len(got) != 0 {
		t.Errorf("FilterJunk(nil) = %v, want empty", got)
	}
}

func TestLoadRulesFromBytes(t *testing.T) {
	rules, err := LoadRulesFromBytes([]byte(`{"blocked_providers":["acme"],"non_target_locations":["malmö"]}`))
	if err != nil {
		t.Fatalf("LoadRulesFromBytes() error = %v", err)
	}
	f := NewJunkFilter(rules)
	if !f.IsJunk(models.Deal{ID: "1", Provider: "ACME"}) {
		t.Error("custom blocked provider should be junk")
	}
	if !f.IsJunk(models.Deal{ID: "2", Location: "Malmö"}) {
		t.Error("custom non-target location should be junk")
	}

	if _, err := LoadRulesFromBytes([]byte(`{}`)); err == nil {
		t.Error("empty rules should be rejected")
	}
	if _, err := LoadRulesFromBytes([]byte(`not json`)); err == nil {
		t.Error("invalid JSON should be rejected")
	}
}

func TestLoadJunkRules_EmbeddedMatchesDefaults(t *testing.T) {
	got := LoadJunkRules("")
	want := DefaultRules()
	if !slices.Equal(got.BlockedProviders, want.BlockedProviders) ||
		!slices.Equal(got.ProductKeywords, want.ProductKeywords) ||
		!slices.Equal(got.NonTargetLocations, want.NonTargetLocations) ||
		got.LowQualitySource != want.LowQualitySource {
		t.Errorf("embedded rules.json drifted from DefaultRules()")
	}
}

func TestLoadJunkRules_MissingFileFallsBack(t *testing.T) {
	got := LoadJunkRules("/nonexistent/rules.json")
	if len(got.ProductKeywords) == 0 {
		t.Error("expected fallback rules when the external file is missing")
	}
}
