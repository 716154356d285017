package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDealDecode_CatalogPayload(t *testing.T) {
	payload := `{
		"deal_id": "bownty-42",
		"source": "Bownty",
		"category": "food",
		"title": "Brunch for two",
		"url": "https://example.com/deal",
		"description": "",
		"deal_price": 199,
		"original_price": 398,
		"discount_pct": 50,
		"location": "Vesterbro",
		"provider": null,
		"image_url": null,
		"expiry": "2025-06-01T12:00:00Z",
		"sold_out": 1,
		"created_at": null,
		"updated_at": "2025-05-20 08:30:00"
	}`

	var d Deal
	if err := json.Unmarshal([]byte(payload), &d); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if d.ID != "bownty-42" {
		t.Errorf("ID = %q, want bownty-42", d.ID)
	}
	if d.DealPrice == nil || *d.DealPrice != 199 {
		t.Errorf("DealPrice = %v, want 199", d.DealPrice)
	}
	if d.Provider != "" {
		t.Errorf("Provider = %q, want empty for null", d.Provider)
	}
	if !bool(d.SoldOut) {
		t.Error("SoldOut should be true for 1")
	}
	if !d.CreatedAt.IsZero() {
		t.Errorf("CreatedAt should be absent, got %v", d.CreatedAt)
	}
	want := time.Date(2025, 5, 20, 8, 30, 0, 0, time.UTC)
	if !d.AddedAt().Equal(want) {
		t.Errorf("AddedAt() = %v, want %v (fallback to updated_at)", d.AddedAt(), want)
	}
}

func TestFlag_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"null", false},
		{"0", false},
		{"1", true},
		{"2", true},
		{"true", true},
		{"false", false},
		{`"1"`, true},
		{`"yes"`, true},
		{`"no"`, false},
		{`""`, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var f Flag
			if err := json.Unmarshal([]byte(tt.in), &f); err != nil {
				t.Fatalf("Unmarshal(%s) error = %v", tt.in, err)
			}
			if bool(f) != tt.want {
				t.Errorf("Flag(%s) = %v, want %v", tt.in, f, tt.want)
			}
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		absent bool
	}{
		{name: "RFC3339", in: "2025-06-01T12:00:00Z"},
		{name: "RFC3339 with offset", in: "2025-06-01T12:00:00+02:00"},
		{name: "no zone", in: "2025-06-01T12:00:00"},
		{name: "sqlite style", in: "2025-06-01 12:00:00"},
		{name: "date only", in: "2025-06-01"},
		{name: "empty", in: "", absent: true},
		{name: "garbage", in: "next tuesday", absent: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseTimestamp(tt.in)
			if got.IsZero() != tt.absent {
				t.Errorf("ParseTimestamp(%q).IsZero() = %v, want %v", tt.in, got.IsZero(), tt.absent)
			}
		})
	}
}

func TestTimestamp_NonStringIsAbsent(t *testing.T) {
	var ts Timestamp
	if err := json.Unmarshal([]byte(`12345`), &ts); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !ts.IsZero() {
		t.Errorf("numeric timestamp should decode as absent, got %v", ts)
	}

	out, err := json.Marshal(ts)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "null" {
		t.Errorf("Marshal(absent) = %s, want null", out)
	}
}

func TestCategory_Valid(t *testing.T) {
	if !CategoryFood.Valid() {
		t.Error("food should be valid")
	}
	if Category("shopping").Valid() {
		t.Error("shopping should not be valid")
	}
}
