package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Category is the catalog's deal category.
type Category string

const (
	CategoryActivity      Category = "activity"
	CategoryFood          Category = "food"
	CategoryEntertainment Category = "entertainment"
)

// Categories lists the known categories in display order.
var Categories = []Category{CategoryActivity, CategoryFood, CategoryEntertainment}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Deal represents one offer as delivered by the catalog API.
// Deals are never mutated after decoding; the pipeline only derives new slices.
type Deal struct {
	ID            string    `json:"deal_id" validate:"required"`
	Source        string    `json:"source"`
	Category      Category  `json:"category" validate:"omitempty,oneof=activity food entertainment"`
	Title         string    `json:"title" validate:"required"`
	URL           string    `json:"url"`
	Description   string    `json:"description"`
	DealPrice     *float64  `json:"deal_price" validate:"omitempty,gte=0"`
	OriginalPrice *float64  `json:"original_price" validate:"omitempty,gte=0"`
	DiscountPct   *float64  `json:"discount_pct" validate:"omitempty,gte=0,lte=100"`
	Location      string    `json:"location"`
	Provider      string    `json:"provider,omitempty"`
	ImageURL      string    `json:"image_url,omitempty" validate:"omitempty,url"`
	Expiry        Timestamp `json:"expiry"`
	SoldOut       Flag      `json:"sold_out"`
	CreatedAt     Timestamp `json:"created_at"`
	UpdatedAt     Timestamp `json:"updated_at"`
}

// AddedAt returns when the deal was first added: created_at, falling back to updated_at.
func (d Deal) AddedAt() time.Time {
	if !d.CreatedAt.IsZero() {
		return d.CreatedAt.Time
	}
	return d.UpdatedAt.Time
}

// DealsResponse is the catalog envelope for deal listings.
type DealsResponse struct {
	Deals []Deal `json:"deals"`
	Count int    `json:"count"`
}

// StatsResponse is the catalog envelope for aggregate statistics.
type StatsResponse struct {
	Total      int            `json:"total"`
	ByCategory map[string]int `json:"by_category"`
	LastScan   Timestamp      `json:"last_scan"`
}

// Timestamp is an optional instant. The zero value means absent.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp parses the formats the catalog is known to emit.
// Unparseable input yields an absent timestamp.
func ParseTimestamp(s string) Timestamp {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{Time: t}
		}
	}
	return Timestamp{}
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Numbers, objects or null: treat as absent.
		*t = Timestamp{}
		return nil
	}
	*t = ParseTimestamp(s)
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339))
}

// Flag is a boolean-ish value. The catalog sends sold_out as 0/1, null, or occasionally a bool.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")):
		*f = false
	case bytes.Equal(data, []byte("true")):
		*f = true
	case bytes.Equal(data, []byte("false")):
		*f = false
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*f = false
			return nil
		}
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "1", "true", "yes", "y":
			*f = true
		default:
			*f = false
		}
	default:
		n, err := strconv.ParseFloat(string(data), 64)
		*f = Flag(err == nil && n != 0)
	}
	return nil
}

// Coordinate is a WGS84 position in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinate lies within the WGS84 bounds.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}
