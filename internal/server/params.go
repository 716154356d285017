package server

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/pauljones0/cph-deal-finder/internal/models"
	"github.com/pauljones0/cph-deal-finder/internal/pipeline"
)

// viewParams are the raw viewer selections carried on the query string.
type viewParams struct {
	criteria pipeline.Criteria
	more     bool
	lat, lng string
}

func parseViewParams(q url.Values) (viewParams, error) {
	category := models.Category(strings.ToLower(strings.TrimSpace(q.Get("category"))))
	if category == "all" {
		category = ""
	}
	if category != "" && !category.Valid() {
		return viewParams{}, fmt.Errorf("unknown category %q", category)
	}

	maxPrice, err := floatParam(q, "max_price")
	if err != nil {
		return viewParams{}, err
	}
	if maxPrice < 0 {
		return viewParams{}, fmt.Errorf("max_price must not be negative")
	}

	maxAge, err := intParam(q, "max_age")
	if err != nil {
		return viewParams{}, err
	}
	if maxAge < 0 {
		return viewParams{}, fmt.Errorf("max_age must not be negative")
	}

	expiring, err := boolParam(q, "expiring", false)
	if err != nil {
		return viewParams{}, err
	}
	hideSoldOut, err := boolParam(q, "hide_sold_out", true)
	if err != nil {
		return viewParams{}, err
	}
	nearMe, err := boolParam(q, "near_me", false)
	if err != nil {
		return viewParams{}, err
	}
	more, err := boolParam(q, "more", false)
	if err != nil {
		return viewParams{}, err
	}

	sortKey, _ := pipeline.ParseSortKey(strings.ToLower(q.Get("sort")))

	return viewParams{
		criteria: pipeline.Criteria{
			Source:      pipeline.NewSource(category, q.Get("q"), expiring),
			MaxPrice:    maxPrice,
			MaxAgeHours: maxAge,
			HideSoldOut: hideSoldOut,
			Sort:        sortKey,
			NearMe:      nearMe,
		},
		more: more,
		lat:  strings.TrimSpace(q.Get("lat")),
		lng:  strings.TrimSpace(q.Get("lng")),
	}, nil
}

// position parses lat/lng. It reports false when neither is present.
func (p viewParams) position() (models.Coordinate, bool, error) {
	if p.lat == "" && p.lng == "" {
		return models.Coordinate{}, false, nil
	}
	lat, err := strconv.ParseFloat(p.lat, 64)
	if err != nil {
		return models.Coordinate{}, false, fmt.Errorf("invalid latitude %q", p.lat)
	}
	lng, err := strconv.ParseFloat(p.lng, 64)
	if err != nil {
		return models.Coordinate{}, false, fmt.Errorf("invalid longitude %q", p.lng)
	}
	c := models.Coordinate{Lat: lat, Lng: lng}
	if !c.Valid() {
		return models.Coordinate{}, false, fmt.Errorf("coordinates out of range")
	}
	return c, true, nil
}

func floatParam(q url.Values, key string) (float64, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return f, nil
}

func intParam(q url.Values, key string) (int, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return n, nil
}

func boolParam(q url.Values, key string, def bool) (bool, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q", key, v)
	}
	return b, nil
}
