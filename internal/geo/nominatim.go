package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pauljones0/cph-deal-finder/internal/models"
)

const (
	DefaultGeocoderURL = "https://nominatim.openstreetmap.org"
	DefaultUserAgent   = "cph-deal-finder-web/1.0"
)

// Geocoder turns a free-text query into a coordinate. A query with no match
// reports false with a nil error.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (models.Coordinate, bool, error)
}

// NominatimClient queries an OpenStreetMap Nominatim search endpoint.
type NominatimClient struct {
	baseURL     string
	userAgent   string
	client      *http.Client
	rateLimiter *rate.Limiter
}

func NewNominatim(baseURL, userAgent string) *NominatimClient {
	if baseURL == "" {
		baseURL = DefaultGeocoderURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &NominatimClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		client:    &http.Client{Timeout: 10 * time.Second},
		// Nominatim's usage policy allows one request per second.
		rateLimiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode returns the first search hit for query.
func (c *NominatimClient) Geocode(ctx context.Context, query string) (models.Coordinate, bool, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return models.Coordinate{}, false, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	q := url.Values{}
	q.Set("format", "json")
	q.Set("q", query)
	q.Set("limit", "1")
	reqURL := c.baseURL + "/search?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return models.Coordinate{}, false, fmt.Errorf("failed to create geocode request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return models.Coordinate{}, false, fmt.Errorf("nominatim request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return models.Coordinate{}, false, fmt.Errorf("nominatim returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return models.Coordinate{}, false, fmt.Errorf("failed to decode nominatim response: %w", err)
	}
	if len(results) == 0 {
		return models.Coordinate{}, false, nil
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return models.Coordinate{}, false, fmt.Errorf("invalid latitude %q: %w", results[0].Lat, err)
	}
	lng, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return models.Coordinate{}, false, fmt.Errorf("invalid longitude %q: %w", results[0].Lon, err)
	}
	return models.Coordinate{Lat: lat, Lng: lng}, true, nil
}
