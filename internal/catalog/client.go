package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pauljones0/cph-deal-finder/internal/metrics"
	"github.com/pauljones0/cph-deal-finder/internal/models"
	"github.com/pauljones0/cph-deal-finder/internal/util"
	"github.com/pauljones0/cph-deal-finder/internal/validator"
)

const (
	DefaultLimit         = 500
	DefaultExpiringHours = 48
	DefaultRevalidate    = 60 * time.Second
)

// ErrUpstream marks a response the catalog itself flagged as failed.
var ErrUpstream = errors.New("catalog reported an error")

// Options tunes a Client. Zero values select the defaults.
type Options struct {
	Retry      util.RetryPolicy
	Revalidate time.Duration
	HTTPClient *http.Client
}

// Client reads deal listings from the catalog API. Successful responses are
// reused until they are older than the revalidation interval, and concurrent
// identical requests share one upstream call.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      util.RetryPolicy
	revalidate time.Duration
	validator  *validator.Validator
	now        func() time.Time

	mu    sync.Mutex
	cache map[string]cacheEntry
	group singleflight.Group
}

type cacheEntry struct {
	body      []byte
	fetchedAt time.Time
}

func New(baseURL string, opts Options) *Client {
	if opts.Retry.MaxRetries == 0 && opts.Retry.BaseDelay == 0 {
		opts.Retry = util.DefaultRetryPolicy
	}
	if opts.Revalidate == 0 {
		opts.Revalidate = DefaultRevalidate
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: opts.HTTPClient,
		retry:      opts.Retry,
		revalidate: opts.Revalidate,
		validator:  validator.New(),
		now:        time.Now,
		cache:      make(map[string]cacheEntry),
	}
}

// Deals lists deals, optionally narrowed by category and price ceiling (0 = any).
func (c *Client) Deals(ctx context.Context, category models.Category, maxPrice float64, limit int) ([]models.Deal, error) {
	q := url.Values{}
	if category != "" {
		q.Set("category", string(category))
	}
	if maxPrice > 0 {
		q.Set("max_price", formatPrice(maxPrice))
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	q.Set("limit", strconv.Itoa(limit))
	return c.deals(ctx, "deals", q)
}

// Search runs a free-text query.
func (c *Client) Search(ctx context.Context, query string, maxPrice float64) ([]models.Deal, error) {
	q := url.Values{}
	q.Set("q", query)
	if maxPrice > 0 {
		q.Set("max_price", formatPrice(maxPrice))
	}
	return c.deals(ctx, "search", q)
}

// Expiring lists deals expiring within the given number of hours.
func (c *Client) Expiring(ctx context.Context, hours int) ([]models.Deal, error) {
	if hours <= 0 {
		hours = DefaultExpiringHours
	}
	q := url.Values{}
	q.Set("hours", strconv.Itoa(hours))
	return c.deals(ctx, "expiring", q)
}

// Stats returns catalog-wide totals.
func (c *Client) Stats(ctx context.Context) (models.StatsResponse, error) {
	body, err := c.get(ctx, "stats", nil)
	if err != nil {
		return models.StatsResponse{}, err
	}
	var resp models.StatsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.StatsResponse{}, fmt.Errorf("failed to decode stats: %w", err)
	}
	return resp, nil
}

func (c *Client) deals(ctx context.Context, endpoint string, q url.Values) ([]models.Deal, error) {
	body, err := c.get(ctx, endpoint, q)
	if err != nil {
		return nil, err
	}
	var resp models.DealsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}

	valid, rejected := c.validator.ValidDeals(resp.Deals)
	for _, err := range rejected {
		slog.Warn("Dropping invalid catalog deal", "endpoint", endpoint, "error", err)
	}
	for i := range valid {
		valid[i] = tidy(valid[i])
	}
	return valid, nil
}

// tidy cleans presentation fields. It never touches identity, prices or timestamps.
func tidy(d models.Deal) models.Deal {
	d.Title = util.CleanText(d.Title)
	d.Location = util.CleanText(d.Location)
	d.Provider = util.CleanText(d.Provider)
	if d.URL != "" {
		if normalized, err := util.NormalizeURL(d.URL); err == nil {
			d.URL = normalized
		}
	}
	return d
}

// get returns the body for endpoint, from cache while it is fresh.
func (c *Client) get(ctx context.Context, endpoint string, q url.Values) ([]byte, error) {
	reqURL := c.baseURL + "/api/" + endpoint
	if len(q) > 0 {
		reqURL += "?" + q.Encode()
	}

	c.mu.Lock()
	entry, ok := c.cache[reqURL]
	c.mu.Unlock()
	if ok && c.now().Sub(entry.fetchedAt) < c.revalidate {
		return entry.body, nil
	}

	v, err, _ := c.group.Do(reqURL, func() (any, error) {
		start := time.Now()
		body, err := c.fetch(ctx, endpoint, reqURL)
		metrics.CatalogDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.CatalogRequests.WithLabelValues(endpoint, "error").Inc()
			return nil, err
		}
		metrics.CatalogRequests.WithLabelValues(endpoint, "ok").Inc()

		c.mu.Lock()
		c.cache[reqURL] = cacheEntry{body: body, fetchedAt: c.now()}
		c.mu.Unlock()
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *Client) fetch(ctx context.Context, endpoint, reqURL string) ([]byte, error) {
	var body []byte
	err := util.RetryWithBackoff(ctx, c.retry, func(attempt int) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return util.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return util.Permanent(ctx.Err())
			}
			slog.Warn("Catalog request failed", "endpoint", endpoint, "attempt", attempt+1, "error", err)
			return fmt.Errorf("catalog request failed: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read catalog response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			statusErr := fmt.Errorf("catalog %s returned status %d", endpoint, resp.StatusCode)
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				slog.Warn("Catalog returned retryable status", "endpoint", endpoint, "attempt", attempt+1, "status", resp.StatusCode)
				return statusErr
			}
			return util.Permanent(statusErr)
		}

		var envelope struct {
			Error json.RawMessage `json:"error"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			return util.Permanent(fmt.Errorf("failed to decode %s envelope: %w", endpoint, err))
		}
		if msg := envelopeError(envelope.Error); msg != "" {
			return util.Permanent(fmt.Errorf("%w: %s", ErrUpstream, msg))
		}

		body = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// envelopeError extracts a message from the envelope's error field, which may be
// a string, a boolean or absent.
func envelopeError(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		if b {
			return "error flag set"
		}
		return ""
	}
	if string(raw) == "null" {
		return ""
	}
	return string(raw)
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
