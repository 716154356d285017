package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/pauljones0/cph-deal-finder/internal/models"
)

const locationPrefix = "geo:"

// LocationCache persists geocoding outcomes. A stored null records a location
// that is known to be unresolvable.
type LocationCache struct {
	kv KV
}

func NewLocationCache(kv KV) *LocationCache {
	return &LocationCache{kv: kv}
}

func (c *LocationCache) Get(ctx context.Context, key string) (*models.Coordinate, bool, error) {
	raw, found, err := c.kv.Get(ctx, locationPrefix+key)
	if err != nil || !found {
		return nil, false, err
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, true, nil
	}
	var coord models.Coordinate
	if err := json.Unmarshal(raw, &coord); err != nil {
		return nil, false, fmt.Errorf("corrupt location entry %s: %w", key, err)
	}
	return &coord, true, nil
}

func (c *LocationCache) Put(ctx context.Context, key string, coord *models.Coordinate) error {
	raw, err := json.Marshal(coord)
	if err != nil {
		return fmt.Errorf("failed to encode location %s: %w", key, err)
	}
	return c.kv.Set(ctx, locationPrefix+key, raw)
}

func (c *LocationCache) Clear(ctx context.Context) error {
	_, err := c.kv.DeletePrefix(ctx, locationPrefix)
	return err
}

// Len reports how many outcomes are persisted.
func (c *LocationCache) Len(ctx context.Context) (int, error) {
	return c.kv.Count(ctx, locationPrefix)
}
