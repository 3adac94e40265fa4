package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"imageUpscaler/api/database"
	"imageUpscaler/api/models"
)

const (
	statusKeyPrefix = "task:status:"
	statusTTL       = 10 * time.Minute
)

// StatusCache keeps the full poll payload, not just the status string,
// so a cache hit never needs a follow-up database read for the result.
type StatusCache struct {
	cache *database.Cache
}

func NewStatusCache(cache *database.Cache) *StatusCache {
	return &StatusCache{cache: cache}
}

func (sc *StatusCache) Get(ctx context.Context, taskID string) (*models.StatusPayload, error) {
	key := fmt.Sprintf("%s%s", statusKeyPrefix, taskID)

	data, err := sc.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var payload models.StatusPayload
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return nil, err
	}

	return &payload, nil
}

func (sc *StatusCache) Set(ctx context.Context, taskID string, payload models.StatusPayload) error {
	key := fmt.Sprintf("%s%s", statusKeyPrefix, taskID)

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return sc.cache.Set(ctx, key, data, statusTTL)
}

func (sc *StatusCache) Delete(ctx context.Context, taskID string) error {
	key := fmt.Sprintf("%s%s", statusKeyPrefix, taskID)
	return sc.cache.Del(ctx, key)
}
