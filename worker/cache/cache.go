package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	statusKeyPrefix = "task:status:"
	statusTTL       = 10 * time.Minute
)

// StatusPayload mirrors what the API caches and serves on polls.
type StatusPayload struct {
	Status  string   `json:"status"`
	Result  *string  `json:"result"`
	Failure *Failure `json:"failure,omitempty"`
}

type Failure struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type StatusCache struct {
	client *redis.Client
}

func NewStatusCache(client *redis.Client) *StatusCache {
	return &StatusCache{client: client}
}

func (c *StatusCache) Set(ctx context.Context, taskID string, payload StatusPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, statusKeyPrefix+taskID, data, statusTTL).Err()
}
