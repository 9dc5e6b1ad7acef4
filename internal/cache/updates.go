package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultUpdatePrefix = "tg:update:"

// UpdateGuard remembers Telegram update ids so a redelivered update is
// handled once. A zero TTL or nil client disables it.
type UpdateGuard struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

func NewUpdateGuard(client redis.UniversalClient, keyPrefix string, ttl time.Duration) *UpdateGuard {
	if keyPrefix == "" {
		keyPrefix = defaultUpdatePrefix
	}
	return &UpdateGuard{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

// Enabled reports whether the guard is active.
func (g *UpdateGuard) Enabled() bool {
	return g != nil && g.client != nil && g.ttl > 0
}

// MarkProcessed returns true if the update was not seen before. SETNX keeps
// check and mark atomic across bot instances.
func (g *UpdateGuard) MarkProcessed(ctx context.Context, updateID int) (bool, error) {
	if !g.Enabled() {
		return true, nil
	}

	key := g.keyPrefix + strconv.Itoa(updateID)
	fresh, err := g.client.SetNX(ctx, key, "1", g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark update %d as processed: %w", updateID, err)
	}
	return fresh, nil
}
