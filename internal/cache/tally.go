package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"voting-platform/internal/domain/vote"
	"voting-platform/internal/retry"
)

// Client is the subset of *redis.Client the tally cache uses.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
}

// TallyCache keeps one tally per election generation. A vote bumps the
// generation, which orphans every tally computed before it; orphans expire via TTL.
type TallyCache struct {
	client Client
	ttl    time.Duration
}

func NewTallyCache(client Client, ttl time.Duration) *TallyCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &TallyCache{client: client, ttl: ttl}
}

func genKey(electionID string) string {
	return fmt.Sprintf("tally:%s:gen", electionID)
}

func dataKey(electionID string, gen int64) string {
	return fmt.Sprintf("tally:%s:%d", electionID, gen)
}

func (c *TallyCache) Lookup(ctx context.Context, electionID string) (*vote.Tally, int64, error) {
	gen, err := c.client.Get(ctx, genKey(electionID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, err
	}

	raw, err := c.client.Get(ctx, dataKey(electionID, gen)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, gen, nil
	}
	if err != nil {
		return nil, 0, err
	}

	var t vote.Tally
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, 0, fmt.Errorf("decode cached tally: %w", err)
	}
	return &t, gen, nil
}

func (c *TallyCache) Store(ctx context.Context, electionID string, version int64, t vote.Tally) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, dataKey(electionID, version), raw, c.ttl).Err()
}

// Invalidate retries briefly: a lost bump would leave a stale tally visible
// until its TTL runs out.
func (c *TallyCache) Invalidate(ctx context.Context, electionID string) error {
	return retry.DoWithRetry(ctx, 3, 20*time.Millisecond, func() error {
		return c.client.Incr(ctx, genKey(electionID)).Err()
	})
}
