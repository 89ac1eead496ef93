package cache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voting-platform/internal/domain/vote"
)

type fakeRedis struct {
	mu       sync.Mutex
	data     map[string]string
	ttls     map[string]time.Duration
	incrErrs []error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	default:
		return redis.NewStatusResult("", errors.New("unsupported value"))
	}
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Incr(ctx context.Context, key string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.incrErrs) > 0 {
		err := f.incrErrs[0]
		f.incrErrs = f.incrErrs[1:]
		return redis.NewIntResult(0, err)
	}
	n, _ := strconv.ParseInt(f.data[key], 10, 64)
	n++
	f.data[key] = strconv.FormatInt(n, 10)
	return redis.NewIntResult(n, nil)
}

func TestTallyCacheRoundTrip(t *testing.T) {
	rdb := newFakeRedis()
	c := NewTallyCache(rdb, 30*time.Second)
	ctx := context.Background()

	got, version, err := c.Lookup(ctx, "e1")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.EqualValues(t, 0, version)

	want := vote.Tally{Counts: map[string]int64{"A": 2, "B": 1}, Total: 3}
	require.NoError(t, c.Store(ctx, "e1", version, want))
	assert.Equal(t, 30*time.Second, rdb.ttls["tally:e1:0"])

	got, version, err = c.Lookup(ctx, "e1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)
	assert.EqualValues(t, 0, version)
}

func TestTallyCacheInvalidateOrphansStaleStore(t *testing.T) {
	c := NewTallyCache(newFakeRedis(), time.Minute)
	ctx := context.Background()

	_, version, err := c.Lookup(ctx, "e1")
	require.NoError(t, err)

	require.NoError(t, c.Invalidate(ctx, "e1"))
	require.NoError(t, c.Store(ctx, "e1", version, vote.Tally{Counts: map[string]int64{"A": 1}, Total: 1}))

	got, current, err := c.Lookup(ctx, "e1")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.EqualValues(t, 1, current)
}

func TestTallyCacheInvalidateRetries(t *testing.T) {
	rdb := newFakeRedis()
	rdb.incrErrs = []error{errors.New("i/o timeout")}
	c := NewTallyCache(rdb, time.Minute)

	require.NoError(t, c.Invalidate(context.Background(), "e1"))
	assert.Equal(t, "1", rdb.data["tally:e1:gen"])
}

func TestTallyCacheCorruptEntry(t *testing.T) {
	rdb := newFakeRedis()
	rdb.data["tally:e1:0"] = "{not json"
	c := NewTallyCache(rdb, time.Minute)

	_, _, err := c.Lookup(context.Background(), "e1")
	require.Error(t, err)
}
