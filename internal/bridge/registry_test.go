package bridge

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"incident-pipeline/internal/apperr"
)

func TestRegisterIdempotentEvent(t *testing.T) {
	reg := NewMemoryRegistry()

	first, err := RegisterIdempotentEvent("evt_123", reg)
	require.NoError(t, err)
	assert.False(t, first.IsDuplicate)
	assert.Equal(t, "evt_123", first.NormalizedEventID)

	second, err := RegisterIdempotentEvent("  evt_123\n", reg)
	require.NoError(t, err)
	assert.True(t, second.IsDuplicate)
	assert.Equal(t, "evt_123", second.NormalizedEventID)
	assert.Equal(t, 1, reg.Len())
}

func TestRegisterIdempotentEventRejectsBlank(t *testing.T) {
	reg := NewMemoryRegistry()
	_, err := RegisterIdempotentEvent("   ", reg)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
	assert.EqualError(t, err, "event_id is required")
	assert.Zero(t, reg.Len())
}

func TestMemoryRegistrySeed(t *testing.T) {
	reg := NewMemoryRegistry("evt_a", " ", "evt_b ")
	assert.Equal(t, 2, reg.Len())
	seen, err := reg.Contains(context.Background(), " evt_b")
	require.NoError(t, err)
	assert.True(t, seen)
	seen, err = reg.Contains(context.Background(), "evt_c")
	require.NoError(t, err)
	assert.False(t, seen)
	_, err = reg.Contains(context.Background(), "")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	res, err := reg.Register(context.Background(), "evt_a")
	require.NoError(t, err)
	assert.True(t, res.IsDuplicate)
}

func TestMemoryRegistryConcurrentRegisterAdmitsOne(t *testing.T) {
	reg := NewMemoryRegistry()
	var fresh atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := reg.Register(context.Background(), "evt_race")
			if err == nil && !res.IsDuplicate {
				fresh.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, fresh.Load())
}

type fakeRedis struct {
	redis.Cmdable
	mu   sync.Mutex
	keys map[string]bool
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, _ interface{}, _ time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewBoolCmd(ctx)
	if f.keys[key] {
		cmd.SetVal(false)
		return cmd
	}
	f.keys[key] = true
	cmd.SetVal(true)
	return cmd
}

func (f *fakeRedis) Exists(ctx context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewIntCmd(ctx)
	var n int64
	for _, k := range keys {
		if f.keys[k] {
			n++
		}
	}
	cmd.SetVal(n)
	return cmd
}

func TestRedisRegistry(t *testing.T) {
	fake := &fakeRedis{keys: map[string]bool{}}
	reg := NewRedisRegistry(fake, "test:")

	seen, err := reg.Contains(context.Background(), "evt_9")
	require.NoError(t, err)
	assert.False(t, seen)

	res, err := reg.Register(context.Background(), " evt_9 ")
	require.NoError(t, err)
	assert.False(t, res.IsDuplicate)
	assert.True(t, fake.keys["test:evt_9"])

	seen, err = reg.Contains(context.Background(), "evt_9")
	require.NoError(t, err)
	assert.True(t, seen)

	res, err = reg.Register(context.Background(), "evt_9")
	require.NoError(t, err)
	assert.True(t, res.IsDuplicate)

	_, err = reg.Register(context.Background(), "")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}
