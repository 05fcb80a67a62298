package lock

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobKey(t *testing.T) {
	assert.Equal(t, "job:42", JobKey(42))
}

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	k := NewKeyedMutex()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := k.Acquire(context.Background(), "job:1")
			if !assert.NoError(t, err) {
				return
			}
			defer release()

			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, k.size())
}

func TestKeyedMutex_IndependentKeys(t *testing.T) {
	k := NewKeyedMutex()

	release1, err := k.Acquire(context.Background(), "job:1")
	require.NoError(t, err)
	defer release1()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	release2, err := k.Acquire(ctx, "job:2")
	require.NoError(t, err)
	release2()
}

func TestKeyedMutex_ContextCancelled(t *testing.T) {
	k := NewKeyedMutex()

	release, err := k.Acquire(context.Background(), "job:1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = k.Acquire(ctx, "job:1")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release()
	assert.Equal(t, 0, k.size())
}

// fakeRedis is an in-memory stand-in for SET NX and the release script
type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string]string)}
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, _ time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) release(keys []string, args []interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data[keys[0]] == args[0].(string) {
		delete(f.data, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func (f *fakeRedis) Eval(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.release(keys, args)
}

func (f *fakeRedis) EvalSha(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.release(keys, args)
}

func (f *fakeRedis) EvalRO(_ context.Context, _ string, _ []string, _ ...interface{}) *redis.Cmd {
	return redis.NewCmdResult(nil, errors.New("unsupported"))
}

func (f *fakeRedis) EvalShaRO(_ context.Context, _ string, _ []string, _ ...interface{}) *redis.Cmd {
	return redis.NewCmdResult(nil, errors.New("unsupported"))
}

func (f *fakeRedis) ScriptExists(_ context.Context, hashes ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult(make([]bool, len(hashes)), nil)
}

func (f *fakeRedis) ScriptLoad(_ context.Context, _ string) *redis.StringCmd {
	return redis.NewStringResult("", nil)
}

func (f *fakeRedis) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok
}

func TestRedisLocker_AcquireRelease(t *testing.T) {
	client := newFakeRedis()
	l := NewRedisLocker(client, RedisLockerConfig{RetryWait: time.Millisecond}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	release, err := l.Acquire(context.Background(), JobKey(3))
	require.NoError(t, err)
	assert.True(t, client.has("booking:lock:job:3"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, JobKey(3))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	assert.False(t, client.has("booking:lock:job:3"))

	release, err = l.Acquire(context.Background(), JobKey(3))
	require.NoError(t, err)
	release()
}

func TestRedisLocker_ReleaseKeepsForeignToken(t *testing.T) {
	client := newFakeRedis()
	l := NewRedisLocker(client, RedisLockerConfig{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	release, err := l.Acquire(context.Background(), "job:9")
	require.NoError(t, err)

	// Simulate expiry followed by another holder taking the key
	client.mu.Lock()
	client.data["booking:lock:job:9"] = "someone-else"
	client.mu.Unlock()

	release()
	assert.True(t, client.has("booking:lock:job:9"))
}
