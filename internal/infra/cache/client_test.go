//go:build unit

package cache

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"dealhub/internal/pkg/clock"
	"dealhub/internal/pkg/config"
	"dealhub/internal/pkg/errs"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type widget struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Get(ctx context.Context, key string) *redis.StringCmd {
	args := m.Called(ctx, key)
	return args.Get(0).(*redis.StringCmd)
}

func (m *mockStore) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	args := m.Called(ctx, key, value, expiration)
	return args.Get(0).(*redis.StatusCmd)
}

func (m *mockStore) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	args := m.Called(ctx, keys)
	return args.Get(0).(*redis.IntCmd)
}

type mockLocks struct {
	mock.Mock
}

func (m *mockLocks) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	args := m.Called(ctx, key, value, expiration)
	return args.Get(0).(*redis.BoolCmd)
}

func (m *mockLocks) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	called := m.Called(ctx, script, keys, args)
	return called.Get(0).(*redis.Cmd)
}

func (m *mockLocks) EvalSha(ctx context.Context, sha1 string, keys []string, args ...interface{}) *redis.Cmd {
	called := m.Called(ctx, sha1, keys, args)
	return called.Get(0).(*redis.Cmd)
}

func (m *mockLocks) EvalRO(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	called := m.Called(ctx, script, keys, args)
	return called.Get(0).(*redis.Cmd)
}

func (m *mockLocks) EvalShaRO(ctx context.Context, sha1 string, keys []string, args ...interface{}) *redis.Cmd {
	called := m.Called(ctx, sha1, keys, args)
	return called.Get(0).(*redis.Cmd)
}

func (m *mockLocks) ScriptExists(ctx context.Context, hashes ...string) *redis.BoolSliceCmd {
	called := m.Called(ctx, hashes)
	return called.Get(0).(*redis.BoolSliceCmd)
}

func (m *mockLocks) ScriptLoad(ctx context.Context, script string) *redis.StringCmd {
	called := m.Called(ctx, script)
	return called.Get(0).(*redis.StringCmd)
}

func newTestClient(store *mockStore, locks *mockLocks, clk clock.Clock) *Client {
	cfg := config.NewTestConfig()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(store, locks, clk, logger, cfg.Cache, cfg.Lock)
}

func encodeValue(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

func encodeEntry(t *testing.T, v any, expireAt time.Time) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	payload, err := json.Marshal(entry{Data: data, ExpireAt: expireAt})
	require.NoError(t, err)
	return string(payload)
}

func failLoader(t *testing.T) Loader[widget] {
	return func(_ context.Context) (*widget, error) {
		t.Fatal("loader must not be invoked")
		return nil, nil
	}
}

func TestQueryPassThrough(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMockClock(time.Date(2023, 6, 15, 8, 0, 0, 0, time.UTC))
	cached := widget{ID: 1, Name: "espresso"}

	t.Run("hit returns cached value unchanged", func(t *testing.T) {
		store := new(mockStore)
		store.On("Get", mock.Anything, "cache:widget:1").
			Return(redis.NewStringResult(encodeValue(t, cached), nil))

		c := newTestClient(store, new(mockLocks), clk)
		got, err := QueryPassThrough(ctx, c, "cache:widget:", "1", failLoader(t), time.Minute)
		require.NoError(t, err)
		assert.Equal(t, &cached, got)
	})

	t.Run("cached empty marker short-circuits the loader", func(t *testing.T) {
		store := new(mockStore)
		store.On("Get", mock.Anything, "cache:widget:1").
			Return(redis.NewStringResult("", nil))

		c := newTestClient(store, new(mockLocks), clk)
		_, err := QueryPassThrough(ctx, c, "cache:widget:", "1", failLoader(t), time.Minute)
		require.ErrorIs(t, err, errs.ErrNotFound)
	})

	t.Run("miss loads and repopulates", func(t *testing.T) {
		store := new(mockStore)
		store.On("Get", mock.Anything, "cache:widget:1").
			Return(redis.NewStringResult("", redis.Nil))
		store.On("Set", mock.Anything, "cache:widget:1", mock.Anything, time.Minute).
			Return(redis.NewStatusResult("OK", nil))

		c := newTestClient(store, new(mockLocks), clk)
		loads := 0
		got, err := QueryPassThrough(ctx, c, "cache:widget:", "1", func(_ context.Context) (*widget, error) {
			loads++
			return &cached, nil
		}, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, &cached, got)
		assert.Equal(t, 1, loads)
		store.AssertExpectations(t)
	})

	t.Run("loader absence caches an empty marker with the null TTL", func(t *testing.T) {
		cfg := config.NewTestConfig()
		store := new(mockStore)
		store.On("Get", mock.Anything, "cache:widget:9").
			Return(redis.NewStringResult("", redis.Nil))
		store.On("Set", mock.Anything, "cache:widget:9", "", cfg.Cache.NullTTL).
			Return(redis.NewStatusResult("OK", nil))

		c := newTestClient(store, new(mockLocks), clk)
		_, err := QueryPassThrough(ctx, c, "cache:widget:", "9", func(_ context.Context) (*widget, error) {
			return nil, nil
		}, time.Minute)
		require.ErrorIs(t, err, errs.ErrNotFound)
		store.AssertExpectations(t)
	})
}

func TestQueryWithMutex(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMockClock(time.Date(2023, 6, 15, 8, 0, 0, 0, time.UTC))
	cached := widget{ID: 2, Name: "latte"}
	cfg := config.NewTestConfig()

	t.Run("miss rebuilds under the key lock", func(t *testing.T) {
		store := new(mockStore)
		// miss, then the double-check under the lock also misses
		store.On("Get", mock.Anything, "cache:widget:2").
			Return(redis.NewStringResult("", redis.Nil)).Twice()
		store.On("Set", mock.Anything, "cache:widget:2", mock.Anything, time.Minute).
			Return(redis.NewStatusResult("OK", nil))

		locks := new(mockLocks)
		locks.On("SetNX", mock.Anything, "lock:cache:widget:2", mock.Anything, cfg.Lock.Lease).
			Return(redis.NewBoolResult(true, nil)).Once()
		locks.On("EvalSha", mock.Anything, mock.Anything, []string{"lock:cache:widget:2"}, mock.Anything).
			Return(redis.NewCmdResult(int64(1), nil)).Once()

		c := newTestClient(store, locks, clk)
		loads := 0
		got, err := QueryWithMutex(ctx, c, "cache:widget:", "2", func(_ context.Context) (*widget, error) {
			loads++
			return &cached, nil
		}, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, &cached, got)
		assert.Equal(t, 1, loads)
		locks.AssertExpectations(t)
	})

	t.Run("loser retries the read and hits without loading", func(t *testing.T) {
		store := new(mockStore)
		store.On("Get", mock.Anything, "cache:widget:2").
			Return(redis.NewStringResult("", redis.Nil)).Once()
		store.On("Get", mock.Anything, "cache:widget:2").
			Return(redis.NewStringResult(encodeValue(t, cached), nil)).Once()

		locks := new(mockLocks)
		locks.On("SetNX", mock.Anything, "lock:cache:widget:2", mock.Anything, cfg.Lock.Lease).
			Return(redis.NewBoolResult(false, nil)).Once()

		c := newTestClient(store, locks, clk)
		got, err := QueryWithMutex(ctx, c, "cache:widget:", "2", failLoader(t), time.Minute)
		require.NoError(t, err)
		assert.Equal(t, &cached, got)
	})

	t.Run("bounded retries end in ErrLockUnavailable", func(t *testing.T) {
		store := new(mockStore)
		store.On("Get", mock.Anything, "cache:widget:2").
			Return(redis.NewStringResult("", redis.Nil))

		locks := new(mockLocks)
		locks.On("SetNX", mock.Anything, "lock:cache:widget:2", mock.Anything, cfg.Lock.Lease).
			Return(redis.NewBoolResult(false, nil))

		c := newTestClient(store, locks, clk)
		_, err := QueryWithMutex(ctx, c, "cache:widget:", "2", failLoader(t), time.Minute)
		require.ErrorIs(t, err, errs.ErrLockUnavailable)
		locks.AssertNumberOfCalls(t, "SetNX", cfg.Lock.MaxAttempts)
	})
}

func TestQueryWithLogicalExpire(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2023, 6, 15, 8, 0, 0, 0, time.UTC)
	clk := clock.NewMockClock(now)
	cached := widget{ID: 3, Name: "mocha"}
	cfg := config.NewTestConfig()

	t.Run("absent key is absent, no warm-up on the read path", func(t *testing.T) {
		store := new(mockStore)
		store.On("Get", mock.Anything, "cache:widget:3").
			Return(redis.NewStringResult("", redis.Nil))

		c := newTestClient(store, new(mockLocks), clk)
		_, err := QueryWithLogicalExpire(ctx, c, "cache:widget:", "3", failLoader(t), time.Minute)
		require.ErrorIs(t, err, errs.ErrNotFound)
	})

	t.Run("fresh entry is served without locking", func(t *testing.T) {
		store := new(mockStore)
		store.On("Get", mock.Anything, "cache:widget:3").
			Return(redis.NewStringResult(encodeEntry(t, cached, now.Add(time.Minute)), nil))

		locks := new(mockLocks)
		c := newTestClient(store, locks, clk)
		got, err := QueryWithLogicalExpire(ctx, c, "cache:widget:", "3", failLoader(t), time.Minute)
		require.NoError(t, err)
		assert.Equal(t, &cached, got)
		locks.AssertNotCalled(t, "SetNX", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("expired entry is served stale and rebuilt asynchronously", func(t *testing.T) {
		rebuilt := make(chan struct{})
		release := make(chan struct{})

		store := new(mockStore)
		store.On("Get", mock.Anything, "cache:widget:3").
			Return(redis.NewStringResult(encodeEntry(t, cached, now.Add(-time.Minute)), nil))
		store.On("Set", mock.Anything, "cache:widget:3", mock.Anything, time.Duration(0)).
			Return(redis.NewStatusResult("OK", nil))

		locks := new(mockLocks)
		locks.On("SetNX", mock.Anything, "lock:cache:widget:3", mock.Anything, cfg.Lock.Lease).
			Return(redis.NewBoolResult(true, nil)).Once()
		locks.On("EvalSha", mock.Anything, mock.Anything, []string{"lock:cache:widget:3"}, mock.Anything).
			Run(func(_ mock.Arguments) { close(rebuilt) }).
			Return(redis.NewCmdResult(int64(1), nil)).Once()

		c := newTestClient(store, locks, clk)
		fresh := widget{ID: 3, Name: "flat white"}
		got, err := QueryWithLogicalExpire(ctx, c, "cache:widget:", "3", func(_ context.Context) (*widget, error) {
			<-release
			return &fresh, nil
		}, time.Minute)

		// The stale value came back before the loader was allowed to finish:
		// reader latency is bounded by the store round trip alone.
		require.NoError(t, err)
		assert.Equal(t, &cached, got)

		close(release)
		select {
		case <-rebuilt:
		case <-time.After(time.Second):
			t.Fatal("rebuild task never released the lock")
		}
		store.AssertExpectations(t)
	})

	t.Run("rebuild skips when a competitor already refreshed the entry", func(t *testing.T) {
		released := make(chan struct{})

		store := new(mockStore)
		store.On("Get", mock.Anything, "cache:widget:3").
			Return(redis.NewStringResult(encodeEntry(t, cached, now.Add(-time.Minute)), nil)).Once()
		// The re-read under the lock sees a fresh entry.
		store.On("Get", mock.Anything, "cache:widget:3").
			Return(redis.NewStringResult(encodeEntry(t, cached, now.Add(time.Minute)), nil)).Once()

		locks := new(mockLocks)
		locks.On("SetNX", mock.Anything, "lock:cache:widget:3", mock.Anything, cfg.Lock.Lease).
			Return(redis.NewBoolResult(true, nil)).Once()
		locks.On("EvalSha", mock.Anything, mock.Anything, []string{"lock:cache:widget:3"}, mock.Anything).
			Run(func(_ mock.Arguments) { close(released) }).
			Return(redis.NewCmdResult(int64(1), nil)).Once()

		c := newTestClient(store, locks, clk)
		loads := 0
		got, err := QueryWithLogicalExpire(ctx, c, "cache:widget:", "3", func(_ context.Context) (*widget, error) {
			loads++
			return &cached, nil
		}, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, &cached, got)

		select {
		case <-released:
		case <-time.After(time.Second):
			t.Fatal("rebuild task never released the lock")
		}
		assert.Equal(t, 0, loads)
		store.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("losing the key lock skips the rebuild", func(t *testing.T) {
		store := new(mockStore)
		store.On("Get", mock.Anything, "cache:widget:3").
			Return(redis.NewStringResult(encodeEntry(t, cached, now.Add(-time.Minute)), nil))

		locks := new(mockLocks)
		locks.On("SetNX", mock.Anything, "lock:cache:widget:3", mock.Anything, cfg.Lock.Lease).
			Return(redis.NewBoolResult(false, nil)).Once()

		c := newTestClient(store, locks, clk)
		got, err := QueryWithLogicalExpire(ctx, c, "cache:widget:", "3", failLoader(t), time.Minute)
		require.NoError(t, err)
		assert.Equal(t, &cached, got)
		locks.AssertNotCalled(t, "EvalSha", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestSetWithLogicalExpireWrapsPayload(t *testing.T) {
	now := time.Date(2023, 6, 15, 8, 0, 0, 0, time.UTC)
	clk := clock.NewMockClock(now)

	store := new(mockStore)
	store.On("Set", mock.Anything, "cache:widget:5", mock.MatchedBy(func(b []byte) bool {
		var e entry
		if err := json.Unmarshal(b, &e); err != nil {
			return false
		}
		return e.ExpireAt.Equal(now.Add(time.Minute))
	}), time.Duration(0)).Return(redis.NewStatusResult("OK", nil))

	c := newTestClient(store, new(mockLocks), clk)
	err := c.SetWithLogicalExpire(context.Background(), "cache:widget:5", widget{ID: 5}, time.Minute)
	require.NoError(t, err)
	store.AssertExpectations(t)
}
