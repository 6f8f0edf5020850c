package cache_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kukuri-social/kukuri/internal/cache"
	"github.com/kukuri-social/kukuri/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testUser(id, name string) *model.User {
	return &model.User{
		ID:          id,
		DisplayName: name,
		Following:   []string{},
		Followers:   []string{},
		CreatedAt:   1700000000,
	}
}

func TestCacheBasics(t *testing.T) {
	t.Parallel()

	c := cache.New[*model.User](zap.NewNop())

	t.Run("get absent", func(t *testing.T) {
		_, ok := c.Get("missing")
		assert.False(t, ok)
	})

	t.Run("put and get", func(t *testing.T) {
		c.Put("u1", testUser("u1", "Ann"))

		got, ok := c.Get("u1")
		require.True(t, ok)
		assert.Equal(t, "Ann", got.DisplayName)
	})

	t.Run("invalidate", func(t *testing.T) {
		c.Put("u2", testUser("u2", "Bob"))
		c.Invalidate("u2")

		_, ok := c.Get("u2")
		assert.False(t, ok)
	})

	t.Run("invalidate absent is a no-op", func(t *testing.T) {
		c.Invalidate("never-seen")
	})

	t.Run("clear", func(t *testing.T) {
		c.Put("u3", testUser("u3", "Cid"))
		c.Clear()
		assert.Equal(t, 0, c.Len())
	})
}

func TestCachePutIdempotent(t *testing.T) {
	t.Parallel()

	c := cache.New[*model.User](zap.NewNop())

	var notifications atomic.Int64

	unsubscribe := c.Subscribe(func() { notifications.Add(1) })
	defer unsubscribe()

	c.Put("u1", testUser("u1", "Ann"))
	require.Equal(t, int64(1), notifications.Load())

	// Writing a structurally equal value must not re-notify.
	c.Put("u1", testUser("u1", "Ann"))
	assert.Equal(t, int64(1), notifications.Load())

	// A changed value notifies again.
	c.Put("u1", testUser("u1", "Annie"))
	assert.Equal(t, int64(2), notifications.Load())

	got, ok := c.Get("u1")
	require.True(t, ok)
	assert.Equal(t, "Annie", got.DisplayName)
}

func TestCacheSubscribe(t *testing.T) {
	t.Parallel()

	c := cache.New[*model.User](zap.NewNop())

	var notifications atomic.Int64

	unsubscribe := c.Subscribe(func() { notifications.Add(1) })

	c.Put("u1", testUser("u1", "Ann"))
	assert.Equal(t, int64(1), notifications.Load())

	unsubscribe()
	unsubscribe() // safe to call twice

	c.Put("u2", testUser("u2", "Bob"))
	assert.Equal(t, int64(1), notifications.Load())
}

func TestCacheFetchCoalescing(t *testing.T) {
	t.Parallel()

	c := cache.New[*model.User](zap.NewNop())

	var (
		calls   atomic.Int64
		release = make(chan struct{})
	)

	fetch := func(context.Context) (*model.User, error) {
		calls.Add(1)
		<-release

		return testUser("u1", "Ann"), nil
	}

	var wg sync.WaitGroup

	results := make([]*model.User, 2)

	for i := range results {
		i := i // per-iteration copy; the loop var is shared before Go 1.22
		wg.Add(1)

		go func() {
			defer wg.Done()

			user, err := c.Fetch(context.Background(), "u1", fetch)
			assert.NoError(t, err)
			results[i] = user
		}()
	}

	// Let both goroutines reach the fetch before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load(), "concurrent fetches must share one request")
	assert.Equal(t, results[0], results[1], "both callers must receive the same result")

	_, ok := c.Get("u1")
	assert.True(t, ok)
}

func TestCacheFetchNotFound(t *testing.T) {
	t.Parallel()

	c := cache.New[*model.User](zap.NewNop())

	user, err := c.Fetch(context.Background(), "ghost", func(context.Context) (*model.User, error) {
		return nil, nil
	})
	require.NoError(t, err)
	assert.Nil(t, user)

	// A nil result stays absent rather than caching a tombstone.
	_, ok := c.Get("ghost")
	assert.False(t, ok)
}

func TestCacheFetchUsesCachedValue(t *testing.T) {
	t.Parallel()

	c := cache.New[*model.User](zap.NewNop())
	c.Put("u1", testUser("u1", "Ann"))

	user, err := c.Fetch(context.Background(), "u1", func(context.Context) (*model.User, error) {
		t.Fatal("fetch must not run for a present entry")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Ann", user.DisplayName)
}
