package cache

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExpiring_SetGetEvict(t *testing.T) {
	c := New[string, int](time.Minute)

	c.Set("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, 1, v)
	require.True(t, c.Has("a"))

	v, ok = c.Evict("a")
	require.True(t, ok)
	require.Equal(t, 1, v)

	_, ok = c.Get("a")
	require.False(t, ok)
	_, ok = c.Evict("a")
	require.False(t, ok)
}

func TestExpiring_WriteTTL(t *testing.T) {
	c := New[string, string](30 * time.Millisecond)
	c.Set("k", "v")

	_, ok := c.Get("k")
	require.True(t, ok)

	time.Sleep(60 * time.Millisecond)

	_, ok = c.Get("k")
	require.False(t, ok, "entry must be unreadable after TTL")
	require.Empty(t, c.Values(), "expired entries must not appear in Values")
}

func TestExpiring_Values(t *testing.T) {
	c := New[string, int](time.Minute)
	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
	}
	require.Len(t, c.Values(), 5)
}

func TestExpiring_EvictIsAtomic(t *testing.T) {
	c := New[string, int](time.Minute)
	c.Set("code", 42)

	const n = 32
	var wins int64
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, ok := c.Evict("code"); ok {
				atomic.AddInt64(&wins, 1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(1), wins, "exactly one concurrent eviction may win")
}

func TestExpiring_EvictIf(t *testing.T) {
	c := New[string, int](time.Minute)
	c.Set("code", 42)

	// A rejected entry is returned for inspection but stays cached.
	v, found, evicted := c.EvictIf("code", func(v int) bool { return v == 99 })
	require.True(t, found)
	require.False(t, evicted)
	require.Equal(t, 42, v)
	require.True(t, c.Has("code"))

	v, found, evicted = c.EvictIf("code", func(v int) bool { return v == 42 })
	require.True(t, found)
	require.True(t, evicted)
	require.Equal(t, 42, v)
	require.False(t, c.Has("code"))

	_, found, _ = c.EvictIf("code", func(int) bool { return true })
	require.False(t, found)
}

func TestExpiring_EvictIfIsAtomic(t *testing.T) {
	c := New[string, int](time.Minute)
	c.Set("code", 42)

	const n = 32
	var wins int64
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, _, evicted := c.EvictIf("code", func(int) bool { return true }); evicted {
				atomic.AddInt64(&wins, 1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(1), wins, "exactly one matching eviction may win")
}

func TestExpiring_FindOrCreate_CreatesOncePerMatch(t *testing.T) {
	c := New[string, int](time.Minute)

	var created int64
	const n = 16
	results := make([]int, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			v, err := c.FindOrCreate(
				func(v int) bool { return v == 7 },
				func() (string, int, error) {
					atomic.AddInt64(&created, 1)
					return "seven", 7, nil
				},
			)
			require.NoError(t, err)
			results[i] = v
		}()
	}
	wg.Wait()

	require.Equal(t, int64(1), created, "create must run exactly once under contention")
	for _, v := range results {
		require.Equal(t, 7, v)
	}
}

func TestExpiring_FindOrCreate_PropagatesError(t *testing.T) {
	c := New[string, int](time.Minute)
	_, err := c.FindOrCreate(
		func(int) bool { return false },
		func() (string, int, error) { return "", 0, fmt.Errorf("boom") },
	)
	require.Error(t, err)
	require.Empty(t, c.Values())
}
