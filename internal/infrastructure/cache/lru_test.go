package cache

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRU_BasicOperations(t *testing.T) {
	c := NewLRU[string, int](3, 0)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	val, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, val)

	val, ok = c.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, 0, val)

	assert.Equal(t, 3, c.Len())

	c.Remove("a")
	c.Remove("a")
	assert.Equal(t, 2, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU[string, int](2, 0)

	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a") // b is now the oldest
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "b should have been evicted")
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestLRU_SetExistingUpdates(t *testing.T) {
	c := NewLRU[string, int](2, 0)

	c.Set("a", 1)
	c.Set("a", 10)

	val, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 10, val)
	assert.Equal(t, 1, c.Len())
}

func TestLRU_ZeroCapacity(t *testing.T) {
	c := NewLRU[string, int](0, 0)

	c.Set("a", 1)
	c.Set("b", 2)

	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("b")
	assert.True(t, ok)
}

func TestLRU_TTL(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewLRU[string, struct{}](10, time.Hour)
	c.now = func() time.Time { return now }

	c.Set("https://example.com/a.webp", struct{}{})
	now = now.Add(30 * time.Minute)
	c.Set("https://example.com/b.webp", struct{}{})

	_, ok := c.Get("https://example.com/a.webp")
	assert.True(t, ok)

	now = now.Add(31 * time.Minute)
	_, ok = c.Get("https://example.com/a.webp")
	assert.False(t, ok, "a expired")
	assert.Equal(t, 1, c.Len())

	// Setting again refreshes the expiry.
	c.Set("https://example.com/b.webp", struct{}{})
	now = now.Add(59 * time.Minute)
	_, ok = c.Get("https://example.com/b.webp")
	assert.True(t, ok)

	now = now.Add(2 * time.Hour)
	assert.Equal(t, 0, c.Len())
}

func TestLRU_Concurrent(t *testing.T) {
	c := NewLRU[string, int](64, time.Minute)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := strconv.Itoa(g*1000 + i)
				c.Set(key, i)
				_, _ = c.Get(key)
				if i%10 == 0 {
					c.Remove(key)
				}
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 64)
}
