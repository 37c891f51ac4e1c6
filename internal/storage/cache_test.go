package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache(ttl time.Duration) (*Cache[string], *fakeClock) {
	clk := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewCache[string](ttl, clk.Now), clk
}

func TestCache_PutThenGet(t *testing.T) {
	c, clk := newTestCache(5 * time.Minute)

	c.Put("90210", "sunny")
	clk.Advance(4*time.Minute + 59*time.Second)

	got, ok := c.Get("90210")
	require.True(t, ok)
	assert.Equal(t, "sunny", got)
}

func TestCache_MissingKey(t *testing.T) {
	c, _ := newTestCache(time.Minute)

	_, ok := c.Get("10001")
	assert.False(t, ok)
}

func TestCache_ExpiresLazily(t *testing.T) {
	c, clk := newTestCache(5 * time.Minute)

	c.Put("90210", "sunny")
	clk.Advance(5 * time.Minute)

	_, ok := c.Get("90210")
	assert.False(t, ok, "entry at exactly ttl must be stale")
	assert.Equal(t, 1, c.Len(), "stale entries are not removed on read")
}

func TestCache_PutOverwritesAndRestamps(t *testing.T) {
	c, clk := newTestCache(5 * time.Minute)

	c.Put("90210", "sunny")
	clk.Advance(4 * time.Minute)
	c.Put("90210", "rain")
	clk.Advance(4 * time.Minute)

	got, ok := c.Get("90210")
	require.True(t, ok)
	assert.Equal(t, "rain", got)
	assert.Equal(t, 1, c.Len())
}

func TestCache_Sweep(t *testing.T) {
	c, clk := newTestCache(5 * time.Minute)

	c.Put("old", "a")
	clk.Advance(6 * time.Minute)
	c.Put("fresh", "b")

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 1, c.Len())

	_, ok := c.Get("fresh")
	assert.True(t, ok)
}
