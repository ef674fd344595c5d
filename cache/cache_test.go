package cache

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_SetGetNoExpiry(t *testing.T) {
	c, err := New(0)
	require.NoError(t, err)

	require.NoError(t, c.Set("ns", "k", "v", Expiry{}))
	var out string
	ok, err := c.Get("ns", "k", &out)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", out)
}

func TestCache_TTLExpires(t *testing.T) {
	c, err := New(0)
	require.NoError(t, err)
	clock := time.Now()
	c.now = func() time.Time { return clock }

	require.NoError(t, c.Set("ns", "k", "v", TTL(time.Second)))
	assert.True(t, c.Contains("ns", "k"))

	clock = clock.Add(2 * time.Second)
	assert.False(t, c.Contains("ns", "k"))
}

func TestCache_TTIResetsOnAccess(t *testing.T) {
	c, err := New(0)
	require.NoError(t, err)
	clock := time.Now()
	c.now = func() time.Time { return clock }

	require.NoError(t, c.Set("ns", "k", "v", TTI(time.Second)))

	clock = clock.Add(600 * time.Millisecond)
	assert.True(t, c.Contains("ns", "k")) // access resets horizon

	clock = clock.Add(600 * time.Millisecond)
	assert.True(t, c.Contains("ns", "k")) // still alive: reset pushed it out

	clock = clock.Add(2 * time.Second)
	assert.False(t, c.Contains("ns", "k"))
}

func TestCache_GetWith_RaceSafeSingleInit(t *testing.T) {
	c, err := New(0)
	require.NoError(t, err)

	var calls int64
	init := func() (any, error) {
		atomic.AddInt64(&calls, 1)
		time.Sleep(10 * time.Millisecond)
		return "computed", nil
	}

	results := make(chan any, 8)
	for i := 0; i < 8; i++ {
		go func() {
			v, err := c.GetWith("ns", "shared", Expiry{}, init)
			require.NoError(t, err)
			results <- v
		}()
	}
	for i := 0; i < 8; i++ {
		assert.Equal(t, "computed", <-results)
	}
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
}

func TestCache_Delete(t *testing.T) {
	c, _ := New(0)
	_ = c.Set("ns", "k", "v", Expiry{})
	c.Delete("ns", "k")
	assert.False(t, c.Contains("ns", "k"))
}
