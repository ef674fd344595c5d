package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBase_AddGet(t *testing.T) {
	r := New[int]("test")
	require.NoError(t, r.Add("weather", 1))
	v, ok := r.Get("weather")
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestBase_DuplicateName(t *testing.T) {
	r := New[int]("test")
	require.NoError(t, r.Add("weather", 1))
	err := r.Add("weather", 2)
	require.Error(t, err)
}

func TestBase_InvalidName(t *testing.T) {
	r := New[int]("test")
	tests := []string{"", "Weather", "weather tool", "weather-tool", string(make([]byte, 65))}
	for _, name := range tests {
		err := r.Add(name, 1)
		assert.Error(t, err, "expected error for name %q", name)
	}
}

func TestBase_RemoveAndCount(t *testing.T) {
	r := New[int]("test")
	require.NoError(t, r.Add("a", 1))
	require.NoError(t, r.Add("b", 2))
	assert.Equal(t, 2, r.Count())
	require.NoError(t, r.Remove("a"))
	assert.Equal(t, 1, r.Count())
	assert.False(t, r.Contains("a"))
	assert.Error(t, r.Remove("a"))
}
