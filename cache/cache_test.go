package cache

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_SetGetLen(t *testing.T) {
	c := NewCache[string, string]()
	assert.Equal(t, 0, c.Len())

	c.Set("OPENMPI", "/sw/OpenMPI/4.1.5")
	val, ok := c.Get("OPENMPI")
	require.True(t, ok)
	assert.Equal(t, "/sw/OpenMPI/4.1.5", val)
	assert.Equal(t, 1, c.Len())

	_, ok = c.Get("nonexistent")
	assert.False(t, ok)
}

func TestCache_Clean(t *testing.T) {
	c := NewCache[string, int]()
	c.Set("b", 1)
	c.Set("a", 2)
	c.Set("c", 3)

	assert.Equal(t, 3, c.Len())
	c.Clean()
	assert.Equal(t, 0, c.Len())
}

func TestCache_GetOrLoad(t *testing.T) {
	c := NewCache[string, string]()
	calls := 0
	load := func(k string) (string, error) {
		calls++
		return "v-" + k, nil
	}
	v, err := c.GetOrLoad("x", load)
	require.NoError(t, err)
	assert.Equal(t, "v-x", v)
	v, err = c.GetOrLoad("x", load)
	require.NoError(t, err)
	assert.Equal(t, "v-x", v)
	assert.Equal(t, 1, calls)

	_, err = c.GetOrLoad("bad", func(string) (string, error) { return "", errors.New("nope") })
	assert.Error(t, err)
	_, ok := c.Get("bad")
	assert.False(t, ok)
}
