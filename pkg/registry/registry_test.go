package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseRegistryRegisterAndGet(t *testing.T) {
	r := NewBaseRegistry[int]()

	require.NoError(t, r.Register("one", 1))
	require.NoError(t, r.Register("two", 2))

	v, ok := r.Get("one")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = r.Get("three")
	assert.False(t, ok)

	assert.Equal(t, 2, r.Count())
}

func TestBaseRegistryDuplicate(t *testing.T) {
	r := NewBaseRegistry[string]()

	require.NoError(t, r.Register("a", "first"))
	assert.Error(t, r.Register("a", "second"))

	v, _ := r.Get("a")
	assert.Equal(t, "first", v)
}

func TestBaseRegistryNamesSorted(t *testing.T) {
	r := NewBaseRegistry[int]()

	require.NoError(t, r.Register("zebra", 1))
	require.NoError(t, r.Register("alpha", 2))
	require.NoError(t, r.Register("mango", 3))

	assert.Equal(t, []string{"alpha", "mango", "zebra"}, r.Names())
}

func TestBaseRegistryRemove(t *testing.T) {
	r := NewBaseRegistry[int]()

	require.NoError(t, r.Register("x", 1))
	require.NoError(t, r.Remove("x"))
	assert.Error(t, r.Remove("x"))

	_, ok := r.Get("x")
	assert.False(t, ok)
}

func TestBaseRegistryClear(t *testing.T) {
	r := NewBaseRegistry[int]()

	require.NoError(t, r.Register("x", 1))
	require.NoError(t, r.Register("y", 2))
	r.Clear()
	assert.Equal(t, 0, r.Count())
	assert.Empty(t, r.List())
}
