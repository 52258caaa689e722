package volume

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGridBounds(t *testing.T) {
	_, err := NewGrid(0, 1, 1)
	assert.ErrorIs(t, err, ErrGridTooLarge)

	_, err = NewGrid(1, 257, 1)
	assert.ErrorIs(t, err, ErrGridTooLarge)

	g, err := NewGrid(256, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 512, g.CellCount())
	assert.Equal(t, 0, g.Count())
}

func TestGridIndexMath(t *testing.T) {
	g, err := NewGrid(4, 3, 2)
	require.NoError(t, err)

	if g.Index(0, 0, 0) != 0 {
		t.Errorf("Expected index 0, got %d", g.Index(0, 0, 0))
	}
	if g.Index(1, 0, 0) != 1 {
		t.Errorf("x should vary fastest, got %d", g.Index(1, 0, 0))
	}
	if g.Index(0, 1, 0) != 4 {
		t.Errorf("Expected row stride 4, got %d", g.Index(0, 1, 0))
	}
	if g.Index(0, 0, 1) != 12 {
		t.Errorf("Expected slice stride 12, got %d", g.Index(0, 0, 1))
	}
	if g.Index(3, 2, 1) != g.CellCount()-1 {
		t.Errorf("Last cell should map to last index, got %d", g.Index(3, 2, 1))
	}
}

func TestGridSetAtClear(t *testing.T) {
	g, err := NewGrid(2, 2, 2)
	require.NoError(t, err)

	require.NoError(t, g.Set(1, 0, 1, 0))
	require.NoError(t, g.Set(0, 1, 0, 255))

	idx, ok := g.At(1, 0, 1)
	assert.True(t, ok)
	assert.Equal(t, uint8(0), idx, "palette index 0 must be distinguishable from empty")

	idx, ok = g.At(0, 1, 0)
	assert.True(t, ok)
	assert.Equal(t, uint8(255), idx)

	_, ok = g.At(0, 0, 0)
	assert.False(t, ok)
	assert.Equal(t, 2, g.Count())

	// overwrite keeps the count
	require.NoError(t, g.Set(1, 0, 1, 7))
	assert.Equal(t, 2, g.Count())

	g.Clear(1, 0, 1)
	assert.False(t, g.Occupied(1, 0, 1))
	assert.Equal(t, 1, g.Count())

	g.Clear(5, 5, 5)
	assert.Equal(t, 1, g.Count())
}

func TestGridOutOfBounds(t *testing.T) {
	g, err := NewGrid(2, 2, 2)
	require.NoError(t, err)

	err = g.Set(2, 0, 0, 1)
	assert.True(t, errors.Is(err, ErrVoxelOutOfBounds))

	assert.False(t, g.Occupied(-1, 0, 0))
	assert.False(t, g.Occupied(0, 0, 2))
	_, ok := g.At(0, -1, 0)
	assert.False(t, ok)
}

func TestGridVoxelsLinearOrder(t *testing.T) {
	g, err := NewGrid(3, 3, 3)
	require.NoError(t, err)

	require.NoError(t, g.Set(2, 2, 2, 1))
	require.NoError(t, g.Set(0, 0, 0, 1))
	require.NoError(t, g.Set(1, 0, 1, 1))
	require.NoError(t, g.Set(0, 1, 0, 1))

	voxels := g.Voxels()
	require.Len(t, voxels, 4)
	assert.Equal(t, []Coord{{0, 0, 0}, {0, 1, 0}, {1, 0, 1}, {2, 2, 2}}, voxels)

	for i := 1; i < len(voxels); i++ {
		a, b := voxels[i-1], voxels[i]
		if g.Index(a.X, a.Y, a.Z) >= g.Index(b.X, b.Y, b.Z) {
			t.Errorf("Voxels not in linear order at %d", i)
		}
	}
}

func TestGridCopyIsIndependent(t *testing.T) {
	g, err := NewGrid(2, 1, 1)
	require.NoError(t, err)
	require.NoError(t, g.Set(0, 0, 0, 3))

	c := g.Copy()
	require.NoError(t, c.Set(1, 0, 0, 4))

	assert.Equal(t, 1, g.Count())
	assert.False(t, g.Occupied(1, 0, 0))
	assert.Equal(t, 2, c.Count())
}
