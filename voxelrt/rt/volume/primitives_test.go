package volume

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSphereIsClippedToGrid(t *testing.T) {
	g, err := NewGrid(8, 8, 8)
	require.NoError(t, err)

	Sphere(g, mgl32.Vec3{0, 0, 0}, 3, 2)
	assert.True(t, g.Occupied(0, 0, 0))
	assert.False(t, g.Occupied(7, 7, 7))

	for _, v := range g.Voxels() {
		idx, _ := g.At(v.X, v.Y, v.Z)
		assert.Equal(t, uint8(2), idx)
	}
}

func TestCubeInclusiveCorners(t *testing.T) {
	g, err := NewGrid(4, 4, 4)
	require.NoError(t, err)

	Cube(g, mgl32.Vec3{1, 1, 1}, mgl32.Vec3{2, 2, 2}, 0)
	assert.Equal(t, 8, g.Count())
	assert.True(t, g.Occupied(2, 2, 2))
	assert.False(t, g.Occupied(3, 3, 3))
}

func TestProcedural(t *testing.T) {
	for _, shape := range Shapes {
		g, err := Procedural(shape, 16)
		require.NoError(t, err, shape)
		assert.Greater(t, g.Count(), 0, shape)
	}

	pair, err := Procedural("pair", 4)
	require.NoError(t, err)
	assert.Equal(t, []Coord{{0, 0, 0}, {1, 0, 0}}, pair.Voxels())

	cube, err := Procedural("cube", 4)
	require.NoError(t, err)
	assert.Equal(t, 64, cube.Count())

	_, err = Procedural("torus", 4)
	assert.Error(t, err)
	_, err = Procedural("cube", 300)
	assert.ErrorIs(t, err, ErrGridTooLarge)
}
