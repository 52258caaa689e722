package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRasterState(t *testing.T) {
	r := DefaultRasterState()
	assert.Equal(t, CullBack, r.Cull)
	assert.Equal(t, WindingCCW, r.FrontFace)
	assert.Equal(t, CompareLess, r.DepthCompare)
	assert.True(t, r.DepthWrite)

	assert.False(t, r.Culled(1), "ccw is front")
	assert.True(t, r.Culled(-1), "cw is back")
	assert.True(t, r.Culled(0), "zero area is never front")

	r.FrontFace = WindingCW
	assert.True(t, r.Culled(1))
	r.Cull = CullNone
	assert.False(t, r.Culled(-1))
}

func TestCompareFunc(t *testing.T) {
	assert.True(t, CompareLess.Test(0.2, 0.5))
	assert.False(t, CompareLess.Test(0.5, 0.5))
	assert.True(t, CompareLessEqual.Test(0.5, 0.5))
	assert.True(t, CompareAlways.Test(1, 0))
}

func TestBlendRGBA(t *testing.T) {
	r := DefaultRasterState()

	out := r.BlendRGBA([4]float32{1, 0, 0, 0.25}, [4]float32{0, 0, 1, 1})
	assert.InDelta(t, 0.25, out[0], 1e-6)
	assert.InDelta(t, 0.75, out[2], 1e-6)
	// alpha one/zero keeps the source alpha
	assert.InDelta(t, 0.25, out[3], 1e-6)

	opaque := r.BlendRGBA([4]float32{0.1, 0.2, 0.3, 1}, [4]float32{1, 1, 1, 1})
	assert.InDeltaSlice(t, []float32{0.1, 0.2, 0.3, 1}, opaque[:], 1e-6)
}

func TestParseVariant(t *testing.T) {
	for _, v := range Variants {
		got, err := ParseVariant(" " + string(v) + " ")
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
	v, err := ParseVariant("Static")
	require.NoError(t, err)
	assert.Equal(t, VariantStatic, v)

	_, err = ParseVariant("mesh-shader")
	assert.Error(t, err)

	assert.True(t, VariantCompute.PerFrameGeometry())
	assert.False(t, VariantStatic.PerFrameGeometry())
	assert.False(t, VariantVertexPulling.UsesMeshBuffers())
	assert.True(t, VariantStatic.UsesMeshBuffers())
}
