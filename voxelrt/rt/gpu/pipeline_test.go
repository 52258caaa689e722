package gpu

import (
	"testing"

	"github.com/gekko3d/voxmesh/voxelrt/rt/core"
	"github.com/gekko3d/voxmesh/voxelrt/rt/mesh"
	"github.com/gekko3d/voxmesh/voxelrt/rt/texture"
	"github.com/gekko3d/voxmesh/voxelrt/rt/volume"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLayoutMapsToVertexBuffer(t *testing.T) {
	l, err := vertexBufferLayout(mesh.DefaultLayout())
	require.NoError(t, err)

	assert.Equal(t, uint64(mesh.VertexStride), l.ArrayStride)
	assert.Equal(t, wgpu.VertexStepModeVertex, l.StepMode)
	require.Len(t, l.Attributes, 3)
	assert.Equal(t, wgpu.VertexAttribute{Format: wgpu.VertexFormatUint8x4, Offset: 0, ShaderLocation: 0}, l.Attributes[0])
	assert.Equal(t, wgpu.VertexAttribute{Format: wgpu.VertexFormatSint8x4, Offset: 4, ShaderLocation: 1}, l.Attributes[1])
	assert.Equal(t, wgpu.VertexAttribute{Format: wgpu.VertexFormatUint8x4, Offset: 8, ShaderLocation: 2}, l.Attributes[2])
}

func TestInvalidLayoutIsRejected(t *testing.T) {
	l := mesh.DefaultLayout()
	l.Stride = 10
	_, err := vertexBufferLayout(l)
	assert.ErrorIs(t, err, mesh.ErrInvalidLayout)
}

func TestDefaultRasterStateMapping(t *testing.T) {
	r := core.DefaultRasterState()

	p := primitiveState(r)
	assert.Equal(t, wgpu.PrimitiveTopologyTriangleList, p.Topology)
	assert.Equal(t, wgpu.FrontFaceCCW, p.FrontFace)
	assert.Equal(t, wgpu.CullModeBack, p.CullMode)

	d := depthStencilState(r)
	assert.Equal(t, DepthFormat, d.Format)
	assert.True(t, d.DepthWriteEnabled)
	assert.Equal(t, wgpu.CompareFunctionLess, d.DepthCompare)

	b := blendState(r)
	assert.Equal(t, wgpu.BlendFactorSrcAlpha, b.Color.SrcFactor)
	assert.Equal(t, wgpu.BlendFactorOneMinusSrcAlpha, b.Color.DstFactor)
	assert.Equal(t, wgpu.BlendFactorOne, b.Alpha.SrcFactor)
	assert.Equal(t, wgpu.BlendFactorZero, b.Alpha.DstFactor)
}

func TestRasterStateOverrides(t *testing.T) {
	r := core.DefaultRasterState()
	r.Cull = core.CullNone
	r.FrontFace = core.WindingCW
	r.DepthCompare = core.CompareLessEqual
	r.DepthWrite = false

	assert.Equal(t, wgpu.CullModeNone, primitiveState(r).CullMode)
	assert.Equal(t, wgpu.FrontFaceCW, primitiveState(r).FrontFace)
	assert.Equal(t, wgpu.CompareFunctionLessEqual, depthStencilState(r).DepthCompare)
	assert.False(t, depthStencilState(r).DepthWriteEnabled)
	assert.Equal(t, wgpu.CullModeFront, cullMode(core.CullFront))
	assert.Equal(t, wgpu.CompareFunctionAlways, compareFunction(core.CompareAlways))
}

func TestTextureFormats(t *testing.T) {
	f, err := textureFormat(texture.FormatRGBA8Uint)
	require.NoError(t, err)
	assert.Equal(t, wgpu.TextureFormatRGBA8Uint, f)

	f, err = textureFormat(texture.FormatR8Uint)
	require.NoError(t, err)
	assert.Equal(t, wgpu.TextureFormatR8Uint, f)

	_, err = textureFormat(texture.Format(42))
	assert.Error(t, err)
}

func TestPackVoxels(t *testing.T) {
	packed := packVoxels([]volume.Coord{{X: 1, Y: 2, Z: 3}, {X: 255, Y: 0, Z: 128}})
	assert.Equal(t, []uint32{0x030201, 0x8000ff}, packed)
	assert.Empty(t, packVoxels(nil))
}

func TestBufferSize(t *testing.T) {
	assert.Equal(t, uint64(4), bufferSize(0))
	assert.Equal(t, uint64(4), bufferSize(3))
	assert.Equal(t, uint64(8), bufferSize(5))
	assert.Equal(t, uint64(288), bufferSize(288))
}

func TestBufferLimits(t *testing.T) {
	limits := wgpu.Limits{MaxStorageBufferBindingSize: 128 << 20, MaxBufferSize: 256 << 20}

	// 288 vertex bytes per voxel overflow a 128 MiB binding past ~466k voxels
	assert.NoError(t, checkBufferLimits(400_000, true, limits))
	err := checkBufferLimits(500_000, true, limits)
	assert.ErrorIs(t, err, mesh.ErrCapacityExceeded)
	assert.ErrorContains(t, err, "vertices")

	// vertex pulling only stores packed voxels
	assert.NoError(t, checkBufferLimits(500_000, false, limits))

	limits.MaxBufferSize = 1 << 20
	err = checkBufferLimits(300_000, false, limits)
	assert.ErrorIs(t, err, mesh.ErrCapacityExceeded)
	assert.ErrorContains(t, err, "voxels")
}
