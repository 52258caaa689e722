package gpu

import (
	"fmt"

	"github.com/gekko3d/voxmesh/voxelrt/rt/core"
	"github.com/gekko3d/voxmesh/voxelrt/rt/mesh"
	"github.com/gekko3d/voxmesh/voxelrt/rt/texture"
	"github.com/gekko3d/voxmesh/voxelrt/rt/volume"

	"github.com/cogentcore/webgpu/wgpu"
)

const (
	DepthFormat = wgpu.TextureFormatDepth32Float

	// TextureRowAlignment is the bytes-per-row alignment of buffer to
	// texture copies.
	TextureRowAlignment = 256
)

func cullMode(m core.CullMode) wgpu.CullMode {
	switch m {
	case core.CullFront:
		return wgpu.CullModeFront
	case core.CullBack:
		return wgpu.CullModeBack
	default:
		return wgpu.CullModeNone
	}
}

func frontFace(w core.Winding) wgpu.FrontFace {
	if w == core.WindingCW {
		return wgpu.FrontFaceCW
	}
	return wgpu.FrontFaceCCW
}

func compareFunction(c core.CompareFunc) wgpu.CompareFunction {
	switch c {
	case core.CompareLess:
		return wgpu.CompareFunctionLess
	case core.CompareLessEqual:
		return wgpu.CompareFunctionLessEqual
	default:
		return wgpu.CompareFunctionAlways
	}
}

func blendFactor(f core.BlendFactor) wgpu.BlendFactor {
	switch f {
	case core.BlendZero:
		return wgpu.BlendFactorZero
	case core.BlendOne:
		return wgpu.BlendFactorOne
	case core.BlendSrcAlpha:
		return wgpu.BlendFactorSrcAlpha
	default:
		return wgpu.BlendFactorOneMinusSrcAlpha
	}
}

func blendComponent(b core.BlendComponent) wgpu.BlendComponent {
	return wgpu.BlendComponent{
		SrcFactor: blendFactor(b.Src),
		DstFactor: blendFactor(b.Dst),
		Operation: wgpu.BlendOperationAdd,
	}
}

func blendState(r core.RasterState) *wgpu.BlendState {
	return &wgpu.BlendState{
		Color: blendComponent(r.Color),
		Alpha: blendComponent(r.Alpha),
	}
}

func primitiveState(r core.RasterState) wgpu.PrimitiveState {
	return wgpu.PrimitiveState{
		Topology:  wgpu.PrimitiveTopologyTriangleList,
		FrontFace: frontFace(r.FrontFace),
		CullMode:  cullMode(r.Cull),
	}
}

func depthStencilState(r core.RasterState) *wgpu.DepthStencilState {
	return &wgpu.DepthStencilState{
		Format:            DepthFormat,
		DepthWriteEnabled: r.DepthWrite,
		DepthCompare:      compareFunction(r.DepthCompare),
		StencilFront: wgpu.StencilFaceState{
			Compare: wgpu.CompareFunctionAlways,
		},
		StencilBack: wgpu.StencilFaceState{
			Compare: wgpu.CompareFunctionAlways,
		},
	}
}

func vertexFormat(f mesh.AttributeFormat) wgpu.VertexFormat {
	switch f {
	case mesh.FormatUint8x4:
		return wgpu.VertexFormatUint8x4
	case mesh.FormatSint8x4:
		return wgpu.VertexFormatSint8x4
	case mesh.FormatFloat32x3:
		return wgpu.VertexFormatFloat32x3
	default:
		return wgpu.VertexFormatFloat32x4
	}
}

// vertexBufferLayout validates l and converts it to the pipeline's vertex
// buffer description.
func vertexBufferLayout(l mesh.Layout) (wgpu.VertexBufferLayout, error) {
	if err := l.Validate(); err != nil {
		return wgpu.VertexBufferLayout{}, err
	}
	attrs := make([]wgpu.VertexAttribute, 0, len(l.Attributes))
	for _, a := range l.Attributes {
		attrs = append(attrs, wgpu.VertexAttribute{
			Format:         vertexFormat(a.Format),
			Offset:         uint64(a.Offset),
			ShaderLocation: a.Location,
		})
	}
	return wgpu.VertexBufferLayout{
		ArrayStride: uint64(l.Stride),
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes:  attrs,
	}, nil
}

func textureFormat(f texture.Format) (wgpu.TextureFormat, error) {
	switch f {
	case texture.FormatRGBA8Uint:
		return wgpu.TextureFormatRGBA8Uint, nil
	case texture.FormatR8Uint:
		return wgpu.TextureFormatR8Uint, nil
	}
	return 0, fmt.Errorf("unsupported texture format %s", f)
}

// packVoxels encodes each coordinate as x | y<<8 | z<<16, the voxel list
// layout the shaders read.
func packVoxels(voxels []volume.Coord) []uint32 {
	out := make([]uint32, len(voxels))
	for i, v := range voxels {
		out[i] = uint32(v.X&0xff) | uint32(v.Y&0xff)<<8 | uint32(v.Z&0xff)<<16
	}
	return out
}

// bufferSize rounds n up to 4 bytes, with a minimum of 4 so empty models
// still bind valid buffers.
func bufferSize(n int) uint64 {
	if n < 4 {
		return 4
	}
	return uint64((n + 3) &^ 3)
}

// checkBufferLimits rejects grids whose storage buffers would not fit in a
// single binding on this device.
func checkBufferLimits(voxelCount int, meshBuffers bool, limits wgpu.Limits) error {
	limit := min(limits.MaxStorageBufferBindingSize, limits.MaxBufferSize)
	check := func(label string, size uint64) error {
		if size > limit {
			return fmt.Errorf("%w: %d voxels need a %d byte %s buffer, device allows %d",
				mesh.ErrCapacityExceeded, voxelCount, size, label, limit)
		}
		return nil
	}

	if err := check("voxels", bufferSize(voxelCount*4)); err != nil || !meshBuffers {
		return err
	}
	vertices, indices := mesh.Capacity(voxelCount)
	if err := check("vertices", bufferSize(vertices*mesh.VertexStride)); err != nil {
		return err
	}
	return check("indices", bufferSize(indices*4))
}
