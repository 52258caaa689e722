package shaders

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShadersDeclareEntryPoints(t *testing.T) {
	assert.Contains(t, MeshGenWGSL, "fn "+MeshGenEntry+"(")
	assert.Contains(t, MeshGenWGSL, "@workgroup_size(64)")

	for name, src := range map[string]string{"voxel_mesh": VoxelMeshWGSL, "voxel_pull": VoxelPullWGSL} {
		assert.Contains(t, src, "fn "+VertexEntry+"(", name)
		assert.Contains(t, src, "fn "+FragmentEntry+"(", name)
	}
}

func TestUniformStructsMatch(t *testing.T) {
	uniforms := func(src string) string {
		start := strings.Index(src, "struct Uniforms {")
		end := strings.Index(src[start:], "};")
		return src[start : start+end]
	}
	want := uniforms(MeshGenWGSL)
	assert.Equal(t, want, uniforms(VoxelMeshWGSL))
	assert.Equal(t, want, uniforms(VoxelPullWGSL))
	assert.Contains(t, want, "voxel_count: u32")
	assert.Contains(t, want, "flags: u32")
}
