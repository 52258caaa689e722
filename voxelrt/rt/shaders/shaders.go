package shaders

import (
	_ "embed"
)

//go:embed mesh_gen.wgsl
var MeshGenWGSL string

//go:embed voxel_mesh.wgsl
var VoxelMeshWGSL string

//go:embed voxel_pull.wgsl
var VoxelPullWGSL string

// Entry points shared with the pipelines built in rt/gpu.
const (
	MeshGenEntry  = "generate_mesh"
	VertexEntry   = "vs_main"
	FragmentEntry = "fs_main"
)
