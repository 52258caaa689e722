package mesh

import (
	"github.com/gekko3d/voxmesh/voxelrt/rt/volume"
)

// PullVertex evaluates vertex `vertex` (0..35) of the voxel at c the way
// voxel_pull.wgsl does: face vertex/6, quad corner quadIndices[vertex%6].
// ok is false for a hidden face, which the shader collapses to a point.
func PullVertex(c volume.Coord, mask FaceMask, vertex int) (v Vertex, ok bool) {
	f := Face(vertex / IndicesPerFace)
	v.Voxel = [3]uint8{uint8(c.X), uint8(c.Y), uint8(c.Z)}
	if f >= FaceCount || !mask.Has(f) {
		return v, false
	}
	spec := &faceTable[f]
	v.Position = spec.corners[quadIndices[vertex%IndicesPerFace]]
	v.Normal = spec.normal
	return v, true
}

// PullTriangles builds the vertex-pulling triangle list straight from the
// grid, without mesh buffers. degenerate counts the collapsed triangles.
func PullTriangles(g *volume.Grid) (tris []Triangle, degenerate int) {
	voxels := g.Voxels()
	tris = make([]Triangle, 0, len(voxels)*4)
	for _, c := range voxels {
		mask := ExposedFaces(g, c.X, c.Y, c.Z)
		for first := 0; first < IndicesPerVoxel; first += 3 {
			var tri Triangle
			ok := true
			for k := 0; k < 3 && ok; k++ {
				var v Vertex
				v, ok = PullVertex(c, mask, first+k)
				tri.Positions[k] = [3]float32{
					float32(v.Voxel[0]) + float32(v.Position[0]),
					float32(v.Voxel[1]) + float32(v.Position[1]),
					float32(v.Voxel[2]) + float32(v.Position[2]),
				}
				tri.Normal = v.Normal
				tri.Voxel = v.Voxel
			}
			if !ok {
				degenerate++
				continue
			}
			tris = append(tris, tri)
		}
	}
	return tris, degenerate
}
