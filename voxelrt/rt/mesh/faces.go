package mesh

import (
	"github.com/gekko3d/voxmesh/voxelrt/rt/volume"
)

type Face uint8

const (
	FacePosX Face = iota
	FaceNegX
	FacePosY
	FaceNegY
	FacePosZ
	FaceNegZ
	FaceCount
)

func (f Face) String() string {
	return [...]string{"+X", "-X", "+Y", "-Y", "+Z", "-Z"}[f]
}

// FaceMask has bit f set when face f is exposed.
type FaceMask uint8

const AllFaces FaceMask = 1<<FaceCount - 1

func (m FaceMask) Has(f Face) bool {
	return m&(1<<f) != 0
}

func (m FaceMask) Count() int {
	n := 0
	for f := Face(0); f < FaceCount; f++ {
		if m.Has(f) {
			n++
		}
	}
	return n
}

type faceSpec struct {
	normal [3]int8
	// unit-cube corners, counter-clockwise seen from outside
	corners [4][3]uint8
}

var faceTable = [FaceCount]faceSpec{
	FacePosX: {normal: [3]int8{1, 0, 0}, corners: [4][3]uint8{{1, 0, 0}, {1, 1, 0}, {1, 1, 1}, {1, 0, 1}}},
	FaceNegX: {normal: [3]int8{-1, 0, 0}, corners: [4][3]uint8{{0, 0, 0}, {0, 0, 1}, {0, 1, 1}, {0, 1, 0}}},
	FacePosY: {normal: [3]int8{0, 1, 0}, corners: [4][3]uint8{{0, 1, 0}, {0, 1, 1}, {1, 1, 1}, {1, 1, 0}}},
	FaceNegY: {normal: [3]int8{0, -1, 0}, corners: [4][3]uint8{{0, 0, 0}, {1, 0, 0}, {1, 0, 1}, {0, 0, 1}}},
	FacePosZ: {normal: [3]int8{0, 0, 1}, corners: [4][3]uint8{{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1}}},
	FaceNegZ: {normal: [3]int8{0, 0, -1}, corners: [4][3]uint8{{0, 0, 0}, {0, 1, 0}, {1, 1, 0}, {1, 0, 0}}},
}

// quadIndices splits a quad into two triangles sharing corner 0.
var quadIndices = [IndicesPerFace]uint32{0, 1, 2, 0, 2, 3}

// Normal returns the outward normal of f.
func (f Face) Normal() [3]int8 {
	return faceTable[f].normal
}

// Corners returns the unit-cube corners of f in winding order.
func (f Face) Corners() [4][3]uint8 {
	return faceTable[f].corners
}

// ExposedFaces reports which faces of the cell at (x, y, z) border an empty
// or out-of-bounds neighbour.
func ExposedFaces(g *volume.Grid, x, y, z int) FaceMask {
	var m FaceMask
	for f := Face(0); f < FaceCount; f++ {
		n := faceTable[f].normal
		if !g.Occupied(x+int(n[0]), y+int(n[1]), z+int(n[2])) {
			m |= 1 << f
		}
	}
	return m
}
