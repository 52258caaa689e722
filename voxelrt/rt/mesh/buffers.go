package mesh

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gekko3d/voxmesh/voxelrt/rt/volume"
)

const (
	VerticesPerFace  = 4
	IndicesPerFace   = 6
	VerticesPerVoxel = VerticesPerFace * int(FaceCount)
	IndicesPerVoxel  = IndicesPerFace * int(FaceCount)

	// VertexStride is position uint8x4, normal sint8x4, voxel uint8x4.
	VertexStride = 12
)

var ErrCapacityExceeded = errors.New("mesh buffer capacity exceeded")

// Vertex is one cube corner of one voxel face.
type Vertex struct {
	Position [3]uint8
	Normal   [3]int8
	Voxel    [3]uint8
}

func (v Vertex) put(b []byte) {
	b[0], b[1], b[2], b[3] = v.Position[0], v.Position[1], v.Position[2], 0
	b[4], b[5], b[6], b[7] = byte(v.Normal[0]), byte(v.Normal[1]), byte(v.Normal[2]), 0
	b[8], b[9], b[10], b[11] = v.Voxel[0], v.Voxel[1], v.Voxel[2], 0
}

func readVertex(b []byte) Vertex {
	return Vertex{
		Position: [3]uint8{b[0], b[1], b[2]},
		Normal:   [3]int8{int8(b[4]), int8(b[5]), int8(b[6])},
		Voxel:    [3]uint8{b[8], b[9], b[10]},
	}
}

// Capacity returns the worst-case vertex and index counts for voxelCount
// voxels: every face of every voxel exposed.
func Capacity(voxelCount int) (vertices, indices int) {
	return voxelCount * VerticesPerVoxel, voxelCount * IndicesPerVoxel
}

// Buffers hold the generated mesh. Slot i owns vertices [i*24, i*24+24) and
// indices [i*36, i*36+36).
type Buffers struct {
	Vertices []byte
	Indices  []uint32

	// Generation is stamped by the stage that last completed a write.
	Generation uint64
}

func NewBuffers(voxelCount int) *Buffers {
	v, i := Capacity(voxelCount)
	return &Buffers{
		Vertices: make([]byte, v*VertexStride),
		Indices:  make([]uint32, i),
	}
}

// Slots is the number of voxel slots the buffers can hold.
func (b *Buffers) Slots() int {
	return len(b.Indices) / IndicesPerVoxel
}

func (b *Buffers) VertexCount() int {
	return len(b.Vertices) / VertexStride
}

func (b *Buffers) Vertex(i int) Vertex {
	return readVertex(b.Vertices[i*VertexStride:])
}

// IndexBytes returns the index buffer as little-endian bytes for upload.
func (b *Buffers) IndexBytes() []byte {
	out := make([]byte, len(b.Indices)*4)
	for i, idx := range b.Indices {
		binary.LittleEndian.PutUint32(out[i*4:], idx)
	}
	return out
}

// Stats summarises what a write produced.
type Stats struct {
	Faces      int
	Triangles  int
	Degenerate int
}

func (s *Stats) Add(o Stats) {
	s.Faces += o.Faces
	s.Triangles += o.Triangles
	s.Degenerate += o.Degenerate
}

// WriteSlot writes the geometry of one voxel into its slot: a quad for every
// face in mask and a zero-area entry for every other face. Nothing outside
// the slot is touched.
func WriteSlot(buf *Buffers, slot int, c volume.Coord, mask FaceMask) (Stats, error) {
	if slot < 0 || slot >= buf.Slots() {
		return Stats{}, fmt.Errorf("%w: slot %d of %d", ErrCapacityExceeded, slot, buf.Slots())
	}
	var st Stats
	voxel := [3]uint8{uint8(c.X), uint8(c.Y), uint8(c.Z)}

	for f := Face(0); f < FaceCount; f++ {
		base := slot*VerticesPerVoxel + int(f)*VerticesPerFace
		vb := buf.Vertices[base*VertexStride : (base+VerticesPerFace)*VertexStride]
		ib := buf.Indices[slot*IndicesPerVoxel+int(f)*IndicesPerFace:][:IndicesPerFace]

		if !mask.Has(f) {
			clear(vb)
			for k := range ib {
				ib[k] = uint32(base)
			}
			st.Degenerate += 2
			continue
		}

		spec := &faceTable[f]
		for k, corner := range spec.corners {
			Vertex{Position: corner, Normal: spec.normal, Voxel: voxel}.put(vb[k*VertexStride:])
		}
		for k, qi := range quadIndices {
			ib[k] = uint32(base) + qi
		}
		st.Faces++
		st.Triangles += 2
	}
	return st, nil
}
