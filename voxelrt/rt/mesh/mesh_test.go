package mesh

import (
	"math/rand"
	"testing"

	"github.com/gekko3d/voxmesh/voxelrt/rt/volume"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gridWith(t *testing.T, sx, sy, sz int, coords ...volume.Coord) *volume.Grid {
	t.Helper()
	g, err := volume.NewGrid(sx, sy, sz)
	require.NoError(t, err)
	for _, c := range coords {
		require.NoError(t, g.Set(c.X, c.Y, c.Z, 1))
	}
	return g
}

func randomGrid(t *testing.T, seed int64, size int, density float64) *volume.Grid {
	t.Helper()
	r := rand.New(rand.NewSource(seed))
	g, err := volume.NewGrid(size, size, size)
	require.NoError(t, err)
	for z := 0; z < size; z++ {
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				if r.Float64() < density {
					require.NoError(t, g.Set(x, y, z, uint8(r.Intn(256))))
				}
			}
		}
	}
	return g
}

func TestSingleVoxelHasSixFaces(t *testing.T) {
	g := gridWith(t, 1, 1, 1, volume.Coord{})
	buf, st, err := Generate(g)
	require.NoError(t, err)

	assert.Equal(t, 6, st.Faces)
	assert.Equal(t, 12, st.Triangles)
	assert.Equal(t, 0, st.Degenerate)
	assert.Len(t, buf.Triangles(), 12)
	assert.Equal(t, AllFaces, ExposedFaces(g, 0, 0, 0))
}

func TestEmptyGridEmitsNothing(t *testing.T) {
	g := gridWith(t, 4, 4, 4)
	buf, st, err := Generate(g)
	require.NoError(t, err)

	assert.Equal(t, Stats{}, st)
	assert.Empty(t, buf.Vertices)
	assert.Empty(t, buf.Indices)
	assert.Empty(t, buf.Triangles())
	assert.Equal(t, 0, CountExposedFaces(g))
}

func TestAdjacentPairCullsSharedFaces(t *testing.T) {
	g := gridWith(t, 2, 1, 1, volume.Coord{X: 0}, volume.Coord{X: 1})
	buf, st, err := Generate(g)
	require.NoError(t, err)

	assert.Equal(t, 10, st.Faces)
	assert.Equal(t, 20, st.Triangles)
	assert.Equal(t, 4, st.Degenerate)
	assert.Len(t, buf.Triangles(), 20)

	assert.False(t, ExposedFaces(g, 0, 0, 0).Has(FacePosX))
	assert.False(t, ExposedFaces(g, 1, 0, 0).Has(FaceNegX))
	assert.True(t, ExposedFaces(g, 0, 0, 0).Has(FaceNegX))
}

func TestFaceCountMatchesNeighbours(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		g := randomGrid(t, seed, 9, 0.45)
		masks := make([]FaceMask, g.Count())
		job := NewJob(g, NewBuffers(g.Count()))
		job.FaceMasks = masks

		total := 0
		for i := 0; i < job.Invocations(); i++ {
			st, err := job.Invoke(i)
			require.NoError(t, err)

			c := job.Voxels[i]
			neighbours := 0
			for _, d := range [][3]int{{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0, -1, 0}, {0, 0, 1}, {0, 0, -1}} {
				if g.Occupied(c.X+d[0], c.Y+d[1], c.Z+d[2]) {
					neighbours++
				}
			}
			require.Equal(t, 6-neighbours, st.Faces, "voxel %v", c)
			require.Equal(t, st.Faces, masks[i].Count())
			total += st.Faces
		}
		assert.Equal(t, CountExposedFaces(g), total, "seed %d", seed)
	}
}

func TestCapacityBounds(t *testing.T) {
	v, i := Capacity(7)
	assert.Equal(t, 7*24, v)
	assert.Equal(t, 7*36, i)

	g := randomGrid(t, 42, 8, 0.6)
	buf, st, err := Generate(g)
	require.NoError(t, err)

	assert.Equal(t, g.Count(), buf.Slots())
	assert.LessOrEqual(t, st.Faces*VerticesPerFace, buf.VertexCount())
	assert.LessOrEqual(t, st.Triangles*3, len(buf.Indices))
	for _, idx := range buf.Indices {
		require.Less(t, int(idx), buf.VertexCount())
	}
}

func TestWindingIsCounterClockwiseOutward(t *testing.T) {
	g := randomGrid(t, 7, 6, 0.5)
	buf, _, err := Generate(g)
	require.NoError(t, err)

	tris := buf.Triangles()
	require.NotEmpty(t, tris)
	for _, tri := range tris {
		p0, p1, p2 := tri.Positions[0], tri.Positions[1], tri.Positions[2]
		e1 := [3]float32{p1[0] - p0[0], p1[1] - p0[1], p1[2] - p0[2]}
		e2 := [3]float32{p2[0] - p0[0], p2[1] - p0[1], p2[2] - p0[2]}
		cross := [3]float32{
			e1[1]*e2[2] - e1[2]*e2[1],
			e1[2]*e2[0] - e1[0]*e2[2],
			e1[0]*e2[1] - e1[1]*e2[0],
		}
		dot := cross[0]*float32(tri.Normal[0]) + cross[1]*float32(tri.Normal[1]) + cross[2]*float32(tri.Normal[2])
		require.Greater(t, dot, float32(0), "triangle %v faces inward", tri)
	}
}

func TestFaceTableCorners(t *testing.T) {
	for f := Face(0); f < FaceCount; f++ {
		n := f.Normal()
		for _, c := range f.Corners() {
			// every corner lies on the face's plane of the unit cube
			for axis := 0; axis < 3; axis++ {
				if n[axis] == 1 {
					assert.Equal(t, uint8(1), c[axis], "%s", f)
				}
				if n[axis] == -1 {
					assert.Equal(t, uint8(0), c[axis], "%s", f)
				}
			}
		}
	}
}

func TestDegenerateSlotLayout(t *testing.T) {
	g := gridWith(t, 2, 1, 1, volume.Coord{X: 0}, volume.Coord{X: 1})
	buf, _, err := Generate(g)
	require.NoError(t, err)

	// slot 0, +X is hidden
	base := 0*VerticesPerVoxel + int(FacePosX)*VerticesPerFace
	ib := buf.Indices[int(FacePosX)*IndicesPerFace:][:IndicesPerFace]
	for _, idx := range ib {
		assert.Equal(t, uint32(base), idx)
	}
	assert.Equal(t, make([]byte, VerticesPerFace*VertexStride), buf.Vertices[base*VertexStride:(base+VerticesPerFace)*VertexStride])

	// slot 1, +X is exposed and carries its voxel coordinate
	base1 := 1*VerticesPerVoxel + int(FacePosX)*VerticesPerFace
	v := buf.Vertex(base1)
	assert.Equal(t, [3]uint8{1, 0, 0}, v.Voxel)
	assert.Equal(t, [3]int8{1, 0, 0}, v.Normal)
	assert.Equal(t, [3]uint8{1, 0, 0}, v.Position)
}

func TestWriteSlotTouchesOnlyItsSlot(t *testing.T) {
	buf := NewBuffers(3)
	for i := range buf.Vertices {
		buf.Vertices[i] = 0xAB
	}
	for i := range buf.Indices {
		buf.Indices[i] = 0xFFFF
	}

	_, err := WriteSlot(buf, 1, volume.Coord{X: 4, Y: 5, Z: 6}, FaceMask(0b101010))
	require.NoError(t, err)

	slotV := VerticesPerVoxel * VertexStride
	for i, b := range buf.Vertices {
		if i >= slotV && i < 2*slotV {
			continue
		}
		require.Equal(t, byte(0xAB), b, "vertex byte %d changed", i)
	}
	for i, idx := range buf.Indices {
		if i >= IndicesPerVoxel && i < 2*IndicesPerVoxel {
			require.GreaterOrEqual(t, int(idx), VerticesPerVoxel)
			require.Less(t, int(idx), 2*VerticesPerVoxel)
			continue
		}
		require.Equal(t, uint32(0xFFFF), idx, "index %d changed", i)
	}

	_, err = WriteSlot(buf, 3, volume.Coord{}, AllFaces)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	_, err = WriteSlot(buf, -1, volume.Coord{}, AllFaces)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}

func TestGenerateIsIdempotent(t *testing.T) {
	g := randomGrid(t, 3, 7, 0.5)
	a, sa, err := Generate(g)
	require.NoError(t, err)
	b, sb, err := Generate(g)
	require.NoError(t, err)

	assert.Equal(t, sa, sb)
	assert.Equal(t, a.Vertices, b.Vertices)
	assert.Equal(t, a.Indices, b.Indices)
}

func TestIndexBytes(t *testing.T) {
	buf := NewBuffers(1)
	buf.Indices[0] = 0x01020304
	b := buf.IndexBytes()
	assert.Len(t, b, IndicesPerVoxel*4)
	assert.Equal(t, []byte{4, 3, 2, 1}, b[:4])
}

func TestLayoutValidate(t *testing.T) {
	require.NoError(t, DefaultLayout().Validate())

	tests := []struct {
		name   string
		mutate func(l *Layout)
	}{
		{"zero stride", func(l *Layout) { l.Stride = 0 }},
		{"unaligned stride", func(l *Layout) { l.Stride = 13 }},
		{"no attributes", func(l *Layout) { l.Attributes = nil }},
		{"exceeds stride", func(l *Layout) { l.Attributes[2].Offset = 12 }},
		{"misaligned", func(l *Layout) { l.Attributes[1].Offset = 6 }},
		{"overlap", func(l *Layout) { l.Attributes[2].Offset = 4 }},
		{"duplicate location", func(l *Layout) { l.Attributes[2].Location = LocationPosition }},
		{"wide format", func(l *Layout) { l.Attributes[2].Format = FormatFloat32x3 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := DefaultLayout()
			tt.mutate(&l)
			assert.ErrorIs(t, l.Validate(), ErrInvalidLayout)
		})
	}

	wide := Layout{Stride: 28, Attributes: []Attribute{
		{Name: "position", Location: 0, Format: FormatFloat32x3, Offset: 0},
		{Name: "color", Location: 1, Format: FormatFloat32x4, Offset: 12},
	}}
	assert.NoError(t, wide.Validate())
}

func TestPullTrianglesMatchGeneratedMesh(t *testing.T) {
	g := randomGrid(t, 11, 6, 0.4)
	buf, st, err := Generate(g)
	require.NoError(t, err)

	pulled, degenerate := PullTriangles(g)
	assert.Equal(t, buf.Triangles(), pulled)
	assert.Equal(t, st.Degenerate, degenerate)
	assert.Equal(t, st.Triangles, len(pulled))
}

func TestPullVertexHiddenFace(t *testing.T) {
	c := volume.Coord{X: 3, Y: 4, Z: 5}
	_, ok := PullVertex(c, AllFaces&^(1<<FaceNegY), int(FaceNegY)*IndicesPerFace+2)
	assert.False(t, ok)

	v, ok := PullVertex(c, AllFaces, int(FacePosZ)*IndicesPerFace+2)
	require.True(t, ok)
	assert.Equal(t, [3]uint8{1, 1, 1}, v.Position)
	assert.Equal(t, [3]int8{0, 0, 1}, v.Normal)
	assert.Equal(t, [3]uint8{3, 4, 5}, v.Voxel)
}
