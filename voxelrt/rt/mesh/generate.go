package mesh

import (
	"github.com/gekko3d/voxmesh/voxelrt/rt/volume"
)

// Job is the per-frame input of the mesh kernel: a grid, its voxel list and
// the buffers to fill. Invocation i owns slot i.
type Job struct {
	Grid    *volume.Grid
	Voxels  []volume.Coord
	Buffers *Buffers

	// FaceMasks, when non-nil, receives each voxel's exposed-face mask.
	FaceMasks []FaceMask
}

func NewJob(g *volume.Grid, buf *Buffers) *Job {
	return &Job{Grid: g, Voxels: g.Voxels(), Buffers: buf}
}

// Invoke runs the kernel for one voxel.
func (j *Job) Invoke(i int) (Stats, error) {
	c := j.Voxels[i]
	mask := ExposedFaces(j.Grid, c.X, c.Y, c.Z)
	if j.FaceMasks != nil {
		j.FaceMasks[i] = mask
	}
	return WriteSlot(j.Buffers, i, c, mask)
}

func (j *Job) Invocations() int {
	return len(j.Voxels)
}

// Generate is the sequential reference implementation.
func Generate(g *volume.Grid) (*Buffers, Stats, error) {
	buf := NewBuffers(g.Count())
	job := NewJob(g, buf)
	var total Stats
	for i := 0; i < job.Invocations(); i++ {
		st, err := job.Invoke(i)
		if err != nil {
			return nil, Stats{}, err
		}
		total.Add(st)
	}
	return buf, total, nil
}

// CountExposedFaces counts faces adjacent to empty or out-of-bounds cells.
func CountExposedFaces(g *volume.Grid) int {
	n := 0
	for _, c := range g.Voxels() {
		n += ExposedFaces(g, c.X, c.Y, c.Z).Count()
	}
	return n
}

// Triangle is one emitted triangle in object space (voxel units).
type Triangle struct {
	Positions [3][3]float32
	Normal    [3]int8
	Voxel     [3]uint8
}

// Triangles decodes the index buffer, skipping zero-area entries.
func (b *Buffers) Triangles() []Triangle {
	out := make([]Triangle, 0, len(b.Indices)/3)
	for i := 0; i+2 < len(b.Indices); i += 3 {
		i0, i1, i2 := b.Indices[i], b.Indices[i+1], b.Indices[i+2]
		if i0 == i1 && i1 == i2 {
			continue
		}
		var tri Triangle
		for k, idx := range [3]uint32{i0, i1, i2} {
			v := b.Vertex(int(idx))
			tri.Positions[k] = [3]float32{
				float32(v.Voxel[0]) + float32(v.Position[0]),
				float32(v.Voxel[1]) + float32(v.Position[1]),
				float32(v.Voxel[2]) + float32(v.Position[2]),
			}
			if k == 0 {
				tri.Normal = v.Normal
				tri.Voxel = v.Voxel
			}
		}
		out = append(out, tri)
	}
	return out
}
