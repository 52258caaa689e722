package software

import (
	"image"
	"math"

	"github.com/gekko3d/voxmesh/voxelrt/rt/core"
	"github.com/gekko3d/voxmesh/voxelrt/rt/mesh"

	"github.com/go-gl/mathgl/mgl32"
)

// minClipW rejects triangles touching or behind the eye plane; the
// rasterizer does not clip.
const minClipW = 1e-4

var lightDir = mgl32.Vec3{0.3, 1, 0.5}.Normalize()

type target struct {
	color *image.RGBA
	depth []float32
	clear [4]float32
}

func newTarget(w, h int, clear [4]float64) *target {
	t := &target{
		color: image.NewRGBA(image.Rect(0, 0, w, h)),
		depth: make([]float32, w*h),
		clear: [4]float32{float32(clear[0]), float32(clear[1]), float32(clear[2]), float32(clear[3])},
	}
	t.reset()
	return t
}

func (t *target) reset() {
	px := [4]uint8{toByte(t.clear[0]), toByte(t.clear[1]), toByte(t.clear[2]), toByte(t.clear[3])}
	for i := 0; i < len(t.color.Pix); i += 4 {
		copy(t.color.Pix[i:i+4], px[:])
	}
	for i := range t.depth {
		t.depth[i] = 1
	}
}

func toByte(v float32) uint8 {
	return uint8(math.Round(float64(mgl32.Clamp(v, 0, 1)) * 255))
}

type projected struct {
	ndc [3]mgl32.Vec3
}

// draw culls and, when a target exists, rasterizes tris. Callers hold b.mu.
func (b *Backend) draw(mvp mgl32.Mat4, tris []mesh.Triangle) RenderStats {
	var stats RenderStats
	if b.target != nil {
		b.target.reset()
	}

	size := mgl32.Vec3{float32(b.grid.SizeX), float32(b.grid.SizeY), float32(b.grid.SizeZ)}
	if !core.AABBInFrustum([2]mgl32.Vec3{{}, size}, core.FrustumPlanes(mvp)) {
		stats.Clipped = len(tris)
		return stats
	}

	raster := b.opts.Raster
	for i := range tris {
		p, ok := project(mvp, &tris[i])
		if !ok {
			stats.Clipped++
			continue
		}
		a, bb, c := p.ndc[0], p.ndc[1], p.ndc[2]
		area := (bb.X()-a.X())*(c.Y()-a.Y()) - (c.X()-a.X())*(bb.Y()-a.Y())
		if raster.Culled(area) {
			stats.Culled++
			continue
		}
		stats.Triangles++
		if b.target != nil {
			stats.Fragments += b.fill(p, &tris[i])
		}
	}
	return stats
}

func project(mvp mgl32.Mat4, tri *mesh.Triangle) (projected, bool) {
	var p projected
	for k, pos := range tri.Positions {
		clip := mvp.Mul4x1(mgl32.Vec4{pos[0], pos[1], pos[2], 1})
		if clip.W() < minClipW {
			return p, false
		}
		p.ndc[k] = clip.Vec3().Mul(1 / clip.W())
	}
	return p, true
}

// shade returns the lit straight-alpha color of a triangle's voxel.
func (b *Backend) shade(tri *mesh.Triangle) [4]float32 {
	texel := b.texture.Texel(int(tri.Voxel[0]), int(tri.Voxel[1]), int(tri.Voxel[2]))
	n := mgl32.Vec3{float32(tri.Normal[0]), float32(tri.Normal[1]), float32(tri.Normal[2])}
	light := 0.45 + 0.55*float32(math.Max(0, float64(n.Dot(lightDir))))
	return [4]float32{
		float32(texel[0]) / 255 * light,
		float32(texel[1]) / 255 * light,
		float32(texel[2]) / 255 * light,
		float32(texel[3]) / 255,
	}
}

// fill scan-converts one triangle with depth test and blending, returning the
// number of fragments written.
func (b *Backend) fill(p projected, tri *mesh.Triangle) int {
	t := b.target
	w, h := t.color.Rect.Dx(), t.color.Rect.Dy()

	var sx, sy, sz [3]float32
	for k, v := range p.ndc {
		sx[k] = (v.X()*0.5 + 0.5) * float32(w)
		sy[k] = (0.5 - v.Y()*0.5) * float32(h)
		sz[k] = v.Z()
	}
	area := edge(sx[0], sy[0], sx[1], sy[1], sx[2], sy[2])
	if area == 0 {
		return 0
	}

	minX := max(0, int(math.Floor(float64(min(sx[0], sx[1], sx[2])))))
	maxX := min(w-1, int(math.Ceil(float64(max(sx[0], sx[1], sx[2])))))
	minY := max(0, int(math.Floor(float64(min(sy[0], sy[1], sy[2])))))
	maxY := min(h-1, int(math.Ceil(float64(max(sy[0], sy[1], sy[2])))))

	src := b.shade(tri)
	raster := b.opts.Raster
	written := 0
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			px, py := float32(x)+0.5, float32(y)+0.5
			w0 := edge(sx[1], sy[1], sx[2], sy[2], px, py) / area
			w1 := edge(sx[2], sy[2], sx[0], sy[0], px, py) / area
			w2 := edge(sx[0], sy[0], sx[1], sy[1], px, py) / area
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			z := w0*sz[0] + w1*sz[1] + w2*sz[2]
			if z < 0 || z > 1 {
				continue
			}
			i := y*w + x
			if !raster.DepthCompare.Test(z, t.depth[i]) {
				continue
			}
			if raster.DepthWrite {
				t.depth[i] = z
			}

			off := t.color.PixOffset(x, y)
			dst := t.color.Pix[off : off+4]
			out := raster.BlendRGBA(src, [4]float32{
				float32(dst[0]) / 255, float32(dst[1]) / 255, float32(dst[2]) / 255, float32(dst[3]) / 255,
			})
			dst[0], dst[1], dst[2], dst[3] = toByte(out[0]), toByte(out[1]), toByte(out[2]), toByte(out[3])
			written++
		}
	}
	return written
}

func edge(ax, ay, bx, by, px, py float32) float32 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}
