package volume

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Shape fills are clipped to the grid; cells outside it are skipped.

func clampedBounds(g *Grid, minV, maxV mgl32.Vec3) (lo, hi [3]int) {
	size := [3]int{g.SizeX, g.SizeY, g.SizeZ}
	for i := 0; i < 3; i++ {
		lo[i] = int(math.Floor(float64(minV[i])))
		hi[i] = int(math.Ceil(float64(maxV[i])))
		if lo[i] < 0 {
			lo[i] = 0
		}
		if hi[i] > size[i]-1 {
			hi[i] = size[i] - 1
		}
	}
	return lo, hi
}

func fill(g *Grid, lo, hi [3]int, paletteIdx uint8, inside func(p mgl32.Vec3) bool) {
	for z := lo[2]; z <= hi[2]; z++ {
		for y := lo[1]; y <= hi[1]; y++ {
			for x := lo[0]; x <= hi[0]; x++ {
				p := mgl32.Vec3{float32(x) + 0.5, float32(y) + 0.5, float32(z) + 0.5}
				if inside(p) {
					_ = g.Set(x, y, z, paletteIdx)
				}
			}
		}
	}
}

// Sphere fills a sphere in the grid
func Sphere(g *Grid, center mgl32.Vec3, radius float32, paletteIdx uint8) {
	r := mgl32.Vec3{radius, radius, radius}
	lo, hi := clampedBounds(g, center.Sub(r), center.Add(r))
	r2 := radius * radius
	fill(g, lo, hi, paletteIdx, func(p mgl32.Vec3) bool {
		return p.Sub(center).LenSqr() <= r2
	})
}

// Cube fills an axis aligned box, both corners inclusive
func Cube(g *Grid, minB, maxB mgl32.Vec3, paletteIdx uint8) {
	lo, hi := clampedBounds(g, minB, maxB)
	for i := 0; i < 3; i++ {
		if f := int(math.Floor(float64(maxB[i]))); f < hi[i] {
			hi[i] = f
		}
	}
	fill(g, lo, hi, paletteIdx, func(mgl32.Vec3) bool { return true })
}

// Cone fills a cone in the grid
// base is the center of the base circle, tip is the apex
func Cone(g *Grid, base, tip mgl32.Vec3, radius float32, paletteIdx uint8) {
	heightVec := tip.Sub(base)
	height := heightVec.Len()
	if height < 1e-5 {
		return
	}
	axis := heightVec.Normalize()

	maxDim := float32(math.Max(float64(radius), float64(height)))
	center := base.Add(tip).Mul(0.5)
	d := mgl32.Vec3{maxDim, maxDim, maxDim}
	lo, hi := clampedBounds(g, center.Sub(d), center.Add(d))

	fill(g, lo, hi, paletteIdx, func(p mgl32.Vec3) bool {
		v := p.Sub(base)
		distOnAxis := v.Dot(axis)
		if distOnAxis < 0 || distOnAxis > height {
			return false
		}
		radiusAtDist := radius * (1.0 - distOnAxis/height)
		distToAxis2 := v.LenSqr() - distOnAxis*distOnAxis
		return distToAxis2 <= radiusAtDist*radiusAtDist
	})
}

// Pyramid fills a square pyramid in the grid
func Pyramid(g *Grid, base, tip mgl32.Vec3, size float32, paletteIdx uint8) {
	heightVec := tip.Sub(base)
	height := heightVec.Len()
	if height < 1e-5 {
		return
	}
	axis := heightVec.Normalize()

	up := mgl32.Vec3{0, 1, 0}
	if math.Abs(float64(axis.Dot(up))) > 0.99 {
		up = mgl32.Vec3{1, 0, 0}
	}
	right := axis.Cross(up).Normalize()
	forward := right.Cross(axis).Normalize()

	maxDim := float32(math.Max(float64(size), float64(height)))
	center := base.Add(tip).Mul(0.5)
	d := mgl32.Vec3{maxDim, maxDim, maxDim}
	lo, hi := clampedBounds(g, center.Sub(d), center.Add(d))
	halfSize := size * 0.5

	fill(g, lo, hi, paletteIdx, func(p mgl32.Vec3) bool {
		v := p.Sub(base)
		distOnAxis := v.Dot(axis)
		if distOnAxis < 0 || distOnAxis > height {
			return false
		}
		s := halfSize * (1.0 - distOnAxis/height)
		return math.Abs(float64(v.Dot(right))) <= float64(s) && math.Abs(float64(v.Dot(forward))) <= float64(s)
	})
}

// Point fills a single voxel
func Point(g *Grid, x, y, z int, paletteIdx uint8) {
	if g.InBounds(x, y, z) {
		_ = g.Set(x, y, z, paletteIdx)
	}
}

// Shapes names the procedural models usable without a .vox asset.
var Shapes = []string{"sphere", "cube", "cone", "pyramid", "pair"}

// Procedural builds a size^3 grid holding the named shape. Palette indices
// follow the shape's height so the default palette shows layers.
func Procedural(shape string, size int) (*Grid, error) {
	g, err := NewGrid(size, size, size)
	if err != nil {
		return nil, err
	}
	s := float32(size)
	c := mgl32.Vec3{s / 2, s / 2, s / 2}
	switch shape {
	case "sphere":
		Sphere(g, c, s/2, 1)
	case "cube":
		Cube(g, mgl32.Vec3{}, mgl32.Vec3{s - 1, s - 1, s - 1}, 1)
	case "cone":
		Cone(g, mgl32.Vec3{s / 2, 0, s / 2}, mgl32.Vec3{s / 2, s, s / 2}, s/2, 1)
	case "pyramid":
		Pyramid(g, mgl32.Vec3{s / 2, 0, s / 2}, mgl32.Vec3{s / 2, s, s / 2}, s, 1)
	case "pair":
		Point(g, 0, 0, 0, 1)
		Point(g, 1, 0, 0, 2)
	default:
		return nil, fmt.Errorf("unknown shape %q", shape)
	}
	for _, v := range g.Voxels() {
		idx, _ := g.At(v.X, v.Y, v.Z)
		_ = g.Set(v.X, v.Y, v.Z, idx+uint8(v.Y*8/size))
	}
	return g, nil
}
