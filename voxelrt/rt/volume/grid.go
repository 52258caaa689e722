package volume

import (
	"errors"
	"fmt"
)

// MaxGridSize is the largest extent per axis. Voxel coordinates travel to the
// GPU as unsigned bytes.
const MaxGridSize = 256

var (
	ErrGridTooLarge     = errors.New("voxel grid dimensions out of range")
	ErrVoxelOutOfBounds = errors.New("voxel coordinate out of bounds")
)

// Coord addresses one cell of a Grid.
type Coord struct {
	X, Y, Z int
}

// Grid is a dense voxel occupancy grid. Each cell is either empty or holds a
// palette index.
type Grid struct {
	SizeX, SizeY, SizeZ int

	// 0 is empty, otherwise palette index + 1
	cells []uint16
	count int
}

func NewGrid(sizeX, sizeY, sizeZ int) (*Grid, error) {
	for _, s := range [3]int{sizeX, sizeY, sizeZ} {
		if s < 1 || s > MaxGridSize {
			return nil, fmt.Errorf("%w: %dx%dx%d", ErrGridTooLarge, sizeX, sizeY, sizeZ)
		}
	}
	return &Grid{
		SizeX: sizeX,
		SizeY: sizeY,
		SizeZ: sizeZ,
		cells: make([]uint16, sizeX*sizeY*sizeZ),
	}, nil
}

// Index returns the linear cell index of (x, y, z), x varying fastest.
func (g *Grid) Index(x, y, z int) int {
	return z*g.SizeY*g.SizeX + y*g.SizeX + x
}

func (g *Grid) InBounds(x, y, z int) bool {
	return x >= 0 && x < g.SizeX && y >= 0 && y < g.SizeY && z >= 0 && z < g.SizeZ
}

func (g *Grid) CellCount() int {
	return len(g.cells)
}

// Count returns the number of occupied cells.
func (g *Grid) Count() int {
	return g.count
}

func (g *Grid) Set(x, y, z int, paletteIndex uint8) error {
	if !g.InBounds(x, y, z) {
		return fmt.Errorf("%w: (%d,%d,%d) in %dx%dx%d", ErrVoxelOutOfBounds, x, y, z, g.SizeX, g.SizeY, g.SizeZ)
	}
	i := g.Index(x, y, z)
	if g.cells[i] == 0 {
		g.count++
	}
	g.cells[i] = uint16(paletteIndex) + 1
	return nil
}

func (g *Grid) Clear(x, y, z int) {
	if !g.InBounds(x, y, z) {
		return
	}
	i := g.Index(x, y, z)
	if g.cells[i] != 0 {
		g.count--
	}
	g.cells[i] = 0
}

// At returns the palette index stored at (x, y, z). ok is false for empty
// and out-of-bounds cells.
func (g *Grid) At(x, y, z int) (paletteIndex uint8, ok bool) {
	if !g.InBounds(x, y, z) {
		return 0, false
	}
	c := g.cells[g.Index(x, y, z)]
	if c == 0 {
		return 0, false
	}
	return uint8(c - 1), true
}

// Occupied treats out-of-bounds cells as empty.
func (g *Grid) Occupied(x, y, z int) bool {
	if !g.InBounds(x, y, z) {
		return false
	}
	return g.cells[g.Index(x, y, z)] != 0
}

// Voxels lists the occupied cells in linear index order. Position i in this
// list is the output slot owned by that voxel during mesh generation.
func (g *Grid) Voxels() []Coord {
	out := make([]Coord, 0, g.count)
	for z := 0; z < g.SizeZ; z++ {
		for y := 0; y < g.SizeY; y++ {
			for x := 0; x < g.SizeX; x++ {
				if g.cells[g.Index(x, y, z)] != 0 {
					out = append(out, Coord{x, y, z})
				}
			}
		}
	}
	return out
}

// Cells exposes the raw cell encoding (0 empty, index+1 otherwise) for
// hashing. Callers must not modify it.
func (g *Grid) Cells() []uint16 {
	return g.cells
}

func (g *Grid) Copy() *Grid {
	n := *g
	n.cells = append([]uint16(nil), g.cells...)
	return &n
}
