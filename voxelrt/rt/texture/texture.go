package texture

import (
	"encoding/binary"
	"fmt"

	"github.com/gekko3d/voxmesh/voxelrt/rt/volume"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

type Format uint8

const (
	FormatRGBA8Uint Format = iota
	FormatR8Uint
)

func (f Format) BytesPerTexel() int {
	switch f {
	case FormatR8Uint:
		return 1
	default:
		return 4
	}
}

func (f Format) String() string {
	switch f {
	case FormatR8Uint:
		return "r8uint"
	default:
		return "rgba8uint"
	}
}

// Texture is a tightly packed host-side 3D texture. Texel (x, y, z) starts at
// ((z*Height + y)*Width + x) * BytesPerTexel.
type Texture struct {
	ID     uuid.UUID
	Label  string
	Width  int
	Height int
	Depth  int
	Format Format
	Texels []byte
}

func newTexture(label string, w, h, d int, format Format) *Texture {
	return &Texture{
		ID:     uuid.New(),
		Label:  label,
		Width:  w,
		Height: h,
		Depth:  d,
		Format: format,
		Texels: make([]byte, w*h*d*format.BytesPerTexel()),
	}
}

func (t *Texture) RowBytes() int {
	return t.Width * t.Format.BytesPerTexel()
}

func (t *Texture) offset(x, y, z int) int {
	return ((z*t.Height+y)*t.Width + x) * t.Format.BytesPerTexel()
}

// Texel returns the bytes of one texel. The slice aliases the texture.
func (t *Texture) Texel(x, y, z int) []byte {
	o := t.offset(x, y, z)
	return t.Texels[o : o+t.Format.BytesPerTexel()]
}

// Hash covers format, dimensions and texels. Equal content gives equal
// hashes regardless of ID.
func (t *Texture) Hash() uint64 {
	d := xxhash.New()
	var hdr [13]byte
	hdr[0] = byte(t.Format)
	binary.LittleEndian.PutUint32(hdr[1:], uint32(t.Width))
	binary.LittleEndian.PutUint32(hdr[5:], uint32(t.Height))
	binary.LittleEndian.PutUint32(hdr[9:], uint32(t.Depth))
	_, _ = d.Write(hdr[:])
	_, _ = d.Write(t.Texels)
	return d.Sum64()
}

// BuildRGBA resolves every occupied cell through the palette. Empty cells are
// transparent black.
func BuildRGBA(g *volume.Grid, p *volume.Palette) (*Texture, error) {
	tex := newTexture("voxel rgba", g.SizeX, g.SizeY, g.SizeZ, FormatRGBA8Uint)
	colors := p.Colors()
	for z := 0; z < g.SizeZ; z++ {
		for y := 0; y < g.SizeY; y++ {
			for x := 0; x < g.SizeX; x++ {
				idx, ok := g.At(x, y, z)
				if !ok {
					continue
				}
				if int(idx) >= len(colors) {
					return nil, &volume.PaletteIndexError{
						Coord: volume.Coord{X: x, Y: y, Z: z},
						Index: int(idx),
						Len:   len(colors),
					}
				}
				c := colors[idx]
				copy(tex.Texel(x, y, z), c[:])
			}
		}
	}
	return tex, nil
}

// BuildPaletted stores raw palette indices. Empty cells read as 0, so pair it
// with BuildOccupancy when index 0 is in use.
func BuildPaletted(g *volume.Grid) *Texture {
	tex := newTexture("voxel indices", g.SizeX, g.SizeY, g.SizeZ, FormatR8Uint)
	for _, c := range g.Voxels() {
		idx, _ := g.At(c.X, c.Y, c.Z)
		tex.Texels[tex.offset(c.X, c.Y, c.Z)] = idx
	}
	return tex
}

// BuildOccupancy is a 1/0 mask used for neighbour lookups.
func BuildOccupancy(g *volume.Grid) *Texture {
	tex := newTexture("voxel occupancy", g.SizeX, g.SizeY, g.SizeZ, FormatR8Uint)
	for i, c := range g.Cells() {
		if c != 0 {
			tex.Texels[i] = 1
		}
	}
	return tex
}

// BuildPalette lays the palette out as a 256x1x1 texture; missing entries
// are transparent.
func BuildPalette(p *volume.Palette) *Texture {
	tex := newTexture("palette", volume.MaxPaletteColors, 1, 1, FormatRGBA8Uint)
	for i, c := range p.Colors() {
		copy(tex.Texel(i, 0, 0), c[:])
	}
	return tex
}

// Staging copies the texels into a buffer whose rows start at multiples of
// rowAlign, as buffer-to-texture copies require.
func (t *Texture) Staging(rowAlign int) (data []byte, bytesPerRow int, err error) {
	if rowAlign <= 0 || rowAlign&(rowAlign-1) != 0 {
		return nil, 0, fmt.Errorf("row alignment %d is not a power of two", rowAlign)
	}
	row := t.RowBytes()
	bytesPerRow = (row + rowAlign - 1) &^ (rowAlign - 1)
	if bytesPerRow == row {
		return append([]byte(nil), t.Texels...), bytesPerRow, nil
	}

	rows := t.Height * t.Depth
	data = make([]byte, bytesPerRow*rows)
	for r := 0; r < rows; r++ {
		copy(data[r*bytesPerRow:], t.Texels[r*row:(r+1)*row])
	}
	return data, bytesPerRow, nil
}
