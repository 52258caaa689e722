package volume

import (
	"errors"
	"fmt"
)

const MaxPaletteColors = 256

var (
	ErrPaletteIndexOutOfRange = errors.New("palette index out of range")
	ErrPaletteTooLarge        = errors.New("palette has more than 256 colors")
)

// PaletteIndexError reports a cell whose palette index has no color.
type PaletteIndexError struct {
	Coord Coord
	Index int
	Len   int
}

func (e *PaletteIndexError) Error() string {
	return fmt.Sprintf("palette index %d at (%d,%d,%d) out of range for %d colors",
		e.Index, e.Coord.X, e.Coord.Y, e.Coord.Z, e.Len)
}

func (e *PaletteIndexError) Unwrap() error {
	return ErrPaletteIndexOutOfRange
}

// Palette is an ordered list of up to 256 RGBA colors.
type Palette struct {
	colors [][4]uint8
}

func NewPalette(colors [][4]uint8) (*Palette, error) {
	if len(colors) > MaxPaletteColors {
		return nil, fmt.Errorf("%w: %d", ErrPaletteTooLarge, len(colors))
	}
	return &Palette{colors: append([][4]uint8(nil), colors...)}, nil
}

// SolidPalette fills all 256 entries with one color.
func SolidPalette(rgba [4]uint8) *Palette {
	colors := make([][4]uint8, MaxPaletteColors)
	for i := range colors {
		colors[i] = rgba
	}
	return &Palette{colors: colors}
}

func (p *Palette) Len() int {
	return len(p.colors)
}

func (p *Palette) Color(index int) ([4]uint8, error) {
	if index < 0 || index >= len(p.colors) {
		return [4]uint8{}, fmt.Errorf("%w: %d of %d", ErrPaletteIndexOutOfRange, index, len(p.colors))
	}
	return p.colors[index], nil
}

// Colors returns a copy of the palette entries.
func (p *Palette) Colors() [][4]uint8 {
	return append([][4]uint8(nil), p.colors...)
}

// Validate checks that every occupied cell of g resolves to a color.
func (p *Palette) Validate(g *Grid) error {
	for z := 0; z < g.SizeZ; z++ {
		for y := 0; y < g.SizeY; y++ {
			for x := 0; x < g.SizeX; x++ {
				idx, ok := g.At(x, y, z)
				if ok && int(idx) >= len(p.colors) {
					return &PaletteIndexError{Coord: Coord{x, y, z}, Index: int(idx), Len: len(p.colors)}
				}
			}
		}
	}
	return nil
}
