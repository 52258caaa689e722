package mesh

import (
	"errors"
	"fmt"
	"sort"
)

var ErrInvalidLayout = errors.New("invalid vertex layout")

type AttributeFormat uint8

const (
	FormatUint8x4 AttributeFormat = iota
	FormatSint8x4
	FormatFloat32x3
	FormatFloat32x4
)

func (f AttributeFormat) Size() int {
	switch f {
	case FormatUint8x4, FormatSint8x4:
		return 4
	case FormatFloat32x3:
		return 12
	default:
		return 16
	}
}

type Attribute struct {
	Name     string
	Location uint32
	Format   AttributeFormat
	Offset   int
}

// Layout describes one interleaved vertex buffer.
type Layout struct {
	Stride     int
	Attributes []Attribute
}

const (
	LocationPosition = 0
	LocationNormal   = 1
	LocationVoxel    = 2
)

func DefaultLayout() Layout {
	return Layout{
		Stride: VertexStride,
		Attributes: []Attribute{
			{Name: "position", Location: LocationPosition, Format: FormatUint8x4, Offset: 0},
			{Name: "normal", Location: LocationNormal, Format: FormatSint8x4, Offset: 4},
			{Name: "voxel", Location: LocationVoxel, Format: FormatUint8x4, Offset: 8},
		},
	}
}

// Validate checks that attributes fit the stride, are 4-byte aligned, do not
// overlap and use distinct shader locations.
func (l Layout) Validate() error {
	if l.Stride <= 0 || l.Stride%4 != 0 {
		return fmt.Errorf("%w: stride %d", ErrInvalidLayout, l.Stride)
	}
	if len(l.Attributes) == 0 {
		return fmt.Errorf("%w: no attributes", ErrInvalidLayout)
	}

	attrs := append([]Attribute(nil), l.Attributes...)
	sort.Slice(attrs, func(i, j int) bool { return attrs[i].Offset < attrs[j].Offset })

	locations := make(map[uint32]string, len(attrs))
	end := 0
	for _, a := range attrs {
		if a.Offset < 0 || a.Offset%4 != 0 {
			return fmt.Errorf("%w: %s offset %d not 4-byte aligned", ErrInvalidLayout, a.Name, a.Offset)
		}
		if a.Offset+a.Format.Size() > l.Stride {
			return fmt.Errorf("%w: %s [%d,%d) exceeds stride %d", ErrInvalidLayout, a.Name, a.Offset, a.Offset+a.Format.Size(), l.Stride)
		}
		if a.Offset < end {
			return fmt.Errorf("%w: %s overlaps previous attribute", ErrInvalidLayout, a.Name)
		}
		if other, dup := locations[a.Location]; dup {
			return fmt.Errorf("%w: location %d used by %s and %s", ErrInvalidLayout, a.Location, other, a.Name)
		}
		locations[a.Location] = a.Name
		end = a.Offset + a.Format.Size()
	}
	return nil
}
