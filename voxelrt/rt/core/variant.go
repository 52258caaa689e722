package core

import (
	"fmt"
	"strings"
)

// Variant selects how geometry reaches the render stage.
type Variant string

const (
	// VariantCompute regenerates the mesh every frame in a compute prepass.
	VariantCompute Variant = "compute"
	// VariantStatic generates the mesh once and reuses it.
	VariantStatic Variant = "static"
	// VariantVertexPulling builds cube primitives in the vertex stage from
	// the voxel list; no mesh buffers.
	VariantVertexPulling Variant = "vertex-pulling"
)

var Variants = []Variant{VariantCompute, VariantStatic, VariantVertexPulling}

func ParseVariant(s string) (Variant, error) {
	v := Variant(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Variants {
		if v == known {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown pipeline variant %q", s)
}

func (v Variant) String() string {
	return string(v)
}

// UsesMeshBuffers is false for variants that draw without generated buffers.
func (v Variant) UsesMeshBuffers() bool {
	return v != VariantVertexPulling
}

// PerFrameGeometry is true when geometry is dispatched every frame.
func (v Variant) PerFrameGeometry() bool {
	return v == VariantCompute
}
