package core

type CullMode uint8

const (
	CullNone CullMode = iota
	CullFront
	CullBack
)

type Winding uint8

const (
	WindingCCW Winding = iota
	WindingCW
)

type CompareFunc uint8

const (
	CompareLess CompareFunc = iota
	CompareLessEqual
	CompareAlways
)

func (c CompareFunc) Test(incoming, stored float32) bool {
	switch c {
	case CompareLess:
		return incoming < stored
	case CompareLessEqual:
		return incoming <= stored
	default:
		return true
	}
}

type BlendFactor uint8

const (
	BlendZero BlendFactor = iota
	BlendOne
	BlendSrcAlpha
	BlendOneMinusSrcAlpha
)

func (f BlendFactor) weight(srcAlpha float32) float32 {
	switch f {
	case BlendZero:
		return 0
	case BlendOne:
		return 1
	case BlendSrcAlpha:
		return srcAlpha
	default:
		return 1 - srcAlpha
	}
}

// BlendComponent computes src*Src + dst*Dst.
type BlendComponent struct {
	Src BlendFactor
	Dst BlendFactor
}

func (b BlendComponent) Apply(src, dst, srcAlpha float32) float32 {
	return src*b.Src.weight(srcAlpha) + dst*b.Dst.weight(srcAlpha)
}

// RasterState is the fixed-function state of the voxel render pass.
type RasterState struct {
	Cull         CullMode
	FrontFace    Winding
	DepthCompare CompareFunc
	DepthWrite   bool
	Color        BlendComponent
	Alpha        BlendComponent
	SampleCount  uint32
}

func DefaultRasterState() RasterState {
	return RasterState{
		Cull:         CullBack,
		FrontFace:    WindingCCW,
		DepthCompare: CompareLess,
		DepthWrite:   true,
		Color:        BlendComponent{Src: BlendSrcAlpha, Dst: BlendOneMinusSrcAlpha},
		Alpha:        BlendComponent{Src: BlendOne, Dst: BlendZero},
		SampleCount:  1,
	}
}

// Culled reports whether a triangle with the given signed area in
// y-up normalized device coordinates is discarded. Positive area is
// counter-clockwise.
func (r RasterState) Culled(signedArea float32) bool {
	front := signedArea > 0
	if r.FrontFace == WindingCW {
		front = !front
	}
	switch r.Cull {
	case CullBack:
		return !front
	case CullFront:
		return front
	default:
		return false
	}
}

// BlendRGBA blends a straight-alpha source over dst, channels in [0, 1].
func (r RasterState) BlendRGBA(src, dst [4]float32) [4]float32 {
	a := src[3]
	return [4]float32{
		r.Color.Apply(src[0], dst[0], a),
		r.Color.Apply(src[1], dst[1], a),
		r.Color.Apply(src[2], dst[2], a),
		r.Alpha.Apply(src[3], dst[3], a),
	}
}
