package core

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	// UniformsSize matches the WGSL Uniforms struct: four mat4x4f, two u32
	// and padding up to the 16-byte struct alignment.
	UniformsSize = 4*64 + 16

	// AlignedUniformsSize is the ring stride; uniform buffer offsets must be
	// multiples of 256.
	AlignedUniformsSize = (UniformsSize + 0xFF) &^ 0xFF
)

const (
	FlagDebugFaceMask uint32 = 1 << 0
)

type Uniforms struct {
	Projection mgl32.Mat4
	Model      mgl32.Mat4
	View       mgl32.Mat4
	ModelView  mgl32.Mat4
	VoxelCount uint32
	Flags      uint32
}

// NewUniforms derives ModelView from view and model.
func NewUniforms(projection, view, model mgl32.Mat4, voxelCount uint32) Uniforms {
	return Uniforms{
		Projection: projection,
		Model:      model,
		View:       view,
		ModelView:  view.Mul4(model),
		VoxelCount: voxelCount,
	}
}

// MarshalInto writes the little-endian GPU layout into buf.
func (u Uniforms) MarshalInto(buf []byte) error {
	if len(buf) < UniformsSize {
		return fmt.Errorf("uniform buffer too small: %d < %d", len(buf), UniformsSize)
	}
	off := 0
	for _, m := range [4]mgl32.Mat4{u.Projection, u.Model, u.View, u.ModelView} {
		for _, v := range m {
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
			off += 4
		}
	}
	binary.LittleEndian.PutUint32(buf[off:], u.VoxelCount)
	binary.LittleEndian.PutUint32(buf[off+4:], u.Flags)
	for i := off + 8; i < UniformsSize; i++ {
		buf[i] = 0
	}
	return nil
}

func (u Uniforms) Bytes() []byte {
	buf := make([]byte, UniformsSize)
	_ = u.MarshalInto(buf)
	return buf
}

func UnmarshalUniforms(buf []byte) (Uniforms, error) {
	var u Uniforms
	if len(buf) < UniformsSize {
		return u, fmt.Errorf("uniform buffer too small: %d < %d", len(buf), UniformsSize)
	}
	off := 0
	for _, m := range [4]*mgl32.Mat4{&u.Projection, &u.Model, &u.View, &u.ModelView} {
		for i := range m {
			m[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
			off += 4
		}
	}
	u.VoxelCount = binary.LittleEndian.Uint32(buf[off:])
	u.Flags = binary.LittleEndian.Uint32(buf[off+4:])
	return u, nil
}

// UniformRing holds one aligned uniform slot per frame in flight.
type UniformRing struct {
	data  []byte
	slots int
}

func NewUniformRing(slots int) *UniformRing {
	if slots < 1 {
		slots = 1
	}
	return &UniformRing{data: make([]byte, slots*AlignedUniformsSize), slots: slots}
}

func (r *UniformRing) Slots() int {
	return r.slots
}

// Offset returns the byte offset of slot; slots wrap around.
func (r *UniformRing) Offset(slot int) uint64 {
	return uint64((slot%r.slots+r.slots)%r.slots) * AlignedUniformsSize
}

func (r *UniformRing) Write(slot int, u Uniforms) error {
	off := r.Offset(slot)
	return u.MarshalInto(r.data[off : off+AlignedUniformsSize])
}

func (r *UniformRing) Read(slot int) (Uniforms, error) {
	off := r.Offset(slot)
	return UnmarshalUniforms(r.data[off : off+AlignedUniformsSize])
}

// Slot returns the raw bytes of one slot. Callers must not retain it.
func (r *UniformRing) Slot(slot int) []byte {
	off := r.Offset(slot)
	return r.data[off : off+UniformsSize]
}

func (r *UniformRing) Bytes() []byte {
	return r.data
}
