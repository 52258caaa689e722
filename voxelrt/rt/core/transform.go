package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Transform places a model in the world. Pivot is the object-space point
// that rotation and scale act around.
type Transform struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
	Pivot    mgl32.Vec3
}

func NewTransform() *Transform {
	return &Transform{
		Position: mgl32.Vec3{0, 0, 0},
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
	}
}

// CenteredOn returns a transform whose pivot is the center of a grid of the
// given size, so the model spins in place at the origin.
func CenteredOn(sizeX, sizeY, sizeZ int) *Transform {
	t := NewTransform()
	t.Pivot = mgl32.Vec3{float32(sizeX), float32(sizeY), float32(sizeZ)}.Mul(0.5)
	return t
}

// SetAxisAngle replaces the rotation with radians around axis.
func (t *Transform) SetAxisAngle(radians float32, axis mgl32.Vec3) {
	if axis.Len() == 0 {
		t.Rotation = mgl32.QuatIdent()
		return
	}
	t.Rotation = QuatNormalized(mgl32.QuatRotate(radians, axis.Normalize()))
}

func (t *Transform) ObjectToWorld() mgl32.Mat4 {
	// M = T * R * S * T(-pivot)
	translate := Translation(t.Position)
	rotate := t.Rotation.Mat4()
	scale := mgl32.Scale3D(t.Scale.X(), t.Scale.Y(), t.Scale.Z())
	pivot := Translation(t.Pivot.Mul(-1))

	return translate.Mul4(rotate).Mul4(scale).Mul4(pivot)
}

func (t *Transform) WorldToObject() mgl32.Mat4 {
	// inv(M) = T(pivot) * inv(S) * inv(R) * inv(T)
	unpivot := Translation(t.Pivot)
	invScale := mgl32.Scale3D(1.0/t.Scale.X(), 1.0/t.Scale.Y(), 1.0/t.Scale.Z())
	invRotate := t.Rotation.Conjugate().Mat4()
	invTranslate := Translation(t.Position.Mul(-1))

	return unpivot.Mul4(invScale).Mul4(invRotate).Mul4(invTranslate)
}
