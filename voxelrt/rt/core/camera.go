package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Camera is a look-at camera with a right-handed perspective projection.
type Camera struct {
	Eye    mgl32.Vec3
	Target mgl32.Vec3
	Up     mgl32.Vec3

	FovYDegrees float32
	Near        float32
	Far         float32
	Aspect      float32

	Sensitivity float32
}

func NewCamera() *Camera {
	return &Camera{
		Eye:         mgl32.Vec3{0, 0, 16},
		Target:      mgl32.Vec3{0, 0, 0},
		Up:          mgl32.Vec3{0, 1, 0},
		FovYDegrees: 90,
		Near:        1,
		Far:         1000,
		Aspect:      1,
		Sensitivity: 0.003,
	}
}

// SetViewport updates the aspect ratio. Zero-sized viewports are ignored.
func (c *Camera) SetViewport(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	c.Aspect = float32(width) / float32(height)
}

func (c *Camera) ViewMatrix() mgl32.Mat4 {
	return LookAt(c.Eye, c.Target, c.Up)
}

func (c *Camera) ProjectionMatrix() mgl32.Mat4 {
	aspect := c.Aspect
	if aspect == 0 {
		aspect = 1.0
	}
	return PerspectiveRH(RadiansFromDegrees(c.FovYDegrees), aspect, c.Near, c.Far)
}

// Orbit rotates the eye around the target by yaw (around Up) and pitch.
// Pitch is clamped short of the poles.
func (c *Camera) Orbit(dYaw, dPitch float32) {
	offset := c.Eye.Sub(c.Target)
	radius := offset.Len()
	if radius == 0 {
		return
	}

	up := c.Up.Normalize()
	yaw := Rotation(-dYaw*c.Sensitivity, up).Mul4x1(offset.Vec4(0)).Vec3()

	right := up.Cross(yaw.Normalize())
	if right.Len() == 0 {
		c.Eye = c.Target.Add(yaw)
		return
	}
	pitched := Rotation(dPitch*c.Sensitivity, right).Mul4x1(yaw.Vec4(0)).Vec3()

	// keep away from the up axis
	cos := pitched.Normalize().Dot(up)
	if math.Abs(float64(cos)) > 0.99 {
		pitched = yaw
	}
	c.Eye = c.Target.Add(pitched.Normalize().Mul(radius))
}

// Zoom moves the eye along the view direction, never past Near.
func (c *Camera) Zoom(delta float32) {
	offset := c.Eye.Sub(c.Target)
	dist := offset.Len() - delta
	if dist < c.Near {
		dist = c.Near
	}
	if offset.Len() == 0 {
		return
	}
	c.Eye = c.Target.Add(offset.Normalize().Mul(dist))
}
