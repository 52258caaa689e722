package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Rotation returns a rotation of radians around axis. A zero axis yields
// the identity.
func Rotation(radians float32, axis mgl32.Vec3) mgl32.Mat4 {
	if axis.Len() == 0 {
		return mgl32.Ident4()
	}
	return mgl32.HomogRotate3D(radians, axis.Normalize())
}

func Translation(t mgl32.Vec3) mgl32.Mat4 {
	return mgl32.Translate3D(t.X(), t.Y(), t.Z())
}

func RadiansFromDegrees(degrees float32) float32 {
	return degrees * math.Pi / 180
}

// PerspectiveRH builds a right-handed projection that maps view depth
// [-near, -far] onto clip depth [0, 1].
func PerspectiveRH(fovyRadians, aspect, near, far float32) mgl32.Mat4 {
	ys := 1 / float32(math.Tan(float64(fovyRadians)*0.5))
	xs := ys / aspect
	zs := far / (near - far)
	return mgl32.Mat4{
		xs, 0, 0, 0,
		0, ys, 0, 0,
		0, 0, zs, -1,
		0, 0, zs * near, 0,
	}
}

func LookAt(eye, target, up mgl32.Vec3) mgl32.Mat4 {
	return mgl32.LookAtV(eye, target, up)
}

// Quaternion helpers

func QuatIdentity() mgl32.Quat {
	return mgl32.QuatIdent()
}

func QuatInverse(q mgl32.Quat) mgl32.Quat {
	return q.Inverse()
}

// QuatDiv returns a * inverse(b).
func QuatDiv(a, b mgl32.Quat) mgl32.Quat {
	return a.Mul(b.Inverse())
}

func QuatRotated(q mgl32.Quat, v mgl32.Vec3) mgl32.Vec3 {
	return q.Rotate(v)
}

func QuatIsNaN(q mgl32.Quat) bool {
	nan := func(f float32) bool { return f != f }
	return nan(q.W) || nan(q.V[0]) || nan(q.V[1]) || nan(q.V[2])
}

// QuatNormalized falls back to the identity for zero-length or NaN input.
func QuatNormalized(q mgl32.Quat) mgl32.Quat {
	l := q.Len()
	if l == 0 || QuatIsNaN(q) || math.IsInf(float64(l), 0) {
		return mgl32.QuatIdent()
	}
	return mgl32.Quat{W: q.W / l, V: q.V.Mul(1 / l)}
}

// FrustumPlanes extracts Left, Right, Bottom, Top, Near, Far planes from a
// view-projection matrix with [0, 1] clip depth. Plane normals point inside.
func FrustumPlanes(vp mgl32.Mat4) [6]mgl32.Vec4 {
	row := func(r int) mgl32.Vec4 {
		return mgl32.Vec4{vp.At(r, 0), vp.At(r, 1), vp.At(r, 2), vp.At(r, 3)}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	planes := [6]mgl32.Vec4{
		r3.Add(r0),
		r3.Sub(r0),
		r3.Add(r1),
		r3.Sub(r1),
		r2, // depth 0..1: near is z >= 0
		r3.Sub(r2),
	}
	for i := range planes {
		length := planes[i].Vec3().Len()
		if length > 0 {
			planes[i] = planes[i].Mul(1.0 / length)
		}
	}
	return planes
}

// AABBInFrustum reports whether any part of the box can be inside the
// frustum. Conservative: boxes straddling a corner may pass.
func AABBInFrustum(aabb [2]mgl32.Vec3, planes [6]mgl32.Vec4) bool {
	for _, plane := range planes {
		// most-inside corner
		var p mgl32.Vec3
		for i := 0; i < 3; i++ {
			if plane[i] > 0 {
				p[i] = aabb[1][i]
			} else {
				p[i] = aabb[0][i]
			}
		}
		if plane.Vec3().Dot(p)+plane[3] < 0 {
			return false
		}
	}
	return true
}
