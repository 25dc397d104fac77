// Package vmath holds the small numeric helpers shared by the locomotion models.
package vmath

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Epsilon below which vectors are treated as zero length.
const Epsilon = 1e-9

var up = mgl64.Vec3{0, 0, 1}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampAbs limits v to [-limit, limit]. A non-positive limit yields 0.
func ClampAbs(v, limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	return Clamp(v, -limit, limit)
}

// Dampen moves last toward target by at most maxStep*(1-falloff).
// falloff is the fraction of the limit already used (0 = full step, 1 = no movement).
func Dampen(last, target, maxStep, falloff float64) float64 {
	step := math.Abs(maxStep) * (1 - Clamp(falloff, 0, 1))
	diff := target - last
	if math.Abs(diff) <= step {
		return target
	}
	if diff > 0 {
		return last + step
	}
	return last - step
}

// Approach moves current toward target by at most maxDelta.
func Approach(current, target, maxDelta float64) float64 {
	return Dampen(current, target, maxDelta, 0)
}

// Drag scales v by (1 - coef*dt), never flipping its sign.
func Drag(v, coef, dt float64) float64 {
	return v * Clamp(1-coef*dt, 0, 1)
}

// SafeNormalize returns v/|v|, or fallback when v is (near) zero.
func SafeNormalize(v, fallback mgl64.Vec3) mgl64.Vec3 {
	l := v.Len()
	if l < Epsilon || math.IsNaN(l) {
		return fallback
	}
	return v.Mul(1 / l)
}

// ClampLen limits the length of v to maxLen.
func ClampLen(v mgl64.Vec3, maxLen float64) mgl64.Vec3 {
	if maxLen <= 0 {
		return mgl64.Vec3{}
	}
	l := v.Len()
	if l <= maxLen {
		return v
	}
	return v.Mul(maxLen / l)
}

// Horizontal drops the vertical (Z) component.
func Horizontal(v mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{v.X(), v.Y(), 0}
}

// RotateAboutUp rotates v by angle radians about world +Z (right handed).
func RotateAboutUp(v mgl64.Vec3, angle float64) mgl64.Vec3 {
	return mgl64.QuatRotate(angle, up).Rotate(v)
}

// HeadingOf returns the heading angle (radians) of a horizontal forward vector,
// measured from +Y toward -X.
func HeadingOf(forward mgl64.Vec3) float64 {
	return math.Atan2(-forward.X(), forward.Y())
}

// Orthonormalize rebuilds a right handed basis from forward and up:
// right = forward x up, up = right x forward, each normalized.
func Orthonormalize(forward, upv mgl64.Vec3) (f, u, r mgl64.Vec3) {
	f = SafeNormalize(forward, mgl64.Vec3{0, 1, 0})
	r = SafeNormalize(f.Cross(upv), mgl64.Vec3{1, 0, 0})
	u = SafeNormalize(r.Cross(f), up)
	return f, u, r
}

// BasisMat4 builds a pose matrix from an orthonormal basis and a position.
func BasisMat4(right, forward, upv, pos mgl64.Vec3) mgl64.Mat4 {
	return mgl64.Mat4FromCols(right.Vec4(0), forward.Vec4(0), upv.Vec4(0), pos.Vec4(1))
}

// WrapDegrees maps an angle to (-180, 180].
func WrapDegrees(a float64) float64 {
	a = math.Mod(a, 360)
	if a > 180 {
		a -= 360
	} else if a <= -180 {
		a += 360
	}
	return a
}
