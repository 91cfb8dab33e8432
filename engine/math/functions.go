package math

import (
	m "math"

	"golang.org/x/exp/constraints"
)

const (
	Pi          float32 = 3.14159265358979323846
	Deg2Rad     float32 = Pi / 180.0
	Rad2Deg     float32 = 180.0 / Pi
	Float32Eps  float32 = 1.192092896e-07
	SecondsToMS float32 = 1000.0
)

func sinf(x float32) float32 {
	return float32(m.Sin(float64(x)))
}

func cosf(x float32) float32 {
	return float32(m.Cos(float64(x)))
}

func tanf(x float32) float32 {
	return float32(m.Tan(float64(x)))
}

func sqrtf(x float32) float32 {
	return float32(m.Sqrt(float64(x)))
}

func absf(x float32) float32 {
	return float32(m.Abs(float64(x)))
}

// Clamp limits v to the closed range [lo, hi].
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func DegToRad(degrees float32) float32 {
	return degrees * Deg2Rad
}

func RadToDeg(radians float32) float32 {
	return radians * Rad2Deg
}

// ------------------------------------------
// Vector 3
// ------------------------------------------

func NewVec3(x, y, z float32) Vec3 {
	return Vec3{x, y, z}
}

func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{v.X + other.X, v.Y + other.Y, v.Z + other.Z}
}

func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{v.X - other.X, v.Y - other.Y, v.Z - other.Z}
}

func (v Vec3) MulScalar(scalar float32) Vec3 {
	return Vec3{v.X * scalar, v.Y * scalar, v.Z * scalar}
}

func (v Vec3) Dot(other Vec3) float32 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

func (v Vec3) Cross(other Vec3) Vec3 {
	return Vec3{
		v.Y*other.Z - v.Z*other.Y,
		v.Z*other.X - v.X*other.Z,
		v.X*other.Y - v.Y*other.X}
}

func (v Vec3) LengthSquared() float32 {
	return v.X*v.X + v.Y*v.Y + v.Z*v.Z
}

func (v Vec3) Length() float32 {
	return sqrtf(v.LengthSquared())
}

func (v Vec3) Normalized() Vec3 {
	length := v.Length()
	return Vec3{v.X / length, v.Y / length, v.Z / length}
}

// Compare reports whether every component of v is within tolerance of other.
func (v Vec3) Compare(other Vec3, tolerance float32) bool {
	if absf(v.X-other.X) > tolerance {
		return false
	}
	if absf(v.Y-other.Y) > tolerance {
		return false
	}
	if absf(v.Z-other.Z) > tolerance {
		return false
	}
	return true
}

// ------------------------------------------
// Matrix 4x4
// ------------------------------------------

func NewMat4Identity() Mat4 {
	out := Mat4{}
	out.Data[0] = 1.0
	out.Data[5] = 1.0
	out.Data[10] = 1.0
	out.Data[15] = 1.0
	return out
}

func (mt Mat4) Mul(other Mat4) Mat4 {
	out := Mat4{}
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			sum := float32(0)
			for i := 0; i < 4; i++ {
				sum += mt.Data[row*4+i] * other.Data[i*4+col]
			}
			out.Data[row*4+col] = sum
		}
	}
	return out
}

// NewMat4Perspective builds a right-handed projection with depth in [0, 1].
// The Y axis is flipped to match Vulkan clip space.
func NewMat4Perspective(fovRadians, aspectRatio, nearClip, farClip float32) Mat4 {
	halfTanFov := tanf(fovRadians * 0.5)
	out := Mat4{}
	out.Data[0] = 1.0 / (aspectRatio * halfTanFov)
	out.Data[5] = -1.0 / halfTanFov
	out.Data[10] = farClip / (nearClip - farClip)
	out.Data[11] = -1.0
	out.Data[14] = (nearClip * farClip) / (nearClip - farClip)
	return out
}

func NewMat4LookAt(position, target, up Vec3) Mat4 {
	zAxis := target.Sub(position).Normalized()
	xAxis := zAxis.Cross(up).Normalized()
	yAxis := xAxis.Cross(zAxis)

	out := Mat4{}
	out.Data[0] = xAxis.X
	out.Data[1] = yAxis.X
	out.Data[2] = -zAxis.X
	out.Data[4] = xAxis.Y
	out.Data[5] = yAxis.Y
	out.Data[6] = -zAxis.Y
	out.Data[8] = xAxis.Z
	out.Data[9] = yAxis.Z
	out.Data[10] = -zAxis.Z
	out.Data[12] = -xAxis.Dot(position)
	out.Data[13] = -yAxis.Dot(position)
	out.Data[14] = zAxis.Dot(position)
	out.Data[15] = 1.0
	return out
}

func NewMat4Translation(position Vec3) Mat4 {
	out := NewMat4Identity()
	out.Data[12] = position.X
	out.Data[13] = position.Y
	out.Data[14] = position.Z
	return out
}

func NewMat4Scale(scale Vec3) Mat4 {
	out := NewMat4Identity()
	out.Data[0] = scale.X
	out.Data[5] = scale.Y
	out.Data[10] = scale.Z
	return out
}

func NewMat4EulerY(angleRadians float32) Mat4 {
	out := NewMat4Identity()
	c := cosf(angleRadians)
	s := sinf(angleRadians)
	out.Data[0] = c
	out.Data[2] = -s
	out.Data[8] = s
	out.Data[10] = c
	return out
}

// WithoutTranslation zeroes the translation column. Used for skybox views
// so the box stays centered on the camera.
func (mt Mat4) WithoutTranslation() Mat4 {
	out := mt
	out.Data[12] = 0
	out.Data[13] = 0
	out.Data[14] = 0
	return out
}
