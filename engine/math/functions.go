package math

import (
	m "math"
)

const (
	/** @brief An approximate representation of PI. */
	K_PI float32 = 3.14159265358979323846
	/** @brief A multiplier used to convert degrees to radians. */
	K_DEG2RAD_MULTIPLIER float32 = K_PI / 180.0
	/** @brief A multiplier used to convert radians to degrees. */
	K_RAD2DEG_MULTIPLIER float32 = 180.0 / K_PI
	/** @brief A huge number that should be larger than any valid number used. */
	K_INFINITY float32 = 1e30
	/** @brief Smallest positive number where 1.0 + FLOAT_EPSILON != 0. */
	K_FLOAT_EPSILON float32 = 1.192092896e-07
)

func DegToRad(degrees float32) float32 {
	return degrees * K_DEG2RAD_MULTIPLIER
}

func RadToDeg(radians float32) float32 {
	return radians * K_RAD2DEG_MULTIPLIER
}

func Sqrt(x float32) float32 {
	return float32(m.Sqrt(float64(x)))
}

func Abs(x float32) float32 {
	return float32(m.Abs(float64(x)))
}

func Tan(x float32) float32 {
	return float32(m.Tan(float64(x)))
}

func NewVec3Zero() Vec3 {
	return Vec3{}
}

func NewVec3One() Vec3 {
	return Vec3{X: 1, Y: 1, Z: 1}
}

func NewVec3(x, y, z float32) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

func (v Vec3) Mul(o Vec3) Vec3 {
	return Vec3{v.X * o.X, v.Y * o.Y, v.Z * o.Z}
}

func (v Vec3) Scale(s float32) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

func (v Vec3) Dot(o Vec3) float32 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		X: v.Y*o.Z - v.Z*o.Y,
		Y: v.Z*o.X - v.X*o.Z,
		Z: v.X*o.Y - v.Y*o.X,
	}
}

func (v Vec3) LengthSquared() float32 {
	return v.Dot(v)
}

func (v Vec3) Length() float32 {
	return Sqrt(v.LengthSquared())
}

func (v Vec3) Normalized() Vec3 {
	l := v.Length()
	if l < K_FLOAT_EPSILON {
		return Vec3{}
	}
	return v.Scale(1.0 / l)
}

func (v Vec3) Distance(o Vec3) float32 {
	return v.Sub(o).Length()
}

func NewVec4(x, y, z, w float32) Vec4 {
	return Vec4{X: x, Y: y, Z: z, W: w}
}

func (v Vec4) Dot(o Vec4) float32 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z + v.W*o.W
}

func NewQuatIdentity() Quaternion {
	return Quaternion{W: 1}
}

func NewQuatFromAxisAngle(axis Vec3, angle float32, normalize bool) Quaternion {
	halfAngle := 0.5 * angle
	s := float32(m.Sin(float64(halfAngle)))
	c := float32(m.Cos(float64(halfAngle)))

	q := Quaternion{X: s * axis.X, Y: s * axis.Y, Z: s * axis.Z, W: c}
	if normalize {
		return q.Normalized()
	}
	return q
}

func (q Quaternion) Normalized() Quaternion {
	l := Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
	if l < K_FLOAT_EPSILON {
		return NewQuatIdentity()
	}
	return Quaternion{X: q.X / l, Y: q.Y / l, Z: q.Z / l, W: q.W / l}
}

func (q Quaternion) Mul(o Quaternion) Quaternion {
	return Quaternion{
		X: q.X*o.W + q.Y*o.Z - q.Z*o.Y + q.W*o.X,
		Y: -q.X*o.Z + q.Y*o.W + q.Z*o.X + q.W*o.Y,
		Z: q.X*o.Y - q.Y*o.X + q.Z*o.W + q.W*o.Z,
		W: -q.X*o.X - q.Y*o.Y - q.Z*o.Z + q.W*o.W,
	}
}

func (q Quaternion) ToMat4() Mat4 {
	n := q.Normalized()
	out := NewMat4Identity()

	out.Data[0] = 1.0 - 2.0*n.Y*n.Y - 2.0*n.Z*n.Z
	out.Data[1] = 2.0*n.X*n.Y - 2.0*n.Z*n.W
	out.Data[2] = 2.0*n.X*n.Z + 2.0*n.Y*n.W

	out.Data[4] = 2.0*n.X*n.Y + 2.0*n.Z*n.W
	out.Data[5] = 1.0 - 2.0*n.X*n.X - 2.0*n.Z*n.Z
	out.Data[6] = 2.0*n.Y*n.Z - 2.0*n.X*n.W

	out.Data[8] = 2.0*n.X*n.Z - 2.0*n.Y*n.W
	out.Data[9] = 2.0*n.Y*n.Z + 2.0*n.X*n.W
	out.Data[10] = 1.0 - 2.0*n.X*n.X - 2.0*n.Y*n.Y

	return out
}

func NewMat4Identity() Mat4 {
	out := Mat4{}
	out.Data[0] = 1.0
	out.Data[5] = 1.0
	out.Data[10] = 1.0
	out.Data[15] = 1.0
	return out
}

// Mul returns the combined transform applying mat first, then o.
func (mat Mat4) Mul(o Mat4) Mat4 {
	out := Mat4{}
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			var sum float32
			for i := 0; i < 4; i++ {
				sum += mat.Data[row*4+i] * o.Data[i*4+col]
			}
			out.Data[row*4+col] = sum
		}
	}
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

func NewMat4Perspective(fovRadians, aspectRatio, nearClip, farClip float32) Mat4 {
	halfTanFov := Tan(fovRadians * 0.5)
	out := Mat4{}
	out.Data[0] = 1.0 / (aspectRatio * halfTanFov)
	out.Data[5] = 1.0 / halfTanFov
	out.Data[10] = -((farClip + nearClip) / (farClip - nearClip))
	out.Data[11] = -1.0
	out.Data[14] = -((2.0 * farClip * nearClip) / (farClip - nearClip))
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

// TransformPoint applies the matrix to a point (w = 1).
func (mat Mat4) TransformPoint(p Vec3) Vec3 {
	return Vec3{
		X: p.X*mat.Data[0] + p.Y*mat.Data[4] + p.Z*mat.Data[8] + mat.Data[12],
		Y: p.X*mat.Data[1] + p.Y*mat.Data[5] + p.Z*mat.Data[9] + mat.Data[13],
		Z: p.X*mat.Data[2] + p.Y*mat.Data[6] + p.Z*mat.Data[10] + mat.Data[14],
	}
}

// Row returns the i-th row of the matrix as a Vec4, reading the column-major
// storage. Used by frustum plane extraction.
func (mat Mat4) Row(i int) Vec4 {
	return Vec4{
		X: mat.Data[i],
		Y: mat.Data[4+i],
		Z: mat.Data[8+i],
		W: mat.Data[12+i],
	}
}
