package common

import (
	"github.com/chewxy/math32"
)

// Vec3 is a three component float32 vector.
type Vec3 [3]float32

// Quat is a rotation quaternion stored as x, y, z, w.
type Quat [4]float32

// Mat4 is a 4x4 float32 matrix stored column-major, matching the layout the GPU expects.
type Mat4 [16]float32

var (
	// Vec3Zero is the zero vector.
	Vec3Zero = Vec3{0, 0, 0}

	// Vec3One is the vector with every component set to one.
	Vec3One = Vec3{1, 1, 1}

	// Vec3Up is the world up axis.
	Vec3Up = Vec3{0, 1, 0}
)

// DegToRad converts an angle in degrees to radians.
func DegToRad(deg float32) float32 {
	return deg * math32.Pi / 180
}

// V3 builds a Vec3 from its components.
func V3(x, y, z float32) Vec3 {
	return Vec3{x, y, z}
}

func (a Vec3) Add(b Vec3) Vec3 {
	return Vec3{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}

func (a Vec3) Sub(b Vec3) Vec3 {
	return Vec3{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

// Mul multiplies two vectors component-wise.
func (a Vec3) Mul(b Vec3) Vec3 {
	return Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

func (a Vec3) Scale(s float32) Vec3 {
	return Vec3{a[0] * s, a[1] * s, a[2] * s}
}

func (a Vec3) Dot(b Vec3) float32 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func (a Vec3) LengthSquared() float32 {
	return a.Dot(a)
}

func (a Vec3) Length() float32 {
	return math32.Sqrt(a.LengthSquared())
}

// DistanceSquared returns the squared euclidean distance between a and b.
func (a Vec3) DistanceSquared(b Vec3) float32 {
	return a.Sub(b).LengthSquared()
}

// Normalize returns a unit length copy of a. The zero vector is returned unchanged.
func (a Vec3) Normalize() Vec3 {
	l := a.Length()
	if l == 0 {
		return a
	}
	return a.Scale(1 / l)
}

// QuatIdentity returns the rotation that does nothing.
func QuatIdentity() Quat {
	return Quat{0, 0, 0, 1}
}

// QuatFromAxisAngle builds a rotation of angle radians around axis.
//
// Parameters:
//   - axis: rotation axis, normalized internally
//   - angle: rotation angle in radians
//
// Returns:
//   - Quat: the rotation quaternion
func QuatFromAxisAngle(axis Vec3, angle float32) Quat {
	n := axis.Normalize()
	s := math32.Sin(angle / 2)
	return Quat{n[0] * s, n[1] * s, n[2] * s, math32.Cos(angle / 2)}
}

// QuatFromTo returns the shortest rotation turning direction from onto direction to.
// Opposite directions rotate half a turn around an axis perpendicular to from.
func QuatFromTo(from, to Vec3) Quat {
	f, t := from.Normalize(), to.Normalize()
	d := f.Dot(t)
	if d >= 1-1e-6 {
		return QuatIdentity()
	}
	if d <= -1+1e-6 {
		axis := Vec3{1, 0, 0}.Cross(f)
		if axis.LengthSquared() < 1e-12 {
			axis = Vec3{0, 1, 0}.Cross(f)
		}
		return QuatFromAxisAngle(axis, math32.Pi)
	}
	c := f.Cross(t)
	return Quat{c[0], c[1], c[2], 1 + d}.Normalize()
}

// Mul returns the Hamilton product q * r, which applies r first and then q.
func (q Quat) Mul(r Quat) Quat {
	return Quat{
		q[3]*r[0] + q[0]*r[3] + q[1]*r[2] - q[2]*r[1],
		q[3]*r[1] - q[0]*r[2] + q[1]*r[3] + q[2]*r[0],
		q[3]*r[2] + q[0]*r[1] - q[1]*r[0] + q[2]*r[3],
		q[3]*r[3] - q[0]*r[0] - q[1]*r[1] - q[2]*r[2],
	}
}

// Normalize returns a unit quaternion. A zero quaternion becomes the identity.
func (q Quat) Normalize() Quat {
	l := math32.Sqrt(q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3])
	if l == 0 {
		return QuatIdentity()
	}
	inv := 1 / l
	return Quat{q[0] * inv, q[1] * inv, q[2] * inv, q[3] * inv}
}

// Rotate applies the rotation to v.
func (q Quat) Rotate(v Vec3) Vec3 {
	m := q.Mat4()
	return m.MulDirection(v)
}

// Mat4 converts the quaternion into a rotation matrix.
func (q Quat) Mat4() Mat4 {
	x, y, z, w := q[0], q[1], q[2], q[3]
	xx, yy, zz := x*x, y*y, z*z
	xy, xz, yz := x*y, x*z, y*z
	wx, wy, wz := w*x, w*y, w*z

	return Mat4{
		1 - 2*(yy+zz), 2 * (xy + wz), 2 * (xz - wy), 0,
		2 * (xy - wz), 1 - 2*(xx+zz), 2 * (yz + wx), 0,
		2 * (xz + wy), 2 * (yz - wx), 1 - 2*(xx+yy), 0,
		0, 0, 0, 1,
	}
}

// QuatFromMat4 extracts the rotation from the upper 3x3 of a pure rotation matrix.
//
// Parameters:
//   - m: a matrix whose upper 3x3 block is orthonormal
//
// Returns:
//   - Quat: the normalized rotation
func QuatFromMat4(m Mat4) Quat {
	m00, m11, m22 := m[0], m[5], m[10]
	trace := m00 + m11 + m22

	var q Quat
	switch {
	case trace > 0:
		s := math32.Sqrt(trace+1) * 2
		q = Quat{(m[6] - m[9]) / s, (m[8] - m[2]) / s, (m[1] - m[4]) / s, s / 4}
	case m00 > m11 && m00 > m22:
		s := math32.Sqrt(1+m00-m11-m22) * 2
		q = Quat{s / 4, (m[4] + m[1]) / s, (m[8] + m[2]) / s, (m[6] - m[9]) / s}
	case m11 > m22:
		s := math32.Sqrt(1+m11-m00-m22) * 2
		q = Quat{(m[4] + m[1]) / s, s / 4, (m[9] + m[6]) / s, (m[8] - m[2]) / s}
	default:
		s := math32.Sqrt(1+m22-m00-m11) * 2
		q = Quat{(m[8] + m[2]) / s, (m[9] + m[6]) / s, s / 4, (m[1] - m[4]) / s}
	}
	return q.Normalize()
}

// Identity returns the 4x4 identity matrix.
func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Translation returns a matrix translating by v.
func Translation(v Vec3) Mat4 {
	m := Identity()
	m[12], m[13], m[14] = v[0], v[1], v[2]
	return m
}

// Mul returns a * b. Applied to a point, b acts first.
func (a Mat4) Mul(b Mat4) Mat4 {
	var out Mat4
	for i := 0; i < 4; i++ { // column of B
		for j := 0; j < 4; j++ { // row of A
			sum := float32(0)
			for k := 0; k < 4; k++ {
				sum += a[k*4+j] * b[i*4+k]
			}
			out[i*4+j] = sum
		}
	}
	return out
}

// Transpose returns the transposed matrix.
func (a Mat4) Transpose() Mat4 {
	var out Mat4
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			out[r*4+c] = a[c*4+r]
		}
	}
	return out
}

// GetTranslation returns the translation column of the matrix.
func (a Mat4) GetTranslation() Vec3 {
	return Vec3{a[12], a[13], a[14]}
}

// Column returns the first three components of column i.
func (a Mat4) Column(i int) Vec3 {
	return Vec3{a[i*4], a[i*4+1], a[i*4+2]}
}

// MulPoint transforms a point, including translation and the perspective divide.
func (a Mat4) MulPoint(v Vec3) Vec3 {
	x := a[0]*v[0] + a[4]*v[1] + a[8]*v[2] + a[12]
	y := a[1]*v[0] + a[5]*v[1] + a[9]*v[2] + a[13]
	z := a[2]*v[0] + a[6]*v[1] + a[10]*v[2] + a[14]
	w := a[3]*v[0] + a[7]*v[1] + a[11]*v[2] + a[15]
	if w != 0 && w != 1 {
		return Vec3{x / w, y / w, z / w}
	}
	return Vec3{x, y, z}
}

// MulDirection transforms a direction, ignoring translation.
func (a Mat4) MulDirection(v Vec3) Vec3 {
	return Vec3{
		a[0]*v[0] + a[4]*v[1] + a[8]*v[2],
		a[1]*v[0] + a[5]*v[1] + a[9]*v[2],
		a[2]*v[0] + a[6]*v[1] + a[10]*v[2],
	}
}

// Inverse computes the inverse using the Laplace expansion (cofactor) method.
//
// Returns:
//   - Mat4: the inverse, or the identity when the matrix is singular
//   - bool: false if the determinant is zero
func (m Mat4) Inverse() (Mat4, bool) {
	// 2x2 sub-determinants of the upper-left and lower-right quadrants.
	s0 := m[0]*m[5] - m[4]*m[1]
	s1 := m[0]*m[6] - m[4]*m[2]
	s2 := m[0]*m[7] - m[4]*m[3]
	s3 := m[1]*m[6] - m[5]*m[2]
	s4 := m[1]*m[7] - m[5]*m[3]
	s5 := m[2]*m[7] - m[6]*m[3]

	c5 := m[10]*m[15] - m[14]*m[11]
	c4 := m[9]*m[15] - m[13]*m[11]
	c3 := m[9]*m[14] - m[13]*m[10]
	c2 := m[8]*m[15] - m[12]*m[11]
	c1 := m[8]*m[14] - m[12]*m[10]
	c0 := m[8]*m[13] - m[12]*m[9]

	det := s0*c5 - s1*c4 + s2*c3 + s3*c2 - s4*c1 + s5*c0
	if det == 0 {
		return Identity(), false
	}
	inv := 1.0 / det

	return Mat4{
		(m[5]*c5 - m[6]*c4 + m[7]*c3) * inv,
		(-m[1]*c5 + m[2]*c4 - m[3]*c3) * inv,
		(m[13]*s5 - m[14]*s4 + m[15]*s3) * inv,
		(-m[9]*s5 + m[10]*s4 - m[11]*s3) * inv,

		(-m[4]*c5 + m[6]*c2 - m[7]*c1) * inv,
		(m[0]*c5 - m[2]*c2 + m[3]*c1) * inv,
		(-m[12]*s5 + m[14]*s2 - m[15]*s1) * inv,
		(m[8]*s5 - m[10]*s2 + m[11]*s1) * inv,

		(m[4]*c4 - m[5]*c2 + m[7]*c0) * inv,
		(-m[0]*c4 + m[1]*c2 - m[3]*c0) * inv,
		(m[12]*s4 - m[13]*s2 + m[15]*s0) * inv,
		(-m[8]*s4 + m[9]*s2 - m[11]*s0) * inv,

		(-m[4]*c3 + m[5]*c1 - m[6]*c0) * inv,
		(m[0]*c3 - m[1]*c1 + m[2]*c0) * inv,
		(-m[12]*s3 + m[13]*s1 - m[14]*s0) * inv,
		(m[8]*s3 - m[9]*s1 + m[10]*s0) * inv,
	}, true
}

// ComposeTRS builds a local transform: the rotation matrix is computed first, every column
// then has its x, y and z rows multiplied by the matching scale component, and finally the
// translation is written into the last column.
//
// Parameters:
//   - position: translation
//   - rotation: rotation quaternion
//   - scale: per-axis scale
//
// Returns:
//   - Mat4: the composed column-major transform
func ComposeTRS(position Vec3, rotation Quat, scale Vec3) Mat4 {
	t := rotation.Mat4()
	for c := 0; c < 3; c++ {
		t[c*4+0] *= scale[0]
		t[c*4+1] *= scale[1]
		t[c*4+2] *= scale[2]
	}
	t[12], t[13], t[14] = position[0], position[1], position[2]
	return t
}

// DecomposeTRS is the inverse of ComposeTRS for matrices without shear or negative scale.
//
// Returns:
//   - position, rotation, scale: the recovered components
func DecomposeTRS(m Mat4) (Vec3, Quat, Vec3) {
	position := m.GetTranslation()

	// ComposeTRS scales rows of the rotation block, and rotation rows are unit length.
	var scale Vec3
	for r := 0; r < 3; r++ {
		row := Vec3{m[r], m[4+r], m[8+r]}
		scale[r] = row.Length()
	}

	rot := Identity()
	for c := 0; c < 3; c++ {
		for r := 0; r < 3; r++ {
			if scale[r] != 0 {
				rot[c*4+r] = m[c*4+r] / scale[r]
			}
		}
	}
	return position, QuatFromMat4(rot), scale
}

// Perspective creates a perspective projection matrix for clip space depth in [0, 1].
//
// Parameters:
//   - fovY: vertical field of view in radians
//   - aspect: viewport aspect ratio (width/height)
//   - near: near clipping plane distance (must be > 0)
//   - far: far clipping plane distance (must be > near)
//
// Returns:
//   - Mat4: the projection matrix
func Perspective(fovY, aspect, near, far float32) Mat4 {
	f := 1.0 / math32.Tan(fovY/2.0)
	out := Identity()

	out[0] = f / aspect
	out[5] = f
	out[10] = far / (near - far)
	out[11] = -1.0
	out[14] = (near * far) / (near - far)
	out[15] = 0.0
	return out
}

// Orthographic creates an orthographic projection matrix for clip space depth in [0, 1].
func Orthographic(left, right, bottom, top, near, far float32) Mat4 {
	out := Identity()
	out[0] = 2 / (right - left)
	out[5] = 2 / (top - bottom)
	out[10] = 1 / (near - far)
	out[12] = -(right + left) / (right - left)
	out[13] = -(top + bottom) / (top - bottom)
	out[14] = near / (near - far)
	return out
}

// LookAt creates a view matrix that transforms world coordinates to view space.
//
// Parameters:
//   - eye: camera position in world space
//   - center: target point the camera looks at
//   - up: up vector defining camera orientation (typically 0,1,0)
//
// Returns:
//   - Mat4: the view matrix
func LookAt(eye, center, up Vec3) Mat4 {
	z := eye.Sub(center)
	if z.LengthSquared() == 0 {
		z = Vec3{0, 0, 1}
	}
	z = z.Normalize()

	x := up.Cross(z)
	if x.LengthSquared() == 0 {
		x = Vec3{1, 0, 0}
	}
	x = x.Normalize()
	y := z.Cross(x)

	var out Mat4
	out[0], out[4], out[8], out[12] = x[0], x[1], x[2], -x.Dot(eye)
	out[1], out[5], out[9], out[13] = y[0], y[1], y[2], -y.Dot(eye)
	out[2], out[6], out[10], out[14] = z[0], z[1], z[2], -z.Dot(eye)
	out[3], out[7], out[11], out[15] = 0, 0, 0, 1
	return out
}
