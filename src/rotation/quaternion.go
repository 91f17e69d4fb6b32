// Package rotation holds the quaternion arithmetic shared by the BVH codec
// and the kinematics code. Quaternions are gonum quat.Number values; the
// real part is the scalar (w) component.
package rotation

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

const gimbalEpsilon = 1e-9

// Identity is the rotation that leaves every vector unchanged.
var Identity = quat.Number{Real: 1}

// Identities returns n identity rotations.
func Identities(n int) []quat.Number {
	out := make([]quat.Number, n)
	for i := range out {
		out[i] = Identity
	}
	return out
}

// FromXYZW builds a quaternion from a scalar-last row.
func FromXYZW(row []float64) quat.Number {
	return quat.Number{Imag: row[0], Jmag: row[1], Kmag: row[2], Real: row[3]}
}

// ToXYZW returns q as a scalar-last row.
func ToXYZW(q quat.Number) [4]float64 {
	return [4]float64{q.Imag, q.Jmag, q.Kmag, q.Real}
}

// Normalize scales q to unit length. A zero quaternion becomes Identity.
func Normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 {
		return Identity
	}
	return quat.Scale(1/n, q)
}

// Canonical returns the unit quaternion of q with a non-negative scalar part.
func Canonical(q quat.Number) quat.Number {
	q = Normalize(q)
	if q.Real < 0 {
		return quat.Scale(-1, q)
	}
	return q
}

// Mul composes a then b: the result applies b first, then a.
func Mul(a, b quat.Number) quat.Number {
	return quat.Mul(a, b)
}

// Inverse returns the inverse of a unit quaternion.
func Inverse(q quat.Number) quat.Number {
	return quat.Conj(q)
}

// Rotate applies the unit quaternion q to v.
func Rotate(q quat.Number, v r3.Vec) r3.Vec {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vec{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// AboutAxis returns the rotation of angle radians about a coordinate axis.
func AboutAxis(axis Axis, angle float64) quat.Number {
	s, c := math.Sincos(angle / 2)
	q := quat.Number{Real: c}
	switch axis {
	case AxisX:
		q.Imag = s
	case AxisY:
		q.Jmag = s
	case AxisZ:
		q.Kmag = s
	}
	return q
}

// FromEuler composes three angles in degrees as intrinsic rotations in the
// given order. The result has a non-negative scalar part.
func FromEuler(order Order, degrees [3]float64) quat.Number {
	axes := order.Axes()
	q := Identity
	for i, axis := range axes {
		q = quat.Mul(q, AboutAxis(axis, degrees[i]*math.Pi/180))
	}
	return Canonical(q)
}

// Angle returns the rotation angle of q in radians, in [0, pi].
func Angle(q quat.Number) float64 {
	q = Canonical(q)
	v := math.Sqrt(q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
	return 2 * math.Atan2(v, q.Real)
}

// Matrix returns the 3x3 rotation matrix of a unit quaternion, row major.
func Matrix(q quat.Number) [3][3]float64 {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return [3][3]float64{
		{1 - 2*(y*y+z*z), 2 * (x*y - z*w), 2 * (x*z + y*w)},
		{2 * (x*y + z*w), 1 - 2*(x*x+z*z), 2 * (y*z - x*w)},
		{2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(x*x+y*y)},
	}
}

// FromMatrix converts a proper rotation matrix into a canonical quaternion.
func FromMatrix(m [3][3]float64) quat.Number {
	var q quat.Number
	tr := m[0][0] + m[1][1] + m[2][2]
	switch {
	case tr > 0:
		s := math.Sqrt(tr+1) * 2
		q = quat.Number{Real: s / 4, Imag: (m[2][1] - m[1][2]) / s, Jmag: (m[0][2] - m[2][0]) / s, Kmag: (m[1][0] - m[0][1]) / s}
	case m[0][0] > m[1][1] && m[0][0] > m[2][2]:
		s := math.Sqrt(1+m[0][0]-m[1][1]-m[2][2]) * 2
		q = quat.Number{Real: (m[2][1] - m[1][2]) / s, Imag: s / 4, Jmag: (m[0][1] + m[1][0]) / s, Kmag: (m[0][2] + m[2][0]) / s}
	case m[1][1] > m[2][2]:
		s := math.Sqrt(1+m[1][1]-m[0][0]-m[2][2]) * 2
		q = quat.Number{Real: (m[0][2] - m[2][0]) / s, Imag: (m[0][1] + m[1][0]) / s, Jmag: s / 4, Kmag: (m[1][2] + m[2][1]) / s}
	default:
		s := math.Sqrt(1+m[2][2]-m[0][0]-m[1][1]) * 2
		q = quat.Number{Real: (m[1][0] - m[0][1]) / s, Imag: (m[0][2] + m[2][0]) / s, Jmag: (m[1][2] + m[2][1]) / s, Kmag: s / 4}
	}
	return Canonical(q)
}

// ToEuler decomposes q into three intrinsic angles in degrees for the given
// order, such that FromEuler(order, ToEuler(q, order)) equals q up to sign.
// At gimbal lock the third angle is set to zero.
func ToEuler(q quat.Number, order Order) [3]float64 {
	m := Matrix(Normalize(q))
	axes := order.Axes()
	i, j, k := int(axes[0]), int(axes[1]), int(axes[2])
	s := 1.0
	if !order.cyclic() {
		s = -1
	}

	cosB := math.Hypot(m[i][i], m[i][j])
	b := math.Atan2(s*m[i][k], cosB)
	var a, c float64
	if cosB > gimbalEpsilon {
		a = math.Atan2(-s*m[j][k], m[k][k])
		c = math.Atan2(-s*m[i][j], m[i][i])
	} else {
		a = math.Atan2(s*m[k][j], m[j][j])
	}

	const toDeg = 180 / math.Pi
	return [3]float64{a * toDeg, b * toDeg, c * toDeg}
}
