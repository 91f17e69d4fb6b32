package rotation

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// rankEpsilon is the relative singular value below which a vector set is
// treated as collinear.
const rankEpsilon = 1e-9

// ShortestArc returns the minimal rotation taking the direction of from onto
// the direction of to. Zero-length inputs yield Identity.
func ShortestArc(from, to r3.Vec) quat.Number {
	if r3.Norm(from) == 0 || r3.Norm(to) == 0 {
		return Identity
	}
	a, b := r3.Unit(from), r3.Unit(to)
	d := r3.Dot(a, b)
	if d < -1+1e-12 {
		// Opposite directions: half turn about any axis orthogonal to a.
		axis := r3.Cross(a, r3.Vec{X: 1})
		if r3.Norm(axis) < 1e-6 {
			axis = r3.Cross(a, r3.Vec{Y: 1})
		}
		axis = r3.Unit(axis)
		return quat.Number{Imag: axis.X, Jmag: axis.Y, Kmag: axis.Z}
	}
	c := r3.Cross(a, b)
	return Canonical(quat.Number{Real: 1 + d, Imag: c.X, Jmag: c.Y, Kmag: c.Z})
}

// Align returns the rotation R minimizing sum |R*from[i] - to[i]|^2 over all
// pairs (Kabsch). When the pairs do not span a plane the fit is
// underdetermined and the shortest arc between the first pair is returned.
func Align(from, to []r3.Vec) quat.Number {
	n := len(from)
	if len(to) < n {
		n = len(to)
	}
	if n == 0 {
		return Identity
	}
	if n == 1 {
		return ShortestArc(from[0], to[0])
	}

	h := mat.NewDense(3, 3, nil)
	for i := 0; i < n; i++ {
		p := [3]float64{from[i].X, from[i].Y, from[i].Z}
		q := [3]float64{to[i].X, to[i].Y, to[i].Z}
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				h.Set(r, c, h.At(r, c)+p[r]*q[c])
			}
		}
	}

	var svd mat.SVD
	if !svd.Factorize(h, mat.SVDFull) {
		return ShortestArc(from[0], to[0])
	}
	values := svd.Values(nil)
	if values[0] == 0 {
		return Identity
	}
	if values[1] <= rankEpsilon*values[0] {
		return ShortestArc(from[0], to[0])
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var vut mat.Dense
	vut.Mul(&v, u.T())
	d := 1.0
	if mat.Det(&vut) < 0 {
		d = -1
	}
	correction := mat.NewDiagDense(3, []float64{1, 1, d})

	var vd, r mat.Dense
	vd.Mul(&v, correction)
	r.Mul(&vd, u.T())

	var m [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m[i][j] = r.At(i, j)
		}
	}
	return FromMatrix(m)
}

// AngleBetween returns the angle in radians of the rotation taking a to b.
func AngleBetween(a, b quat.Number) float64 {
	rel := quat.Mul(b, quat.Conj(a))
	return Angle(rel)
}

// NearlyEqual reports whether two rotations differ by less than tol radians.
func NearlyEqual(a, b quat.Number, tol float64) bool {
	return math.Abs(AngleBetween(Normalize(a), Normalize(b))) < tol
}
