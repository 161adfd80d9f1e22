// Package ekfmath provides the dense small-matrix linear algebra the EKF
// engine needs: multiply, transpose, inverse, block read/write into a
// growing matrix, stacking, and angle wrapping. It wraps
// gonum.org/v1/gonum/mat rather than hand-rolling the numerics. Unlike a
// fixed-size filter, the matrices here grow as landmarks are discovered,
// so callers rebuild a fresh *mat.Dense on structural change instead of
// relying on mat.SymDense's fixed allocation.
package ekfmath

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/asgard/huginn/internal/errs"
)

const twoPi = 2 * math.Pi

// Wrap returns a shifted by a multiple of 2π so the result lies in
// (-π, π].
func Wrap(a float64) float64 {
	for a > math.Pi {
		a -= twoPi
	}
	for a <= -math.Pi {
		a += twoPi
	}
	return a
}

// Mul multiplies a*b, reporting a Dimension error on shape mismatch.
func Mul(op string, a, b mat.Matrix) (*mat.Dense, error) {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ac != br {
		return nil, errs.New(op, errs.KindDimension)
	}
	out := mat.NewDense(ar, bc, nil)
	out.Mul(a, b)
	return out, nil
}

// Transpose returns aᵀ as a fresh *mat.Dense.
func Transpose(a mat.Matrix) *mat.Dense {
	r, c := a.Dims()
	out := mat.NewDense(c, r, nil)
	out.Copy(a.T())
	return out
}

// ScalarMul returns c*a.
func ScalarMul(c float64, a mat.Matrix) *mat.Dense {
	r, cols := a.Dims()
	out := mat.NewDense(r, cols, nil)
	out.Scale(c, a)
	return out
}

// Add returns a+b, reporting Dimension on mismatched shapes.
func Add(op string, a, b mat.Matrix) (*mat.Dense, error) {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ar != br || ac != bc {
		return nil, errs.New(op, errs.KindDimension)
	}
	out := mat.NewDense(ar, ac, nil)
	out.Add(a, b)
	return out, nil
}

// Sub returns a-b, reporting Dimension on mismatched shapes.
func Sub(op string, a, b mat.Matrix) (*mat.Dense, error) {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ar != br || ac != bc {
		return nil, errs.New(op, errs.KindDimension)
	}
	out := mat.NewDense(ar, ac, nil)
	out.Sub(a, b)
	return out, nil
}

// Inverse2 inverts a 2x2 matrix in closed form, reporting Numeric on a
// singular (|det| below eps) matrix.
func Inverse2(op string, a *mat.Dense) (*mat.Dense, error) {
	r, c := a.Dims()
	if r != 2 || c != 2 {
		return nil, errs.New(op, errs.KindDimension)
	}
	m00, m01 := a.At(0, 0), a.At(0, 1)
	m10, m11 := a.At(1, 0), a.At(1, 1)
	det := m00*m11 - m01*m10
	if !isFinite(det) || math.Abs(det) < 1e-12 {
		return nil, errs.New(op, errs.KindNumeric)
	}
	inv := 1.0 / det
	out := mat.NewDense(2, 2, []float64{
		m11 * inv, -m01 * inv,
		-m10 * inv, m00 * inv,
	})
	return out, nil
}

// Inverse3 inverts a 3x3 matrix via gonum's general inverse, reporting
// Numeric on a singular matrix or non-finite result.
func Inverse3(op string, a *mat.Dense) (*mat.Dense, error) {
	r, c := a.Dims()
	if r != 3 || c != 3 {
		return nil, errs.New(op, errs.KindDimension)
	}
	var out mat.Dense
	if err := out.Inverse(a); err != nil {
		return nil, errs.Wrap(op, errs.KindNumeric, err)
	}
	if !denseFinite(&out) {
		return nil, errs.New(op, errs.KindNumeric)
	}
	return &out, nil
}

// VStack stacks a above b (same column count).
func VStack(op string, a, b mat.Matrix) (*mat.Dense, error) {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ac != bc {
		return nil, errs.New(op, errs.KindDimension)
	}
	out := mat.NewDense(ar+br, ac, nil)
	out.Slice(0, ar, 0, ac).(*mat.Dense).Copy(a)
	out.Slice(ar, ar+br, 0, ac).(*mat.Dense).Copy(b)
	return out, nil
}

// HStack stacks a to the left of b (same row count).
func HStack(op string, a, b mat.Matrix) (*mat.Dense, error) {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ar != br {
		return nil, errs.New(op, errs.KindDimension)
	}
	out := mat.NewDense(ar, ac+bc, nil)
	out.Slice(0, ar, 0, ac).(*mat.Dense).Copy(a)
	out.Slice(0, ar, ac, ac+bc).(*mat.Dense).Copy(b)
	return out, nil
}

// Block returns a copy of m[r0:r1, c0:c1].
func Block(op string, m *mat.Dense, r0, r1, c0, c1 int) (*mat.Dense, error) {
	rows, cols := m.Dims()
	if r0 < 0 || c0 < 0 || r1 > rows || c1 > cols || r0 >= r1 || c0 >= c1 {
		return nil, errs.New(op, errs.KindDimension)
	}
	out := mat.NewDense(r1-r0, c1-c0, nil)
	out.Copy(m.Slice(r0, r1, c0, c1))
	return out, nil
}

// SetBlock writes sub into m starting at (r0, c0).
func SetBlock(op string, m *mat.Dense, r0, c0 int, sub mat.Matrix) error {
	rows, cols := m.Dims()
	sr, sc := sub.Dims()
	if r0 < 0 || c0 < 0 || r0+sr > rows || c0+sc > cols {
		return errs.New(op, errs.KindDimension)
	}
	m.Slice(r0, r0+sr, c0, c0+sc).(*mat.Dense).Copy(sub)
	return nil
}

// Symmetrize returns (m + mᵀ)/2, used periodically to counter
// numerical drift.
func Symmetrize(m *mat.Dense) *mat.Dense {
	r, _ := m.Dims()
	t := Transpose(m)
	sum := mat.NewDense(r, r, nil)
	sum.Add(m, t)
	sum.Scale(0.5, sum)
	return sum
}

// FrobeniusAsymmetry measures how far m is from symmetric.
func FrobeniusAsymmetry(m *mat.Dense) float64 {
	t := Transpose(m)
	var diff mat.Dense
	diff.Sub(m, t)
	return mat.Norm(&diff, 2)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func denseFinite(m *mat.Dense) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if !isFinite(m.At(i, j)) {
				return false
			}
		}
	}
	return true
}

// DenseFinite reports whether every entry of m is finite; exported for
// callers (slamstate, slam) that must roll back a mutation producing a
// non-finite value.
func DenseFinite(m *mat.Dense) bool {
	return denseFinite(m)
}

// VecFinite reports whether every entry of v is finite.
func VecFinite(v *mat.VecDense) bool {
	for i := 0; i < v.Len(); i++ {
		if !isFinite(v.AtVec(i)) {
			return false
		}
	}
	return true
}
