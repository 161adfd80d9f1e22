package slam

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/asgard/huginn/internal/ekfmath"
	"github.com/asgard/huginn/internal/errs"
)

// correct applies the matched-landmark Kalman update for landmark idx
// against the canonical measurement meas. It runs with
// x and p live under the caller's state.Mutate lock.
func (e *Engine) correct(x *mat.VecDense, p *mat.Dense, idx int, meas canonicalMeasurement) (ObservationOutcome, error) {
	const op = "Correct"

	n := x.Len()
	xr, yr, theta := x.AtVec(0), x.AtVec(1), x.AtVec(2)
	px, py := x.AtVec(3+2*idx), x.AtVec(4+2*idx)

	rp := math.Hypot(px-xr, py-yr)
	if rp == 0 {
		return OutcomeSkippedDegenerate, nil
	}
	bp := math.Atan2(py-yr, px-xr) - theta

	h := rowsToDense(e.jacobianRows(n, idx, xr, yr, px, py, rp))
	r := e.measurementNoiseMatrix(meas.r)

	hp, err := ekfmath.Mul(op, h, p)
	if err != nil {
		return "", err
	}
	hpht, err := ekfmath.Mul(op, hp, ekfmath.Transpose(h))
	if err != nil {
		return "", err
	}
	s, err := ekfmath.Add(op, hpht, r)
	if err != nil {
		return "", err
	}

	var sInv *mat.Dense
	if e.cfg.NoBearing {
		sv := s.At(0, 0)
		if math.Abs(sv) < 1e-12 {
			return "", errs.New(op, errs.KindNumeric)
		}
		sInv = mat.NewDense(1, 1, []float64{1 / sv})
	} else {
		sInv, err = ekfmath.Inverse2(op, s)
		if err != nil {
			return "", err
		}
	}

	// P is symmetric, so (H·P)ᵀ = Pᵀ·Hᵀ = P·Hᵀ — reuse hp rather than
	// recomputing P·Hᵀ from scratch.
	pht := ekfmath.Transpose(hp)
	k, err := ekfmath.Mul(op, pht, sInv)
	if err != nil {
		return "", err
	}

	var y *mat.Dense
	if e.cfg.NoBearing {
		y = mat.NewDense(1, 1, []float64{meas.r - rp})
	} else {
		y = mat.NewDense(2, 1, []float64{meas.r - rp, ekfmath.Wrap(meas.bearing - bp)})
	}

	dx, err := ekfmath.Mul(op, k, y)
	if err != nil {
		return "", err
	}
	kHp, err := ekfmath.Mul(op, k, hp)
	if err != nil {
		return "", err
	}
	newP, err := ekfmath.Sub(op, p, kHp)
	if err != nil {
		return "", err
	}

	if !ekfmath.DenseFinite(dx) || !ekfmath.DenseFinite(newP) {
		return "", errs.New(op, errs.KindNumeric)
	}

	for i := 0; i < n; i++ {
		x.SetVec(i, x.AtVec(i)+dx.At(i, 0))
	}
	x.SetVec(2, ekfmath.Wrap(x.AtVec(2)))
	if err := ekfmath.SetBlock(op, p, 0, 0, newP); err != nil {
		return "", err
	}

	return OutcomeMatched, nil
}
