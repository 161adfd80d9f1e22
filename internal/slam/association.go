package slam

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// associationResult carries the outcome of the nearest-canonical-distance
// search: which existing landmark (if any) the
// observation should be matched to, plus the canonical measurement so
// callers do not recompute it.
type associationResult struct {
	matched bool
	index   int // valid iff matched
	meas    canonicalMeasurement
}

// associate scores every existing landmark by the Euclidean distance
// between the canonical measurement and the predicted landmark position,
// and returns the argmin. Ties resolve to the lowest index (guaranteed by
// scanning ascending and only replacing on strict improvement). H and S
// are NOT built here — the winner's S can
// be reused during correction, but since the association score itself
// does not depend on H/S, building them only for the eventual winner (in
// correct, via jacobianRows) is behaviorally identical and avoids wasted
// work (and spurious Numeric failures) on landmarks that are never
// selected.
func (e *Engine) associate(x *mat.VecDense, obs LandmarkObservation) associationResult {
	n := x.Len()
	l := (n - 3) / 2
	xr, yr, theta := x.AtVec(0), x.AtVec(1), x.AtVec(2)
	meas := canonicalize(xr, yr, theta, obs)

	best := -1
	bestDist := math.Inf(1)
	for i := 0; i < l; i++ {
		px, py := x.AtVec(3+2*i), x.AtVec(4+2*i)
		dist := 0.5 * math.Hypot(meas.mx-px, meas.my-py)
		if dist < bestDist {
			bestDist = dist
			best = i
		}
	}

	if best != -1 {
		e.recorder.AssociationDistanceObserved(bestDist)
	}

	if best == -1 || bestDist >= e.cfg.ThresholdRT {
		return associationResult{matched: false, meas: meas}
	}
	return associationResult{matched: true, index: best, meas: meas}
}

// jacobianRows builds the observation-model rows of H for landmark i
// against pose (xr, yr) and predicted landmark position (px, py, rp),
// over a state of dimension n. One row if NoBearing, two otherwise.
func (e *Engine) jacobianRows(n, i int, xr, yr, px, py, rp float64) [][]float64 {
	row0 := make([]float64, n)
	row0[0] = (xr - px) / rp
	row0[1] = (yr - py) / rp
	row0[3+2*i] = -row0[0]
	row0[4+2*i] = -row0[1]
	rows := [][]float64{row0}

	if !e.cfg.NoBearing {
		row1 := make([]float64, n)
		rp2 := rp * rp
		row1[0] = (py - yr) / rp2
		row1[1] = (px - xr) / rp2
		row1[2] = -1
		row1[3+2*i] = -row1[0]
		row1[4+2*i] = -row1[1]
		rows = append(rows, row1)
	}
	return rows
}

func rowsToDense(rows [][]float64) *mat.Dense {
	r := len(rows)
	c := len(rows[0])
	out := mat.NewDense(r, c, nil)
	for i, row := range rows {
		for j, v := range row {
			out.Set(i, j, v)
		}
	}
	return out
}

// measurementNoiseMatrix builds R for range r: 2x2 diag(vr*r, vb*r), or
// the 1x1 [vr*r] in no_bearing mode.
func (e *Engine) measurementNoiseMatrix(r float64) *mat.Dense {
	vr, vb := e.measurementNoise(r)
	if e.cfg.NoBearing {
		return mat.NewDense(1, 1, []float64{vr})
	}
	return mat.NewDense(2, 2, []float64{
		vr, 0,
		0, vb,
	})
}
