package slam

import (
	"gonum.org/v1/gonum/mat"

	"github.com/asgard/huginn/internal/ekfmath"
	"github.com/asgard/huginn/internal/errs"
)

// Predict applies the motion update for world-frame increments (dx,
// dy, dtheta), already scaled by the inter-event time delta by the
// coordinator. deltaT is the wall-clock delta itself, remembered for
// use by a subsequent augmentation's Jz (scaled by Δt).
func (e *Engine) Predict(dx, dy, dtheta, deltaT float64) error {
	const op = "Predict"
	if err := requireReadyOp(e.state, op); err != nil {
		return err
	}

	err := e.state.Mutate(func(x *mat.VecDense, p *mat.Dense) error {
		n := x.Len()

		newX0 := x.AtVec(0) + dx
		newY0 := x.AtVec(1) + dy
		newTheta := ekfmath.Wrap(x.AtVec(2) + dtheta)

		phi := mat.NewDense(3, 3, []float64{
			1, 0, -dy,
			0, 1, dx,
			0, 0, 1,
		})

		poseBlock, err := ekfmath.Block(op, p, 0, 3, 0, 3)
		if err != nil {
			return err
		}
		phiP, err := ekfmath.Mul(op, phi, poseBlock)
		if err != nil {
			return err
		}
		phiPphiT, err := ekfmath.Mul(op, phiP, ekfmath.Transpose(phi))
		if err != nil {
			return err
		}

		w := mat.NewDense(3, 1, []float64{dx, dy, dtheta})
		cw := ekfmath.ScalarMul(e.cfg.ProcessC, w)
		q, err := ekfmath.Mul(op, cw, ekfmath.Transpose(w))
		if err != nil {
			return err
		}

		newPoseBlock, err := ekfmath.Add(op, phiPphiT, q)
		if err != nil {
			return err
		}

		var newCross, newCrossT *mat.Dense
		if n > 3 {
			crossBlock, err := ekfmath.Block(op, p, 0, 3, 3, n)
			if err != nil {
				return err
			}
			newCross, err = ekfmath.Mul(op, phi, crossBlock)
			if err != nil {
				return err
			}
			newCrossT = ekfmath.Transpose(newCross)
		}

		if !ekfmath.DenseFinite(newPoseBlock) || (newCross != nil && !ekfmath.DenseFinite(newCross)) {
			return errs.New(op, errs.KindNumeric)
		}

		x.SetVec(0, newX0)
		x.SetVec(1, newY0)
		x.SetVec(2, newTheta)
		if err := ekfmath.SetBlock(op, p, 0, 0, newPoseBlock); err != nil {
			return err
		}
		if newCross != nil {
			if err := ekfmath.SetBlock(op, p, 0, 3, newCross); err != nil {
				return err
			}
			if err := ekfmath.SetBlock(op, p, 3, 0, newCrossT); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.lastDX, e.lastDY, e.lastDTheta, e.lastDeltaT = dx, dy, dtheta, deltaT
	e.mu.Unlock()

	e.recorder.PredictionObserved()
	return nil
}
