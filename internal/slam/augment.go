package slam

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/asgard/huginn/internal/ekfmath"
	"github.com/asgard/huginn/internal/slamstate"
)

// augment grows the state with a newly discovered landmark. It reads
// the pose block under its own lock and then calls
// state.Grow, which takes the write lock separately — it does not run
// inside an already-held Mutate, since Grow is not reentrant.
//
// It uses the dx/dy/dtheta/deltaT of the most recently applied Predict
// call for the Jz/Φ_xy construction — this coupling to the last
// odometry interval is retained deliberately, not a bug to fix.
func (e *Engine) augment(theta float64, n int, meas canonicalMeasurement) error {
	const op = "Augment"

	e.mu.Lock()
	dx, dy, dtheta, deltaT := e.lastDX, e.lastDY, e.lastDTheta, e.lastDeltaT
	e.mu.Unlock()

	angle := theta + dtheta

	phiXY := mat.NewDense(2, 3, []float64{
		1, 0, -dy,
		0, 1, dx,
	})

	var jz *mat.Dense
	if e.cfg.NoBearing {
		jz = mat.NewDense(2, 1, []float64{
			math.Cos(angle),
			math.Sin(angle),
		})
	} else {
		jz = mat.NewDense(2, 2, []float64{
			math.Cos(angle), -deltaT * math.Sin(angle),
			math.Sin(angle), deltaT * math.Cos(angle),
		})
	}
	r := e.measurementNoiseMatrix2(meas.r)

	poseBlock, err := e.state.PoseBlock()
	if err != nil {
		return err
	}
	phiXYT := ekfmath.Transpose(phiXY)

	pPhiT, err := ekfmath.Mul(op, poseBlock, phiXYT)
	if err != nil {
		return err
	}
	cPose, err := ekfmath.Mul(op, phiXY, pPhiT)
	if err != nil {
		return err
	}
	jzR, err := ekfmath.Mul(op, jz, r)
	if err != nil {
		return err
	}
	jzRJzT, err := ekfmath.Mul(op, jzR, ekfmath.Transpose(jz))
	if err != nil {
		return err
	}
	c, err := ekfmath.Add(op, cPose, jzRJzT)
	if err != nil {
		return err
	}

	g := mat.NewDense(n, 2, nil)
	if err := ekfmath.SetBlock(op, g, 0, 0, pPhiT); err != nil {
		return err
	}

	entry := slamstate.LandmarkInfo{
		Radius:    meas.r,
		LineAngle: meas.worldAngle,
		AnchorX:   meas.anchorX,
		AnchorY:   meas.anchorY,
	}
	return e.state.Grow([2]float64{meas.mx, meas.my}, g, c, entry)
}

// measurementNoiseMatrix2 builds R for the augmentation step: the scalar
// [vr*r] in no_bearing mode (paired with the 2x1 Jz above, so the new
// landmark's covariance picks up only range noise), or the full 2x2
// diag(vr*r, vb*r) otherwise.
func (e *Engine) measurementNoiseMatrix2(r float64) *mat.Dense {
	vr, vb := e.measurementNoise(r)
	if e.cfg.NoBearing {
		return mat.NewDense(1, 1, []float64{vr})
	}
	return mat.NewDense(2, 2, []float64{
		vr, 0,
		0, vb,
	})
}
