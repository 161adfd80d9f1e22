// Package slamstate owns the augmented state vector x and covariance P,
// and the parallel landmark registry, exposing block accessors and the
// grow operation that appends a newly discovered landmark. State is
// mutex-guarded, with locked read accessors that return copies; unlike
// a fixed-size filter, x and P here grow by two rows/columns per
// discovered landmark.
package slamstate

import (
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/asgard/huginn/internal/ekfmath"
	"github.com/asgard/huginn/internal/errs"
)

// LandmarkInfo is the per-landmark record retained for visualization;
// the estimator itself only consumes columns of x and P.
type LandmarkInfo struct {
	Radius    float64
	LineAngle float64 // world frame
	AnchorX   float64
	AnchorY   float64
}

// State owns x, P, and the landmark registry.
type State struct {
	mu        sync.RWMutex
	x         *mat.VecDense
	p         *mat.Dense
	landmarks []LandmarkInfo
	ready     bool
}

// New returns an uninitialized state store.
func New() *State {
	return &State{}
}

// Init seeds the pose and sets P to diag(0.1, 0.1, π/4). x is undefined
// until the first odometry event carrying an absolute pose.
func (s *State) Init(x0, y0, theta0 float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.x = mat.NewVecDense(3, []float64{x0, y0, ekfmath.Wrap(theta0)})
	s.p = mat.NewDense(3, 3, []float64{
		0.1, 0, 0,
		0, 0.1, 0,
		0, 0, pi4,
	})
	s.landmarks = nil
	s.ready = true
}

const pi4 = 0.7853981633974483 // π/4

// Ready reports whether Init has been called.
func (s *State) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// requireReady must be called with s.mu held (read or write).
func (s *State) requireReady(op string) error {
	if !s.ready {
		return errs.New(op, errs.KindUninitialized)
	}
	return nil
}

// Dim returns len(x) == 3+2L.
func (s *State) Dim() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready {
		return 0
	}
	return s.x.Len()
}

// Count returns L, the number of discovered landmarks.
func (s *State) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.landmarks)
}

// Pose returns (x, y, θ).
func (s *State) Pose() (float64, float64, float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.requireReady("Pose"); err != nil {
		return 0, 0, 0, err
	}
	return s.x.AtVec(0), s.x.AtVec(1), s.x.AtVec(2), nil
}

// SetPose overwrites the pose block of x.
func (s *State) SetPose(x, y, theta float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireReady("SetPose"); err != nil {
		return err
	}
	s.x.SetVec(0, x)
	s.x.SetVec(1, y)
	s.x.SetVec(2, ekfmath.Wrap(theta))
	return nil
}

// Landmark returns the world-frame position of landmark i.
func (s *State) Landmark(i int) (float64, float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.requireReady("Landmark"); err != nil {
		return 0, 0, err
	}
	if i < 0 || i >= len(s.landmarks) {
		return 0, 0, errs.New("Landmark", errs.KindDimension)
	}
	return s.x.AtVec(3 + 2*i), s.x.AtVec(4 + 2*i), nil
}

// LandmarkInfo returns the registry entry for landmark i.
func (s *State) LandmarkInfo(i int) (LandmarkInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.landmarks) {
		return LandmarkInfo{}, errs.New("LandmarkInfo", errs.KindDimension)
	}
	return s.landmarks[i], nil
}

// X returns a copy of the full state vector.
func (s *State) X() (*mat.VecDense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.requireReady("X"); err != nil {
		return nil, err
	}
	out := mat.NewVecDense(s.x.Len(), nil)
	out.CopyVec(s.x)
	return out, nil
}

// P returns a copy of the full covariance matrix.
func (s *State) P() (*mat.Dense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.requireReady("P"); err != nil {
		return nil, err
	}
	out := mat.DenseCopyOf(s.p)
	return out, nil
}

// PoseBlock returns a copy of P[0:3, 0:3].
func (s *State) PoseBlock() (*mat.Dense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.requireReady("PoseBlock"); err != nil {
		return nil, err
	}
	return ekfmath.Block("PoseBlock", s.p, 0, 3, 0, 3)
}

// CrossBlock returns a copy of P[0:3, 3+2i:5+2i].
func (s *State) CrossBlock(i int) (*mat.Dense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.requireReady("CrossBlock"); err != nil {
		return nil, err
	}
	c0 := 3 + 2*i
	return ekfmath.Block("CrossBlock", s.p, 0, 3, c0, c0+2)
}

// Landmarks returns a copy of the landmark registry.
func (s *State) Landmarks() []LandmarkInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]LandmarkInfo, len(s.landmarks))
	copy(out, s.landmarks)
	return out
}

// Mutate runs fn with exclusive access to x and P, passing live
// (non-copied) references so the EKF engine can update them in place.
// fn must leave x and P internally consistent (len(x)==3+2L,
// P square of the same dimension) before returning; Mutate panics in
// debug builds is deliberately NOT done here — callers are trusted
// internal code (internal/slam): Dimension mismatches are treated as
// a programmer error.
func (s *State) Mutate(fn func(x *mat.VecDense, p *mat.Dense) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireReady("Mutate"); err != nil {
		return err
	}
	return fn(s.x, s.p)
}

// View runs fn with a read lock held, passing live references. fn must
// not mutate x or p.
func (s *State) View(fn func(x *mat.VecDense, p *mat.Dense) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.requireReady("View"); err != nil {
		return err
	}
	return fn(s.x, s.p)
}

// Grow appends newMean (length 2) to x and extends P to
// [[P, G], [Gᵀ, C]], then appends entry to the landmark registry.
// G must have height len(x) (before growth) and 2 columns; C must be
// 2x2.
func (s *State) Grow(newMean [2]float64, g, c *mat.Dense, entry LandmarkInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireReady("Grow"); err != nil {
		return err
	}

	n := s.x.Len()
	gr, gc := g.Dims()
	cr, cc := c.Dims()
	if gr != n || gc != 2 || cr != 2 || cc != 2 {
		return errs.New("Grow", errs.KindDimension)
	}

	newX := mat.NewVecDense(n+2, nil)
	for i := 0; i < n; i++ {
		newX.SetVec(i, s.x.AtVec(i))
	}
	newX.SetVec(n, newMean[0])
	newX.SetVec(n+1, newMean[1])

	newP := mat.NewDense(n+2, n+2, nil)
	if err := ekfmath.SetBlock("Grow", newP, 0, 0, s.p); err != nil {
		return err
	}
	if err := ekfmath.SetBlock("Grow", newP, 0, n, g); err != nil {
		return err
	}
	gt := ekfmath.Transpose(g)
	if err := ekfmath.SetBlock("Grow", newP, n, 0, gt); err != nil {
		return err
	}
	if err := ekfmath.SetBlock("Grow", newP, n, n, c); err != nil {
		return err
	}

	if !ekfmath.VecFinite(newX) || !ekfmath.DenseFinite(newP) {
		return errs.New("Grow", errs.KindNumeric)
	}

	s.x = newX
	s.p = newP
	s.landmarks = append(s.landmarks, entry)
	return nil
}
