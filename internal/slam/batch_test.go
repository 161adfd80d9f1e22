package slam

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func trace(m *mat.Dense) float64 {
	r, _ := m.Dims()
	sum := 0.0
	for i := 0; i < r; i++ {
		sum += m.At(i, i)
	}
	return sum
}

func TestProcessBatchSeedsNewLandmarkWhenEmpty(t *testing.T) {
	s, e := newTestEngine(Config{ThresholdRT: 1.0, RangeVr: 3.0, BearingVb: 0.45, ProcessC: 1.65})

	results, err := e.ProcessBatch([]LandmarkObservation{
		{Radius: 2, Angle: math.Pi / 2, X: 2, Y: 0},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].Outcome != OutcomeNew {
		t.Fatalf("expected a single NEW outcome, got %+v", results)
	}
	if s.Count() != 1 {
		t.Fatalf("expected 1 landmark, got %d", s.Count())
	}
}

func TestProcessBatchMatchesRepeatedObservation(t *testing.T) {
	s, e := newTestEngine(Config{ThresholdRT: 1.0, RangeVr: 3.0, BearingVb: 0.45, ProcessC: 1.65})
	obs := LandmarkObservation{Radius: 2, Angle: math.Pi / 2, X: 2, Y: 0}

	if _, err := e.ProcessBatch([]LandmarkObservation{obs}); err != nil {
		t.Fatalf("unexpected error seeding landmark: %v", err)
	}

	pBefore, err := s.P()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results, err := e.ProcessBatch([]LandmarkObservation{obs})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].Outcome != OutcomeMatched {
		t.Fatalf("expected a single MATCHED outcome, got %+v", results)
	}
	if results[0].MatchedIndex != 0 {
		t.Errorf("expected match against landmark 0, got %d", results[0].MatchedIndex)
	}
	if s.Count() != 1 {
		t.Fatalf("expected landmark count to stay at 1, got %d", s.Count())
	}

	pAfter, err := s.P()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if trace(pAfter) >= trace(pBefore) {
		t.Errorf("expected covariance trace to shrink after a matched update: before=%v after=%v", trace(pBefore), trace(pAfter))
	}
}

func TestProcessBatchDefaultThresholdAlwaysSeedsNew(t *testing.T) {
	s, e := newTestEngine(DefaultConfig())
	obs := LandmarkObservation{Radius: 2, Angle: math.Pi / 2, X: 2, Y: 0}

	results, err := e.ProcessBatch([]LandmarkObservation{obs, obs})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, r := range results {
		if r.Outcome != OutcomeNew {
			t.Errorf("observation %d: expected NEW under the default (0) threshold, got %v", i, r.Outcome)
		}
	}
	if s.Count() != 2 {
		t.Fatalf("expected 2 landmarks under the always-new default, got %d", s.Count())
	}
}

func TestProcessBatchLaterObservationSeesEarlierUpdate(t *testing.T) {
	s, e := newTestEngine(Config{ThresholdRT: 1.0, RangeVr: 3.0, BearingVb: 0.45, ProcessC: 1.65})
	obs := LandmarkObservation{Radius: 2, Angle: math.Pi / 2, X: 2, Y: 0}

	results, err := e.ProcessBatch([]LandmarkObservation{obs, obs})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].Outcome != OutcomeNew {
		t.Errorf("expected first observation to seed a NEW landmark, got %v", results[0].Outcome)
	}
	if results[1].Outcome != OutcomeMatched {
		t.Errorf("expected second observation in the same batch to MATCH the just-seeded landmark, got %v", results[1].Outcome)
	}
	if s.Count() != 1 {
		t.Errorf("expected exactly 1 landmark after batch, got %d", s.Count())
	}
}

func TestProcessBatchRequiresInit(t *testing.T) {
	e := New(newUninitState(), DefaultConfig(), nil, nil)
	if _, err := e.ProcessBatch([]LandmarkObservation{{Radius: 1, Angle: 0}}); err == nil {
		t.Fatal("expected uninitialized error")
	}
}

func TestProcessBatchNoBearingMode(t *testing.T) {
	cfg := Config{ThresholdRT: 1.0, RangeVr: 3.0, BearingVb: 0.45, ProcessC: 1.65, NoBearing: true}
	s, e := newTestEngine(cfg)
	obs := LandmarkObservation{Radius: 2, Angle: math.Pi / 2, X: 2, Y: 0}

	results, err := e.ProcessBatch([]LandmarkObservation{obs, obs})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[1].Outcome != OutcomeMatched {
		t.Errorf("expected second observation to match in no_bearing mode, got %v", results[1].Outcome)
	}
	if s.Count() != 1 {
		t.Errorf("expected 1 landmark in no_bearing mode, got %d", s.Count())
	}
}

// TestProcessBatchNoBearingAugmentationCovariance pins down the
// new-landmark covariance produced by augmentation in no_bearing mode:
// Jz must be the reduced 2x1 column and R the scalar range-only noise,
// not the full 2x2 range/bearing form, or the landmark picks up a
// spurious bearing-noise contribution.
func TestProcessBatchNoBearingAugmentationCovariance(t *testing.T) {
	cfg := Config{ThresholdRT: 1.0, RangeVr: 3.0, BearingVb: 0.45, ProcessC: 1.65, NoBearing: true}
	s, e := newTestEngine(cfg)
	obs := LandmarkObservation{Radius: 2, Angle: math.Pi / 2, X: 2, Y: 0}

	if _, err := e.ProcessBatch([]LandmarkObservation{obs}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Count() != 1 {
		t.Fatalf("expected 1 landmark seeded, got %d", s.Count())
	}

	p, err := s.P()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Robot at (0,0,0) with no prior motion (dx=dy=dtheta=0, angle=0):
	// phiXY = [[1,0,0],[0,1,0]], so cPose = P[0:2,0:2] = diag(0.1, 0.1).
	// Jz = [cos(0), sin(0)]^T = [1, 0]^T, R = RangeVr*r = 3.0*2 = 6.0, so
	// Jz*R*Jz^T = [[6.0, 0], [0, 0]]. C = cPose + Jz*R*Jz^T = diag(6.1, 0.1).
	const eps = 1e-9
	if math.Abs(p.At(3, 3)-6.1) > eps {
		t.Errorf("expected C[0][0] = 6.1 (cPose + range noise only), got %v", p.At(3, 3))
	}
	if math.Abs(p.At(3, 4)) > eps || math.Abs(p.At(4, 3)) > eps {
		t.Errorf("expected C off-diagonal = 0, got %v / %v", p.At(3, 4), p.At(4, 3))
	}
	if math.Abs(p.At(4, 4)-0.1) > eps {
		t.Errorf("expected C[1][1] = 0.1 (cPose only, no bearing noise leaked in), got %v", p.At(4, 4))
	}
}
