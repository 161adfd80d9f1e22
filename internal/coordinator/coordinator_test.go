package coordinator

import (
	"math"
	"testing"
	"time"

	"github.com/asgard/huginn/internal/slam"
	"github.com/asgard/huginn/internal/slamstate"
	"github.com/asgard/huginn/internal/snapshot"
)

func newTestCoordinator() (*slamstate.State, *Coordinator, *snapshot.ChannelSink) {
	state := slamstate.New()
	engine := slam.New(state, slam.Config{ThresholdRT: 10.0, RangeVr: 3.0, BearingVb: 0.45, ProcessC: 1.65}, nil, nil)
	sink := snapshot.NewChannelSink(8)
	c := New(state, engine, sink, nil, nil)
	return state, c, sink
}

func TestColdStartDropsLandmarks(t *testing.T) {
	state, c, sink := newTestCoordinator()

	if err := c.handleLandmarks(LandmarkBatchEvent{
		Observations: []slam.LandmarkObservation{{Radius: 1, Angle: 0, X: 1, Y: 0}},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if state.Ready() {
		t.Fatal("expected estimator to remain uninitialized after a pre-init landmark batch")
	}

	select {
	case s := <-sink.Snapshots():
		t.Fatalf("expected no snapshot published, got %+v", s)
	default:
	}
}

func TestInitialization(t *testing.T) {
	state, c, sink := newTestCoordinator()

	t0 := time.Unix(0, 0)
	err := c.handleOdometry(OdometryEvent{
		Timestamp: t0,
		Pose:      Pose2D{X: 1, Y: 2, OrientationW: math.Cos(math.Pi / 8)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !state.Ready() {
		t.Fatal("expected estimator to be initialized")
	}
	x, y, theta, err := state.Pose()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if x != 1 || y != 2 || math.Abs(theta-math.Pi/4) > 1e-9 {
		t.Errorf("expected pose (1, 2, pi/4), got (%v, %v, %v)", x, y, theta)
	}
	if state.Count() != 0 {
		t.Errorf("expected L=0 at init, got %d", state.Count())
	}

	select {
	case <-sink.Snapshots():
	default:
		t.Fatal("expected a snapshot to be published on initialization")
	}
}

func TestPurePrediction(t *testing.T) {
	_, c, _ := newTestCoordinator()

	t0 := time.Unix(0, 0)
	if err := c.handleOdometry(OdometryEvent{
		Timestamp: t0,
		Pose:      Pose2D{X: 0, Y: 0, OrientationW: 1}, // theta = 0
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := c.handleOdometry(OdometryEvent{
		Timestamp: t0.Add(1 * time.Second),
		Twist:     Twist2D{LinearX: 1.0, AngularZ: 0},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	x, y, theta, err := c.state.Pose()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(x-1) > 1e-9 || math.Abs(y) > 1e-9 || math.Abs(theta) > 1e-9 {
		t.Errorf("expected pose (1, 0, 0), got (%v, %v, %v)", x, y, theta)
	}

	p, err := c.state.P()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// P[0:3,0:3] = Phi . diag(0.1, 0.1, pi/4) . Phi^T + [1,0,0]^T . 1.65 . [1,0,0],
	// where Phi = [[1,0,0],[0,1,1],[0,0,1]] for dx=1, dy=0.
	if math.Abs(p.At(0, 0)-(0.1+1.65)) > 1e-9 {
		t.Errorf("expected P[0][0] = 0.1 + 1.65, got %v", p.At(0, 0))
	}
	if math.Abs(p.At(1, 1)-(0.1+math.Pi/4)) > 1e-9 {
		t.Errorf("expected P[1][1] = 0.1 + pi/4, got %v", p.At(1, 1))
	}
	if math.Abs(p.At(2, 2)-math.Pi/4) > 1e-9 {
		t.Errorf("expected P[2][2] unchanged at pi/4, got %v", p.At(2, 2))
	}
}

func TestLandmarkBatchBeforeInitAfterwardsStillWorks(t *testing.T) {
	state, c, _ := newTestCoordinator()

	if err := c.handleLandmarks(LandmarkBatchEvent{
		Observations: []slam.LandmarkObservation{{Radius: 2, Angle: math.Pi / 2, X: 2, Y: 0}},
	}); err != nil {
		t.Fatalf("unexpected error from pre-init batch: %v", err)
	}

	t0 := time.Unix(0, 0)
	if err := c.handleOdometry(OdometryEvent{
		Timestamp: t0,
		Pose:      Pose2D{X: 0, Y: 0, OrientationW: 1},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := c.handleLandmarks(LandmarkBatchEvent{
		Observations: []slam.LandmarkObservation{{Radius: 2, Angle: math.Pi / 2, X: 2, Y: 0}},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if state.Count() != 1 {
		t.Errorf("expected 1 landmark after a post-init batch, got %d", state.Count())
	}
}
