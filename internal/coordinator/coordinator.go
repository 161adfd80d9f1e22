// Package coordinator serializes the two input streams (odometry,
// landmark batches) onto the shared estimator, owning initialization and
// snapshot publication. A ctx-cancelable select loop over two channels
// gives mutual exclusion between the streams without a busy-wait.
package coordinator

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/asgard/huginn/internal/slam"
	"github.com/asgard/huginn/internal/slamstate"
	"github.com/asgard/huginn/internal/snapshot"
)

// Pose2D is a ground-truth planar pose as reported by odometry.
type Pose2D struct {
	X, Y, OrientationW float64
}

// Twist2D is a body-frame velocity as reported by odometry.
type Twist2D struct {
	LinearX, LinearY, AngularZ float64
}

// OdometryEvent is one odometry message. Pose is consulted for
// OrientationW only at initialization; Twist and Timestamp drive every
// prediction step, including the first.
type OdometryEvent struct {
	Timestamp time.Time
	Pose      Pose2D
	Twist     Twist2D
}

// LandmarkBatchEvent is one ordered batch of landmark observations.
type LandmarkBatchEvent struct {
	Observations []slam.LandmarkObservation
}

// Recorder receives coordinator telemetry; internal/metrics implements it.
type Recorder interface {
	SnapshotPublished(delivered bool)
	SnapshotDropped()
}

type noopRecorder struct{}

func (noopRecorder) SnapshotPublished(bool) {}
func (noopRecorder) SnapshotDropped()       {}

// Coordinator owns the mutual-exclusion boundary between odometry and
// landmark handling, and publishes a snapshot after every odometry
// event.
type Coordinator struct {
	mu sync.Mutex

	state  *slamstate.State
	engine *slam.Engine
	sink   snapshot.Sink
	logger *logrus.Logger
	rec    Recorder

	haveLastT bool
	lastT     time.Time

	realPoseX, realPoseY float64

	odomCh     chan OdometryEvent
	landmarkCh chan LandmarkBatchEvent
}

// New builds a Coordinator. logger and rec may be nil.
func New(state *slamstate.State, engine *slam.Engine, sink snapshot.Sink, logger *logrus.Logger, rec Recorder) *Coordinator {
	if logger == nil {
		logger = logrus.New()
	}
	if rec == nil {
		rec = noopRecorder{}
	}
	return &Coordinator{
		state:      state,
		engine:     engine,
		sink:       sink,
		logger:     logger,
		rec:        rec,
		odomCh:     make(chan OdometryEvent, 64),
		landmarkCh: make(chan LandmarkBatchEvent, 64),
	}
}

// SubmitOdometry enqueues an odometry event for processing by Run.
// Channel order is preserved; this call blocks if the queue is full,
// applying backpressure to the producer (unlike snapshot publication,
// which must never block the estimator).
func (c *Coordinator) SubmitOdometry(ctx context.Context, evt OdometryEvent) error {
	select {
	case c.odomCh <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubmitLandmarks enqueues a landmark batch event for processing by Run.
func (c *Coordinator) SubmitLandmarks(ctx context.Context, evt LandmarkBatchEvent) error {
	select {
	case c.landmarkCh <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains both event channels until ctx is canceled. Mutual exclusion
// between odometry and landmark handling falls naturally out of
// processing exactly one channel receive per loop iteration: handling
// one event runs to completion, including its own c.mu acquisition,
// before the select is reentered.
func (c *Coordinator) Run(ctx context.Context) error {
	c.logger.Info("coordinator started")
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("coordinator stopping")
			return ctx.Err()

		case evt := <-c.odomCh:
			if err := c.handleOdometry(evt); err != nil {
				c.logger.WithError(err).Warn("odometry event failed")
			}

		case evt := <-c.landmarkCh:
			if err := c.handleLandmarks(evt); err != nil {
				c.logger.WithError(err).Warn("landmark batch failed")
			}
		}
	}
}

func (c *Coordinator) handleOdometry(evt OdometryEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.realPoseX, c.realPoseY = evt.Pose.X, evt.Pose.Y

	if !c.state.Ready() {
		theta := 2 * math.Acos(clampUnit(evt.Pose.OrientationW))
		c.state.Init(evt.Pose.X, evt.Pose.Y, theta)
		c.haveLastT = true
		c.lastT = evt.Timestamp
		c.publish()
		return nil
	}

	deltaT := 0.0
	if c.haveLastT {
		deltaT = evt.Timestamp.Sub(c.lastT).Seconds()
	}
	c.haveLastT = true
	c.lastT = evt.Timestamp

	dx := deltaT * evt.Twist.LinearX
	dy := deltaT * evt.Twist.LinearY
	dtheta := deltaT * evt.Twist.AngularZ

	if err := c.engine.Predict(dx, dy, dtheta, deltaT); err != nil {
		return err
	}

	c.publish()
	return nil
}

func (c *Coordinator) handleLandmarks(evt LandmarkBatchEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.Ready() {
		c.logger.Debug("dropping landmark batch before initialization")
		return nil
	}

	_, err := c.engine.ProcessBatch(evt.Observations)
	return err
}

// publish must be called with c.mu held.
func (c *Coordinator) publish() {
	x, y, theta, err := c.state.Pose()
	if err != nil {
		return
	}
	s := snapshot.Snapshot{
		Timestamp: c.lastT,
		Pose:      [3]float64{x, y, theta},
		Landmarks: c.state.Landmarks(),
		RealPoseX: c.realPoseX,
		RealPoseY: c.realPoseY,
	}
	delivered := c.sink.TryPublish(s)
	c.rec.SnapshotPublished(delivered)
	if !delivered {
		c.rec.SnapshotDropped()
	}
}

func clampUnit(w float64) float64 {
	if w > 1 {
		return 1
	}
	if w < -1 {
		return -1
	}
	return w
}
