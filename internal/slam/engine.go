// Package slam implements the EKF engine: motion-update prediction,
// the line-feature observation model, nearest-canonical-distance data
// association, and the matched-update / augmentation measurement step.
// It is the bulk of the estimator, following a Predict/Update pair over
// gonum/mat throughout.
package slam

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/asgard/huginn/internal/errs"
	"github.com/asgard/huginn/internal/slamstate"
)

// Config holds the estimator tunables.
type Config struct {
	// ThresholdRT gates data association: an observation seeds a new
	// landmark when its minimum canonical distance is >= ThresholdRT.
	ThresholdRT float64
	// RangeVr scales range measurement noise.
	RangeVr float64
	// BearingVb scales bearing measurement noise.
	BearingVb float64
	// ProcessC is the process-noise intensity applied to the raw
	// motion increment.
	ProcessC float64
	// NoBearing collapses the measurement to scalar range only.
	NoBearing bool
}

// DefaultConfig returns the estimator's default tunables. Note ThresholdRT=0
// means, in the default configuration, every observation seeds a new
// landmark — this is a deliberate, likely-unintended default that
// must not be silently changed.
func DefaultConfig() Config {
	return Config{
		ThresholdRT: 0,
		RangeVr:     3.0,
		BearingVb:   0.45,
		ProcessC:    1.65,
		NoBearing:   false,
	}
}

// Recorder receives engine telemetry; internal/metrics implements it.
// Defined here, at the point of use, rather than imported from
// internal/metrics, so this package never depends on its own consumer.
type Recorder interface {
	PredictionObserved()
	ObservationObserved(outcome string)
	LandmarkCountObserved(n int)
	AssociationDistanceObserved(dist float64)
}

type noopRecorder struct{}

func (noopRecorder) PredictionObserved()                {}
func (noopRecorder) ObservationObserved(string)          {}
func (noopRecorder) LandmarkCountObserved(int)           {}
func (noopRecorder) AssociationDistanceObserved(float64) {}

// Engine runs prediction, association, and update against a shared
// slamstate.State. It is not itself safe for concurrent use from
// multiple goroutines without external synchronization — that
// synchronization is the event coordinator's responsibility.
type Engine struct {
	state    *slamstate.State
	cfg      Config
	logger   *logrus.Logger
	recorder Recorder

	mu         sync.Mutex
	lastDX     float64
	lastDY     float64
	lastDTheta float64
	lastDeltaT float64
}

// New builds an Engine over state with the given config. logger and
// recorder may be nil, in which case a discarding logger and a no-op
// recorder are used.
func New(state *slamstate.State, cfg Config, logger *logrus.Logger, recorder Recorder) *Engine {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(discardWriter{})
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Engine{state: state, cfg: cfg, logger: logger, recorder: recorder}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// ObservationOutcome labels what happened to one observation in a batch.
type ObservationOutcome string

const (
	OutcomeMatched           ObservationOutcome = "matched"
	OutcomeNew               ObservationOutcome = "new"
	OutcomeSkippedNumeric    ObservationOutcome = "skipped_numeric"
	OutcomeSkippedDegenerate ObservationOutcome = "skipped_degenerate"
)

// ObservationResult reports the outcome of processing one observation.
type ObservationResult struct {
	Index        int
	Outcome      ObservationOutcome
	MatchedIndex int // valid when Outcome == OutcomeMatched
	Err          error
}

func requireReadyOp(state *slamstate.State, op string) error {
	if !state.Ready() {
		return errs.New(op, errs.KindUninitialized)
	}
	return nil
}
