package slam

import (
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/asgard/huginn/internal/errs"
)

// ProcessBatch runs the landmark-batch update: each
// observation is associated against the current state, then corrected or
// augmented in turn, so later observations in the batch see the effects
// of earlier ones. A Dimension error aborts the remaining batch; Numeric
// and Degenerate errors are recorded against that observation only and
// processing continues.
func (e *Engine) ProcessBatch(obs []LandmarkObservation) ([]ObservationResult, error) {
	const op = "ProcessBatch"
	if err := requireReadyOp(e.state, op); err != nil {
		return nil, err
	}

	results := make([]ObservationResult, 0, len(obs))
	for i, o := range obs {
		res, err := e.processOne(i, o)
		if err != nil {
			results = append(results, res)
			if errs.Is(err, errs.KindDimension) {
				return results, err
			}
			continue
		}
		results = append(results, res)
	}

	e.recorder.LandmarkCountObserved(e.state.Count())
	return results, nil
}

func (e *Engine) processOne(index int, o LandmarkObservation) (ObservationResult, error) {
	x, err := e.state.X()
	if err != nil {
		return ObservationResult{Index: index, Err: err}, err
	}

	assoc := e.associate(x, o)
	e.logger.WithFields(logrus.Fields{"observation": index, "matched": assoc.matched}).Debug("association decision")

	if assoc.matched {
		var outcome ObservationOutcome
		mutateErr := e.state.Mutate(func(x *mat.VecDense, p *mat.Dense) error {
			out, err := e.correct(x, p, assoc.index, assoc.meas)
			outcome = out
			return err
		})
		if mutateErr != nil {
			errOutcome := OutcomeSkippedNumeric
			if errs.Is(mutateErr, errs.KindDegenerate) {
				errOutcome = OutcomeSkippedDegenerate
			}
			e.recorder.ObservationObserved(string(errOutcome))
			e.logger.WithError(mutateErr).WithField("observation", index).Warn("observation skipped")
			return ObservationResult{Index: index, Outcome: errOutcome, MatchedIndex: assoc.index, Err: mutateErr}, mutateErr
		}
		e.recorder.ObservationObserved(string(outcome))
		if outcome == OutcomeSkippedDegenerate {
			e.logger.WithField("observation", index).Warn("observation skipped: degenerate geometry")
		}
		return ObservationResult{Index: index, Outcome: outcome, MatchedIndex: assoc.index}, nil
	}

	n := x.Len()
	theta := x.AtVec(2)
	if err := e.augment(theta, n, assoc.meas); err != nil {
		e.recorder.ObservationObserved(string(OutcomeSkippedNumeric))
		e.logger.WithError(err).WithField("observation", index).Warn("observation skipped")
		return ObservationResult{Index: index, Outcome: OutcomeSkippedNumeric, MatchedIndex: -1, Err: err}, err
	}

	e.recorder.ObservationObserved(string(OutcomeNew))
	return ObservationResult{Index: index, Outcome: OutcomeNew, MatchedIndex: -1}, nil
}
