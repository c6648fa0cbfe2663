package prediction

import (
	"math"
	"time"

	"github.com/yanun0323/errors"

	"tradeledger/internal/model"
	"tradeledger/pkg/exception"
)

// Sign returns -1, 0 or 1. Zero is a sign class of its own.
func Sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// DirectionCorrect reports whether the realised return moved the way the
// prediction expected.
func DirectionCorrect(expectedReturn, actualReturn float64) bool {
	return Sign(expectedReturn) == Sign(actualReturn)
}

// PredictedDirection returns 1 when probUp is at least probDown, else 0.
func PredictedDirection(probUp, probDown float64) int {
	if probUp >= probDown {
		return 1
	}
	return 0
}

// Reconcile derives the settlement of p from obs.
func Reconcile(p model.Prediction, obs model.Observation, now time.Time) (model.Settlement, error) {
	if err := validateObservation(obs); err != nil {
		return model.Settlement{}, err
	}

	s := model.Settlement{
		ActualClose:      obs.ActualClose,
		ActualReturn:     obs.ActualReturn,
		ActualHigh:       copyFloat(obs.ActualHigh),
		ActualLow:        copyFloat(obs.ActualLow),
		DirectionCorrect: DirectionCorrect(p.ExpectedReturn, obs.ActualReturn),
		ReturnDiff:       p.ExpectedReturn - obs.ActualReturn,
		SettledAt:        now,
	}

	if obs.ActualHigh != nil && p.StockOpen > 0 {
		maxReturn := (*obs.ActualHigh - p.StockOpen) / p.StockOpen * 100
		s.ActualMaxReturn = &maxReturn
		if p.MaxReturnIfUp != nil {
			diff := *p.MaxReturnIfUp - maxReturn
			s.MaxReturnDiff = &diff
		}
	}
	return s, nil
}

func validateObservation(obs model.Observation) error {
	if !finite(obs.ActualClose) || obs.ActualClose <= 0 {
		return errors.Wrapf(exception.ErrInvalidArgument, "actual close must be a positive number, got %v", obs.ActualClose)
	}
	if !finite(obs.ActualReturn) {
		return errors.Wrapf(exception.ErrInvalidArgument, "actual return must be finite, got %v", obs.ActualReturn)
	}
	if obs.ActualHigh != nil && (!finite(*obs.ActualHigh) || *obs.ActualHigh <= 0) {
		return errors.Wrapf(exception.ErrInvalidArgument, "actual high must be a positive number, got %v", *obs.ActualHigh)
	}
	if obs.ActualLow != nil && (!finite(*obs.ActualLow) || *obs.ActualLow <= 0) {
		return errors.Wrapf(exception.ErrInvalidArgument, "actual low must be a positive number, got %v", *obs.ActualLow)
	}
	if obs.ActualHigh != nil && obs.ActualLow != nil && *obs.ActualLow > *obs.ActualHigh {
		return errors.Wrapf(exception.ErrInvalidArgument, "actual low %v above actual high %v", *obs.ActualLow, *obs.ActualHigh)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
