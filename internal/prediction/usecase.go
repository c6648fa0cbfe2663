package prediction

import (
	"context"
	"errors"
	"strings"
	"time"

	errs "github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"tradeledger/internal/model"
	"tradeledger/internal/model/enum"
	"tradeledger/internal/obs"
	"tradeledger/internal/store"
	"tradeledger/pkg/exception"
)

const defaultModelVersion = "v1.0"

// Usecase records predictions and settles them exactly once.
type Usecase struct {
	store   store.PredictionStore
	metrics *obs.Metrics
	now     func() time.Time
}

func NewUsecase(s store.PredictionStore, metrics *obs.Metrics) *Usecase {
	return &Usecase{
		store:   s,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Create validates p, fills defaults and stores it unsettled.
func (use *Usecase) Create(ctx context.Context, p model.Prediction) (model.Prediction, error) {
	p.Symbol = strings.TrimSpace(p.Symbol)
	if p.Symbol == "" {
		return p, errs.Wrap(exception.ErrInvalidArgument, "prediction symbol is empty")
	}
	if p.TradingDate.IsZero() {
		return p, errs.Wrap(exception.ErrInvalidArgument, "prediction trading date is empty")
	}
	if !probability(p.ProbUp) {
		return p, errs.Wrapf(exception.ErrInvalidArgument, "prob up must be within [0, 1], got %v", p.ProbUp)
	}
	if p.ProbDown == 0 && p.ProbUp != 0 {
		p.ProbDown = 1 - p.ProbUp
	}
	if !probability(p.ProbDown) {
		return p, errs.Wrapf(exception.ErrInvalidArgument, "prob down must be within [0, 1], got %v", p.ProbDown)
	}
	p.PredictedDirection = PredictedDirection(p.ProbUp, p.ProbDown)
	for _, v := range []float64{p.ExpectedReturn, p.GapRate, p.StockOpen, p.ReturnIfUp, p.ReturnIfDown} {
		if !finite(v) {
			return p, errs.Wrap(exception.ErrInvalidArgument, "prediction contains a non-finite number")
		}
	}
	if p.Signal == 0 {
		p.Signal = enum.SignalHold
	}
	if p.ModelVersion == "" {
		p.ModelVersion = defaultModelVersion
	}

	now := use.now()
	y, m, d := p.TradingDate.Date()
	p.TradingDate = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	p.Settlement = nil
	p.CreatedAt = now
	p.UpdatedAt = now

	id, err := use.store.CreatePrediction(ctx, p)
	if err != nil {
		return p, err
	}
	p.ID = id
	return p, nil
}

func (use *Usecase) Get(ctx context.Context, id string) (model.Prediction, error) {
	return use.store.GetPrediction(ctx, id)
}

// Settle attaches obs to its prediction. Redelivering an identical
// observation succeeds without change; a differing one fails with
// ErrAlreadySettled.
func (use *Usecase) Settle(ctx context.Context, obs model.Observation) (model.Prediction, error) {
	p, err := use.store.GetPrediction(ctx, obs.PredictionID)
	if err != nil {
		return p, err
	}
	if p.IsSettled() {
		return use.resettle(p, obs)
	}

	settlement, err := Reconcile(p, obs, use.now())
	if err != nil {
		return p, err
	}

	err = use.store.SettlePrediction(ctx, p.ID, settlement)
	if errors.Is(err, exception.ErrConflict) {
		// settled by a concurrent delivery, compare against the winner.
		use.metrics.IncCASRetry()
		p, err = use.store.GetPrediction(ctx, obs.PredictionID)
		if err != nil {
			return p, err
		}
		if !p.IsSettled() {
			return p, exception.ErrConflict
		}
		return use.resettle(p, obs)
	}
	if err != nil {
		return p, err
	}

	p.Settlement = &settlement
	p.UpdatedAt = settlement.SettledAt
	return p, nil
}

func (use *Usecase) resettle(p model.Prediction, obs model.Observation) (model.Prediction, error) {
	if p.Settlement.Matches(obs) {
		logs.Infof("prediction %s: duplicate settlement ignored", p.ID)
		return p, nil
	}
	return p, errs.Wrapf(exception.ErrAlreadySettled,
		"prediction: %s, stored close: %v, stored return: %v, new close: %v, new return: %v",
		p.ID, p.Settlement.ActualClose, p.Settlement.ActualReturn, obs.ActualClose, obs.ActualReturn)
}

func probability(v float64) bool {
	return finite(v) && v >= 0 && v <= 1
}
