package order

import (
	"context"
	"errors"
	"time"

	"github.com/yanun0323/logs"

	"tradeledger/internal/model"
	"tradeledger/internal/obs"
	"tradeledger/internal/store"
	"tradeledger/pkg/exception"
)

const DefaultMaxAttempts = 5

// Usecase drives the order state machine against a ledger store. Every
// mutation is a read, a pure transition and a compare-and-set write, retried
// on ErrConflict at most maxAttempts times.
type Usecase struct {
	store       store.OrderStore
	maxAttempts int
	metrics     *obs.Metrics
	now         func() time.Time
}

func NewUsecase(s store.OrderStore, maxAttempts int, metrics *obs.Metrics) *Usecase {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Usecase{
		store:       s,
		maxAttempts: maxAttempts,
		metrics:     metrics,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Create validates and stores a new PENDING order.
func (use *Usecase) Create(ctx context.Context, o model.Order) (model.Order, error) {
	o, err := NewOrder(o, use.now())
	if err != nil {
		return o, err
	}
	id, err := use.store.CreateOrder(ctx, o)
	if err != nil {
		return o, err
	}
	o.ID = id
	return o, nil
}

func (use *Usecase) Get(ctx context.Context, id string) (model.Order, error) {
	return use.store.GetOrder(ctx, id)
}

func (use *Usecase) Executions(ctx context.Context, id string) ([]model.Execution, error) {
	return use.store.ListExecutions(ctx, id)
}

// ApplyFill accepts one execution report for an order.
func (use *Usecase) ApplyFill(ctx context.Context, fill model.Fill) (model.Order, error) {
	return use.mutate(ctx, fill.OrderID, func(cur model.Order) (model.Order, error) {
		next, exec, err := ApplyFill(cur, fill, use.now())
		if err != nil {
			return cur, err
		}
		return next, use.store.AppendExecution(ctx, cur, next, exec)
	})
}

// Cancel terminates an open order.
func (use *Usecase) Cancel(ctx context.Context, cmd model.Command) (model.Order, error) {
	return use.mutate(ctx, cmd.OrderID, func(cur model.Order) (model.Order, error) {
		next, err := Cancel(cur, cmd.Reason, use.now())
		if err != nil {
			return cur, err
		}
		return next, use.store.TransitionOrder(ctx, cur, next)
	})
}

// Reject terminates an order the venue refused before any fill.
func (use *Usecase) Reject(ctx context.Context, cmd model.Command) (model.Order, error) {
	return use.mutate(ctx, cmd.OrderID, func(cur model.Order) (model.Order, error) {
		next, err := Reject(cur, cmd.Reason, use.now())
		if err != nil {
			return cur, err
		}
		return next, use.store.TransitionOrder(ctx, cur, next)
	})
}

func (use *Usecase) mutate(ctx context.Context, id string, apply func(cur model.Order) (model.Order, error)) (model.Order, error) {
	var last model.Order
	for attempt := 1; attempt <= use.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return last, err
		}

		cur, err := use.store.GetOrder(ctx, id)
		if err != nil {
			return cur, err
		}

		next, err := apply(cur)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, exception.ErrConflict) {
			return cur, err
		}

		last = cur
		use.metrics.IncCASRetry()
		logs.Warnf("order %s: compare-and-set lost at revision %d, attempt %d/%d", id, cur.Revision, attempt, use.maxAttempts)
	}
	return last, exception.ErrConflict
}
