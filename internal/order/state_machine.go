package order

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"tradeledger/internal/model"
	"tradeledger/internal/model/enum"
	"tradeledger/pkg/exception"
)

// NewOrder validates a submitted order and returns it in PENDING state.
func NewOrder(o model.Order, now time.Time) (model.Order, error) {
	o.Symbol = strings.TrimSpace(o.Symbol)
	switch {
	case o.Symbol == "":
		return o, errors.Wrap(exception.ErrInvalidArgument, "order symbol is empty")
	case !o.Side.IsAvailable():
		return o, errors.Wrap(exception.ErrInvalidArgument, "order side is unknown")
	case !o.Type.IsAvailable():
		return o, errors.Wrap(exception.ErrInvalidArgument, "order type is unknown")
	case !o.RequestedQuantity.IsPositive():
		return o, errors.Wrapf(exception.ErrInvalidArgument, "requested quantity must be > 0, got %s", o.RequestedQuantity)
	case o.Type == enum.OrderTypeLimit && (o.LimitPrice == nil || !o.LimitPrice.IsPositive()):
		return o, errors.Wrap(exception.ErrInvalidArgument, "limit price must be > 0 for limit orders")
	}

	o.FilledQuantity = decimal.Zero
	o.AvgFillPrice = decimal.Zero
	o.Status = enum.OrderStatusPending
	o.LastSequence = 0
	o.Revision = 0
	o.Reason = ""
	o.CreatedAt = now
	o.UpdatedAt = now
	return o, nil
}

// ApplyFill computes the order after accepting fill. The input order is not
// modified; on error the returned order equals o.
func ApplyFill(o model.Order, fill model.Fill, now time.Time) (model.Order, model.Execution, error) {
	if fill.ExecutionID == "" {
		return o, model.Execution{}, errors.Wrap(exception.ErrInvalidArgument, "fill execution id is empty")
	}
	if !fill.Quantity.IsPositive() {
		return o, model.Execution{}, errors.Wrapf(exception.ErrInvalidArgument, "fill quantity must be > 0, got %s", fill.Quantity)
	}
	if !fill.Price.IsPositive() {
		return o, model.Execution{}, errors.Wrapf(exception.ErrInvalidArgument, "fill price must be > 0, got %s", fill.Price)
	}
	if fill.Sequence <= o.LastSequence {
		return o, model.Execution{}, errors.Wrapf(exception.ErrSequenceViolation,
			"order: %s, sequence: %d, last accepted: %d", o.ID, fill.Sequence, o.LastSequence)
	}
	if o.Status == enum.OrderStatusFilled {
		// any positive quantity on a filled order is both.
		return o, model.Execution{}, errors.Wrapf(errors.Join(exception.ErrInvalidTransition, exception.ErrOverfill),
			"order %s is %s", o.ID, o.Status)
	}
	if o.Status.IsTerminal() {
		return o, model.Execution{}, errors.Wrapf(exception.ErrInvalidTransition, "order %s is %s", o.ID, o.Status)
	}

	filled := o.FilledQuantity.Add(fill.Quantity)
	if filled.GreaterThan(o.RequestedQuantity) {
		return o, model.Execution{}, errors.Wrapf(exception.ErrOverfill,
			"order: %s, filled: %s, fill: %s, requested: %s", o.ID, o.FilledQuantity, fill.Quantity, o.RequestedQuantity)
	}

	next := o
	next.AvgFillPrice = o.AvgFillPrice.Mul(o.FilledQuantity).Add(fill.Price.Mul(fill.Quantity)).Div(filled)
	next.FilledQuantity = filled
	next.LastSequence = fill.Sequence
	next.Revision = o.Revision + 1
	next.UpdatedAt = now
	if filled.Equal(o.RequestedQuantity) {
		next.Status = enum.OrderStatusFilled
	} else {
		next.Status = enum.OrderStatusPartiallyFilled
	}

	executedAt := fill.ExecutedAt
	if executedAt.IsZero() {
		executedAt = now
	}
	exec := model.Execution{
		ID:         fill.ExecutionID,
		OrderID:    o.ID,
		Quantity:   fill.Quantity,
		Price:      fill.Price,
		Sequence:   fill.Sequence,
		ExecutedAt: executedAt,
		CreatedAt:  now,
	}
	return next, exec, nil
}

// Cancel moves a PENDING or PARTIALLY_FILLED order to CANCELLED.
func Cancel(o model.Order, reason string, now time.Time) (model.Order, error) {
	switch o.Status {
	case enum.OrderStatusPending, enum.OrderStatusPartiallyFilled:
		return terminate(o, enum.OrderStatusCancelled, reason, now), nil
	default:
		return o, errors.Wrapf(exception.ErrInvalidTransition, "cancel order %s in %s", o.ID, o.Status)
	}
}

// Reject moves a PENDING order to REJECTED.
func Reject(o model.Order, reason string, now time.Time) (model.Order, error) {
	if o.Status != enum.OrderStatusPending {
		return o, errors.Wrapf(exception.ErrInvalidTransition, "reject order %s in %s", o.ID, o.Status)
	}
	return terminate(o, enum.OrderStatusRejected, reason, now), nil
}

func terminate(o model.Order, status enum.OrderStatus, reason string, now time.Time) model.Order {
	next := o
	next.Status = status
	next.Reason = strings.TrimSpace(reason)
	next.Revision = o.Revision + 1
	next.UpdatedAt = now
	return next
}
