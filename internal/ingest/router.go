package ingest

import (
	"context"
	"time"

	"tradeledger/internal/model"
	"tradeledger/internal/model/enum"
	"tradeledger/pkg/exception"
)

// OrderHandler applies order events.
type OrderHandler interface {
	ApplyFill(ctx context.Context, fill model.Fill) (model.Order, error)
	Cancel(ctx context.Context, cmd model.Command) (model.Order, error)
	Reject(ctx context.Context, cmd model.Command) (model.Order, error)
}

// SettlementHandler applies settlement observations.
type SettlementHandler interface {
	Settle(ctx context.Context, obs model.Observation) (model.Prediction, error)
}

// Router decodes raw envelopes and hands them to the order or prediction
// side of the ledger.
type Router struct {
	orders      OrderHandler
	predictions SettlementHandler
	now         func() time.Time
}

func NewRouter(orders OrderHandler, predictions SettlementHandler) *Router {
	return &Router{
		orders:      orders,
		predictions: predictions,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Route decodes raw and applies it. The decoded event is returned even when
// applying fails so callers can report what was rejected.
func (r *Router) Route(ctx context.Context, raw []byte) (Inbound, error) {
	in, err := Decode(raw, r.now())
	if err != nil {
		return in, err
	}
	return in, r.Apply(ctx, in)
}

// Apply dispatches an already decoded event.
func (r *Router) Apply(ctx context.Context, in Inbound) error {
	var err error
	switch in.Kind {
	case enum.EventKindFill:
		if r.orders == nil || in.Fill == nil {
			return exception.ErrIngestNilHandler
		}
		_, err = r.orders.ApplyFill(ctx, *in.Fill)
	case enum.EventKindCancel:
		if r.orders == nil || in.Command == nil {
			return exception.ErrIngestNilHandler
		}
		_, err = r.orders.Cancel(ctx, *in.Command)
	case enum.EventKindReject:
		if r.orders == nil || in.Command == nil {
			return exception.ErrIngestNilHandler
		}
		_, err = r.orders.Reject(ctx, *in.Command)
	case enum.EventKindSettlement:
		if r.predictions == nil || in.Observation == nil {
			return exception.ErrIngestNilHandler
		}
		_, err = r.predictions.Settle(ctx, *in.Observation)
	default:
		return exception.ErrIngestUnknownKind
	}
	return err
}
