// Package store defines the durable ledger for orders and gap predictions.
//
// Writes are atomic per aggregate: an order together with its executions, or
// a prediction together with its settlement. Concurrent writers on the same
// aggregate are serialized by compare-and-set; a moved target surfaces
// exception.ErrConflict and the caller re-reads and retries.
package store

import (
	"context"

	"tradeledger/internal/model"
)

// Store is the ledger store contract.
type Store interface {
	OrderStore
	PredictionStore
	Close() error
}

// OrderStore holds orders and their append-only executions.
type OrderStore interface {
	// CreateOrder persists a new order and returns its id.
	CreateOrder(ctx context.Context, order model.Order) (string, error)
	// GetOrder returns exception.ErrNotFound when the order does not exist.
	GetOrder(ctx context.Context, id string) (model.Order, error)
	// ListExecutions returns the executions of an order ordered by sequence.
	ListExecutions(ctx context.Context, orderID string) ([]model.Execution, error)
	// AppendExecution stores exec and replaces prev with next, only if the
	// stored order still matches prev's revision and filled quantity.
	AppendExecution(ctx context.Context, prev, next model.Order, exec model.Execution) error
	// TransitionOrder replaces prev with next under the same guard as
	// AppendExecution, without an execution row.
	TransitionOrder(ctx context.Context, prev, next model.Order) error
}

// PredictionStore holds gap predictions and their settlements.
type PredictionStore interface {
	// CreatePrediction persists a new prediction and returns its id.
	CreatePrediction(ctx context.Context, prediction model.Prediction) (string, error)
	// GetPrediction returns exception.ErrNotFound when the prediction does not exist.
	GetPrediction(ctx context.Context, id string) (model.Prediction, error)
	// SettlePrediction attaches settlement only if the prediction is still
	// unsettled, otherwise it returns exception.ErrConflict.
	SettlePrediction(ctx context.Context, id string, settlement model.Settlement) error
}

// Matches reports whether the stored order cur still is the order prev that a
// transition was computed from.
func Matches(cur, prev model.Order) bool {
	return cur.Revision == prev.Revision && cur.FilledQuantity.Equal(prev.FilledQuantity)
}
