package model

import (
	"time"

	"github.com/shopspring/decimal"

	"tradeledger/internal/model/enum"
)

// Order is the aggregate root of an order and its executions. Status,
// FilledQuantity, AvgFillPrice, LastSequence and Revision are owned by the
// order state machine.
type Order struct {
	ID                string           `json:"order_id"`
	AccountID         string           `json:"account_id"`
	StrategyID        string           `json:"strategy_id,omitempty"`
	Symbol            string           `json:"symbol"`
	Side              enum.OrderSide   `json:"side"`
	Type              enum.OrderType   `json:"order_type"`
	LimitPrice        *decimal.Decimal `json:"limit_price,omitempty"`
	RequestedQuantity decimal.Decimal  `json:"requested_quantity"`
	FilledQuantity    decimal.Decimal  `json:"filled_quantity"`
	AvgFillPrice      decimal.Decimal  `json:"avg_fill_price"`
	Status            enum.OrderStatus `json:"status"`
	LastSequence      uint64           `json:"last_sequence"`
	Revision          uint64           `json:"revision"`
	Reason            string           `json:"reason,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// RemainingQuantity is the quantity still open for fills.
func (o Order) RemainingQuantity() decimal.Decimal {
	return o.RequestedQuantity.Sub(o.FilledQuantity)
}

// Execution is a single accepted fill. Immutable once stored.
type Execution struct {
	ID         string          `json:"execution_id"`
	OrderID    string          `json:"order_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Sequence   uint64          `json:"sequence_number"`
	ExecutedAt time.Time       `json:"executed_at"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Fill is an inbound execution report for an order.
type Fill struct {
	OrderID     string          `json:"order_id"`
	ExecutionID string          `json:"execution_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Sequence    uint64          `json:"sequence_number"`
	ExecutedAt  time.Time       `json:"executed_at"`
}

// Command is an inbound cancel or reject request for an order.
type Command struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}
