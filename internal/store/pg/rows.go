package pg

import (
	"time"

	"github.com/shopspring/decimal"

	"tradeledger/internal/model"
	"tradeledger/internal/model/enum"
)

type orderRow struct {
	ID                string           `gorm:"primaryKey;type:varchar(64)"`
	AccountID         string           `gorm:"type:varchar(64);index"`
	StrategyID        string           `gorm:"type:varchar(64)"`
	Symbol            string           `gorm:"type:varchar(20);not null;index"`
	Side              enum.OrderSide   `gorm:"type:varchar(8);not null"`
	Type              enum.OrderType   `gorm:"type:varchar(8);not null"`
	LimitPrice        *decimal.Decimal `gorm:"type:numeric(30,10)"`
	RequestedQuantity decimal.Decimal  `gorm:"type:numeric(30,10);not null"`
	FilledQuantity    decimal.Decimal  `gorm:"type:numeric(30,10);not null;default:0"`
	AvgFillPrice      decimal.Decimal  `gorm:"type:numeric(30,16);not null;default:0"`
	Status            enum.OrderStatus `gorm:"type:varchar(20);not null;index"`
	LastSequence      uint64           `gorm:"not null;default:0"`
	Revision          uint64           `gorm:"not null;default:0"`
	Reason            string           `gorm:"type:text"`
	CreatedAt         time.Time        `gorm:"type:timestamptz;not null"`
	UpdatedAt         time.Time        `gorm:"type:timestamptz;not null"`
}

func (orderRow) TableName() string {
	return "orders"
}

func newOrderRow(o model.Order) orderRow {
	return orderRow{
		ID:                o.ID,
		AccountID:         o.AccountID,
		StrategyID:        o.StrategyID,
		Symbol:            o.Symbol,
		Side:              o.Side,
		Type:              o.Type,
		LimitPrice:        o.LimitPrice,
		RequestedQuantity: o.RequestedQuantity,
		FilledQuantity:    o.FilledQuantity,
		AvgFillPrice:      o.AvgFillPrice,
		Status:            o.Status,
		LastSequence:      o.LastSequence,
		Revision:          o.Revision,
		Reason:            o.Reason,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
}

func (r orderRow) model() model.Order {
	return model.Order{
		ID:                r.ID,
		AccountID:         r.AccountID,
		StrategyID:        r.StrategyID,
		Symbol:            r.Symbol,
		Side:              r.Side,
		Type:              r.Type,
		LimitPrice:        r.LimitPrice,
		RequestedQuantity: r.RequestedQuantity,
		FilledQuantity:    r.FilledQuantity,
		AvgFillPrice:      r.AvgFillPrice,
		Status:            r.Status,
		LastSequence:      r.LastSequence,
		Revision:          r.Revision,
		Reason:            r.Reason,
		CreatedAt:         r.CreatedAt.UTC(),
		UpdatedAt:         r.UpdatedAt.UTC(),
	}
}

// mutable returns the columns a state transition may change.
func (r orderRow) mutable() map[string]any {
	return map[string]any{
		"filled_quantity": r.FilledQuantity,
		"avg_fill_price":  r.AvgFillPrice,
		"status":          r.Status,
		"last_sequence":   r.LastSequence,
		"revision":        r.Revision,
		"reason":          r.Reason,
		"updated_at":      r.UpdatedAt,
	}
}

type executionRow struct {
	ID         string          `gorm:"primaryKey;type:varchar(128)"`
	OrderID    string          `gorm:"type:varchar(64);not null;uniqueIndex:uq_order_executions_order_seq,priority:1"`
	Sequence   uint64          `gorm:"not null;uniqueIndex:uq_order_executions_order_seq,priority:2"`
	Quantity   decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	Price      decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	ExecutedAt time.Time       `gorm:"type:timestamptz;not null"`
	CreatedAt  time.Time       `gorm:"type:timestamptz;not null"`
}

func (executionRow) TableName() string {
	return "order_executions"
}

func newExecutionRow(e model.Execution) executionRow {
	return executionRow{
		ID:         e.ID,
		OrderID:    e.OrderID,
		Sequence:   e.Sequence,
		Quantity:   e.Quantity,
		Price:      e.Price,
		ExecutedAt: e.ExecutedAt,
		CreatedAt:  e.CreatedAt,
	}
}

func (r executionRow) model() model.Execution {
	return model.Execution{
		ID:         r.ID,
		OrderID:    r.OrderID,
		Quantity:   r.Quantity,
		Price:      r.Price,
		Sequence:   r.Sequence,
		ExecutedAt: r.ExecutedAt.UTC(),
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

type predictionRow struct {
	ID                 string    `gorm:"primaryKey;type:varchar(64)"`
	Symbol             string    `gorm:"type:varchar(20);not null;uniqueIndex:uq_gap_predictions_stock_date,priority:1;index"`
	SymbolName         string    `gorm:"type:varchar(100)"`
	TradingDate        time.Time `gorm:"type:date;not null;uniqueIndex:uq_gap_predictions_stock_date,priority:2;index"`
	GapRate            float64   `gorm:"not null"`
	StockOpen          float64   `gorm:"not null"`
	ProbUp             float64   `gorm:"not null"`
	ProbDown           float64   `gorm:"not null"`
	PredictedDirection int       `gorm:"type:smallint;not null"`
	ExpectedReturn     float64   `gorm:"not null"`
	ReturnIfUp         float64   `gorm:"not null"`
	ReturnIfDown       float64   `gorm:"not null"`
	MaxReturnIfUp      *float64
	TakeProfitTarget   *float64
	Signal             enum.Signal     `gorm:"type:varchar(8);not null;index"`
	Confidence         enum.Confidence `gorm:"type:varchar(8)"`
	ModelVersion       string          `gorm:"type:varchar(20);not null"`

	ActualClose      *float64
	ActualReturn     *float64
	ActualHigh       *float64
	ActualLow        *float64
	DirectionCorrect *bool
	ReturnDiff       *float64
	ActualMaxReturn  *float64
	MaxReturnDiff    *float64
	SettledAt        *time.Time `gorm:"type:timestamptz"`

	CreatedAt time.Time `gorm:"type:timestamptz;not null"`
	UpdatedAt time.Time `gorm:"type:timestamptz;not null"`
}

func (predictionRow) TableName() string {
	return "gap_predictions"
}

func newPredictionRow(p model.Prediction) predictionRow {
	return predictionRow{
		ID:                 p.ID,
		Symbol:             p.Symbol,
		SymbolName:         p.SymbolName,
		TradingDate:        p.TradingDate,
		GapRate:            p.GapRate,
		StockOpen:          p.StockOpen,
		ProbUp:             p.ProbUp,
		ProbDown:           p.ProbDown,
		PredictedDirection: p.PredictedDirection,
		ExpectedReturn:     p.ExpectedReturn,
		ReturnIfUp:         p.ReturnIfUp,
		ReturnIfDown:       p.ReturnIfDown,
		MaxReturnIfUp:      p.MaxReturnIfUp,
		TakeProfitTarget:   p.TakeProfitTarget,
		Signal:             p.Signal,
		Confidence:         p.Confidence,
		ModelVersion:       p.ModelVersion,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
}

func (r predictionRow) model() model.Prediction {
	p := model.Prediction{
		ID:                 r.ID,
		Symbol:             r.Symbol,
		SymbolName:         r.SymbolName,
		TradingDate:        r.TradingDate.UTC(),
		GapRate:            r.GapRate,
		StockOpen:          r.StockOpen,
		ProbUp:             r.ProbUp,
		ProbDown:           r.ProbDown,
		PredictedDirection: r.PredictedDirection,
		ExpectedReturn:     r.ExpectedReturn,
		ReturnIfUp:         r.ReturnIfUp,
		ReturnIfDown:       r.ReturnIfDown,
		MaxReturnIfUp:      r.MaxReturnIfUp,
		TakeProfitTarget:   r.TakeProfitTarget,
		Signal:             r.Signal,
		Confidence:         r.Confidence,
		ModelVersion:       r.ModelVersion,
		CreatedAt:          r.CreatedAt.UTC(),
		UpdatedAt:          r.UpdatedAt.UTC(),
	}
	// all-or-nothing: settled_at is written in the same statement as the rest.
	if r.SettledAt != nil && r.ActualClose != nil && r.ActualReturn != nil && r.DirectionCorrect != nil {
		s := model.Settlement{
			ActualClose:      *r.ActualClose,
			ActualReturn:     *r.ActualReturn,
			ActualHigh:       r.ActualHigh,
			ActualLow:        r.ActualLow,
			DirectionCorrect: *r.DirectionCorrect,
			ActualMaxReturn:  r.ActualMaxReturn,
			MaxReturnDiff:    r.MaxReturnDiff,
			SettledAt:        r.SettledAt.UTC(),
		}
		if r.ReturnDiff != nil {
			s.ReturnDiff = *r.ReturnDiff
		}
		p.Settlement = &s
	}
	return p
}

func settlementColumns(s model.Settlement, now time.Time) map[string]any {
	return map[string]any{
		"actual_close":      s.ActualClose,
		"actual_return":     s.ActualReturn,
		"actual_high":       s.ActualHigh,
		"actual_low":        s.ActualLow,
		"direction_correct": s.DirectionCorrect,
		"return_diff":       s.ReturnDiff,
		"actual_max_return": s.ActualMaxReturn,
		"max_return_diff":   s.MaxReturnDiff,
		"settled_at":        s.SettledAt,
		"updated_at":        now,
	}
}
