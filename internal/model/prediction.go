package model

import (
	"time"

	"tradeledger/internal/model/enum"
)

// Prediction is a gap prediction for one symbol on one trading date.
// Settlement is nil until the post-market observation is attached.
// PredictedDirection is 1 for an expected up move and 0 otherwise.
type Prediction struct {
	ID                 string          `json:"prediction_id"`
	Symbol             string          `json:"symbol"`
	SymbolName         string          `json:"symbol_name,omitempty"`
	TradingDate        time.Time       `json:"trading_date"`
	GapRate            float64         `json:"gap_rate"`
	StockOpen          float64         `json:"stock_open"`
	ProbUp             float64         `json:"prob_up"`
	ProbDown           float64         `json:"prob_down"`
	PredictedDirection int             `json:"predicted_direction"`
	ExpectedReturn     float64         `json:"expected_return"`
	ReturnIfUp         float64         `json:"return_if_up"`
	ReturnIfDown       float64         `json:"return_if_down"`
	MaxReturnIfUp      *float64        `json:"max_return_if_up,omitempty"`
	TakeProfitTarget   *float64        `json:"take_profit_target,omitempty"`
	Signal             enum.Signal     `json:"signal"`
	Confidence         enum.Confidence `json:"confidence,omitempty"`
	ModelVersion       string          `json:"model_version"`
	Settlement         *Settlement     `json:"settlement,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// IsSettled reports whether the settlement fields are populated.
func (p Prediction) IsSettled() bool {
	return p.Settlement != nil
}

// Observation is the post-market outcome reported for a prediction.
type Observation struct {
	PredictionID string    `json:"prediction_id"`
	ActualClose  float64   `json:"actual_close"`
	ActualReturn float64   `json:"actual_return"`
	ActualHigh   *float64  `json:"actual_high,omitempty"`
	ActualLow    *float64  `json:"actual_low,omitempty"`
	ObservedAt   time.Time `json:"observed_at"`
}

// Settlement is the observed outcome plus the fields derived from it.
type Settlement struct {
	ActualClose      float64   `json:"actual_close"`
	ActualReturn     float64   `json:"actual_return"`
	ActualHigh       *float64  `json:"actual_high,omitempty"`
	ActualLow        *float64  `json:"actual_low,omitempty"`
	DirectionCorrect bool      `json:"direction_correct"`
	ReturnDiff       float64   `json:"return_diff"`
	ActualMaxReturn  *float64  `json:"actual_max_return,omitempty"`
	MaxReturnDiff    *float64  `json:"max_return_diff,omitempty"`
	SettledAt        time.Time `json:"settled_at"`
}

// Matches reports whether o carries the same observed values as s.
// ObservedAt is delivery metadata and is not compared.
func (s Settlement) Matches(o Observation) bool {
	return s.ActualClose == o.ActualClose &&
		s.ActualReturn == o.ActualReturn &&
		sameOptional(s.ActualHigh, o.ActualHigh) &&
		sameOptional(s.ActualLow, o.ActualLow)
}

func sameOptional(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
