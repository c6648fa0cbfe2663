package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"tradeledger/internal/model"
	"tradeledger/internal/model/enum"
	"tradeledger/pkg/exception"
)

type createOrderRequest struct {
	OrderID    string           `json:"order_id"`
	AccountID  string           `json:"account_id"`
	StrategyID string           `json:"strategy_id"`
	Symbol     string           `json:"symbol"`
	Side       enum.OrderSide   `json:"side"`
	OrderType  enum.OrderType   `json:"order_type"`
	LimitPrice *decimal.Decimal `json:"limit_price"`
	Quantity   decimal.Decimal  `json:"quantity"`
}

type fillRequest struct {
	ExecutionID    string          `json:"execution_id"`
	Quantity       decimal.Decimal `json:"quantity"`
	Price          decimal.Decimal `json:"price"`
	SequenceNumber uint64          `json:"sequence_number"`
	ExecutedAt     time.Time       `json:"executed_at"`
}

type commandRequest struct {
	Reason string `json:"reason"`
}

type createPredictionRequest struct {
	PredictionID     string          `json:"prediction_id"`
	Symbol           string          `json:"symbol"`
	SymbolName       string          `json:"symbol_name"`
	TradingDate      string          `json:"trading_date"`
	GapRate          float64         `json:"gap_rate"`
	StockOpen        float64         `json:"stock_open"`
	ProbUp           float64         `json:"prob_up"`
	ProbDown         float64         `json:"prob_down"`
	ExpectedReturn   float64         `json:"expected_return"`
	ReturnIfUp       float64         `json:"return_if_up"`
	ReturnIfDown     float64         `json:"return_if_down"`
	MaxReturnIfUp    *float64        `json:"max_return_if_up"`
	TakeProfitTarget *float64        `json:"take_profit_target"`
	Signal           enum.Signal     `json:"signal"`
	Confidence       enum.Confidence `json:"confidence"`
	ModelVersion     string          `json:"model_version"`
}

type settlementRequest struct {
	ActualClose  *float64  `json:"actual_close"`
	ActualReturn *float64  `json:"actual_return"`
	ActualHigh   *float64  `json:"actual_high"`
	ActualLow    *float64  `json:"actual_low"`
	ObservedAt   time.Time `json:"observed_at"`
}

// predictionView flattens the settlement; unsettled fields are null.
type predictionView struct {
	ID                 string          `json:"prediction_id"`
	Symbol             string          `json:"symbol"`
	TradingDate        string          `json:"trading_date"`
	ProbUp             float64         `json:"prob_up"`
	ProbDown           float64         `json:"prob_down"`
	PredictedDirection int             `json:"predicted_direction"`
	ExpectedReturn     float64         `json:"expected_return"`
	Signal             enum.Signal     `json:"signal"`
	Confidence         enum.Confidence `json:"confidence,omitempty"`
	ModelVersion       string          `json:"model_version"`
	ActualClose        *float64        `json:"actual_close"`
	ActualReturn       *float64        `json:"actual_return"`
	ActualHigh         *float64        `json:"actual_high"`
	ActualLow          *float64        `json:"actual_low"`
	DirectionCorrect   *bool           `json:"direction_correct"`
	ReturnDiff         *float64        `json:"return_diff"`
	ActualMaxReturn    *float64        `json:"actual_max_return"`
	MaxReturnDiff      *float64        `json:"max_return_diff"`
	SettledAt          *time.Time      `json:"settled_at"`
}

func newPredictionView(p model.Prediction) predictionView {
	v := predictionView{
		ID:                 p.ID,
		Symbol:             p.Symbol,
		TradingDate:        p.TradingDate.Format(time.DateOnly),
		ProbUp:             p.ProbUp,
		ProbDown:           p.ProbDown,
		PredictedDirection: p.PredictedDirection,
		ExpectedReturn:     p.ExpectedReturn,
		Signal:             p.Signal,
		Confidence:         p.Confidence,
		ModelVersion:       p.ModelVersion,
	}
	if s := p.Settlement; s != nil {
		v.ActualClose = &s.ActualClose
		v.ActualReturn = &s.ActualReturn
		v.ActualHigh = s.ActualHigh
		v.ActualLow = s.ActualLow
		v.DirectionCorrect = &s.DirectionCorrect
		v.ReturnDiff = &s.ReturnDiff
		v.ActualMaxReturn = s.ActualMaxReturn
		v.MaxReturnDiff = s.MaxReturnDiff
		v.SettledAt = &s.SettledAt
	}
	return v
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		writeError(c, errors.Wrap(exception.ErrInvalidArgument, err.Error()))
		return false
	}
	return true
}

func (s *Server) getMetrics(c *gin.Context) {
	snap := s.metrics.Snapshot()
	accepted := make(map[string]uint64, len(snap.Accepted))
	for k, v := range snap.Accepted {
		accepted[k.String()] = v
	}
	rejected := make(map[string]uint64, len(snap.Rejected))
	for k, v := range snap.Rejected {
		rejected[k.String()] = v
	}
	reasons := make(map[string]uint64, len(snap.Reasons))
	for k, v := range snap.Reasons {
		reasons[k.String()] = v
	}
	c.JSON(http.StatusOK, gin.H{
		"accepted":      accepted,
		"rejected":      rejected,
		"reasons":       reasons,
		"cas_retries":   snap.CASRetries,
		"redeliveries":  snap.Redeliveries,
		"dead_letters":  snap.DeadLetters,
		"queue_drops":   snap.QueueDrops,
		"queue_closed":  snap.QueueClosed,
		"handle_avg_ns": snap.HandleLatency.Avg.Nanoseconds(),
	})
}

func (s *Server) getOrder(c *gin.Context) {
	o, err := s.orders.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (s *Server) listExecutions(c *gin.Context) {
	execs, err := s.orders.Executions(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"executions": execs})
}

func (s *Server) createOrder(c *gin.Context) {
	var req createOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	o, err := s.orders.Create(c.Request.Context(), model.Order{
		ID:                strings.TrimSpace(req.OrderID),
		AccountID:         req.AccountID,
		StrategyID:        req.StrategyID,
		Symbol:            req.Symbol,
		Side:              req.Side,
		Type:              req.OrderType,
		LimitPrice:        req.LimitPrice,
		RequestedQuantity: req.Quantity,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (s *Server) applyFill(c *gin.Context) {
	var req fillRequest
	if !bindJSON(c, &req) {
		return
	}
	o, err := s.orders.ApplyFill(c.Request.Context(), model.Fill{
		OrderID:     c.Param("id"),
		ExecutionID: strings.TrimSpace(req.ExecutionID),
		Quantity:    req.Quantity,
		Price:       req.Price,
		Sequence:    req.SequenceNumber,
		ExecutedAt:  req.ExecutedAt.UTC(),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (s *Server) cancelOrder(c *gin.Context) {
	s.command(c, s.orders.Cancel)
}

func (s *Server) rejectOrder(c *gin.Context) {
	s.command(c, s.orders.Reject)
}

func (s *Server) command(c *gin.Context, apply func(ctx context.Context, cmd model.Command) (model.Order, error)) {
	var req commandRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	o, err := apply(c.Request.Context(), model.Command{OrderID: c.Param("id"), Reason: req.Reason})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (s *Server) getPrediction(c *gin.Context) {
	p, err := s.predictions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPredictionView(p))
}

func (s *Server) createPrediction(c *gin.Context) {
	var req createPredictionRequest
	if !bindJSON(c, &req) {
		return
	}
	date, err := time.Parse(time.DateOnly, req.TradingDate)
	if err != nil {
		writeError(c, errors.Wrapf(exception.ErrInvalidArgument, "trading date %q", req.TradingDate))
		return
	}
	p, err := s.predictions.Create(c.Request.Context(), model.Prediction{
		ID:               strings.TrimSpace(req.PredictionID),
		Symbol:           req.Symbol,
		SymbolName:       req.SymbolName,
		TradingDate:      date,
		GapRate:          req.GapRate,
		StockOpen:        req.StockOpen,
		ProbUp:           req.ProbUp,
		ProbDown:         req.ProbDown,
		ExpectedReturn:   req.ExpectedReturn,
		ReturnIfUp:       req.ReturnIfUp,
		ReturnIfDown:     req.ReturnIfDown,
		MaxReturnIfUp:    req.MaxReturnIfUp,
		TakeProfitTarget: req.TakeProfitTarget,
		Signal:           req.Signal,
		Confidence:       req.Confidence,
		ModelVersion:     req.ModelVersion,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newPredictionView(p))
}

func (s *Server) settlePrediction(c *gin.Context) {
	var req settlementRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.ActualClose == nil || req.ActualReturn == nil {
		writeError(c, errors.Wrap(exception.ErrInvalidArgument, "actual close and actual return are required"))
		return
	}
	observedAt := req.ObservedAt.UTC()
	if observedAt.IsZero() {
		observedAt = s.now()
	}
	p, err := s.predictions.Settle(c.Request.Context(), model.Observation{
		PredictionID: c.Param("id"),
		ActualClose:  *req.ActualClose,
		ActualReturn: *req.ActualReturn,
		ActualHigh:   req.ActualHigh,
		ActualLow:    req.ActualLow,
		ObservedAt:   observedAt,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPredictionView(p))
}
