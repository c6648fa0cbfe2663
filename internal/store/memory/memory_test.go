package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeledger/internal/model"
	"tradeledger/internal/model/enum"
	"tradeledger/pkg/exception"
)

func TestOrderCompareAndSet(t *testing.T) {
	ctx := context.Background()
	s := New()

	id, err := s.CreateOrder(ctx, model.Order{
		Symbol:            "005930",
		Status:            enum.OrderStatusPending,
		RequestedQuantity: decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	_, err = s.CreateOrder(ctx, model.Order{ID: id})
	require.ErrorIs(t, err, exception.ErrDuplicateOrder)

	prev, err := s.GetOrder(ctx, id)
	require.NoError(t, err)

	next := prev
	next.FilledQuantity = decimal.NewFromInt(4)
	next.Status = enum.OrderStatusPartiallyFilled
	next.LastSequence = 1
	next.Revision = 1
	exec := model.Execution{ID: "e1", OrderID: id, Quantity: decimal.NewFromInt(4), Sequence: 1}
	require.NoError(t, s.AppendExecution(ctx, prev, next, exec))

	// stale prev loses.
	stale := next
	stale.FilledQuantity = decimal.NewFromInt(8)
	stale.Revision = 2
	err = s.AppendExecution(ctx, prev, stale, model.Execution{ID: "e2", OrderID: id, Sequence: 2})
	require.ErrorIs(t, err, exception.ErrConflict)
	err = s.TransitionOrder(ctx, prev, stale)
	require.ErrorIs(t, err, exception.ErrConflict)

	// execution ids are unique across orders.
	after := next
	after.Revision = 2
	err = s.AppendExecution(ctx, next, after, model.Execution{ID: "e1", OrderID: id, Sequence: 2})
	require.ErrorIs(t, err, exception.ErrDuplicateExecution)

	got, err := s.GetOrder(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.Revision)
	assert.True(t, got.FilledQuantity.Equal(decimal.NewFromInt(4)))

	execs, err := s.ListExecutions(ctx, id)
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.False(t, execs[0].CreatedAt.IsZero())

	_, err = s.GetOrder(ctx, "missing")
	require.ErrorIs(t, err, exception.ErrNotFound)
	_, err = s.ListExecutions(ctx, "missing")
	require.ErrorIs(t, err, exception.ErrNotFound)
	err = s.TransitionOrder(ctx, model.Order{ID: "missing"}, model.Order{ID: "missing"})
	require.ErrorIs(t, err, exception.ErrNotFound)
}

func TestListExecutionsOrdered(t *testing.T) {
	ctx := context.Background()
	s := New()
	id, err := s.CreateOrder(ctx, model.Order{ID: "o1"})
	require.NoError(t, err)
	require.Equal(t, "o1", id)

	cur, err := s.GetOrder(ctx, id)
	require.NoError(t, err)
	for _, seq := range []uint64{7, 2, 5} {
		next := cur
		next.Revision++
		require.NoError(t, s.AppendExecution(ctx, cur, next, model.Execution{ID: decimal.NewFromInt(int64(seq)).String(), Sequence: seq}))
		cur = next
	}

	execs, err := s.ListExecutions(ctx, id)
	require.NoError(t, err)
	require.Len(t, execs, 3)
	assert.Equal(t, []uint64{2, 5, 7}, []uint64{execs[0].Sequence, execs[1].Sequence, execs[2].Sequence})
}

func TestPredictionSettleOnce(t *testing.T) {
	ctx := context.Background()
	s := New()
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	target := 3.5
	id, err := s.CreatePrediction(ctx, model.Prediction{Symbol: "005930", TradingDate: date, TakeProfitTarget: &target})
	require.NoError(t, err)
	target = 9
	created, err := s.GetPrediction(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3.5, *created.TakeProfitTarget)
	*created.TakeProfitTarget = 7

	_, err = s.CreatePrediction(ctx, model.Prediction{Symbol: "005930", TradingDate: date})
	require.ErrorIs(t, err, exception.ErrDuplicatePrediction)
	_, err = s.CreatePrediction(ctx, model.Prediction{ID: id, Symbol: "000660", TradingDate: date})
	require.ErrorIs(t, err, exception.ErrDuplicatePrediction)

	high, maxReturn := 105.0, 5.0
	settlement := model.Settlement{ActualClose: 101, ActualReturn: 1, ActualHigh: &high, ActualMaxReturn: &maxReturn, DirectionCorrect: true}
	require.NoError(t, s.SettlePrediction(ctx, id, settlement))

	// caller-owned pointers are not shared with the store.
	high, maxReturn = 200, 50
	got, err := s.GetPrediction(ctx, id)
	require.NoError(t, err)
	require.True(t, got.IsSettled())
	assert.Equal(t, 105.0, *got.Settlement.ActualHigh)
	assert.Equal(t, 5.0, *got.Settlement.ActualMaxReturn)
	*got.Settlement.ActualHigh = 300
	*got.Settlement.ActualMaxReturn = 30

	again, err := s.GetPrediction(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 105.0, *again.Settlement.ActualHigh)
	assert.Equal(t, 5.0, *again.Settlement.ActualMaxReturn)
	assert.Equal(t, 3.5, *again.TakeProfitTarget)

	err = s.SettlePrediction(ctx, id, settlement)
	require.ErrorIs(t, err, exception.ErrConflict)

	err = s.SettlePrediction(ctx, "missing", settlement)
	require.ErrorIs(t, err, exception.ErrNotFound)
	_, err = s.GetPrediction(ctx, "missing")
	require.ErrorIs(t, err, exception.ErrNotFound)

	require.NoError(t, s.Close())
}

func TestOrderWritersIndependent(t *testing.T) {
	ctx := context.Background()
	s := New()

	busy, err := s.CreateOrder(ctx, model.Order{ID: "busy"})
	require.NoError(t, err)
	idle, err := s.CreateOrder(ctx, model.Order{ID: "idle"})
	require.NoError(t, err)

	e, err := s.entry(busy)
	require.NoError(t, err)
	e.mu.Lock()
	defer e.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		prev, err := s.GetOrder(ctx, idle)
		if err != nil {
			done <- err
			return
		}
		next := prev
		next.Revision++
		done <- s.TransitionOrder(ctx, prev, next)
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("write to idle order blocked by a held busy order")
	}
}

func TestOrderLimitPriceNotShared(t *testing.T) {
	ctx := context.Background()
	s := New()

	price := decimal.NewFromInt(100)
	id, err := s.CreateOrder(ctx, model.Order{ID: "o1", LimitPrice: &price})
	require.NoError(t, err)
	price = decimal.NewFromInt(1)

	got, err := s.GetOrder(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got.LimitPrice)
	assert.True(t, got.LimitPrice.Equal(decimal.NewFromInt(100)))
}
