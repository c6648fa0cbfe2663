package prediction

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeledger/internal/model"
	"tradeledger/internal/model/enum"
	"tradeledger/internal/obs"
	"tradeledger/internal/store/memory"
	"tradeledger/pkg/exception"
)

var tradingDate = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func createPrediction(t *testing.T, use *Usecase, symbol string, expected float64) model.Prediction {
	t.Helper()
	p, err := use.Create(context.Background(), model.Prediction{
		Symbol:         symbol,
		TradingDate:    tradingDate,
		ProbUp:         0.7,
		ExpectedReturn: expected,
		StockOpen:      10000,
	})
	require.NoError(t, err)
	require.NotEmpty(t, p.ID)
	return p
}

func TestUsecaseCreate(t *testing.T) {
	ctx := context.Background()
	use := NewUsecase(memory.New(), obs.NewMetrics())

	p, err := use.Create(ctx, model.Prediction{
		Symbol:      " 005930 ",
		TradingDate: time.Date(2026, 3, 2, 15, 30, 0, 0, time.FixedZone("KST", 9*3600)),
		ProbUp:      0.25,
	})
	require.NoError(t, err)
	assert.Equal(t, "005930", p.Symbol)
	assert.Equal(t, tradingDate, p.TradingDate)
	assert.InDelta(t, 0.75, p.ProbDown, 1e-12)
	assert.Equal(t, 0, p.PredictedDirection)
	assert.Equal(t, enum.SignalHold, p.Signal)
	assert.Equal(t, defaultModelVersion, p.ModelVersion)
	assert.False(t, p.IsSettled())

	got, err := use.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, 0, got.PredictedDirection)

	up, err := use.Create(ctx, model.Prediction{Symbol: "000660", TradingDate: tradingDate, ProbUp: 0.6})
	require.NoError(t, err)
	assert.Equal(t, 1, up.PredictedDirection)

	_, err = use.Create(ctx, model.Prediction{Symbol: "005930", TradingDate: tradingDate, ProbUp: 0.3})
	require.ErrorIs(t, err, exception.ErrDuplicatePrediction)

	invalid := []model.Prediction{
		{Symbol: "", TradingDate: tradingDate},
		{Symbol: "000660"},
		{Symbol: "000660", TradingDate: tradingDate, ProbUp: 1.2},
		{Symbol: "000660", TradingDate: tradingDate, ProbUp: -0.1},
		{Symbol: "000660", TradingDate: tradingDate, ProbUp: 0.4, ProbDown: 3},
	}
	for _, p := range invalid {
		_, err := use.Create(ctx, p)
		require.ErrorIs(t, err, exception.ErrInvalidArgument, "%+v", p)
	}
}

func TestUsecaseSettleScenario(t *testing.T) {
	ctx := context.Background()
	use := NewUsecase(memory.New(), obs.NewMetrics())
	p := createPrediction(t, use, "005930", 0.02)

	settled, err := use.Settle(ctx, model.Observation{PredictionID: p.ID, ActualClose: 9900, ActualReturn: -0.01})
	require.NoError(t, err)
	require.True(t, settled.IsSettled())
	assert.False(t, settled.Settlement.DirectionCorrect)
	assert.InDelta(t, 0.03, settled.Settlement.ReturnDiff, 1e-12)

	again, err := use.Settle(ctx, model.Observation{
		PredictionID: p.ID,
		ActualClose:  9900,
		ActualReturn: -0.01,
		ObservedAt:   time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, settled.Settlement.SettledAt, again.Settlement.SettledAt)

	_, err = use.Settle(ctx, model.Observation{PredictionID: p.ID, ActualClose: 9900, ActualReturn: 0.01})
	require.ErrorIs(t, err, exception.ErrAlreadySettled)

	_, err = use.Settle(ctx, model.Observation{PredictionID: p.ID, ActualClose: 9900, ActualReturn: -0.01, ActualHigh: ptr(10100)})
	require.ErrorIs(t, err, exception.ErrAlreadySettled)

	stored, err := use.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, -0.01, stored.Settlement.ActualReturn)
	assert.Nil(t, stored.Settlement.ActualHigh)
}

func TestUsecaseSettleErrors(t *testing.T) {
	ctx := context.Background()
	use := NewUsecase(memory.New(), nil)

	_, err := use.Settle(ctx, model.Observation{PredictionID: "missing", ActualClose: 1})
	require.ErrorIs(t, err, exception.ErrNotFound)

	p := createPrediction(t, use, "000660", 1)
	_, err = use.Settle(ctx, model.Observation{PredictionID: p.ID, ActualClose: 0})
	require.ErrorIs(t, err, exception.ErrInvalidArgument)

	stored, err := use.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsSettled())
}

func TestUsecaseConcurrentSettle(t *testing.T) {
	ctx := context.Background()
	use := NewUsecase(memory.New(), obs.NewMetrics())
	p := createPrediction(t, use, "035420", 1)

	const n = 16
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ret := 1.5
			if i%2 == 1 {
				ret = -1.5
			}
			_, errs[i] = use.Settle(ctx, model.Observation{PredictionID: p.ID, ActualClose: 10150, ActualReturn: ret})
		}(i)
	}
	wg.Wait()

	stored, err := use.Get(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, stored.IsSettled())

	winner := stored.Settlement.ActualReturn
	for i, err := range errs {
		ret := 1.5
		if i%2 == 1 {
			ret = -1.5
		}
		if ret == winner {
			assert.NoError(t, err, "delivery %d", i)
		} else {
			assert.ErrorIs(t, err, exception.ErrAlreadySettled, "delivery %d", i)
		}
	}
}
