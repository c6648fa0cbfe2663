package prediction

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"tradeledger/internal/model"
	"tradeledger/pkg/exception"
)

func ptr(v float64) *float64 { return &v }

func TestDirectionCorrect(t *testing.T) {
	testCases := []struct {
		expected, actual float64
		want             bool
	}{
		{0.02, -0.01, false},
		{0.02, 0.01, true},
		{-0.5, -3, true},
		{-0.5, 1, false},
		{0, 0, true},
		{0, 0.01, false},
		{0.01, 0, false},
		{-0.01, 0, false},
		{math.Copysign(0, -1), 0, true},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.want, DirectionCorrect(tc.expected, tc.actual), "expected %v actual %v", tc.expected, tc.actual)
	}
}

func TestDirectionCorrectMatchesSign(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		expected := rapid.Float64Range(-100, 100).Draw(t, "expected")
		actual := rapid.Float64Range(-100, 100).Draw(t, "actual")

		want := (expected > 0 && actual > 0) || (expected < 0 && actual < 0) || (expected == 0 && actual == 0)
		if DirectionCorrect(expected, actual) != want {
			t.Fatalf("expected %v actual %v: got %v", expected, actual, !want)
		}
	})
}

func TestPredictedDirection(t *testing.T) {
	cases := []struct {
		up, down float64
		want     int
	}{
		{0.7, 0.3, 1},
		{0.3, 0.7, 0},
		{0.5, 0.5, 1},
		{0, 0, 1},
		{0.2, 0.1, 1},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, PredictedDirection(c.up, c.down), "up %v down %v", c.up, c.down)
	}
}

func TestReconcile(t *testing.T) {
	now := time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC)
	p := model.Prediction{
		ID:             "p1",
		ExpectedReturn: 2.5,
		StockOpen:      50000,
		MaxReturnIfUp:  ptr(4),
	}

	s, err := Reconcile(p, model.Observation{
		PredictionID: "p1",
		ActualClose:  51000,
		ActualReturn: 2,
		ActualHigh:   ptr(52000),
		ActualLow:    ptr(49500),
	}, now)
	require.NoError(t, err)

	assert.True(t, s.DirectionCorrect)
	assert.InDelta(t, 0.5, s.ReturnDiff, 1e-9)
	require.NotNil(t, s.ActualMaxReturn)
	assert.InDelta(t, 4.0, *s.ActualMaxReturn, 1e-9)
	require.NotNil(t, s.MaxReturnDiff)
	assert.InDelta(t, 0.0, *s.MaxReturnDiff, 1e-9)
	assert.Equal(t, now, s.SettledAt)

	// without high the max-return fields stay empty.
	s, err = Reconcile(p, model.Observation{ActualClose: 49000, ActualReturn: -2}, now)
	require.NoError(t, err)
	assert.False(t, s.DirectionCorrect)
	assert.Nil(t, s.ActualMaxReturn)
	assert.Nil(t, s.MaxReturnDiff)
}

func TestReconcileInvalidObservation(t *testing.T) {
	p := model.Prediction{ID: "p1", ExpectedReturn: 1}

	testCases := []struct {
		desc string
		obs  model.Observation
	}{
		{"zero close", model.Observation{ActualClose: 0}},
		{"negative close", model.Observation{ActualClose: -10}},
		{"nan close", model.Observation{ActualClose: math.NaN()}},
		{"inf return", model.Observation{ActualClose: 10, ActualReturn: math.Inf(1)}},
		{"nan return", model.Observation{ActualClose: 10, ActualReturn: math.NaN()}},
		{"zero high", model.Observation{ActualClose: 10, ActualHigh: ptr(0)}},
		{"negative low", model.Observation{ActualClose: 10, ActualLow: ptr(-1)}},
		{"low above high", model.Observation{ActualClose: 10, ActualHigh: ptr(11), ActualLow: ptr(12)}},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := Reconcile(p, tc.obs, time.Now())
			require.ErrorIs(t, err, exception.ErrInvalidArgument)
		})
	}
}
