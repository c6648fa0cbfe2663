package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeledger/internal/model/enum"
	"tradeledger/internal/obs"
	"tradeledger/internal/order"
	"tradeledger/internal/prediction"
	"tradeledger/internal/store/memory"
)

func setupServer(t *testing.T) http.Handler {
	t.Helper()
	s := memory.New()
	metrics := obs.NewMetrics()
	return NewServer(
		order.NewUsecase(s, order.DefaultMaxAttempts, metrics),
		prediction.NewUsecase(s, metrics),
		metrics,
	).Handler()
}

func do(t *testing.T, h http.Handler, role enum.Role, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if role.IsAvailable() {
		req.Header.Set(RoleHeader, role.String())
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	out := map[string]any{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func TestOrderRoutes(t *testing.T) {
	h := setupServer(t)

	code, body := do(t, h, enum.RoleUser, http.MethodPost, "/orders",
		`{"order_id":"o1","account_id":"acc","symbol":"005930","side":"BUY","order_type":"MARKET","quantity":"100"}`)
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, "o1", body["order_id"])
	assert.Equal(t, "PENDING", body["status"])

	code, body = do(t, h, enum.RoleUser, http.MethodPost, "/orders/o1/fills",
		`{"execution_id":"e1","quantity":"40","price":"70000","sequence_number":1}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "PARTIALLY_FILLED", body["status"])

	code, body = do(t, h, enum.RoleMaster, http.MethodPost, "/orders/o1/fills",
		`{"execution_id":"e2","quantity":"60","price":"70100","sequence_number":2}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "FILLED", body["status"])

	code, body = do(t, h, enum.RoleUser, http.MethodPost, "/orders/o1/fills",
		`{"execution_id":"e3","quantity":"1","price":"70100","sequence_number":3}`)
	require.Equal(t, http.StatusConflict, code, body)
	assert.Equal(t, "overfill", body["reason"])
	assert.Equal(t, false, body["retryable"])

	code, body = do(t, h, enum.RoleMock, http.MethodGet, "/orders/o1", "")
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "100", body["filled_quantity"])

	code, body = do(t, h, enum.RoleMock, http.MethodGet, "/orders/o1/executions", "")
	require.Equal(t, http.StatusOK, code, body)
	assert.Len(t, body["executions"], 2)

	code, body = do(t, h, enum.RoleUser, http.MethodPost, "/orders/o1/cancel", "")
	require.Equal(t, http.StatusConflict, code, body)
	assert.Equal(t, "invalid_transition", body["reason"])

	code, _ = do(t, h, enum.RoleUser, http.MethodGet, "/orders/missing", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, h, enum.RoleUser, http.MethodPost, "/orders",
		`{"symbol":"005930","side":"BUY","order_type":"MARKET","quantity":"0"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, h, enum.RoleUser, http.MethodPost, "/orders",
		`{"symbol":"005930","side":"SHORT","order_type":"MARKET","quantity":"1"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCancelWithReason(t *testing.T) {
	h := setupServer(t)

	code, body := do(t, h, enum.RoleUser, http.MethodPost, "/orders",
		`{"order_id":"o2","symbol":"000660","side":"SELL","order_type":"LIMIT","limit_price":"150000","quantity":"5"}`)
	require.Equal(t, http.StatusCreated, code, body)

	code, body = do(t, h, enum.RoleUser, http.MethodPost, "/orders/o2/cancel", `{"reason":"strategy stop"}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "CANCELLED", body["status"])
	assert.Equal(t, "strategy stop", body["reason"])

	code, body = do(t, h, enum.RoleUser, http.MethodPost, "/orders/o2/reject", "")
	require.Equal(t, http.StatusConflict, code, body)
}

func TestPredictionRoutes(t *testing.T) {
	h := setupServer(t)

	code, body := do(t, h, enum.RoleUser, http.MethodPost, "/predictions",
		`{"prediction_id":"p1","symbol":"005930","trading_date":"2026-03-02","prob_up":0.7,"expected_return":0.02,"stock_open":70000,"signal":"BUY"}`)
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, "2026-03-02", body["trading_date"])
	assert.Nil(t, body["direction_correct"])
	assert.Nil(t, body["actual_close"])

	code, body = do(t, h, enum.RoleUser, http.MethodPost, "/predictions/p1/settlement",
		`{"actual_close":69300,"actual_return":-0.01}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, false, body["direction_correct"])
	assert.Equal(t, 69300.0, body["actual_close"])

	code, body = do(t, h, enum.RoleUser, http.MethodPost, "/predictions/p1/settlement",
		`{"actual_close":69300,"actual_return":-0.01}`)
	require.Equal(t, http.StatusOK, code, body)

	code, body = do(t, h, enum.RoleUser, http.MethodPost, "/predictions/p1/settlement",
		`{"actual_close":69300,"actual_return":0.01}`)
	require.Equal(t, http.StatusConflict, code, body)
	assert.Equal(t, "already_settled", body["reason"])

	code, body = do(t, h, enum.RoleMock, http.MethodGet, "/predictions/p1", "")
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, -0.01, body["actual_return"])

	code, _ = do(t, h, enum.RoleUser, http.MethodPost, "/predictions/p1/settlement", `{"actual_close":69300}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, h, enum.RoleUser, http.MethodPost, "/predictions",
		`{"symbol":"005930","trading_date":"03/02/2026","prob_up":0.5}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, h, enum.RoleUser, http.MethodPost, "/predictions/missing/settlement",
		`{"actual_close":1,"actual_return":0}`)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestRoleCapability(t *testing.T) {
	h := setupServer(t)
	orderBody := `{"order_id":"o1","symbol":"005930","side":"BUY","order_type":"MARKET","quantity":"1"}`

	for _, role := range []enum.Role{enum.RoleMock, 0} {
		code, _ := do(t, h, role, http.MethodPost, "/orders", orderBody)
		assert.Equal(t, http.StatusForbidden, code, role.String())
		code, _ = do(t, h, role, http.MethodPost, "/predictions/p1/settlement", `{"actual_close":1,"actual_return":0}`)
		assert.Equal(t, http.StatusForbidden, code, role.String())
	}

	code, _ := do(t, h, enum.RoleMock, http.MethodGet, "/orders/o1", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, body := do(t, h, 0, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	code, body = do(t, h, enum.RoleMock, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "cas_retries")
}
