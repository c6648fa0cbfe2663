// Package api exposes the ledger over HTTP for strategy and reporting
// collaborators.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yanun0323/logs"

	"tradeledger/internal/model"
	"tradeledger/internal/model/enum"
	"tradeledger/internal/obs"
	"tradeledger/pkg/exception"
)

// RoleHeader carries the caller role resolved by the upstream gateway.
const RoleHeader = "X-Role"

// Orders is the order side of the ledger.
type Orders interface {
	Create(ctx context.Context, o model.Order) (model.Order, error)
	Get(ctx context.Context, id string) (model.Order, error)
	Executions(ctx context.Context, id string) ([]model.Execution, error)
	ApplyFill(ctx context.Context, fill model.Fill) (model.Order, error)
	Cancel(ctx context.Context, cmd model.Command) (model.Order, error)
	Reject(ctx context.Context, cmd model.Command) (model.Order, error)
}

// Predictions is the prediction side of the ledger.
type Predictions interface {
	Create(ctx context.Context, p model.Prediction) (model.Prediction, error)
	Get(ctx context.Context, id string) (model.Prediction, error)
	Settle(ctx context.Context, obs model.Observation) (model.Prediction, error)
}

// Server wires gin routes to the ledger usecases.
type Server struct {
	orders      Orders
	predictions Predictions
	metrics     *obs.Metrics
	engine      *gin.Engine
	now         func() time.Time
}

func NewServer(orders Orders, predictions Predictions, metrics *obs.Metrics) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		orders:      orders,
		predictions: predictions,
		metrics:     metrics,
		engine:      gin.New(),
		now:         func() time.Time { return time.Now().UTC() },
	}
	s.engine.Use(gin.Recovery(), resolveRole())
	s.routes()
	return s
}

// Handler returns the http.Handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/metrics", s.getMetrics)

	orders := s.engine.Group("/orders")
	orders.GET("/:id", s.getOrder)
	orders.GET("/:id/executions", s.listExecutions)
	orders.POST("", requireMutation(), s.createOrder)
	orders.POST("/:id/fills", requireMutation(), s.applyFill)
	orders.POST("/:id/cancel", requireMutation(), s.cancelOrder)
	orders.POST("/:id/reject", requireMutation(), s.rejectOrder)

	predictions := s.engine.Group("/predictions")
	predictions.GET("/:id", s.getPrediction)
	predictions.POST("", requireMutation(), s.createPrediction)
	predictions.POST("/:id/settlement", requireMutation(), s.settlePrediction)
}

// Run serves on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logs.Infof("api: listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// writeError maps the ledger taxonomy to HTTP status codes.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, exception.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, exception.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, exception.ErrConflict):
		status = http.StatusServiceUnavailable
	case exception.Rejection(err):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		logs.Errorf("api: %s %s, err: %+v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{
		"error":     err.Error(),
		"reason":    obs.ReasonOf(err).String(),
		"retryable": exception.Retryable(err),
	})
}

func resolveRole() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := enum.ParseRole(c.GetHeader(RoleHeader))
		c.Set("role", role)
		c.Next()
	}
}

// requireMutation is the capability check for ledger writes. The role was
// resolved upstream; MOCK and unknown callers are read-only.
func requireMutation() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := c.Get("role")
		if r, ok := role.(enum.Role); !ok || !r.CanMutate() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "role may not modify the ledger"})
			return
		}
		c.Next()
	}
}
