// Package memory is an in-process ledger store used by tests and paper runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yanun0323/errors"

	"tradeledger/internal/model"
	"tradeledger/internal/store"
	"tradeledger/pkg/exception"
)

var _ store.Store = (*Store)(nil)

// orderEntry is locked on its own so writers of one order never wait on
// writers of another.
type orderEntry struct {
	mu         sync.Mutex
	order      model.Order
	executions []model.Execution
}

type predictionKey struct {
	symbol string
	date   string
}

// Store keeps both aggregates in maps. mu guards the order index only;
// each order is guarded by its entry. No lock is held across a caller's
// read-modify-write cycle. Values crossing the store boundary are deep
// copied so callers never share pointers with stored state.
type Store struct {
	mu     sync.RWMutex
	orders map[string]*orderEntry

	execMu       sync.Mutex
	executionIDs map[string]struct{}

	predMu           sync.RWMutex
	predictions      map[string]model.Prediction
	predictionByDate map[predictionKey]string

	now func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		orders:           make(map[string]*orderEntry),
		executionIDs:     make(map[string]struct{}),
		predictions:      make(map[string]model.Prediction),
		predictionByDate: make(map[predictionKey]string),
		now:              func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) CreateOrder(_ context.Context, order model.Order) (string, error) {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[order.ID]; ok {
		return "", errors.Wrapf(exception.ErrDuplicateOrder, "order id: %s", order.ID)
	}
	s.orders[order.ID] = &orderEntry{order: cloneOrder(order)}
	return order.ID, nil
}

func (s *Store) entry(id string) (*orderEntry, error) {
	s.mu.RLock()
	e, ok := s.orders[id]
	s.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(exception.ErrNotFound, "order id: %s", id)
	}
	return e, nil
}

func (s *Store) GetOrder(_ context.Context, id string) (model.Order, error) {
	e, err := s.entry(id)
	if err != nil {
		return model.Order{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneOrder(e.order), nil
}

func (s *Store) ListExecutions(_ context.Context, orderID string) ([]model.Execution, error) {
	e, err := s.entry(orderID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	out := make([]model.Execution, len(e.executions))
	copy(out, e.executions)
	e.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (s *Store) AppendExecution(_ context.Context, prev, next model.Order, exec model.Execution) error {
	e, err := s.entry(prev.ID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := guard(e, prev); err != nil {
		return err
	}
	if exec.CreatedAt.IsZero() {
		exec.CreatedAt = s.now()
	}

	s.execMu.Lock()
	if _, dup := s.executionIDs[exec.ID]; dup {
		s.execMu.Unlock()
		return errors.Wrapf(exception.ErrDuplicateExecution, "execution id: %s", exec.ID)
	}
	s.executionIDs[exec.ID] = struct{}{}
	s.execMu.Unlock()

	e.executions = append(e.executions, exec)
	e.order = cloneOrder(next)
	return nil
}

func (s *Store) TransitionOrder(_ context.Context, prev, next model.Order) error {
	e, err := s.entry(prev.ID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := guard(e, prev); err != nil {
		return err
	}
	e.order = cloneOrder(next)
	return nil
}

// guard must be called with e.mu held.
func guard(e *orderEntry, prev model.Order) error {
	if !store.Matches(e.order, prev) {
		return errors.Wrapf(exception.ErrConflict, "order id: %s, revision: %d, stored revision: %d",
			prev.ID, prev.Revision, e.order.Revision)
	}
	return nil
}

func (s *Store) CreatePrediction(_ context.Context, p model.Prediction) (string, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	key := predictionKey{symbol: p.Symbol, date: p.TradingDate.Format(time.DateOnly)}

	s.predMu.Lock()
	defer s.predMu.Unlock()

	if _, ok := s.predictions[p.ID]; ok {
		return "", errors.Wrapf(exception.ErrDuplicatePrediction, "prediction id: %s", p.ID)
	}
	if id, ok := s.predictionByDate[key]; ok {
		return "", errors.Wrapf(exception.ErrDuplicatePrediction, "symbol: %s, date: %s, existing: %s",
			key.symbol, key.date, id)
	}
	s.predictions[p.ID] = clonePrediction(p)
	s.predictionByDate[key] = p.ID
	return p.ID, nil
}

func (s *Store) GetPrediction(_ context.Context, id string) (model.Prediction, error) {
	s.predMu.RLock()
	defer s.predMu.RUnlock()

	p, ok := s.predictions[id]
	if !ok {
		return model.Prediction{}, errors.Wrapf(exception.ErrNotFound, "prediction id: %s", id)
	}
	return clonePrediction(p), nil
}

func (s *Store) SettlePrediction(_ context.Context, id string, settlement model.Settlement) error {
	s.predMu.Lock()
	defer s.predMu.Unlock()

	p, ok := s.predictions[id]
	if !ok {
		return errors.Wrapf(exception.ErrNotFound, "prediction id: %s", id)
	}
	if p.IsSettled() {
		return errors.Wrapf(exception.ErrConflict, "prediction id: %s already settled", id)
	}
	p.Settlement = cloneSettlement(&settlement)
	p.UpdatedAt = s.now()
	s.predictions[id] = p
	return nil
}

func (s *Store) Close() error {
	return nil
}

func cloneOrder(o model.Order) model.Order {
	if o.LimitPrice != nil {
		price := *o.LimitPrice
		o.LimitPrice = &price
	}
	return o
}

func clonePrediction(p model.Prediction) model.Prediction {
	p.MaxReturnIfUp = cloneFloat(p.MaxReturnIfUp)
	p.TakeProfitTarget = cloneFloat(p.TakeProfitTarget)
	p.Settlement = cloneSettlement(p.Settlement)
	return p
}

func cloneSettlement(src *model.Settlement) *model.Settlement {
	if src == nil {
		return nil
	}
	dst := *src
	dst.ActualHigh = cloneFloat(src.ActualHigh)
	dst.ActualLow = cloneFloat(src.ActualLow)
	dst.ActualMaxReturn = cloneFloat(src.ActualMaxReturn)
	dst.MaxReturnDiff = cloneFloat(src.MaxReturnDiff)
	return &dst
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
