// Package pg is the PostgreSQL ledger store.
package pg

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/yanun0323/errors"
	"gorm.io/gorm"

	"tradeledger/internal/model"
	"tradeledger/internal/store"
	"tradeledger/pkg/exception"
)

var _ store.Store = (*Store)(nil)

// errCASMissed rolls back a transaction whose guarded update matched no row.
var errCASMissed = stderrors.New("compare-and-set matched no row")

// Store keeps orders, executions and predictions in PostgreSQL. Order
// mutations are guarded by revision and filled quantity in the WHERE clause
// of a single UPDATE, so concurrent writers never hold row locks across a
// caller's read-modify-write.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// New wraps db. When migrate is set the three tables are created or altered.
func New(ctx context.Context, db *gorm.DB, migrate bool) (*Store, error) {
	if db == nil {
		return nil, exception.ErrNilInstance
	}
	if migrate {
		if err := db.WithContext(ctx).AutoMigrate(&orderRow{}, &executionRow{}, &predictionRow{}); err != nil {
			return nil, errors.Wrap(err, "auto migrate ledger tables")
		}
	}
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *Store) CreateOrder(ctx context.Context, order model.Order) (string, error) {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	row := newOrderRow(order)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if stderrors.Is(err, gorm.ErrDuplicatedKey) {
			return "", errors.Wrapf(exception.ErrDuplicateOrder, "order id: %s", order.ID)
		}
		return "", errors.Wrap(err, "insert order").With("order_id", order.ID)
	}
	return order.ID, nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (model.Order, error) {
	var row orderRow
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, errors.Wrapf(exception.ErrNotFound, "order id: %s", id)
	}
	if err != nil {
		return model.Order{}, errors.Wrap(err, "select order")
	}
	return row.model(), nil
}

func (s *Store) ListExecutions(ctx context.Context, orderID string) ([]model.Execution, error) {
	if _, err := s.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}
	var rows []executionRow
	err := s.db.WithContext(ctx).Where("order_id = ?", orderID).Order("sequence ASC").Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "select executions")
	}
	out := make([]model.Execution, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out, nil
}

func (s *Store) AppendExecution(ctx context.Context, prev, next model.Order, exec model.Execution) error {
	if exec.CreatedAt.IsZero() {
		exec.CreatedAt = s.now()
	}
	execRow := newExecutionRow(exec)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := casOrder(tx, prev, next); err != nil {
			return err
		}
		return tx.Create(&execRow).Error
	})
	return s.translate(ctx, prev.ID, err, func() error {
		return errors.Wrapf(exception.ErrDuplicateExecution, "execution id: %s", exec.ID)
	})
}

func (s *Store) TransitionOrder(ctx context.Context, prev, next model.Order) error {
	err := casOrder(s.db.WithContext(ctx), prev, next)
	return s.translate(ctx, prev.ID, err, nil)
}

func casOrder(tx *gorm.DB, prev, next model.Order) error {
	res := tx.Model(&orderRow{}).
		Where("id = ? AND revision = ? AND filled_quantity = ?", prev.ID, prev.Revision, prev.FilledQuantity).
		Updates(newOrderRow(next).mutable())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errCASMissed
	}
	return nil
}

// translate maps a failed guarded write to the ledger taxonomy.
func (s *Store) translate(ctx context.Context, orderID string, err error, duplicate func() error) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, errCASMissed):
		if _, gerr := s.GetOrder(ctx, orderID); gerr != nil {
			return gerr
		}
		return errors.Wrapf(exception.ErrConflict, "order id: %s", orderID)
	case stderrors.Is(err, gorm.ErrDuplicatedKey) && duplicate != nil:
		return duplicate()
	default:
		return errors.Wrapf(err, "update order %s", orderID)
	}
}

func (s *Store) CreatePrediction(ctx context.Context, p model.Prediction) (string, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	row := newPredictionRow(p)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if stderrors.Is(err, gorm.ErrDuplicatedKey) {
			return "", errors.Wrapf(exception.ErrDuplicatePrediction, "symbol: %s, date: %s",
				p.Symbol, p.TradingDate.Format(time.DateOnly))
		}
		return "", errors.Wrap(err, "insert prediction").With("symbol", p.Symbol)
	}
	return p.ID, nil
}

func (s *Store) GetPrediction(ctx context.Context, id string) (model.Prediction, error) {
	var row predictionRow
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return model.Prediction{}, errors.Wrapf(exception.ErrNotFound, "prediction id: %s", id)
	}
	if err != nil {
		return model.Prediction{}, errors.Wrap(err, "select prediction")
	}
	return row.model(), nil
}

func (s *Store) SettlePrediction(ctx context.Context, id string, settlement model.Settlement) error {
	res := s.db.WithContext(ctx).Model(&predictionRow{}).
		Where("id = ? AND settled_at IS NULL", id).
		Updates(settlementColumns(settlement, s.now()))
	if res.Error != nil {
		return errors.Wrap(res.Error, "settle prediction").With("prediction_id", id)
	}
	if res.RowsAffected == 0 {
		if _, err := s.GetPrediction(ctx, id); err != nil {
			return err
		}
		return errors.Wrapf(exception.ErrConflict, "prediction id: %s already settled", id)
	}
	return nil
}

// Close is a no-op; the connection pool belongs to the caller.
func (s *Store) Close() error {
	return nil
}
