package enum

import (
	"database/sql/driver"
	"fmt"
)

// OrderSide buy, sell
type OrderSide uint8

const (
	_order_side_beg OrderSide = iota
	OrderSideBuy
	OrderSideSell
	_order_side_end
)

var orderSideNames = names{"", "BUY", "SELL"}

func (s OrderSide) IsAvailable() bool {
	return s > _order_side_beg && s < _order_side_end
}

func (s OrderSide) String() string { return orderSideNames.text(uint8(s)) }

func ParseOrderSide(s string) (OrderSide, bool) {
	i, ok := orderSideNames.parse(s)
	return OrderSide(i), ok
}

func (s OrderSide) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *OrderSide) UnmarshalText(b []byte) error {
	v, ok := ParseOrderSide(string(b))
	if !ok {
		return fmt.Errorf("order side: unknown value %q", b)
	}
	*s = v
	return nil
}

func (s OrderSide) Value() (driver.Value, error) { return value(s.String()) }

func (s *OrderSide) Scan(src any) error {
	i, err := orderSideNames.scan("order side", src)
	*s = OrderSide(i)
	return err
}

// OrderType market, limit
type OrderType uint8

const (
	_order_type_beg OrderType = iota
	OrderTypeMarket
	OrderTypeLimit
	_order_type_end
)

var orderTypeNames = names{"", "MARKET", "LIMIT"}

func (t OrderType) IsAvailable() bool {
	return t > _order_type_beg && t < _order_type_end
}

func (t OrderType) String() string { return orderTypeNames.text(uint8(t)) }

func ParseOrderType(s string) (OrderType, bool) {
	i, ok := orderTypeNames.parse(s)
	return OrderType(i), ok
}

func (t OrderType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *OrderType) UnmarshalText(b []byte) error {
	v, ok := ParseOrderType(string(b))
	if !ok {
		return fmt.Errorf("order type: unknown value %q", b)
	}
	*t = v
	return nil
}

func (t OrderType) Value() (driver.Value, error) { return value(t.String()) }

func (t *OrderType) Scan(src any) error {
	i, err := orderTypeNames.scan("order type", src)
	*t = OrderType(i)
	return err
}

// OrderStatus pending, partially filled, filled, cancelled, rejected
type OrderStatus uint8

const (
	_order_status_beg OrderStatus = iota
	OrderStatusPending
	OrderStatusPartiallyFilled
	OrderStatusFilled
	OrderStatusCancelled
	OrderStatusRejected
	_order_status_end
)

var orderStatusNames = names{"", "PENDING", "PARTIALLY_FILLED", "FILLED", "CANCELLED", "REJECTED"}

func (s OrderStatus) IsAvailable() bool {
	return s > _order_status_beg && s < _order_status_end
}

// IsTerminal reports whether no further transition may leave s.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected:
		return true
	default:
		return false
	}
}

func (s OrderStatus) String() string { return orderStatusNames.text(uint8(s)) }

func ParseOrderStatus(s string) (OrderStatus, bool) {
	i, ok := orderStatusNames.parse(s)
	return OrderStatus(i), ok
}

func (s OrderStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *OrderStatus) UnmarshalText(b []byte) error {
	v, ok := ParseOrderStatus(string(b))
	if !ok {
		return fmt.Errorf("order status: unknown value %q", b)
	}
	*s = v
	return nil
}

func (s OrderStatus) Value() (driver.Value, error) { return value(s.String()) }

func (s *OrderStatus) Scan(src any) error {
	i, err := orderStatusNames.scan("order status", src)
	*s = OrderStatus(i)
	return err
}
