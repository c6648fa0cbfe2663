package ingest

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"tradeledger/internal/model"
	"tradeledger/internal/model/enum"
	"tradeledger/pkg/exception"
)

// Envelope is the wire frame of every inbound event.
type Envelope struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

type fillPayload struct {
	OrderID        string           `json:"order_id"`
	ExecutionID    string           `json:"execution_id"`
	Quantity       *decimal.Decimal `json:"quantity"`
	Price          *decimal.Decimal `json:"price"`
	SequenceNumber uint64           `json:"sequence_number"`
	ExecutedAt     *time.Time       `json:"executed_at"`
}

type settlementPayload struct {
	PredictionID string     `json:"prediction_id"`
	ActualClose  *float64   `json:"actual_close"`
	ActualReturn *float64   `json:"actual_return"`
	ActualHigh   *float64   `json:"actual_high"`
	ActualLow    *float64   `json:"actual_low"`
	ObservedAt   *time.Time `json:"observed_at"`
}

type commandPayload struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

// Inbound is a decoded and normalized event. Exactly one of Fill,
// Observation and Command is set, selected by Kind.
type Inbound struct {
	Kind        enum.EventKind
	Fill        *model.Fill
	Observation *model.Observation
	Command     *model.Command
}

// Key identifies the aggregate the event targets.
func (in Inbound) Key() string {
	switch {
	case in.Fill != nil:
		return in.Fill.OrderID
	case in.Observation != nil:
		return in.Observation.PredictionID
	case in.Command != nil:
		return in.Command.OrderID
	default:
		return ""
	}
}

// Decode parses one envelope. Missing timestamps default to now.
func Decode(raw []byte, now time.Time) (Inbound, error) {
	var env Envelope
	if err := sonic.Unmarshal(raw, &env); err != nil {
		return Inbound{}, errors.Wrap(exception.ErrIngestDecode, err.Error())
	}
	kind, ok := enum.ParseEventKind(env.Kind)
	if !ok {
		return Inbound{}, errors.Wrapf(exception.ErrIngestUnknownKind, "kind: %q", env.Kind)
	}
	if len(env.Payload) == 0 {
		return Inbound{Kind: kind}, errors.Wrap(exception.ErrIngestDecode, "empty payload")
	}

	switch kind {
	case enum.EventKindFill:
		return decodeFill(env.Payload, now)
	case enum.EventKindSettlement:
		return decodeSettlement(env.Payload, now)
	default:
		return decodeCommand(kind, env.Payload)
	}
}

func decodeFill(raw []byte, now time.Time) (Inbound, error) {
	in := Inbound{Kind: enum.EventKindFill}
	var p fillPayload
	if err := sonic.Unmarshal(raw, &p); err != nil {
		return in, errors.Wrap(exception.ErrIngestDecode, err.Error())
	}
	fill := model.Fill{
		OrderID:     strings.TrimSpace(p.OrderID),
		ExecutionID: strings.TrimSpace(p.ExecutionID),
		Sequence:    p.SequenceNumber,
		ExecutedAt:  now,
	}
	switch {
	case fill.OrderID == "":
		return in, errors.Wrap(exception.ErrInvalidArgument, "fill order id is empty")
	case fill.ExecutionID == "":
		return in, errors.Wrap(exception.ErrInvalidArgument, "fill execution id is empty")
	case p.Quantity == nil:
		return in, errors.Wrap(exception.ErrInvalidArgument, "fill quantity is missing")
	case p.Price == nil:
		return in, errors.Wrap(exception.ErrInvalidArgument, "fill price is missing")
	case p.SequenceNumber == 0:
		return in, errors.Wrap(exception.ErrSequenceViolation, "fill sequence number must be > 0")
	}
	fill.Quantity = *p.Quantity
	fill.Price = *p.Price
	if p.ExecutedAt != nil && !p.ExecutedAt.IsZero() {
		fill.ExecutedAt = p.ExecutedAt.UTC()
	}
	in.Fill = &fill
	return in, nil
}

func decodeSettlement(raw []byte, now time.Time) (Inbound, error) {
	in := Inbound{Kind: enum.EventKindSettlement}
	var p settlementPayload
	if err := sonic.Unmarshal(raw, &p); err != nil {
		return in, errors.Wrap(exception.ErrIngestDecode, err.Error())
	}
	obs := model.Observation{
		PredictionID: strings.TrimSpace(p.PredictionID),
		ActualHigh:   p.ActualHigh,
		ActualLow:    p.ActualLow,
		ObservedAt:   now,
	}
	switch {
	case obs.PredictionID == "":
		return in, errors.Wrap(exception.ErrInvalidArgument, "settlement prediction id is empty")
	case p.ActualClose == nil:
		return in, errors.Wrap(exception.ErrInvalidArgument, "settlement actual close is missing")
	case p.ActualReturn == nil:
		return in, errors.Wrap(exception.ErrInvalidArgument, "settlement actual return is missing")
	}
	obs.ActualClose = *p.ActualClose
	obs.ActualReturn = *p.ActualReturn
	if p.ObservedAt != nil && !p.ObservedAt.IsZero() {
		obs.ObservedAt = p.ObservedAt.UTC()
	}
	in.Observation = &obs
	return in, nil
}

func decodeCommand(kind enum.EventKind, raw []byte) (Inbound, error) {
	in := Inbound{Kind: kind}
	var p commandPayload
	if err := sonic.Unmarshal(raw, &p); err != nil {
		return in, errors.Wrap(exception.ErrIngestDecode, err.Error())
	}
	cmd := model.Command{
		OrderID: strings.TrimSpace(p.OrderID),
		Reason:  strings.TrimSpace(p.Reason),
	}
	if cmd.OrderID == "" {
		return in, errors.Wrapf(exception.ErrInvalidArgument, "%s order id is empty", kind)
	}
	in.Command = &cmd
	return in, nil
}
