package enum

import (
	"database/sql/driver"
	"fmt"
)

// Signal is the trading signal attached to a prediction.
type Signal uint8

const (
	_signal_beg Signal = iota
	SignalBuy
	SignalHold
	SignalSell
	_signal_end
)

var signalNames = names{"", "BUY", "HOLD", "SELL"}

func (s Signal) IsAvailable() bool {
	return s > _signal_beg && s < _signal_end
}

func (s Signal) String() string { return signalNames.text(uint8(s)) }

func ParseSignal(s string) (Signal, bool) {
	i, ok := signalNames.parse(s)
	return Signal(i), ok
}

func (s Signal) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Signal) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*s = 0
		return nil
	}
	v, ok := ParseSignal(string(b))
	if !ok {
		return fmt.Errorf("signal: unknown value %q", b)
	}
	*s = v
	return nil
}

func (s Signal) Value() (driver.Value, error) { return value(s.String()) }

func (s *Signal) Scan(src any) error {
	i, err := signalNames.scan("signal", src)
	*s = Signal(i)
	return err
}

// Confidence grades a prediction. The zero value means unknown.
type Confidence uint8

const (
	_confidence_beg Confidence = iota
	ConfidenceHigh
	ConfidenceMedium
	ConfidenceLow
	_confidence_end
)

var confidenceNames = names{"", "HIGH", "MEDIUM", "LOW"}

func (c Confidence) IsAvailable() bool {
	return c > _confidence_beg && c < _confidence_end
}

func (c Confidence) String() string { return confidenceNames.text(uint8(c)) }

func ParseConfidence(s string) (Confidence, bool) {
	i, ok := confidenceNames.parse(s)
	return Confidence(i), ok
}

func (c Confidence) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Confidence) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*c = 0
		return nil
	}
	v, ok := ParseConfidence(string(b))
	if !ok {
		return fmt.Errorf("confidence: unknown value %q", b)
	}
	*c = v
	return nil
}

func (c Confidence) Value() (driver.Value, error) { return value(c.String()) }

func (c *Confidence) Scan(src any) error {
	i, err := confidenceNames.scan("confidence", src)
	*c = Confidence(i)
	return err
}
