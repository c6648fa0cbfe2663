package obs

import (
	"errors"
	"sync/atomic"
	"time"

	"tradeledger/internal/model/enum"
	"tradeledger/pkg/exception"
)

// Reason classifies why an event was rejected.
type Reason uint8

const (
	ReasonOther Reason = iota
	ReasonNotFound
	ReasonOverfill
	ReasonInvalidTransition
	ReasonSequenceViolation
	ReasonAlreadySettled
	ReasonInvalidArgument
	ReasonDuplicate
	ReasonDecode
	ReasonConflict
	reasonCount
)

var reasonNames = [reasonCount]string{
	"other", "not_found", "overfill", "invalid_transition", "sequence_violation",
	"already_settled", "invalid_argument", "duplicate", "decode", "conflict",
}

func (r Reason) String() string {
	if r >= reasonCount {
		return "unknown"
	}
	return reasonNames[r]
}

// ReasonOf maps an error to its rejection reason.
func ReasonOf(err error) Reason {
	switch {
	case errors.Is(err, exception.ErrSequenceViolation):
		return ReasonSequenceViolation
	case errors.Is(err, exception.ErrOverfill):
		return ReasonOverfill
	case errors.Is(err, exception.ErrInvalidTransition):
		return ReasonInvalidTransition
	case errors.Is(err, exception.ErrAlreadySettled):
		return ReasonAlreadySettled
	case errors.Is(err, exception.ErrNotFound):
		return ReasonNotFound
	case errors.Is(err, exception.ErrInvalidArgument):
		return ReasonInvalidArgument
	case errors.Is(err, exception.ErrDuplicateExecution),
		errors.Is(err, exception.ErrDuplicatePrediction),
		errors.Is(err, exception.ErrDuplicateOrder):
		return ReasonDuplicate
	case errors.Is(err, exception.ErrIngestDecode), errors.Is(err, exception.ErrIngestUnknownKind):
		return ReasonDecode
	case errors.Is(err, exception.ErrConflict):
		return ReasonConflict
	default:
		return ReasonOther
	}
}

// Metrics collects lightweight counters and latency stats.
type Metrics struct {
	accepted     [enum.EventKindCount]uint64
	rejected     [enum.EventKindCount]uint64
	reasonCounts [reasonCount]uint64
	casRetries   uint64
	redeliveries uint64
	deadLetters  uint64
	queueDrops   uint64
	queueClosed  uint64

	handleLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	Accepted      map[enum.EventKind]uint64
	Rejected      map[enum.EventKind]uint64
	Reasons       map[Reason]uint64
	CASRetries    uint64
	Redeliveries  uint64
	DeadLetters   uint64
	QueueDrops    uint64
	QueueClosed   uint64
	HandleLatency LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// ObserveAccepted counts an applied event and its handling latency.
func (m *Metrics) ObserveAccepted(kind enum.EventKind, d time.Duration) {
	if m == nil {
		return
	}
	if kind.IsAvailable() {
		atomic.AddUint64(&m.accepted[kind], 1)
	}
	m.handleLatency.Observe(d)
}

// ObserveRejected counts a rejected event under its reason.
func (m *Metrics) ObserveRejected(kind enum.EventKind, err error) {
	if m == nil {
		return
	}
	if kind.IsAvailable() {
		atomic.AddUint64(&m.rejected[kind], 1)
	}
	atomic.AddUint64(&m.reasonCounts[ReasonOf(err)], 1)
}

// IncCASRetry records a lost compare-and-set.
func (m *Metrics) IncCASRetry() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.casRetries, 1)
}

// IncRedelivery records an event put back on the queue.
func (m *Metrics) IncRedelivery() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.redeliveries, 1)
}

// IncDeadLetter records an event written to the dead-letter journal.
func (m *Metrics) IncDeadLetter() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.deadLetters, 1)
}

// IncQueueDrop records a queue drop.
func (m *Metrics) IncQueueDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueDrops, 1)
}

// IncQueueClosed records a closed-queue publish attempt.
func (m *Metrics) IncQueueClosed() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueClosed, 1)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	accepted := make(map[enum.EventKind]uint64)
	rejected := make(map[enum.EventKind]uint64)
	for i := range m.accepted {
		if v := atomic.LoadUint64(&m.accepted[i]); v > 0 {
			accepted[enum.EventKind(i)] = v
		}
		if v := atomic.LoadUint64(&m.rejected[i]); v > 0 {
			rejected[enum.EventKind(i)] = v
		}
	}
	reasons := make(map[Reason]uint64)
	for i := range m.reasonCounts {
		if v := atomic.LoadUint64(&m.reasonCounts[i]); v > 0 {
			reasons[Reason(i)] = v
		}
	}
	return Snapshot{
		Accepted:      accepted,
		Rejected:      rejected,
		Reasons:       reasons,
		CASRetries:    atomic.LoadUint64(&m.casRetries),
		Redeliveries:  atomic.LoadUint64(&m.redeliveries),
		DeadLetters:   atomic.LoadUint64(&m.deadLetters),
		QueueDrops:    atomic.LoadUint64(&m.queueDrops),
		QueueClosed:   atomic.LoadUint64(&m.queueClosed),
		HandleLatency: m.handleLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
