package ingest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/logs"

	"tradeledger/internal/bus"
	"tradeledger/internal/deadletter"
	"tradeledger/internal/obs"
	"tradeledger/pkg/exception"
)

// Journal records events that were rejected or gave up on.
type Journal interface {
	Record(ctx context.Context, entry deadletter.Entry) error
}

// Config sizes the worker pool.
type Config struct {
	Workers         int
	QueueSize       int
	MaxRedeliveries int
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	if c.MaxRedeliveries < 0 {
		c.MaxRedeliveries = 0
	}
	return c
}

// Dispatcher runs a pool of workers that apply inbound events concurrently.
// Events are independent tasks; per-order ordering is enforced by the
// sequence check in the order state machine, not by the pool.
type Dispatcher struct {
	cfg     Config
	router  *Router
	queue   *bus.Queue
	journal Journal
	metrics *obs.Metrics

	// trace correlates the log lines of one event across redeliveries.
	trace   atomic.Uint64
	running atomic.Bool
	wg      sync.WaitGroup
}

func NewDispatcher(cfg Config, router *Router, journal Journal, metrics *obs.Metrics) *Dispatcher {
	cfg = cfg.withDefaults()
	d := &Dispatcher{
		cfg:     cfg,
		router:  router,
		queue:   bus.NewQueue(cfg.QueueSize),
		journal: journal,
		metrics: metrics,
	}
	d.trace.Store(uint64(time.Now().UnixNano()))
	return d
}

// Handle enqueues a raw envelope without blocking.
func (d *Dispatcher) Handle(raw []byte) error {
	payload := make([]byte, len(raw))
	copy(payload, raw)
	return d.publish(bus.Event{Trace: d.trace.Add(1), Payload: payload})
}

func (d *Dispatcher) publish(e bus.Event) error {
	err := d.queue.TryPublish(e)
	switch {
	case errors.Is(err, bus.ErrQueueFull):
		d.metrics.IncQueueDrop()
		return exception.ErrIngestQueueFull
	case errors.Is(err, bus.ErrQueueClosed):
		d.metrics.IncQueueClosed()
		return exception.ErrIngestQueueClosed
	default:
		return err
	}
}

// Run starts the workers and returns immediately.
func (d *Dispatcher) Run(ctx context.Context) {
	if d.running.Swap(true) {
		return
	}

	for range d.cfg.Workers {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.queue.Run(ctx, func(e bus.Event) {
				d.process(ctx, e)
			})
		}()
	}
}

// Close stops accepting events. Workers drain what is queued and exit.
func (d *Dispatcher) Close() {
	d.queue.Close()
}

// Wait blocks until all workers have exited.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) process(ctx context.Context, e bus.Event) {
	start := time.Now()
	in, err := d.router.Route(ctx, e.Payload)
	if err == nil {
		d.metrics.ObserveAccepted(in.Kind, time.Since(start))
		return
	}

	if exception.Retryable(err) && e.Attempts < d.cfg.MaxRedeliveries {
		e.Attempts++
		if perr := d.publish(e); perr == nil {
			d.metrics.IncRedelivery()
			logs.Warnf("trace %d: %s %s redelivered (attempt %d), err: %+v", e.Trace, in.Kind, in.Key(), e.Attempts, err)
			return
		}
	}

	d.metrics.ObserveRejected(in.Kind, err)
	logs.Warnf("trace %d: %s %s rejected, reason: %s, err: %+v", e.Trace, in.Kind, in.Key(), obs.ReasonOf(err), err)
	d.deadLetter(ctx, e, in, err)
}

func (d *Dispatcher) deadLetter(ctx context.Context, e bus.Event, in Inbound, cause error) {
	if d.journal == nil {
		return
	}
	entry := deadletter.Entry{
		Trace:     e.Trace,
		Kind:      in.Kind.String(),
		Key:       in.Key(),
		Reason:    obs.ReasonOf(cause).String(),
		Error:     cause.Error(),
		Attempts:  e.Attempts,
		Payload:   e.Payload,
		CreatedAt: time.Now().UTC(),
	}
	if err := d.journal.Record(context.WithoutCancel(ctx), entry); err != nil {
		logs.Errorf("trace %d: write dead letter, err: %+v", e.Trace, err)
		return
	}
	d.metrics.IncDeadLetter()
}
