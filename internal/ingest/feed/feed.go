// Package feed reads ledger envelopes from an upstream websocket stream.
package feed

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	errs "github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"tradeledger/pkg/exception"
)

// Handler receives one text frame. It must not block.
type Handler func(raw []byte) error

// Config describes the upstream stream.
type Config struct {
	URL          string
	Header       http.Header
	ReadTimeout  time.Duration
	PingInterval time.Duration
	Backoff      Backoff
	// MaxReconnects bounds consecutive failed dials; zero retries forever.
	MaxReconnects int
}

// Feed keeps one websocket connection open and forwards every text frame to
// its handler, reconnecting with backoff when the stream drops.
type Feed struct {
	cfg     Config
	handler Handler
	dialer  *websocket.Dialer
}

func New(cfg Config, handler Handler) *Feed {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 60 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 20 * time.Second
	}
	if cfg.Backoff == (Backoff{}) {
		cfg.Backoff = DefaultBackoff()
	}
	return &Feed{
		cfg:     cfg,
		handler: handler,
		dialer:  websocket.DefaultDialer,
	}
}

// Run blocks until ctx is done or reconnects are exhausted.
func (f *Feed) Run(ctx context.Context) error {
	if f.handler == nil {
		return exception.ErrIngestNilHandler
	}

	failures := 0
	for {
		conn, _, err := f.dialer.DialContext(ctx, f.cfg.URL, f.cfg.Header)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			failures++
			if f.cfg.MaxReconnects > 0 && failures > f.cfg.MaxReconnects {
				return errs.Wrapf(err, "dial %s, gave up after %d attempts", f.cfg.URL, failures)
			}
			wait := f.cfg.Backoff.Next(failures)
			logs.Warnf("feed: dial %s failed, retry in %s, err: %+v", f.cfg.URL, wait, err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
			}
			continue
		}

		failures = 0
		logs.Infof("feed: connected to %s", f.cfg.URL)
		err = f.consume(ctx, conn)
		if ctx.Err() != nil || errors.Is(err, exception.ErrIngestQueueClosed) {
			return nil
		}
		logs.Warnf("feed: stream %s dropped, err: %+v", f.cfg.URL, err)
	}
}

func (f *Feed) consume(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(f.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(f.cfg.ReadTimeout))
	})

	go func() {
		ticker := time.NewTicker(f.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
				_ = conn.Close()
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(f.cfg.ReadTimeout))
		if msgType != websocket.TextMessage {
			continue
		}
		if err := f.handler(data); err != nil {
			if errors.Is(err, exception.ErrIngestQueueClosed) {
				return err
			}
			logs.Warnf("feed: drop frame, err: %+v", err)
		}
	}
}
