package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeledger/pkg/exception"
)

var fastBackoff = Backoff{Min: time.Millisecond, Max: 5 * time.Millisecond, Factor: 2}

// upstream serves frames to every connection and then holds it open.
func upstream(t *testing.T, frames ...[]byte) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{0x01})
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, f); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestFeedForwardsTextFrames(t *testing.T) {
	srv := upstream(t, []byte(`{"kind":"fill"}`), []byte(`{"kind":"cancel"}`))

	var (
		mu  sync.Mutex
		got []string
	)
	f := New(Config{URL: wsURL(srv), Backoff: fastBackoff}, func(raw []byte) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, string(raw))
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("feed did not stop after cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{`{"kind":"fill"}`, `{"kind":"cancel"}`}, got)
}

func TestFeedStopsWhenQueueCloses(t *testing.T) {
	srv := upstream(t, []byte(`{}`))

	f := New(Config{URL: wsURL(srv), Backoff: fastBackoff}, func([]byte) error {
		return exception.ErrIngestQueueClosed
	})

	done := make(chan error, 1)
	go func() { done <- f.Run(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("feed kept running after the queue closed")
	}
}

func TestFeedGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	f := New(Config{URL: wsURL(srv), Backoff: fastBackoff, MaxReconnects: 2}, func([]byte) error { return nil })
	err := f.Run(context.Background())
	require.Error(t, err)
}

func TestFeedNilHandler(t *testing.T) {
	err := New(Config{URL: "ws://127.0.0.1:1"}, nil).Run(context.Background())
	require.ErrorIs(t, err, exception.ErrIngestNilHandler)
}

func TestBackoffNext(t *testing.T) {
	b := Backoff{Min: 100 * time.Millisecond, Max: time.Second, Factor: 2}

	assert.Equal(t, 100*time.Millisecond, b.Next(0))
	assert.Equal(t, 100*time.Millisecond, b.Next(1))
	assert.Equal(t, 200*time.Millisecond, b.Next(2))
	assert.Equal(t, 800*time.Millisecond, b.Next(4))
	assert.Equal(t, time.Second, b.Next(10))

	b.Jitter = 0.5
	for i := 0; i < 100; i++ {
		d := b.Next(2)
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.LessOrEqual(t, d, 300*time.Millisecond)
	}
}
