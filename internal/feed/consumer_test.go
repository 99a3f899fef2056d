package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidity-watch/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func testConfig() *Config {
	return &Config{
		ReconnectDelay:    10 * time.Millisecond,
		MaxReconnectDelay: 50 * time.Millisecond,
		PingInterval:      time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      time.Second,
	}
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

type collector struct {
	mu      sync.Mutex
	batches [][]domain.Notification
	got     chan struct{}
}

func newCollector() *collector {
	return &collector{got: make(chan struct{}, 16)}
}

func (c *collector) handle(_ context.Context, batch []domain.Notification) error {
	c.mu.Lock()
	c.batches = append(c.batches, batch)
	c.mu.Unlock()
	c.got <- struct{}{}
	return nil
}

func (c *collector) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-c.got:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for batch %d", i+1)
		}
	}
}

func TestConsumer_DeliversBatches(t *testing.T) {
	var authHeader atomic.Value

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader.Store(r.Header.Get("Authorization"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		conn.WriteMessage(websocket.TextMessage, []byte(`[{"signature":"a","type":"CREATE_POOL"},{"signature":"b"}]`))
		conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"signature":"c"}`))

		// Keep connection open until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	col := newCollector()
	cfg := testConfig()
	cfg.Header = http.Header{"Authorization": []string{"secret"}}
	consumer := NewConsumer(wsURL(server), col.handle, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- consumer.Run(ctx) }()

	col.wait(t, 2)
	assert.True(t, consumer.Connected())
	cancel()

	select {
	case err := <-errCh:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	col.mu.Lock()
	defer col.mu.Unlock()
	require.Len(t, col.batches, 2)
	assert.Len(t, col.batches[0], 2)
	assert.Equal(t, "c", col.batches[1][0].Signature)
	assert.Equal(t, uint64(2), consumer.Batches())
	assert.Equal(t, "secret", authHeader.Load())
}

func TestConsumer_Reconnects(t *testing.T) {
	var connections atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		n := connections.Add(1)
		conn.WriteMessage(websocket.TextMessage, []byte(`[{"signature":"x"}]`))
		if n == 1 {
			// Drop the first connection abruptly
			conn.Close()
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	col := newCollector()
	consumer := NewConsumer(wsURL(server), col.handle, testConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go consumer.Run(ctx)

	col.wait(t, 2)
	assert.GreaterOrEqual(t, connections.Load(), int32(2))
}

func TestConsumer_DialFailureRespectsCancel(t *testing.T) {
	consumer := NewConsumer("ws://127.0.0.1:1/none", func(context.Context, []domain.Notification) error {
		return nil
	}, testConfig(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := consumer.Run(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.False(t, consumer.Connected())
}
