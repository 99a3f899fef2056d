// Package feed consumes transaction notifications pushed over a WebSocket.
package feed

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"liquidity-watch/internal/domain"
	"liquidity-watch/internal/observability"
)

// Config configures Consumer behavior.
type Config struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing control frames.
	WriteTimeout time.Duration
	// Header is sent with the handshake, e.g. Authorization.
	Header http.Header
}

// DefaultConfig returns default consumer configuration.
func DefaultConfig() Config {
	return Config{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// HandlerFunc receives each decoded batch. Errors are logged and the
// connection stays open.
type HandlerFunc func(ctx context.Context, batch []domain.Notification) error

// Consumer reads notification batches from a WebSocket endpoint and hands
// them to a HandlerFunc, reconnecting with exponential backoff.
type Consumer struct {
	endpoint  string
	config    Config
	handle    HandlerFunc
	logger    *zap.Logger
	connected atomic.Bool
	batches   atomic.Uint64
}

// NewConsumer creates a consumer. A nil config uses DefaultConfig.
func NewConsumer(endpoint string, handle HandlerFunc, config *Config, logger *zap.Logger) *Consumer {
	cfg := DefaultConfig()
	if config != nil {
		cfg = *config
	}
	def := DefaultConfig()
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = def.ReconnectDelay
	}
	if cfg.MaxReconnectDelay < cfg.ReconnectDelay {
		cfg.MaxReconnectDelay = cfg.ReconnectDelay
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		endpoint: endpoint,
		config:   cfg,
		handle:   handle,
		logger:   logger,
	}
}

// Connected reports whether a connection is currently open.
func (c *Consumer) Connected() bool {
	return c.connected.Load()
}

// Batches returns the number of batches handed to the handler.
func (c *Consumer) Batches() uint64 {
	return c.batches.Load()
}

// Run blocks until ctx is cancelled and returns ctx.Err().
func (c *Consumer) Run(ctx context.Context) error {
	delay := c.config.ReconnectDelay

	for {
		received, err := c.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// Reset delay after a session that delivered data
		if received {
			delay = c.config.ReconnectDelay
		}

		c.logger.Warn("feed disconnected",
			zap.String("endpoint", c.endpoint),
			zap.Duration("retry_in", delay),
			zap.Error(err))
		observability.RecordFeedReconnect()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		// Exponential backoff
		delay *= 2
		if delay > c.config.MaxReconnectDelay {
			delay = c.config.MaxReconnectDelay
		}
	}
}

// session runs one connection until it fails. It reports whether any
// message was received.
func (c *Consumer) session(ctx context.Context) (bool, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, c.config.Header)
	if err != nil {
		return false, fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	c.connected.Store(true)
	defer c.connected.Store(false)
	c.logger.Info("feed connected", zap.String("endpoint", c.endpoint))

	done := make(chan struct{})
	defer close(done)

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	})

	go c.keepalive(ctx, conn, done)

	received := false
	for {
		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			return received, fmt.Errorf("websocket read: %w", err)
		}
		received = true
		observability.RecordFeedMessage()

		batch, err := domain.DecodeNotifications(message)
		if err != nil {
			c.logger.Warn("dropping malformed feed message", zap.Error(err))
			continue
		}

		c.batches.Add(1)
		if err := c.handle(ctx, batch); err != nil {
			c.logger.Error("feed batch failed", zap.Int("notifications", len(batch)), zap.Error(err))
		}
	}
}

// keepalive sends pings and closes conn when ctx is cancelled.
func (c *Consumer) keepalive(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.config.WriteTimeout))
			conn.Close()
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.config.WriteTimeout)); err != nil {
				return
			}
		}
	}
}
