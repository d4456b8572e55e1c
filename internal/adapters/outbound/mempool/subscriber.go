// Package mempool provides a WebSocket adapter streaming pending
// transaction hashes via eth_subscribe("newPendingTransactions").
package mempool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ethereum/go-ethereum/common"

	"github.com/meridian-research/aave-liquidator/internal/ports/outbound"
)

// Compile-time check that Subscriber implements outbound.PendingTxSubscriber.
var _ outbound.PendingTxSubscriber = (*Subscriber)(nil)

// Config holds subscriber configuration.
type Config struct {
	// WebSocketURL is the chain's streaming endpoint.
	WebSocketURL string
	// InitialBackoff is the first reconnect wait.
	InitialBackoff time.Duration
	// MaxBackoff caps the reconnect wait.
	MaxBackoff time.Duration
	// PingInterval is how often a ping keeps the connection alive.
	PingInterval time.Duration
	// PongTimeout bounds the ping write.
	PongTimeout time.Duration
	// ReadTimeout is the per-read deadline.
	ReadTimeout time.Duration
	// ChannelBufferSize is the consumer channel's capacity. The mempool is
	// bursty; a full channel drops hashes rather than blocking the reader.
	ChannelBufferSize int
	// Logger is the structured logger.
	Logger *slog.Logger
}

// Validate checks required configuration.
func (c *Config) Validate() error {
	if c.WebSocketURL == "" {
		return errors.New("WebSocketURL is required")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 10 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 15 * time.Second
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = 5 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.ChannelBufferSize <= 0 {
		c.ChannelBufferSize = 4096
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

type jsonRPCRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type jsonRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Error   *jsonRPCError   `json:"error,omitempty"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type subscriptionParams struct {
	Subscription string `json:"subscription"`
	Result       string `json:"result"`
}

// Subscriber streams pending transaction hashes with automatic
// reconnection.
type Subscriber struct {
	config Config

	mu     sync.RWMutex
	conn   *websocket.Conn
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	hashes chan common.Hash
}

// NewSubscriber creates a pending-transaction subscriber.
func NewSubscriber(config Config) (*Subscriber, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	config.applyDefaults()
	return &Subscriber{
		config: config,
		done:   make(chan struct{}),
		hashes: make(chan common.Hash, config.ChannelBufferSize),
	}, nil
}

// Subscribe starts streaming pending transaction hashes. The stream
// reconnects on its own if the connection drops.
func (s *Subscriber) Subscribe(ctx context.Context) (<-chan common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.New("subscriber is closed")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	go s.connectionManager()

	return s.hashes, nil
}

// connectionManager manages the WebSocket connection with automatic
// reconnection and exponential backoff.
func (s *Subscriber) connectionManager() {
	backoff := s.config.InitialBackoff
	logger := s.config.Logger.With("component", "mempool-subscriber")

	for {
		select {
		case <-s.done:
			return
		case <-s.ctx.Done():
			return
		default:
		}

		err := s.connectAndSubscribe()
		if err != nil {
			logger.Warn("failed to connect", "error", err, "backoff", backoff)

			select {
			case <-s.done:
				return
			case <-s.ctx.Done():
				return
			case <-time.After(backoff):
			}

			backoff *= 2
			if backoff > s.config.MaxBackoff {
				backoff = s.config.MaxBackoff
			}
			continue
		}

		backoff = s.config.InitialBackoff
		logger.Info("connected to mempool stream")

		s.readLoop(logger)

		logger.Warn("mempool stream disconnected, reconnecting...")
	}
}

// connectAndSubscribe establishes the WebSocket connection and subscribes
// to newPendingTransactions.
func (s *Subscriber) connectAndSubscribe() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, _, err := websocket.DefaultDialer.DialContext(s.ctx, s.config.WebSocketURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to WebSocket: %w", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set read deadline: %w", err)
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	})

	s.conn = conn

	subscribeReq := jsonRPCRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "eth_subscribe",
		Params:  []interface{}{"newPendingTransactions"},
	}
	if err := conn.WriteJSON(subscribeReq); err != nil {
		conn.Close()
		s.conn = nil
		return fmt.Errorf("failed to send subscription request: %w", err)
	}

	var response jsonRPCResponse
	if err := conn.ReadJSON(&response); err != nil {
		conn.Close()
		s.conn = nil
		return fmt.Errorf("failed to read subscription response: %w", err)
	}
	if response.Error != nil {
		conn.Close()
		s.conn = nil
		return fmt.Errorf("subscription failed: %s", response.Error.Message)
	}

	return nil
}

// readLoop reads pending-tx notifications until the connection dies.
func (s *Subscriber) readLoop(logger *slog.Logger) {
	pingTicker := time.NewTicker(s.config.PingInterval)
	defer pingTicker.Stop()

	readErr := make(chan error, 1)
	hashChan := make(chan common.Hash, 64)

	go func() {
		for {
			s.mu.RLock()
			conn := s.conn
			s.mu.RUnlock()

			if conn == nil {
				readErr <- errors.New("connection is nil")
				return
			}

			if err := conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout)); err != nil {
				readErr <- fmt.Errorf("failed to set read deadline: %w", err)
				return
			}

			var response jsonRPCResponse
			if err := conn.ReadJSON(&response); err != nil {
				readErr <- err
				return
			}

			if response.Method != "eth_subscription" || response.Params == nil {
				continue
			}

			var params subscriptionParams
			if err := json.Unmarshal(response.Params, &params); err != nil {
				logger.Warn("failed to parse subscription params", "error", err)
				continue
			}

			select {
			case hashChan <- common.HexToHash(params.Result):
			case <-s.done:
				return
			case <-s.ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-s.done:
			s.closeConnection()
			return
		case <-s.ctx.Done():
			s.closeConnection()
			return
		case err := <-readErr:
			logger.Warn("read error", "error", err)
			s.closeConnection()
			return
		case hash := <-hashChan:
			select {
			case s.hashes <- hash:
			default:
				// The watchdog only cares about fresh competition; a
				// lagging consumer can afford to miss hashes.
				logger.Debug("pending-tx channel full, dropping hash", "hash", hash.Hex())
			}
		case <-pingTicker.C:
			s.mu.RLock()
			conn := s.conn
			s.mu.RUnlock()

			if conn != nil {
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.config.PongTimeout)); err != nil {
					logger.Warn("ping failed", "error", err)
					s.closeConnection()
					return
				}
			}
		}
	}
}

// closeConnection safely closes the current WebSocket connection.
func (s *Subscriber) closeConnection() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

// Unsubscribe stops the subscription and closes the connection.
func (s *Subscriber) Unsubscribe() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)

	if s.cancel != nil {
		s.cancel()
	}
	close(s.hashes)

	if s.conn != nil {
		unsubscribeReq := jsonRPCRequest{
			JSONRPC: "2.0",
			ID:      2,
			Method:  "eth_unsubscribe",
			Params:  []interface{}{},
		}
		_ = s.conn.WriteJSON(unsubscribeReq)
		return s.conn.Close()
	}
	return nil
}
