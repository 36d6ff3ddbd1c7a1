// Package wsconn provides a WebSocket client with state tracking, keep-alive
// pings and a single message handler, built on github.com/coder/websocket.
package wsconn

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/fd1az/substrate-explorer/internal/apperror"
)

// State represents the connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateClosed       State = "closed"
)

// Config holds WebSocket client configuration.
type Config struct {
	URL            string
	Name           string        // label used in errors
	DialTimeout    time.Duration // 0 = rely on the caller's context
	ReadTimeout    time.Duration // per-message idle timeout, 0 = none
	WriteTimeout   time.Duration
	PingInterval   time.Duration // 0 disables keep-alive pings
	PongTimeout    time.Duration
	MaxMessageSize int64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(url, name string) Config {
	return Config{
		URL:            url,
		Name:           name,
		DialTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		PingInterval:   30 * time.Second,
		PongTimeout:    10 * time.Second,
		MaxMessageSize: 16 << 20,
	}
}

// MessageHandler receives every inbound data frame, in arrival order, on the
// read goroutine.
type MessageHandler func(ctx context.Context, msg []byte)

// StateHandler is notified on every state transition. err is set when the
// transition was caused by a failure.
type StateHandler func(state State, err error)

// Client is a single-session WebSocket client. After the session drops the
// client can be connected again; after Close it cannot.
type Client struct {
	config Config

	conn   *websocket.Conn
	connMu sync.RWMutex

	state   State
	stateMu sync.RWMutex

	onMessage     MessageHandler
	onStateChange StateHandler
	handlersMu    sync.RWMutex

	cancel context.CancelFunc
	closed bool
	err    error
}

// New creates a new WebSocket client.
func New(config Config) (*Client, error) {
	if config.URL == "" {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("websocket url is empty"))
	}
	u, err := url.Parse(config.URL)
	if err != nil {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithCause(err),
			apperror.WithContext("invalid websocket url"))
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext(fmt.Sprintf("unsupported websocket scheme %q", u.Scheme)))
	}
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = DefaultConfig(config.URL, config.Name).MaxMessageSize
	}

	return &Client{
		config: config,
		state:  StateDisconnected,
	}, nil
}

// OnMessage sets the inbound message handler. Set it before Connect.
func (c *Client) OnMessage(h MessageHandler) {
	c.handlersMu.Lock()
	c.onMessage = h
	c.handlersMu.Unlock()
}

// OnStateChange sets the state transition handler.
func (c *Client) OnStateChange(h StateHandler) {
	c.handlersMu.Lock()
	c.onStateChange = h
	c.handlersMu.Unlock()
}

// Connect dials the server and starts the read and ping loops.
func (c *Client) Connect(ctx context.Context) error {
	c.connMu.Lock()
	if c.closed {
		c.connMu.Unlock()
		return apperror.New(apperror.CodeWebSocketClosed, apperror.WithContext(c.config.Name))
	}
	if c.conn != nil {
		c.connMu.Unlock()
		return nil
	}
	c.connMu.Unlock()

	c.setState(StateConnecting, nil)

	dialCtx := ctx
	if c.config.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.config.DialTimeout)
		defer cancel()
	}

	conn, _, err := websocket.Dial(dialCtx, c.config.URL, nil)
	if err != nil {
		wrapped := apperror.New(apperror.CodeWebSocketConnectionError,
			apperror.WithCause(err),
			apperror.WithContext(c.config.Name))
		c.setState(StateDisconnected, wrapped)
		return wrapped
	}
	conn.SetReadLimit(c.config.MaxMessageSize)

	// The session outlives the dial context.
	loopCtx, cancel := context.WithCancel(context.Background())

	c.connMu.Lock()
	if c.closed {
		c.connMu.Unlock()
		cancel()
		_ = conn.CloseNow()
		return apperror.New(apperror.CodeWebSocketClosed, apperror.WithContext(c.config.Name))
	}
	c.conn = conn
	c.cancel = cancel
	c.err = nil
	c.connMu.Unlock()

	c.setState(StateConnected, nil)

	go c.readLoop(loopCtx, conn)
	if c.config.PingInterval > 0 {
		go c.pingLoop(loopCtx, conn)
	}

	return nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		readCtx := ctx
		var cancel context.CancelFunc
		if c.config.ReadTimeout > 0 {
			readCtx, cancel = context.WithTimeout(ctx, c.config.ReadTimeout)
		}
		_, data, err := conn.Read(readCtx)
		if cancel != nil {
			cancel()
		}
		if err != nil {
			c.dropSession(conn, err)
			return
		}

		c.handlersMu.RLock()
		handler := c.onMessage
		c.handlersMu.RUnlock()
		if handler != nil {
			handler(ctx, data)
		}
	}
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, c.config.PongTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil && ctx.Err() == nil {
				// unblocks the read loop, which records the drop
				_ = conn.Close(websocket.StatusGoingAway, "ping timeout")
				return
			}
		}
	}
}

// dropSession tears down a session the read loop found dead. A session
// replaced or closed in the meantime is ignored.
func (c *Client) dropSession(conn *websocket.Conn, cause error) {
	c.connMu.Lock()
	if c.conn != conn {
		c.connMu.Unlock()
		return
	}
	c.conn = nil
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	closed := c.closed
	err := apperror.New(apperror.CodeWebSocketClosed,
		apperror.WithCause(cause),
		apperror.WithContext(c.config.Name))
	c.err = err
	c.connMu.Unlock()

	_ = conn.CloseNow()

	if !closed {
		c.setState(StateDisconnected, err)
	}
}

// Send writes a text frame.
func (c *Client) Send(ctx context.Context, msg []byte) error {
	conn, err := c.current()
	if err != nil {
		return err
	}

	writeCtx, cancel := c.writeContext(ctx)
	defer cancel()

	if err := conn.Write(writeCtx, websocket.MessageText, msg); err != nil {
		return apperror.New(apperror.CodeWebSocketSendError,
			apperror.WithCause(err),
			apperror.WithContext(c.config.Name))
	}
	return nil
}

// SendJSON encodes v as JSON and writes it as a text frame.
func (c *Client) SendJSON(ctx context.Context, v any) error {
	conn, err := c.current()
	if err != nil {
		return err
	}

	writeCtx, cancel := c.writeContext(ctx)
	defer cancel()

	if err := wsjson.Write(writeCtx, conn, v); err != nil {
		return apperror.New(apperror.CodeWebSocketSendError,
			apperror.WithCause(err),
			apperror.WithContext(c.config.Name))
	}
	return nil
}

func (c *Client) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.config.WriteTimeout > 0 {
		return context.WithTimeout(ctx, c.config.WriteTimeout)
	}
	return context.WithCancel(ctx)
}

func (c *Client) current() (*websocket.Conn, error) {
	c.connMu.RLock()
	defer c.connMu.RUnlock()

	if c.conn == nil {
		if c.err != nil {
			return nil, c.err
		}
		return nil, apperror.New(apperror.CodeWebSocketClosed,
			apperror.WithContext(c.config.Name+": not connected"))
	}
	return c.conn, nil
}

// State returns the current connection state.
func (c *Client) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// IsConnected reports whether a session is live.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// Err returns the error that ended the last session, if any.
func (c *Client) Err() error {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.err
}

// Close gracefully closes the connection. It is idempotent.
func (c *Client) Close() error {
	c.connMu.Lock()
	if c.closed {
		c.connMu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	cancel := c.cancel
	c.cancel = nil
	c.connMu.Unlock()

	c.setState(StateClosed, nil)

	if conn == nil {
		return nil
	}

	err := conn.Close(websocket.StatusNormalClosure, "")
	if cancel != nil {
		cancel()
	}
	if err != nil && !errors.Is(err, context.Canceled) && websocket.CloseStatus(err) == -1 {
		_ = conn.CloseNow()
	}
	return nil
}

func (c *Client) setState(state State, err error) {
	c.stateMu.Lock()
	c.state = state
	c.stateMu.Unlock()

	c.handlersMu.RLock()
	handler := c.onStateChange
	c.handlersMu.RUnlock()
	if handler != nil {
		handler(state, err)
	}
}
