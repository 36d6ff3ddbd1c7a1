// Package jsonrpc implements a JSON-RPC 2.0 session over a single WebSocket,
// with request/response correlation and server-push subscriptions.
package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/fd1az/substrate-explorer/internal/apperror"
	"github.com/fd1az/substrate-explorer/internal/logger"
	"github.com/fd1az/substrate-explorer/internal/wsconn"
)

// DefaultSubscriptionBuffer is the number of notifications queued per
// subscription before it is dropped as too slow.
const DefaultSubscriptionBuffer = 20000

// Config holds session settings.
type Config struct {
	WS                 wsconn.Config
	SubscriptionBuffer int
	Logger             logger.LoggerInterface
}

type pendingCall struct {
	resp chan *message
	sub  *Subscription
}

// Client is a JSON-RPC session. It is safe for concurrent use. Once the
// underlying connection drops the client is unusable; dial a new one.
type Client struct {
	ws  *wsconn.Client
	log logger.LoggerInterface

	bufferSize int
	nextID     atomic.Uint64

	mu       sync.Mutex
	pending  map[uint64]*pendingCall
	subs     map[string]*Subscription
	done     chan struct{}
	closeErr error
}

// Dial opens the WebSocket and starts dispatching inbound frames.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	ws, err := wsconn.New(cfg.WS)
	if err != nil {
		return nil, err
	}

	c := &Client{
		ws:         ws,
		log:        cfg.Logger,
		bufferSize: cfg.SubscriptionBuffer,
		pending:    make(map[uint64]*pendingCall),
		subs:       make(map[string]*Subscription),
		done:       make(chan struct{}),
	}
	if c.log == nil {
		c.log = logger.NewNop()
	}
	if c.bufferSize <= 0 {
		c.bufferSize = DefaultSubscriptionBuffer
	}

	ws.OnMessage(c.dispatch)
	ws.OnStateChange(func(state wsconn.State, err error) {
		if state == wsconn.StateDisconnected && err != nil {
			c.shutdown(apperror.Transport("connection lost", err))
		}
	})

	if err := ws.Connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Call invokes method and decodes the result into result, which may be nil.
// A JSON null result leaves pointer targets nil. Node-side failures are
// returned as *Error.
func (c *Client) Call(ctx context.Context, result any, method string, params ...any) error {
	resp, err := c.roundTrip(ctx, method, params, nil)
	if err != nil {
		return err
	}
	if result == nil || isNull(resp.Result) {
		if result != nil {
			return json.Unmarshal([]byte("null"), result)
		}
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return apperror.New(apperror.CodeTransportError,
			apperror.WithCause(err),
			apperror.WithContext("decode result of "+method))
	}
	return nil
}

// Subscribe calls subscribeMethod and returns a subscription receiving every
// notification the node pushes for the returned id. unsubscribeMethod is
// used by Unsubscribe.
func (c *Client) Subscribe(ctx context.Context, subscribeMethod, unsubscribeMethod string, params ...any) (*Subscription, error) {
	sub := &Subscription{
		client:      c,
		unsubscribe: unsubscribeMethod,
		ch:          make(chan json.RawMessage, c.bufferSize),
		err:         make(chan error, 1),
	}

	resp, err := c.roundTrip(ctx, subscribeMethod, params, sub)
	if err != nil {
		return nil, err
	}
	if isNull(resp.Result) {
		return nil, apperror.New(apperror.CodeSubscriptionFailed,
			apperror.WithContext(subscribeMethod+" returned no subscription id"))
	}
	return sub, nil
}

func (c *Client) roundTrip(ctx context.Context, method string, params []any, sub *Subscription) (*message, error) {
	if params == nil {
		params = []any{}
	}
	id := c.nextID.Add(1)
	call := &pendingCall{resp: make(chan *message, 1), sub: sub}

	c.mu.Lock()
	if c.closeErr != nil {
		err := c.closeErr
		c.mu.Unlock()
		return nil, err
	}
	c.pending[id] = call
	c.mu.Unlock()

	req := request{Version: version, ID: id, Method: method, Params: params}
	if err := c.ws.SendJSON(ctx, req); err != nil {
		c.forget(id)
		return nil, apperror.Transport(method, err)
	}

	select {
	case resp := <-call.resp:
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp, nil
	case <-ctx.Done():
		if sub == nil {
			c.forget(id)
		} else {
			c.abandonSubscribe(sub)
		}
		return nil, apperror.New(apperror.CodeServiceTimeout,
			apperror.WithCause(ctx.Err()),
			apperror.WithContext(method))
	case <-c.done:
		return nil, c.Err()
	}
}

// abandonSubscribe ends sub for a caller that gave up waiting. The call stays
// pending: if the node answers later, or already has, the node-side
// subscription is dropped too.
func (c *Client) abandonSubscribe(sub *Subscription) {
	c.mu.Lock()
	registered := sub.id != ""
	c.endLocked(sub, nil)
	c.mu.Unlock()

	if registered {
		go sub.unsubscribeRemote()
	}
}

func (c *Client) forget(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// dispatch runs on the read goroutine. It never blocks on a consumer.
func (c *Client) dispatch(ctx context.Context, data []byte) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.log.Warn(ctx, "jsonrpc: unparseable frame", "error", err)
		return
	}

	switch {
	case msg.isResponse():
		c.handleResponse(ctx, &msg)
	case msg.isNotification():
		c.handleNotification(ctx, &msg)
	default:
		c.log.Debug(ctx, "jsonrpc: ignoring frame", "frame", string(data))
	}
}

func (c *Client) handleResponse(ctx context.Context, msg *message) {
	id, ok := parseID(msg.ID)
	if !ok {
		c.log.Warn(ctx, "jsonrpc: response with foreign id", "id", string(msg.ID))
		return
	}

	c.mu.Lock()
	call, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	orphan := false
	// Register before the caller wakes so no notification is missed.
	if ok && call.sub != nil && msg.Error == nil && !isNull(msg.Result) {
		call.sub.rawID = msg.Result
		call.sub.id = subscriptionKey(msg.Result)
		if call.sub.ended {
			orphan = true
		} else {
			c.subs[call.sub.id] = call.sub
		}
	}
	c.mu.Unlock()

	if !ok {
		c.log.Debug(ctx, "jsonrpc: response for abandoned call", "id", id)
		return
	}
	if orphan {
		c.log.Debug(ctx, "jsonrpc: dropping subscription of abandoned call", "subscription", call.sub.id)
		go call.sub.unsubscribeRemote()
	}
	call.resp <- msg
}

func (c *Client) handleNotification(ctx context.Context, msg *message) {
	var params notificationParams
	if err := json.Unmarshal(msg.Params, &params); err != nil || len(params.Subscription) == 0 {
		c.log.Debug(ctx, "jsonrpc: notification without subscription", "method", msg.Method)
		return
	}
	key := subscriptionKey(params.Subscription)

	c.mu.Lock()
	defer c.mu.Unlock()

	sub, ok := c.subs[key]
	if !ok {
		c.log.Debug(ctx, "jsonrpc: notification for unknown subscription", "method", msg.Method, "subscription", key)
		return
	}

	select {
	case sub.ch <- params.Result:
	default:
		c.endLocked(sub, apperror.New(apperror.CodeSubscriptionOverflow,
			apperror.WithContext(msg.Method)))
		c.log.Warn(ctx, "jsonrpc: subscription dropped, consumer too slow", "method", msg.Method, "subscription", key)
		go sub.unsubscribeRemote()
	}
}

// endLocked terminates sub. c.mu must be held.
func (c *Client) endLocked(sub *Subscription, err error) {
	if sub.ended {
		return
	}
	sub.ended = true
	if sub.id != "" {
		delete(c.subs, sub.id)
	}
	if err != nil {
		sub.err <- err
	}
	close(sub.err)
	close(sub.ch)
}

func (c *Client) shutdown(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closeErr != nil {
		return
	}
	c.closeErr = err
	close(c.done)
	for id := range c.pending {
		delete(c.pending, id)
	}
	for _, sub := range c.subs {
		c.endLocked(sub, err)
	}
}

// Done is closed when the session ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns why the session ended, or nil while it is alive.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeErr
}

// Close ends the session, failing in-flight calls and subscriptions.
func (c *Client) Close() error {
	c.shutdown(apperror.New(apperror.CodeWebSocketClosed, apperror.WithContext("client closed")))
	return c.ws.Close()
}

// IsClosed reports whether err means the session is gone.
func IsClosed(err error) bool {
	return apperror.HasCode(err, apperror.CodeWebSocketClosed) ||
		apperror.HasCode(err, apperror.CodeTransportError)
}

// IsRPCError reports whether err is an error object returned by the node.
func IsRPCError(err error) bool {
	var rpcErr *Error
	return errors.As(err, &rpcErr)
}
