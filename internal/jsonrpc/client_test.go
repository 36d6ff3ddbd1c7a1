package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/substrate-explorer/internal/apperror"
	"github.com/fd1az/substrate-explorer/internal/jsonrpc/rpctest"
	"github.com/fd1az/substrate-explorer/internal/wsconn"
)

func dial(t *testing.T, srv *rpctest.Server, buffer int) *Client {
	t.Helper()
	cfg := wsconn.DefaultConfig(srv.URL(), "test")
	cfg.PingInterval = 0

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Dial(ctx, Config{WS: cfg, SubscriptionBuffer: buffer})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCall_DecodesResult(t *testing.T) {
	srv := rpctest.NewServer(t)
	srv.HandleResult("system_chain", "Development")

	c := dial(t, srv, 0)

	var chain string
	require.NoError(t, c.Call(context.Background(), &chain, "system_chain"))
	assert.Equal(t, "Development", chain)
}

func TestCall_PassesParams(t *testing.T) {
	srv := rpctest.NewServer(t)
	srv.HandleResult("chain_getBlockHash", "0xabc")

	c := dial(t, srv, 0)

	var hash string
	require.NoError(t, c.Call(context.Background(), &hash, "chain_getBlockHash", 42))

	calls := srv.Calls("chain_getBlockHash")
	require.Len(t, calls, 1)
	require.Len(t, calls[0], 1)
	assert.JSONEq(t, "42", string(calls[0][0]))
}

func TestCall_NullLeavesPointerNil(t *testing.T) {
	srv := rpctest.NewServer(t)
	srv.HandleResult("chain_getBlock", nil)

	c := dial(t, srv, 0)

	block := &struct{ Justifications any }{}
	require.NoError(t, c.Call(context.Background(), &block, "chain_getBlock", "0x00"))
	assert.Nil(t, block)
}

func TestCall_NodeError(t *testing.T) {
	srv := rpctest.NewServer(t)
	srv.Handle("state_getStorage", func([]json.RawMessage) (any, error) {
		return nil, &rpctest.Error{Code: -32602, Message: "Invalid params"}
	})

	c := dial(t, srv, 0)

	err := c.Call(context.Background(), nil, "state_getStorage", "0x")
	require.Error(t, err)

	var rpcErr *Error
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, -32602, rpcErr.Code)
	assert.True(t, IsRPCError(err))
	assert.False(t, IsClosed(err))
}

func TestCall_UnknownMethod(t *testing.T) {
	srv := rpctest.NewServer(t)
	c := dial(t, srv, 0)

	err := c.Call(context.Background(), nil, "nope_nothing")
	assert.True(t, IsRPCError(err))
}

func TestCall_ContextTimeout(t *testing.T) {
	srv := rpctest.NewServer(t)
	release := make(chan struct{})
	srv.Handle("system_health", func([]json.RawMessage) (any, error) {
		<-release
		return nil, nil
	})
	defer close(release)

	c := dial(t, srv, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := c.Call(ctx, nil, "system_health")
	assert.True(t, apperror.HasCode(err, apperror.CodeServiceTimeout))
}

func TestCall_ConnectionLostFailsPending(t *testing.T) {
	srv := rpctest.NewServer(t)
	entered := make(chan struct{})
	srv.Handle("chain_getBlock", func([]json.RawMessage) (any, error) {
		close(entered)
		time.Sleep(time.Second)
		return nil, nil
	})

	c := dial(t, srv, 0)

	errc := make(chan error, 1)
	go func() { errc <- c.Call(context.Background(), nil, "chain_getBlock", "0x00") }()

	<-entered
	srv.DropConnections()

	select {
	case err := <-errc:
		assert.True(t, IsClosed(err), "got %v", err)
	case <-time.After(3 * time.Second):
		t.Fatal("pending call was not failed")
	}

	<-c.Done()
	assert.Error(t, c.Err())
	assert.Error(t, c.Call(context.Background(), nil, "system_chain"))
}

func TestSubscribe_DeliversInOrder(t *testing.T) {
	srv := rpctest.NewServer(t)
	srv.HandleSubscription("chain_subscribeNewHeads")
	srv.HandleResult("chain_unsubscribeNewHeads", true)

	c := dial(t, srv, 0)

	sub, err := c.Subscribe(context.Background(), "chain_subscribeNewHeads", "chain_unsubscribeNewHeads")
	require.NoError(t, err)
	assert.Equal(t, "sub-1", sub.ID())

	for i := 1; i <= 3; i++ {
		srv.Notify("chain_newHead", "sub-1", map[string]any{"n": i})
	}
	// A foreign subscription must not leak into ours.
	srv.Notify("chain_newHead", "sub-99", map[string]any{"n": 99})

	for i := 1; i <= 3; i++ {
		select {
		case raw := <-sub.Notifications():
			var got struct{ N int }
			require.NoError(t, json.Unmarshal(raw, &got))
			assert.Equal(t, i, got.N)
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting for notification %d", i)
		}
	}

	require.NoError(t, sub.Unsubscribe(context.Background()))
	require.Len(t, srv.Calls("chain_unsubscribeNewHeads"), 1)
	assert.JSONEq(t, `"sub-1"`, string(srv.Calls("chain_unsubscribeNewHeads")[0][0]))

	_, open := <-sub.Err()
	assert.False(t, open, "clean unsubscribe carries no error")

	// Idempotent.
	require.NoError(t, sub.Unsubscribe(context.Background()))
	assert.Len(t, srv.Calls("chain_unsubscribeNewHeads"), 1)
}

func TestSubscribe_Overflow(t *testing.T) {
	srv := rpctest.NewServer(t)
	srv.HandleSubscription("chain_subscribeNewHeads")
	srv.HandleResult("chain_unsubscribeNewHeads", true)

	c := dial(t, srv, 1)

	sub, err := c.Subscribe(context.Background(), "chain_subscribeNewHeads", "chain_unsubscribeNewHeads")
	require.NoError(t, err)

	srv.Notify("chain_newHead", sub.ID(), 1)
	srv.Notify("chain_newHead", sub.ID(), 2)

	select {
	case err := <-sub.Err():
		assert.True(t, apperror.HasCode(err, apperror.CodeSubscriptionOverflow), "got %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("overflow not reported")
	}
}

func TestSubscribe_ConnectionLostEndsSubscription(t *testing.T) {
	srv := rpctest.NewServer(t)
	srv.HandleSubscription("chain_subscribeNewHeads")

	c := dial(t, srv, 0)

	sub, err := c.Subscribe(context.Background(), "chain_subscribeNewHeads", "chain_unsubscribeNewHeads")
	require.NoError(t, err)

	srv.DropConnections()

	select {
	case err := <-sub.Err():
		assert.True(t, IsClosed(err), "got %v", err)
	case <-time.After(3 * time.Second):
		t.Fatal("subscription not ended")
	}

	_, open := <-sub.Notifications()
	assert.False(t, open)
	assert.NoError(t, sub.Unsubscribe(context.Background()))
}

func TestSubscribe_TimeoutDropsNodeSubscription(t *testing.T) {
	srv := rpctest.NewServer(t)
	release := make(chan struct{})
	srv.Handle("chain_subscribeNewHeads", func([]json.RawMessage) (any, error) {
		<-release
		return "sub-late", nil
	})
	srv.HandleResult("chain_unsubscribeNewHeads", true)

	c := dial(t, srv, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Subscribe(ctx, "chain_subscribeNewHeads", "chain_unsubscribeNewHeads")
	assert.True(t, apperror.HasCode(err, apperror.CodeServiceTimeout))

	// The node grants the subscription after the caller gave up.
	close(release)

	require.Eventually(t, func() bool {
		return len(srv.Calls("chain_unsubscribeNewHeads")) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.JSONEq(t, `"sub-late"`, string(srv.Calls("chain_unsubscribeNewHeads")[0][0]))

	// Nothing is delivered for the orphaned id and the session stays usable.
	srv.Notify("chain_newHead", "sub-late", 1)
	srv.HandleResult("system_chain", "Development")
	var chain string
	require.NoError(t, c.Call(context.Background(), &chain, "system_chain"))
	assert.Equal(t, "Development", chain)
}

func TestSubscriptionKey(t *testing.T) {
	assert.Equal(t, "abc", subscriptionKey(json.RawMessage(`"abc"`)))
	assert.Equal(t, "17", subscriptionKey(json.RawMessage(`17`)))

	id, ok := parseID(json.RawMessage(`"5"`))
	assert.True(t, ok)
	assert.Equal(t, uint64(5), id)

	_, ok = parseID(json.RawMessage(`"x"`))
	assert.False(t, ok)
}
