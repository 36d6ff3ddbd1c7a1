package wsconn

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/substrate-explorer/internal/apperror"
)

// serve starts a WebSocket server running handler for each session.
func serve(t *testing.T, handler func(ctx context.Context, conn *websocket.Conn)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		handler(r.Context(), conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func echo(ctx context.Context, conn *websocket.Conn) {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if err := conn.Write(ctx, typ, data); err != nil {
			return
		}
	}
}

type stateLog struct {
	mu     sync.Mutex
	states []State
	errs   []error
}

func (l *stateLog) record(s State, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, s)
	l.errs = append(l.errs, err)
}

func (l *stateLog) snapshot() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]State(nil), l.states...)
}

func testConfig(url string) Config {
	cfg := DefaultConfig(url, "node")
	cfg.DialTimeout = 2 * time.Second
	cfg.PingInterval = 0
	return cfg
}

func TestNew_Validation(t *testing.T) {
	for _, url := range []string{"", "http://127.0.0.1:9944", "::not a url"} {
		_, err := New(Config{URL: url})
		assert.True(t, apperror.HasCode(err, apperror.CodeConfigurationError), "url %q", url)
	}

	c, err := New(Config{URL: "wss://rpc.polkadot.io"})
	require.NoError(t, err)
	assert.Equal(t, StateDisconnected, c.State())
	assert.Equal(t, int64(16<<20), c.config.MaxMessageSize)
}

func TestClient_RoundTrip(t *testing.T) {
	c, err := New(testConfig(serve(t, echo)))
	require.NoError(t, err)
	defer c.Close()

	got := make(chan string, 2)
	c.OnMessage(func(_ context.Context, msg []byte) { got <- string(msg) })

	require.NoError(t, c.Connect(context.Background()))
	assert.True(t, c.IsConnected())
	// A second Connect on a live session is a no-op.
	require.NoError(t, c.Connect(context.Background()))

	require.NoError(t, c.SendJSON(context.Background(), map[string]any{"id": 1, "method": "system_chain"}))
	require.NoError(t, c.Send(context.Background(), []byte(`{"id":2}`)))

	for _, want := range []string{`{"id":1,"method":"system_chain"}`, `{"id":2}`} {
		select {
		case msg := <-got:
			assert.JSONEq(t, want, msg)
		case <-time.After(2 * time.Second):
			t.Fatal("no echo")
		}
	}
}

func TestClient_StateTransitions(t *testing.T) {
	var log stateLog
	c, err := New(testConfig(serve(t, echo)))
	require.NoError(t, err)
	c.OnStateChange(log.record)

	require.NoError(t, c.Connect(context.Background()))
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	assert.Equal(t, []State{StateConnecting, StateConnected, StateClosed}, log.snapshot())

	err = c.Connect(context.Background())
	assert.True(t, apperror.HasCode(err, apperror.CodeWebSocketClosed))
	err = c.Send(context.Background(), []byte("x"))
	assert.True(t, apperror.HasCode(err, apperror.CodeWebSocketClosed))
}

func TestClient_DialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	var log stateLog
	c, err := New(testConfig(url))
	require.NoError(t, err)
	c.OnStateChange(log.record)

	err = c.Connect(context.Background())
	assert.True(t, apperror.HasCode(err, apperror.CodeWebSocketConnectionError))
	assert.Equal(t, StateDisconnected, c.State())
	assert.Equal(t, []State{StateConnecting, StateDisconnected}, log.snapshot())
}

func TestClient_ServerDropThenReconnect(t *testing.T) {
	var sessions sync.WaitGroup
	sessions.Add(1)
	first := true
	var mu sync.Mutex

	url := serve(t, func(ctx context.Context, conn *websocket.Conn) {
		mu.Lock()
		drop := first
		first = false
		mu.Unlock()
		if drop {
			defer sessions.Done()
			_ = conn.Close(websocket.StatusGoingAway, "node restarting")
			return
		}
		echo(ctx, conn)
	})

	var log stateLog
	c, err := New(testConfig(url))
	require.NoError(t, err)
	defer c.Close()
	c.OnStateChange(log.record)

	require.NoError(t, c.Connect(context.Background()))
	sessions.Wait()

	require.Eventually(t, func() bool { return c.State() == StateDisconnected }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, apperror.HasCode(c.Err(), apperror.CodeWebSocketClosed))
	assert.True(t, apperror.HasCode(c.Send(context.Background(), []byte("x")), apperror.CodeWebSocketClosed))

	got := make(chan []byte, 1)
	c.OnMessage(func(_ context.Context, msg []byte) { got <- msg })
	require.NoError(t, c.Connect(context.Background()))
	assert.NoError(t, c.Err())
	require.NoError(t, c.Send(context.Background(), []byte("ping")))

	select {
	case msg := <-got:
		assert.Equal(t, "ping", string(msg))
	case <-time.After(2 * time.Second):
		t.Fatal("no echo after reconnect")
	}
}

func TestClient_ReadLimit(t *testing.T) {
	url := serve(t, func(ctx context.Context, conn *websocket.Conn) {
		_ = conn.Write(ctx, websocket.MessageText, []byte(strings.Repeat("a", 2048)))
		_, _, _ = conn.Read(ctx)
	})

	cfg := testConfig(url)
	cfg.MaxMessageSize = 1024
	c, err := New(cfg)
	require.NoError(t, err)
	defer c.Close()

	var delivered bool
	var mu sync.Mutex
	c.OnMessage(func(context.Context, []byte) {
		mu.Lock()
		delivered = true
		mu.Unlock()
	})

	require.NoError(t, c.Connect(context.Background()))
	require.Eventually(t, func() bool { return c.State() == StateDisconnected }, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.False(t, delivered)
}
