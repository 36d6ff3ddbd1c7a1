// Package rpctest provides an in-process JSON-RPC WebSocket server for tests.
package rpctest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// HandlerFunc answers one request. A nil result is sent as JSON null.
// Returning *Error sends that error object; any other error is sent as
// code -32000.
type HandlerFunc func(params []json.RawMessage) (any, error)

// Error is a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return fmt.Sprintf("%d: %s", e.Code, e.Message) }

type request struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// Server is a fake node. Unregistered methods answer "Method not found".
type Server struct {
	srv *httptest.Server

	mu       sync.Mutex
	handlers map[string]HandlerFunc
	conns    map[*websocket.Conn]struct{}
	calls    map[string][][]json.RawMessage
	subs     map[string][]string
	nextSub  int
}

// NewServer starts a server closed on test cleanup.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		handlers: make(map[string]HandlerFunc),
		conns:    make(map[*websocket.Conn]struct{}),
		calls:    make(map[string][][]json.RawMessage),
		subs:     make(map[string][]string),
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// URL returns the ws:// endpoint.
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

// Handle registers a handler for method.
func (s *Server) Handle(method string, h HandlerFunc) {
	s.mu.Lock()
	s.handlers[method] = h
	s.mu.Unlock()
}

// HandleResult answers method with a fixed result.
func (s *Server) HandleResult(method string, result any) {
	s.Handle(method, func([]json.RawMessage) (any, error) { return result, nil })
}

// HandleSubscription answers method with a fresh subscription id
// ("sub-1", "sub-2", ...) and records it.
func (s *Server) HandleSubscription(method string) {
	s.Handle(method, func([]json.RawMessage) (any, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.nextSub++
		id := fmt.Sprintf("sub-%d", s.nextSub)
		s.subs[method] = append(s.subs[method], id)
		return id, nil
	})
}

// Subscriptions returns the ids handed out for method, oldest first.
func (s *Server) Subscriptions(method string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.subs[method]...)
}

// Calls returns the params of every call to method, oldest first.
func (s *Server) Calls(method string) [][]json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]json.RawMessage(nil), s.calls[method]...)
}

// Notify pushes a notification to every open connection.
func (s *Server) Notify(method, subscription string, result any) {
	frame := map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params": map[string]any{
			"subscription": subscription,
			"result":       result,
		},
	}
	for _, conn := range s.openConns() {
		_ = wsjson.Write(context.Background(), conn, frame)
	}
}

// OpenConnections returns the number of live client sessions.
func (s *Server) OpenConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// DropConnections abruptly closes every open connection.
func (s *Server) DropConnections() {
	for _, conn := range s.openConns() {
		_ = conn.CloseNow()
	}
}

// Close shuts the server down.
func (s *Server) Close() {
	s.DropConnections()
	s.srv.Close()
}

func (s *Server) openConns() []*websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		out = append(out, c)
	}
	return out
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	conn.SetReadLimit(64 << 20)

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.CloseNow()
	}()

	ctx := r.Context()
	for {
		var req request
		if err := wsjson.Read(ctx, conn, &req); err != nil {
			return
		}
		if err := wsjson.Write(ctx, conn, s.answer(req)); err != nil {
			return
		}
	}
}

func (s *Server) answer(req request) map[string]any {
	s.mu.Lock()
	h, ok := s.handlers[req.Method]
	s.calls[req.Method] = append(s.calls[req.Method], req.Params)
	s.mu.Unlock()

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if !ok {
		resp["error"] = &Error{Code: -32601, Message: "Method not found"}
		return resp
	}

	result, err := h(req.Params)
	if err != nil {
		if rpcErr, ok := err.(*Error); ok {
			resp["error"] = rpcErr
		} else {
			resp["error"] = &Error{Code: -32000, Message: err.Error()}
		}
		return resp
	}
	resp["result"] = result
	return resp
}
