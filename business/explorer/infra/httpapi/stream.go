package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	chainDomain "github.com/fd1az/substrate-explorer/business/chain/domain"
	"github.com/fd1az/substrate-explorer/internal/apperror"
	"github.com/fd1az/substrate-explorer/internal/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// frame is one message on the heads stream. The first frame of a session
// is a hello carrying the session id and the recent heads.
type frame struct {
	Type    string               `json:"type"`
	Session string               `json:"session,omitempty"`
	Header  *chainDomain.Header  `json:"header,omitempty"`
	Recent  []chainDomain.Header `json:"recent,omitempty"`
}

// headStream pushes every recorded head to WebSocket clients.
type headStream struct {
	svc      Service
	logger   logger.LoggerInterface
	upgrader websocket.Upgrader
}

func newHeadStream(svc Service, log logger.LoggerInterface) *headStream {
	return &headStream{
		svc:    svc,
		logger: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (s *headStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !isWebSocket(r) {
		writeJSON(w, http.StatusBadRequest, apperror.Validation(apperror.CodeInvalidInput,
			"websocket upgrade required").ToResponse())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		s.logger.Warn(r.Context(), "heads stream upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	session := uuid.NewString()
	ctx := context.WithoutCancel(r.Context())
	s.logger.Info(ctx, "heads stream opened", "session", session, "remote", r.RemoteAddr)
	defer s.logger.Info(ctx, "heads stream closed", "session", session)

	heads, cancel := s.svc.WatchHeads()
	defer cancel()

	if err := s.write(conn, frame{Type: "hello", Session: session, Recent: s.svc.RecentHeads()}); err != nil {
		return
	}

	// Reads only serve control frames and notice the client leaving.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			return
		case h, ok := <-heads:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "explorer stopped"),
					time.Now().Add(writeWait))
				return
			}
			if err := s.write(conn, frame{Type: "head", Header: &h}); err != nil {
				s.logger.Debug(ctx, "heads stream write failed", "session", session, "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (s *headStream) write(conn *websocket.Conn, f frame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(f)
}
