package jsonrpc

import (
	"context"
	"encoding/json"
	"time"
)

const remoteUnsubscribeTimeout = 5 * time.Second

// Subscription is a live server-push stream.
type Subscription struct {
	client      *Client
	unsubscribe string
	id          string
	rawID       json.RawMessage

	ch  chan json.RawMessage
	err chan error

	// guarded by client.mu
	ended bool
}

// ID returns the node-assigned subscription id.
func (s *Subscription) ID() string {
	return s.id
}

// Notifications yields each notification's result in receipt order. It is
// closed when the subscription ends.
func (s *Subscription) Notifications() <-chan json.RawMessage {
	return s.ch
}

// Err yields the error that ended the subscription (connection loss or
// overflow) and is then closed. It is closed without a value on Unsubscribe.
func (s *Subscription) Err() <-chan error {
	return s.err
}

// Unsubscribe stops local delivery, then asks the node to drop the
// subscription. It is idempotent.
func (s *Subscription) Unsubscribe(ctx context.Context) error {
	c := s.client

	c.mu.Lock()
	if s.ended {
		c.mu.Unlock()
		return nil
	}
	c.endLocked(s, nil)
	alive := c.closeErr == nil
	c.mu.Unlock()

	if !alive || s.unsubscribe == "" {
		return nil
	}
	var ok bool
	return c.Call(ctx, &ok, s.unsubscribe, s.rawID)
}

func (s *Subscription) unsubscribeRemote() {
	if s.unsubscribe == "" || s.client.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), remoteUnsubscribeTimeout)
	defer cancel()

	var ok bool
	_ = s.client.Call(ctx, &ok, s.unsubscribe, s.rawID)
}
