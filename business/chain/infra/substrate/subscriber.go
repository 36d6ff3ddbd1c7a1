package substrate

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/substrate-explorer/business/chain/domain"
	"github.com/fd1az/substrate-explorer/internal/jsonrpc"
	"github.com/fd1az/substrate-explorer/internal/logger"
)

const (
	subscribeNewHeads   = "chain_subscribeNewHeads"
	unsubscribeNewHeads = "chain_unsubscribeNewHeads"
	unsubscribeTimeout  = 5 * time.Second
)

// HeadSubscriber opens new-head streams.
type HeadSubscriber struct {
	logger  logger.LoggerInterface
	metrics *chainMetrics
}

// NewHeadSubscriber creates a HeadSubscriber.
func NewHeadSubscriber(log logger.LoggerInterface) (*HeadSubscriber, error) {
	m, err := newMetrics()
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return &HeadSubscriber{logger: log, metrics: m}, nil
}

// HeadSubscription is a live stream of new best-block headers in node order.
type HeadSubscription struct {
	sub     *jsonrpc.Subscription
	headers chan domain.Header
	err     chan error
	quit    chan struct{}
	done    chan struct{}
	once    sync.Once

	logger  logger.LoggerInterface
	metrics *chainMetrics
}

// SubscribeNewHeads subscribes to new heads on conn. The subscription is
// live on the node when this returns.
func (s *HeadSubscriber) SubscribeNewHeads(ctx context.Context, conn *Conn) (*HeadSubscription, error) {
	sub, err := conn.subscribe(ctx, subscribeNewHeads, unsubscribeNewHeads)
	if err != nil {
		return nil, err
	}

	hs := &HeadSubscription{
		sub:     sub,
		headers: make(chan domain.Header),
		err:     make(chan error, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		logger:  s.logger,
		metrics: s.metrics,
	}
	go hs.forward(conn.Endpoint())

	s.logger.Info(ctx, "subscribed to new heads", "endpoint", conn.Endpoint(), "subscription", sub.ID())
	return hs, nil
}

// Headers yields headers in arrival order. It is closed when the stream ends.
func (h *HeadSubscription) Headers() <-chan domain.Header {
	return h.headers
}

// Err yields the error that ended the stream, if any, and is then closed.
func (h *HeadSubscription) Err() <-chan error {
	return h.err
}

// Unsubscribe stops delivery and cancels the subscription on the node. No
// header is delivered after it returns. It is idempotent.
func (h *HeadSubscription) Unsubscribe() error {
	var err error
	h.once.Do(func() {
		close(h.quit)
		<-h.done

		ctx, cancel := context.WithTimeout(context.Background(), unsubscribeTimeout)
		defer cancel()
		err = h.sub.Unsubscribe(ctx)
	})
	return err
}

func (h *HeadSubscription) forward(endpoint string) {
	defer close(h.done)
	defer close(h.headers)
	defer close(h.err)

	attrs := metric.WithAttributes(attribute.String("endpoint", endpoint))
	for {
		select {
		case <-h.quit:
			return
		case raw, ok := <-h.sub.Notifications():
			if !ok {
				if err, ok := <-h.sub.Err(); ok && err != nil {
					h.err <- err
				}
				return
			}
			header, err := decodeHead(raw)
			if err != nil {
				h.logger.Warn(context.Background(), "dropping malformed head", "error", err)
				continue
			}
			select {
			case h.headers <- header:
				h.metrics.headsReceived.Add(context.Background(), 1, attrs)
			case <-h.quit:
				return
			}
		}
	}
}

func decodeHead(raw json.RawMessage) (domain.Header, error) {
	var rh rpcHeader
	if err := json.Unmarshal(raw, &rh); err != nil {
		return domain.Header{}, err
	}
	return rh.toHeader()
}

// WatchNewHeads calls onHead for every new head until the returned function
// is called. Calls are sequential. Once unsubscribe returns no further call
// starts; it may be called from inside onHead.
func (s *HeadSubscriber) WatchNewHeads(ctx context.Context, conn *Conn, onHead func(domain.Header)) (func(), error) {
	hs, err := s.SubscribeNewHeads(ctx, conn)
	if err != nil {
		return nil, err
	}

	var (
		mu         sync.Mutex
		stopped    atomic.Bool
		inCallback atomic.Bool
	)

	go func() {
		for header := range hs.Headers() {
			mu.Lock()
			if stopped.Load() {
				mu.Unlock()
				return
			}
			inCallback.Store(true)
			onHead(header)
			inCallback.Store(false)
			mu.Unlock()
		}
		if err, ok := <-hs.Err(); ok && err != nil && !stopped.Load() {
			s.logger.Warn(context.Background(), "head stream ended", "endpoint", conn.Endpoint(), "error", err)
		}
	}()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			stopped.Store(true)
			// a running callback (possibly the caller) already started
			if !inCallback.Load() {
				mu.Lock()
				mu.Unlock() //nolint:staticcheck // barrier
			}
			if err := hs.Unsubscribe(); err != nil {
				s.logger.Debug(context.Background(), "remote unsubscribe failed", "error", err)
			}
		})
	}
	return unsubscribe, nil
}
