package substrate

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/substrate-explorer/business/chain/domain"
	"github.com/fd1az/substrate-explorer/internal/apperror"
	"github.com/fd1az/substrate-explorer/internal/circuitbreaker"
	"github.com/fd1az/substrate-explorer/internal/jsonrpc"
	"github.com/fd1az/substrate-explorer/internal/logger"
	"github.com/fd1az/substrate-explorer/internal/ratelimit"
	"github.com/fd1az/substrate-explorer/internal/scale"
)

// Conn is a handle to one live node session. Every query component takes a
// Conn explicitly. Once the session drops or is replaced, every call fails
// with NOT_CONNECTED.
type Conn struct {
	endpoint string
	rpc      *jsonrpc.Client
	meta     *scale.Metadata
	storage  *types.Metadata // nil when the key builder cannot read the metadata
	state    domain.ConnectionState
	closed   atomic.Bool

	breaker *circuitbreaker.CircuitBreaker[json.RawMessage]
	limiter *ratelimit.Limiter
	timeout time.Duration

	logger  logger.LoggerInterface
	tracer  trace.Tracer
	metrics *chainMetrics
}

// Endpoint returns the node URL.
func (c *Conn) Endpoint() string {
	return c.endpoint
}

// IsConnected reports whether queries may be sent.
func (c *Conn) IsConnected() bool {
	return c != nil && !c.closed.Load() && c.rpc.Err() == nil
}

// State returns the session's connection state.
func (c *Conn) State() domain.ConnectionState {
	if !c.IsConnected() {
		var cause error
		if c != nil {
			cause = c.rpc.Err()
		}
		return domain.Disconnected(c.endpointOrEmpty(), cause)
	}
	return c.state
}

func (c *Conn) endpointOrEmpty() string {
	if c == nil {
		return ""
	}
	return c.endpoint
}

// Metadata returns the runtime metadata fetched at connect time.
func (c *Conn) Metadata() *scale.Metadata {
	return c.meta
}

// storageMetadata returns the metadata used to build storage keys, if the
// runtime serves a version the key builder understands.
func (c *Conn) storageMetadata() *types.Metadata {
	return c.storage
}

// SS58Format returns the chain's address prefix.
func (c *Conn) SS58Format() uint16 {
	return c.state.SS58Format
}

// Done is closed when the session ends.
func (c *Conn) Done() <-chan struct{} {
	return c.rpc.Done()
}

// Close ends the session. It is idempotent.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.rpc.Close()
}

// call sends one request through the rate limiter and circuit breaker and
// decodes the result into result (which may be nil).
func (c *Conn) call(ctx context.Context, result any, method string, params ...any) error {
	if !c.IsConnected() {
		return apperror.NotConnected(method)
	}

	ctx, span := c.tracer.Start(ctx, "substrate.rpc",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("rpc.method", method)),
	)
	defer span.End()

	attrs := metric.WithAttributes(attribute.String("method", method))

	if err := c.limiter.Wait(ctx); err != nil {
		span.RecordError(err)
		return apperror.Transport(method+": rate limiter", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := c.breaker.Execute(func() (json.RawMessage, error) {
		var raw json.RawMessage
		err := c.rpc.Call(ctx, &raw, method, params...)
		return raw, err
	})
	c.metrics.rpcRequests.Add(ctx, 1, attrs)
	c.metrics.rpcLatency.Record(ctx, float64(time.Since(start).Microseconds())/1000, attrs)

	if err != nil {
		c.metrics.rpcErrors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, "rpc failed")
		return c.classify(method, err)
	}

	if result != nil {
		if len(raw) == 0 {
			raw = json.RawMessage("null")
		}
		if err := json.Unmarshal(raw, result); err != nil {
			span.RecordError(err)
			return apperror.Transport(method+": decode result", err)
		}
	}

	span.SetStatus(codes.Ok, "ok")
	return nil
}

func (c *Conn) classify(method string, err error) error {
	switch {
	case jsonrpc.IsRPCError(err):
		return apperror.New(apperror.CodeNodeRPCError,
			apperror.WithCause(err),
			apperror.WithContext(method))
	case apperror.HasCode(err, apperror.CodeCircuitOpen),
		apperror.HasCode(err, apperror.CodeCircuitHalfOpen):
		return err
	default:
		if !c.IsConnected() {
			c.logger.Debug(context.Background(), "rpc failed on a dropped session", "method", method, "error", err)
		}
		return apperror.Transport(method, err)
	}
}

// breakerSuccess counts node-side errors as successes: the node answered.
func breakerSuccess(err error) bool {
	return err == nil || jsonrpc.IsRPCError(err)
}

// subscribe opens a server-push stream. Subscriptions bypass the rate limiter
// and breaker; they are long-lived and counted once.
func (c *Conn) subscribe(ctx context.Context, method, unsubscribe string, params ...any) (*jsonrpc.Subscription, error) {
	if !c.IsConnected() {
		return nil, apperror.NotConnected(method)
	}

	ctx, span := c.tracer.Start(ctx, "substrate.subscribe",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("rpc.method", method)),
	)
	defer span.End()

	attrs := metric.WithAttributes(attribute.String("method", method))
	c.metrics.rpcRequests.Add(ctx, 1, attrs)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	sub, err := c.rpc.Subscribe(ctx, method, unsubscribe, params...)
	if err != nil {
		c.metrics.rpcErrors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, "subscribe failed")
		if !c.IsConnected() {
			return nil, apperror.NotConnected(method)
		}
		return nil, apperror.New(apperror.CodeSubscriptionFailed,
			apperror.WithCause(err),
			apperror.WithContext(method))
	}
	span.SetStatus(codes.Ok, "subscribed")
	return sub, nil
}

func (c *Conn) extrinsicDecoder() *extrinsicDecoder {
	return &extrinsicDecoder{meta: c.meta, prefix: c.SS58Format()}
}
