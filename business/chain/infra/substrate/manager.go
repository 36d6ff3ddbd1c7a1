package substrate

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/fd1az/substrate-explorer/business/chain/domain"
	"github.com/fd1az/substrate-explorer/internal/apperror"
	"github.com/fd1az/substrate-explorer/internal/circuitbreaker"
	"github.com/fd1az/substrate-explorer/internal/jsonrpc"
	"github.com/fd1az/substrate-explorer/internal/logger"
	"github.com/fd1az/substrate-explorer/internal/ratelimit"
	"github.com/fd1az/substrate-explorer/internal/scale"
	"github.com/fd1az/substrate-explorer/internal/ss58"
	"github.com/fd1az/substrate-explorer/internal/wsconn"
)

// DefaultEndpoint is a local development node.
const DefaultEndpoint = "ws://127.0.0.1:9944"

// ManagerConfig holds configuration for node sessions.
type ManagerConfig struct {
	DialTimeout        time.Duration
	RequestTimeout     time.Duration // per RPC call, 0 = caller's context only
	PingInterval       time.Duration
	MaxMessageSize     int64 // runtime metadata alone is several hundred KiB
	RequestsPerSecond  float64
	Burst              int
	SubscriptionBuffer int
	BreakerFailures    uint32
	BreakerTimeout     time.Duration
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		DialTimeout:        10 * time.Second,
		RequestTimeout:     30 * time.Second,
		PingInterval:       30 * time.Second,
		MaxMessageSize:     32 << 20,
		SubscriptionBuffer: jsonrpc.DefaultSubscriptionBuffer,
		BreakerFailures:    5,
		BreakerTimeout:     10 * time.Second,
	}
}

// Manager owns the current node session and publishes its state. It does not
// retry; callers decide when to reconnect.
type Manager struct {
	config ManagerConfig
	logger logger.LoggerInterface

	// connectMu serializes Connect so sessions never stack.
	connectMu sync.Mutex

	mu       sync.Mutex
	current  *Conn
	state    domain.ConnectionState
	watchers map[int]chan domain.ConnectionState
	nextW    int

	tracer  trace.Tracer
	metrics *chainMetrics
}

// NewManager creates a Manager in the disconnected state.
func NewManager(cfg ManagerConfig, log logger.LoggerInterface) (*Manager, error) {
	m := &Manager{
		config:   cfg,
		logger:   log,
		state:    domain.Disconnected("", nil),
		watchers: make(map[int]chan domain.ConnectionState),
		tracer:   otel.Tracer(tracerName),
	}

	var err error
	if m.metrics, err = newMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return m, nil
}

// Connect opens a session to endpoint, replacing (and closing) the current
// one. On failure the state is disconnected and a CONNECTION_FAILED error is
// returned.
func (m *Manager) Connect(ctx context.Context, endpoint string) (*Conn, error) {
	ctx, span := m.tracer.Start(ctx, "substrate.connect",
		trace.WithAttributes(attribute.String("endpoint", endpoint)),
	)
	defer span.End()

	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	m.mu.Lock()
	prev := m.current
	m.current = nil
	m.mu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}

	m.publish(domain.ConnectionState{Status: domain.StatusConnecting, Endpoint: endpoint})

	conn, err := m.open(ctx, endpoint)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "connect failed")
		m.publish(domain.Disconnected(endpoint, err))
		m.logger.Warn(ctx, "node connection failed", "endpoint", endpoint, "error", err)
		return nil, apperror.New(apperror.CodeConnectionFailed,
			apperror.WithCause(err),
			apperror.WithContext(endpoint))
	}

	m.mu.Lock()
	displaced := m.current
	m.current = conn
	m.mu.Unlock()
	if displaced != nil {
		_ = displaced.Close()
	}

	m.publish(conn.state)
	go m.monitor(conn)

	m.logger.Info(ctx, "connected to node",
		"endpoint", endpoint,
		"chain", conn.state.ChainName,
		"node", conn.state.NodeName,
		"version", conn.state.NodeVersion,
		"spec", fmt.Sprintf("%s/%d", conn.state.SpecName, conn.state.SpecVersion),
		"metadata", conn.meta.Version)
	span.SetStatus(codes.Ok, "connected")
	return conn, nil
}

func (m *Manager) open(ctx context.Context, endpoint string) (*Conn, error) {
	wsCfg := wsconn.DefaultConfig(endpoint, "substrate")
	wsCfg.DialTimeout = m.config.DialTimeout
	wsCfg.PingInterval = m.config.PingInterval
	if m.config.MaxMessageSize > 0 {
		wsCfg.MaxMessageSize = m.config.MaxMessageSize
	}

	rpc, err := jsonrpc.Dial(ctx, jsonrpc.Config{
		WS:                 wsCfg,
		SubscriptionBuffer: m.config.SubscriptionBuffer,
		Logger:             m.logger,
	})
	if err != nil {
		return nil, err
	}

	breakerCfg := circuitbreaker.DefaultConfig("substrate-rpc")
	if m.config.BreakerFailures > 0 {
		breakerCfg.ConsecutiveFailures = m.config.BreakerFailures
	}
	if m.config.BreakerTimeout > 0 {
		breakerCfg.Timeout = m.config.BreakerTimeout
	}
	breakerCfg.IsSuccessful = breakerSuccess
	breakerCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		m.logger.Info(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}

	conn := &Conn{
		endpoint: endpoint,
		rpc:      rpc,
		breaker:  circuitbreaker.New[json.RawMessage](breakerCfg),
		limiter:  ratelimit.New(m.config.RequestsPerSecond, m.config.Burst),
		timeout:  m.config.RequestTimeout,
		logger:   m.logger,
		tracer:   m.tracer,
		metrics:  m.metrics,
	}

	if err := m.identify(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

type runtimeVersion struct {
	SpecName    string `json:"specName"`
	SpecVersion uint32 `json:"specVersion"`
}

type chainProperties struct {
	SS58Format    *uint16         `json:"ss58Format"`
	TokenSymbol   json.RawMessage `json:"tokenSymbol"`
	TokenDecimals json.RawMessage `json:"tokenDecimals"`
}

// identify fetches the chain identity and runtime metadata concurrently.
func (m *Manager) identify(ctx context.Context, conn *Conn) error {
	var (
		chain, name, version string
		props                chainProperties
		rv                   runtimeVersion
		metaHex              string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return conn.call(gctx, &chain, "system_chain") })
	g.Go(func() error { return conn.call(gctx, &name, "system_name") })
	g.Go(func() error { return conn.call(gctx, &version, "system_version") })
	g.Go(func() error { return conn.call(gctx, &props, "system_properties") })
	g.Go(func() error { return conn.call(gctx, &rv, "state_getRuntimeVersion") })
	g.Go(func() error { return conn.call(gctx, &metaHex, "state_getMetadata") })
	if err := g.Wait(); err != nil {
		return err
	}

	raw, err := hexutil.Decode(metaHex)
	if err != nil {
		return apperror.New(apperror.CodeMetadataDecodeFailed,
			apperror.WithCause(err),
			apperror.WithContext("metadata is not hex"))
	}
	md, err := scale.DecodeMetadata(raw)
	if err != nil {
		return apperror.New(apperror.CodeMetadataDecodeFailed, apperror.WithCause(err))
	}
	conn.meta = md

	var storage types.Metadata
	if err := codec.DecodeFromHex(metaHex, &storage); err != nil {
		m.logger.Debug(ctx, "storage key metadata unavailable, using local key builder",
			"metadata", md.Version, "error", err)
	} else {
		conn.storage = &storage
	}

	conn.state = domain.ConnectionState{
		Status:        domain.StatusConnected,
		Connected:     true,
		Endpoint:      conn.endpoint,
		ChainName:     chain,
		NodeName:      name,
		NodeVersion:   version,
		SpecName:      rv.SpecName,
		SpecVersion:   rv.SpecVersion,
		SS58Format:    ss58.DefaultPrefix,
		TokenSymbol:   firstString(props.TokenSymbol),
		TokenDecimals: uint8(firstUint(props.TokenDecimals)),
		ConnectedAt:   time.Now(),
	}
	if props.SS58Format != nil {
		conn.state.SS58Format = *props.SS58Format
	}
	return nil
}

// monitor publishes the drop of conn unless it was replaced or closed first.
func (m *Manager) monitor(conn *Conn) {
	<-conn.Done()

	m.mu.Lock()
	if m.current != conn {
		m.mu.Unlock()
		return
	}
	m.current = nil
	m.mu.Unlock()

	err := conn.rpc.Err()
	if conn.closed.Load() {
		err = nil
	}
	m.logger.Warn(context.Background(), "node session ended", "endpoint", conn.endpoint, "error", err)
	m.publish(domain.Disconnected(conn.endpoint, err))
}

// Current returns the live session or a NOT_CONNECTED error.
func (m *Manager) Current() (*Conn, error) {
	m.mu.Lock()
	conn := m.current
	m.mu.Unlock()

	if !conn.IsConnected() {
		return nil, apperror.NotConnected("no live node session")
	}
	return conn, nil
}

// State returns the latest published connection state.
func (m *Manager) State() domain.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Watch returns a channel receiving the current state and then every change.
// A slow watcher only misses intermediate states, never the latest one.
// Call cancel to stop watching.
func (m *Manager) Watch() (<-chan domain.ConnectionState, func()) {
	ch := make(chan domain.ConnectionState, 1)

	m.mu.Lock()
	id := m.nextW
	m.nextW++
	m.watchers[id] = ch
	ch <- m.state
	m.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.watchers, id)
			m.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (m *Manager) publish(state domain.ConnectionState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = state
	for _, ch := range m.watchers {
		// keep only the newest state for slow watchers
		select {
		case <-ch:
		default:
		}
		ch <- state
	}
	m.metrics.connectionState.Record(context.Background(), stateValue(state.Status))
}

// Close ends the current session and publishes the disconnected state.
func (m *Manager) Close() error {
	m.mu.Lock()
	conn := m.current
	m.current = nil
	endpoint := m.state.Endpoint
	m.mu.Unlock()

	if conn == nil {
		return nil
	}
	err := conn.Close()
	m.publish(domain.Disconnected(endpoint, nil))
	return err
}

// firstString reads a property that is either a string or a list of strings.
func firstString(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var list []string
	if json.Unmarshal(raw, &list) == nil && len(list) > 0 {
		return list[0]
	}
	return ""
}

// firstUint reads a property that is either a number or a list of numbers.
func firstUint(raw json.RawMessage) uint64 {
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		v, _ := strconv.ParseUint(n.String(), 10, 8)
		return v
	}
	var list []json.Number
	if json.Unmarshal(raw, &list) == nil && len(list) > 0 {
		v, _ := strconv.ParseUint(list[0].String(), 10, 8)
		return v
	}
	return 0
}
