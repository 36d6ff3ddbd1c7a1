// Package substrate provides the Substrate node adapters: connection
// management, block, account and hash queries, and head subscriptions.
package substrate

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/substrate-explorer/business/chain/domain"
)

const (
	tracerName = "github.com/fd1az/substrate-explorer/business/chain/infra/substrate"
	meterName  = "github.com/fd1az/substrate-explorer/business/chain/infra/substrate"
)

// chainMetrics holds OTEL metric instruments.
type chainMetrics struct {
	rpcRequests     metric.Int64Counter
	rpcErrors       metric.Int64Counter
	rpcLatency      metric.Float64Histogram
	headsReceived   metric.Int64Counter
	connectionState metric.Int64Gauge
	decodeFailures  metric.Int64Counter
}

// newMetrics initializes OTEL metric instruments.
func newMetrics() (*chainMetrics, error) {
	meter := otel.Meter(meterName)
	m := &chainMetrics{}
	var err error

	m.rpcRequests, err = meter.Int64Counter(
		"substrate_rpc_requests_total",
		metric.WithDescription("Total JSON-RPC requests sent to the node"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	m.rpcErrors, err = meter.Int64Counter(
		"substrate_rpc_errors_total",
		metric.WithDescription("Total failed JSON-RPC requests"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	m.rpcLatency, err = meter.Float64Histogram(
		"substrate_rpc_latency_ms",
		metric.WithDescription("JSON-RPC round-trip latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	m.headsReceived, err = meter.Int64Counter(
		"substrate_heads_received_total",
		metric.WithDescription("Total new-head notifications delivered"),
		metric.WithUnit("{header}"),
	)
	if err != nil {
		return nil, err
	}

	m.connectionState, err = meter.Int64Gauge(
		"substrate_connection_state",
		metric.WithDescription("Node connection state (0=disconnected, 1=connecting, 2=connected)"),
		metric.WithUnit("{state}"),
	)
	if err != nil {
		return nil, err
	}

	m.decodeFailures, err = meter.Int64Counter(
		"substrate_extrinsic_decode_failures_total",
		metric.WithDescription("Extrinsics that could not be decoded against the metadata"),
		metric.WithUnit("{extrinsic}"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func stateValue(s domain.ConnectionStatus) int64 {
	switch s {
	case domain.StatusConnecting:
		return 1
	case domain.StatusConnected:
		return 2
	default:
		return 0
	}
}
