// Package app contains application services and port definitions for the explorer context.
package app

import (
	"context"

	chainDomain "github.com/fd1az/substrate-explorer/business/chain/domain"
)

// Reporter defines the interface for presenting explorer activity.
// The explorer reports connection changes and heads from different
// goroutines, so implementations must be safe for concurrent use.
type Reporter interface {
	// Start initializes the reporter.
	Start(ctx context.Context) error

	// ReportHead presents a new best-block header.
	ReportHead(h chainDomain.Header)

	// UpdateConnection presents a connection state change.
	UpdateConnection(state chainDomain.ConnectionState)

	// ReportError presents a failure the explorer recovered from.
	ReportError(err error)

	// Stop gracefully shuts down the reporter.
	Stop() error
}
