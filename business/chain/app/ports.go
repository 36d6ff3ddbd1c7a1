// Package app contains application services and port definitions for the chain context.
package app

import (
	"context"

	"github.com/fd1az/substrate-explorer/business/chain/domain"
)

// Chain is the chain-data surface other modules consume. Every query runs
// against the current node session and fails with NOT_CONNECTED without one.
type Chain interface {
	// Connect opens a session to endpoint, replacing the current one.
	Connect(ctx context.Context, endpoint string) (domain.ConnectionState, error)

	// Disconnect ends the current session.
	Disconnect() error

	// State returns the latest connection state.
	State() domain.ConnectionState

	// WatchState streams connection state changes until cancel is called.
	WatchState() (states <-chan domain.ConnectionState, cancel func())

	GetBlock(ctx context.Context, sel domain.Selector) (*domain.Block, error)
	LatestHeader(ctx context.Context) (*domain.Header, error)
	FinalizedHeader(ctx context.Context) (*domain.Header, error)
	GetAccount(ctx context.Context, address string) (*domain.Account, error)
	ResolveHash(ctx context.Context, hash string) (domain.LookupResult, error)

	// SubscribeNewHeads streams new best-block headers.
	SubscribeNewHeads(ctx context.Context) (HeadStream, error)
}

// HeadStream is a live new-heads subscription.
type HeadStream interface {
	Headers() <-chan domain.Header
	Err() <-chan error
	Unsubscribe() error
}
