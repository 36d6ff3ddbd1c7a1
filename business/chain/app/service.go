package app

import (
	"context"

	"github.com/fd1az/substrate-explorer/business/chain/domain"
	"github.com/fd1az/substrate-explorer/business/chain/infra/substrate"
)

var _ Chain = (*ChainService)(nil)

// ChainService binds the substrate query components to the manager's
// current session.
type ChainService struct {
	manager  *substrate.Manager
	blocks   *substrate.BlockReader
	accounts *substrate.AccountReader
	resolver *substrate.HashResolver
	heads    *substrate.HeadSubscriber
}

// NewChainService creates a new ChainService.
func NewChainService(
	manager *substrate.Manager,
	blocks *substrate.BlockReader,
	accounts *substrate.AccountReader,
	resolver *substrate.HashResolver,
	heads *substrate.HeadSubscriber,
) *ChainService {
	return &ChainService{
		manager:  manager,
		blocks:   blocks,
		accounts: accounts,
		resolver: resolver,
		heads:    heads,
	}
}

// Connect opens a session to endpoint.
func (s *ChainService) Connect(ctx context.Context, endpoint string) (domain.ConnectionState, error) {
	conn, err := s.manager.Connect(ctx, endpoint)
	if err != nil {
		return s.manager.State(), err
	}
	return conn.State(), nil
}

// Disconnect ends the current session.
func (s *ChainService) Disconnect() error {
	return s.manager.Close()
}

// State returns the latest connection state.
func (s *ChainService) State() domain.ConnectionState {
	return s.manager.State()
}

// WatchState streams connection state changes.
func (s *ChainService) WatchState() (<-chan domain.ConnectionState, func()) {
	return s.manager.Watch()
}

// GetBlock returns the block at sel.
func (s *ChainService) GetBlock(ctx context.Context, sel domain.Selector) (*domain.Block, error) {
	conn, err := s.manager.Current()
	if err != nil {
		return nil, err
	}
	return s.blocks.GetBlock(ctx, conn, sel)
}

// LatestHeader returns the best block's header.
func (s *ChainService) LatestHeader(ctx context.Context) (*domain.Header, error) {
	conn, err := s.manager.Current()
	if err != nil {
		return nil, err
	}
	return s.blocks.LatestHeader(ctx, conn)
}

// FinalizedHeader returns the last finalized header.
func (s *ChainService) FinalizedHeader(ctx context.Context) (*domain.Header, error) {
	conn, err := s.manager.Current()
	if err != nil {
		return nil, err
	}
	return s.blocks.FinalizedHeader(ctx, conn)
}

// GetAccount returns the account at address.
func (s *ChainService) GetAccount(ctx context.Context, address string) (*domain.Account, error) {
	conn, err := s.manager.Current()
	if err != nil {
		return nil, err
	}
	return s.accounts.GetAccount(ctx, conn, address)
}

// ResolveHash classifies hash.
func (s *ChainService) ResolveHash(ctx context.Context, hash string) (domain.LookupResult, error) {
	conn, err := s.manager.Current()
	if err != nil {
		return domain.LookupResult{Type: domain.LookupUnknown}, err
	}
	return s.resolver.ResolveHash(ctx, conn, hash)
}

// SubscribeNewHeads streams new heads from the current session.
func (s *ChainService) SubscribeNewHeads(ctx context.Context) (HeadStream, error) {
	conn, err := s.manager.Current()
	if err != nil {
		return nil, err
	}
	hs, err := s.heads.SubscribeNewHeads(ctx, conn)
	if err != nil {
		return nil, err
	}
	return hs, nil
}

// WatchNewHeads calls onHead for every new head until the returned function
// is called.
func (s *ChainService) WatchNewHeads(ctx context.Context, onHead func(domain.Header)) (func(), error) {
	conn, err := s.manager.Current()
	if err != nil {
		return nil, err
	}
	return s.heads.WatchNewHeads(ctx, conn, onHead)
}
