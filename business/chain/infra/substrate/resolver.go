package substrate

import (
	"context"

	"github.com/fd1az/substrate-explorer/business/chain/domain"
	"github.com/fd1az/substrate-explorer/internal/apperror"
	"github.com/fd1az/substrate-explorer/internal/logger"
)

// HashResolver classifies an arbitrary hash.
type HashResolver struct {
	blocks *BlockReader
	logger logger.LoggerInterface
}

// NewHashResolver creates a HashResolver probing through blocks.
func NewHashResolver(blocks *BlockReader, log logger.LoggerInterface) *HashResolver {
	return &HashResolver{blocks: blocks, logger: log}
}

// ResolveHash probes the node for a block with the given hash, first as a
// full block and then as a bare header. A hash that matches nothing (or is
// malformed) resolves to unknown. The only error is NOT_CONNECTED.
func (r *HashResolver) ResolveHash(ctx context.Context, conn *Conn, hash string) (domain.LookupResult, error) {
	unknown := domain.LookupResult{Type: domain.LookupUnknown}

	if !conn.IsConnected() {
		return unknown, apperror.NotConnected("resolve hash")
	}

	h, err := domain.ParseHash(hash)
	if err != nil {
		return unknown, nil
	}

	block, err := r.blocks.GetBlock(ctx, conn, domain.AtHash(h))
	if err == nil {
		return domain.LookupResult{Type: domain.LookupBlock, Data: block}, nil
	}
	r.logger.Debug(ctx, "block probe failed", "hash", hash, "error", err)

	header, err := r.blocks.GetHeader(ctx, conn, h)
	if err == nil {
		return domain.LookupResult{
			Type: domain.LookupBlock,
			Data: &domain.Block{
				Header:     *header,
				Extrinsics: []domain.Extrinsic{},
				HeaderOnly: true,
			},
		}, nil
	}
	r.logger.Debug(ctx, "header probe failed", "hash", hash, "error", err)

	if !conn.IsConnected() {
		return unknown, apperror.NotConnected("resolve hash")
	}
	return unknown, nil
}
