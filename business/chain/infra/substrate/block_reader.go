package substrate

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/substrate-explorer/business/chain/domain"
	"github.com/fd1az/substrate-explorer/internal/apperror"
	"github.com/fd1az/substrate-explorer/internal/logger"
)

// BlockReader fetches blocks and headers by height or hash.
type BlockReader struct {
	logger  logger.LoggerInterface
	tracer  trace.Tracer
	metrics *chainMetrics
}

// NewBlockReader creates a BlockReader.
func NewBlockReader(log logger.LoggerInterface) (*BlockReader, error) {
	m, err := newMetrics()
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return &BlockReader{
		logger:  log,
		tracer:  otel.Tracer(tracerName),
		metrics: m,
	}, nil
}

// GetBlock returns the block at sel. A height is first resolved to its
// canonical hash, so both selectors of the same block give equal results.
// Returns BLOCK_NOT_FOUND when the node knows no such block.
func (r *BlockReader) GetBlock(ctx context.Context, conn *Conn, sel domain.Selector) (*domain.Block, error) {
	ctx, span := r.tracer.Start(ctx, "substrate.get_block",
		trace.WithAttributes(attribute.String("selector", sel.String())),
	)
	defer span.End()

	hash := sel.Hash()
	if !sel.IsHash() {
		var err error
		if hash, err = r.GetBlockHash(ctx, conn, sel.Height()); err != nil {
			span.RecordError(err)
			return nil, err
		}
	}

	var raw *rpcSignedBlock
	if err := conn.call(ctx, &raw, "chain_getBlock", hash.Hex()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "chain_getBlock failed")
		return nil, err
	}
	if raw == nil {
		return nil, apperror.NotFound(apperror.CodeBlockNotFound, sel.String())
	}

	header, err := raw.Block.Header.toHeader()
	if err != nil {
		return nil, apperror.New(apperror.CodeTransportError,
			apperror.WithCause(err),
			apperror.WithContext("malformed block "+sel.String()))
	}
	// the node's hash is authoritative; a local hash may use another hasher
	header.Hash = hash

	block := &domain.Block{
		Header:     header,
		Extrinsics: make([]domain.Extrinsic, 0, len(raw.Block.Extrinsics)),
	}

	dec := conn.extrinsicDecoder()
	for i, xt := range raw.Block.Extrinsics {
		encoded, err := hexutil.Decode(xt)
		if err != nil {
			encoded = nil
		}
		summary, err := dec.decode(i, encoded)
		if err != nil {
			r.metrics.decodeFailures.Add(ctx, 1)
			r.logger.Debug(ctx, "extrinsic not decoded",
				"block", header.Number, "index", i, "error", err)
		}
		block.Extrinsics = append(block.Extrinsics, summary)
	}

	span.SetAttributes(
		attribute.Int64("block.number", int64(header.Number)),
		attribute.Int("block.extrinsics", len(block.Extrinsics)),
	)
	span.SetStatus(codes.Ok, "ok")
	return block, nil
}

// GetBlockHash returns the canonical hash at height, or BLOCK_NOT_FOUND
// beyond the chain tip.
func (r *BlockReader) GetBlockHash(ctx context.Context, conn *Conn, height uint64) (common.Hash, error) {
	var hash *string
	if err := conn.call(ctx, &hash, "chain_getBlockHash", height); err != nil {
		return common.Hash{}, err
	}
	if hash == nil {
		return common.Hash{}, apperror.NotFound(apperror.CodeBlockNotFound, fmt.Sprintf("height %d", height))
	}
	h, err := domain.ParseHash(*hash)
	if err != nil {
		return common.Hash{}, apperror.Transport("chain_getBlockHash", err)
	}
	return h, nil
}

// GetHeader returns the header with the given hash.
func (r *BlockReader) GetHeader(ctx context.Context, conn *Conn, hash common.Hash) (*domain.Header, error) {
	h, err := r.header(ctx, conn, hash.Hex())
	if err != nil {
		return nil, err
	}
	h.Hash = hash
	return h, nil
}

// LatestHeader returns the best block's header.
func (r *BlockReader) LatestHeader(ctx context.Context, conn *Conn) (*domain.Header, error) {
	return r.header(ctx, conn)
}

// FinalizedHeader returns the header of the last finalized block.
func (r *BlockReader) FinalizedHeader(ctx context.Context, conn *Conn) (*domain.Header, error) {
	var hash string
	if err := conn.call(ctx, &hash, "chain_getFinalizedHead"); err != nil {
		return nil, err
	}
	h, err := domain.ParseHash(hash)
	if err != nil {
		return nil, apperror.Transport("chain_getFinalizedHead", err)
	}
	return r.GetHeader(ctx, conn, h)
}

func (r *BlockReader) header(ctx context.Context, conn *Conn, params ...any) (*domain.Header, error) {
	var raw *rpcHeader
	if err := conn.call(ctx, &raw, "chain_getHeader", params...); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, apperror.NotFound(apperror.CodeBlockNotFound, fmt.Sprint(params...))
	}
	h, err := raw.toHeader()
	if err != nil {
		return nil, apperror.Transport("malformed header", err)
	}
	return &h, nil
}
