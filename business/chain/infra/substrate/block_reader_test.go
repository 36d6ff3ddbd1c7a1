package substrate

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/substrate-explorer/business/chain/domain"
	"github.com/fd1az/substrate-explorer/internal/apperror"
	"github.com/fd1az/substrate-explorer/internal/jsonrpc/rpctest"
	"github.com/fd1az/substrate-explorer/internal/logger"
	"github.com/fd1az/substrate-explorer/internal/scale/scaletest"
)

const aliceSS58 = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"

var alice = [32]byte{
	0xd4, 0x35, 0x93, 0xc7, 0x15, 0xfd, 0xd3, 0x1c, 0x61, 0x14, 0x1a, 0xbd, 0x04, 0xa9, 0x9f, 0xd6,
	0x82, 0x2c, 0x85, 0x58, 0x85, 0x4c, 0xcd, 0xe3, 0x9a, 0x56, 0x84, 0xe7, 0xa5, 0x6d, 0xa2, 0x7d,
}

// chainFixture is a tiny chain served by a fake node: blocks indexed by
// height, resolvable by hash.
type chainFixture struct {
	headers []scaletest.Header
	bodies  [][][]byte
}

func newChainFixture() *chainFixture {
	c := &chainFixture{}
	parent := [32]byte{}
	bodies := [][][]byte{
		{scaletest.Unsigned(scaletest.TimestampSet(1_700_000_000_000))},
		{
			scaletest.Unsigned(scaletest.TimestampSet(1_700_000_006_000)),
			scaletest.Signed(alice, 0, 0, scaletest.TransferKeepAlive(scaletest.Fill(0x8e), 10)),
			scaletest.Unsigned(scaletest.Call(99, 1)),
		},
		{},
	}
	for i, body := range bodies {
		h := scaletest.Header{
			ParentHash:     parent,
			Number:         uint64(i),
			StateRoot:      scaletest.Fill(byte(0x10 + i)),
			ExtrinsicsRoot: scaletest.Fill(byte(0x20 + i)),
			Logs:           [][]byte{scaletest.PreRuntimeLog("aura", []byte{byte(i), 0, 0, 0, 0, 0, 0, 0})},
		}
		c.headers = append(c.headers, h)
		c.bodies = append(c.bodies, body)
		copy(parent[:], mustHash(h))
	}
	return c
}

func mustHash(h scaletest.Header) []byte {
	hash, err := domain.ParseHash(h.Hash())
	if err != nil {
		panic(err)
	}
	return hash[:]
}

func (c *chainFixture) byHash(raw json.RawMessage) int {
	var hash string
	if json.Unmarshal(raw, &hash) != nil {
		return -1
	}
	for i, h := range c.headers {
		if h.Hash() == hash {
			return i
		}
	}
	return -1
}

// serve registers the chain_* methods on srv.
func (c *chainFixture) serve(srv *rpctest.Server) {
	srv.Handle("chain_getBlockHash", func(params []json.RawMessage) (any, error) {
		var n uint64
		if len(params) == 0 {
			n = uint64(len(c.headers) - 1)
		} else if err := json.Unmarshal(params[0], &n); err != nil {
			return nil, err
		}
		if n >= uint64(len(c.headers)) {
			return nil, nil
		}
		return c.headers[n].Hash(), nil
	})
	srv.Handle("chain_getBlock", func(params []json.RawMessage) (any, error) {
		i := c.byHash(params[0])
		if i < 0 {
			return nil, nil
		}
		return scaletest.SignedBlock(c.headers[i], c.bodies[i]...), nil
	})
	srv.Handle("chain_getHeader", func(params []json.RawMessage) (any, error) {
		if len(params) == 0 {
			return c.headers[len(c.headers)-1].JSON(), nil
		}
		i := c.byHash(params[0])
		if i < 0 {
			return nil, nil
		}
		return c.headers[i].JSON(), nil
	})
	srv.Handle("chain_getFinalizedHead", func([]json.RawMessage) (any, error) {
		return c.headers[0].Hash(), nil
	})
}

func newBlockReader(t *testing.T) *BlockReader {
	t.Helper()
	r, err := NewBlockReader(logger.NewNop())
	require.NoError(t, err)
	return r
}

func TestGetBlock_HeightAndHashAgree(t *testing.T) {
	srv := newNode(t)
	chain := newChainFixture()
	chain.serve(srv)
	_, conn := connect(t, srv)
	r := newBlockReader(t)

	byHeight, err := r.GetBlock(context.Background(), conn, domain.AtHeight(1))
	require.NoError(t, err)

	hash, err := domain.ParseHash(chain.headers[1].Hash())
	require.NoError(t, err)
	byHash, err := r.GetBlock(context.Background(), conn, domain.AtHash(hash))
	require.NoError(t, err)

	assert.Equal(t, byHeight, byHash)
	assert.Equal(t, uint64(1), byHeight.Number)
	assert.Equal(t, chain.headers[1].Hash(), byHeight.Hash.Hex())
	assert.Equal(t, chain.headers[0].Hash(), byHeight.ParentHash.Hex())
	assert.Equal(t, scaletest.Hex(chain.headers[1].StateRoot[:]), byHeight.StateRoot.Hex())
	assert.Equal(t, scaletest.Hex(chain.headers[1].ExtrinsicsRoot[:]), byHeight.ExtrinsicsRoot.Hex())
	assert.False(t, byHeight.HeaderOnly)
}

func TestGetBlock_Extrinsics(t *testing.T) {
	srv := newNode(t)
	chain := newChainFixture()
	chain.serve(srv)
	_, conn := connect(t, srv)
	r := newBlockReader(t)

	block, err := r.GetBlock(context.Background(), conn, domain.AtHeight(1))
	require.NoError(t, err)
	require.Len(t, block.Extrinsics, 3)

	for i, xt := range block.Extrinsics {
		assert.Equal(t, i, xt.Index)
		assert.Equal(t, scaletest.ExtrinsicHash(chain.bodies[1][i]), xt.Hash)
	}

	inherent := block.Extrinsics[0]
	assert.Equal(t, "timestamp", inherent.Section)
	assert.Equal(t, "set", inherent.Method)
	assert.False(t, inherent.IsSigned)
	assert.Nil(t, inherent.Signer)

	transfer := block.Extrinsics[1]
	assert.Equal(t, "balances", transfer.Section)
	assert.Equal(t, "transferKeepAlive", transfer.Method)
	assert.True(t, transfer.IsSigned)
	require.NotNil(t, transfer.Signer)
	assert.Equal(t, aliceSS58, *transfer.Signer)

	unknown := block.Extrinsics[2]
	assert.Equal(t, "unknown", unknown.Section)
	assert.Equal(t, "unknown", unknown.Method)
	assert.False(t, unknown.IsSigned)
}

func TestGetBlock_EmptyBody(t *testing.T) {
	srv := newNode(t)
	newChainFixture().serve(srv)
	_, conn := connect(t, srv)

	block, err := newBlockReader(t).GetBlock(context.Background(), conn, domain.AtHeight(2))
	require.NoError(t, err)
	assert.NotNil(t, block.Extrinsics)
	assert.Empty(t, block.Extrinsics)
}

func TestGetBlock_NotFound(t *testing.T) {
	srv := newNode(t)
	newChainFixture().serve(srv)
	_, conn := connect(t, srv)
	r := newBlockReader(t)

	_, err := r.GetBlock(context.Background(), conn, domain.AtHeight(1_000_000))
	assert.True(t, apperror.HasCode(err, apperror.CodeBlockNotFound))

	missing, err := domain.ParseHash("0x" + "ff"+scaletest.Hex(make([]byte, 31))[2:])
	require.NoError(t, err)
	_, err = r.GetBlock(context.Background(), conn, domain.AtHash(missing))
	assert.True(t, apperror.HasCode(err, apperror.CodeBlockNotFound))
}

func TestGetBlock_NotConnected(t *testing.T) {
	srv := newNode(t)
	newChainFixture().serve(srv)
	m, conn := connect(t, srv)
	require.NoError(t, m.Close())

	_, err := newBlockReader(t).GetBlock(context.Background(), conn, domain.AtHeight(0))
	assert.True(t, apperror.HasCode(err, apperror.CodeNotConnected))
}

func TestGetBlock_NodeError(t *testing.T) {
	srv := newNode(t)
	srv.Handle("chain_getBlockHash", func([]json.RawMessage) (any, error) {
		return nil, &rpctest.Error{Code: -32602, Message: "invalid params"}
	})
	_, conn := connect(t, srv)

	_, err := newBlockReader(t).GetBlock(context.Background(), conn, domain.AtHeight(3))
	assert.True(t, apperror.HasCode(err, apperror.CodeNodeRPCError))
}

func TestHeaders(t *testing.T) {
	srv := newNode(t)
	chain := newChainFixture()
	chain.serve(srv)
	_, conn := connect(t, srv)
	r := newBlockReader(t)
	ctx := context.Background()

	latest, err := r.LatestHeader(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), latest.Number)
	assert.Equal(t, chain.headers[2].Hash(), latest.Hash.Hex())

	finalized, err := r.FinalizedHeader(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), finalized.Number)

	hash, err := r.GetBlockHash(ctx, conn, 1)
	require.NoError(t, err)
	header, err := r.GetHeader(ctx, conn, hash)
	require.NoError(t, err)
	assert.Equal(t, hash, header.Hash)
}

func TestHeaderHash_LeadingZeroNumber(t *testing.T) {
	h := scaletest.Header{Number: 5, StateRoot: scaletest.Fill(1), ExtrinsicsRoot: scaletest.Fill(2)}
	raw := rpcHeader{
		ParentHash:     scaletest.Hex(h.ParentHash[:]),
		Number:         "0x0005",
		StateRoot:      scaletest.Hex(h.StateRoot[:]),
		ExtrinsicsRoot: scaletest.Hex(h.ExtrinsicsRoot[:]),
	}

	got, err := raw.toHeader()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), got.Number)
	assert.Equal(t, h.Hash(), got.Hash.Hex())
}

func TestCamelCase(t *testing.T) {
	tests := map[string]string{
		"transfer_keep_alive": "transferKeepAlive",
		"set":                 "set",
		"Balances":            "balances",
		"ParachainSystem":     "parachainSystem",
		"XCMPallet":           "xcmPallet",
		"EVM":                 "evm",
		"force_batch":         "forceBatch",
	}
	for in, want := range tests {
		assert.Equal(t, want, camelCase(in), in)
	}
}

func TestFallbackSigner(t *testing.T) {
	body := append([]byte{0x84, 0x00}, alice[:]...)
	assert.Equal(t, aliceSS58, fallbackSigner(body, 42))

	body = []byte{0x84, 0x01, 0xaa, 0xbb}
	assert.Equal(t, "0x01aabb", fallbackSigner(body, 42))
}

func TestGetBlock_KeepsNodeHash(t *testing.T) {
	const nodeHash = "0xab000000000000000000000000000000000000000000000000000000000000cd"
	header := scaletest.Header{Number: 5, StateRoot: scaletest.Fill(1), ExtrinsicsRoot: scaletest.Fill(2)}
	require.NotEqual(t, nodeHash, header.Hash())

	srv := newNode(t)
	srv.Handle("chain_getBlockHash", func(params []json.RawMessage) (any, error) {
		return nodeHash, nil
	})
	srv.Handle("chain_getBlock", func(params []json.RawMessage) (any, error) {
		var hash string
		if err := json.Unmarshal(params[0], &hash); err != nil || hash != nodeHash {
			return nil, nil
		}
		return scaletest.SignedBlock(header), nil
	})
	srv.Handle("chain_getHeader", func(params []json.RawMessage) (any, error) {
		return header.JSON(), nil
	})
	_, conn := connect(t, srv)
	r := newBlockReader(t)
	ctx := context.Background()

	want, err := domain.ParseHash(nodeHash)
	require.NoError(t, err)

	byHeight, err := r.GetBlock(ctx, conn, domain.AtHeight(5))
	require.NoError(t, err)
	assert.Equal(t, want, byHeight.Hash)

	byHash, err := r.GetBlock(ctx, conn, domain.AtHash(want))
	require.NoError(t, err)
	assert.Equal(t, want, byHash.Hash)
	assert.Equal(t, uint64(5), byHash.Number)

	h, err := r.GetHeader(ctx, conn, want)
	require.NoError(t, err)
	assert.Equal(t, want, h.Hash)
}
