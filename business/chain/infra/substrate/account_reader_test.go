package substrate

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/substrate-explorer/business/chain/domain"
	"github.com/fd1az/substrate-explorer/internal/apperror"
	"github.com/fd1az/substrate-explorer/internal/hasher"
	"github.com/fd1az/substrate-explorer/internal/logger"
	"github.com/fd1az/substrate-explorer/internal/scale"
	"github.com/fd1az/substrate-explorer/internal/scale/scaletest"
	"github.com/fd1az/substrate-explorer/internal/ss58"
)

func aliceStorageKey(t *testing.T) string {
	t.Helper()
	key, err := hasher.StorageMapKey("System", "Account", scale.HasherBlake2_128Concat, alice[:])
	require.NoError(t, err)
	return scaletest.Hex(key)
}

func TestGetAccount(t *testing.T) {
	srv := newNode(t)
	want := aliceStorageKey(t)
	srv.Handle("state_getStorage", func(params []json.RawMessage) (any, error) {
		var key string
		_ = json.Unmarshal(params[0], &key)
		if key != want {
			return nil, nil
		}
		return scaletest.Hex(scaletest.AccountInfo(7, 1, 1, 0,
			big.NewInt(1_000_000_000_000), big.NewInt(250), big.NewInt(100))), nil
	})
	_, conn := connect(t, srv)
	r := NewAccountReader(logger.NewNop())

	acc, err := r.GetAccount(context.Background(), conn, aliceSS58)
	require.NoError(t, err)

	assert.Equal(t, aliceSS58, acc.Address)
	assert.Equal(t, uint32(7), acc.Nonce)
	assert.Equal(t, uint32(1), acc.Consumers)
	assert.Equal(t, uint32(1), acc.Providers)
	assert.Equal(t, uint32(0), acc.Sufficients)
	assert.Equal(t, "1000000000000", acc.Balance.Free)
	assert.Equal(t, "250", acc.Balance.Reserved)
	assert.Equal(t, "100", acc.Balance.Frozen)
}

func TestGetAccount_StorageKeyAcrossMetadataVersions(t *testing.T) {
	for _, version := range []uint8{14, 15} {
		t.Run(fmt.Sprintf("v%d", version), func(t *testing.T) {
			srv := newNode(t)
			srv.HandleResult("state_getMetadata", scaletest.Hex(scaletest.Metadata(version)))
			srv.HandleResult("state_getStorage", scaletest.Hex(scaletest.AccountInfo(2, 0, 1, 0,
				big.NewInt(42), big.NewInt(0), big.NewInt(0))))
			_, conn := connect(t, srv)

			acc, err := NewAccountReader(logger.NewNop()).GetAccount(context.Background(), conn, aliceSS58)
			require.NoError(t, err)
			assert.Equal(t, uint32(2), acc.Nonce)
			assert.Equal(t, "42", acc.Balance.Free)

			calls := srv.Calls("state_getStorage")
			require.Len(t, calls, 1)
			assert.JSONEq(t, `"`+aliceStorageKey(t)+`"`, string(calls[0][0]))
		})
	}
}

func TestGetAccount_HexAndOtherPrefix(t *testing.T) {
	srv := newNode(t)
	srv.HandleResult("state_getStorage", scaletest.Hex(scaletest.AccountInfo(1, 0, 1, 0,
		big.NewInt(5), big.NewInt(0), big.NewInt(0))))
	_, conn := connect(t, srv)
	r := NewAccountReader(logger.NewNop())

	byHex, err := r.GetAccount(context.Background(), conn, scaletest.Hex(alice[:]))
	require.NoError(t, err)
	assert.Equal(t, aliceSS58, byHex.Address)

	polkadot, err := ss58.Encode(alice[:], 0)
	require.NoError(t, err)
	byPolkadot, err := r.GetAccount(context.Background(), conn, polkadot)
	require.NoError(t, err)
	assert.Equal(t, aliceSS58, byPolkadot.Address)
	assert.Equal(t, "5", byPolkadot.Balance.Free)

	calls := srv.Calls("state_getStorage")
	require.Len(t, calls, 2)
	assert.JSONEq(t, `"`+aliceStorageKey(t)+`"`, string(calls[0][0]))
	assert.Equal(t, calls[0], calls[1])
}

func TestGetAccount_Empty(t *testing.T) {
	srv := newNode(t)
	srv.HandleResult("state_getStorage", nil)
	_, conn := connect(t, srv)

	acc, err := NewAccountReader(logger.NewNop()).GetAccount(context.Background(), conn, aliceSS58)
	require.NoError(t, err)
	assert.Equal(t, aliceSS58, acc.Address)
	assert.Zero(t, acc.Nonce)
	assert.Equal(t, "0", acc.Balance.Free)
	assert.Equal(t, "0", acc.Balance.Reserved)
	assert.Equal(t, "0", acc.Balance.Frozen)
}

func TestGetAccount_InvalidAddress(t *testing.T) {
	srv := newNode(t)
	_, conn := connect(t, srv)
	r := NewAccountReader(logger.NewNop())

	for _, addr := range []string{
		"",
		"not-an-address",
		"0x1234",
		aliceSS58[:len(aliceSS58)-1] + "Z",
	} {
		_, err := r.GetAccount(context.Background(), conn, addr)
		assert.True(t, apperror.HasCode(err, apperror.CodeInvalidAddress), addr)
	}
	assert.Empty(t, srv.Calls("state_getStorage"))
}

func TestGetAccount_NotConnected(t *testing.T) {
	srv := newNode(t)
	m, conn := connect(t, srv)
	require.NoError(t, m.Close())

	_, err := NewAccountReader(logger.NewNop()).GetAccount(context.Background(), conn, aliceSS58)
	assert.True(t, apperror.HasCode(err, apperror.CodeNotConnected))
}

func TestFillAccount_LegacyFrozen(t *testing.T) {
	info := map[string]any{
		"nonce":     uint64(3),
		"consumers": uint64(0),
		"providers": uint64(1),
		"data": map[string]any{
			"free":        big.NewInt(10),
			"reserved":    big.NewInt(2),
			"misc_frozen": big.NewInt(4),
			"fee_frozen":  big.NewInt(6),
		},
	}

	var acc domain.Account
	require.NoError(t, fillAccount(&acc, info))
	assert.Equal(t, uint32(3), acc.Nonce)
	assert.Zero(t, acc.Sufficients)
	assert.Equal(t, "10", acc.Balance.Free)
	assert.Equal(t, "6", acc.Balance.Frozen)

	assert.Error(t, fillAccount(&acc, []any{}))
}
