package ss58

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alicePub  = "d43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d"
	aliceSS58 = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
)

func TestEncode_Alice(t *testing.T) {
	pub, err := hex.DecodeString(alicePub)
	require.NoError(t, err)

	addr, err := Encode(pub, DefaultPrefix)
	require.NoError(t, err)
	assert.Equal(t, aliceSS58, addr)
}

func TestDecode_Alice(t *testing.T) {
	pub, prefix, err := Decode(aliceSS58)
	require.NoError(t, err)
	assert.Equal(t, DefaultPrefix, prefix)
	assert.Equal(t, alicePub, hex.EncodeToString(pub))
}

func TestRoundTrip_Prefixes(t *testing.T) {
	pub, err := hex.DecodeString(alicePub)
	require.NoError(t, err)

	for _, prefix := range []uint16{0, 2, 42, 63, 64, 255, 1284, 16383} {
		addr, err := Encode(pub, prefix)
		require.NoError(t, err, "prefix %d", prefix)

		got, gotPrefix, err := Decode(addr)
		require.NoError(t, err, "prefix %d", prefix)
		assert.Equal(t, prefix, gotPrefix)
		assert.Equal(t, pub, got)
	}
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name string
		addr string
	}{
		{"empty", ""},
		{"not base58", "0OIl"},
		{"too short", "5Grwva"},
		{"bad checksum", aliceSS58[:len(aliceSS58)-1] + "Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode(tt.addr)
			assert.Error(t, err)
		})
	}
}

func TestEncode_Rejects(t *testing.T) {
	_, err := Encode(make([]byte, 20), DefaultPrefix)
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = Encode(make([]byte, 32), 20000)
	assert.ErrorIs(t, err, ErrInvalidAddress)
}
