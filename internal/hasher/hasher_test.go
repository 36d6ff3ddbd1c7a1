package hasher

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/substrate-explorer/internal/scale"
)

const alicePub = "d43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d"

func TestTwox128(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"System", "26aa394eea5630e07c48ae0c9558cef7"},
		{"Account", "b99d880ec681799c0cf30e8886371da9"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, hex.EncodeToString(Twox128([]byte(tt.in))))
		})
	}
}

func TestTwoxLengths(t *testing.T) {
	assert.Len(t, Twox64([]byte("x")), 8)
	assert.Len(t, Twox256([]byte("x")), 32)
	assert.Equal(t, Twox64([]byte("x")), Twox128([]byte("x"))[:8])
}

func TestStorageMapKey_SystemAccount(t *testing.T) {
	pub, err := hex.DecodeString(alicePub)
	require.NoError(t, err)

	key, err := StorageMapKey("System", "Account", scale.HasherBlake2_128Concat, pub)
	require.NoError(t, err)

	want := "26aa394eea5630e07c48ae0c9558cef7" +
		"b99d880ec681799c0cf30e8886371da9" +
		"de1e86a9a8c739864cf3cc5ec2bea59f" +
		alicePub
	assert.Equal(t, want, hex.EncodeToString(key))
}

func TestHash_AllHashers(t *testing.T) {
	key := []byte{1, 2, 3}
	tests := []struct {
		hasher scale.StorageHasher
		length int
	}{
		{scale.HasherBlake2_128, 16},
		{scale.HasherBlake2_256, 32},
		{scale.HasherBlake2_128Concat, 19},
		{scale.HasherTwox128, 16},
		{scale.HasherTwox256, 32},
		{scale.HasherTwox64Concat, 11},
		{scale.HasherIdentity, 3},
	}

	for _, tt := range tests {
		t.Run(tt.hasher.String(), func(t *testing.T) {
			out, err := Hash(tt.hasher, key)
			require.NoError(t, err)
			assert.Len(t, out, tt.length)
		})
	}

	_, err := Hash(scale.StorageHasher(42), key)
	assert.Error(t, err)
}

func TestBlake2_256_Empty(t *testing.T) {
	sum := Blake2_256(nil)
	assert.Equal(t, "0e5751c026e543b2e8ab2eb06099daa1d1e5df47778f7787faab45cdf12fe3a8", hex.EncodeToString(sum[:]))
}
