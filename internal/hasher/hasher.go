// Package hasher implements the Substrate storage hashers and the blake2b
// digests used for block and extrinsic hashes.
package hasher

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/fd1az/substrate-explorer/internal/scale"
)

// Blake2_256 returns the 32-byte blake2b digest of data.
func Blake2_256(data []byte) [32]byte {
	return blake2b.Sum256(data)
}

// Blake2_128 returns the 16-byte blake2b digest of data.
func Blake2_128(data []byte) []byte {
	h, err := blake2b.New(16, nil)
	if err != nil {
		// only fails for invalid sizes or keys
		panic(err)
	}
	h.Write(data)
	return h.Sum(nil)
}

// Twox returns the concatenation of n little-endian xxhash64 digests of data
// seeded 0..n-1.
func Twox(data []byte, n int) []byte {
	out := make([]byte, 0, 8*n)
	for seed := 0; seed < n; seed++ {
		d := xxhash.NewWithSeed(uint64(seed))
		_, _ = d.Write(data)
		out = binary.LittleEndian.AppendUint64(out, d.Sum64())
	}
	return out
}

func Twox64(data []byte) []byte  { return Twox(data, 1) }
func Twox128(data []byte) []byte { return Twox(data, 2) }
func Twox256(data []byte) []byte { return Twox(data, 4) }

// Hash applies a metadata storage hasher to an encoded key.
func Hash(h scale.StorageHasher, key []byte) ([]byte, error) {
	switch h {
	case scale.HasherBlake2_128:
		return Blake2_128(key), nil
	case scale.HasherBlake2_256:
		sum := Blake2_256(key)
		return sum[:], nil
	case scale.HasherBlake2_128Concat:
		return append(Blake2_128(key), key...), nil
	case scale.HasherTwox128:
		return Twox128(key), nil
	case scale.HasherTwox256:
		return Twox256(key), nil
	case scale.HasherTwox64Concat:
		return append(Twox64(key), key...), nil
	case scale.HasherIdentity:
		return append([]byte(nil), key...), nil
	}
	return nil, fmt.Errorf("unsupported storage hasher %s", h)
}

// StoragePrefix returns twox128(pallet) ++ twox128(item).
func StoragePrefix(pallet, item string) []byte {
	return append(Twox128([]byte(pallet)), Twox128([]byte(item))...)
}

// StorageMapKey builds the key of a single-key storage map entry.
func StorageMapKey(pallet, item string, h scale.StorageHasher, key []byte) ([]byte, error) {
	hashed, err := Hash(h, key)
	if err != nil {
		return nil, err
	}
	return append(StoragePrefix(pallet, item), hashed...), nil
}
