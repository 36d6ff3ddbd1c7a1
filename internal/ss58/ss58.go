// Package ss58 encodes and decodes Substrate SS58 account addresses.
package ss58

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
	"golang.org/x/crypto/blake2b"
)

// DefaultPrefix is the generic Substrate network prefix.
const DefaultPrefix uint16 = 42

const (
	accountIDLen = 32
	checksumLen  = 2
	maxPrefix    = 16383
)

var (
	ErrInvalidAddress = errors.New("ss58: invalid address")
	ErrChecksum       = errors.New("ss58: checksum mismatch")
)

var checksumPrefix = []byte("SS58PRE")

// Encode returns the SS58 address of a 32-byte account id.
func Encode(accountID []byte, prefix uint16) (string, error) {
	if len(accountID) != accountIDLen {
		return "", fmt.Errorf("%w: account id must be %d bytes, got %d", ErrInvalidAddress, accountIDLen, len(accountID))
	}
	if prefix > maxPrefix {
		return "", fmt.Errorf("%w: prefix %d out of range", ErrInvalidAddress, prefix)
	}

	payload := append(encodePrefix(prefix), accountID...)
	sum := checksum(payload)
	return base58.Encode(append(payload, sum[:checksumLen]...)), nil
}

// Decode returns the account id and network prefix of an SS58 address.
func Decode(address string) ([]byte, uint16, error) {
	raw := base58.Decode(address)
	if len(raw) < 1+accountIDLen+checksumLen {
		return nil, 0, ErrInvalidAddress
	}

	prefix, n, err := decodePrefix(raw)
	if err != nil {
		return nil, 0, err
	}
	if len(raw) != n+accountIDLen+checksumLen {
		return nil, 0, fmt.Errorf("%w: unexpected length %d", ErrInvalidAddress, len(raw))
	}

	payload := raw[:n+accountIDLen]
	sum := checksum(payload)
	if !bytes.Equal(sum[:checksumLen], raw[n+accountIDLen:]) {
		return nil, 0, ErrChecksum
	}
	return append([]byte(nil), raw[n:n+accountIDLen]...), prefix, nil
}

func encodePrefix(prefix uint16) []byte {
	if prefix < 64 {
		return []byte{byte(prefix)}
	}
	first := byte((prefix&0x00fc)>>2) | 0x40
	second := byte(prefix>>8) | byte(prefix&0x0003)<<6
	return []byte{first, second}
}

func decodePrefix(raw []byte) (uint16, int, error) {
	switch {
	case raw[0] < 64:
		return uint16(raw[0]), 1, nil
	case raw[0] < 128:
		lower := (raw[0] << 2) | (raw[1] >> 6)
		upper := raw[1] & 0x3f
		return uint16(lower) | uint16(upper)<<8, 2, nil
	default:
		return 0, 0, fmt.Errorf("%w: reserved prefix byte 0x%02x", ErrInvalidAddress, raw[0])
	}
}

func checksum(payload []byte) [64]byte {
	return blake2b.Sum512(append(append([]byte(nil), checksumPrefix...), payload...))
}
