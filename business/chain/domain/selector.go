package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/fd1az/substrate-explorer/internal/apperror"
)

// Selector picks a block by height or by hash.
type Selector struct {
	byHash bool
	height uint64
	hash   common.Hash
}

// AtHeight selects the canonical block at height.
func AtHeight(height uint64) Selector {
	return Selector{height: height}
}

// AtHash selects the block with the given hash.
func AtHash(hash common.Hash) Selector {
	return Selector{byHash: true, hash: hash}
}

// ParseSelector accepts a decimal height or a 0x-prefixed 32-byte hash.
func ParseSelector(s string) (Selector, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		h, err := ParseHash(s)
		if err != nil {
			return Selector{}, err
		}
		return AtHash(h), nil
	}

	height, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return Selector{}, apperror.Validation(apperror.CodeInvalidBlockSelector,
			fmt.Sprintf("%q is neither a block height nor a block hash", s))
	}
	return AtHeight(height), nil
}

// IsHash reports whether the selector is a hash.
func (s Selector) IsHash() bool { return s.byHash }

// Height returns the selected height; only meaningful when !IsHash().
func (s Selector) Height() uint64 { return s.height }

// Hash returns the selected hash; only meaningful when IsHash().
func (s Selector) Hash() common.Hash { return s.hash }

func (s Selector) String() string {
	if s.byHash {
		return s.hash.Hex()
	}
	return strconv.FormatUint(s.height, 10)
}

// ParseHash parses a 0x-prefixed 32-byte hex hash.
func ParseHash(s string) (common.Hash, error) {
	b, err := hexutil.Decode(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return common.Hash{}, apperror.New(apperror.CodeInvalidBlockSelector,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("invalid hash %q", s)))
	}
	if len(b) != common.HashLength {
		return common.Hash{}, apperror.Validation(apperror.CodeInvalidBlockSelector,
			fmt.Sprintf("hash must be %d bytes, got %d", common.HashLength, len(b)))
	}
	return common.BytesToHash(b), nil
}
