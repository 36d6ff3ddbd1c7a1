package asset

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount  = errors.New("asset: invalid amount")
	ErrNegativeAmount = errors.New("asset: negative amount")
	ErrTokenMismatch  = errors.New("asset: cannot operate on different tokens")
)

// Amount is an immutable quantity of a token, held in the smallest unit
// (planck for DOT).
type Amount struct {
	raw   *big.Int
	token Token
}

// ParseAmount reads a base-10 integer in the smallest unit, the way
// balances are rendered after decoding.
func ParseAmount(token Token, raw string) (Amount, error) {
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if v.Sign() < 0 {
		return Amount{}, ErrNegativeAmount
	}
	return Amount{raw: v, token: token}, nil
}

// Zero returns a zero amount of token.
func Zero(token Token) Amount {
	return Amount{raw: new(big.Int), token: token}
}

func (a Amount) Token() Token {
	return a.token
}

// Raw returns a copy of the smallest-unit value.
func (a Amount) Raw() *big.Int {
	if a.raw == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(a.raw)
}

func (a Amount) IsZero() bool {
	return a.raw == nil || a.raw.Sign() == 0
}

func (a Amount) Add(b Amount) (Amount, error) {
	if a.token != b.token {
		return Amount{}, ErrTokenMismatch
	}
	return Amount{raw: new(big.Int).Add(a.Raw(), b.Raw()), token: a.token}, nil
}

// SaturatingSub returns a-b, or zero when b exceeds a.
func (a Amount) SaturatingSub(b Amount) (Amount, error) {
	if a.token != b.token {
		return Amount{}, ErrTokenMismatch
	}
	d := new(big.Int).Sub(a.Raw(), b.Raw())
	if d.Sign() < 0 {
		d.SetInt64(0)
	}
	return Amount{raw: d, token: a.token}, nil
}

// Decimal returns the amount in whole tokens.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(a.Raw(), -int32(a.token.Decimals))
}

// String renders whole tokens without trailing zeros, followed by the
// symbol when there is one.
func (a Amount) String() string {
	s := a.Decimal().String()
	if a.token.Symbol != "" {
		s += " " + a.token.Symbol
	}
	return s
}
