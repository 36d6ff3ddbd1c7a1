// Package asset models a chain's native token and amounts of it.
package asset

import "fmt"

// Token is a chain's native token as reported in its properties.
type Token struct {
	Symbol   string
	Decimals uint8
}

// NewToken creates a Token. Decimals above 30 are rejected as malformed
// chain properties.
func NewToken(symbol string, decimals uint8) (Token, error) {
	if decimals > 30 {
		return Token{}, fmt.Errorf("asset: suspicious decimals %d for %q", decimals, symbol)
	}
	return Token{Symbol: symbol, Decimals: decimals}, nil
}

func (t Token) String() string {
	if t.Symbol == "" {
		return "?"
	}
	return t.Symbol
}
