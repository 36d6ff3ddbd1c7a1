package asset_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/substrate-explorer/internal/asset"
)

var unit = asset.Token{Symbol: "UNIT", Decimals: 12}

func mustParse(t *testing.T, tok asset.Token, raw string) asset.Amount {
	t.Helper()
	a, err := asset.ParseAmount(tok, raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return a
}

func TestAmount_String(t *testing.T) {
	cases := []struct {
		tok  asset.Token
		raw  string
		want string
	}{
		{unit, "1000000000000", "1 UNIT"},
		{unit, "2500000000000", "2.5 UNIT"},
		{unit, "250", "0.00000000025 UNIT"},
		{asset.Token{Decimals: 10}, "0", "0"},
		{asset.Token{Decimals: 1}, "125", "12.5"},
		{asset.Token{Symbol: "DOT", Decimals: 10}, "340282366920938463463374607431768211455", "34028236692093846346337460743.1768211455 DOT"},
	}
	for _, c := range cases {
		if got := mustParse(t, c.tok, c.raw).String(); got != c.want {
			t.Errorf("%s: expected %q, got %q", c.raw, c.want, got)
		}
	}
}

func TestAmount_Invalid(t *testing.T) {
	if _, err := asset.ParseAmount(unit, "n/a"); !errors.Is(err, asset.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := asset.ParseAmount(unit, "-5"); !errors.Is(err, asset.ErrNegativeAmount) {
		t.Errorf("expected ErrNegativeAmount, got %v", err)
	}
}

func TestAmount_Arithmetic(t *testing.T) {
	free := mustParse(t, unit, "3000000000000")
	frozen := mustParse(t, unit, "1000000000000")

	sum, err := free.Add(frozen)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sum.Decimal().Equal(decimal.NewFromInt(4)) {
		t.Errorf("expected 4, got %s", sum.Decimal())
	}

	left, err := free.SaturatingSub(frozen)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if left.String() != "2 UNIT" {
		t.Errorf("expected 2 UNIT, got %s", left)
	}

	none, _ := frozen.SaturatingSub(free)
	if !none.IsZero() {
		t.Errorf("expected zero, got %s", none)
	}

	if _, err := free.Add(asset.Zero(asset.Token{Symbol: "DOT", Decimals: 10})); !errors.Is(err, asset.ErrTokenMismatch) {
		t.Errorf("expected ErrTokenMismatch, got %v", err)
	}
}

func TestNewToken(t *testing.T) {
	if _, err := asset.NewToken("BAD", 40); err == nil {
		t.Error("expected error for 40 decimals")
	}
	tok, err := asset.NewToken("KSM", 12)
	if err != nil || tok.String() != "KSM" {
		t.Errorf("unexpected token %v, %v", tok, err)
	}
	if (asset.Token{}).String() != "?" {
		t.Error("expected ? for unnamed token")
	}
}
