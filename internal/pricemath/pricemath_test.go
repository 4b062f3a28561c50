package pricemath

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
)

func sqrtPriceFor(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		t.Fatalf("bad big int %q", s)
	}
	return v
}

func TestMidPriceUnitPrice(t *testing.T) {
	// sqrt(1) * 2^96
	q96 := new(big.Int).Lsh(big.NewInt(1), 96)

	got := MidPrice(q96, 18, 18, true)
	if !got.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("expected 1, got %s", got)
	}

	// token0 has 6 decimals, token1 has 18: raw ratio 1 means 1e-12 token1 per token0 in base
	// units, scaled by 10^(6-18).
	got = MidPrice(q96, 6, 18, true)
	if !got.Equal(decimal.New(1, -12)) {
		t.Fatalf("expected 1e-12, got %s", got)
	}
	got = MidPrice(q96, 18, 6, true)
	if !got.Equal(decimal.New(1, 12)) {
		t.Fatalf("expected 1e12, got %s", got)
	}
}

func TestMidPriceInverse(t *testing.T) {
	inputs := []string{
		"79228162514264337593543950336",
		"1461446703485210103287273052203988822378723970341",
		"4295128740",
		"1772134380662580473307549817896",
	}
	eps := decimal.New(1, -20)
	for _, in := range inputs {
		raw := sqrtPriceFor(t, in)
		forward := MidPrice(raw, 18, 6, true)
		if !forward.IsPositive() {
			t.Fatalf("mid price for %s should be positive, got %s", in, forward)
		}
		backward := MidPrice(raw, 18, 6, false)
		if !backward.IsPositive() {
			t.Fatalf("inverse for %s should be positive, got %s", in, backward)
		}
		product := backward.Mul(forward)
		if product.Sub(decimal.NewFromInt(1)).Abs().GreaterThan(eps) {
			t.Fatalf("inverse mismatch for %s: %s * %s = %s", in, forward, backward, product)
		}
	}
}

func TestMidPriceNonPositive(t *testing.T) {
	if got := MidPrice(nil, 18, 18, true); !got.IsZero() {
		t.Fatalf("nil input should yield zero, got %s", got)
	}
	if got := MidPrice(big.NewInt(0), 18, 18, false); !got.IsZero() {
		t.Fatalf("zero input should yield zero, got %s", got)
	}
	if got := MidPrice(big.NewInt(-5), 18, 18, true); !got.IsZero() {
		t.Fatalf("negative input should yield zero, got %s", got)
	}
}

func TestSlippage(t *testing.T) {
	got := Slippage(decimal.NewFromInt(100), decimal.NewFromInt(2), decimal.NewFromInt(180))
	if !got.Equal(decimal.RequireFromString("0.1")) {
		t.Fatalf("expected 0.10, got %s", got)
	}
}

func TestSlippageClamped(t *testing.T) {
	cases := []struct {
		name         string
		in, mid, out string
		want         string
	}{
		{name: "favorable fill", in: "100", mid: "2", out: "250", want: "0"},
		{name: "zero amount", in: "0", mid: "2", out: "1", want: "0"},
		{name: "negative mid", in: "100", mid: "-1", out: "1", want: "0"},
		{name: "nothing out", in: "10", mid: "3", out: "0", want: "1"},
	}
	for _, tc := range cases {
		got := Slippage(decimal.RequireFromString(tc.in), decimal.RequireFromString(tc.mid), decimal.RequireFromString(tc.out))
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
		if got.IsNegative() || got.GreaterThan(decimal.NewFromInt(1)) {
			t.Fatalf("%s: slippage out of range: %s", tc.name, got)
		}
	}
}

func TestBaseUnits(t *testing.T) {
	raw, err := ToBaseUnits(decimal.RequireFromString("1000.1234567"), 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw.String() != "1000123456" {
		t.Fatalf("base units mismatch: %s", raw)
	}
	if _, err := ToBaseUnits(decimal.NewFromInt(-1), 6); err == nil {
		t.Fatalf("expected error for negative amount")
	}

	back := FromBaseUnits(big.NewInt(1500000), 6)
	if !back.Equal(decimal.RequireFromString("1.5")) {
		t.Fatalf("from base units mismatch: %s", back)
	}
}

func TestPercentageChange(t *testing.T) {
	got := PercentageChange(decimal.NewFromInt(1000), decimal.NewFromInt(990))
	if !got.Equal(decimal.NewFromInt(-1)) {
		t.Fatalf("expected -1, got %s", got)
	}
	if got := PercentageChange(decimal.Zero, decimal.NewFromInt(5)); !got.IsZero() {
		t.Fatalf("expected zero, got %s", got)
	}
}
