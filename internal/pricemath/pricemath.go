// Package pricemath converts raw pool price encodings into decimal prices and slippage.
package pricemath

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Precision is the number of fractional digits kept by divisions.
const Precision int32 = 38

var (
	q192 = new(big.Int).Lsh(big.NewInt(1), 192)
	ten  = big.NewInt(10)
)

// MidPrice converts a sqrtPriceX96 value into token1 per token0, scaled by decimals.
// When isToken0Input is false the price is inverted to token0 per token1.
// A nil or non-positive input yields zero.
func MidPrice(sqrtPriceX96 *big.Int, decimals0, decimals1 uint8, isToken0Input bool) decimal.Decimal {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return decimal.Zero
	}

	num := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	den := new(big.Int).Set(q192)
	shift := int64(decimals0) - int64(decimals1)
	if shift > 0 {
		num.Mul(num, new(big.Int).Exp(ten, big.NewInt(shift), nil))
	} else if shift < 0 {
		den.Mul(den, new(big.Int).Exp(ten, big.NewInt(-shift), nil))
	}

	price := quo(decimal.NewFromBigInt(num, 0), decimal.NewFromBigInt(den, 0))
	if isToken0Input {
		return price
	}
	return Invert(price)
}

// Invert returns 1/p, or zero when p is not positive.
func Invert(p decimal.Decimal) decimal.Decimal {
	if !p.IsPositive() {
		return decimal.Zero
	}
	return quo(decimal.NewFromInt(1), p)
}

// quo divides keeping at least Precision significant digits for very small quotients.
func quo(num, den decimal.Decimal) decimal.Decimal {
	prec := Precision
	if gap := magnitude(den) - magnitude(num); gap > 0 {
		prec += gap
	}
	return num.DivRound(den, prec)
}

// magnitude is the count of integer digits, negative for values below 0.1.
func magnitude(d decimal.Decimal) int32 {
	coeff := new(big.Int).Abs(d.Coefficient())
	return int32(len(coeff.String())) + d.Exponent()
}

// Slippage is the fractional shortfall of actualOut against amountIn*midPrice, clamped at zero.
func Slippage(amountIn, midPrice, actualOut decimal.Decimal) decimal.Decimal {
	if !amountIn.IsPositive() || !midPrice.IsPositive() {
		return decimal.Zero
	}
	ideal := amountIn.Mul(midPrice)
	s := ideal.Sub(actualOut).DivRound(ideal, Precision)
	if s.IsNegative() {
		return decimal.Zero
	}
	return s
}

// ToBaseUnits converts a human amount into integer token base units, truncating toward zero.
func ToBaseUnits(amount decimal.Decimal, decimals uint8) (*big.Int, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("negative amount %s", amount)
	}
	return amount.Shift(int32(decimals)).Truncate(0).BigInt(), nil
}

// FromBaseUnits converts integer token base units into a human amount.
func FromBaseUnits(raw *big.Int, decimals uint8) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -int32(decimals))
}

// PercentageChange returns (out-in)/in*100, or zero when either side is not positive.
func PercentageChange(valueIn, valueOut decimal.Decimal) decimal.Decimal {
	if !valueIn.IsPositive() || !valueOut.IsPositive() {
		return decimal.Zero
	}
	return valueOut.Sub(valueIn).DivRound(valueIn, Precision).Mul(decimal.NewFromInt(100))
}
