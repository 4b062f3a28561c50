package dex

import "errors"

// Skip reasons. Every adapter error wraps exactly one of these.
var (
	ErrFeeUnavailable       = errors.New("fee unavailable")
	ErrPriceUnavailable     = errors.New("price unavailable")
	ErrQuoteUnavailable     = errors.New("quote unavailable")
	ErrZeroQuote            = errors.New("zero quote")
	ErrLiquidityUnavailable = errors.New("liquidity unavailable")
	ErrCostUnavailable      = errors.New("cost unavailable")
	ErrTokenMismatch        = errors.New("token not in pool")
)
