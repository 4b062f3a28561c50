package aggregate

import (
	"context"
	"errors"

	"routeScope/internal/dex"
)

var (
	// ErrUnknownToken is returned for symbols missing from the token table.
	ErrUnknownToken = errors.New("unknown token")
	// ErrInvalidAmount is returned for non-positive amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrSameToken is returned when both sides of the request are the same token.
	ErrSameToken = errors.New("tokens must differ")
	// ErrNoRoutes is returned when no pool produced a route.
	ErrNoRoutes = errors.New("no routes found")
	// ErrUnresolvablePair is returned for pools whose pair does not resolve to the requested tokens.
	ErrUnresolvablePair = errors.New("unresolvable pair")
	// ErrPriceMissing is returned when a pool token has no USD price.
	ErrPriceMissing = errors.New("token price missing")
	errPanic        = errors.New("pool pipeline panicked")
)

// Failure records why one pool produced no route.
type Failure struct {
	Venue  string `json:"venue"`
	Pair   string `json:"pair"`
	Pool   string `json:"pool"`
	Reason string `json:"reason"`
	Error  string `json:"error"`
}

// Failure reasons for pools abandoned when the request context ends.
const (
	reasonTimeout  = "timeout"
	reasonCanceled = "canceled"
)

var reasons = []struct {
	err    error
	reason string
}{
	{dex.ErrFeeUnavailable, "fee_unavailable"},
	{dex.ErrPriceUnavailable, "price_unavailable"},
	{dex.ErrZeroQuote, "zero_quote"},
	{dex.ErrQuoteUnavailable, "quote_unavailable"},
	{dex.ErrLiquidityUnavailable, "liquidity_unavailable"},
	{dex.ErrCostUnavailable, "cost_unavailable"},
	{dex.ErrTokenMismatch, "token_mismatch"},
	{ErrUnresolvablePair, "unresolvable_pair"},
	{ErrPriceMissing, "token_price_missing"},
	{errPanic, "panic"},
	{context.DeadlineExceeded, reasonTimeout},
	{context.Canceled, reasonCanceled},
}

// reasonOf maps a pipeline error to a short metric-friendly reason.
func reasonOf(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return "error"
}
