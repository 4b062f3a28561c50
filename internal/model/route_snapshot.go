package model

import "time"

// RouteSnapshot is one ranked route of one request, flattened for storage.
type RouteSnapshot struct {
	RequestID    string    `json:"request_id"`
	RequestedAt  time.Time `json:"requested_at"`
	TokenFrom    string    `json:"token_from"`
	TokenTo      string    `json:"token_to"`
	AmountIn     string    `json:"amount_in"`
	Rank         int       `json:"rank"`
	Score        float64   `json:"score"`
	Venue        string    `json:"venue"`
	Pair         string    `json:"pair"`
	PoolAddress  string    `json:"pool_address"`
	AmountOut    string    `json:"amount_out"`
	MidPrice     string    `json:"mid_price"`
	Slippage     string    `json:"slippage"`
	LiquidityUSD string    `json:"liquidity_usd"`
	FeePercent   string    `json:"fee_percent"`
	GasCostUSD   string    `json:"gas_cost_usd"`
	Partial      bool      `json:"partial"`
}

// NewRouteSnapshots flattens a ranked result.
func NewRouteSnapshots(requestID string, at time.Time, from, to, amountIn string, routes []RankedRoute, partial bool) []RouteSnapshot {
	out := make([]RouteSnapshot, 0, len(routes))
	for _, r := range routes {
		out = append(out, RouteSnapshot{
			RequestID:    requestID,
			RequestedAt:  at,
			TokenFrom:    from,
			TokenTo:      to,
			AmountIn:     amountIn,
			Rank:         r.Rank,
			Score:        r.Score,
			Venue:        r.Venue,
			Pair:         r.Pair,
			PoolAddress:  r.PoolAddress,
			AmountOut:    r.AmountOut.String(),
			MidPrice:     r.MidPrice.String(),
			Slippage:     r.Slippage.String(),
			LiquidityUSD: r.LiquidityUSD.String(),
			FeePercent:   r.FeePercent.String(),
			GasCostUSD:   r.GasCostUSD.String(),
			Partial:      partial,
		})
	}
	return out
}
