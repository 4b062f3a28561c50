package model

import "github.com/shopspring/decimal"

// CandidateRoute is one priced, costed direct-pool route.
type CandidateRoute struct {
	Venue            string          `json:"venue"`
	Pair             string          `json:"pair"`
	PoolAddress      string          `json:"pool_address"`
	TokenIn          string          `json:"token_in"`
	TokenOut         string          `json:"token_out"`
	MidPrice         decimal.Decimal `json:"mid_price"`
	AmountIn         decimal.Decimal `json:"amount_in"`
	AmountOut        decimal.Decimal `json:"amount_out"`
	Slippage         decimal.Decimal `json:"slippage"`
	LiquidityUSD     decimal.Decimal `json:"liquidity_usd"`
	FeePercent       decimal.Decimal `json:"fee_percent"`
	GasCostUSD       decimal.Decimal `json:"gas_cost_usd"`
	ValueInUSD       decimal.Decimal `json:"value_in_usd"`
	ValueOutUSD      decimal.Decimal `json:"value_out_usd"`
	PercentageChange decimal.Decimal `json:"percentage_change"`
}

// RankedRoute is a CandidateRoute with its TOPSIS score and 1-based position.
type RankedRoute struct {
	CandidateRoute
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}

// PriceQuote is a resolved USD unit price and the source that answered it.
type PriceQuote struct {
	Address string          `json:"address"`
	USD     decimal.Decimal `json:"usd"`
	Source  string          `json:"source"`
}
