package cost

import "github.com/shopspring/decimal"

// Tier maps a fee fraction to the gas units a swap through such a pool typically uses.
type Tier struct {
	Fee   decimal.Decimal
	Units uint64
}

// GasTable estimates swap gas from the pool fee tier.
type GasTable struct {
	Tiers        []Tier
	DefaultUnits uint64
	// Pools with less USD liquidity than LowLiquidityUSD get LowLiquidityUplift extra units.
	LowLiquidityUSD    decimal.Decimal
	LowLiquidityUplift uint64
}

// DefaultGasTable returns the standard tier table.
func DefaultGasTable() GasTable {
	return GasTable{
		Tiers: []Tier{
			{Fee: decimal.RequireFromString("0.0001"), Units: 110_000},
			{Fee: decimal.RequireFromString("0.0005"), Units: 120_000},
			{Fee: decimal.RequireFromString("0.003"), Units: 140_000},
			{Fee: decimal.RequireFromString("0.01"), Units: 160_000},
		},
		DefaultUnits:       140_000,
		LowLiquidityUSD:    decimal.NewFromInt(100_000),
		LowLiquidityUplift: 15_000,
	}
}

// Units looks up the gas units for fee. A nil fee uses the default.
func (t GasTable) Units(fee *decimal.Decimal, liquidityUSD decimal.Decimal) uint64 {
	units := t.DefaultUnits
	if fee != nil {
		for _, tier := range t.Tiers {
			if tier.Fee.Equal(*fee) {
				units = tier.Units
				break
			}
		}
	}
	if liquidityUSD.LessThan(t.LowLiquidityUSD) {
		units += t.LowLiquidityUplift
	}
	return units
}
