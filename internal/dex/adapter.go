// Package dex reads prices, quotes and reserves from on-chain pools.
package dex

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"routeScope/internal/cost"
	"routeScope/internal/model"
	"routeScope/internal/pricemath"
)

// Adapter is the capability set of one pool family.
type Adapter interface {
	Name() string
	FeePercent(ctx context.Context, pool model.Pool, tokenFrom common.Address) (decimal.Decimal, error)
	MidPrice(ctx context.Context, pool model.Pool, pair PairContext) (decimal.Decimal, error)
	QuoteExactIn(ctx context.Context, pool model.Pool, pair PairContext, amountIn decimal.Decimal) (decimal.Decimal, error)
	Liquidity(ctx context.Context, pool model.Pool, pair PairContext) (Reserves, error)
	TransactionCost(ctx context.Context, pool model.Pool, req CostRequest) (TransactionCost, error)
}

// PairContext is a swap direction over a pool's sorted token pair.
type PairContext struct {
	TokenIn  model.Token
	TokenOut model.Token
	Token0   model.Token
	Token1   model.Token
}

// NewPairContext orders the two tokens the way pools do, by ascending address.
func NewPairContext(in, out model.Token) PairContext {
	pc := PairContext{TokenIn: in, TokenOut: out, Token0: in, Token1: out}
	if bytes.Compare(out.Address.Bytes(), in.Address.Bytes()) < 0 {
		pc.Token0, pc.Token1 = out, in
	}
	return pc
}

// IsToken0Input reports whether the swap sells token0.
func (p PairContext) IsToken0Input() bool {
	return p.TokenIn.Address == p.Token0.Address
}

// Canonical returns the token0 to token1 direction of the same pair.
func (p PairContext) Canonical() PairContext {
	return PairContext{TokenIn: p.Token0, TokenOut: p.Token1, Token0: p.Token0, Token1: p.Token1}
}

// Reserves are the pool's token balances in human units.
type Reserves struct {
	Token0 decimal.Decimal
	Token1 decimal.Decimal
}

// USD values the reserves at the given unit prices.
func (r Reserves) USD(price0, price1 decimal.Decimal) decimal.Decimal {
	return r.Token0.Mul(price0).Add(r.Token1.Mul(price1))
}

// CostRequest describes the swap to be costed.
type CostRequest struct {
	Pair          PairContext
	AmountIn      decimal.Decimal
	LiquidityUSD  decimal.Decimal
	NativeUSD     decimal.Decimal
	WrappedNative common.Address
}

// TransactionCost is the protocol fee fraction and the USD gas cost of one swap.
type TransactionCost struct {
	FeePercent decimal.Decimal
	GasUnits   uint64
	GasCostUSD decimal.Decimal
}

// NewAdapter selects the adapter of the venue's kind.
func NewAdapter(venue model.Venue, reader ChainReader, costs *cost.Model, logger *zap.Logger) (Adapter, error) {
	if reader == nil {
		return nil, fmt.Errorf("chain reader is nil")
	}
	base := poolBase{
		venue:  venue,
		reader: reader,
		costs:  costs,
		now:    time.Now,
		logger: logger,
	}
	if base.logger == nil {
		base.logger = zap.NewNop()
	}
	base.logger = base.logger.With(zap.String("venue", venue.Name))

	switch venue.Kind {
	case model.KindUniswapV3:
		return &UniswapV3Adapter{poolBase: base}, nil
	case model.KindAlgebra:
		return &AlgebraAdapter{poolBase: base}, nil
	default:
		return nil, fmt.Errorf("unknown venue kind %q for %s", venue.Kind, venue.Name)
	}
}

// poolBase holds what both adapter families share.
type poolBase struct {
	venue  model.Venue
	reader ChainReader
	costs  *cost.Model
	now    func() time.Time
	logger *zap.Logger
}

func (b *poolBase) Name() string {
	return b.venue.Name
}

func (b *poolBase) Liquidity(ctx context.Context, pool model.Pool, pair PairContext) (Reserves, error) {
	raw0, err := FetchBalance(ctx, b.reader, pair.Token0.Address, pool.Address)
	if err != nil {
		return Reserves{}, fmt.Errorf("%w: %s balance: %v", ErrLiquidityUnavailable, pair.Token0.Symbol, err)
	}
	raw1, err := FetchBalance(ctx, b.reader, pair.Token1.Address, pool.Address)
	if err != nil {
		return Reserves{}, fmt.Errorf("%w: %s balance: %v", ErrLiquidityUnavailable, pair.Token1.Symbol, err)
	}
	return Reserves{
		Token0: pricemath.FromBaseUnits(raw0, pair.Token0.Decimals),
		Token1: pricemath.FromBaseUnits(raw1, pair.Token1.Decimals),
	}, nil
}

// transactionCost adds the gas cost to an already read fee. swapCall is only built in estimate mode.
func (b *poolBase) transactionCost(ctx context.Context, fee decimal.Decimal, req CostRequest, swapCall func() (*ethereum.CallMsg, error)) (TransactionCost, error) {
	if b.costs == nil {
		return TransactionCost{}, fmt.Errorf("%w: cost model not configured", ErrCostUnavailable)
	}

	costReq := cost.Request{Fee: &fee, LiquidityUSD: req.LiquidityUSD, NativeUSD: req.NativeUSD}
	if b.costs.Mode() == cost.ModeEstimate {
		call, err := swapCall()
		if err != nil {
			b.logger.Debug("swap call not built", zap.Error(err))
		} else {
			costReq.Call = call
		}
	}

	est, err := b.costs.GasCostUSD(ctx, costReq)
	if err != nil {
		return TransactionCost{}, fmt.Errorf("%w: gas: %w", ErrCostUnavailable, err)
	}
	return TransactionCost{FeePercent: fee, GasUnits: est.Units, GasCostUSD: est.USD}, nil
}

// feeFraction converts a fee in hundredths of a bip to a fraction.
func feeFraction(fee uint32) decimal.Decimal {
	return decimal.New(int64(fee), -6)
}

func checkPair(pool model.Pool, pair PairContext) error {
	if !pool.Matches(pair.TokenIn.Symbol, pair.TokenOut.Symbol) {
		return fmt.Errorf("%w: %s does not trade %s/%s", ErrTokenMismatch, pool.Pair, pair.TokenIn.Symbol, pair.TokenOut.Symbol)
	}
	return nil
}

// spotPrice converts raw pool state into the output-per-input price of pair.
func spotPrice(pool model.Pool, pair PairContext, state model.RawPoolState) (decimal.Decimal, error) {
	mid := pricemath.MidPrice(state.SqrtPriceX96, state.Decimals0, state.Decimals1, pair.IsToken0Input())
	if !mid.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s: non-positive price", ErrPriceUnavailable, pool.Address.Hex())
	}
	return mid, nil
}
