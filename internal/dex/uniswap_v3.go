package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"routeScope/internal/model"
	"routeScope/internal/pricemath"
)

// UniswapV3Adapter serves Uniswap V3 style pools with a static fee tier.
type UniswapV3Adapter struct {
	poolBase
}

type quoteExactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	AmountIn          *big.Int
	Fee               *big.Int
	SqrtPriceLimitX96 *big.Int
}

// fee prefers the configured tier and falls back to a fee() read.
func (a *UniswapV3Adapter) fee(ctx context.Context, pool model.Pool) (uint32, error) {
	if pool.Fee != nil {
		return *pool.Fee, nil
	}
	poolABI, err := V3PoolABI()
	if err != nil {
		return 0, fmt.Errorf("parse pool abi: %w", err)
	}
	values, err := callMethod(ctx, a.reader, pool.Address, poolABI, "fee")
	if err != nil {
		return 0, err
	}
	return asUint32(values[0])
}

// FeePercent returns the pool fee as a fraction. The direction does not matter for static fees.
func (a *UniswapV3Adapter) FeePercent(ctx context.Context, pool model.Pool, _ common.Address) (decimal.Decimal, error) {
	fee, err := a.fee(ctx, pool)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: %v", ErrFeeUnavailable, pool.Address.Hex(), err)
	}
	return feeFraction(fee), nil
}

// MidPrice reads slot0 and returns the output-per-input spot price.
func (a *UniswapV3Adapter) MidPrice(ctx context.Context, pool model.Pool, pair PairContext) (decimal.Decimal, error) {
	if err := checkPair(pool, pair); err != nil {
		return decimal.Zero, err
	}
	poolABI, err := V3PoolABI()
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: parse pool abi: %v", ErrPriceUnavailable, err)
	}
	values, err := callMethod(ctx, a.reader, pool.Address, poolABI, "slot0")
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: %v", ErrPriceUnavailable, pool.Address.Hex(), err)
	}
	sqrtPrice, err := asBigInt(values[0])
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: sqrt price: %v", ErrPriceUnavailable, err)
	}

	return spotPrice(pool, pair, model.RawPoolState{
		SqrtPriceX96: sqrtPrice,
		Decimals0:    pair.Token0.Decimals,
		Decimals1:    pair.Token1.Decimals,
	})
}

// QuoteExactIn asks the venue quoter for the output of selling amountIn.
func (a *UniswapV3Adapter) QuoteExactIn(ctx context.Context, pool model.Pool, pair PairContext, amountIn decimal.Decimal) (decimal.Decimal, error) {
	if err := checkPair(pool, pair); err != nil {
		return decimal.Zero, err
	}
	fee, err := a.fee(ctx, pool)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: fee: %v", ErrQuoteUnavailable, err)
	}
	rawIn, err := pricemath.ToBaseUnits(amountIn, pair.TokenIn.Decimals)
	if err != nil || rawIn.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: amount %s below one base unit", ErrQuoteUnavailable, amountIn.String())
	}

	var values []interface{}
	if a.venue.QuoterVersion == 2 {
		quoterABI, err := QuoterV2ABI()
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: parse quoter abi: %v", ErrQuoteUnavailable, err)
		}
		params := quoteExactInputSingleParams{
			TokenIn:           pair.TokenIn.Address,
			TokenOut:          pair.TokenOut.Address,
			AmountIn:          rawIn,
			Fee:               new(big.Int).SetUint64(uint64(fee)),
			SqrtPriceLimitX96: new(big.Int),
		}
		values, err = callMethod(ctx, a.reader, a.venue.Quoter, quoterABI, "quoteExactInputSingle", params)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: %s: %v", ErrQuoteUnavailable, pool.Address.Hex(), err)
		}
	} else {
		quoterABI, err := QuoterV1ABI()
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: parse quoter abi: %v", ErrQuoteUnavailable, err)
		}
		values, err = callMethod(ctx, a.reader, a.venue.Quoter, quoterABI, "quoteExactInputSingle",
			pair.TokenIn.Address, pair.TokenOut.Address, new(big.Int).SetUint64(uint64(fee)), rawIn, new(big.Int))
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: %s: %v", ErrQuoteUnavailable, pool.Address.Hex(), err)
		}
	}

	return decodeAmountOut(values[0], pool, pair)
}

// TransactionCost returns the fee and the USD gas cost of the swap.
func (a *UniswapV3Adapter) TransactionCost(ctx context.Context, pool model.Pool, req CostRequest) (TransactionCost, error) {
	fee, err := a.fee(ctx, pool)
	if err != nil {
		return TransactionCost{}, fmt.Errorf("%w: fee: %v", ErrCostUnavailable, err)
	}
	return a.transactionCost(ctx, feeFraction(fee), req, func() (*ethereum.CallMsg, error) {
		rawIn, err := pricemath.ToBaseUnits(req.AmountIn, req.Pair.TokenIn.Decimals)
		if err != nil {
			return nil, err
		}
		return BuildUniswapSwap(a.venue.Router, req.Pair, fee, rawIn, a.now().Add(SwapDeadline), req.WrappedNative)
	})
}

func decodeAmountOut(value interface{}, pool model.Pool, pair PairContext) (decimal.Decimal, error) {
	rawOut, err := asBigInt(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: amount out: %v", ErrQuoteUnavailable, err)
	}
	if rawOut.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrZeroQuote, pool.Address.Hex())
	}
	return pricemath.FromBaseUnits(rawOut, pair.TokenOut.Decimals), nil
}
