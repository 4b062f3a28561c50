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

// AlgebraAdapter serves Algebra style pools whose fee depends on the swap direction.
type AlgebraAdapter struct {
	poolBase
}

func (a *AlgebraAdapter) globalState(ctx context.Context, pool model.Pool, pair PairContext) (model.RawPoolState, error) {
	poolABI, err := AlgebraPoolABI()
	if err != nil {
		return model.RawPoolState{}, fmt.Errorf("parse pool abi: %w", err)
	}
	values, err := callMethod(ctx, a.reader, pool.Address, poolABI, "globalState")
	if err != nil {
		return model.RawPoolState{}, err
	}
	if len(values) < 4 {
		return model.RawPoolState{}, fmt.Errorf("globalState: %d values", len(values))
	}

	state := model.RawPoolState{Decimals0: pair.Token0.Decimals, Decimals1: pair.Token1.Decimals}
	if state.SqrtPriceX96, err = asBigInt(values[0]); err != nil {
		return model.RawPoolState{}, fmt.Errorf("price: %w", err)
	}
	if state.FeeZeroForOne, err = asUint32(values[2]); err != nil {
		return model.RawPoolState{}, fmt.Errorf("feeZto: %w", err)
	}
	if state.FeeOneForZero, err = asUint32(values[3]); err != nil {
		return model.RawPoolState{}, fmt.Errorf("feeOtz: %w", err)
	}
	return state, nil
}

// fee returns the directional fee for selling tokenFrom.
func (a *AlgebraAdapter) fee(ctx context.Context, pool model.Pool, pair PairContext, tokenFrom common.Address) (uint32, error) {
	var zeroForOne bool
	switch tokenFrom {
	case pair.Token0.Address:
		zeroForOne = true
	case pair.Token1.Address:
	default:
		return 0, fmt.Errorf("%w: %s in %s", ErrTokenMismatch, tokenFrom.Hex(), pool.Pair)
	}

	state, err := a.globalState(ctx, pool, pair)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrFeeUnavailable, pool.Address.Hex(), err)
	}
	if zeroForOne {
		return state.FeeZeroForOne, nil
	}
	return state.FeeOneForZero, nil
}

// FeePercent returns the directional fee as a fraction. tokenFrom must be token0 or token1 of the pool.
func (a *AlgebraAdapter) FeePercent(ctx context.Context, pool model.Pool, tokenFrom common.Address) (decimal.Decimal, error) {
	token0, token1, err := FetchPoolTokens(ctx, a.reader, pool.Address)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s tokens: %v", ErrFeeUnavailable, pool.Address.Hex(), err)
	}
	pair := PairContext{Token0: model.Token{Address: token0}, Token1: model.Token{Address: token1}}
	fee, err := a.fee(ctx, pool, pair, tokenFrom)
	if err != nil {
		return decimal.Zero, err
	}
	return feeFraction(fee), nil
}

// MidPrice reads globalState and returns the output-per-input spot price.
func (a *AlgebraAdapter) MidPrice(ctx context.Context, pool model.Pool, pair PairContext) (decimal.Decimal, error) {
	if err := checkPair(pool, pair); err != nil {
		return decimal.Zero, err
	}
	state, err := a.globalState(ctx, pool, pair)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: %v", ErrPriceUnavailable, pool.Address.Hex(), err)
	}
	return spotPrice(pool, pair, state)
}

// QuoteExactIn asks the Algebra quoter for the output of selling amountIn.
func (a *AlgebraAdapter) QuoteExactIn(ctx context.Context, pool model.Pool, pair PairContext, amountIn decimal.Decimal) (decimal.Decimal, error) {
	if err := checkPair(pool, pair); err != nil {
		return decimal.Zero, err
	}
	rawIn, err := pricemath.ToBaseUnits(amountIn, pair.TokenIn.Decimals)
	if err != nil || rawIn.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: amount %s below one base unit", ErrQuoteUnavailable, amountIn.String())
	}
	quoterABI, err := AlgebraQuoterABI()
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: parse quoter abi: %v", ErrQuoteUnavailable, err)
	}
	values, err := callMethod(ctx, a.reader, a.venue.Quoter, quoterABI, "quoteExactInputSingle",
		pair.TokenIn.Address, pair.TokenOut.Address, rawIn, new(big.Int))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: %v", ErrQuoteUnavailable, pool.Address.Hex(), err)
	}
	return decodeAmountOut(values[0], pool, pair)
}

// TransactionCost returns the directional fee and the USD gas cost of the swap.
func (a *AlgebraAdapter) TransactionCost(ctx context.Context, pool model.Pool, req CostRequest) (TransactionCost, error) {
	fee, err := a.fee(ctx, pool, req.Pair, req.Pair.TokenIn.Address)
	if err != nil {
		return TransactionCost{}, fmt.Errorf("%w: fee: %w", ErrCostUnavailable, err)
	}
	return a.transactionCost(ctx, feeFraction(fee), req, func() (*ethereum.CallMsg, error) {
		rawIn, err := pricemath.ToBaseUnits(req.AmountIn, req.Pair.TokenIn.Decimals)
		if err != nil {
			return nil, err
		}
		return BuildAlgebraSwap(a.venue.Router, req.Pair, rawIn, a.now().Add(SwapDeadline), req.WrappedNative)
	})
}
