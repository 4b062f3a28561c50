// Package aggregate quotes every configured pool of a pair and ranks the resulting routes.
package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"routeScope/internal/cache"
	"routeScope/internal/dex"
	"routeScope/internal/model"
	"routeScope/internal/pricemath"
)

// PriceResolver resolves USD prices. Unresolved addresses are absent from the result.
type PriceResolver interface {
	Resolve(ctx context.Context, addrs []common.Address) map[common.Address]decimal.Decimal
}

// TTLs are the cache lifetimes of each pipeline step.
type TTLs struct {
	Mid       time.Duration
	Quote     time.Duration
	Liquidity time.Duration
	Cost      time.Duration
}

// DefaultTTLs caches every step for a minute.
func DefaultTTLs() TTLs {
	return TTLs{Mid: time.Minute, Quote: time.Minute, Liquidity: time.Minute, Cost: time.Minute}
}

// Request is a validated quote request.
type Request struct {
	From   model.Token
	To     model.Token
	Amount decimal.Decimal
}

// PoolPipeline turns one pool into a costed candidate route.
type PoolPipeline struct {
	adapter dex.Adapter
	prices  PriceResolver
	cache   cache.Cache
	tokens  model.TokenTable
	native  model.Token
	ttl     TTLs
	logger  *zap.Logger
}

// NewPoolPipeline wires one venue's adapter to the shared price oracle and cache.
func NewPoolPipeline(adapter dex.Adapter, prices PriceResolver, c cache.Cache, tokens model.TokenTable, native model.Token, ttl TTLs, logger *zap.Logger) *PoolPipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PoolPipeline{
		adapter: adapter,
		prices:  prices,
		cache:   c,
		tokens:  tokens,
		native:  native,
		ttl:     ttl,
		logger:  logger,
	}
}

// Run executes every step for pool. Any error means the pool is skipped.
func (p *PoolPipeline) Run(ctx context.Context, pool model.Pool, req Request) (model.CandidateRoute, error) {
	pair, err := p.resolvePair(pool, req)
	if err != nil {
		return model.CandidateRoute{}, err
	}
	key := pool.Key()
	amountKey := cache.AmountKey(req.Amount)

	prices := p.prices.Resolve(ctx, []common.Address{req.From.Address, req.To.Address, p.native.Address})

	canonical, err := cache.GetOrComputeDecimal(ctx, p.cache, key, p.ttl.Mid, p.logger, func(ctx context.Context) (decimal.Decimal, error) {
		return p.adapter.MidPrice(ctx, pool, pair.Canonical())
	})
	if err != nil {
		return model.CandidateRoute{}, err
	}
	if !canonical.IsPositive() {
		return model.CandidateRoute{}, fmt.Errorf("%w: cached mid price %s", dex.ErrPriceUnavailable, canonical)
	}
	mid := canonical
	if !pair.IsToken0Input() {
		mid = pricemath.Invert(canonical)
	}

	quoteKey := cache.Key(key, "quote", req.From.Symbol, req.To.Symbol, amountKey)
	amountOut, err := cache.GetOrComputeDecimal(ctx, p.cache, quoteKey, p.ttl.Quote, p.logger, func(ctx context.Context) (decimal.Decimal, error) {
		return p.adapter.QuoteExactIn(ctx, pool, pair, req.Amount)
	})
	if err != nil {
		return model.CandidateRoute{}, err
	}
	if !amountOut.IsPositive() {
		return model.CandidateRoute{}, fmt.Errorf("%w: cached quote %s", dex.ErrZeroQuote, amountOut)
	}

	price0, ok0 := prices[pair.Token0.Address]
	price1, ok1 := prices[pair.Token1.Address]
	if !ok0 || !ok1 {
		return model.CandidateRoute{}, fmt.Errorf("%w: %s/%s", ErrPriceMissing, pair.Token0.Symbol, pair.Token1.Symbol)
	}
	liquidityUSD, err := cache.GetOrComputeDecimal(ctx, p.cache, cache.Key(key, "liquidity"), p.ttl.Liquidity, p.logger, func(ctx context.Context) (decimal.Decimal, error) {
		reserves, err := p.adapter.Liquidity(ctx, pool, pair)
		if err != nil {
			return decimal.Zero, err
		}
		return reserves.USD(price0, price1), nil
	})
	if err != nil {
		return model.CandidateRoute{}, err
	}

	fee, gas, err := p.transactionCost(ctx, pool, pair, req, liquidityUSD, prices[p.native.Address], amountKey)
	if err != nil {
		return model.CandidateRoute{}, err
	}

	valueIn := req.Amount.Mul(prices[req.From.Address])
	valueOut := amountOut.Mul(prices[req.To.Address])
	return model.CandidateRoute{
		Venue:            pool.Venue,
		Pair:             pool.Pair,
		PoolAddress:      pool.Address.Hex(),
		TokenIn:          req.From.Symbol,
		TokenOut:         req.To.Symbol,
		MidPrice:         mid,
		AmountIn:         req.Amount,
		AmountOut:        amountOut,
		Slippage:         pricemath.Slippage(req.Amount, mid, amountOut),
		LiquidityUSD:     liquidityUSD,
		FeePercent:       fee,
		GasCostUSD:       gas,
		ValueInUSD:       valueIn,
		ValueOutUSD:      valueOut,
		PercentageChange: pricemath.PercentageChange(valueIn, valueOut),
	}, nil
}

// resolvePair checks the pool's configured pair resolves to exactly the requested tokens.
func (p *PoolPipeline) resolvePair(pool model.Pool, req Request) (dex.PairContext, error) {
	a, b, err := pool.Symbols()
	if err != nil {
		return dex.PairContext{}, fmt.Errorf("%w: %v", ErrUnresolvablePair, err)
	}
	tokA, okA := p.tokens.Lookup(a)
	tokB, okB := p.tokens.Lookup(b)
	if !okA || !okB {
		return dex.PairContext{}, fmt.Errorf("%w: %s has unknown tokens", ErrUnresolvablePair, pool.Pair)
	}
	forward := tokA.Same(req.From.Address) && tokB.Same(req.To.Address)
	reverse := tokA.Same(req.To.Address) && tokB.Same(req.From.Address)
	if !forward && !reverse {
		return dex.PairContext{}, fmt.Errorf("%w: %s does not trade %s/%s", ErrUnresolvablePair, pool.Pair, req.From.Symbol, req.To.Symbol)
	}
	return dex.NewPairContext(req.From, req.To), nil
}

// transactionCost reads fee and gas from cache, or costs the swap and caches both.
func (p *PoolPipeline) transactionCost(ctx context.Context, pool model.Pool, pair dex.PairContext, req Request, liquidityUSD, nativeUSD decimal.Decimal, amountKey string) (decimal.Decimal, decimal.Decimal, error) {
	feeKey := cache.Key(pool.Key(), "fee", req.From.Symbol, req.To.Symbol, amountKey)
	gasKey := cache.Key(pool.Key(), "gas", req.From.Symbol, req.To.Symbol, amountKey)

	fee, feeOK := cache.GetDecimal(ctx, p.cache, feeKey, p.logger)
	gas, gasOK := cache.GetDecimal(ctx, p.cache, gasKey, p.logger)
	if feeOK && gasOK {
		return fee, gas, nil
	}

	tc, err := p.adapter.TransactionCost(ctx, pool, dex.CostRequest{
		Pair:          pair,
		AmountIn:      req.Amount,
		LiquidityUSD:  liquidityUSD,
		NativeUSD:     nativeUSD,
		WrappedNative: p.native.Address,
	})
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	cache.SetDecimal(ctx, p.cache, feeKey, tc.FeePercent, p.ttl.Cost, p.logger)
	cache.SetDecimal(ctx, p.cache, gasKey, tc.GasCostUSD, p.ttl.Cost, p.logger)
	return tc.FeePercent, tc.GasCostUSD, nil
}
