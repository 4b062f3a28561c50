package aggregate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routeScope/internal/cache"
	"routeScope/internal/dex"
	"routeScope/internal/model"
)

var (
	weth = model.Token{Symbol: "ETH", Address: common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1"), Decimals: 18}
	usdc = model.Token{Symbol: "USDC", Address: common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831"), Decimals: 6}
	arb  = model.Token{Symbol: "ARB", Address: common.HexToAddress("0x912CE59144191C1204E64559FE8253a0e49E6548"), Decimals: 18}

	poolA = common.HexToAddress("0xA000000000000000000000000000000000000001")
	poolB = common.HexToAddress("0xB000000000000000000000000000000000000002")
	poolC = common.HexToAddress("0xC000000000000000000000000000000000000003")
)

type poolBehavior struct {
	mid      decimal.Decimal
	quote    decimal.Decimal
	quoteErr error
	reserves dex.Reserves
	fee      decimal.Decimal
	gasUSD   decimal.Decimal
	block    bool
	panics   bool
}

type fakeAdapter struct {
	mu     sync.Mutex
	pools  map[common.Address]poolBehavior
	mids   map[common.Address]int
	quotes map[common.Address]int
	costs  map[common.Address]int
}

func newFakeAdapter(pools map[common.Address]poolBehavior) *fakeAdapter {
	return &fakeAdapter{
		pools:  pools,
		mids:   make(map[common.Address]int),
		quotes: make(map[common.Address]int),
		costs:  make(map[common.Address]int),
	}
}

func (f *fakeAdapter) behavior(pool model.Pool) poolBehavior {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pools[pool.Address]
}

func (f *fakeAdapter) Name() string { return "fake" }

func (f *fakeAdapter) FeePercent(_ context.Context, pool model.Pool, _ common.Address) (decimal.Decimal, error) {
	return f.behavior(pool).fee, nil
}

func (f *fakeAdapter) MidPrice(_ context.Context, pool model.Pool, pair dex.PairContext) (decimal.Decimal, error) {
	f.mu.Lock()
	f.mids[pool.Address]++
	f.mu.Unlock()
	if !pair.IsToken0Input() {
		return decimal.Zero, errors.New("mid price must be read in canonical direction")
	}
	return f.behavior(pool).mid, nil
}

func (f *fakeAdapter) QuoteExactIn(ctx context.Context, pool model.Pool, _ dex.PairContext, _ decimal.Decimal) (decimal.Decimal, error) {
	f.mu.Lock()
	f.quotes[pool.Address]++
	f.mu.Unlock()
	b := f.behavior(pool)
	if b.panics {
		panic("quoter exploded")
	}
	if b.block {
		<-ctx.Done()
		return decimal.Zero, ctx.Err()
	}
	return b.quote, b.quoteErr
}

func (f *fakeAdapter) Liquidity(_ context.Context, pool model.Pool, _ dex.PairContext) (dex.Reserves, error) {
	return f.behavior(pool).reserves, nil
}

func (f *fakeAdapter) TransactionCost(_ context.Context, pool model.Pool, _ dex.CostRequest) (dex.TransactionCost, error) {
	f.mu.Lock()
	f.costs[pool.Address]++
	f.mu.Unlock()
	b := f.behavior(pool)
	return dex.TransactionCost{FeePercent: b.fee, GasUnits: 150_000, GasCostUSD: b.gasUSD}, nil
}

func (f *fakeAdapter) count(m map[common.Address]int, addr common.Address) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return m[addr]
}

type staticPrices map[common.Address]decimal.Decimal

func (s staticPrices) Resolve(_ context.Context, addrs []common.Address) map[common.Address]decimal.Decimal {
	out := make(map[common.Address]decimal.Decimal, len(addrs))
	for _, a := range addrs {
		if p, ok := s[a]; ok {
			out[a] = p
		}
	}
	return out
}

type memorySink struct {
	mu        sync.Mutex
	snapshots []model.RouteSnapshot
}

func (s *memorySink) PutSnapshots(_ context.Context, snaps []model.RouteSnapshot) error {
	s.mu.Lock()
	s.snapshots = append(s.snapshots, snaps...)
	s.mu.Unlock()
	return nil
}

func defaultPrices() staticPrices {
	return staticPrices{
		weth.Address: decimal.NewFromInt(2000),
		usdc.Address: decimal.NewFromInt(1),
	}
}

func healthyPool(quote string) poolBehavior {
	return poolBehavior{
		mid:      decimal.NewFromInt(2000),
		quote:    decimal.RequireFromString(quote),
		reserves: dex.Reserves{Token0: decimal.NewFromInt(100), Token1: decimal.NewFromInt(200_000)},
		fee:      decimal.RequireFromString("0.0005"),
		gasUSD:   decimal.RequireFromString("0.02"),
	}
}

func venue(name string, pool common.Address) model.Venue {
	return model.Venue{
		Name:  name,
		Kind:  model.KindUniswapV3,
		Pools: []model.Pool{{Pair: "USDC/ETH", Address: pool}},
	}
}

func newAggregator(t *testing.T, cfg Config, adapter dex.Adapter, prices PriceResolver, sink *memorySink, venues ...model.Venue) *Aggregator {
	t.Helper()
	c, err := cache.NewMemoryCache(100)
	require.NoError(t, err)

	deps := Deps{
		Tokens: model.NewTokenTable(weth, usdc, arb),
		Prices: prices,
		Cache:  c,
	}
	if sink != nil {
		deps.Sink = sink
	}
	for _, v := range venues {
		deps.Venues = append(deps.Venues, VenueAdapter{Venue: v, Adapter: adapter})
	}
	agg, err := New(cfg, deps)
	require.NoError(t, err)
	return agg
}

func TestAggregateAndRankOrdersRoutes(t *testing.T) {
	adapter := newFakeAdapter(map[common.Address]poolBehavior{
		poolA: healthyPool("0.499"),
		poolB: healthyPool("0.495"),
		poolC: {mid: decimal.NewFromInt(2000), quoteErr: dex.ErrQuoteUnavailable},
	})
	sink := &memorySink{}
	agg := newAggregator(t, Config{}, adapter, defaultPrices(), sink,
		venue("Uniswap", poolA), venue("SushiSwap", poolB), venue("Camelot", poolC))

	res, err := agg.AggregateAndRank(context.Background(), "usdc", "eth", decimal.NewFromInt(1000))
	require.NoError(t, err)

	require.Len(t, res.Routes, 2)
	assert.False(t, res.Partial)
	assert.NotEmpty(t, res.RequestID)
	assert.Equal(t, "USDC", res.From)
	assert.Equal(t, "ETH", res.To)

	best := res.Routes[0]
	assert.Equal(t, "Uniswap", best.Venue)
	assert.Equal(t, 1, best.Rank)
	assert.Equal(t, 2, res.Routes[1].Rank)
	assert.GreaterOrEqual(t, best.Score, res.Routes[1].Score)

	assert.True(t, best.MidPrice.Equal(decimal.RequireFromString("0.0005")), "mid %s", best.MidPrice)
	assert.True(t, best.Slippage.Equal(decimal.RequireFromString("0.002")), "slippage %s", best.Slippage)
	assert.True(t, best.LiquidityUSD.Equal(decimal.NewFromInt(400_000)), "liquidity %s", best.LiquidityUSD)
	assert.True(t, best.ValueInUSD.Equal(decimal.NewFromInt(1000)))
	assert.True(t, best.ValueOutUSD.Equal(decimal.NewFromInt(998)))
	assert.True(t, best.PercentageChange.Equal(decimal.RequireFromString("-0.2")), "change %s", best.PercentageChange)

	require.Len(t, res.Failures, 1)
	assert.Equal(t, "Camelot", res.Failures[0].Venue)
	assert.Equal(t, "quote_unavailable", res.Failures[0].Reason)

	require.Len(t, sink.snapshots, 2)
	assert.Equal(t, res.RequestID, sink.snapshots[0].RequestID)
	assert.Equal(t, 1, sink.snapshots[0].Rank)
}

func TestAggregateAndRankSellDirection(t *testing.T) {
	adapter := newFakeAdapter(map[common.Address]poolBehavior{poolA: healthyPool("1990")})
	agg := newAggregator(t, Config{}, adapter, defaultPrices(), nil, venue("Uniswap", poolA))

	res, err := agg.AggregateAndRank(context.Background(), "ETH", "USDC", decimal.NewFromInt(1))
	require.NoError(t, err)
	require.Len(t, res.Routes, 1)
	assert.True(t, res.Routes[0].MidPrice.Equal(decimal.NewFromInt(2000)))
	assert.True(t, res.Routes[0].Slippage.Equal(decimal.RequireFromString("0.005")))
	assert.Equal(t, 1.0, res.Routes[0].Score)
}

func TestAggregateWarmCacheSkipsChainReads(t *testing.T) {
	adapter := newFakeAdapter(map[common.Address]poolBehavior{poolA: healthyPool("0.499")})
	agg := newAggregator(t, Config{}, adapter, defaultPrices(), nil, venue("Uniswap", poolA))

	for i := 0; i < 2; i++ {
		_, err := agg.AggregateAndRank(context.Background(), "USDC", "ETH", decimal.NewFromInt(1000))
		require.NoError(t, err)
	}
	assert.Equal(t, 1, adapter.count(adapter.mids, poolA))
	assert.Equal(t, 1, adapter.count(adapter.quotes, poolA))
	assert.Equal(t, 1, adapter.count(adapter.costs, poolA))

	// The opposite direction reuses the canonical mid price.
	_, err := agg.AggregateAndRank(context.Background(), "ETH", "USDC", decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.Equal(t, 1, adapter.count(adapter.mids, poolA))
	assert.Equal(t, 2, adapter.count(adapter.quotes, poolA))
}

func TestAggregateAndRankRejectsBadInput(t *testing.T) {
	agg := newAggregator(t, Config{}, newFakeAdapter(nil), defaultPrices(), nil, venue("Uniswap", poolA))

	cases := []struct {
		name     string
		from, to string
		amount   decimal.Decimal
		want     error
	}{
		{"unknown from", "DOGE", "ETH", decimal.NewFromInt(1), ErrUnknownToken},
		{"unknown to", "ETH", "DOGE", decimal.NewFromInt(1), ErrUnknownToken},
		{"zero amount", "ETH", "USDC", decimal.Zero, ErrInvalidAmount},
		{"negative amount", "ETH", "USDC", decimal.NewFromInt(-5), ErrInvalidAmount},
		{"same token", "eth", "ETH", decimal.NewFromInt(1), ErrSameToken},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := agg.AggregateAndRank(context.Background(), tc.from, tc.to, tc.amount)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestAggregateAndRankNoRoutes(t *testing.T) {
	adapter := newFakeAdapter(map[common.Address]poolBehavior{
		poolA: {mid: decimal.NewFromInt(2000), quote: decimal.Zero},
	})
	agg := newAggregator(t, Config{}, adapter, defaultPrices(), nil, venue("Uniswap", poolA))

	res, err := agg.AggregateAndRank(context.Background(), "USDC", "ETH", decimal.NewFromInt(1000))
	require.ErrorIs(t, err, ErrNoRoutes)
	assert.Empty(t, res.Routes)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "zero_quote", res.Failures[0].Reason)

	// A pair no venue lists is also no routes.
	_, err = agg.AggregateAndRank(context.Background(), "ARB", "ETH", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrNoRoutes)
}

func TestAggregateAndRankMissingTokenPrice(t *testing.T) {
	adapter := newFakeAdapter(map[common.Address]poolBehavior{poolA: healthyPool("0.499")})
	prices := staticPrices{weth.Address: decimal.NewFromInt(2000)}
	agg := newAggregator(t, Config{}, adapter, prices, nil, venue("Uniswap", poolA))

	res, err := agg.AggregateAndRank(context.Background(), "USDC", "ETH", decimal.NewFromInt(1000))
	require.ErrorIs(t, err, ErrNoRoutes)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "token_price_missing", res.Failures[0].Reason)
}

func TestAggregateAndRankIsolatesPanics(t *testing.T) {
	adapter := newFakeAdapter(map[common.Address]poolBehavior{
		poolA: healthyPool("0.499"),
		poolB: {mid: decimal.NewFromInt(2000), panics: true},
	})
	agg := newAggregator(t, Config{}, adapter, defaultPrices(), nil, venue("Uniswap", poolA), venue("SushiSwap", poolB))

	res, err := agg.AggregateAndRank(context.Background(), "USDC", "ETH", decimal.NewFromInt(1000))
	require.NoError(t, err)
	require.Len(t, res.Routes, 1)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "panic", res.Failures[0].Reason)
}

func TestAggregateAndRankTimeoutReturnsPartial(t *testing.T) {
	adapter := newFakeAdapter(map[common.Address]poolBehavior{
		poolA: healthyPool("0.499"),
		poolB: {mid: decimal.NewFromInt(2000), block: true},
	})
	agg := newAggregator(t, Config{RequestTimeout: 100 * time.Millisecond}, adapter, defaultPrices(), nil,
		venue("Uniswap", poolA), venue("SushiSwap", poolB))

	start := time.Now()
	res, err := agg.AggregateAndRank(context.Background(), "USDC", "ETH", decimal.NewFromInt(1000))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, res.Partial)
	require.Len(t, res.Routes, 1)
	assert.Equal(t, "Uniswap", res.Routes[0].Venue)
}

func TestResolvePairMatchesByAddress(t *testing.T) {
	p := &PoolPipeline{tokens: model.NewTokenTable(weth, usdc)}
	pool := model.Pool{Venue: "Uniswap", Pair: "USDC/ETH", Address: poolA}

	pair, err := p.resolvePair(pool, Request{From: weth, To: usdc})
	require.NoError(t, err)
	assert.Equal(t, weth.Address, pair.TokenIn.Address)

	bridged := usdc
	bridged.Address = common.HexToAddress("0xFF970A61A04b1cA14834A43f5dE4533eBDDB5CC8")
	_, err = p.resolvePair(pool, Request{From: bridged, To: weth})
	assert.ErrorIs(t, err, ErrUnresolvablePair)
}

func TestWaitReportsUnfinishedVenues(t *testing.T) {
	expired, cancel := context.WithCancel(context.Background())
	cancel()

	finished := make(chan struct{})
	close(finished)
	assert.False(t, wait(expired, finished), "venues that finished before the deadline are complete")
	assert.False(t, wait(context.Background(), finished))

	running := make(chan struct{})
	assert.True(t, wait(expired, running))
}

func TestCutShortOnlyCountsContextFailures(t *testing.T) {
	assert.False(t, cutShort(nil))
	assert.False(t, cutShort([]Failure{{Reason: "quote_unavailable"}, {Reason: "panic"}}))
	assert.True(t, cutShort([]Failure{{Reason: "zero_quote"}, {Reason: reasonOf(context.DeadlineExceeded)}}))
	assert.True(t, cutShort([]Failure{{Reason: reasonOf(context.Canceled)}}))
}

func TestNewRequiresNativeToken(t *testing.T) {
	_, err := New(Config{NativeSymbol: "MATIC"}, Deps{
		Tokens: model.NewTokenTable(weth, usdc),
		Prices: defaultPrices(),
	})
	assert.ErrorIs(t, err, ErrUnknownToken)
}

func TestReasonOf(t *testing.T) {
	assert.Equal(t, "fee_unavailable", reasonOf(dex.ErrFeeUnavailable))
	assert.Equal(t, "timeout", reasonOf(context.DeadlineExceeded))
	assert.Equal(t, "error", reasonOf(errors.New("boom")))
}
