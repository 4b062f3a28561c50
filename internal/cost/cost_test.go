package cost

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingGasReader struct {
	calls atomic.Int32
	price *big.Int
	err   error
}

func (r *countingGasReader) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	r.calls.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	return r.price, nil
}

type stubEstimator struct {
	gas uint64
	err error
}

func (e stubEstimator) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return e.gas, e.err
}

func TestGasPriceCacheReusesValueWithinTTL(t *testing.T) {
	reader := &countingGasReader{price: big.NewInt(100_000_000)}
	cache := NewGasPriceCache(reader, time.Minute)
	now := time.Unix(1700000000, 0)
	cache.now = func() time.Time { return now }

	p1, err := cache.Get(context.Background())
	require.NoError(t, err)
	p2, err := cache.Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), reader.calls.Load())
	assert.Equal(t, 0, p1.Cmp(p2))

	now = now.Add(61 * time.Second)
	_, err = cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), reader.calls.Load())
}

func TestGasPriceCacheSingleRefreshUnderConcurrency(t *testing.T) {
	reader := &countingGasReader{price: big.NewInt(42)}
	cache := NewGasPriceCache(reader, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = cache.Get(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), reader.calls.Load())
}

func TestGasPriceCacheError(t *testing.T) {
	cache := NewGasPriceCache(&countingGasReader{err: errors.New("rpc down")}, time.Minute)
	_, err := cache.Get(context.Background())
	require.ErrorIs(t, err, ErrGasPriceUnavailable)
}

func TestGasTableUnits(t *testing.T) {
	table := DefaultGasTable()
	fee := decimal.RequireFromString("0.0005")

	assert.Equal(t, uint64(120_000), table.Units(&fee, decimal.NewFromInt(5_000_000)))
	assert.Equal(t, uint64(135_000), table.Units(&fee, decimal.NewFromInt(50_000)))
	assert.Equal(t, uint64(140_000), table.Units(nil, decimal.NewFromInt(1_000_000)))

	dynamic := decimal.RequireFromString("0.000465")
	assert.Equal(t, uint64(140_000), table.Units(&dynamic, decimal.NewFromInt(1_000_000)))

	low := decimal.RequireFromString("0.0001")
	high := decimal.RequireFromString("0.01")
	assert.Less(t, table.Units(&low, decimal.NewFromInt(1_000_000)), table.Units(&high, decimal.NewFromInt(1_000_000)))
}

func TestModelEstimateMode(t *testing.T) {
	call := &ethereum.CallMsg{}

	m := NewModel(Config{Mode: ModeEstimate}, nil, stubEstimator{gas: 100_000}, nil)
	assert.Equal(t, uint64(105_000), m.GasUnits(context.Background(), Request{Call: call}))

	m = NewModel(Config{Mode: ModeEstimate}, nil, stubEstimator{err: errors.New("execution reverted")}, nil)
	assert.Equal(t, DefaultGasUnits, m.GasUnits(context.Background(), Request{Call: call}))

	assert.Equal(t, DefaultGasUnits, m.GasUnits(context.Background(), Request{}))
}

func TestModelGasCostUSD(t *testing.T) {
	reader := &countingGasReader{price: big.NewInt(100_000_000)} // 0.1 gwei
	m := NewModel(Config{Mode: ModeTable}, NewGasPriceCache(reader, time.Minute), nil, nil)

	fee := decimal.RequireFromString("0.003")
	est, err := m.GasCostUSD(context.Background(), Request{
		Fee:          &fee,
		LiquidityUSD: decimal.NewFromInt(10_000_000),
		NativeUSD:    decimal.NewFromInt(2000),
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(140_000), est.Units)
	assert.True(t, est.USD.Equal(decimal.RequireFromString("0.028")), "got %s", est.USD)
}

func TestModelGasCostFailsClosed(t *testing.T) {
	reader := &countingGasReader{price: big.NewInt(1)}
	m := NewModel(Config{}, NewGasPriceCache(reader, time.Minute), nil, nil)

	_, err := m.GasCostUSD(context.Background(), Request{NativeUSD: decimal.Zero})
	require.ErrorIs(t, err, ErrMissingNativePrice)
	assert.Equal(t, int32(0), reader.calls.Load())

	m = NewModel(Config{}, NewGasPriceCache(&countingGasReader{err: errors.New("down")}, time.Minute), nil, nil)
	_, err = m.GasCostUSD(context.Background(), Request{NativeUSD: decimal.NewFromInt(2000)})
	require.ErrorIs(t, err, ErrGasPriceUnavailable)
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeTable, mode)

	mode, err = ParseMode("estimate")
	require.NoError(t, err)
	assert.Equal(t, ModeEstimate, mode)

	_, err = ParseMode("oracle")
	assert.Error(t, err)
}
