package cost

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"
)

// DefaultGasPriceTTL is how long a fetched gas price is reused.
const DefaultGasPriceTTL = 60 * time.Second

// ErrGasPriceUnavailable is returned when no gas price could be read.
var ErrGasPriceUnavailable = errors.New("gas price unavailable")

// GasPriceReader reads the current network gas price in wei.
type GasPriceReader interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// GasPriceCache shares one gas price read across all pools for ttl.
type GasPriceCache struct {
	reader GasPriceReader
	ttl    time.Duration
	now    func() time.Time

	mu        sync.Mutex
	value     *big.Int
	fetchedAt time.Time
}

// NewGasPriceCache builds a cache over reader.
func NewGasPriceCache(reader GasPriceReader, ttl time.Duration) *GasPriceCache {
	if ttl <= 0 {
		ttl = DefaultGasPriceTTL
	}
	return &GasPriceCache{reader: reader, ttl: ttl, now: time.Now}
}

// Get returns the cached gas price, refreshing it once when expired.
// Concurrent callers wait on the same refresh.
func (c *GasPriceCache) Get(ctx context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.value != nil && c.now().Sub(c.fetchedAt) < c.ttl {
		return new(big.Int).Set(c.value), nil
	}
	if c.reader == nil {
		return nil, fmt.Errorf("%w: no reader", ErrGasPriceUnavailable)
	}

	price, err := c.reader.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGasPriceUnavailable, err)
	}
	if price == nil || price.Sign() <= 0 {
		return nil, fmt.Errorf("%w: non-positive price", ErrGasPriceUnavailable)
	}

	c.value = new(big.Int).Set(price)
	c.fetchedAt = c.now()
	return new(big.Int).Set(price), nil
}
