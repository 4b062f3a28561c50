// Package oracle resolves USD token prices from external sources with caching and fallback.
package oracle

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"routeScope/internal/breaker"
	"routeScope/internal/cache"
	"routeScope/internal/model"
)

// DefaultPriceTTL is how long resolved prices are cached.
const DefaultPriceTTL = 30 * time.Second

// SourceCache marks quotes answered from the cache.
const SourceCache = "cache"

// Oracle asks its sources in order until every address has a price.
type Oracle struct {
	sources []Source
	cache   cache.Cache
	ttl     time.Duration
	logger  *zap.Logger
}

// New builds an oracle. The first source is the primary and names the cache keys.
func New(c cache.Cache, ttl time.Duration, logger *zap.Logger, sources ...Source) *Oracle {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = DefaultPriceTTL
	}
	return &Oracle{sources: sources, cache: c, ttl: ttl, logger: logger}
}

// CacheKey returns the cache key of addr's price.
func (o *Oracle) CacheKey(addr common.Address) string {
	prefix := "price"
	if len(o.sources) > 0 {
		prefix = o.sources[0].Name()
	}
	return prefix + "_" + strings.ToLower(addr.Hex())
}

// Resolve returns the positive USD price of every address it could resolve. Unresolved addresses are absent.
func (o *Oracle) Resolve(ctx context.Context, addrs []common.Address) map[common.Address]decimal.Decimal {
	quotes := o.Quotes(ctx, addrs)
	out := make(map[common.Address]decimal.Decimal, len(quotes))
	for a, q := range quotes {
		out[a] = q.USD
	}
	return out
}

// Quotes is Resolve with provenance: each quote names the source that answered it.
func (o *Oracle) Quotes(ctx context.Context, addrs []common.Address) map[common.Address]model.PriceQuote {
	out := make(map[common.Address]model.PriceQuote, len(addrs))
	seen := make(map[common.Address]struct{}, len(addrs))
	missing := make([]common.Address, 0, len(addrs))

	for _, a := range addrs {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		if p, ok := cache.GetDecimal(ctx, o.cache, o.CacheKey(a), o.logger); ok && p.IsPositive() {
			out[a] = newQuote(a, p, SourceCache)
			continue
		}
		missing = append(missing, a)
	}

	for _, src := range o.sources {
		if len(missing) == 0 {
			break
		}
		if ctx.Err() != nil {
			break
		}
		prices, err := src.PricesBatch(ctx, missing)
		if err != nil {
			level := zap.WarnLevel
			if errors.Is(err, breaker.ErrOpen) {
				level = zap.DebugLevel
			}
			o.logger.Check(level, "price source failed").Write(
				zap.String("source", src.Name()), zap.Int("tokens", len(missing)), zap.Error(err))
		}

		still := missing[:0]
		for _, a := range missing {
			p, ok := prices[a]
			if !ok || !p.IsPositive() {
				still = append(still, a)
				continue
			}
			out[a] = newQuote(a, p, src.Name())
			cache.SetDecimal(ctx, o.cache, o.CacheKey(a), p, o.ttl, o.logger)
		}
		missing = still
	}

	if len(missing) > 0 {
		o.logger.Debug("prices unresolved", zap.Int("tokens", len(missing)))
	}
	return out
}

func newQuote(addr common.Address, usd decimal.Decimal, source string) model.PriceQuote {
	return model.PriceQuote{Address: strings.ToLower(addr.Hex()), USD: usd, Source: source}
}

// Price resolves a single address.
func (o *Oracle) Price(ctx context.Context, addr common.Address) (decimal.Decimal, bool) {
	p, ok := o.Resolve(ctx, []common.Address{addr})[addr]
	return p, ok
}
