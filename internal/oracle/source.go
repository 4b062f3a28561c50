package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"routeScope/internal/breaker"
)

// Source is an external USD price provider. Absent map keys mean "no price".
type Source interface {
	Name() string
	Price(ctx context.Context, addr common.Address) (decimal.Decimal, bool, error)
	PricesBatch(ctx context.Context, addrs []common.Address) (map[common.Address]decimal.Decimal, error)
}

// Recorder observes source calls.
type Recorder interface {
	SourceCall(source, outcome string)
	BreakerState(source string, open bool)
}

func singlePrice(ctx context.Context, s Source, addr common.Address) (decimal.Decimal, bool, error) {
	prices, err := s.PricesBatch(ctx, []common.Address{addr})
	p, ok := prices[addr]
	if ok && p.IsPositive() {
		return p, true, nil
	}
	return decimal.Zero, false, err
}

// GuardConfig configures the protection wrapped around a source.
type GuardConfig struct {
	Breaker breaker.Config
	Retry   RetryPolicy
	// RPS paces requests. Zero disables the limiter.
	RPS      float64
	Recorder Recorder
	Logger   *zap.Logger
	// Clock overrides the breaker's time source.
	Clock func() time.Time
}

// guardedSource adds a circuit breaker, retries and rate limiting to a source.
type guardedSource struct {
	inner   Source
	breaker *breaker.Breaker
	retry   RetryPolicy
	limiter *rate.Limiter
	rec     Recorder
	logger  *zap.Logger
}

// Guard wraps src. Every call records exactly one outcome on the breaker.
func Guard(src Source, cfg GuardConfig) Source {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("source", src.Name()))

	g := &guardedSource{
		inner:  src,
		retry:  cfg.Retry,
		rec:    cfg.Recorder,
		logger: logger,
	}
	bcfg := cfg.Breaker
	bcfg.OnStateChange = func(_, to breaker.State) {
		logger.Warn("price source breaker changed state", zap.String("state", to.String()))
		if g.rec != nil {
			g.rec.BreakerState(src.Name(), to == breaker.Open)
		}
	}
	g.breaker = breaker.New(bcfg)
	if cfg.Clock != nil {
		g.breaker.WithClock(cfg.Clock)
	}
	if g.retry == (RetryPolicy{}) {
		g.retry = DefaultRetryPolicy()
	}
	if cfg.RPS > 0 {
		burst := int(cfg.RPS)
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}
	return g
}

func (g *guardedSource) Name() string { return g.inner.Name() }

func (g *guardedSource) Price(ctx context.Context, addr common.Address) (decimal.Decimal, bool, error) {
	return singlePrice(ctx, g, addr)
}

func (g *guardedSource) PricesBatch(ctx context.Context, addrs []common.Address) (map[common.Address]decimal.Decimal, error) {
	if len(addrs) == 0 {
		return map[common.Address]decimal.Decimal{}, nil
	}
	if !g.breaker.Allow() {
		g.record("short_circuit")
		return map[common.Address]decimal.Decimal{}, fmt.Errorf("%s: %w", g.Name(), breaker.ErrOpen)
	}

	var prices map[common.Address]decimal.Decimal
	err := withRetry(ctx, g.retry, func(ctx context.Context) error {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		var err error
		prices, err = g.inner.PricesBatch(ctx, addrs)
		if err != nil {
			g.logger.Debug("price request failed", zap.Int("tokens", len(addrs)), zap.Error(err))
		}
		return err
	})
	if prices == nil {
		prices = map[common.Address]decimal.Decimal{}
	}

	if err != nil && ctx.Err() != nil {
		// The caller gave up. That says nothing about the source.
		g.record("canceled")
		return prices, err
	}
	if err != nil {
		g.breaker.Failure()
		g.record("error")
		return prices, err
	}
	g.breaker.Success()
	g.record("ok")
	return prices, nil
}

func (g *guardedSource) record(outcome string) {
	if g.rec != nil {
		g.rec.SourceCall(g.Name(), outcome)
	}
}
