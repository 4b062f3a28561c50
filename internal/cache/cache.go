// Package cache provides the string key/value cache used for cache-aside reads.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Cache is a TTL key/value store. A miss is ("", false, nil), never an error.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Recorder observes cache lookups.
type Recorder interface {
	CacheLookup(hit bool)
}

type instrumented struct {
	Cache
	rec Recorder
}

// Instrument reports every Get outcome to rec. Transport errors count as misses.
func Instrument(c Cache, rec Recorder) Cache {
	if rec == nil {
		return c
	}
	return &instrumented{Cache: c, rec: rec}
}

func (i *instrumented) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := i.Cache.Get(ctx, key)
	i.rec.CacheLookup(ok && err == nil)
	return v, ok, err
}

// GetOrCompute returns the cached value of key, or computes and stores it.
// Cache transport errors are logged and never fail the read. Compute errors are returned and nothing is stored.
func GetOrCompute(ctx context.Context, c Cache, key string, ttl time.Duration, logger *zap.Logger, compute func(ctx context.Context) (string, error)) (string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if c != nil {
		v, ok, err := c.Get(ctx, key)
		if err != nil {
			logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		} else if ok {
			return v, nil
		}
	}

	v, err := compute(ctx)
	if err != nil {
		return "", err
	}

	if c != nil {
		if err := c.Set(ctx, key, v, ttl); err != nil {
			logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		}
	}
	return v, nil
}

// GetOrComputeDecimal is GetOrCompute for decimal values. A cached value that does not parse is recomputed.
func GetOrComputeDecimal(ctx context.Context, c Cache, key string, ttl time.Duration, logger *zap.Logger, compute func(ctx context.Context) (decimal.Decimal, error)) (decimal.Decimal, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if d, ok := GetDecimal(ctx, c, key, logger); ok {
		return d, nil
	}
	d, err := compute(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	SetDecimal(ctx, c, key, d, ttl, logger)
	return d, nil
}

// GetDecimal reads a decimal. Any failure is a miss.
func GetDecimal(ctx context.Context, c Cache, key string, logger *zap.Logger) (decimal.Decimal, bool) {
	if c == nil {
		return decimal.Zero, false
	}
	v, ok, err := c.Get(ctx, key)
	if err != nil {
		if logger != nil {
			logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
		return decimal.Zero, false
	}
	if !ok {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		if logger != nil {
			logger.Warn("cache value is not a decimal", zap.String("key", key), zap.String("value", v))
		}
		return decimal.Zero, false
	}
	return d, true
}

// SetDecimal writes a decimal, logging and ignoring failures.
func SetDecimal(ctx context.Context, c Cache, key string, d decimal.Decimal, ttl time.Duration, logger *zap.Logger) {
	if c == nil {
		return
	}
	if err := c.Set(ctx, key, d.String(), ttl); err != nil && logger != nil {
		logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Key joins key parts with underscores.
func Key(parts ...string) string {
	return strings.Join(parts, "_")
}

// AmountKey renders an amount rounded to 6 decimal places for use in keys.
func AmountKey(amount decimal.Decimal) string {
	return amount.Round(6).StringFixed(6)
}

func wrap(op, key string, err error) error {
	return fmt.Errorf("cache %s %s: %w", op, key, err)
}
