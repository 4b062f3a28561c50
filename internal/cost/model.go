// Package cost estimates swap execution cost in USD.
package cost

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Mode selects how gas units are estimated.
type Mode string

const (
	// ModeTable uses the fee tier lookup table.
	ModeTable Mode = "table"
	// ModeEstimate asks the node to estimate the fully formed swap call.
	ModeEstimate Mode = "estimate"
)

// DefaultGasUnits is used in estimate mode when the node cannot estimate the swap.
const DefaultGasUnits uint64 = 155_000

// ErrMissingNativePrice is returned when the native token has no positive USD price.
var ErrMissingNativePrice = errors.New("native token price missing")

// ParseMode validates a configured gas mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeTable:
		return ModeTable, nil
	case ModeEstimate:
		return ModeEstimate, nil
	default:
		return "", fmt.Errorf("unknown gas mode %q", s)
	}
}

// GasEstimator estimates the gas of a call.
type GasEstimator interface {
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
}

// Config holds cost model settings.
type Config struct {
	Mode  Mode
	Table GasTable
	// BufferPercent is added on top of live estimates.
	BufferPercent   uint64
	DefaultGasUnits uint64
}

// Request describes one swap to be costed.
type Request struct {
	Fee          *decimal.Decimal
	LiquidityUSD decimal.Decimal
	NativeUSD    decimal.Decimal
	// Call is the swap transaction, required only in estimate mode.
	Call *ethereum.CallMsg
}

// Estimate is the costed gas of one swap.
type Estimate struct {
	Units       uint64
	GasPriceWei *big.Int
	USD         decimal.Decimal
}

// Model turns gas units and the cached gas price into USD.
type Model struct {
	cfg       Config
	gasPrice  *GasPriceCache
	estimator GasEstimator
	logger    *zap.Logger
}

// NewModel builds a cost model.
func NewModel(cfg Config, gasPrice *GasPriceCache, estimator GasEstimator, logger *zap.Logger) *Model {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeTable
	}
	if len(cfg.Table.Tiers) == 0 && cfg.Table.DefaultUnits == 0 {
		cfg.Table = DefaultGasTable()
	}
	if cfg.BufferPercent == 0 {
		cfg.BufferPercent = 5
	}
	if cfg.DefaultGasUnits == 0 {
		cfg.DefaultGasUnits = DefaultGasUnits
	}
	return &Model{cfg: cfg, gasPrice: gasPrice, estimator: estimator, logger: logger}
}

// Mode returns the configured estimation mode.
func (m *Model) Mode() Mode {
	return m.cfg.Mode
}

// GasUnits estimates the gas units of a swap.
func (m *Model) GasUnits(ctx context.Context, req Request) uint64 {
	if m.cfg.Mode != ModeEstimate {
		return m.cfg.Table.Units(req.Fee, req.LiquidityUSD)
	}
	if req.Call == nil || m.estimator == nil {
		return m.cfg.DefaultGasUnits
	}

	gas, err := m.estimator.EstimateGas(ctx, *req.Call)
	if err != nil {
		m.logger.Debug("gas estimate failed, using default", zap.Error(err), zap.Uint64("default_units", m.cfg.DefaultGasUnits))
		return m.cfg.DefaultGasUnits
	}
	return gas + gas*m.cfg.BufferPercent/100
}

// GasCostUSD prices a swap's gas in USD. Missing prices are errors, never zero.
func (m *Model) GasCostUSD(ctx context.Context, req Request) (Estimate, error) {
	if !req.NativeUSD.IsPositive() {
		return Estimate{}, ErrMissingNativePrice
	}
	if m.gasPrice == nil {
		return Estimate{}, ErrGasPriceUnavailable
	}

	price, err := m.gasPrice.Get(ctx)
	if err != nil {
		return Estimate{}, err
	}

	units := m.GasUnits(ctx, req)
	usd := decimal.NewFromBigInt(price, -18).
		Mul(decimal.NewFromInt(int64(units))).
		Mul(req.NativeUSD)

	return Estimate{Units: units, GasPriceWei: price, USD: usd}, nil
}
