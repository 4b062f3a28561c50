// Package rank orders candidate routes with TOPSIS.
package rank

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"routeScope/internal/model"
)

const (
	epsilon      = 1e-10
	weightSumTol = 1e-9
)

const (
	colOutput = iota
	colLiquidity
	colFee
	colGas
	numCriteria
)

// ErrInvalidWeights is returned for negative weights or weights not summing to 1.
var ErrInvalidWeights = errors.New("invalid ranking weights")

// Weights are the criterion weights. Output and Liquidity are benefits, Fee and Gas are costs.
type Weights struct {
	Output    float64 `mapstructure:"output" json:"output"`
	Liquidity float64 `mapstructure:"liquidity" json:"liquidity"`
	Fee       float64 `mapstructure:"fee" json:"fee"`
	Gas       float64 `mapstructure:"gas" json:"gas"`
}

// DefaultWeights favours output, then liquidity.
func DefaultWeights() Weights {
	return Weights{Output: 0.7, Liquidity: 0.2, Fee: 0.08, Gas: 0.02}
}

// Validate checks the weights are non-negative and sum to 1.
func (w Weights) Validate() error {
	vals := w.slice()
	sum := 0.0
	for _, v := range vals {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %+v", ErrInvalidWeights, w)
		}
		sum += v
	}
	if math.Abs(sum-1) > weightSumTol {
		return fmt.Errorf("%w: sum %.12f", ErrInvalidWeights, sum)
	}
	return nil
}

func (w Weights) slice() [numCriteria]float64 {
	return [numCriteria]float64{colOutput: w.Output, colLiquidity: w.Liquidity, colFee: w.Fee, colGas: w.Gas}
}

var benefit = [numCriteria]bool{colOutput: true, colLiquidity: true}

// Rank scores every route and returns them best first. Equal scores keep their input order.
func Rank(routes []model.CandidateRoute, w Weights) ([]model.RankedRoute, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if len(routes) == 0 {
		return []model.RankedRoute{}, nil
	}

	matrix := make([][numCriteria]float64, len(routes))
	for i, r := range routes {
		matrix[i] = row(r)
	}

	var norms [numCriteria]float64
	for _, m := range matrix {
		for j, v := range m {
			norms[j] += v * v
		}
	}
	for j := range norms {
		norms[j] = math.Sqrt(norms[j]) + epsilon
	}

	weights := w.slice()
	best, worst := [numCriteria]float64{}, [numCriteria]float64{}
	for i := range matrix {
		for j := range matrix[i] {
			v := matrix[i][j] / norms[j] * weights[j]
			matrix[i][j] = v
			if i == 0 {
				best[j], worst[j] = v, v
				continue
			}
			if (benefit[j] && v > best[j]) || (!benefit[j] && v < best[j]) {
				best[j] = v
			}
			if (benefit[j] && v < worst[j]) || (!benefit[j] && v > worst[j]) {
				worst[j] = v
			}
		}
	}

	ranked := make([]model.RankedRoute, len(routes))
	for i, m := range matrix {
		dBest, dWorst := distance(m, best), distance(m, worst)
		score := 1.0
		if total := dBest + dWorst; total > 0 {
			score = dWorst / total
		}
		ranked[i] = model.RankedRoute{CandidateRoute: routes[i], Score: score}
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].Score > ranked[b].Score
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked, nil
}

func row(r model.CandidateRoute) [numCriteria]float64 {
	out, _ := r.AmountOut.Float64()
	liq, _ := r.LiquidityUSD.Float64()
	fee, _ := r.FeePercent.Float64()
	gas, _ := r.GasCostUSD.Float64()
	if liq < 0 {
		liq = 0
	}
	return [numCriteria]float64{
		colOutput:    out,
		colLiquidity: math.Log1p(liq),
		colFee:       fee,
		colGas:       gas,
	}
}

func distance(a, b [numCriteria]float64) float64 {
	sum := 0.0
	for j := range a {
		d := a[j] - b[j]
		sum += d * d
	}
	return math.Sqrt(sum)
}
