package rank

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"routeScope/internal/model"
)

func route(venue string, out, liq, fee, gas float64) model.CandidateRoute {
	return model.CandidateRoute{
		Venue:        venue,
		AmountOut:    decimal.NewFromFloat(out),
		LiquidityUSD: decimal.NewFromFloat(liq),
		FeePercent:   decimal.NewFromFloat(fee),
		GasCostUSD:   decimal.NewFromFloat(gas),
	}
}

func TestRankEmpty(t *testing.T) {
	ranked, err := Rank(nil, DefaultWeights())
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if len(ranked) != 0 {
		t.Fatalf("expected empty result, got %d", len(ranked))
	}
}

func TestRankSingleCandidateScoresOne(t *testing.T) {
	ranked, err := Rank([]model.CandidateRoute{route("Uniswap", 0.5, 1e6, 0.0005, 0.03)}, DefaultWeights())
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if len(ranked) != 1 || ranked[0].Score != 1.0 || ranked[0].Rank != 1 {
		t.Fatalf("unexpected single result: %+v", ranked)
	}
}

func TestRankPrefersBetterOutput(t *testing.T) {
	routes := []model.CandidateRoute{
		route("Sushi", 0.49, 1e6, 0.003, 0.03),
		route("Uniswap", 0.50, 1e6, 0.0005, 0.03),
		route("Camelot", 0.48, 1e5, 0.003, 0.04),
	}
	ranked, err := Rank(routes, DefaultWeights())
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	want := []string{"Uniswap", "Sushi", "Camelot"}
	for i, r := range ranked {
		if r.Venue != want[i] {
			t.Fatalf("position %d: got %s want %s", i, r.Venue, want[i])
		}
		if r.Rank != i+1 {
			t.Fatalf("rank mismatch at %d: %d", i, r.Rank)
		}
		if r.Score < 0 || r.Score > 1 {
			t.Fatalf("score out of range: %f", r.Score)
		}
		if i > 0 && r.Score > ranked[i-1].Score {
			t.Fatalf("scores not descending")
		}
	}
}

func TestRankScaleInvariance(t *testing.T) {
	base := []model.CandidateRoute{
		route("A", 0.49, 2e6, 0.003, 0.03),
		route("B", 0.50, 1e6, 0.0005, 0.05),
		route("C", 0.47, 5e5, 0.0001, 0.02),
	}
	scaled := make([]model.CandidateRoute, len(base))
	for i, r := range base {
		r.AmountOut = r.AmountOut.Mul(decimal.NewFromInt(1000))
		r.FeePercent = r.FeePercent.Mul(decimal.NewFromInt(100))
		r.GasCostUSD = r.GasCostUSD.Mul(decimal.NewFromInt(7))
		scaled[i] = r
	}

	a, err := Rank(base, DefaultWeights())
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	b, err := Rank(scaled, DefaultWeights())
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	for i := range a {
		if a[i].Venue != b[i].Venue {
			t.Fatalf("order changed at %d: %s vs %s", i, a[i].Venue, b[i].Venue)
		}
		if math.Abs(a[i].Score-b[i].Score) > 1e-6 {
			t.Fatalf("score changed for %s: %f vs %f", a[i].Venue, a[i].Score, b[i].Score)
		}
	}
}

func TestRankIdenticalCandidatesKeepOrder(t *testing.T) {
	routes := []model.CandidateRoute{
		route("first", 1, 1e6, 0.003, 0.03),
		route("second", 1, 1e6, 0.003, 0.03),
	}
	ranked, err := Rank(routes, DefaultWeights())
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if ranked[0].Venue != "first" || ranked[0].Score != 1.0 || ranked[1].Score != 1.0 {
		t.Fatalf("unexpected ranking: %+v", ranked)
	}
}

func TestWeightsValidate(t *testing.T) {
	if err := DefaultWeights().Validate(); err != nil {
		t.Fatalf("default weights invalid: %v", err)
	}
	bad := []Weights{
		{Output: 0.5, Liquidity: 0.2, Fee: 0.08, Gas: 0.02},
		{Output: 1.1, Liquidity: -0.1},
	}
	for _, w := range bad {
		if err := w.Validate(); !errors.Is(err, ErrInvalidWeights) {
			t.Fatalf("expected ErrInvalidWeights for %+v, got %v", w, err)
		}
		if _, err := Rank([]model.CandidateRoute{route("x", 1, 1, 0, 0)}, w); err == nil {
			t.Fatalf("rank accepted invalid weights %+v", w)
		}
	}
}
