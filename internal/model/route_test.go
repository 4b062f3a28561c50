package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestCandidateRouteJSONStringAmounts(t *testing.T) {
	route := CandidateRoute{
		Venue:     "Uniswap",
		Pair:      "USDC/ETH",
		AmountIn:  decimal.RequireFromString("1000"),
		AmountOut: decimal.RequireFromString("0.312345678901234567"),
		Slippage:  decimal.RequireFromString("0.0012"),
	}

	data, err := json.Marshal(route)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if got, ok := decoded["amount_out"].(string); !ok || got != "0.312345678901234567" {
		t.Fatalf("amount_out should keep full precision as string, got %v", decoded["amount_out"])
	}
	if _, ok := decoded["slippage"].(string); !ok {
		t.Fatalf("slippage should be string")
	}
}

func TestNewRouteSnapshots(t *testing.T) {
	at := time.Unix(1700000000, 0).UTC()
	routes := []RankedRoute{
		{CandidateRoute: CandidateRoute{Venue: "Camelot", Pair: "USDC/ETH", AmountOut: decimal.NewFromInt(2)}, Score: 0.9, Rank: 1},
		{CandidateRoute: CandidateRoute{Venue: "Uniswap", Pair: "USDC/ETH", AmountOut: decimal.NewFromInt(1)}, Score: 0.1, Rank: 2},
	}

	snaps := NewRouteSnapshots("req-1", at, "USDC", "ETH", "1000", routes, true)
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}
	if snaps[0].Venue != "Camelot" || snaps[0].Rank != 1 || snaps[0].AmountOut != "2" {
		t.Fatalf("first snapshot mismatch: %+v", snaps[0])
	}
	if !snaps[1].Partial || snaps[1].RequestID != "req-1" || !snaps[1].RequestedAt.Equal(at) {
		t.Fatalf("second snapshot mismatch: %+v", snaps[1])
	}
}
