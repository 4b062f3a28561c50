package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routeScope/internal/aggregate"
	"routeScope/internal/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type quoterFunc func(ctx context.Context, from, to string, amount decimal.Decimal) (aggregate.Result, error)

func (f quoterFunc) AggregateAndRank(ctx context.Context, from, to string, amount decimal.Decimal) (aggregate.Result, error) {
	return f(ctx, from, to, amount)
}

type historyFunc func(from, to string, limit int) ([]model.RouteSnapshot, error)

func (f historyFunc) RecentSnapshots(_ context.Context, from, to string, _ time.Time, limit int) ([]model.RouteSnapshot, error) {
	return f(from, to, limit)
}

func rankedRoute(venue string, rank int, out string) model.RankedRoute {
	return model.RankedRoute{
		CandidateRoute: model.CandidateRoute{
			Venue:            venue,
			Pair:             "USDC/ETH",
			PoolAddress:      "0xC6962004f452bE9203591991D15f6b388e09E8D0",
			AmountIn:         decimal.NewFromInt(1000),
			AmountOut:        decimal.RequireFromString(out),
			LiquidityUSD:     decimal.RequireFromString("1234567.891"),
			FeePercent:       decimal.RequireFromString("0.0005"),
			GasCostUSD:       decimal.RequireFromString("0.0123456789"),
			ValueInUSD:       decimal.NewFromInt(1000),
			ValueOutUSD:      decimal.RequireFromString("998"),
			PercentageChange: decimal.RequireFromString("-0.2"),
		},
		Score: 0.9,
		Rank:  rank,
	}
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/exchange", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestExchangeReturnsRankedOptions(t *testing.T) {
	var gotFrom, gotTo string
	var gotAmount decimal.Decimal
	quoter := quoterFunc(func(_ context.Context, from, to string, amount decimal.Decimal) (aggregate.Result, error) {
		gotFrom, gotTo, gotAmount = from, to, amount
		return aggregate.Result{
			RequestID: "req-1",
			Routes:    []model.RankedRoute{rankedRoute("Uniswap", 1, "0.499"), rankedRoute("SushiSwap", 2, "0.495")},
			Failures:  []aggregate.Failure{{Venue: "Camelot", Reason: "quote_unavailable"}},
		}, nil
	})
	srv := NewServer(quoter, Options{})

	rec := post(t, srv.Handler(), `{"token_from":"usdc","token_to":"eth","amount":1000}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "usdc", gotFrom)
	assert.Equal(t, "eth", gotTo)
	assert.True(t, gotAmount.Equal(decimal.NewFromInt(1000)))

	var resp ExchangeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Options, 2)
	assert.Equal(t, "req-1", resp.RequestID)
	assert.Equal(t, "Uniswap", resp.Options[0].Dex)
	assert.Equal(t, 0.499, resp.Options[0].AmountTo)
	assert.Equal(t, 1000.0, resp.Options[0].AmountFrom)
	assert.Equal(t, 1234567.89, resp.Options[0].Liquidity)
	assert.Equal(t, 0.012346, resp.Options[0].GasCost)
	assert.Equal(t, 0.0005, resp.Options[0].DexFee)
	assert.Equal(t, -0.2, resp.Options[0].PercentageChange)
	require.Len(t, resp.Failures, 1)
}

func TestExchangeStatusCodes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"no routes", fmt.Errorf("%w: USDC -> ETH", aggregate.ErrNoRoutes), http.StatusNotFound},
		{"unknown token", aggregate.ErrUnknownToken, http.StatusBadRequest},
		{"bad amount", aggregate.ErrInvalidAmount, http.StatusBadRequest},
		{"same token", aggregate.ErrSameToken, http.StatusBadRequest},
		{"internal", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			quoter := quoterFunc(func(context.Context, string, string, decimal.Decimal) (aggregate.Result, error) {
				return aggregate.Result{}, tc.err
			})
			rec := post(t, NewServer(quoter, Options{}).Handler(), `{"token_from":"USDC","token_to":"ETH","amount":"1"}`)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestExchangeRejectsMalformedBody(t *testing.T) {
	quoter := quoterFunc(func(context.Context, string, string, decimal.Decimal) (aggregate.Result, error) {
		t.Fatal("quoter should not be called")
		return aggregate.Result{}, nil
	})
	h := NewServer(quoter, Options{}).Handler()

	assert.Equal(t, http.StatusBadRequest, post(t, h, `{"token_to":"ETH","amount":1}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(t, h, `{"token_from":"USDC","token_to":"ETH","amount":"abc"}`).Code)
}

func TestConfigListsTokensAndRouters(t *testing.T) {
	weth := model.Token{Symbol: "ETH", Address: common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1"), Decimals: 18}
	router := common.HexToAddress("0xE592427A0AEce92De3Edee1F18E0157C05861564")
	srv := NewServer(nil, Options{
		Tokens: model.NewTokenTable(weth),
		Venues: []model.Venue{{Name: "Uniswap", Router: router}},
	})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/config", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Tokens   map[string]string `json:"tokens"`
		Decimals map[string]uint8  `json:"decimals"`
		Routers  map[string]string `json:"routers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, weth.Address.Hex(), body.Tokens["ETH"])
	assert.Equal(t, uint8(18), body.Decimals["ETH"])
	assert.Equal(t, router.Hex(), body.Routers["Uniswap"])
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	NewServer(nil, Options{}).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSAllowList(t *testing.T) {
	h := NewServer(nil, Options{AllowedOrigins: []string{"http://localhost:3000"}}).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/exchange", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHistory(t *testing.T) {
	var gotLimit int
	history := historyFunc(func(from, to string, limit int) ([]model.RouteSnapshot, error) {
		gotLimit = limit
		return []model.RouteSnapshot{{RequestID: "r", TokenFrom: from, TokenTo: to, Rank: 1}}, nil
	})
	h := NewServer(nil, Options{History: history}).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history?from=usdc&to=eth&limit=1000", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, maxHistoryLimit, gotLimit)

	var body struct {
		Snapshots []model.RouteSnapshot `json:"snapshots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Snapshots, 1)
	assert.Equal(t, "USDC", body.Snapshots[0].TokenFrom)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history?from=usdc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
