package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"routeScope/internal/aggregate"
	"routeScope/internal/model"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// ExchangeRequest is the body of POST /exchange.
type ExchangeRequest struct {
	TokenFrom string          `json:"token_from" binding:"required"`
	TokenTo   string          `json:"token_to" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
}

// ExchangeOption is one ranked route as the frontend consumes it.
type ExchangeOption struct {
	Rank             int     `json:"rank"`
	Score            float64 `json:"score"`
	Dex              string  `json:"dex"`
	Pair             string  `json:"pair"`
	Pool             string  `json:"pool"`
	AmountFrom       float64 `json:"amount_from"`
	AmountTo         float64 `json:"amount_to"`
	ValueFromUSD     float64 `json:"value_from_usd"`
	ValueToUSD       float64 `json:"value_to_usd"`
	Slippage         float64 `json:"slippage"`
	Liquidity        float64 `json:"liquidity"`
	DexFee           float64 `json:"dex_fee"`
	GasCost          float64 `json:"gas_cost"`
	PercentageChange float64 `json:"percentage_change"`
}

// ExchangeResponse is the body answering POST /exchange.
type ExchangeResponse struct {
	RequestID string              `json:"request_id"`
	Options   []ExchangeOption    `json:"options"`
	Failures  []aggregate.Failure `json:"failures,omitempty"`
	Partial   bool                `json:"partial"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) exchange(c *gin.Context) {
	var req ExchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Detail: "invalid request: " + err.Error()})
		return
	}

	res, err := s.quoter.AggregateAndRank(c.Request.Context(), req.TokenFrom, req.TokenTo, req.Amount)
	switch {
	case err == nil:
	case errors.Is(err, aggregate.ErrNoRoutes):
		c.JSON(http.StatusNotFound, errorResponse{Detail: "No exchange options available."})
		return
	case errors.Is(err, aggregate.ErrUnknownToken),
		errors.Is(err, aggregate.ErrInvalidAmount),
		errors.Is(err, aggregate.ErrSameToken):
		c.JSON(http.StatusBadRequest, errorResponse{Detail: err.Error()})
		return
	default:
		s.logger.Error("exchange failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse{Detail: "internal error"})
		return
	}

	out := ExchangeResponse{
		RequestID: res.RequestID,
		Options:   make([]ExchangeOption, 0, len(res.Routes)),
		Failures:  res.Failures,
		Partial:   res.Partial,
	}
	for _, r := range res.Routes {
		out.Options = append(out.Options, s.option(r))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) option(r model.RankedRoute) ExchangeOption {
	round := func(d decimal.Decimal) float64 {
		return d.Round(s.decimals).InexactFloat64()
	}
	return ExchangeOption{
		Rank:             r.Rank,
		Score:            r.Score,
		Dex:              r.Venue,
		Pair:             r.Pair,
		Pool:             r.PoolAddress,
		AmountFrom:       round(r.AmountIn),
		AmountTo:         round(r.AmountOut),
		ValueFromUSD:     r.ValueInUSD.Round(2).InexactFloat64(),
		ValueToUSD:       r.ValueOutUSD.Round(2).InexactFloat64(),
		Slippage:         round(r.Slippage),
		Liquidity:        r.LiquidityUSD.Round(2).InexactFloat64(),
		DexFee:           r.FeePercent.InexactFloat64(),
		GasCost:          round(r.GasCostUSD),
		PercentageChange: r.PercentageChange.Round(4).InexactFloat64(),
	}
}

// config mirrors what a wallet frontend needs to build the swap itself.
func (s *Server) config(c *gin.Context) {
	tokens := make(map[string]string, len(s.opts.Tokens))
	decimals := make(map[string]uint8, len(s.opts.Tokens))
	for sym, tok := range s.opts.Tokens {
		tokens[sym] = tok.Address.Hex()
		decimals[sym] = tok.Decimals
	}
	routers := make(map[string]string, len(s.opts.Venues))
	for _, v := range s.opts.Venues {
		routers[v.Name] = v.Router.Hex()
	}
	c.JSON(http.StatusOK, gin.H{
		"tokens":   tokens,
		"decimals": decimals,
		"routers":  routers,
	})
}

func (s *Server) history(c *gin.Context) {
	from := model.NormalizeSymbol(c.Query("from"))
	to := model.NormalizeSymbol(c.Query("to"))
	if from == "" || to == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Detail: "from and to are required"})
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, errorResponse{Detail: "invalid limit"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}
	since := time.Now().Add(-24 * time.Hour)
	if raw := c.Query("since"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			c.JSON(http.StatusBadRequest, errorResponse{Detail: "invalid since"})
			return
		}
		since = time.Now().Add(-d)
	}

	snaps, err := s.opts.History.RecentSnapshots(c.Request.Context(), from, to, since, limit)
	if err != nil {
		s.logger.Error("read history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse{Detail: "internal error"})
		return
	}
	if snaps == nil {
		snaps = []model.RouteSnapshot{}
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": snaps})
}
