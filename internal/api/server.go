// Package api serves ranked quotes over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"routeScope/internal/aggregate"
	"routeScope/internal/model"
)

// DefaultAmountDecimals rounds amounts in responses.
const DefaultAmountDecimals = 6

// Quoter ranks routes for one request.
type Quoter interface {
	AggregateAndRank(ctx context.Context, from, to string, amount decimal.Decimal) (aggregate.Result, error)
}

// HistoryReader lists persisted snapshots. Optional.
type HistoryReader interface {
	RecentSnapshots(ctx context.Context, from, to string, since time.Time, limit int) ([]model.RouteSnapshot, error)
}

// Options configure the HTTP surface.
type Options struct {
	Tokens         model.TokenTable
	Venues         []model.Venue
	AllowedOrigins []string
	AmountDecimals int32
	History        HistoryReader
	Logger         *zap.Logger
}

// Server is the gin HTTP surface over a Quoter.
type Server struct {
	quoter   Quoter
	opts     Options
	engine   *gin.Engine
	logger   *zap.Logger
	decimals int32
}

// NewServer registers the routes.
func NewServer(quoter Quoter, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	decimals := opts.AmountDecimals
	if decimals <= 0 {
		decimals = DefaultAmountDecimals
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger))
	if c, ok := corsConfig(opts.AllowedOrigins); ok {
		engine.Use(cors.New(c))
	}

	s := &Server{
		quoter:   quoter,
		opts:     opts,
		engine:   engine,
		logger:   logger,
		decimals: decimals,
	}
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.POST("/exchange", s.exchange)
	engine.GET("/config", s.config)
	if opts.History != nil {
		engine.GET("/history", s.history)
	}
	return s
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

func corsConfig(origins []string) (cors.Config, bool) {
	if len(origins) == 0 {
		return cors.Config{}, false
	}
	c := cors.DefaultConfig()
	c.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	for _, o := range origins {
		if o == "*" {
			c.AllowAllOrigins = true
			return c, true
		}
	}
	c.AllowOrigins = origins
	return c, true
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}
