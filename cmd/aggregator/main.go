package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"routeScope/internal/api"
	"routeScope/internal/config"
	"routeScope/internal/metrics"
)

func main() {
	root := &cobra.Command{
		Use:          "routescope",
		Short:        "DEX quote aggregator and route ranker",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("rpc", "", "Arbitrum RPC URL")
	root.PersistentFlags().Duration("rpc-timeout", 5*time.Second, "timeout of a single RPC call")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	quoteCmd := &cobra.Command{
		Use:   "quote FROM TO AMOUNT",
		Short: "Rank the routes for one swap and print them as JSON",
		Args:  cobra.ExactArgs(3),
		RunE:  runQuote,
	}
	addEngineFlags(quoteCmd)
	root.AddCommand(quoteCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE:  runServe,
	}
	addEngineFlags(serveCmd)
	serveCmd.Flags().String("listen", ":8000", "HTTP listen address")
	serveCmd.Flags().String("metrics-listen", "", "Prometheus listen address, empty disables")
	serveCmd.Flags().StringSlice("allowed-origins", nil, "CORS allowed origins (comma-separated)")
	root.AddCommand(serveCmd)

	tokensCmd := &cobra.Command{
		Use:   "tokens",
		Short: "Check configured token decimals against on-chain metadata",
		RunE:  runTokens,
	}
	root.AddCommand(tokensCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addEngineFlags(cmd *cobra.Command) {
	cmd.Flags().String("redis-addr", "", "Redis address, empty uses the in-process cache")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN for route snapshots")
	cmd.Flags().String("snapshot-out", "", "JSONL path for route snapshots")
	cmd.Flags().String("coingecko-api-key", "", "CoinGecko API key")
	cmd.Flags().String("gas-mode", "table", "gas estimation mode (table, estimate)")
	cmd.Flags().Int("max-concurrency", 8, "concurrent pools per venue and venues per request")
	cmd.Flags().Duration("request-timeout", 10*time.Second, "per-request deadline")
}

func loadConfig(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func runQuote(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	amount, err := decimal.NewFromString(args[2])
	if err != nil {
		return fmt.Errorf("parse amount %q: %w", args[2], err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.aggregator.AggregateAndRank(ctx, args[0], args[1], amount)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), res)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	metrics.Serve(ctx, cfg.MetricsListen, a.registry, logger)
	gin.SetMode(gin.ReleaseMode)

	opts := api.Options{
		Tokens:         cfg.Tokens,
		Venues:         cfg.Venues,
		AllowedOrigins: cfg.AllowedOrigins,
		AmountDecimals: cfg.AmountDecimals,
		Logger:         logger,
	}
	if a.store != nil {
		opts.History = a.store
	}
	srv := api.NewServer(a.aggregator, opts)

	logger.Info("serve start",
		zap.String("listen", cfg.Listen),
		zap.String("metrics_listen", cfg.MetricsListen),
		zap.Int("venues", len(cfg.Venues)),
		zap.Int("tokens", len(cfg.Tokens)),
		zap.String("gas_mode", string(cfg.GasMode)),
	)
	return srv.Run(ctx, cfg.Listen)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
