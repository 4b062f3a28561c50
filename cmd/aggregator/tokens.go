package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"routeScope/internal/chain"
	"routeScope/internal/dex"
)

// runTokens reads each configured token's ERC-20 metadata and flags decimals mismatches.
func runTokens(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := chain.NewClient(ctx, cfg.RPCURL, cfg.RPCTimeout)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer client.Close()

	chainID, err := client.GetChainID(ctx)
	if err != nil {
		return err
	}
	head, err := client.LatestBlockNumber(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "chain %s at block %d\n", chainID, head)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tADDRESS\tCONFIGURED\tON-CHAIN\tNAME\tSTATUS")

	mismatches := 0
	for _, sym := range cfg.Tokens.Symbols() {
		tok := cfg.Tokens[sym]
		meta, err := dex.FetchTokenMeta(ctx, client, tok.Address, logger)
		if err != nil {
			logger.Warn("token metadata", zap.String("symbol", sym), zap.Error(err))
			fmt.Fprintf(w, "%s\t%s\t%d\t-\t-\terror\n", sym, tok.Address.Hex(), tok.Decimals)
			mismatches++
			continue
		}
		status := "ok"
		if meta.Decimals != tok.Decimals {
			status = "MISMATCH"
			mismatches++
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n", sym, tok.Address.Hex(), tok.Decimals, meta.Decimals, meta.Name, status)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if mismatches > 0 {
		return fmt.Errorf("%d token(s) failed verification", mismatches)
	}
	return nil
}
