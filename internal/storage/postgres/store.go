package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"routeScope/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS route_snapshots (
	id            BIGSERIAL PRIMARY KEY,
	request_id    TEXT        NOT NULL,
	requested_at  TIMESTAMPTZ NOT NULL,
	token_from    TEXT        NOT NULL,
	token_to      TEXT        NOT NULL,
	amount_in     NUMERIC     NOT NULL,
	rank          INT         NOT NULL,
	score         DOUBLE PRECISION NOT NULL,
	venue         TEXT        NOT NULL,
	pair          TEXT        NOT NULL,
	pool_address  TEXT        NOT NULL,
	amount_out    NUMERIC     NOT NULL,
	mid_price     NUMERIC     NOT NULL,
	slippage      NUMERIC     NOT NULL,
	liquidity_usd NUMERIC     NOT NULL,
	fee_percent   NUMERIC     NOT NULL,
	gas_cost_usd  NUMERIC     NOT NULL,
	partial       BOOLEAN     NOT NULL DEFAULT false,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (request_id, rank)
);
CREATE INDEX IF NOT EXISTS route_snapshots_pair_idx ON route_snapshots (token_from, token_to, requested_at DESC);
`

// Store provides Postgres persistence for route snapshots.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the snapshot table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// PutSnapshots inserts a batch of snapshots. Re-inserting a request's rank is a no-op.
func (s *Store) PutSnapshots(ctx context.Context, snapshots []model.RouteSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, snap := range snapshots {
		batch.Queue(`
			INSERT INTO route_snapshots (
				request_id, requested_at, token_from, token_to, amount_in, rank, score,
				venue, pair, pool_address, amount_out, mid_price, slippage,
				liquidity_usd, fee_percent, gas_cost_usd, partial
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
			ON CONFLICT (request_id, rank) DO NOTHING
		`,
			snap.RequestID,
			snap.RequestedAt,
			snap.TokenFrom,
			snap.TokenTo,
			snap.AmountIn,
			snap.Rank,
			snap.Score,
			snap.Venue,
			snap.Pair,
			snap.PoolAddress,
			snap.AmountOut,
			snap.MidPrice,
			snap.Slippage,
			snap.LiquidityUSD,
			snap.FeePercent,
			snap.GasCostUSD,
			snap.Partial,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range snapshots {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert snapshot: %w", err)
		}
	}
	return nil
}

// RecentSnapshots returns the newest snapshots of a pair, best rank first within a request.
func (s *Store) RecentSnapshots(ctx context.Context, from, to string, since time.Time, limit int) ([]model.RouteSnapshot, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT request_id, requested_at, token_from, token_to, amount_in::text, rank, score,
			venue, pair, pool_address, amount_out::text, mid_price::text, slippage::text,
			liquidity_usd::text, fee_percent::text, gas_cost_usd::text, partial
		FROM route_snapshots
		WHERE token_from = $1 AND token_to = $2 AND requested_at >= $3
		ORDER BY requested_at DESC, rank ASC
		LIMIT $4
	`, from, to, since, limit)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []model.RouteSnapshot
	for rows.Next() {
		var snap model.RouteSnapshot
		if err := rows.Scan(
			&snap.RequestID, &snap.RequestedAt, &snap.TokenFrom, &snap.TokenTo, &snap.AmountIn, &snap.Rank, &snap.Score,
			&snap.Venue, &snap.Pair, &snap.PoolAddress, &snap.AmountOut, &snap.MidPrice, &snap.Slippage,
			&snap.LiquidityUSD, &snap.FeePercent, &snap.GasCostUSD, &snap.Partial,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}
