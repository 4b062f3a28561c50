package aggregate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"routeScope/internal/cache"
	"routeScope/internal/dex"
	"routeScope/internal/metrics"
	"routeScope/internal/model"
	"routeScope/internal/rank"
	"routeScope/internal/storage"
)

const (
	// DefaultRequestTimeout bounds one AggregateAndRank call.
	DefaultRequestTimeout = 10 * time.Second
	snapshotTimeout       = 5 * time.Second
)

// Config controls request orchestration.
type Config struct {
	NativeSymbol   string
	MaxConcurrency int
	RequestTimeout time.Duration
	Weights        rank.Weights
	TTL            TTLs
}

// VenueAdapter pairs a venue with the adapter of its kind.
type VenueAdapter struct {
	Venue   model.Venue
	Adapter dex.Adapter
}

// Deps are the collaborators of an Aggregator. Sink and Metrics are optional.
type Deps struct {
	Tokens  model.TokenTable
	Venues  []VenueAdapter
	Prices  PriceResolver
	Cache   cache.Cache
	Sink    storage.RouteSink
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Result is the ranked outcome of one request.
type Result struct {
	RequestID string              `json:"request_id"`
	From      string              `json:"token_from"`
	To        string              `json:"token_to"`
	AmountIn  decimal.Decimal     `json:"amount_in"`
	Routes    []model.RankedRoute `json:"routes"`
	Failures  []Failure           `json:"failures,omitempty"`
	// Partial is set when the request deadline expired before every pool finished.
	Partial bool `json:"partial"`
}

// Aggregator is the request orchestrator.
type Aggregator struct {
	cfg     Config
	tokens  model.TokenTable
	venues  []*VenueOrchestrator
	sink    storage.RouteSink
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// New validates the configuration and builds one orchestrator per venue.
func New(cfg Config, deps Deps) (*Aggregator, error) {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Weights == (rank.Weights{}) {
		cfg.Weights = rank.DefaultWeights()
	}
	if err := cfg.Weights.Validate(); err != nil {
		return nil, err
	}
	if cfg.TTL == (TTLs{}) {
		cfg.TTL = DefaultTTLs()
	}
	if cfg.NativeSymbol == "" {
		cfg.NativeSymbol = "ETH"
	}
	if deps.Prices == nil {
		return nil, fmt.Errorf("price resolver is nil")
	}
	native, ok := deps.Tokens.Lookup(cfg.NativeSymbol)
	if !ok {
		return nil, fmt.Errorf("%w: native token %s", ErrUnknownToken, cfg.NativeSymbol)
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &Aggregator{
		cfg:     cfg,
		tokens:  deps.Tokens,
		sink:    deps.Sink,
		metrics: deps.Metrics,
		logger:  logger,
		now:     time.Now,
	}
	for _, va := range deps.Venues {
		if va.Adapter == nil {
			return nil, fmt.Errorf("venue %s has no adapter", va.Venue.Name)
		}
		pipeline := NewPoolPipeline(va.Adapter, deps.Prices, deps.Cache, deps.Tokens, native, cfg.TTL, logger.With(zap.String("venue", va.Venue.Name)))
		a.venues = append(a.venues, NewVenueOrchestrator(va.Venue, pipeline, cfg.MaxConcurrency, deps.Metrics, logger))
	}
	return a, nil
}

// Tokens returns the token table.
func (a *Aggregator) Tokens() model.TokenTable {
	return a.tokens
}

// AggregateAndRank quotes amount of from into to on every venue and ranks the routes best first.
func (a *Aggregator) AggregateAndRank(ctx context.Context, from, to string, amount decimal.Decimal) (Result, error) {
	start := a.now()
	result, err := a.aggregateAndRank(ctx, from, to, amount)

	outcome := "ok"
	switch {
	case err == nil && result.Partial:
		outcome = "partial"
	case errors.Is(err, ErrNoRoutes):
		outcome = "no_routes"
	case err != nil:
		outcome = "invalid"
	}
	a.metrics.ObserveRequest(outcome, a.now().Sub(start))
	return result, err
}

func (a *Aggregator) aggregateAndRank(ctx context.Context, from, to string, amount decimal.Decimal) (Result, error) {
	req, err := a.validate(from, to, amount)
	if err != nil {
		return Result{}, err
	}
	result := Result{
		RequestID: uuid.NewString(),
		From:      req.From.Symbol,
		To:        req.To.Symbol,
		AmountIn:  req.Amount,
	}
	requestedAt := a.now().UTC()

	ctx, cancel := context.WithTimeout(ctx, a.cfg.RequestTimeout)
	defer cancel()

	col := &collector{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		var g errgroup.Group
		g.SetLimit(a.cfg.MaxConcurrency)
		for _, v := range a.venues {
			v := v
			g.Go(func() error {
				v.run(ctx, req, col)
				return nil
			})
		}
		_ = g.Wait()
	}()

	timedOut := wait(ctx, done)
	routes, failures := col.snapshot()
	result.Failures = failures
	result.Partial = timedOut || cutShort(failures)

	ranked, err := rank.Rank(routes, a.cfg.Weights)
	if err != nil {
		return result, fmt.Errorf("rank routes: %w", err)
	}
	result.Routes = ranked

	a.logger.Info("routes ranked",
		zap.String("request_id", result.RequestID),
		zap.String("token_from", result.From),
		zap.String("token_to", result.To),
		zap.String("amount", req.Amount.String()),
		zap.Int("routes", len(ranked)),
		zap.Int("failures", len(failures)),
		zap.Bool("partial", result.Partial),
	)

	if len(ranked) == 0 {
		return result, fmt.Errorf("%w: %s -> %s", ErrNoRoutes, result.From, result.To)
	}
	a.persist(ctx, result, requestedAt)
	return result, nil
}

func (a *Aggregator) validate(from, to string, amount decimal.Decimal) (Request, error) {
	fromTok, ok := a.tokens.Lookup(from)
	if !ok {
		return Request{}, fmt.Errorf("%w: %q", ErrUnknownToken, from)
	}
	toTok, ok := a.tokens.Lookup(to)
	if !ok {
		return Request{}, fmt.Errorf("%w: %q", ErrUnknownToken, to)
	}
	if !amount.IsPositive() {
		return Request{}, fmt.Errorf("%w: %s", ErrInvalidAmount, amount.String())
	}
	if fromTok.Address == toTok.Address {
		return Request{}, fmt.Errorf("%w: %s", ErrSameToken, fromTok.Symbol)
	}
	return Request{From: fromTok, To: toTok, Amount: amount}, nil
}

// persist records the ranked snapshot. Failures are logged, never returned.
func (a *Aggregator) persist(ctx context.Context, result Result, at time.Time) {
	if a.sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), snapshotTimeout)
	defer cancel()

	snapshots := model.NewRouteSnapshots(result.RequestID, at, result.From, result.To, result.AmountIn.String(), result.Routes, result.Partial)
	if err := a.sink.PutSnapshots(ctx, snapshots); err != nil {
		a.logger.Warn("persist route snapshots", zap.String("request_id", result.RequestID), zap.Error(err))
	}
}

// wait blocks until every venue finished or ctx ends. It reports whether venues were still running.
func wait(ctx context.Context, done <-chan struct{}) bool {
	select {
	case <-done:
		return false
	case <-ctx.Done():
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// cutShort reports whether any pool was abandoned because the request context ended.
func cutShort(failures []Failure) bool {
	for _, f := range failures {
		if f.Reason == reasonTimeout || f.Reason == reasonCanceled {
			return true
		}
	}
	return false
}
