package aggregate

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"routeScope/internal/metrics"
	"routeScope/internal/model"
)

// DefaultMaxConcurrency bounds the fan-out at each level.
const DefaultMaxConcurrency = 8

// collector gathers results from concurrent pipelines. A snapshot can be taken while they still run.
type collector struct {
	mu       sync.Mutex
	routes   []model.CandidateRoute
	failures []Failure
}

func (c *collector) addRoute(r model.CandidateRoute) {
	c.mu.Lock()
	c.routes = append(c.routes, r)
	c.mu.Unlock()
}

func (c *collector) addFailure(f Failure) {
	c.mu.Lock()
	c.failures = append(c.failures, f)
	c.mu.Unlock()
}

func (c *collector) snapshot() ([]model.CandidateRoute, []Failure) {
	c.mu.Lock()
	defer c.mu.Unlock()
	routes := make([]model.CandidateRoute, len(c.routes))
	copy(routes, c.routes)
	failures := make([]Failure, len(c.failures))
	copy(failures, c.failures)
	return routes, failures
}

// VenueOrchestrator runs the pipeline for every pool of one venue trading the requested pair.
type VenueOrchestrator struct {
	venue    model.Venue
	pipeline *PoolPipeline
	limit    int
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewVenueOrchestrator builds an orchestrator running at most limit pools at once.
func NewVenueOrchestrator(venue model.Venue, pipeline *PoolPipeline, limit int, m *metrics.Metrics, logger *zap.Logger) *VenueOrchestrator {
	if limit <= 0 {
		limit = DefaultMaxConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VenueOrchestrator{
		venue:    venue,
		pipeline: pipeline,
		limit:    limit,
		metrics:  m,
		logger:   logger.With(zap.String("venue", venue.Name)),
	}
}

// Name returns the venue name.
func (v *VenueOrchestrator) Name() string {
	return v.venue.Name
}

// Run quotes every matching pool and waits for all of them.
func (v *VenueOrchestrator) Run(ctx context.Context, req Request) ([]model.CandidateRoute, []Failure) {
	col := &collector{}
	v.run(ctx, req, col)
	return col.snapshot()
}

func (v *VenueOrchestrator) run(ctx context.Context, req Request, col *collector) {
	pools := v.venue.PoolsFor(req.From.Symbol, req.To.Symbol)
	if len(pools) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(v.limit)
	for _, pool := range pools {
		pool := pool
		g.Go(func() error {
			v.runPool(ctx, pool, req, col)
			return nil
		})
	}
	_ = g.Wait()
}

func (v *VenueOrchestrator) runPool(ctx context.Context, pool model.Pool, req Request, col *collector) {
	var (
		route model.CandidateRoute
		err   error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v", errPanic, r)
			}
		}()
		route, err = v.pipeline.Run(ctx, pool, req)
	}()

	if err == nil {
		col.addRoute(route)
		v.metrics.PoolOutcome(v.venue.Name, "ok")
		return
	}

	reason := reasonOf(err)
	if ctxErr := ctx.Err(); ctxErr != nil && reason != "panic" {
		reason = reasonOf(ctxErr)
	}
	col.addFailure(Failure{
		Venue:  v.venue.Name,
		Pair:   pool.Pair,
		Pool:   pool.Address.Hex(),
		Reason: reason,
		Error:  err.Error(),
	})
	v.metrics.PoolOutcome(v.venue.Name, reason)

	log := v.logger.Debug
	if reason == "panic" {
		log = v.logger.Error
	}
	log("pool skipped",
		zap.String("pair", pool.Pair),
		zap.String("pool", pool.Address.Hex()),
		zap.String("reason", reason),
		zap.Error(err),
	)
}
