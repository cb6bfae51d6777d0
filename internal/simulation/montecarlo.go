// Package simulation provides Monte Carlo forward simulation of prices and
// portfolio P&L, VaR/CVaR on the resulting distributions, and fixed-shock
// stress testing.
//
// Simulation is embarrassingly parallel across paths: batches run on a bounded
// worker pool with no cross-path shared state, and results are merged by
// concatenation, so VaR/CVaR on the merged distribution is invariant to batch
// ordering. Portfolio mode draws each position's return independently; no
// cross-position correlation is modeled.
package simulation

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/nitinblue/eTrading-sub003/internal/errors"
	"github.com/nitinblue/eTrading-sub003/internal/logging"
	"github.com/nitinblue/eTrading-sub003/pkg/utils"
)

const (
	defaultWorkers = 8
	batchSize      = 256

	// maxPathRetries bounds regeneration of malformed paths before the run
	// is treated as systematically failing.
	maxPathRetries = 3
)

// PathConfig configures an index/instrument price simulation.
type PathConfig struct {
	Simulations  int
	HorizonDays  int
	MeanDaily    float64 // daily drift
	VolDaily     float64 // daily volatility, >= 0
	InitialPrice float64 // defaults to 1.0
	Seed         uint64  // 0 = time-seeded
	KeepPaths    bool    // retain the full path matrix in the result
}

// PositionExposure describes one position's contribution to portfolio-mode
// simulation: a delta-approximated daily P&L plus fixed theta decay.
type PositionExposure struct {
	ID         string
	Spot       float64
	Delta      float64 // quantity-scaled, per one point of underlying move per contract unit
	Multiplier float64
	VolDaily   float64 // this position's own estimated daily volatility, >= 0
	ThetaDaily float64 // position dollar theta per day
}

// PortfolioConfig configures a portfolio P&L simulation.
type PortfolioConfig struct {
	Simulations    int
	HorizonDays    int
	PortfolioValue float64
	Seed           uint64
	KeepPaths      bool
}

// Result holds the outcome of a simulation run. Ephemeral: produced and
// consumed within one analysis call.
type Result struct {
	Paths        [][]float64 // [simulation][day] value, only when KeepPaths
	FinalReturns []float64   // per-path final return
	FinalPnLs    []float64   // per-path final P&L (portfolio mode)
	MaxDrawdowns []float64   // per-path maximum drawdown, <= 0
}

// Simulator runs Monte Carlo simulations on a bounded worker pool.
type Simulator struct {
	workers int
	logger  zerolog.Logger
}

// NewSimulator creates a simulator with the given worker count.
func NewSimulator(workers int, logger zerolog.Logger) *Simulator {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Simulator{workers: workers, logger: logger}
}

// SimulatePaths draws i.i.d. daily returns from Normal(MeanDaily, VolDaily),
// compounds them multiplicatively into price paths, and collects per-path
// final return and maximum drawdown.
func (s *Simulator) SimulatePaths(ctx context.Context, cfg PathConfig) (*Result, error) {
	if cfg.Simulations <= 0 {
		return nil, errors.NewSimulationError("config", "simulations must be positive", nil)
	}
	if cfg.HorizonDays <= 0 {
		return nil, errors.NewSimulationError("config", "horizon days must be positive", nil)
	}
	if cfg.VolDaily < 0 {
		return nil, errors.NewSimulationError("config", "daily volatility must be non-negative", nil)
	}
	if cfg.InitialPrice == 0 {
		cfg.InitialPrice = 1.0
	}
	if cfg.InitialPrice < 0 {
		return nil, errors.NewSimulationError("config", "initial price must be positive", nil)
	}

	start := time.Now()
	seed := resolveSeed(cfg.Seed)

	result, err := s.runBatches(ctx, cfg.Simulations, cfg.KeepPaths, func(batch, n int, res *batchResult) error {
		src := rand.NewSource(seed + uint64(batch))
		dist := distuv.Normal{Mu: cfg.MeanDaily, Sigma: cfg.VolDaily, Src: src}
		for i := 0; i < n; i++ {
			path, ok := simulatePricePath(cfg, dist, res)
			retries := 0
			for !ok && retries < maxPathRetries {
				path, ok = simulatePricePath(cfg, dist, res)
				retries++
			}
			if !ok {
				return errors.NewSimulationError("path", "path generation produced non-finite values repeatedly", nil)
			}
			if cfg.KeepPaths {
				res.paths = append(res.paths, path)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.LogSimulationRun(s.logger, "paths", cfg.Simulations, cfg.HorizonDays, time.Since(start))
	return result, nil
}

// SimulatePortfolio simulates daily delta-approximated portfolio P&L. For each
// path and day, every position's underlying return is drawn independently from
// that position's own volatility; the independence across positions is a
// documented simplification.
func (s *Simulator) SimulatePortfolio(ctx context.Context, cfg PortfolioConfig, exposures []PositionExposure) (*Result, error) {
	if len(exposures) == 0 {
		return &Result{}, nil
	}
	if cfg.Simulations <= 0 {
		return nil, errors.NewSimulationError("config", "simulations must be positive", nil)
	}
	if cfg.HorizonDays <= 0 {
		return nil, errors.NewSimulationError("config", "horizon days must be positive", nil)
	}
	if cfg.PortfolioValue <= 0 {
		return nil, errors.NewSimulationError("config", "portfolio value must be positive", nil)
	}
	for _, e := range exposures {
		if e.VolDaily < 0 {
			return nil, errors.NewSimulationError("config",
				"position "+e.ID+" has negative daily volatility", nil)
		}
	}

	start := time.Now()
	seed := resolveSeed(cfg.Seed)

	result, err := s.runBatches(ctx, cfg.Simulations, cfg.KeepPaths, func(batch, n int, res *batchResult) error {
		src := rand.NewSource(seed + uint64(batch))
		rng := rand.New(src)
		dists := make([]distuv.Normal, len(exposures))
		for i, e := range exposures {
			dists[i] = distuv.Normal{Mu: 0, Sigma: e.VolDaily, Src: rng}
		}
		for i := 0; i < n; i++ {
			path, ok := simulatePortfolioPath(cfg, exposures, dists, res)
			retries := 0
			for !ok && retries < maxPathRetries {
				path, ok = simulatePortfolioPath(cfg, exposures, dists, res)
				retries++
			}
			if !ok {
				return errors.NewSimulationError("path", "portfolio path produced non-finite values repeatedly", nil)
			}
			if cfg.KeepPaths {
				res.paths = append(res.paths, path)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.LogSimulationRun(s.logger, "portfolio", cfg.Simulations, cfg.HorizonDays, time.Since(start))
	return result, nil
}

type batchResult struct {
	paths        [][]float64
	finalReturns []float64
	finalPnLs    []float64
	maxDrawdowns []float64
}

// runBatches splits simulations across the worker pool, checking ctx between
// batches. On cancellation partial results are discarded, never returned.
func (s *Simulator) runBatches(ctx context.Context, simulations int, keepPaths bool,
	run func(batch, n int, res *batchResult) error) (*Result, error) {

	numBatches := (simulations + batchSize - 1) / batchSize
	results := make([]*batchResult, numBatches)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	sem := make(chan struct{}, s.workers)

	for b := 0; b < numBatches; b++ {
		if err := ctx.Err(); err != nil {
			break
		}
		n := batchSize
		if b == numBatches-1 {
			n = simulations - b*batchSize
		}

		wg.Add(1)
		go func(batch, n int) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()
			if ctx.Err() != nil {
				return
			}

			res := &batchResult{
				finalReturns: make([]float64, 0, n),
				finalPnLs:    make([]float64, 0, n),
				maxDrawdowns: make([]float64, 0, n),
			}
			if err := run(batch, n, res); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			results[batch] = res
		}(b, n)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		// Under-sampling the tail would silently understate risk, so a
		// cancelled run returns nothing.
		return nil, err
	}
	if firstErr != nil {
		return nil, firstErr
	}

	merged := &Result{
		FinalReturns: make([]float64, 0, simulations),
		FinalPnLs:    make([]float64, 0, simulations),
		MaxDrawdowns: make([]float64, 0, simulations),
	}
	for _, res := range results {
		if res == nil {
			continue
		}
		merged.FinalReturns = append(merged.FinalReturns, res.finalReturns...)
		merged.FinalPnLs = append(merged.FinalPnLs, res.finalPnLs...)
		merged.MaxDrawdowns = append(merged.MaxDrawdowns, res.maxDrawdowns...)
		if keepPaths {
			merged.Paths = append(merged.Paths, res.paths...)
		}
	}
	return merged, nil
}

func simulatePricePath(cfg PathConfig, dist distuv.Normal, res *batchResult) ([]float64, bool) {
	price := cfg.InitialPrice
	runningMax := price
	maxDrawdown := 0.0

	var path []float64
	if cfg.KeepPaths {
		path = make([]float64, 0, cfg.HorizonDays)
	}

	for day := 0; day < cfg.HorizonDays; day++ {
		price *= 1 + dist.Rand()
		if !utils.IsFinite(price) {
			return nil, false
		}
		if price > runningMax {
			runningMax = price
		}
		if dd := price/runningMax - 1; dd < maxDrawdown {
			maxDrawdown = dd
		}
		if cfg.KeepPaths {
			path = append(path, price)
		}
	}

	res.finalReturns = append(res.finalReturns, price/cfg.InitialPrice-1)
	res.maxDrawdowns = append(res.maxDrawdowns, maxDrawdown)
	return path, true
}

func simulatePortfolioPath(cfg PortfolioConfig, exposures []PositionExposure, dists []distuv.Normal, res *batchResult) ([]float64, bool) {
	value := cfg.PortfolioValue
	runningMax := value
	maxDrawdown := 0.0

	var path []float64
	if cfg.KeepPaths {
		path = make([]float64, 0, cfg.HorizonDays)
	}

	for day := 0; day < cfg.HorizonDays; day++ {
		dayPnL := 0.0
		for i, e := range exposures {
			move := e.Spot * dists[i].Rand()
			dayPnL += e.Delta*move*e.Multiplier + e.ThetaDaily
		}
		value += dayPnL
		if !utils.IsFinite(value) {
			return nil, false
		}
		if value > runningMax {
			runningMax = value
		}
		if runningMax > 0 {
			if dd := value/runningMax - 1; dd < maxDrawdown {
				maxDrawdown = dd
			}
		}
		if cfg.KeepPaths {
			path = append(path, value)
		}
	}

	res.finalPnLs = append(res.finalPnLs, value-cfg.PortfolioValue)
	res.finalReturns = append(res.finalReturns, value/cfg.PortfolioValue-1)
	res.maxDrawdowns = append(res.maxDrawdowns, maxDrawdown)
	return path, true
}

func resolveSeed(seed uint64) uint64 {
	if seed != 0 {
		return seed
	}
	return uint64(time.Now().UnixNano())
}
