package simulation

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/nitinblue/eTrading-sub003/internal/errors"
)

func testSimulator() *Simulator {
	return NewSimulator(4, zerolog.Nop())
}

func TestSimulatePathsDegenerate(t *testing.T) {
	// Zero drift and zero volatility must yield exactly flat paths.
	res, err := testSimulator().SimulatePaths(context.Background(), PathConfig{
		Simulations: 500,
		HorizonDays: 21,
		MeanDaily:   0,
		VolDaily:    0,
		Seed:        7,
	})
	if err != nil {
		t.Fatalf("SimulatePaths returned error: %v", err)
	}
	if len(res.FinalReturns) != 500 {
		t.Fatalf("len(FinalReturns) = %d, want 500", len(res.FinalReturns))
	}
	for i, r := range res.FinalReturns {
		if r != 0 {
			t.Fatalf("FinalReturns[%d] = %v, want 0", i, r)
		}
	}
	for i, dd := range res.MaxDrawdowns {
		if dd != 0 {
			t.Fatalf("MaxDrawdowns[%d] = %v, want 0", i, dd)
		}
	}
}

func TestSimulatePathsDeterministicForSeed(t *testing.T) {
	cfg := PathConfig{
		Simulations: 600, // spans multiple batches
		HorizonDays: 10,
		MeanDaily:   0.0005,
		VolDaily:    0.012,
		Seed:        42,
	}
	sim := testSimulator()
	a, err := sim.SimulatePaths(context.Background(), cfg)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	b, err := sim.SimulatePaths(context.Background(), cfg)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(a.FinalReturns) != len(b.FinalReturns) {
		t.Fatalf("run sizes differ: %d vs %d", len(a.FinalReturns), len(b.FinalReturns))
	}
	for i := range a.FinalReturns {
		if a.FinalReturns[i] != b.FinalReturns[i] {
			t.Fatalf("FinalReturns[%d] differs: %v vs %v", i, a.FinalReturns[i], b.FinalReturns[i])
		}
	}
}

func TestSimulatePathsDrawdownsNeverPositive(t *testing.T) {
	res, err := testSimulator().SimulatePaths(context.Background(), PathConfig{
		Simulations: 2000,
		HorizonDays: 21,
		MeanDaily:   0.001,
		VolDaily:    0.02,
		Seed:        11,
	})
	if err != nil {
		t.Fatalf("SimulatePaths returned error: %v", err)
	}
	for i, dd := range res.MaxDrawdowns {
		if dd > 0 {
			t.Fatalf("MaxDrawdowns[%d] = %v, want <= 0", i, dd)
		}
	}
}

func TestSimulatePathsInvalidConfig(t *testing.T) {
	sim := testSimulator()
	tests := []struct {
		name string
		cfg  PathConfig
	}{
		{"zero simulations", PathConfig{Simulations: 0, HorizonDays: 10, VolDaily: 0.01}},
		{"zero horizon", PathConfig{Simulations: 100, HorizonDays: 0, VolDaily: 0.01}},
		{"negative vol", PathConfig{Simulations: 100, HorizonDays: 10, VolDaily: -0.01}},
		{"negative price", PathConfig{Simulations: 100, HorizonDays: 10, VolDaily: 0.01, InitialPrice: -5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sim.SimulatePaths(context.Background(), tt.cfg)
			if !errors.Is(err, errors.ErrSimulationFailed) {
				t.Errorf("error = %v, want ErrSimulationFailed", err)
			}
		})
	}
}

func TestSimulatePathsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := testSimulator().SimulatePaths(ctx, PathConfig{
		Simulations: 10000,
		HorizonDays: 21,
		VolDaily:    0.01,
		Seed:        3,
	})
	if err != context.Canceled {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if res != nil {
		t.Fatalf("cancelled run returned partial results: %+v", res)
	}
}

func TestSimulatePathsCancelMidRunStopsEarly(t *testing.T) {
	// Cancelling during a large run must abort queued batches rather
	// than computing everything and discarding the result.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(10*time.Millisecond, cancel)

	start := time.Now()
	res, err := testSimulator().SimulatePaths(ctx, PathConfig{
		Simulations: 2_000_000,
		HorizonDays: 252,
		MeanDaily:   0.0003,
		VolDaily:    0.015,
		Seed:        21,
	})
	elapsed := time.Since(start)

	if err != context.Canceled {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if res != nil {
		t.Fatalf("cancelled run returned partial results: %+v", res)
	}
	if elapsed > 3*time.Second {
		t.Fatalf("cancelled run took %v, batches kept computing after cancel", elapsed)
	}
}

func TestSimulatePathsNonFinitePathsEscalate(t *testing.T) {
	// An absurd daily volatility overflows the compounded price to Inf
	// on every attempt, so regeneration exhausts its retries.
	_, err := testSimulator().SimulatePaths(context.Background(), PathConfig{
		Simulations: 16,
		HorizonDays: 10,
		VolDaily:    1e300,
		Seed:        13,
	})
	var se *errors.SimulationError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want SimulationError", err)
	}
	if se.Stage != "path" {
		t.Errorf("stage = %q, want path", se.Stage)
	}
	if !errors.Is(err, errors.ErrSimulationFailed) {
		t.Errorf("error does not match ErrSimulationFailed: %v", err)
	}
}

func TestSimulatePortfolioNoExposures(t *testing.T) {
	res, err := testSimulator().SimulatePortfolio(context.Background(), PortfolioConfig{
		Simulations:    100,
		HorizonDays:    5,
		PortfolioValue: 10000,
	}, nil)
	if err != nil {
		t.Fatalf("SimulatePortfolio returned error: %v", err)
	}
	if len(res.FinalPnLs) != 0 {
		t.Fatalf("empty portfolio produced %d P&L samples", len(res.FinalPnLs))
	}
}

func TestSimulatePortfolioThetaOnly(t *testing.T) {
	// Zero delta and volatility isolates theta decay: P&L is exactly
	// theta * horizon on every path.
	horizon := 5
	theta := -12.5
	res, err := testSimulator().SimulatePortfolio(context.Background(), PortfolioConfig{
		Simulations:    300,
		HorizonDays:    horizon,
		PortfolioValue: 50000,
		Seed:           9,
	}, []PositionExposure{
		{ID: "p1", Spot: 100, Delta: 0, Multiplier: 100, VolDaily: 0, ThetaDaily: theta},
	})
	if err != nil {
		t.Fatalf("SimulatePortfolio returned error: %v", err)
	}
	want := theta * float64(horizon)
	for i, pnl := range res.FinalPnLs {
		if math.Abs(pnl-want) > 1e-9 {
			t.Fatalf("FinalPnLs[%d] = %v, want %v", i, pnl, want)
		}
	}
}

func TestSimulatePortfolioRejectsNegativeVol(t *testing.T) {
	_, err := testSimulator().SimulatePortfolio(context.Background(), PortfolioConfig{
		Simulations:    100,
		HorizonDays:    5,
		PortfolioValue: 10000,
	}, []PositionExposure{
		{ID: "bad", Spot: 100, Delta: 10, Multiplier: 1, VolDaily: -0.01},
	})
	var se *errors.SimulationError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want SimulationError", err)
	}
	if se.Stage != "config" {
		t.Errorf("stage = %q, want config", se.Stage)
	}
}

func TestSimulatePortfolioKeepPaths(t *testing.T) {
	res, err := testSimulator().SimulatePortfolio(context.Background(), PortfolioConfig{
		Simulations:    64,
		HorizonDays:    10,
		PortfolioValue: 25000,
		Seed:           5,
		KeepPaths:      true,
	}, []PositionExposure{
		{ID: "p1", Spot: 250, Delta: 40, Multiplier: 1, VolDaily: 0.015, ThetaDaily: 0},
	})
	if err != nil {
		t.Fatalf("SimulatePortfolio returned error: %v", err)
	}
	if len(res.Paths) != 64 {
		t.Fatalf("len(Paths) = %d, want 64", len(res.Paths))
	}
	for i, p := range res.Paths {
		if len(p) != 10 {
			t.Fatalf("Paths[%d] has %d days, want 10", i, len(p))
		}
	}
}
