package simulation

import (
	"math"
	"testing"

	"github.com/nitinblue/eTrading-sub003/internal/errors"
)

func TestStressTestLinearShock(t *testing.T) {
	// 100 deltas at spot 50: a -20% shock loses 20% of the $5000 exposure.
	exposures := []PositionExposure{
		{ID: "eq", Spot: 50, Delta: 100, Multiplier: 1},
	}
	scenarios := []Scenario{
		{Name: "market_crash", ShockPercent: -20, HorizonDays: 5},
	}

	results, err := testSimulator().StressTest(exposures, 20000, scenarios, 1)
	if err != nil {
		t.Fatalf("StressTest returned error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	r := results[0]
	if math.Abs(r.PnL-(-1000)) > 1e-9 {
		t.Errorf("PnL = %v, want -1000", r.PnL)
	}
	if math.Abs(r.PercentChange-(-5)) > 1e-9 {
		t.Errorf("PercentChange = %v, want -5", r.PercentChange)
	}
	if !r.Survived {
		t.Error("Survived = false, want true")
	}
}

func TestStressTestSurvivalFlag(t *testing.T) {
	exposures := []PositionExposure{
		{ID: "eq", Spot: 50, Delta: 100, Multiplier: 1},
	}
	scenarios := []Scenario{
		{Name: "market_crash", ShockPercent: -20, HorizonDays: 5},
	}

	// The same -1000 loss wipes out a 900 portfolio.
	results, err := testSimulator().StressTest(exposures, 900, scenarios, 1)
	if err != nil {
		t.Fatalf("StressTest returned error: %v", err)
	}
	if results[0].Survived {
		t.Error("Survived = true, want false")
	}
}

func TestStressTestThetaAccumulatesOverHorizon(t *testing.T) {
	exposures := []PositionExposure{
		{ID: "opt", Spot: 100, Delta: 0, Multiplier: 100, ThetaDaily: 8},
	}
	scenarios := []Scenario{
		{Name: "rally", ShockPercent: 10, HorizonDays: 10},
	}

	results, err := testSimulator().StressTest(exposures, 10000, scenarios, 1)
	if err != nil {
		t.Fatalf("StressTest returned error: %v", err)
	}
	if math.Abs(results[0].PnL-80) > 1e-9 {
		t.Errorf("PnL = %v, want 80 (theta only)", results[0].PnL)
	}
}

func TestStressTestChoppyWithZeroDeltaIsPureTheta(t *testing.T) {
	// Random daily signs cancel against a zero delta; theta alone remains,
	// so the averaged choppy P&L is exact.
	exposures := []PositionExposure{
		{ID: "opt", Spot: 100, Delta: 0, Multiplier: 100, ThetaDaily: 5},
	}
	scenarios := []Scenario{
		{Name: "choppy_market", ShockPercent: 3, HorizonDays: 10, Choppy: true},
	}

	results, err := testSimulator().StressTest(exposures, 10000, scenarios, 21)
	if err != nil {
		t.Fatalf("StressTest returned error: %v", err)
	}
	if math.Abs(results[0].PnL-50) > 1e-9 {
		t.Errorf("PnL = %v, want 50", results[0].PnL)
	}
}

func TestStressTestValidation(t *testing.T) {
	exposures := []PositionExposure{{ID: "eq", Spot: 50, Delta: 10, Multiplier: 1}}

	if _, err := testSimulator().StressTest(exposures, 0, DefaultScenarios(), 1); !errors.Is(err, errors.ErrSimulationFailed) {
		t.Errorf("zero portfolio value: error = %v, want ErrSimulationFailed", err)
	}

	bad := []Scenario{{Name: "broken", ShockPercent: -5, HorizonDays: 0}}
	if _, err := testSimulator().StressTest(exposures, 1000, bad, 1); !errors.Is(err, errors.ErrSimulationFailed) {
		t.Errorf("zero horizon: error = %v, want ErrSimulationFailed", err)
	}
}

func TestStressTestNoExposures(t *testing.T) {
	results, err := testSimulator().StressTest(nil, 1000, DefaultScenarios(), 1)
	if err != nil {
		t.Fatalf("StressTest returned error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("len(results) = %d, want 0", len(results))
	}
}

func TestDefaultScenariosCoverCrashAndRally(t *testing.T) {
	scenarios := DefaultScenarios()
	byName := make(map[string]Scenario, len(scenarios))
	for _, sc := range scenarios {
		byName[sc.Name] = sc
	}
	crash, ok := byName["market_crash"]
	if !ok || crash.ShockPercent != -20 {
		t.Errorf("market_crash = %+v, want -20%% shock", crash)
	}
	rally, ok := byName["rally"]
	if !ok || rally.ShockPercent != 10 {
		t.Errorf("rally = %+v, want +10%% shock", rally)
	}
	choppy, ok := byName["choppy_market"]
	if !ok || !choppy.Choppy {
		t.Errorf("choppy_market = %+v, want Choppy", choppy)
	}
}
