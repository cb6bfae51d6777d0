package simulation

import (
	"golang.org/x/exp/rand"

	"github.com/nitinblue/eTrading-sub003/internal/errors"
	"github.com/nitinblue/eTrading-sub003/pkg/utils"
)

// defaultChoppyTrials is the number of randomized trials averaged for a
// choppy scenario.
const defaultChoppyTrials = 100

// Scenario represents a named fixed-percentage stress shock.
type Scenario struct {
	Name         string
	ShockPercent float64 // total underlying move over the horizon, e.g. -20 for a crash
	HorizonDays  int
	Choppy       bool // randomized +/- daily moves averaged over Trials
	Trials       int  // choppy trials; defaults to defaultChoppyTrials
}

// StressResult holds the outcome of applying one scenario.
type StressResult struct {
	Scenario      string
	ShockPercent  float64
	PnL           float64
	PercentChange float64 // P&L as percent of portfolio value
	Survived      bool
}

// DefaultScenarios returns the built-in stress scenario set.
func DefaultScenarios() []Scenario {
	return []Scenario{
		{Name: "market_crash", ShockPercent: -20, HorizonDays: 5},
		{Name: "correction", ShockPercent: -10, HorizonDays: 10},
		{Name: "selloff", ShockPercent: -5, HorizonDays: 3},
		{Name: "rally", ShockPercent: 10, HorizonDays: 10},
		{Name: "choppy_market", ShockPercent: 3, HorizonDays: 10, Choppy: true},
	}
}

// StressTest applies each scenario's shock to the delta/theta-approximated
// portfolio without full path simulation. Each result carries a survival flag
// indicating the portfolio retains positive value after the shock.
func (s *Simulator) StressTest(exposures []PositionExposure, portfolioValue float64, scenarios []Scenario, seed uint64) ([]StressResult, error) {
	if portfolioValue <= 0 {
		return nil, errors.NewSimulationError("stress", "portfolio value must be positive", nil)
	}
	if len(exposures) == 0 {
		return []StressResult{}, nil
	}

	rng := rand.New(rand.NewSource(resolveSeed(seed)))

	results := make([]StressResult, 0, len(scenarios))
	for _, sc := range scenarios {
		if sc.HorizonDays <= 0 {
			return nil, errors.NewSimulationError("stress",
				"scenario "+sc.Name+" has non-positive horizon", nil)
		}

		var pnl float64
		if sc.Choppy {
			pnl = choppyPnL(exposures, sc, rng)
		} else {
			pnl = linearPnL(exposures, sc)
		}

		results = append(results, StressResult{
			Scenario:      sc.Name,
			ShockPercent:  sc.ShockPercent,
			PnL:           pnl,
			PercentChange: utils.PercentOf(pnl, portfolioValue),
			Survived:      portfolioValue+pnl > 0,
		})
	}
	return results, nil
}

// linearPnL spreads the shock linearly over the horizon and accumulates
// delta-approximated P&L plus theta decay day by day.
func linearPnL(exposures []PositionExposure, sc Scenario) float64 {
	dailyShock := sc.ShockPercent / 100 / float64(sc.HorizonDays)
	var pnl float64
	for day := 0; day < sc.HorizonDays; day++ {
		for _, e := range exposures {
			pnl += e.Delta*e.Spot*dailyShock*e.Multiplier + e.ThetaDaily
		}
	}
	return pnl
}

// choppyPnL draws random-sign daily moves of the shock magnitude and averages
// the resulting P&L over repeated trials.
func choppyPnL(exposures []PositionExposure, sc Scenario, rng *rand.Rand) float64 {
	trials := sc.Trials
	if trials <= 0 {
		trials = defaultChoppyTrials
	}
	dailyMagnitude := abs(sc.ShockPercent) / 100 / float64(sc.HorizonDays)

	var total float64
	for trial := 0; trial < trials; trial++ {
		var pnl float64
		for day := 0; day < sc.HorizonDays; day++ {
			move := dailyMagnitude
			if rng.Float64() < 0.5 {
				move = -move
			}
			for _, e := range exposures {
				pnl += e.Delta*e.Spot*move*e.Multiplier + e.ThetaDaily
			}
		}
		total += pnl
	}
	return total / float64(trials)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
