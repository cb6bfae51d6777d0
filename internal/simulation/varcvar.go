package simulation

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/nitinblue/eTrading-sub003/internal/errors"
)

// VaR returns the (1-confidence)-quantile of an outcome distribution.
// Outcomes are returns or P&L figures where losses are negative, so the
// result is the loss threshold not exceeded with the given confidence.
func VaR(outcomes []float64, confidence float64) (float64, error) {
	if len(outcomes) == 0 {
		return 0, errors.NewSimulationError("var", "empty outcome distribution", nil)
	}
	if confidence <= 0 || confidence >= 1 {
		return 0, errors.NewSimulationError("var", "confidence must be in (0, 1)", nil)
	}

	sorted := make([]float64, len(outcomes))
	copy(sorted, outcomes)
	sort.Float64s(sorted)

	return stat.Quantile(1-confidence, stat.Empirical, sorted, nil), nil
}

// CVaR returns the mean of all outcomes at or beyond the VaR threshold
// (expected shortfall). CVaR is always at least as extreme as VaR.
func CVaR(outcomes []float64, confidence float64) (float64, error) {
	threshold, err := VaR(outcomes, confidence)
	if err != nil {
		return 0, err
	}

	var tail []float64
	for _, v := range outcomes {
		if v <= threshold {
			tail = append(tail, v)
		}
	}
	if len(tail) == 0 {
		return threshold, nil
	}
	return stat.Mean(tail, nil), nil
}
