package analyzer

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/nitinblue/eTrading-sub003/internal/errors"
	"github.com/nitinblue/eTrading-sub003/internal/models"
	"github.com/nitinblue/eTrading-sub003/internal/pricing"
	"github.com/nitinblue/eTrading-sub003/internal/whatif"
	"github.com/nitinblue/eTrading-sub003/pkg/utils"
)

const (
	// payoffFarFactor bounds the expiry-payoff scan above the highest strike.
	payoffFarFactor = 4.0

	// expectedValueSlices is the quadrature resolution for the expected value
	// integral over the terminal price distribution.
	expectedValueSlices = 200
)

// EvaluateScenario scores a proposed trade: expiry payoff extremes,
// breakevens, probability of profit and expected value under a lognormal
// terminal price, and risk checks against the configured limits. It
// implements whatif.Evaluator.
func (a *Analyzer) EvaluateScenario(ctx context.Context, in whatif.Inputs) (whatif.Metrics, []whatif.CheckResult, error) {
	if err := ctx.Err(); err != nil {
		return whatif.Metrics{}, nil, err
	}
	if len(in.Legs) == 0 {
		return whatif.Metrics{}, nil, errors.NewEvaluationError(in.Name, "inputs", fmt.Errorf("no legs"))
	}
	if in.Assumptions.Spot <= 0 {
		return whatif.Metrics{}, nil, errors.NewInvalidInputError("spot", in.Assumptions.Spot, "must be positive")
	}
	if in.Assumptions.Volatility <= 0 {
		return whatif.Metrics{}, nil, errors.NewInvalidInputError("volatility", in.Assumptions.Volatility, "must be positive")
	}

	T := yearsToEarliestExpiry(in.Legs)
	if T <= 0 {
		return whatif.Metrics{}, nil, errors.NewEvaluationError(in.Name, "inputs", fmt.Errorf("all legs expired"))
	}

	metrics := whatif.Metrics{}
	payoff := func(price float64) float64 {
		total := in.NetCredit * models.DefaultOptionMultiplier
		for _, leg := range in.Legs {
			total += leg.SignedQuantity() * pricing.Intrinsic(price, leg.Contract.Strike, leg.Contract.Kind) *
				models.DefaultOptionMultiplier
		}
		return total
	}

	vertices := payoffVertices(in.Legs)
	metrics.MaxProfit, metrics.MaxLoss = payoffExtremes(payoff, vertices)
	metrics.Breakevens = breakevens(payoff, vertices)

	pop, ev := terminalDistributionStats(payoff, in.Assumptions, T)
	metrics.ProbabilityOfProfit = pop
	metrics.ExpectedValue = ev
	metrics.VaRImpact = metrics.MaxLoss

	return metrics, a.tradeChecks(metrics), nil
}

func yearsToEarliestExpiry(legs []models.OptionLeg) float64 {
	now := time.Now()
	earliest := math.Inf(1)
	for _, leg := range legs {
		if t := leg.Contract.YearsToExpiry(now); t < earliest {
			earliest = t
		}
	}
	if math.IsInf(earliest, 1) {
		return 0
	}
	return earliest
}

// payoffVertices returns the terminal prices at which a piecewise-linear
// expiry payoff can take its extremes: zero, every strike, and a far price
// beyond the highest strike.
func payoffVertices(legs []models.OptionLeg) []float64 {
	maxStrike := 0.0
	vertices := []float64{0}
	for _, leg := range legs {
		vertices = append(vertices, leg.Contract.Strike)
		if leg.Contract.Strike > maxStrike {
			maxStrike = leg.Contract.Strike
		}
	}
	vertices = append(vertices, maxStrike*payoffFarFactor)
	sort.Float64s(vertices)
	return vertices
}

func payoffExtremes(payoff func(float64) float64, vertices []float64) (maxProfit, maxLoss float64) {
	maxProfit = math.Inf(-1)
	maxLoss = math.Inf(1)
	for _, v := range vertices {
		p := payoff(v)
		if p > maxProfit {
			maxProfit = p
		}
		if p < maxLoss {
			maxLoss = p
		}
	}
	return maxProfit, maxLoss
}

// breakevens finds the terminal prices where the payoff crosses zero by
// linear interpolation between adjacent vertices.
func breakevens(payoff func(float64) float64, vertices []float64) []float64 {
	var crossings []float64
	for i := 1; i < len(vertices); i++ {
		lo, hi := vertices[i-1], vertices[i]
		pLo, pHi := payoff(lo), payoff(hi)
		if pLo == 0 {
			crossings = append(crossings, lo)
			continue
		}
		if pLo*pHi < 0 {
			crossings = append(crossings, lo+(hi-lo)*pLo/(pLo-pHi))
		}
	}
	return crossings
}

// terminalDistributionStats integrates the payoff against a lognormal
// terminal price distribution to produce probability of profit and expected
// value.
func terminalDistributionStats(payoff func(float64) float64, a whatif.Assumptions, T float64) (pop, ev float64) {
	sigmaT := a.Volatility * math.Sqrt(T)
	drift := (a.RiskFreeRate - 0.5*a.Volatility*a.Volatility) * T

	// P(S_T <= x) under the lognormal terminal distribution.
	cdf := func(x float64) float64 {
		if x <= 0 {
			return 0
		}
		return stdNormal.CDF((math.Log(x/a.Spot) - drift) / sigmaT)
	}

	// Integrate over +/- 4 sigma in log space.
	lo := a.Spot * math.Exp(drift-4*sigmaT)
	hi := a.Spot * math.Exp(drift+4*sigmaT)
	step := (hi - lo) / expectedValueSlices

	prevCDF := cdf(lo)
	for i := 0; i < expectedValueSlices; i++ {
		left := lo + float64(i)*step
		right := left + step
		mid := (left + right) / 2
		prob := cdf(right) - prevCDF
		prevCDF = cdf(right)

		p := payoff(mid)
		ev += p * prob
		if p > 0 {
			pop += prob
		}
	}
	return pop, ev
}

// tradeChecks evaluates a scored trade against the configured limits. Every
// message carries the concrete threshold and current value.
func (a *Analyzer) tradeChecks(m whatif.Metrics) []whatif.CheckResult {
	var checks []whatif.CheckResult

	maxLoss := math.Abs(m.MaxLoss)
	checks = append(checks, whatif.CheckResult{
		Name:     "max_loss",
		Severity: whatif.SeverityError,
		Passed:   maxLoss <= a.limits.MaxPositionLoss,
		Current:  maxLoss,
		Limit:    a.limits.MaxPositionLoss,
		Message:  fmt.Sprintf("max loss %.2f against limit %.2f", maxLoss, a.limits.MaxPositionLoss),
	})

	checks = append(checks, whatif.CheckResult{
		Name:     "probability_of_profit",
		Severity: whatif.SeverityWarning,
		Passed:   m.ProbabilityOfProfit >= 0.5,
		Current:  m.ProbabilityOfProfit,
		Limit:    0.5,
		Message:  fmt.Sprintf("probability of profit %.2f against minimum 0.50", m.ProbabilityOfProfit),
	})

	checks = append(checks, whatif.CheckResult{
		Name:     "expected_value",
		Severity: whatif.SeverityWarning,
		Passed:   m.ExpectedValue >= 0,
		Current:  m.ExpectedValue,
		Limit:    0,
		Message:  fmt.Sprintf("expected value %.2f against minimum 0.00", m.ExpectedValue),
	})

	return checks
}

// ImpactResult is the before/after diff of adding a proposed trade.
type ImpactResult struct {
	VaRBefore            float64
	VaRAfter             float64
	VaRPercentBefore     float64
	VaRPercentAfter      float64
	DeltaDollarsBefore   float64
	DeltaDollarsAfter    float64
	ThetaDailyBefore     float64
	ThetaDailyAfter      float64
	ConcentrationBefore  float64
	ConcentrationAfter   float64
	Checks               []whatif.CheckResult
	Status               whatif.Status
	Approved             bool
	Reason               string
}

// ImpactAnalysis computes a before/after risk diff for a proposed trade and
// applies the approval rule: reject when any error-severity check fails or
// more than the configured number of warnings are present.
func (a *Analyzer) ImpactAnalysis(ctx context.Context, current *models.PortfolioRiskSnapshot, p Portfolio, in whatif.Inputs) (*ImpactResult, error) {
	if current == nil {
		return nil, fmt.Errorf("impact analysis: current risk snapshot is required")
	}

	metrics, checks, err := a.EvaluateScenario(ctx, in)
	if err != nil {
		return nil, err
	}

	result := &ImpactResult{
		DeltaDollarsBefore:  current.GreeksRisk.DeltaDollars,
		ThetaDailyBefore:    current.GreeksRisk.ThetaDaily,
		ConcentrationBefore: current.Concentration.MaxUnderlyingPercent,
	}

	if v, ok := current.VaRAt(0.95, 1); ok {
		result.VaRBefore = v.Amount
		result.VaRPercentBefore = v.Percent
	}

	// Worst-case tail addition: the trade's max loss stacks onto current VaR.
	result.VaRAfter = result.VaRBefore + metrics.VaRImpact
	if current.PortfolioValue > 0 {
		result.VaRPercentAfter = math.Abs(utils.PercentOf(result.VaRAfter, current.PortfolioValue))
	}

	tradeGreeks := a.proposedTradeGreeks(in)
	result.DeltaDollarsAfter = result.DeltaDollarsBefore + tradeGreeks.Delta*in.Assumptions.Spot
	result.ThetaDailyAfter = result.ThetaDailyBefore + tradeGreeks.Theta

	result.ConcentrationAfter = projectedConcentration(p, in.Underlying, math.Abs(metrics.MaxLoss))

	checks = append(checks, whatif.CheckResult{
		Name:     "post_trade_var_percent",
		Severity: whatif.SeverityError,
		Passed:   result.VaRPercentAfter <= a.limits.MaxVaRPercent,
		Current:  result.VaRPercentAfter,
		Limit:    a.limits.MaxVaRPercent,
		Message: fmt.Sprintf("post-trade VaR %.2f%% against limit %.2f%%",
			result.VaRPercentAfter, a.limits.MaxVaRPercent),
	})
	checks = append(checks, whatif.CheckResult{
		Name:     "post_trade_concentration",
		Severity: whatif.SeverityError,
		Passed:   result.ConcentrationAfter <= a.limits.MaxConcentrationPct,
		Current:  result.ConcentrationAfter,
		Limit:    a.limits.MaxConcentrationPct,
		Message: fmt.Sprintf("post-trade concentration %.2f%% against limit %.2f%%",
			result.ConcentrationAfter, a.limits.MaxConcentrationPct),
	})

	result.Checks = checks
	result.Status = whatif.DeriveStatus(checks)

	warningCount := 0
	for _, check := range checks {
		if !check.Passed && check.Severity == whatif.SeverityWarning {
			warningCount++
		}
	}

	switch {
	case result.Status == whatif.StatusBlocked:
		result.Approved = false
		result.Reason = "blocked by failed risk checks"
	case warningCount > a.limits.MaxImpactWarnings:
		result.Approved = false
		result.Reason = fmt.Sprintf("%d warnings exceed maximum %d", warningCount, a.limits.MaxImpactWarnings)
	default:
		result.Approved = true
		result.Reason = "within risk limits"
	}

	return result, nil
}

// proposedTradeGreeks prices each leg under the scenario assumptions and sums
// the position-scaled Greeks. Legs that fail to price contribute nothing;
// the caller's checks already cover malformed inputs.
func (a *Analyzer) proposedTradeGreeks(in whatif.Inputs) models.PositionGreeks {
	now := time.Now()
	var total models.PositionGreeks
	for _, leg := range in.Legs {
		g, err := pricing.ComputeGreeks(pricing.Input{
			Spot:         in.Assumptions.Spot,
			Strike:       leg.Contract.Strike,
			TimeToExpiry: leg.Contract.YearsToExpiry(now),
			Rate:         in.Assumptions.RiskFreeRate,
			Volatility:   in.Assumptions.Volatility,
			Kind:         leg.Contract.Kind,
		})
		if err != nil {
			continue
		}
		total = total.Add(g.Scale(leg.SignedQuantity(), models.DefaultOptionMultiplier))
	}
	return total
}

// projectedConcentration estimates the max single-underlying concentration
// after adding exposure of the given size to one underlying.
func projectedConcentration(p Portfolio, underlying string, addedExposure float64) float64 {
	gross := p.GrossValue() + addedExposure
	if gross <= 0 {
		return 0
	}

	byUnderlying := make(map[string]float64)
	for _, pos := range p.Positions {
		byUnderlying[pos.Underlying] += math.Abs(pos.MarketValue)
	}
	byUnderlying[underlying] += addedExposure

	maxPct := 0.0
	for _, value := range byUnderlying {
		if pct := utils.PercentOf(value, gross); pct > maxPct {
			maxPct = pct
		}
	}
	return maxPct
}
