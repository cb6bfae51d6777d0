// Package analyzer orchestrates VaR, Greeks risk, concentration, correlation,
// margin, and limit checks into portfolio risk snapshots, and scores proposed
// trades against configured limits.
package analyzer

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/nitinblue/eTrading-sub003/internal/config"
	"github.com/nitinblue/eTrading-sub003/internal/factors"
	"github.com/nitinblue/eTrading-sub003/internal/hedge"
	"github.com/nitinblue/eTrading-sub003/internal/logging"
	"github.com/nitinblue/eTrading-sub003/internal/models"
	"github.com/nitinblue/eTrading-sub003/internal/simulation"
	"github.com/nitinblue/eTrading-sub003/pkg/utils"
)

// defaultAnnualVol is assumed for an underlying when the caller supplies no
// volatility estimate.
const defaultAnnualVol = 0.20

const tradingDaysPerYear = 252.0

var stdNormal = distuv.Normal{Mu: 0, Sigma: 1}

// Portfolio bundles the collaborator-supplied inputs for one analysis run.
type Portfolio struct {
	Positions    []models.Position
	Markets      map[string]models.MarketSnapshot // by underlying
	Volatilities map[string]float64               // annualized, by underlying; optional
	Margin       models.MarginUtilization
	Capital      float64
}

// Value returns the net portfolio market value.
func (p Portfolio) Value() float64 {
	var total float64
	for _, pos := range p.Positions {
		total += pos.MarketValue
	}
	return total
}

// GrossValue returns the sum of absolute position values.
func (p Portfolio) GrossValue() float64 {
	var total float64
	for _, pos := range p.Positions {
		total += math.Abs(pos.MarketValue)
	}
	return total
}

// Analyzer produces portfolio risk snapshots. Created once per session and
// explicitly owned by the caller; it holds configuration, not market state.
type Analyzer struct {
	limits    config.RiskLimitsConfig
	simCfg    config.SimulationConfig
	sim       *simulation.Simulator
	hedgeCalc *hedge.Calculator
	sectorMap map[string]string
	logger    zerolog.Logger
}

// New creates an analyzer from configuration.
func New(cfg *config.Config, logger zerolog.Logger) *Analyzer {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Analyzer{
		limits:    cfg.Limits,
		simCfg:    cfg.Simulation,
		sim:       simulation.NewSimulator(cfg.Simulation.Workers, logger),
		hedgeCalc: hedge.NewCalculator(cfg.Hedging, logger),
		sectorMap: make(map[string]string),
		logger:    logger,
	}
}

// SetSectorMapping records a sector for an underlying, used by correlation
// scoring.
func (a *Analyzer) SetSectorMapping(underlying, sector string) {
	a.sectorMap[underlying] = sector
}

// varSpec is the set of confidence/horizon pairs reported per snapshot.
var varSpecs = []struct {
	confidence  float64
	horizonDays int
}{
	{0.95, 1},
	{0.99, 1},
	{0.95, 5},
}

// Analyze produces one PortfolioRiskSnapshot. Per-position faults are
// converted into warnings so one bad leg does not abort the whole analysis.
func (a *Analyzer) Analyze(ctx context.Context, p Portfolio) (*models.PortfolioRiskSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snapshot := &models.PortfolioRiskSnapshot{
		PortfolioValue: p.Value(),
		GeneratedAt:    time.Now(),
	}

	exposures, warnings := a.buildExposures(p)
	snapshot.Warnings = warnings

	a.computeVaR(ctx, snapshot, p, exposures)
	a.computeGreeksRisk(snapshot, p)
	snapshot.Concentration = a.computeConcentration(p)
	snapshot.CorrelationRisk, snapshot.CorrelatedPairs = a.computeCorrelation(p)
	snapshot.Margin = p.Margin
	if p.Margin.TotalMargin > 0 && p.Margin.Utilization == 0 {
		snapshot.Margin.Utilization = utils.PercentOf(p.Margin.UsedMargin, p.Margin.TotalMargin)
	}

	snapshot.LimitStatuses = a.checkLimits(snapshot)
	snapshot.RiskLevel = a.classifyRiskLevel(snapshot)

	for _, ls := range snapshot.LimitStatuses {
		if ls.Breached {
			logging.LogLimitBreach(a.logger, ls.Name, ls.Current, ls.Limit)
			snapshot.Warnings = append(snapshot.Warnings, ls.Message)
		} else if ls.Warning {
			snapshot.Warnings = append(snapshot.Warnings, ls.Message)
		}
	}

	varPct := 0.0
	if v, ok := snapshot.VaRAt(0.95, 1); ok {
		varPct = v.Percent
	}
	logging.LogRiskSnapshot(a.logger, snapshot.PortfolioValue, varPct, string(snapshot.RiskLevel), len(snapshot.Warnings))

	return snapshot, nil
}

// buildExposures converts positions into simulation exposures, skipping
// positions with missing market data and recording a warning for each.
func (a *Analyzer) buildExposures(p Portfolio) ([]simulation.PositionExposure, []string) {
	var exposures []simulation.PositionExposure
	var warnings []string

	for _, pos := range p.Positions {
		if pos.Quantity == 0 {
			continue
		}
		market, ok := p.Markets[pos.Underlying]
		if !ok || market.Spot <= 0 {
			warnings = append(warnings,
				fmt.Sprintf("position %s (%s): no market snapshot, excluded from simulation", pos.ID, pos.Underlying))
			continue
		}

		exposure := simulation.PositionExposure{
			ID:         pos.ID,
			Spot:       market.Spot,
			Multiplier: 1,
			VolDaily:   a.annualVol(p, pos.Underlying) / math.Sqrt(tradingDaysPerYear),
		}

		if pos.IsOption() {
			if pos.Greeks == nil {
				warnings = append(warnings,
					fmt.Sprintf("position %s (%s): option without Greeks snapshot, excluded from simulation", pos.ID, pos.Underlying))
				continue
			}
			// Position Greeks are already quantity- and multiplier-scaled.
			exposure.Delta = pos.Greeks.Delta
			exposure.ThetaDaily = pos.Greeks.Theta
		} else {
			exposure.Delta = pos.Quantity
		}

		exposures = append(exposures, exposure)
	}
	return exposures, warnings
}

func (a *Analyzer) annualVol(p Portfolio, underlying string) float64 {
	if v, ok := p.Volatilities[underlying]; ok && v > 0 {
		return v
	}
	return defaultAnnualVol
}

// computeVaR runs the portfolio Monte Carlo per confidence/horizon pair,
// falling back to a parametric z-score estimate when simulation fails.
func (a *Analyzer) computeVaR(ctx context.Context, snapshot *models.PortfolioRiskSnapshot, p Portfolio, exposures []simulation.PositionExposure) {
	value := snapshot.PortfolioValue
	if value <= 0 || len(exposures) == 0 {
		return
	}

	for _, spec := range varSpecs {
		estimate := models.VaREstimate{Confidence: spec.confidence, HorizonDays: spec.horizonDays}

		result, err := a.sim.SimulatePortfolio(ctx, simulation.PortfolioConfig{
			Simulations:    a.simCfg.Simulations,
			HorizonDays:    spec.horizonDays,
			PortfolioValue: value,
			Seed:           a.simCfg.Seed,
		}, exposures)

		if err == nil && len(result.FinalPnLs) > 0 {
			amount, verr := simulation.VaR(result.FinalPnLs, spec.confidence)
			if verr == nil {
				estimate.Amount = amount
				estimate.Percent = math.Abs(utils.PercentOf(amount, value))
				snapshot.VaREstimates = append(snapshot.VaREstimates, estimate)
				continue
			}
			err = verr
		}

		if ctx.Err() != nil {
			return
		}

		a.logger.Warn().Err(err).
			Float64("confidence", spec.confidence).
			Int("horizon_days", spec.horizonDays).
			Msg("Simulation VaR failed, using parametric estimate")
		snapshot.Warnings = append(snapshot.Warnings,
			fmt.Sprintf("VaR %.0f%%/%dd estimated parametrically: %v", spec.confidence*100, spec.horizonDays, err))

		estimate.Amount = a.parametricVaR(p, value, spec.confidence, spec.horizonDays)
		estimate.Percent = math.Abs(utils.PercentOf(estimate.Amount, value))
		snapshot.VaREstimates = append(snapshot.VaREstimates, estimate)
	}
}

// parametricVaR estimates VaR as value * z * dailyVol * sqrt(horizon) using
// a gross-value-weighted average of the supplied underlying volatilities.
func (a *Analyzer) parametricVaR(p Portfolio, value, confidence float64, horizonDays int) float64 {
	gross := p.GrossValue()
	dailyVol := defaultAnnualVol / math.Sqrt(tradingDaysPerYear)
	if gross > 0 {
		var weighted float64
		for _, pos := range p.Positions {
			weighted += math.Abs(pos.MarketValue) / gross * a.annualVol(p, pos.Underlying)
		}
		dailyVol = weighted / math.Sqrt(tradingDaysPerYear)
	}

	z := stdNormal.Quantile(1 - confidence) // negative tail quantile
	return value * z * dailyVol * math.Sqrt(float64(horizonDays))
}

// computeGreeksRisk aggregates position-scaled Greeks into dollar exposure
// and linear scenario P&L.
func (a *Analyzer) computeGreeksRisk(snapshot *models.PortfolioRiskSnapshot, p Portfolio) {
	container := factors.FromPositions(p.Positions)

	var deltaDollars, gammaDollars, thetaDaily, vegaDollars float64
	for _, totals := range container.AllFactorTotals() {
		spot := 0.0
		if market, ok := p.Markets[totals.Underlying]; ok {
			spot = market.Spot
		}
		deltaDollars += totals.Delta * spot
		gammaDollars += totals.Gamma * spot * spot / 100
		thetaDaily += totals.Theta
		vegaDollars += totals.Vega
	}

	snapshot.GreeksRisk = models.GreeksRisk{
		DeltaDollars: deltaDollars,
		GammaDollars: gammaDollars,
		ThetaDaily:   thetaDaily,
		VegaDollars:  vegaDollars,
		PnLUp1Pct:    deltaDollars * 0.01,
		PnLDown1Pct:  deltaDollars * -0.01,
		PnLUp5Pct:    deltaDollars * 0.05,
		PnLDown5Pct:  deltaDollars * -0.05,
	}
}

// computeConcentration breaks portfolio exposure down by underlying,
// strategy, direction, and expiry bucket, and derives a Herfindahl-based
// diversification score.
func (a *Analyzer) computeConcentration(p Portfolio) models.Concentration {
	c := models.Concentration{
		ByUnderlying:   make(map[string]float64),
		ByStrategy:     make(map[string]float64),
		ByDirection:    make(map[string]float64),
		ByExpiryBucket: make(map[string]float64),
	}

	gross := p.GrossValue()
	if gross <= 0 {
		c.DiversificationScore = 100
		return c
	}

	now := time.Now()
	for _, pos := range p.Positions {
		weight := utils.PercentOf(math.Abs(pos.MarketValue), gross)
		c.ByUnderlying[pos.Underlying] += weight
		c.ByStrategy[strategyBucket(pos)] += weight
		c.ByDirection[string(pos.Direction())] += weight
		c.ByExpiryBucket[expiryBucket(pos, now)] += weight
	}

	var herfindahl float64
	for underlying, pct := range c.ByUnderlying {
		w := pct / 100
		herfindahl += w * w
		if pct > c.MaxUnderlyingPercent {
			c.MaxUnderlyingPercent = pct
			c.MaxUnderlying = underlying
		}
	}
	c.DiversificationScore = utils.Clamp((1-herfindahl)*100, 0, 100)

	return c
}

func strategyBucket(pos models.Position) string {
	if !pos.IsOption() {
		return "equity"
	}
	side := "long"
	if pos.Quantity < 0 {
		side = "short"
	}
	if pos.Contract.Kind == models.Put {
		return side + "_put"
	}
	return side + "_call"
}

func expiryBucket(pos models.Position, now time.Time) string {
	if !pos.IsOption() {
		return "none"
	}
	days := pos.Contract.DaysToExpiry(now)
	switch {
	case days <= 7:
		return "0-7d"
	case days <= 30:
		return "7-30d"
	case days <= 90:
		return "30-90d"
	default:
		return "90d+"
	}
}

// computeCorrelation groups exposure into sector clusters (an unmapped
// underlying is its own cluster) and scores how concentrated the portfolio is
// within correlated clusters. Pairs of positions in the same cluster with
// material weight are flagged.
func (a *Analyzer) computeCorrelation(p Portfolio) (float64, []models.CorrelatedPair) {
	gross := p.GrossValue()
	if gross <= 0 {
		return 0, nil
	}

	sectorOf := func(underlying string) string {
		if s, ok := a.sectorMap[underlying]; ok {
			return s
		}
		return underlying
	}

	clusterWeight := make(map[string]float64)
	type member struct {
		id     string
		weight float64
	}
	clusterMembers := make(map[string][]member)

	for _, pos := range p.Positions {
		w := math.Abs(pos.MarketValue) / gross
		cluster := sectorOf(pos.Underlying)
		clusterWeight[cluster] += w
		clusterMembers[cluster] = append(clusterMembers[cluster], member{id: pos.ID, weight: w})
	}

	var herfindahl float64
	for _, w := range clusterWeight {
		herfindahl += w * w
	}
	score := utils.Clamp(herfindahl*100, 0, 100)

	var pairs []models.CorrelatedPair
	clusters := make([]string, 0, len(clusterMembers))
	for cluster := range clusterMembers {
		clusters = append(clusters, cluster)
	}
	sort.Strings(clusters)
	for _, cluster := range clusters {
		members := clusterMembers[cluster]
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				if members[i].weight > 0.10 && members[j].weight > 0.10 {
					pairs = append(pairs, models.CorrelatedPair{
						PositionA:   members[i].id,
						PositionB:   members[j].id,
						Correlation: 1.0,
					})
				}
			}
		}
	}
	return score, pairs
}

// checkLimits evaluates the snapshot against the configured limits.
func (a *Analyzer) checkLimits(snapshot *models.PortfolioRiskSnapshot) []models.LimitStatus {
	var statuses []models.LimitStatus

	addLimit := func(name string, current, limit float64) {
		if limit <= 0 {
			return
		}
		utilization := utils.PercentOf(current, limit)
		status := models.LimitStatus{
			Name:        name,
			Current:     current,
			Limit:       limit,
			Utilization: utilization,
			Breached:    current > limit,
			Warning:     current > limit*a.limits.WarningFraction && current <= limit,
		}
		switch {
		case status.Breached:
			status.Message = fmt.Sprintf("%s breached: current %.2f exceeds limit %.2f", name, current, limit)
		case status.Warning:
			status.Message = fmt.Sprintf("%s nearing limit: current %.2f of limit %.2f", name, current, limit)
		default:
			status.Message = fmt.Sprintf("%s ok: current %.2f of limit %.2f", name, current, limit)
		}
		statuses = append(statuses, status)
	}

	if v, ok := snapshot.VaRAt(0.95, 1); ok {
		addLimit("var_percent", v.Percent, a.limits.MaxVaRPercent)
	}
	addLimit("concentration_percent", snapshot.Concentration.MaxUnderlyingPercent, a.limits.MaxConcentrationPct)
	addLimit("margin_utilization", snapshot.Margin.Utilization, a.limits.MaxMarginUtilization)
	addLimit("delta_dollars", math.Abs(snapshot.GreeksRisk.DeltaDollars), a.limits.MaxDeltaDollars)
	addLimit("vega_dollars", math.Abs(snapshot.GreeksRisk.VegaDollars), a.limits.MaxVegaDollars)
	addLimit("correlation_score", snapshot.CorrelationRisk, a.limits.MaxCorrelationScore)

	return statuses
}

// classifyRiskLevel maps 1-day 95% VaR percent to a risk level, with a
// concentration floor of at least ELEVATED above the configured threshold.
func (a *Analyzer) classifyRiskLevel(snapshot *models.PortfolioRiskSnapshot) models.RiskLevel {
	level := models.RiskLow
	if v, ok := snapshot.VaRAt(0.95, 1); ok {
		switch {
		case v.Percent > 10:
			level = models.RiskCritical
		case v.Percent > 5:
			level = models.RiskHigh
		case v.Percent > 3:
			level = models.RiskElevated
		case v.Percent > 1.5:
			level = models.RiskModerate
		}
	}

	floor := a.limits.ConcentrationFloorPct
	if floor > 0 && snapshot.Concentration.MaxUnderlyingPercent > floor && riskRank(level) < riskRank(models.RiskElevated) {
		level = models.RiskElevated
	}
	return level
}

func riskRank(level models.RiskLevel) int {
	switch level {
	case models.RiskLow:
		return 0
	case models.RiskModerate:
		return 1
	case models.RiskElevated:
		return 2
	case models.RiskHigh:
		return 3
	case models.RiskCritical:
		return 4
	default:
		return 0
	}
}

// RecommendHedges aggregates position sensitivities, finds factors whose
// exposure exceeds the configured hedge thresholds, and solves for hedge
// quantities that neutralize the portfolio's Greek gap.
func (a *Analyzer) RecommendHedges(positions []models.Position, instruments []hedge.Instrument, capital float64) (*hedge.Result, error) {
	container := factors.FromPositions(positions)
	needing := container.FactorsNeedingHedge(
		a.limits.HedgeDeltaThreshold,
		a.limits.HedgeGammaThreshold,
		a.limits.HedgeVegaThreshold,
	)
	if len(needing) == 0 {
		return &hedge.Result{}, nil
	}

	totals := container.PortfolioTotals()
	current := hedge.GreekVector{Delta: totals.Delta, Theta: totals.Theta, Vega: totals.Vega}
	return a.hedgeCalc.Solve(current, hedge.GreekVector{}, instruments, capital)
}

// StressTest applies each named scenario to the portfolio and returns
// per-scenario P&L, percent change, and a survival flag.
func (a *Analyzer) StressTest(ctx context.Context, p Portfolio, scenarios []simulation.Scenario) ([]simulation.StressResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(scenarios) == 0 {
		scenarios = simulation.DefaultScenarios()
	}
	exposures, _ := a.buildExposures(p)
	value := p.Value()
	if value <= 0 {
		value = p.GrossValue()
	}
	if value <= 0 {
		return []simulation.StressResult{}, nil
	}
	return a.sim.StressTest(exposures, value, scenarios, a.simCfg.Seed)
}
