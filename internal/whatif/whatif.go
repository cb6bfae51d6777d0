// Package whatif models a proposed, not-yet-executed trade as an explicit
// input/output pair with an approval status.
//
// A Scenario is deliberately not reactive: inputs are mutated through setter
// methods that flip a plain staleness flag, and outputs change only on an
// explicit Evaluate call. A single-writer discipline applies per scenario;
// reads after a completed evaluation are safe from multiple readers.
package whatif

import (
	"context"
	"fmt"
	"time"

	"github.com/nitinblue/eTrading-sub003/internal/errors"
	"github.com/nitinblue/eTrading-sub003/internal/models"
)

// Status represents the approval state of a scenario.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusPassed  Status = "PASSED"
	StatusWarning Status = "WARNING"
	StatusBlocked Status = "BLOCKED"
	StatusError   Status = "ERROR"
)

// Severity classifies a risk check.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// CheckResult holds the outcome of one risk check. Message always carries the
// concrete threshold and current value.
type CheckResult struct {
	Name     string
	Severity Severity
	Passed   bool
	Current  float64
	Limit    float64
	Message  string
}

// Assumptions holds the market conditions a scenario is evaluated under.
type Assumptions struct {
	Spot         float64
	Volatility   float64
	RiskFreeRate float64
}

// Inputs holds the caller-supplied description of the proposed trade.
type Inputs struct {
	Name         string
	Underlying   string
	StrategyType string
	Legs         []models.OptionLeg
	Assumptions  Assumptions
	NetCredit    float64 // positive = credit received, negative = debit paid
}

// Metrics holds the computed risk/reward figures for a scenario.
type Metrics struct {
	MaxProfit           float64
	MaxLoss             float64
	Breakevens          []float64
	ProbabilityOfProfit float64
	ExpectedValue       float64
	VaRImpact           float64
}

// Outputs holds evaluator-written results. Callers must treat them as
// read-only and check staleness before trusting them.
type Outputs struct {
	Metrics     Metrics
	Checks      []CheckResult
	Status      Status
	EvaluatedAt time.Time
	LastError   error
}

// Evaluator scores a proposed trade. Implemented by the portfolio risk
// analyzer; abstracted here so scenarios do not depend on it directly.
type Evaluator interface {
	EvaluateScenario(ctx context.Context, in Inputs) (Metrics, []CheckResult, error)
}

// Scenario combines inputs, computed outputs, and risk-check results into an
// approval state.
type Scenario struct {
	inputs    Inputs
	outputs   Outputs
	evaluated bool
	stale     bool
}

// New creates a scenario in the PENDING state.
func New(inputs Inputs) *Scenario {
	if inputs.StrategyType == "" {
		inputs.StrategyType = models.StrategyCustom
	}
	return &Scenario{
		inputs:  inputs,
		outputs: Outputs{Status: StatusPending},
	}
}

// NewShortPut builds a single short put scenario.
func NewShortPut(underlying string, strike float64, expiry time.Time, credit float64) *Scenario {
	return New(Inputs{
		Name:         fmt.Sprintf("%s short put %g", underlying, strike),
		Underlying:   underlying,
		StrategyType: models.StrategyShortPut,
		Legs: []models.OptionLeg{
			{
				Contract: models.OptionContract{Underlying: underlying, Strike: strike, Expiry: expiry, Kind: models.Put},
				Side:     models.SideSell,
				Quantity: 1,
			},
		},
		NetCredit: credit,
	})
}

// NewPutCreditSpread builds a put credit spread: sell the short strike put,
// buy the long strike put.
func NewPutCreditSpread(underlying string, shortStrike, longStrike float64, expiry time.Time, credit float64) *Scenario {
	return New(Inputs{
		Name:         fmt.Sprintf("%s put credit spread %g/%g", underlying, shortStrike, longStrike),
		Underlying:   underlying,
		StrategyType: models.StrategyPutCreditSpread,
		Legs: []models.OptionLeg{
			{
				Contract: models.OptionContract{Underlying: underlying, Strike: shortStrike, Expiry: expiry, Kind: models.Put},
				Side:     models.SideSell,
				Quantity: 1,
			},
			{
				Contract: models.OptionContract{Underlying: underlying, Strike: longStrike, Expiry: expiry, Kind: models.Put},
				Side:     models.SideBuy,
				Quantity: 1,
			},
		},
		NetCredit: credit,
	})
}

// NewIronCondor builds an iron condor: a put credit spread below the market
// and a call credit spread above it.
func NewIronCondor(underlying string, putLong, putShort, callShort, callLong float64, expiry time.Time, credit float64) *Scenario {
	return New(Inputs{
		Name:         fmt.Sprintf("%s iron condor %g/%g/%g/%g", underlying, putLong, putShort, callShort, callLong),
		Underlying:   underlying,
		StrategyType: models.StrategyIronCondor,
		Legs: []models.OptionLeg{
			{
				Contract: models.OptionContract{Underlying: underlying, Strike: putLong, Expiry: expiry, Kind: models.Put},
				Side:     models.SideBuy,
				Quantity: 1,
			},
			{
				Contract: models.OptionContract{Underlying: underlying, Strike: putShort, Expiry: expiry, Kind: models.Put},
				Side:     models.SideSell,
				Quantity: 1,
			},
			{
				Contract: models.OptionContract{Underlying: underlying, Strike: callShort, Expiry: expiry, Kind: models.Call},
				Side:     models.SideSell,
				Quantity: 1,
			},
			{
				Contract: models.OptionContract{Underlying: underlying, Strike: callLong, Expiry: expiry, Kind: models.Call},
				Side:     models.SideBuy,
				Quantity: 1,
			},
		},
		NetCredit: credit,
	})
}

// Inputs returns a copy of the scenario inputs.
func (s *Scenario) Inputs() Inputs {
	in := s.inputs
	in.Legs = append([]models.OptionLeg(nil), s.inputs.Legs...)
	return in
}

// Outputs returns the evaluator-written outputs.
func (s *Scenario) Outputs() Outputs {
	return s.outputs
}

// Status returns the current approval status.
func (s *Scenario) Status() Status {
	return s.outputs.Status
}

// IsEvaluated reports whether the scenario has been evaluated at least once.
func (s *Scenario) IsEvaluated() bool {
	return s.evaluated
}

// IsStale reports whether any input changed since the last evaluation.
func (s *Scenario) IsStale() bool {
	return s.stale
}

// SetLegs replaces the proposed legs and marks the scenario stale.
func (s *Scenario) SetLegs(legs []models.OptionLeg) {
	s.inputs.Legs = append([]models.OptionLeg(nil), legs...)
	s.markStale()
}

// SetNetCredit updates the net credit/debit and marks the scenario stale.
func (s *Scenario) SetNetCredit(credit float64) {
	s.inputs.NetCredit = credit
	s.markStale()
}

// SetAssumptions updates the assumed market conditions and marks the scenario
// stale.
func (s *Scenario) SetAssumptions(a Assumptions) {
	s.inputs.Assumptions = a
	s.markStale()
}

// SetUnderlying updates the underlying symbol and marks the scenario stale.
func (s *Scenario) SetUnderlying(underlying string) {
	s.inputs.Underlying = underlying
	s.markStale()
}

// markStale flags the outputs as untrustworthy. The status is not reverted;
// callers must re-evaluate before trusting outputs.
func (s *Scenario) markStale() {
	if s.evaluated {
		s.stale = true
	}
}

// Evaluate scores the scenario through the evaluator and derives the approval
// status. Computational faults map to the ERROR status rather than
// propagating.
func (s *Scenario) Evaluate(ctx context.Context, ev Evaluator) Status {
	metrics, checks, err := ev.EvaluateScenario(ctx, s.Inputs())

	s.evaluated = true
	s.stale = false
	s.outputs.EvaluatedAt = time.Now()

	if err != nil {
		s.outputs.LastError = errors.NewEvaluationError(s.inputs.Name, "scoring", err)
		s.outputs.Status = StatusError
		return s.outputs.Status
	}

	s.outputs.Metrics = metrics
	s.outputs.Checks = checks
	s.outputs.LastError = nil
	s.outputs.Status = DeriveStatus(checks)
	return s.outputs.Status
}

// DeriveStatus applies the status precedence: any failed error-severity check
// blocks; otherwise any failed warning-severity check warns; otherwise passed.
func DeriveStatus(checks []CheckResult) Status {
	status := StatusPassed
	for _, check := range checks {
		if check.Passed {
			continue
		}
		if check.Severity == SeverityError {
			return StatusBlocked
		}
		status = StatusWarning
	}
	return status
}

// ShouldProceed reports whether the proposed trade may proceed, with a reason.
func (s *Scenario) ShouldProceed() (bool, string) {
	if !s.evaluated {
		return false, "scenario has not been evaluated"
	}
	switch s.outputs.Status {
	case StatusBlocked:
		return false, "blocked: " + s.failedCheckSummary(SeverityError)
	case StatusError:
		return false, fmt.Sprintf("evaluation error: %v", s.outputs.LastError)
	case StatusWarning:
		return true, "proceed with caution: " + s.failedCheckSummary(SeverityWarning)
	default:
		return true, "all checks passed"
	}
}

func (s *Scenario) failedCheckSummary(severity Severity) string {
	summary := ""
	for _, check := range s.outputs.Checks {
		if check.Passed || check.Severity != severity {
			continue
		}
		if summary != "" {
			summary += "; "
		}
		summary += check.Message
	}
	if summary == "" {
		summary = "no failing checks recorded"
	}
	return summary
}

// Summary is the grid/UI display view of a scenario.
type Summary struct {
	Name                string  `json:"name"`
	Underlying          string  `json:"underlying"`
	StrategyType        string  `json:"strategy_type"`
	NetCredit           float64 `json:"net_credit"`
	MaxProfit           float64 `json:"max_profit"`
	MaxLoss             float64 `json:"max_loss"`
	ProbabilityOfProfit float64 `json:"probability_of_profit"`
	ExpectedValue       float64 `json:"expected_value"`
	VaRImpact           float64 `json:"var_impact"`
	Status              Status  `json:"status"`
	CanProceed          bool    `json:"can_proceed"`
	Stale               bool    `json:"stale"`
}

// Summarize returns the display view of the scenario.
func (s *Scenario) Summarize() Summary {
	canProceed, _ := s.ShouldProceed()
	return Summary{
		Name:                s.inputs.Name,
		Underlying:          s.inputs.Underlying,
		StrategyType:        s.inputs.StrategyType,
		NetCredit:           s.inputs.NetCredit,
		MaxProfit:           s.outputs.Metrics.MaxProfit,
		MaxLoss:             s.outputs.Metrics.MaxLoss,
		ProbabilityOfProfit: s.outputs.Metrics.ProbabilityOfProfit,
		ExpectedValue:       s.outputs.Metrics.ExpectedValue,
		VaRImpact:           s.outputs.Metrics.VaRImpact,
		Status:              s.outputs.Status,
		CanProceed:          canProceed,
		Stale:               s.stale,
	}
}
