package models

import "time"

// RiskLevel classifies overall portfolio risk.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskModerate RiskLevel = "MODERATE"
	RiskElevated RiskLevel = "ELEVATED"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// VaREstimate represents a Value-at-Risk figure at one confidence/horizon pair.
type VaREstimate struct {
	Confidence  float64
	HorizonDays int
	Amount      float64 // loss amount, negative for a loss
	Percent     float64 // loss as percent of portfolio value
}

// GreeksRisk represents aggregate dollar Greek exposure and linear scenario P&L.
type GreeksRisk struct {
	DeltaDollars float64
	GammaDollars float64
	ThetaDaily   float64
	VegaDollars  float64
	PnLUp1Pct    float64
	PnLDown1Pct  float64
	PnLUp5Pct    float64
	PnLDown5Pct  float64
}

// Concentration represents portfolio concentration metrics.
type Concentration struct {
	ByUnderlying         map[string]float64 // percent of portfolio value
	ByStrategy           map[string]float64
	ByDirection          map[string]float64
	ByExpiryBucket       map[string]float64
	MaxUnderlying        string
	MaxUnderlyingPercent float64
	DiversificationScore float64 // 0..100, Herfindahl-based, higher is better
}

// CorrelatedPair represents two positions flagged as highly correlated.
type CorrelatedPair struct {
	PositionA   string
	PositionB   string
	Correlation float64
}

// MarginUtilization represents current margin usage.
type MarginUtilization struct {
	UsedMargin      float64
	AvailableMargin float64
	TotalMargin     float64
	Utilization     float64 // percent
}

// LimitStatus represents the state of one configured risk limit.
type LimitStatus struct {
	Name        string
	Current     float64
	Limit       float64
	Utilization float64 // percent of limit consumed
	Warning     bool
	Breached    bool
	Message     string
}

// PortfolioRiskSnapshot is the result of one full portfolio risk analysis.
// Immutable once produced; a new snapshot is created per evaluation.
type PortfolioRiskSnapshot struct {
	PortfolioValue  float64
	VaREstimates    []VaREstimate
	GreeksRisk      GreeksRisk
	Concentration   Concentration
	CorrelationRisk float64 // 0..100, higher is riskier
	CorrelatedPairs []CorrelatedPair
	Margin          MarginUtilization
	LimitStatuses   []LimitStatus
	RiskLevel       RiskLevel
	Warnings        []string
	GeneratedAt     time.Time
}

// LimitsOK reports whether no configured limit is breached.
func (s *PortfolioRiskSnapshot) LimitsOK() bool {
	for _, ls := range s.LimitStatuses {
		if ls.Breached {
			return false
		}
	}
	return true
}

// VaRAt returns the estimate for a confidence/horizon pair, if present.
func (s *PortfolioRiskSnapshot) VaRAt(confidence float64, horizonDays int) (VaREstimate, bool) {
	for _, v := range s.VaREstimates {
		if v.Confidence == confidence && v.HorizonDays == horizonDays {
			return v, true
		}
	}
	return VaREstimate{}, false
}

// RiskSummary is the serializable reporting view of a snapshot.
type RiskSummary struct {
	PortfolioValue   float64   `json:"portfolio_value"`
	VaRAmount        float64   `json:"var_amount"`
	VaRPercent       float64   `json:"var_percent"`
	DeltaDollars     float64   `json:"delta_dollars"`
	ThetaDaily       float64   `json:"theta_daily"`
	MaxConcentration float64   `json:"max_concentration_percent"`
	RiskLevel        RiskLevel `json:"risk_level"`
	LimitsOK         bool      `json:"limits_ok"`
	Warnings         []string  `json:"warnings"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// Summary returns the reporting view consumed by dashboard and report layers.
func (s *PortfolioRiskSnapshot) Summary() RiskSummary {
	summary := RiskSummary{
		PortfolioValue:   s.PortfolioValue,
		DeltaDollars:     s.GreeksRisk.DeltaDollars,
		ThetaDaily:       s.GreeksRisk.ThetaDaily,
		MaxConcentration: s.Concentration.MaxUnderlyingPercent,
		RiskLevel:        s.RiskLevel,
		LimitsOK:         s.LimitsOK(),
		Warnings:         s.Warnings,
		GeneratedAt:      s.GeneratedAt,
	}
	if v, ok := s.VaRAt(0.95, 1); ok {
		summary.VaRAmount = v.Amount
		summary.VaRPercent = v.Percent
	}
	return summary
}
