package models

import (
	"math"
	"testing"
	"time"
)

func TestOptionContractValidate(t *testing.T) {
	valid := OptionContract{
		Underlying: "SPY",
		Strike:     480,
		Expiry:     time.Now().AddDate(0, 0, 30),
		Kind:       Put,
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid contract rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*OptionContract)
	}{
		{"empty underlying", func(c *OptionContract) { c.Underlying = "" }},
		{"zero strike", func(c *OptionContract) { c.Strike = 0 }},
		{"negative strike", func(c *OptionContract) { c.Strike = -10 }},
		{"bad kind", func(c *OptionContract) { c.Kind = OptionKind("STRADDLE") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Error("Validate accepted invalid contract")
			}
		})
	}
}

func TestOptionContractYearsToExpiry(t *testing.T) {
	c := OptionContract{
		Underlying: "SPY",
		Strike:     480,
		Expiry:     time.Now().Add(365 * 24 * time.Hour),
		Kind:       Call,
	}
	years := c.YearsToExpiry(time.Now())
	if math.Abs(years-1.0) > 0.01 {
		t.Errorf("YearsToExpiry = %v, want ~1.0", years)
	}

	past := c
	past.Expiry = time.Now().Add(-24 * time.Hour)
	if got := past.YearsToExpiry(time.Now()); got != 0 {
		t.Errorf("expired YearsToExpiry = %v, want 0", got)
	}
}

func TestGreeksScale(t *testing.T) {
	g := Greeks{Delta: 0.45, Gamma: 0.02, Theta: -0.08, Vega: 0.15, Rho: 0.05}
	scaled := g.Scale(-2, 100)

	if math.Abs(scaled.Delta-(-90)) > 1e-9 {
		t.Errorf("Delta = %v, want -90", scaled.Delta)
	}
	if math.Abs(scaled.Theta-16) > 1e-9 {
		t.Errorf("Theta = %v, want 16", scaled.Theta)
	}
	if math.Abs(scaled.Vega-(-30)) > 1e-9 {
		t.Errorf("Vega = %v, want -30", scaled.Vega)
	}
}

func TestPositionGreeksAdd(t *testing.T) {
	var total PositionGreeks
	total = total.Add(PositionGreeks{Delta: -30, Theta: 5})
	total = total.Add(PositionGreeks{Delta: 100, Theta: -2, Vega: 10})

	if total.Delta != 70 {
		t.Errorf("Delta = %v, want 70", total.Delta)
	}
	if total.Theta != 3 {
		t.Errorf("Theta = %v, want 3", total.Theta)
	}
	if total.Vega != 10 {
		t.Errorf("Vega = %v, want 10", total.Vega)
	}
}

func TestPositionEffectiveMultiplier(t *testing.T) {
	opt := Position{Instrument: InstrumentOption}
	if opt.EffectiveMultiplier() != DefaultOptionMultiplier {
		t.Errorf("option multiplier = %v, want %v", opt.EffectiveMultiplier(), DefaultOptionMultiplier)
	}

	eq := Position{Instrument: InstrumentEquity}
	if eq.EffectiveMultiplier() != 1 {
		t.Errorf("equity multiplier = %v, want 1", eq.EffectiveMultiplier())
	}

	custom := Position{Instrument: InstrumentOption, Multiplier: 10}
	if custom.EffectiveMultiplier() != 10 {
		t.Errorf("explicit multiplier = %v, want 10", custom.EffectiveMultiplier())
	}
}

func TestPositionDirection(t *testing.T) {
	if (Position{Quantity: 5}).Direction() != DirectionLong {
		t.Error("positive quantity should be LONG")
	}
	if (Position{Quantity: -5}).Direction() != DirectionShort {
		t.Error("negative quantity should be SHORT")
	}
	if (Position{}).Direction() != DirectionNeutral {
		t.Error("zero quantity should be NEUTRAL")
	}
}

func TestMarketSnapshotMidPrice(t *testing.T) {
	m := MarketSnapshot{Bid: 1.20, Ask: 1.40, Mark: 1.35}
	if math.Abs(m.MidPrice()-1.30) > 1e-9 {
		t.Errorf("MidPrice = %v, want 1.30", m.MidPrice())
	}

	noQuote := MarketSnapshot{Mark: 1.35}
	if noQuote.MidPrice() != 1.35 {
		t.Errorf("MidPrice = %v, want mark 1.35", noQuote.MidPrice())
	}
}

func TestOptionLegSignedQuantity(t *testing.T) {
	sell := OptionLeg{Side: SideSell, Quantity: 2}
	if sell.SignedQuantity() != -2 {
		t.Errorf("sell SignedQuantity = %v, want -2", sell.SignedQuantity())
	}
	buy := OptionLeg{Side: SideBuy, Quantity: 3}
	if buy.SignedQuantity() != 3 {
		t.Errorf("buy SignedQuantity = %v, want 3", buy.SignedQuantity())
	}
}

func TestSnapshotLimitsAndSummary(t *testing.T) {
	snap := PortfolioRiskSnapshot{
		PortfolioValue: 100000,
		VaREstimates: []VaREstimate{
			{Confidence: 0.95, HorizonDays: 1, Amount: -2100, Percent: 2.1},
			{Confidence: 0.99, HorizonDays: 1, Amount: -3600, Percent: 3.6},
		},
		LimitStatuses: []LimitStatus{
			{Name: "var_percent", Breached: false},
			{Name: "delta_dollars", Breached: false, Warning: true},
		},
		RiskLevel:   RiskModerate,
		GeneratedAt: time.Now(),
	}

	if !snap.LimitsOK() {
		t.Error("LimitsOK = false with no breaches")
	}

	v, ok := snap.VaRAt(0.95, 1)
	if !ok || v.Amount != -2100 {
		t.Errorf("VaRAt(0.95, 1) = %+v, %v", v, ok)
	}
	if _, ok := snap.VaRAt(0.95, 5); ok {
		t.Error("VaRAt reported a missing horizon")
	}

	sum := snap.Summary()
	if sum.VaRAmount != -2100 || sum.VaRPercent != 2.1 {
		t.Errorf("Summary VaR = %v/%v, want -2100/2.1", sum.VaRAmount, sum.VaRPercent)
	}
	if sum.RiskLevel != RiskModerate || !sum.LimitsOK {
		t.Errorf("Summary = %+v", sum)
	}

	snap.LimitStatuses[0].Breached = true
	if snap.LimitsOK() {
		t.Error("LimitsOK = true with a breached limit")
	}
}
