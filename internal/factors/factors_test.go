package factors

import (
	"math"
	"testing"
	"time"

	"github.com/nitinblue/eTrading-sub003/internal/models"
)

func sampleSensitivities() []Sensitivity {
	return []Sensitivity{
		{Underlying: "SPY", Delta: -30, Gamma: -1.2, Theta: 5, Vega: -40, Rho: -8},
		{Underlying: "SPY", Delta: 100, Gamma: 0, Theta: 0, Vega: 0, Rho: 0},
		{Underlying: "QQQ", Delta: 25, Gamma: 0.8, Theta: -3, Vega: 22, Rho: 4},
		{Underlying: "IWM", Delta: -10, Gamma: 0.1, Theta: 1, Vega: -5, Rho: -1},
	}
}

func TestContainerAggregation(t *testing.T) {
	c := NewContainer()
	for _, s := range sampleSensitivities() {
		c.AddSensitivity(s)
	}

	if c.Len() != 4 {
		t.Fatalf("Len = %d, want 4", c.Len())
	}

	spy, ok := c.FactorTotals("SPY")
	if !ok {
		t.Fatal("FactorTotals(SPY) not found")
	}
	if math.Abs(spy.Delta-70) > 1e-9 {
		t.Errorf("SPY delta = %v, want 70", spy.Delta)
	}
	if math.Abs(spy.Theta-5) > 1e-9 {
		t.Errorf("SPY theta = %v, want 5", spy.Theta)
	}

	total := c.PortfolioTotals()
	if math.Abs(total.Delta-85) > 1e-9 {
		t.Errorf("portfolio delta = %v, want 85", total.Delta)
	}
	if math.Abs(total.Vega-(-23)) > 1e-9 {
		t.Errorf("portfolio vega = %v, want -23", total.Vega)
	}

	underlyings := c.Underlyings()
	want := []string{"IWM", "QQQ", "SPY"}
	if len(underlyings) != len(want) {
		t.Fatalf("Underlyings = %v, want %v", underlyings, want)
	}
	for i := range want {
		if underlyings[i] != want[i] {
			t.Errorf("Underlyings[%d] = %q, want %q", i, underlyings[i], want[i])
		}
	}
}

func TestAggregationIsOrderIndependent(t *testing.T) {
	forward := NewContainer()
	reverse := NewContainer()
	sens := sampleSensitivities()
	for _, s := range sens {
		forward.AddSensitivity(s)
	}
	for i := len(sens) - 1; i >= 0; i-- {
		reverse.AddSensitivity(sens[i])
	}

	a := forward.PortfolioTotals()
	b := reverse.PortfolioTotals()
	if math.Abs(a.Delta-b.Delta) > 1e-9 ||
		math.Abs(a.Gamma-b.Gamma) > 1e-9 ||
		math.Abs(a.Theta-b.Theta) > 1e-9 ||
		math.Abs(a.Vega-b.Vega) > 1e-9 ||
		math.Abs(a.Rho-b.Rho) > 1e-9 {
		t.Errorf("order-dependent totals: %+v vs %+v", a, b)
	}
}

func TestFromPositionsShortPut(t *testing.T) {
	contract := &models.OptionContract{
		Underlying: "SPY",
		Strike:     480,
		Expiry:     time.Now().AddDate(0, 0, 30),
		Kind:       models.Put,
	}
	positions := []models.Position{
		{
			ID:         "pos-1",
			Underlying: "SPY",
			Instrument: models.InstrumentOption,
			Quantity:   -1,
			Contract:   contract,
			Greeks:     &models.PositionGreeks{Delta: -30, Gamma: -1.5, Theta: 5, Vega: -45, Rho: -9},
		},
	}

	c := FromPositions(positions)
	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1", c.Len())
	}
	spy, ok := c.FactorTotals("SPY")
	if !ok {
		t.Fatal("FactorTotals(SPY) not found")
	}
	if math.Abs(spy.Delta-(-30)) > 1e-9 {
		t.Errorf("delta = %v, want -30", spy.Delta)
	}
	if math.Abs(spy.Theta-5) > 1e-9 {
		t.Errorf("theta = %v, want 5", spy.Theta)
	}

	// A 30-delta book sits under a 50-delta hedge threshold.
	if flagged := c.FactorsNeedingHedge(50, 0, 0); len(flagged) != 0 {
		t.Errorf("flagged = %+v, want none", flagged)
	}
}

func TestFromPositionsEquityUsesQuantityAsDelta(t *testing.T) {
	positions := []models.Position{
		{ID: "pos-2", Underlying: "QQQ", Instrument: models.InstrumentEquity, Quantity: 200},
	}
	c := FromPositions(positions)
	qqq, ok := c.FactorTotals("QQQ")
	if !ok {
		t.Fatal("FactorTotals(QQQ) not found")
	}
	if qqq.Delta != 200 {
		t.Errorf("equity delta = %v, want 200", qqq.Delta)
	}
	if qqq.Gamma != 0 || qqq.Vega != 0 {
		t.Errorf("equity gamma/vega = %v/%v, want 0/0", qqq.Gamma, qqq.Vega)
	}
}

func TestFactorsNeedingHedge(t *testing.T) {
	c := NewContainer()
	c.AddSensitivity(Sensitivity{Underlying: "SPY", Delta: -30, Theta: 5, Vega: -40})
	c.AddSensitivity(Sensitivity{Underlying: "QQQ", Delta: 80, Theta: -2, Vega: 10})

	// Delta threshold 50 flags only QQQ.
	flagged := c.FactorsNeedingHedge(50, 0, 0)
	if len(flagged) != 1 || flagged[0].Underlying != "QQQ" {
		t.Errorf("flagged = %+v, want only QQQ", flagged)
	}

	// Thresholds above every exposure flag nothing.
	if flagged := c.FactorsNeedingHedge(100, 100, 100); len(flagged) != 0 {
		t.Errorf("flagged = %+v, want none", flagged)
	}

	// Vega threshold picks up the short-vega book.
	flagged = c.FactorsNeedingHedge(0, 0, 30)
	if len(flagged) != 1 || flagged[0].Underlying != "SPY" {
		t.Errorf("flagged = %+v, want only SPY", flagged)
	}
}
