// Package factors maps positions to underlying-level sensitivity totals.
//
// A Container is created per analysis run and discarded after use. It follows
// a single-writer discipline: concurrent AddSensitivity calls on the same
// container must be serialized by the caller, while reads after aggregation
// completes are safe from multiple readers.
package factors

import (
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/nitinblue/eTrading-sub003/internal/models"
)

// Sensitivity represents one position's dollar-scaled contribution to an
// underlying risk factor.
type Sensitivity struct {
	PositionID string
	Underlying string
	Delta      float64
	Gamma      float64
	Theta      float64
	Vega       float64
	Rho        float64
}

// FactorTotals holds aggregated sensitivities for one underlying.
type FactorTotals struct {
	Underlying string
	Positions  int
	Delta      float64
	Gamma      float64
	Theta      float64
	Vega       float64
	Rho        float64
}

// Container aggregates sensitivities keyed by underlying.
type Container struct {
	byUnderlying map[string][]Sensitivity

	// cached aggregates, rebuilt on demand
	totals     map[string]FactorTotals
	portfolio  FactorTotals
	cacheValid bool
}

// NewContainer creates an empty risk factor container.
func NewContainer() *Container {
	return &Container{
		byUnderlying: make(map[string][]Sensitivity),
	}
}

// FromPositions builds a container from portfolio positions. Equity positions
// contribute delta equal to their quantity; option positions contribute their
// full position-scaled Greeks snapshot. Positions without usable sensitivities
// are skipped.
func FromPositions(positions []models.Position) *Container {
	c := NewContainer()
	for _, pos := range positions {
		if pos.Underlying == "" || pos.Quantity == 0 {
			continue
		}
		switch {
		case pos.Instrument == models.InstrumentEquity:
			c.AddSensitivity(Sensitivity{
				PositionID: pos.ID,
				Underlying: pos.Underlying,
				Delta:      pos.Quantity,
			})
		case pos.IsOption() && pos.Greeks != nil:
			c.AddSensitivity(Sensitivity{
				PositionID: pos.ID,
				Underlying: pos.Underlying,
				Delta:      pos.Greeks.Delta,
				Gamma:      pos.Greeks.Gamma,
				Theta:      pos.Greeks.Theta,
				Vega:       pos.Greeks.Vega,
				Rho:        pos.Greeks.Rho,
			})
		}
	}
	return c
}

// AddSensitivity records a sensitivity under its underlying and invalidates
// cached aggregates.
func (c *Container) AddSensitivity(s Sensitivity) {
	if s.Underlying == "" {
		return
	}
	c.byUnderlying[s.Underlying] = append(c.byUnderlying[s.Underlying], s)
	c.cacheValid = false
}

// Len returns the total number of recorded sensitivities.
func (c *Container) Len() int {
	n := 0
	for _, list := range c.byUnderlying {
		n += len(list)
	}
	return n
}

// Underlyings returns the risk factor keys in sorted order.
func (c *Container) Underlyings() []string {
	keys := make([]string, 0, len(c.byUnderlying))
	for k := range c.byUnderlying {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FactorTotals returns aggregated sensitivities for one underlying.
func (c *Container) FactorTotals(underlying string) (FactorTotals, bool) {
	c.aggregate()
	t, ok := c.totals[underlying]
	return t, ok
}

// PortfolioTotals returns portfolio-wide aggregated sensitivities.
func (c *Container) PortfolioTotals() FactorTotals {
	c.aggregate()
	return c.portfolio
}

// AllFactorTotals returns per-factor aggregates sorted by underlying.
func (c *Container) AllFactorTotals() []FactorTotals {
	c.aggregate()
	out := make([]FactorTotals, 0, len(c.totals))
	for _, u := range c.Underlyings() {
		out = append(out, c.totals[u])
	}
	return out
}

// FactorsNeedingHedge returns factors whose aggregated magnitude exceeds any
// configured threshold. A non-positive threshold disables that check.
func (c *Container) FactorsNeedingHedge(deltaThreshold, gammaThreshold, vegaThreshold float64) []FactorTotals {
	c.aggregate()
	var out []FactorTotals
	for _, u := range c.Underlyings() {
		t := c.totals[u]
		exceeds := false
		if deltaThreshold > 0 && abs(t.Delta) > deltaThreshold {
			exceeds = true
		}
		if gammaThreshold > 0 && abs(t.Gamma) > gammaThreshold {
			exceeds = true
		}
		if vegaThreshold > 0 && abs(t.Vega) > vegaThreshold {
			exceeds = true
		}
		if exceeds {
			out = append(out, t)
		}
	}
	return out
}

// aggregate rebuilds the cached per-factor and portfolio totals. Each Greek is
// summed per underlying with floats.Sum, so insertion order does not affect
// totals within floating-point tolerance.
func (c *Container) aggregate() {
	if c.cacheValid {
		return
	}
	c.totals = make(map[string]FactorTotals, len(c.byUnderlying))
	c.portfolio = FactorTotals{Underlying: "PORTFOLIO"}
	for underlying, list := range c.byUnderlying {
		n := len(list)
		delta := make([]float64, n)
		gamma := make([]float64, n)
		theta := make([]float64, n)
		vega := make([]float64, n)
		rho := make([]float64, n)
		for i, s := range list {
			delta[i] = s.Delta
			gamma[i] = s.Gamma
			theta[i] = s.Theta
			vega[i] = s.Vega
			rho[i] = s.Rho
		}
		t := FactorTotals{
			Underlying: underlying,
			Positions:  n,
			Delta:      floats.Sum(delta),
			Gamma:      floats.Sum(gamma),
			Theta:      floats.Sum(theta),
			Vega:       floats.Sum(vega),
			Rho:        floats.Sum(rho),
		}
		c.totals[underlying] = t
		c.portfolio.Positions += n
		c.portfolio.Delta += t.Delta
		c.portfolio.Gamma += t.Gamma
		c.portfolio.Theta += t.Theta
		c.portfolio.Vega += t.Vega
		c.portfolio.Rho += t.Rho
	}
	c.cacheValid = true
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
