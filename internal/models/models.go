// Package models provides domain models for the risk engine.
package models

import (
	"fmt"
	"math"
	"time"
)

// OptionKind represents the kind of an option contract.
type OptionKind string

const (
	Call OptionKind = "CALL"
	Put  OptionKind = "PUT"
)

// InstrumentType represents the type of instrument backing a position.
type InstrumentType string

const (
	InstrumentEquity InstrumentType = "EQUITY"
	InstrumentOption InstrumentType = "OPTION"
)

// Direction represents the directional bias of a position.
type Direction string

const (
	DirectionLong    Direction = "LONG"
	DirectionShort   Direction = "SHORT"
	DirectionNeutral Direction = "NEUTRAL"
)

// DefaultOptionMultiplier is the contract multiplier for standard equity options.
const DefaultOptionMultiplier = 100.0

// OptionContract represents an option contract. Immutable once created.
type OptionContract struct {
	Underlying string
	Strike     float64
	Expiry     time.Time
	Kind       OptionKind
}

// Validate checks that the contract terms are well-formed.
func (c OptionContract) Validate() error {
	if c.Underlying == "" {
		return fmt.Errorf("option contract: empty underlying")
	}
	if c.Strike <= 0 {
		return fmt.Errorf("option contract %s: strike must be positive, got %.4f", c.Underlying, c.Strike)
	}
	if c.Kind != Call && c.Kind != Put {
		return fmt.Errorf("option contract %s: unknown kind %q", c.Underlying, c.Kind)
	}
	return nil
}

// DaysToExpiry returns the number of calendar days until expiry.
func (c OptionContract) DaysToExpiry(now time.Time) float64 {
	return c.Expiry.Sub(now).Hours() / 24
}

// YearsToExpiry returns the time to expiry in years, floored at zero.
func (c OptionContract) YearsToExpiry(now time.Time) float64 {
	return math.Max(c.Expiry.Sub(now).Hours()/24/365, 0)
}

// Greeks represents per-unit option sensitivities.
// Theta is per calendar day, vega per 1% volatility move, rho per 1% rate move.
type Greeks struct {
	Delta float64
	Gamma float64
	Theta float64
	Vega  float64
	Rho   float64
}

// Scale converts per-unit Greeks into a position-scaled (dollar) form.
func (g Greeks) Scale(quantity, multiplier float64) PositionGreeks {
	f := quantity * multiplier
	return PositionGreeks{
		Delta: g.Delta * f,
		Gamma: g.Gamma * f,
		Theta: g.Theta * f,
		Vega:  g.Vega * f,
		Rho:   g.Rho * f,
	}
}

// PositionGreeks represents position-scaled (dollar) sensitivities.
// Position-scaled Greeks are additive across positions sharing a risk factor.
type PositionGreeks struct {
	Delta float64
	Gamma float64
	Theta float64
	Vega  float64
	Rho   float64
}

// Add returns the sum of two position-scaled Greek sets.
func (g PositionGreeks) Add(other PositionGreeks) PositionGreeks {
	return PositionGreeks{
		Delta: g.Delta + other.Delta,
		Gamma: g.Gamma + other.Gamma,
		Theta: g.Theta + other.Theta,
		Vega:  g.Vega + other.Vega,
		Rho:   g.Rho + other.Rho,
	}
}

// Position represents a portfolio position. Owned by the portfolio sync layer;
// the risk core treats positions as read-only.
type Position struct {
	ID          string
	Underlying  string
	Instrument  InstrumentType
	Contract    *OptionContract // nil for equity positions
	Quantity    float64         // signed; negative = short
	Multiplier  float64         // contract multiplier, 1 for equity
	CostBasis   float64
	MarketValue float64
	Greeks      *PositionGreeks // dollar-scaled snapshot, optional
}

// EffectiveMultiplier returns the contract multiplier, defaulting by instrument type.
func (p Position) EffectiveMultiplier() float64 {
	if p.Multiplier > 0 {
		return p.Multiplier
	}
	if p.Instrument == InstrumentOption {
		return DefaultOptionMultiplier
	}
	return 1
}

// Direction returns the directional bias of the position.
func (p Position) Direction() Direction {
	switch {
	case p.Quantity > 0:
		return DirectionLong
	case p.Quantity < 0:
		return DirectionShort
	default:
		return DirectionNeutral
	}
}

// IsOption reports whether the position is an option position with contract terms.
func (p Position) IsOption() bool {
	return p.Instrument == InstrumentOption && p.Contract != nil
}

// MarketSnapshot represents market state for one underlying at a point in time.
// Supplied per evaluation; never mutated by the risk core.
type MarketSnapshot struct {
	Underlying   string
	Spot         float64
	Bid          float64
	Ask          float64
	Mark         float64
	RiskFreeRate float64
	Timestamp    time.Time
}

// MidPrice returns the bid/ask midpoint, falling back to the mark.
func (m MarketSnapshot) MidPrice() float64 {
	if m.Bid > 0 && m.Ask > 0 {
		return (m.Bid + m.Ask) / 2
	}
	return m.Mark
}
