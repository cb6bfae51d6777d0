// Package pricing provides closed-form option pricing, Greeks, and implied
// volatility inversion. All functions are pure and safe for concurrent use.
package pricing

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/nitinblue/eTrading-sub003/internal/errors"
	"github.com/nitinblue/eTrading-sub003/internal/models"
)

const (
	// expiryEpsilon is the time-to-expiry below which options are priced at
	// intrinsic value to avoid a vanishing sqrt(T) denominator.
	expiryEpsilon = 1e-8

	daysPerYear = 365.0
)

var stdNormal = distuv.Normal{Mu: 0, Sigma: 1}

// Input holds the market inputs for pricing a European option.
type Input struct {
	Spot          float64
	Strike        float64
	TimeToExpiry  float64 // years
	Rate          float64 // annualized risk-free rate
	DividendYield float64 // annualized continuous yield
	Volatility    float64 // annualized
	Kind          models.OptionKind
}

func (in Input) validate() error {
	if in.Spot <= 0 {
		return errors.NewInvalidInputError("spot", in.Spot, "must be positive")
	}
	if in.Strike <= 0 {
		return errors.NewInvalidInputError("strike", in.Strike, "must be positive")
	}
	if in.Volatility <= 0 {
		return errors.NewInvalidInputError("volatility", in.Volatility, "must be positive")
	}
	if in.TimeToExpiry < 0 {
		return errors.NewInvalidInputError("time_to_expiry", in.TimeToExpiry, "must be non-negative")
	}
	return nil
}

// Intrinsic returns the intrinsic value of an option.
func Intrinsic(spot, strike float64, kind models.OptionKind) float64 {
	if kind == models.Call {
		return math.Max(spot-strike, 0)
	}
	return math.Max(strike-spot, 0)
}

// Price returns the Black-Scholes-Merton theoretical price. At or below
// expiryEpsilon time to expiry, it returns intrinsic value directly.
func Price(in Input) (float64, error) {
	if err := in.validate(); err != nil {
		return 0, err
	}
	if in.TimeToExpiry <= expiryEpsilon {
		return Intrinsic(in.Spot, in.Strike, in.Kind), nil
	}

	d1, d2 := dValues(in)
	discR := math.Exp(-in.Rate * in.TimeToExpiry)
	discQ := math.Exp(-in.DividendYield * in.TimeToExpiry)

	if in.Kind == models.Call {
		return in.Spot*discQ*stdNormal.CDF(d1) - in.Strike*discR*stdNormal.CDF(d2), nil
	}
	return in.Strike*discR*stdNormal.CDF(-d2) - in.Spot*discQ*stdNormal.CDF(-d1), nil
}

// ComputeGreeks returns the option sensitivities: delta, gamma, theta per
// calendar day, vega per 1% volatility move, and rho per 1% rate move.
// At expiry, delta collapses to 1/0 (call) or -1/0 (put) by moneyness and all
// other Greeks are zero.
func ComputeGreeks(in Input) (models.Greeks, error) {
	if err := in.validate(); err != nil {
		return models.Greeks{}, err
	}
	if in.TimeToExpiry <= expiryEpsilon {
		return expiryGreeks(in), nil
	}

	d1, d2 := dValues(in)
	sqrtT := math.Sqrt(in.TimeToExpiry)
	discR := math.Exp(-in.Rate * in.TimeToExpiry)
	discQ := math.Exp(-in.DividendYield * in.TimeToExpiry)
	pdf := stdNormal.Prob(d1)

	g := models.Greeks{
		Gamma: discQ * pdf / (in.Spot * in.Volatility * sqrtT),
		Vega:  in.Spot * discQ * pdf * sqrtT / 100,
	}

	// Annual theta, converted to a per-day figure below.
	thetaCommon := -in.Spot * discQ * pdf * in.Volatility / (2 * sqrtT)
	if in.Kind == models.Call {
		g.Delta = discQ * stdNormal.CDF(d1)
		theta := thetaCommon - in.Rate*in.Strike*discR*stdNormal.CDF(d2) +
			in.DividendYield*in.Spot*discQ*stdNormal.CDF(d1)
		g.Theta = theta / daysPerYear
		g.Rho = in.Strike * in.TimeToExpiry * discR * stdNormal.CDF(d2) / 100
	} else {
		g.Delta = discQ * (stdNormal.CDF(d1) - 1)
		theta := thetaCommon + in.Rate*in.Strike*discR*stdNormal.CDF(-d2) -
			in.DividendYield*in.Spot*discQ*stdNormal.CDF(-d1)
		g.Theta = theta / daysPerYear
		g.Rho = -in.Strike * in.TimeToExpiry * discR * stdNormal.CDF(-d2) / 100
	}

	return g, nil
}

func expiryGreeks(in Input) models.Greeks {
	var delta float64
	if in.Kind == models.Call {
		if in.Spot > in.Strike {
			delta = 1
		}
	} else {
		if in.Spot < in.Strike {
			delta = -1
		}
	}
	return models.Greeks{Delta: delta}
}

func dValues(in Input) (float64, float64) {
	sqrtT := math.Sqrt(in.TimeToExpiry)
	d1 := (math.Log(in.Spot/in.Strike) +
		(in.Rate-in.DividendYield+0.5*in.Volatility*in.Volatility)*in.TimeToExpiry) /
		(in.Volatility * sqrtT)
	return d1, d1 - in.Volatility*sqrtT
}

// rawVega returns the unscaled Black-Scholes vega (per unit volatility move),
// used as the Newton-Raphson derivative in the IV solver.
func rawVega(in Input) float64 {
	if in.TimeToExpiry <= expiryEpsilon {
		return 0
	}
	d1, _ := dValues(in)
	discQ := math.Exp(-in.DividendYield * in.TimeToExpiry)
	return in.Spot * discQ * stdNormal.Prob(d1) * math.Sqrt(in.TimeToExpiry)
}
