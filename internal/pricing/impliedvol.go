package pricing

import (
	"math"

	"github.com/nitinblue/eTrading-sub003/internal/errors"
	"github.com/nitinblue/eTrading-sub003/internal/models"
	"github.com/nitinblue/eTrading-sub003/pkg/utils"
)

const (
	ivMaxIterations = 100
	ivTolerance     = 1e-6
	ivMinVega       = 1e-10
	ivGuessMin      = 0.01
	ivGuessMax      = 5.0
	ivBisectionLow  = 0.001
	ivBisectionHigh = 5.0
)

// ImpliedVolatility inverts the pricing model to recover the volatility
// implied by an observed market price. Newton-Raphson with a vega step is
// tried first; near-zero vega or non-convergence falls back to bisection over
// [0.001, 5.0]. Deterministic for identical inputs.
func ImpliedVolatility(marketPrice, spot, strike, daysToExpiry float64, kind models.OptionKind, rate float64) (float64, error) {
	if spot <= 0 {
		return 0, errors.NewInvalidInputError("spot", spot, "must be positive")
	}
	if strike <= 0 {
		return 0, errors.NewInvalidInputError("strike", strike, "must be positive")
	}
	if daysToExpiry <= 0 {
		return 0, errors.NewInvalidInputError("days_to_expiry", daysToExpiry, "must be positive")
	}
	if marketPrice <= 0 {
		return 0, errors.NewInvalidInputError("market_price", marketPrice, "must be positive")
	}

	intrinsic := Intrinsic(spot, strike, kind)
	if marketPrice < intrinsic {
		return 0, errors.NewArbitrageViolationError(marketPrice, intrinsic)
	}

	T := daysToExpiry / daysPerYear
	in := Input{
		Spot:         spot,
		Strike:       strike,
		TimeToExpiry: T,
		Rate:         rate,
		Kind:         kind,
	}

	// Manaster-Koehler style starting point.
	guess := math.Sqrt(2*math.Abs(math.Log(spot/strike))/T) + 0.2
	sigma := utils.Clamp(guess, ivGuessMin, ivGuessMax)

	for i := 0; i < ivMaxIterations; i++ {
		in.Volatility = sigma
		price, err := Price(in)
		if err != nil {
			return 0, err
		}
		diff := price - marketPrice
		if math.Abs(diff) < ivTolerance {
			return sigma, nil
		}
		vega := rawVega(in)
		if math.Abs(vega) < ivMinVega {
			break
		}
		sigma -= diff / vega
		if sigma <= 0 {
			sigma = ivGuessMin
		}
	}

	return bisectIV(marketPrice, in)
}

// bisectIV brackets the implied volatility on [ivBisectionLow, ivBisectionHigh]
// and returns the midpoint after at most ivMaxIterations halvings.
func bisectIV(marketPrice float64, in Input) (float64, error) {
	lo, hi := ivBisectionLow, ivBisectionHigh

	priceAt := func(sigma float64) (float64, error) {
		in.Volatility = sigma
		return Price(in)
	}

	fLo, err := priceAt(lo)
	if err != nil {
		return 0, err
	}
	fHi, err := priceAt(hi)
	if err != nil {
		return 0, err
	}
	if (fLo-marketPrice)*(fHi-marketPrice) > 0 {
		return 0, errors.NewConvergenceError("iv_bisection", 0,
			math.Min(math.Abs(fLo-marketPrice), math.Abs(fHi-marketPrice)), ivTolerance)
	}

	var mid float64
	for i := 0; i < ivMaxIterations; i++ {
		mid = (lo + hi) / 2
		fMid, err := priceAt(mid)
		if err != nil {
			return 0, err
		}
		diff := fMid - marketPrice
		if math.Abs(diff) < ivTolerance {
			return mid, nil
		}
		if (fLo-marketPrice)*diff < 0 {
			hi = mid
		} else {
			lo = mid
			fLo = fMid
		}
	}

	return (lo + hi) / 2, nil
}

// IVRank returns the position of current IV within the 52-week range as a
// value in [0, 100]. A degenerate range returns 50.
func IVRank(current, low52, high52 float64) float64 {
	if high52-low52 <= 0 {
		return 50
	}
	return utils.Clamp((current-low52)/(high52-low52)*100, 0, 100)
}

// IVPercentile returns the percentage of historical observations strictly
// below current. An empty history returns 50.
func IVPercentile(current float64, historical []float64) float64 {
	if len(historical) == 0 {
		return 50
	}
	below := 0
	for _, v := range historical {
		if v < current {
			below++
		}
	}
	return float64(below) / float64(len(historical)) * 100
}
