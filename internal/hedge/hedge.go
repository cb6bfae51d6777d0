// Package hedge solves for recommended hedge quantities among candidate
// instruments given current and target Greek profiles.
package hedge

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/nitinblue/eTrading-sub003/internal/config"
	"github.com/nitinblue/eTrading-sub003/internal/logging"
	"github.com/nitinblue/eTrading-sub003/pkg/utils"
)

// rankTolerance is the relative singular value cutoff used when truncating
// the SVD pseudo-inverse.
const rankTolerance = 1e-12

// GreekVector holds the Greek dimensions the hedge solver operates on.
type GreekVector struct {
	Delta float64
	Theta float64
	Vega  float64
}

// Instrument represents a candidate hedge instrument with per-unit Greeks and
// an estimated per-unit worst-case loss.
type Instrument struct {
	Symbol         string
	Delta          float64
	Theta          float64
	Vega           float64
	MaxLossPerUnit float64
	Price          float64
}

// Recommendation holds a signed hedge quantity for one instrument.
type Recommendation struct {
	Symbol               string
	Quantity             float64
	EstimatedRiskDollars float64
	PercentOfCapital     float64
}

// Result holds the hedge solve output.
type Result struct {
	Recommendations []Recommendation
	ConditionNumber float64
	Warnings        []string
}

// Calculator solves the hedge regression.
type Calculator struct {
	maxConditionNumber float64
	minQuantity        float64
	logger             zerolog.Logger
}

// NewCalculator creates a hedge calculator.
func NewCalculator(cfg config.HedgingConfig, logger zerolog.Logger) *Calculator {
	maxCond := cfg.MaxConditionNumber
	if maxCond <= 0 {
		maxCond = 1e6
	}
	minQty := cfg.MinQuantity
	if minQty <= 0 {
		minQty = 1e-9
	}
	return &Calculator{
		maxConditionNumber: maxCond,
		minQuantity:        minQty,
		logger:             logger,
	}
}

// Solve computes per-instrument quantities that move the portfolio's Greeks
// from current toward target via least-squares regression with no intercept,
// treating instruments' per-unit Greeks as the design matrix. With fewer
// instruments than Greek dimensions the residual is minimized; with more, the
// minimum-norm solution is returned. Zero-quantity results are suppressed.
func (c *Calculator) Solve(current, target GreekVector, instruments []Instrument, capital float64) (*Result, error) {
	result := &Result{}
	if len(instruments) == 0 {
		return result, nil
	}

	gap := GreekVector{
		Delta: target.Delta - current.Delta,
		Theta: target.Theta - current.Theta,
		Vega:  target.Vega - current.Vega,
	}

	rows := activeDimensions(gap, instruments)
	if len(rows) == 0 {
		return result, nil
	}

	m, n := len(rows), len(instruments)
	a := mat.NewDense(m, n, nil)
	b := mat.NewVecDense(m, nil)
	for i, dim := range rows {
		b.SetVec(i, dim.gap)
		for j, inst := range instruments {
			a.Set(i, j, dim.exposure(inst))
		}
	}

	quantities, cond, err := solveLeastSquares(a, b)
	if err != nil {
		return nil, err
	}
	result.ConditionNumber = cond

	if cond > c.maxConditionNumber {
		result.Warnings = append(result.Warnings, warnIllConditioned(cond, c.maxConditionNumber))
		c.logger.Warn().
			Float64("condition_number", cond).
			Float64("max_condition_number", c.maxConditionNumber).
			Msg("Hedge design matrix is ill-conditioned; quantities may be economically implausible")
	}

	for j, inst := range instruments {
		qty := quantities[j]
		if math.Abs(qty) < c.minQuantity {
			continue
		}
		risk := math.Abs(qty) * inst.MaxLossPerUnit
		rec := Recommendation{
			Symbol:               inst.Symbol,
			Quantity:             qty,
			EstimatedRiskDollars: risk,
			PercentOfCapital:     utils.PercentOf(risk, capital),
		}
		result.Recommendations = append(result.Recommendations, rec)
		logging.LogHedgeRecommendation(c.logger, inst.Symbol, qty, risk)
	}

	return result, nil
}

type dimension struct {
	gap      float64
	exposure func(Instrument) float64
}

// activeDimensions returns the Greek dimensions in use: those where the gap or
// any instrument exposure is nonzero.
func activeDimensions(gap GreekVector, instruments []Instrument) []dimension {
	dims := []dimension{
		{gap: gap.Delta, exposure: func(i Instrument) float64 { return i.Delta }},
		{gap: gap.Theta, exposure: func(i Instrument) float64 { return i.Theta }},
		{gap: gap.Vega, exposure: func(i Instrument) float64 { return i.Vega }},
	}

	var active []dimension
	for _, d := range dims {
		inUse := d.gap != 0
		for _, inst := range instruments {
			if d.exposure(inst) != 0 {
				inUse = true
				break
			}
		}
		if inUse {
			active = append(active, d)
		}
	}
	return active
}

// solveLeastSquares computes the minimum-norm least-squares solution of
// a·x = b via a rank-truncated SVD pseudo-inverse, returning the solution and
// the design matrix condition number.
func solveLeastSquares(a *mat.Dense, b *mat.VecDense) ([]float64, float64, error) {
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, 0, &solveError{}
	}

	values := svd.Values(nil)
	rank := 0
	for _, v := range values {
		if v > rankTolerance*values[0] {
			rank++
		}
	}
	if rank == 0 {
		_, n := a.Dims()
		return make([]float64, n), math.Inf(1), nil
	}

	cond := math.Inf(1)
	if values[len(values)-1] > 0 {
		cond = values[0] / values[len(values)-1]
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	// x = V · diag(1/sigma) · U^T · b, truncated at rank
	_, n := a.Dims()
	x := make([]float64, n)
	for k := 0; k < rank; k++ {
		var utb float64
		for i := 0; i < b.Len(); i++ {
			utb += u.At(i, k) * b.AtVec(i)
		}
		scale := utb / values[k]
		for j := 0; j < n; j++ {
			x[j] += v.At(j, k) * scale
		}
	}
	return x, cond, nil
}

func warnIllConditioned(cond, limit float64) string {
	return fmt.Sprintf("hedge design matrix condition number %.3g exceeds %.3g; recommended quantities may be unstable",
		cond, limit)
}

type solveError struct{}

func (e *solveError) Error() string {
	return "hedge solve: SVD factorization failed"
}
