package models

// Side represents the side of an option leg.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Well-known strategy type identifiers used by what-if scenarios and
// concentration grouping.
const (
	StrategyShortPut        = "short_put"
	StrategyPutCreditSpread = "put_credit_spread"
	StrategyIronCondor      = "iron_condor"
	StrategyCustom          = "custom"
)

// OptionLeg represents one leg of an option strategy.
type OptionLeg struct {
	Contract OptionContract
	Side     Side
	Quantity float64 // positive; direction carried by Side
	Premium  float64 // per-unit premium, if known
}

// SignedQuantity returns the leg quantity signed by side.
func (l OptionLeg) SignedQuantity() float64 {
	if l.Side == SideSell {
		return -l.Quantity
	}
	return l.Quantity
}
