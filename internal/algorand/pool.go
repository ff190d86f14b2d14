package algorand

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// MicroAlgosPerAlgo converts base units.
const MicroAlgosPerAlgo = 1_000_000

// Pools is a market's decoded pool state.
type Pools struct {
	Yes      decimal.Decimal
	No       decimal.Decimal
	YesPrice decimal.Decimal
}

var half = decimal.RequireFromString("0.5")

// PoolPrice reads the YES and NO pools (microAlgos) from state and returns
// them in ALGO with the implied YES price yes/(yes+no). Empty pools price at
// 0.5.
func PoolPrice(state AppState, yesKey, noKey string) (Pools, error) {
	yes, ok := state.Uint(yesKey)
	if !ok {
		return Pools{}, fmt.Errorf("algorand: global state has no uint %q", yesKey)
	}
	no, ok := state.Uint(noKey)
	if !ok {
		return Pools{}, fmt.Errorf("algorand: global state has no uint %q", noKey)
	}

	y := microAlgos(yes)
	n := microAlgos(no)
	p := Pools{
		Yes:      y.Shift(-6),
		No:       n.Shift(-6),
		YesPrice: half,
	}
	if total := y.Add(n); total.IsPositive() {
		p.YesPrice = y.DivRound(total, 6)
	}
	return p, nil
}

func microAlgos(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}
