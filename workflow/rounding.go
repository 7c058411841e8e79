package workflow

import (
	"errors"

	"github.com/shopspring/decimal"
)

// AllocateProportionally splits total across weights so the pieces sum back
// to the total exactly. All pieces but the last are rounded to 2dp; the last
// piece takes the exact remainder. A zero total weight falls back to an
// equal split under the same remainder rule.
func AllocateProportionally(total decimal.Decimal, weights []decimal.Decimal) ([]decimal.Decimal, error) {
	if len(weights) == 0 {
		return nil, errors.New("no weights to allocate across")
	}

	totalWeight := decimal.Zero
	for _, w := range weights {
		if w.IsNegative() {
			return nil, errors.New("allocation weights cannot be negative")
		}
		totalWeight = totalWeight.Add(w)
	}

	pieces := make([]decimal.Decimal, len(weights))
	allocated := decimal.Zero
	for i := range weights {
		if i == len(weights)-1 {
			pieces[i] = total.Sub(allocated)
			break
		}
		var share decimal.Decimal
		if totalWeight.IsZero() {
			share = total.Div(decimal.NewFromInt(int64(len(weights)))).Round(2)
		} else {
			share = total.Mul(weights[i]).Div(totalWeight).Round(2)
		}
		pieces[i] = share
		allocated = allocated.Add(share)
	}
	return pieces, nil
}
