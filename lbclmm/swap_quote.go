package lbclmm

import (
	"github.com/shopspring/decimal"

	dlmmmath "github.com/krazyTry/dlmm-go/lbclmm/math"
	"github.com/krazyTry/dlmm-go/lbclmm/shared"
)

// QuoteResult is a read-only swap simulation.
type QuoteResult struct {
	shared.SwapResult
	PriceImpact decimal.Decimal
}

// Quote simulates a swap against the current pool state without mutating it.
func (p *Pool) Quote(amountIn uint64, direction shared.SwapDirection, timestamp uint64) (*QuoteResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	spotPriceQ64, err := p.ledger.priceOf(p.activeID)
	if err != nil {
		return nil, err
	}
	plan, err := p.planSwap(amountIn, direction, shared.SwapModeExactIn, timestamp)
	if err != nil {
		return nil, err
	}
	return &QuoteResult{
		SwapResult:  *plan.result,
		PriceImpact: priceImpact(plan.result, dlmmmath.Q64ToDecimal(spotPriceQ64, -1), direction),
	}, nil
}

// priceImpact compares the realized execution price against the spot price
// of the starting active bin.
func priceImpact(result *shared.SwapResult, spot decimal.Decimal, direction shared.SwapDirection) decimal.Decimal {
	if result.AmountIn <= result.Fee || result.AmountOut == 0 || spot.IsZero() {
		return decimal.Zero
	}
	netIn := decimal.NewFromUint64(result.AmountIn - result.Fee)
	out := decimal.NewFromUint64(result.AmountOut)
	execution := out.Div(netIn)
	if direction == shared.SwapForX {
		// Spot is quoted in Y per X; invert for Y-to-X trades.
		spot = decimal.NewFromInt(1).Div(spot)
	}
	return spot.Sub(execution).Abs().Div(spot)
}
