package lbclmm

import (
	"math/big"

	dlmmmath "github.com/krazyTry/dlmm-go/lbclmm/math"
	"github.com/krazyTry/dlmm-go/lbclmm/math/pool_fees"
	"github.com/krazyTry/dlmm-go/lbclmm/shared"
)

type plannedStep struct {
	binID          int32
	grossIn        uint64
	netIn          uint64
	amountOut      uint64
	fee            uint64
	protocolFee    uint64
	referralFee    uint64
	feeGrowthDelta *big.Int
}

// swapPlan is the fully computed effect of a swap. Nothing in the pool is
// touched until the plan commits, so every hard failure is side-effect free
// and quoting is just planning without committing.
type swapPlan struct {
	steps      []plannedStep
	result     *shared.SwapResult
	volatility shared.VolatilityTracker
	endBinID   int32
	direction  shared.SwapDirection
}

// SwapExactIn swaps up to amountIn of the input token, walking funded bins
// in the swap direction. A partial fill is reported through IsExceed on the
// result, never as an error.
func (p *Pool) SwapExactIn(amountIn uint64, direction shared.SwapDirection, timestamp uint64) (*shared.SwapResult, error) {
	return p.swap(amountIn, direction, shared.SwapModeExactIn, timestamp, nil)
}

// SwapExactOut swaps for up to amountOut of the output token.
func (p *Pool) SwapExactOut(amountOut uint64, direction shared.SwapDirection, timestamp uint64) (*shared.SwapResult, error) {
	return p.swap(amountOut, direction, shared.SwapModeExactOut, timestamp, nil)
}

// swap plans, runs the optional preCommit hook on the sized result while the
// pool is still untouched, then commits. A hook error aborts the swap with
// no effect.
func (p *Pool) swap(amount uint64, direction shared.SwapDirection, mode shared.SwapMode, timestamp uint64, preCommit func(*shared.SwapResult) error) (*shared.SwapResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accrueRewards(timestamp)
	plan, err := p.planSwap(amount, direction, mode, timestamp)
	if err != nil {
		return nil, err
	}
	if preCommit != nil {
		if err := preCommit(plan.result); err != nil {
			return nil, err
		}
	}
	if err := p.commitSwap(plan); err != nil {
		return nil, err
	}
	return plan.result, nil
}

func (p *Pool) planSwap(amount uint64, direction shared.SwapDirection, mode shared.SwapMode, timestamp uint64) (*swapPlan, error) {
	if !direction.Valid() {
		return nil, ErrInvalidDirection
	}
	if amount == 0 {
		return nil, ErrZeroAmount
	}

	vt := p.volatility
	pool_fees.UpdateReferences(&vt, p.dynamicFee, p.activeID, timestamp)
	pool_fees.UpdateVolatilityAccumulator(&vt, p.dynamicFee, p.activeID)

	remaining := new(big.Int).SetUint64(amount)
	binID := p.activeID
	isExceed := false

	var steps []plannedStep
	totalIn := new(big.Int)
	totalOut := new(big.Int)
	totalFee := new(big.Int)
	totalProtocol := new(big.Int)
	totalReferral := new(big.Int)

	for remaining.Sign() > 0 {
		bin := p.ledger.GetBin(binID)
		if bin.reserveOut(direction) == 0 {
			next, ok := p.ledger.NextFundedBin(binID, direction)
			if !ok {
				isExceed = true
				break
			}
			binID = next
			pool_fees.UpdateVolatilityAccumulator(&vt, p.dynamicFee, binID)
			continue
		}

		price, err := p.ledger.priceOf(binID)
		if err != nil {
			return nil, err
		}
		feeNum := p.totalFeeNumerator(vt)

		step, err := p.planStep(&bin, binID, price, feeNum, remaining, direction, mode)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)

		if mode == shared.SwapModeExactIn {
			remaining.Sub(remaining, new(big.Int).SetUint64(step.grossIn))
		} else {
			remaining.Sub(remaining, new(big.Int).SetUint64(step.amountOut))
		}
		totalIn.Add(totalIn, new(big.Int).SetUint64(step.grossIn))
		totalOut.Add(totalOut, new(big.Int).SetUint64(step.amountOut))
		totalFee.Add(totalFee, new(big.Int).SetUint64(step.fee))
		totalProtocol.Add(totalProtocol, new(big.Int).SetUint64(step.protocolFee))
		totalReferral.Add(totalReferral, new(big.Int).SetUint64(step.referralFee))

		if remaining.Sign() > 0 {
			next, ok := p.ledger.NextFundedBin(binID, direction)
			if !ok {
				isExceed = true
				break
			}
			binID = next
			pool_fees.UpdateVolatilityAccumulator(&vt, p.dynamicFee, binID)
		}
	}

	amountInConsumed, err := dlmmmath.CastU64(totalIn)
	if err != nil {
		return nil, ErrMathOverflow
	}
	amountOutTotal, err := dlmmmath.CastU64(totalOut)
	if err != nil {
		return nil, ErrMathOverflow
	}
	fee, err := dlmmmath.CastU64(totalFee)
	if err != nil {
		return nil, ErrMathOverflow
	}

	result := &shared.SwapResult{
		AmountIn:    amountInConsumed,
		AmountOut:   amountOutTotal,
		Fee:         fee,
		ProtocolFee: totalProtocol.Uint64(),
		ReferralFee: totalReferral.Uint64(),
		EndBinID:    binID,
		IsExceed:    isExceed,
	}
	for _, s := range steps {
		result.Steps = append(result.Steps, shared.SwapStep{BinID: s.binID, AmountIn: s.grossIn, AmountOut: s.amountOut, Fee: s.fee})
	}
	return &swapPlan{steps: steps, result: result, volatility: vt, endBinID: binID, direction: direction}, nil
}

// planStep sizes the swap against one bin. Output rounds down and fee rounds
// up, both in the pool's favor; the output is additionally capped by the
// bin's reserve so a step can never drain past it.
func (p *Pool) planStep(bin *Bin, binID int32, price, feeNum, remaining *big.Int, direction shared.SwapDirection, mode shared.SwapMode) (plannedStep, error) {
	outReserve := bin.reserveOut(direction)
	maxIn, err := bin.maxAmountIn(price, direction)
	if err != nil {
		return plannedStep{}, err
	}

	var grossIn, netIn, out *big.Int
	var feeAmt *big.Int
	if mode == shared.SwapModeExactIn {
		grossMax, _, err := dlmmmath.GetIncludedFeeAmount(feeNum, maxIn)
		if err != nil {
			return plannedStep{}, ErrFeeRateOutOfRange
		}
		grossIn = new(big.Int).Set(remaining)
		if grossIn.Cmp(grossMax) > 0 {
			grossIn.Set(grossMax)
		}
		netIn, feeAmt = dlmmmath.GetExcludedFeeAmount(feeNum, grossIn)
		if netIn.Cmp(maxIn) > 0 {
			netIn.Set(maxIn)
			feeAmt = new(big.Int).Sub(grossIn, netIn)
		}
		out, err = bin.amountOut(netIn, price, direction)
		if err != nil {
			return plannedStep{}, err
		}
		if out.Cmp(new(big.Int).SetUint64(outReserve)) > 0 {
			out = new(big.Int).SetUint64(outReserve)
		}
	} else {
		out = new(big.Int).Set(remaining)
		if out.Cmp(new(big.Int).SetUint64(outReserve)) > 0 {
			out = new(big.Int).SetUint64(outReserve)
		}
		netIn, err = bin.amountInForExactOut(out, price, direction)
		if err != nil {
			return plannedStep{}, err
		}
		grossIn, feeAmt, err = dlmmmath.GetIncludedFeeAmount(feeNum, netIn)
		if err != nil {
			return plannedStep{}, ErrFeeRateOutOfRange
		}
	}

	grossInU64, err := dlmmmath.CastU64(grossIn)
	if err != nil {
		return plannedStep{}, ErrMathOverflow
	}
	netInU64, err := dlmmmath.CastU64(netIn)
	if err != nil {
		return plannedStep{}, ErrMathOverflow
	}
	outU64, err := dlmmmath.CastU64(out)
	if err != nil {
		return plannedStep{}, ErrMathOverflow
	}
	feeU64, err := dlmmmath.CastU64(feeAmt)
	if err != nil {
		return plannedStep{}, ErrMathOverflow
	}
	inReserve := bin.ReserveX
	if direction == shared.SwapForX {
		inReserve = bin.ReserveY
	}
	if inReserve > ^uint64(0)-netInU64 {
		return plannedStep{}, ErrMathOverflow
	}

	split := p.splitFee(feeAmt)
	supply := bin.LiquiditySupply.BigInt()
	feeGrowthDelta := new(big.Int)
	if supply.Sign() > 0 {
		feeGrowthDelta, err = dlmmmath.ShlDiv(split.LpFee, supply, shared.ScaleOffset, shared.RoundingDown)
		if err != nil {
			return plannedStep{}, ErrMathOverflow
		}
	} else {
		// No shares to credit; the LP cut falls to the protocol.
		split.ProtocolFee = new(big.Int).Add(split.ProtocolFee, split.LpFee)
		split.LpFee = new(big.Int)
	}

	return plannedStep{
		binID:          binID,
		grossIn:        grossInU64,
		netIn:          netInU64,
		amountOut:      outU64,
		fee:            feeU64,
		protocolFee:    split.ProtocolFee.Uint64(),
		referralFee:    split.ReferralFee.Uint64(),
		feeGrowthDelta: feeGrowthDelta,
	}, nil
}

func (p *Pool) commitSwap(plan *swapPlan) error {
	// Steps land on staged copies first; a failure anywhere leaves the
	// ledger untouched.
	work := make(map[int32]*Bin)
	for _, s := range plan.steps {
		if err := p.ledger.workBin(work, s.binID).applySwapStep(s.netIn, s.amountOut, plan.direction, s.feeGrowthDelta); err != nil {
			return err
		}
	}
	p.ledger.commitBins(work)
	if plan.direction == shared.SwapForY {
		p.protocolFeeX += plan.result.ProtocolFee
		p.referralFeeX += plan.result.ReferralFee
	} else {
		p.protocolFeeY += plan.result.ProtocolFee
		p.referralFeeY += plan.result.ReferralFee
	}
	p.volatility = plan.volatility
	p.activeID = plan.endBinID
	return nil
}
