package lbclmm

import (
	"math/big"

	"github.com/gagliardetto/solana-go"

	dlmmmath "github.com/krazyTry/dlmm-go/lbclmm/math"
	"github.com/krazyTry/dlmm-go/lbclmm/shared"
)

// FlashLoan is an open borrow against the active bin's reserves. The whole
// group is all-or-nothing: an insufficient repay restores the bin to its
// pre-borrow state.
type FlashLoan struct {
	BinID   int32
	AmountX uint64
	AmountY uint64
	FeeX    uint64
	FeeY    uint64
	// Owner is the borrower the loan was opened for; zero when the loan was
	// taken directly against the pool.
	Owner solana.PublicKey

	snapshot Bin
}

// OwedX is the repayment the loan requires on the X side.
func (f *FlashLoan) OwedX() uint64 { return f.AmountX + f.FeeX }

// OwedY is the repayment the loan requires on the Y side.
func (f *FlashLoan) OwedY() uint64 { return f.AmountY + f.FeeY }

func flashFee(amount, rate uint64) (uint64, error) {
	if amount == 0 || rate == 0 {
		return 0, nil
	}
	fee := dlmmmath.MulDiv(
		new(big.Int).SetUint64(amount),
		new(big.Int).SetUint64(rate),
		big.NewInt(shared.FeeDenominator),
		shared.RoundingUp,
	)
	return dlmmmath.CastU64(fee)
}

// BorrowFlash lends reserves out of the active bin. Only one loan may be
// outstanding per pool.
func (p *Pool) BorrowFlash(amountX, amountY uint64) (*FlashLoan, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.flash != nil {
		return nil, ErrFlashLoanOutstanding
	}
	if amountX == 0 && amountY == 0 {
		return nil, ErrZeroAmount
	}
	b, ok := p.ledger.bins[p.activeID]
	if !ok || b.ReserveX < amountX || b.ReserveY < amountY {
		return nil, ErrInsufficientLiquidity
	}
	feeX, err := flashFee(amountX, p.fee.FlashLoanFeeRate)
	if err != nil {
		return nil, ErrMathOverflow
	}
	feeY, err := flashFee(amountY, p.fee.FlashLoanFeeRate)
	if err != nil {
		return nil, ErrMathOverflow
	}

	loan := &FlashLoan{
		BinID:    p.activeID,
		AmountX:  amountX,
		AmountY:  amountY,
		FeeX:     feeX,
		FeeY:     feeY,
		snapshot: *b,
	}
	b.ReserveX -= amountX
	b.ReserveY -= amountY
	p.flash = loan
	return loan, nil
}

// RepayFlash settles an open loan. Repaying less than borrowed plus fee
// fails with ErrFlashRepayMismatch and discards the group: the bin reverts
// to its pre-borrow state. On success the principal returns to the reserves
// and the excess is credited to the bin's LPs through fee growth.
func (p *Pool) RepayFlash(loan *FlashLoan, repayX, repayY uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.flash == nil || p.flash != loan {
		return ErrFlashLoanUnknown
	}
	p.flash = nil

	b := p.ledger.getOrCreate(loan.BinID)
	if repayX < loan.OwedX() || repayY < loan.OwedY() {
		*b = loan.snapshot
		return ErrFlashRepayMismatch
	}

	if b.ReserveX > ^uint64(0)-repayX || b.ReserveY > ^uint64(0)-repayY {
		*b = loan.snapshot
		return ErrMathOverflow
	}
	b.ReserveX += loan.AmountX
	b.ReserveY += loan.AmountY

	if err := p.creditFlashExcess(b, repayX-loan.AmountX, repayY-loan.AmountY); err != nil {
		*b = loan.snapshot
		return err
	}
	return nil
}

type flashCredit struct {
	lp       uint64
	growth   *big.Int
	protocol uint64
	referral uint64
}

// creditFlashExcess books the repay excess (fee and any overpayment) as fee
// growth for the bin's LPs, after the protocol takes its cut. Both sides are
// computed before anything is applied so a failure leaves no partial effect.
func (p *Pool) creditFlashExcess(b *Bin, excessX, excessY uint64) error {
	supply := b.LiquiditySupply.BigInt()

	plan := func(excess uint64) (flashCredit, error) {
		var c flashCredit
		if excess == 0 {
			c.growth = new(big.Int)
			return c, nil
		}
		split := p.splitFee(new(big.Int).SetUint64(excess))
		if supply.Sign() == 0 {
			split.ProtocolFee.Add(split.ProtocolFee, split.LpFee)
			split.LpFee = new(big.Int)
		}
		c.growth = new(big.Int)
		if split.LpFee.Sign() > 0 {
			delta, err := dlmmmath.ShlDiv(split.LpFee, supply, shared.ScaleOffset, shared.RoundingDown)
			if err != nil {
				return c, ErrMathOverflow
			}
			c.growth = delta
		}
		var err error
		if c.lp, err = dlmmmath.CastU64(split.LpFee); err != nil {
			return c, ErrMathOverflow
		}
		if c.protocol, err = dlmmmath.CastU64(split.ProtocolFee); err != nil {
			return c, ErrMathOverflow
		}
		if c.referral, err = dlmmmath.CastU64(split.ReferralFee); err != nil {
			return c, ErrMathOverflow
		}
		return c, nil
	}

	cx, err := plan(excessX)
	if err != nil {
		return err
	}
	cy, err := plan(excessY)
	if err != nil {
		return err
	}
	growthX, err := dlmmmath.U128FromBig(new(big.Int).Add(b.FeeGrowthX.BigInt(), cx.growth))
	if err != nil {
		return ErrMathOverflow
	}
	growthY, err := dlmmmath.U128FromBig(new(big.Int).Add(b.FeeGrowthY.BigInt(), cy.growth))
	if err != nil {
		return ErrMathOverflow
	}

	// The LP cut stays in the bin reserves.
	b.ReserveX += cx.lp
	b.ReserveY += cy.lp
	b.FeeGrowthX = growthX
	b.FeeGrowthY = growthY
	p.protocolFeeX += cx.protocol
	p.referralFeeX += cx.referral
	p.protocolFeeY += cy.protocol
	p.referralFeeY += cy.referral
	return nil
}
