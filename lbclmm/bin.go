package lbclmm

import (
	"math/big"

	binary "github.com/gagliardetto/binary"

	dlmmmath "github.com/krazyTry/dlmm-go/lbclmm/math"
	"github.com/krazyTry/dlmm-go/lbclmm/shared"
)

// Bin holds both token reserves at one fixed price, the liquidity-share
// supply backing them, and the per-share fee/reward growth accumulators.
// An absent bin is equivalent to the zero value.
type Bin struct {
	ReserveX        uint64
	ReserveY        uint64
	LiquiditySupply binary.Uint128
	FeeGrowthX      binary.Uint128
	FeeGrowthY      binary.Uint128
	RewardGrowth    [shared.MaxRewardCount]binary.Uint128
}

func (b *Bin) reserveOut(direction shared.SwapDirection) uint64 {
	if direction == shared.SwapForY {
		return b.ReserveY
	}
	return b.ReserveX
}

// maxAmountIn is the net input that drains the bin's out-side reserve at the
// given Q64.64 price, rounded up.
func (b *Bin) maxAmountIn(price *big.Int, direction shared.SwapDirection) (*big.Int, error) {
	if direction == shared.SwapForY {
		// reserveY << 64 / price
		return dlmmmath.ShlDiv(new(big.Int).SetUint64(b.ReserveY), price, shared.ScaleOffset, shared.RoundingUp)
	}
	// reserveX * price >> 64
	return dlmmmath.MulShr(new(big.Int).SetUint64(b.ReserveX), price, shared.ScaleOffset, shared.RoundingUp), nil
}

// amountOut converts a net input amount at the bin price, rounded down.
func (b *Bin) amountOut(amountIn, price *big.Int, direction shared.SwapDirection) (*big.Int, error) {
	if direction == shared.SwapForY {
		return dlmmmath.MulShr(amountIn, price, shared.ScaleOffset, shared.RoundingDown), nil
	}
	return dlmmmath.ShlDiv(amountIn, price, shared.ScaleOffset, shared.RoundingDown)
}

// amountInForExactOut is the net input required to take amountOut from the
// bin, rounded up.
func (b *Bin) amountInForExactOut(amountOut, price *big.Int, direction shared.SwapDirection) (*big.Int, error) {
	if direction == shared.SwapForY {
		return dlmmmath.ShlDiv(amountOut, price, shared.ScaleOffset, shared.RoundingUp)
	}
	return dlmmmath.MulShr(amountOut, price, shared.ScaleOffset, shared.RoundingUp), nil
}

// liquidityValue prices the bin reserves in Y units: reserveX*P>>64 + reserveY.
// It is the basis for share minting.
func (b *Bin) liquidityValue(price *big.Int) *big.Int {
	xPart := dlmmmath.MulShr(new(big.Int).SetUint64(b.ReserveX), price, shared.ScaleOffset, shared.RoundingDown)
	return xPart.Add(xPart, new(big.Int).SetUint64(b.ReserveY))
}

func (b *Bin) isDrained() bool {
	return b.ReserveX == 0 && b.ReserveY == 0 && b.LiquiditySupply.BigInt().Sign() == 0
}

// applySwapStep moves amountIn into one reserve and amountOut from the other,
// crediting the per-share fee growth delta. A step that would drive the
// out-side reserve negative is rejected; the swap engine caps steps instead.
func (b *Bin) applySwapStep(amountIn, amountOut uint64, direction shared.SwapDirection, feeGrowthDelta *big.Int) error {
	var inReserve, outReserve *uint64
	if direction == shared.SwapForY {
		inReserve, outReserve = &b.ReserveX, &b.ReserveY
	} else {
		inReserve, outReserve = &b.ReserveY, &b.ReserveX
	}
	if amountOut > *outReserve {
		return ErrInsufficientLiquidity
	}
	if *inReserve > ^uint64(0)-amountIn {
		return ErrMathOverflow
	}
	*inReserve += amountIn
	*outReserve -= amountOut

	if feeGrowthDelta != nil && feeGrowthDelta.Sign() > 0 {
		var cur *big.Int
		if direction == shared.SwapForY {
			cur = b.FeeGrowthX.BigInt()
		} else {
			cur = b.FeeGrowthY.BigInt()
		}
		next, err := dlmmmath.U128FromBig(cur.Add(cur, feeGrowthDelta))
		if err != nil {
			return ErrMathOverflow
		}
		if direction == shared.SwapForY {
			b.FeeGrowthX = next
		} else {
			b.FeeGrowthY = next
		}
	}
	return nil
}

// mint adds reserves and mints liquidity shares against the pre-deposit bin
// value. The first deposit into an empty bin mints 1:1 with the deposit's
// liquidity value, fixing the share unit for that bin.
func (b *Bin) mint(price *big.Int, deltaX, deltaY uint64) (*big.Int, error) {
	depositValue := (&Bin{ReserveX: deltaX, ReserveY: deltaY}).liquidityValue(price)
	if depositValue.Sign() == 0 {
		return nil, ErrZeroAmount
	}
	supply := b.LiquiditySupply.BigInt()
	minted := depositValue
	if supply.Sign() > 0 {
		preValue := b.liquidityValue(price)
		if preValue.Sign() > 0 {
			minted = dlmmmath.MulDiv(supply, depositValue, preValue, shared.RoundingDown)
		}
	}
	if minted.Sign() == 0 {
		return nil, ErrZeroAmount
	}
	if b.ReserveX > ^uint64(0)-deltaX || b.ReserveY > ^uint64(0)-deltaY {
		return nil, ErrMathOverflow
	}
	nextSupply, err := dlmmmath.U128FromBig(new(big.Int).Add(supply, minted))
	if err != nil {
		return nil, ErrMathOverflow
	}
	b.ReserveX += deltaX
	b.ReserveY += deltaY
	b.LiquiditySupply = nextSupply
	return minted, nil
}

// burn destroys shares and pays out the proportional reserves, rounded down.
func (b *Bin) burn(shares *big.Int) (uint64, uint64, error) {
	supply := b.LiquiditySupply.BigInt()
	if shares == nil || shares.Sign() <= 0 || shares.Cmp(supply) > 0 {
		return 0, 0, ErrInsufficientShares
	}
	outX := dlmmmath.MulDiv(new(big.Int).SetUint64(b.ReserveX), shares, supply, shared.RoundingDown)
	outY := dlmmmath.MulDiv(new(big.Int).SetUint64(b.ReserveY), shares, supply, shared.RoundingDown)
	x, err := dlmmmath.CastU64(outX)
	if err != nil {
		return 0, 0, ErrMathOverflow
	}
	y, err := dlmmmath.CastU64(outY)
	if err != nil {
		return 0, 0, ErrMathOverflow
	}
	nextSupply, err := dlmmmath.U128FromBig(new(big.Int).Sub(supply, shares))
	if err != nil {
		return 0, 0, ErrMathOverflow
	}
	b.ReserveX -= x
	b.ReserveY -= y
	b.LiquiditySupply = nextSupply
	return x, y, nil
}
