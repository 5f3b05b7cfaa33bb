package shared

import (
	"math/big"
)

// Enums and common types shared by math/pool_fees and lbclmm.
type Rounding uint8

const (
	RoundingUp   Rounding = 0
	RoundingDown Rounding = 1
)

// SwapDirection is a closed tag; SwapForY sells X for Y and walks the bin
// ids upward, SwapForX sells Y for X and walks them downward.
type SwapDirection uint8

const (
	SwapForY SwapDirection = 0
	SwapForX SwapDirection = 1
)

func (d SwapDirection) Valid() bool {
	return d == SwapForY || d == SwapForX
}

type SwapMode uint8

const (
	SwapModeExactIn  SwapMode = 0
	SwapModeExactOut SwapMode = 1
)

type Operation uint8

const (
	OperationSwap Operation = iota
	OperationOpenPosition
	OperationAddLiquidity
	OperationRemoveLiquidity
	OperationCollectFee
	OperationCollectReward
	OperationFlash
)

// VolatilityTracker follows the market across swaps. The accumulator grows
// with bins crossed and decays toward zero between swaps.
type VolatilityTracker struct {
	VolatilityAccumulator uint64
	VolatilityReference   uint64
	IDReference           int32
	LastUpdateTimestamp   uint64
}

// SwapStep records the effect of a swap on a single bin. AmountIn is gross
// of fee.
type SwapStep struct {
	BinID     int32
	AmountIn  uint64
	AmountOut uint64
	Fee       uint64
}

type SwapResult struct {
	AmountIn    uint64
	AmountOut   uint64
	Fee         uint64
	ProtocolFee uint64
	ReferralFee uint64
	Steps       []SwapStep
	EndBinID    int32
	IsExceed    bool
}

type SplitFees struct {
	LpFee       *big.Int
	ProtocolFee *big.Int
	ReferralFee *big.Int
}

const (
	BasisPointMax  = 10_000
	FeeDenominator = 1_000_000_000

	// MaxFeeNumerator caps the total (base + variable) swap fee at 10%.
	MaxFeeNumerator = 100_000_000
	// MaxProtocolFeeNumerator caps the protocol share of the fee at 30%.
	MaxProtocolFeeNumerator = 300_000_000

	ScaleOffset = 64

	// MaxBinID bounds the bin id range so that a 1 bp step never leaves the
	// Q64.64 price range.
	MaxBinID = 443636
	MinBinID = -MaxBinID

	MaxBinPerPosition = 1000
	MaxRewardCount    = 5

	// RewardPeriod is the longest emission window a single funding can cover.
	RewardPeriod = 604_800
)

var (
	OneQ64         = new(big.Int).Lsh(big.NewInt(1), ScaleOffset)
	MaxExponential = big.NewInt(0x80000)
	MaxU128        = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	U64Max         = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 64), big.NewInt(1))

	DynamicFeeScalingFactor  = big.NewInt(100000000000)
	DynamicFeeRoundingOffset = big.NewInt(99999999999)
)
