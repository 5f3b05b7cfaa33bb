package lbclmm

import (
	"math/big"
	"sync"

	"github.com/gagliardetto/solana-go"

	dlmmmath "github.com/krazyTry/dlmm-go/lbclmm/math"
	"github.com/krazyTry/dlmm-go/lbclmm/math/pool_fees"
	"github.com/krazyTry/dlmm-go/lbclmm/shared"
)

// FeeParameters hold the static fee configuration at 1e9 precision.
type FeeParameters struct {
	BaseFeeRate     uint64
	ProtocolFeeRate uint64
	// ReferralFeeRate is the referral's cut of the protocol fee.
	ReferralFeeRate uint64
	// FlashLoanFeeRate applies to flash-borrowed principal.
	FlashLoanFeeRate uint64
}

func (p FeeParameters) validate() error {
	if p.BaseFeeRate > shared.MaxFeeNumerator {
		return ErrFeeRateOutOfRange
	}
	if p.ProtocolFeeRate > shared.MaxProtocolFeeNumerator {
		return ErrFeeRateOutOfRange
	}
	if p.ReferralFeeRate > shared.FeeDenominator {
		return ErrFeeRateOutOfRange
	}
	if p.FlashLoanFeeRate > shared.MaxFeeNumerator {
		return ErrFeeRateOutOfRange
	}
	return nil
}

// PoolParameters configure a new pool.
type PoolParameters struct {
	BinStep    uint16
	ActiveID   int32
	TokenXMint solana.PublicKey
	TokenYMint solana.PublicKey
	Fee        FeeParameters
	DynamicFee pool_fees.DynamicFeeParameters
	Version    uint8
}

// RewardInfo tracks one emission stream. Rewards accrue to the active bin's
// growth accumulator per elapsed second.
type RewardInfo struct {
	Mint           solana.PublicKey
	RatePerSecond  uint64
	LastUpdateTime uint64
	EndTime        uint64
}

// Pool owns a BinLedger, the volatility tracker and the reward streams for
// one market. Operations against a pool are serialized; pools share nothing.
type Pool struct {
	mu sync.Mutex

	address    solana.PublicKey
	tokenX     solana.PublicKey
	tokenY     solana.PublicKey
	binStep    uint16
	activeID   int32
	version    uint8
	fee        FeeParameters
	dynamicFee pool_fees.DynamicFeeParameters
	volatility shared.VolatilityTracker
	ledger     *BinLedger
	rewards    []RewardInfo
	flash      *FlashLoan

	protocolFeeX uint64
	protocolFeeY uint64
	referralFeeX uint64
	referralFeeY uint64
}

func NewPool(address solana.PublicKey, params PoolParameters) (*Pool, error) {
	if params.ActiveID > shared.MaxBinID || params.ActiveID < shared.MinBinID {
		return nil, ErrInvalidBinRange
	}
	if _, err := dlmmmath.GetPriceFromID(params.ActiveID, params.BinStep); err != nil {
		return nil, err
	}
	if err := params.Fee.validate(); err != nil {
		return nil, err
	}
	if err := params.DynamicFee.Validate(); err != nil {
		return nil, ErrFeeRateOutOfRange
	}
	return &Pool{
		address:    address,
		tokenX:     params.TokenXMint,
		tokenY:     params.TokenYMint,
		binStep:    params.BinStep,
		activeID:   params.ActiveID,
		version:    params.Version,
		fee:        params.Fee,
		dynamicFee: params.DynamicFee,
		volatility: shared.VolatilityTracker{IDReference: params.ActiveID},
		ledger:     newBinLedger(params.BinStep),
	}, nil
}

func (p *Pool) Address() solana.PublicKey { return p.address }
func (p *Pool) BinStep() uint16           { return p.binStep }
func (p *Pool) Version() uint8            { return p.version }

func (p *Pool) ActiveBinID() int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activeID
}

// BinReserves reports the stored reserves at id; absent bins read as zero.
func (p *Pool) BinReserves(id int32) (uint64, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b := p.ledger.GetBin(id)
	return b.ReserveX, b.ReserveY
}

// ProtocolFees reports the protocol fees withheld so far, per token.
func (p *Pool) ProtocolFees() (uint64, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.protocolFeeX, p.protocolFeeY
}

func (p *Pool) Volatility() shared.VolatilityTracker {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volatility
}

// totalFeeNumerator is the swap fee for the current volatility state,
// base + variable capped at the protocol maximum.
func (p *Pool) totalFeeNumerator(vt shared.VolatilityTracker) *big.Int {
	total := new(big.Int).SetUint64(p.fee.BaseFeeRate)
	total.Add(total, pool_fees.GetVariableFeeNumerator(p.dynamicFee, vt, p.binStep))
	if total.Cmp(big.NewInt(shared.MaxFeeNumerator)) > 0 {
		return big.NewInt(shared.MaxFeeNumerator)
	}
	return total
}

// splitFee carves the protocol and referral shares out of the total fee.
// The referral's cut comes out of the protocol share, so
// protocol + referral never exceeds the total.
func (p *Pool) splitFee(totalFee *big.Int) shared.SplitFees {
	protocolFee := dlmmmath.MulDiv(totalFee, new(big.Int).SetUint64(p.fee.ProtocolFeeRate), big.NewInt(shared.FeeDenominator), shared.RoundingDown)
	referralFee := dlmmmath.MulDiv(protocolFee, new(big.Int).SetUint64(p.fee.ReferralFeeRate), big.NewInt(shared.FeeDenominator), shared.RoundingDown)
	protocolFee.Sub(protocolFee, referralFee)
	lpFee := new(big.Int).Sub(totalFee, protocolFee)
	lpFee.Sub(lpFee, referralFee)
	return shared.SplitFees{LpFee: lpFee, ProtocolFee: protocolFee, ReferralFee: referralFee}
}

// InitializeReward registers a new emission stream and returns its index.
func (p *Pool) InitializeReward(mint solana.PublicKey) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.rewards) >= shared.MaxRewardCount {
		return 0, ErrInvalidRewardIndex
	}
	p.rewards = append(p.rewards, RewardInfo{Mint: mint})
	return len(p.rewards) - 1, nil
}

// FundReward sets the emission rate from a funding amount spread over the
// duration, capped at one reward period. Accrued emissions are settled first.
func (p *Pool) FundReward(index int, amount, duration, timestamp uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index >= len(p.rewards) {
		return ErrInvalidRewardIndex
	}
	if amount == 0 || duration == 0 {
		return ErrZeroAmount
	}
	if duration > shared.RewardPeriod {
		duration = shared.RewardPeriod
	}
	p.accrueRewards(timestamp)
	r := &p.rewards[index]
	r.RatePerSecond = amount / duration
	r.LastUpdateTime = timestamp
	r.EndTime = timestamp + duration
	return nil
}

// accrueRewards credits pending emissions to the active bin's reward growth.
// Seconds with no liquidity in the active bin emit nothing.
func (p *Pool) accrueRewards(timestamp uint64) {
	for i := range p.rewards {
		r := &p.rewards[i]
		if r.RatePerSecond == 0 || r.LastUpdateTime >= timestamp {
			continue
		}
		until := timestamp
		if until > r.EndTime {
			until = r.EndTime
		}
		if until <= r.LastUpdateTime {
			continue
		}
		elapsed := until - r.LastUpdateTime
		r.LastUpdateTime = timestamp

		b, ok := p.ledger.bins[p.activeID]
		if !ok {
			continue
		}
		supply := b.LiquiditySupply.BigInt()
		if supply.Sign() == 0 {
			continue
		}
		emitted := new(big.Int).Mul(new(big.Int).SetUint64(r.RatePerSecond), new(big.Int).SetUint64(elapsed))
		delta, err := dlmmmath.ShlDiv(emitted, supply, shared.ScaleOffset, shared.RoundingDown)
		if err != nil {
			continue
		}
		cur := b.RewardGrowth[i].BigInt()
		next, err := dlmmmath.U128FromBig(cur.Add(cur, delta))
		if err != nil {
			continue
		}
		b.RewardGrowth[i] = next
	}
}
