package lbclmm

import (
	"math/big"

	binary "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	dlmmmath "github.com/krazyTry/dlmm-go/lbclmm/math"
	"github.com/krazyTry/dlmm-go/lbclmm/shared"
)

// Position is a holder's claim on a contiguous bin range of one pool.
// Shares are indexed by bin offset within the range. Fee and reward
// snapshots checkpoint the bin growth accumulators at the last settlement;
// owed amounts accrue from the snapshot delta and collecting advances the
// snapshot, which is what prevents double payment.
type Position struct {
	PoolAddress solana.PublicKey
	Owner       solana.PublicKey
	LowerBinID  int32
	UpperBinID  int32
	FlashCount  uint64

	shares          []*big.Int
	feeSnapshotX    []binary.Uint128
	feeSnapshotY    []binary.Uint128
	rewardSnapshots [][shared.MaxRewardCount]binary.Uint128

	feeOwedX    uint64
	feeOwedY    uint64
	rewardsOwed [shared.MaxRewardCount]uint64

	closed bool
}

// BinLiquidityAmount addresses one bin of a liquidity change.
type BinLiquidityAmount struct {
	BinID   int32
	AmountX uint64
	AmountY uint64
}

// BinShare addresses one bin of a share burn.
type BinShare struct {
	BinID  int32
	Shares *big.Int
}

// PositionBinCheckpoint is the per-bin view of a position.
type PositionBinCheckpoint struct {
	BinID              int32
	LiquidityShare     *big.Int
	FeeGrowthXSnapshot binary.Uint128
	FeeGrowthYSnapshot binary.Uint128
	RewardSnapshots    [shared.MaxRewardCount]binary.Uint128
}

// PositionInfo is the derived position state: owed totals including pending
// (not yet settled) growth, plus the per-bin checkpoints.
type PositionInfo struct {
	FeeOwedX    uint64
	FeeOwedY    uint64
	RewardsOwed []uint64
	Bins        []PositionBinCheckpoint
}

func (pos *Position) width() int {
	return int(int64(pos.UpperBinID) - int64(pos.LowerBinID) + 1)
}

func (pos *Position) offsetOf(binID int32) (int, error) {
	if binID < pos.LowerBinID || binID > pos.UpperBinID {
		return 0, ErrInvalidBinRange
	}
	return int(binID - pos.LowerBinID), nil
}

// SharesAt reads the position's share balance for one bin.
func (pos *Position) SharesAt(binID int32) *big.Int {
	off, err := pos.offsetOf(binID)
	if err != nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(pos.shares[off])
}

// Empty reports whether the position has no shares and nothing owed.
func (pos *Position) Empty() bool {
	for _, s := range pos.shares {
		if s.Sign() != 0 {
			return false
		}
	}
	if pos.feeOwedX != 0 || pos.feeOwedY != 0 {
		return false
	}
	for _, r := range pos.rewardsOwed {
		if r != 0 {
			return false
		}
	}
	return true
}

// OpenPosition creates an empty position over an inclusive bin range.
func (p *Pool) OpenPosition(owner solana.PublicKey, lowerBinID, upperBinID int32) (*Position, error) {
	if upperBinID < lowerBinID {
		return nil, ErrInvalidBinRange
	}
	if lowerBinID < shared.MinBinID || upperBinID > shared.MaxBinID {
		return nil, ErrInvalidBinRange
	}
	width := int64(upperBinID) - int64(lowerBinID) + 1
	if width > shared.MaxBinPerPosition {
		return nil, ErrInvalidBinRange
	}
	pos := &Position{
		PoolAddress:     p.address,
		Owner:           owner,
		LowerBinID:      lowerBinID,
		UpperBinID:      upperBinID,
		shares:          make([]*big.Int, width),
		feeSnapshotX:    make([]binary.Uint128, width),
		feeSnapshotY:    make([]binary.Uint128, width),
		rewardSnapshots: make([][shared.MaxRewardCount]binary.Uint128, width),
	}
	for i := range pos.shares {
		pos.shares[i] = big.NewInt(0)
	}
	return pos, nil
}

// binSettlement is the staged effect of checkpointing one bin: amounts
// realized since the last snapshot and the snapshots to advance to.
type binSettlement struct {
	offset      int
	feeX        uint64
	feeY        uint64
	rewards     [shared.MaxRewardCount]uint64
	snapX       binary.Uint128
	snapY       binary.Uint128
	snapRewards [shared.MaxRewardCount]binary.Uint128
}

// growthDelta realizes share * (current - snapshot) >> 64, treating a
// regressed accumulator (bin released and later refunded) as zero.
func growthDelta(current, snapshot binary.Uint128, share *big.Int) (uint64, error) {
	delta := current.BigInt()
	delta.Sub(delta, snapshot.BigInt())
	if delta.Sign() <= 0 {
		return 0, nil
	}
	owed := dlmmmath.MulShr(share, delta, shared.ScaleOffset, shared.RoundingDown)
	return dlmmmath.CastU64(owed)
}

func (p *Pool) computeSettlement(pos *Position, offset int) (binSettlement, error) {
	binID := pos.LowerBinID + int32(offset)
	bin := p.ledger.GetBin(binID)
	share := pos.shares[offset]

	s := binSettlement{offset: offset, snapX: bin.FeeGrowthX, snapY: bin.FeeGrowthY, snapRewards: bin.RewardGrowth}
	if share.Sign() == 0 {
		return s, nil
	}
	var err error
	if s.feeX, err = growthDelta(bin.FeeGrowthX, pos.feeSnapshotX[offset], share); err != nil {
		return s, ErrMathOverflow
	}
	if s.feeY, err = growthDelta(bin.FeeGrowthY, pos.feeSnapshotY[offset], share); err != nil {
		return s, ErrMathOverflow
	}
	for i := range p.rewards {
		if s.rewards[i], err = growthDelta(bin.RewardGrowth[i], pos.rewardSnapshots[offset][i], share); err != nil {
			return s, ErrMathOverflow
		}
	}
	if pos.feeOwedX > ^uint64(0)-s.feeX || pos.feeOwedY > ^uint64(0)-s.feeY {
		return s, ErrMathOverflow
	}
	for i := range p.rewards {
		if pos.rewardsOwed[i] > ^uint64(0)-s.rewards[i] {
			return s, ErrMathOverflow
		}
	}
	return s, nil
}

func (p *Pool) computeSettlements(pos *Position, offsets []int) ([]binSettlement, error) {
	settlements := make([]binSettlement, 0, len(offsets))
	for _, off := range offsets {
		s, err := p.computeSettlement(pos, off)
		if err != nil {
			return nil, err
		}
		settlements = append(settlements, s)
	}
	return settlements, nil
}

func applySettlements(pos *Position, settlements []binSettlement) {
	for _, s := range settlements {
		pos.feeOwedX += s.feeX
		pos.feeOwedY += s.feeY
		pos.feeSnapshotX[s.offset] = s.snapX
		pos.feeSnapshotY[s.offset] = s.snapY
		for i := range s.rewards {
			pos.rewardsOwed[i] += s.rewards[i]
		}
		pos.rewardSnapshots[s.offset] = s.snapRewards
	}
}

func (p *Pool) checkPosition(pos *Position) error {
	if pos == nil || pos.closed {
		return ErrInvalidPosition
	}
	if !pos.PoolAddress.Equals(p.address) {
		return ErrInvalidPosition
	}
	return nil
}

// AddLiquidity deposits per-bin amounts, settling pending fees and rewards
// on the touched bins before their share balances change. Returns the
// minted shares per entry.
func (p *Pool) AddLiquidity(pos *Position, amounts []BinLiquidityAmount, timestamp uint64) ([]*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkPosition(pos); err != nil {
		return nil, err
	}
	if len(amounts) == 0 {
		return nil, ErrZeroAmount
	}
	p.accrueRewards(timestamp)

	offsets, err := touchedOffsets(pos, len(amounts), func(i int) int32 { return amounts[i].BinID })
	if err != nil {
		return nil, err
	}
	settlements, err := p.computeSettlements(pos, offsets)
	if err != nil {
		return nil, err
	}

	work := make(map[int32]*Bin)
	minted := make([]*big.Int, len(amounts))
	for i, a := range amounts {
		price, err := p.ledger.priceOf(a.BinID)
		if err != nil {
			return nil, err
		}
		m, err := p.ledger.workBin(work, a.BinID).mint(price, a.AmountX, a.AmountY)
		if err != nil {
			return nil, err
		}
		minted[i] = m
	}

	applySettlements(pos, settlements)
	p.ledger.commitBins(work)
	for i, a := range amounts {
		off, _ := pos.offsetOf(a.BinID)
		pos.shares[off].Add(pos.shares[off], minted[i])
	}
	return minted, nil
}

// RemoveLiquidity burns per-bin shares and returns the proportional
// reserve amounts, rounded down.
func (p *Pool) RemoveLiquidity(pos *Position, burns []BinShare, timestamp uint64) ([]BinLiquidityAmount, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkPosition(pos); err != nil {
		return nil, err
	}
	if len(burns) == 0 {
		return nil, ErrZeroAmount
	}
	p.accrueRewards(timestamp)

	offsets, err := touchedOffsets(pos, len(burns), func(i int) int32 { return burns[i].BinID })
	if err != nil {
		return nil, err
	}
	remainingShares := make(map[int]*big.Int)
	for _, off := range offsets {
		remainingShares[off] = new(big.Int).Set(pos.shares[off])
	}
	for _, b := range burns {
		off, _ := pos.offsetOf(b.BinID)
		if b.Shares == nil || b.Shares.Sign() <= 0 {
			return nil, ErrZeroAmount
		}
		if remainingShares[off].Cmp(b.Shares) < 0 {
			return nil, ErrInsufficientShares
		}
		remainingShares[off].Sub(remainingShares[off], b.Shares)
	}
	settlements, err := p.computeSettlements(pos, offsets)
	if err != nil {
		return nil, err
	}

	work := make(map[int32]*Bin)
	out := make([]BinLiquidityAmount, len(burns))
	for i, b := range burns {
		x, y, err := p.ledger.workBin(work, b.BinID).burn(b.Shares)
		if err != nil {
			return nil, err
		}
		out[i] = BinLiquidityAmount{BinID: b.BinID, AmountX: x, AmountY: y}
	}

	applySettlements(pos, settlements)
	p.ledger.commitBins(work)
	for _, b := range burns {
		off, _ := pos.offsetOf(b.BinID)
		pos.shares[off].Sub(pos.shares[off], b.Shares)
	}
	return out, nil
}

// CollectFee settles every bin the position spans and pays out the owed
// fee totals, advancing the snapshots so a repeated collect yields zero.
func (p *Pool) CollectFee(pos *Position, timestamp uint64) (uint64, uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkPosition(pos); err != nil {
		return 0, 0, err
	}
	p.accrueRewards(timestamp)
	settlements, err := p.computeSettlements(pos, allOffsets(pos))
	if err != nil {
		return 0, 0, err
	}
	applySettlements(pos, settlements)
	x, y := pos.feeOwedX, pos.feeOwedY
	pos.feeOwedX, pos.feeOwedY = 0, 0
	return x, y, nil
}

// CollectReward settles the position and pays out one reward stream.
func (p *Pool) CollectReward(pos *Position, rewardIndex int, timestamp uint64) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkPosition(pos); err != nil {
		return 0, err
	}
	if rewardIndex < 0 || rewardIndex >= len(p.rewards) {
		return 0, ErrInvalidRewardIndex
	}
	p.accrueRewards(timestamp)
	settlements, err := p.computeSettlements(pos, allOffsets(pos))
	if err != nil {
		return 0, err
	}
	applySettlements(pos, settlements)
	owed := pos.rewardsOwed[rewardIndex]
	pos.rewardsOwed[rewardIndex] = 0
	return owed, nil
}

// ClosePosition destroys a fully drained and collected position.
func (p *Pool) ClosePosition(pos *Position) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkPosition(pos); err != nil {
		return err
	}
	if !pos.Empty() {
		return ErrPositionNotEmpty
	}
	pos.closed = true
	return nil
}

// PositionInfo derives the current owed totals, including growth not yet
// settled, without mutating the position.
func (p *Pool) PositionInfo(pos *Position) (*PositionInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkPosition(pos); err != nil {
		return nil, err
	}
	info := &PositionInfo{
		FeeOwedX:    pos.feeOwedX,
		FeeOwedY:    pos.feeOwedY,
		RewardsOwed: make([]uint64, len(p.rewards)),
	}
	for i := range p.rewards {
		info.RewardsOwed[i] = pos.rewardsOwed[i]
	}
	for _, off := range allOffsets(pos) {
		s, err := p.computeSettlement(pos, off)
		if err != nil {
			return nil, err
		}
		info.FeeOwedX += s.feeX
		info.FeeOwedY += s.feeY
		for i := range p.rewards {
			info.RewardsOwed[i] += s.rewards[i]
		}
		binID := pos.LowerBinID + int32(off)
		info.Bins = append(info.Bins, PositionBinCheckpoint{
			BinID:              binID,
			LiquidityShare:     new(big.Int).Set(pos.shares[off]),
			FeeGrowthXSnapshot: pos.feeSnapshotX[off],
			FeeGrowthYSnapshot: pos.feeSnapshotY[off],
			RewardSnapshots:    pos.rewardSnapshots[off],
		})
	}
	return info, nil
}

func allOffsets(pos *Position) []int {
	offsets := make([]int, pos.width())
	for i := range offsets {
		offsets[i] = i
	}
	return offsets
}

// touchedOffsets validates the bin ids of a batch against the position
// range and returns the distinct offsets.
func touchedOffsets(pos *Position, n int, binID func(int) int32) ([]int, error) {
	seen := make(map[int]bool, n)
	var offsets []int
	for i := 0; i < n; i++ {
		off, err := pos.offsetOf(binID(i))
		if err != nil {
			return nil, err
		}
		if !seen[off] {
			seen[off] = true
			offsets = append(offsets, off)
		}
	}
	return offsets, nil
}
