package lbclmm

import (
	"fmt"
	"math/big"

	"github.com/gagliardetto/solana-go"

	"github.com/krazyTry/dlmm-go/lbclmm/shared"
)

// Engine fronts pool operations with the surrounding collaborators: custody
// moves the funds the engine computes, the access guard vets the caller, the
// clock feeds volatility decay and reward accrual, and the version guard
// rejects stale callers. Nil collaborators fall back to no-op defaults so
// the engine can run isolated.
//
// Custody is consulted before a pool commits wherever funds flow in, so a
// lock failure leaves the pool untouched. Releases happen after the commit;
// when one fails the committed result is returned together with the error so
// the caller can reconcile custody.
type Engine struct {
	custody Custody
	guard   AccessGuard
	clock   Clock
	version VersionGuard
}

func NewEngine(custody Custody, guard AccessGuard, clock Clock, version VersionGuard) *Engine {
	if custody == nil {
		custody = noopCustody{}
	}
	if guard == nil {
		guard = allowAllGuard{}
	}
	if clock == nil {
		clock = systemClock{}
	}
	if version == nil {
		version = anyVersion{}
	}
	return &Engine{custody: custody, guard: guard, clock: clock, version: version}
}

func (e *Engine) gate(pool *Pool, owner solana.PublicKey, op shared.Operation) error {
	if err := e.version.AssertCurrentVersion(pool.Version()); err != nil {
		return ErrStaleVersion
	}
	if err := e.guard.AssertNotBlocked(owner, op); err != nil {
		return ErrBlocked
	}
	return nil
}

func (e *Engine) swapMints(pool *Pool, direction shared.SwapDirection) (solana.PublicKey, solana.PublicKey) {
	if direction == shared.SwapForY {
		return pool.tokenX, pool.tokenY
	}
	return pool.tokenY, pool.tokenX
}

// SwapExactIn locks the input, swaps, then releases the output and any
// unconsumed input of a partial fill.
func (e *Engine) SwapExactIn(pool *Pool, owner solana.PublicKey, amountIn uint64, direction shared.SwapDirection) (*shared.SwapResult, error) {
	if err := e.gate(pool, owner, shared.OperationSwap); err != nil {
		return nil, err
	}
	inMint, outMint := e.swapMints(pool, direction)
	if err := e.custody.LockFunds(amountIn, inMint); err != nil {
		return nil, err
	}
	result, err := pool.SwapExactIn(amountIn, direction, e.clock.CurrentTimestamp())
	if err != nil {
		e.custody.ReleaseFunds(amountIn, inMint)
		return nil, err
	}
	if result.AmountIn < amountIn {
		if err := e.custody.ReleaseFunds(amountIn-result.AmountIn, inMint); err != nil {
			return result, fmt.Errorf("release unconsumed input after swap: %w", err)
		}
	}
	if err := e.custody.ReleaseFunds(result.AmountOut, outMint); err != nil {
		return result, fmt.Errorf("release output after swap: %w", err)
	}
	return result, nil
}

// SwapExactOut locks the consumed input once the plan has sized it, before
// the pool commits.
func (e *Engine) SwapExactOut(pool *Pool, owner solana.PublicKey, amountOut uint64, direction shared.SwapDirection) (*shared.SwapResult, error) {
	if err := e.gate(pool, owner, shared.OperationSwap); err != nil {
		return nil, err
	}
	inMint, outMint := e.swapMints(pool, direction)
	var locked uint64
	result, err := pool.swap(amountOut, direction, shared.SwapModeExactOut, e.clock.CurrentTimestamp(), func(r *shared.SwapResult) error {
		if err := e.custody.LockFunds(r.AmountIn, inMint); err != nil {
			return err
		}
		locked = r.AmountIn
		return nil
	})
	if err != nil {
		if locked > 0 {
			e.custody.ReleaseFunds(locked, inMint)
		}
		return nil, err
	}
	if err := e.custody.ReleaseFunds(result.AmountOut, outMint); err != nil {
		return result, fmt.Errorf("release output after swap: %w", err)
	}
	return result, nil
}

func (e *Engine) OpenPosition(pool *Pool, owner solana.PublicKey, lowerBinID, upperBinID int32) (*Position, error) {
	if err := e.gate(pool, owner, shared.OperationOpenPosition); err != nil {
		return nil, err
	}
	return pool.OpenPosition(owner, lowerBinID, upperBinID)
}

func (e *Engine) AddLiquidity(pool *Pool, pos *Position, amounts []BinLiquidityAmount) ([]*big.Int, error) {
	if pos == nil {
		return nil, ErrInvalidPosition
	}
	if err := e.gate(pool, pos.Owner, shared.OperationAddLiquidity); err != nil {
		return nil, err
	}
	var totalX, totalY uint64
	for _, a := range amounts {
		totalX += a.AmountX
		totalY += a.AmountY
	}
	if err := e.custody.LockFunds(totalX, pool.tokenX); err != nil {
		return nil, err
	}
	if err := e.custody.LockFunds(totalY, pool.tokenY); err != nil {
		e.custody.ReleaseFunds(totalX, pool.tokenX)
		return nil, err
	}
	minted, err := pool.AddLiquidity(pos, amounts, e.clock.CurrentTimestamp())
	if err != nil {
		e.custody.ReleaseFunds(totalX, pool.tokenX)
		e.custody.ReleaseFunds(totalY, pool.tokenY)
		return nil, err
	}
	return minted, nil
}

func (e *Engine) RemoveLiquidity(pool *Pool, pos *Position, burns []BinShare) ([]BinLiquidityAmount, error) {
	if pos == nil {
		return nil, ErrInvalidPosition
	}
	if err := e.gate(pool, pos.Owner, shared.OperationRemoveLiquidity); err != nil {
		return nil, err
	}
	out, err := pool.RemoveLiquidity(pos, burns, e.clock.CurrentTimestamp())
	if err != nil {
		return nil, err
	}
	var totalX, totalY uint64
	for _, a := range out {
		totalX += a.AmountX
		totalY += a.AmountY
	}
	if err := e.custody.ReleaseFunds(totalX, pool.tokenX); err != nil {
		return out, fmt.Errorf("release withdrawn x: %w", err)
	}
	if err := e.custody.ReleaseFunds(totalY, pool.tokenY); err != nil {
		return out, fmt.Errorf("release withdrawn y: %w", err)
	}
	return out, nil
}

func (e *Engine) CollectFee(pool *Pool, pos *Position) (uint64, uint64, error) {
	if pos == nil {
		return 0, 0, ErrInvalidPosition
	}
	if err := e.gate(pool, pos.Owner, shared.OperationCollectFee); err != nil {
		return 0, 0, err
	}
	x, y, err := pool.CollectFee(pos, e.clock.CurrentTimestamp())
	if err != nil {
		return 0, 0, err
	}
	if err := e.custody.ReleaseFunds(x, pool.tokenX); err != nil {
		return x, y, fmt.Errorf("release collected x: %w", err)
	}
	if err := e.custody.ReleaseFunds(y, pool.tokenY); err != nil {
		return x, y, fmt.Errorf("release collected y: %w", err)
	}
	return x, y, nil
}

func (e *Engine) CollectReward(pool *Pool, pos *Position, rewardIndex int) (uint64, error) {
	if pos == nil {
		return 0, ErrInvalidPosition
	}
	if err := e.gate(pool, pos.Owner, shared.OperationCollectReward); err != nil {
		return 0, err
	}
	amount, err := pool.CollectReward(pos, rewardIndex, e.clock.CurrentTimestamp())
	if err != nil {
		return 0, err
	}
	if rewardIndex >= 0 && rewardIndex < len(pool.rewards) {
		if err := e.custody.ReleaseFunds(amount, pool.rewards[rewardIndex].Mint); err != nil {
			return amount, fmt.Errorf("release collected reward: %w", err)
		}
	}
	return amount, nil
}

// BorrowFlash opens a flash loan, billing the group against the position's
// flash counter when one is supplied.
func (e *Engine) BorrowFlash(pool *Pool, pos *Position, amountX, amountY uint64) (*FlashLoan, error) {
	owner := solana.PublicKey{}
	if pos != nil {
		owner = pos.Owner
	}
	if err := e.gate(pool, owner, shared.OperationFlash); err != nil {
		return nil, err
	}
	loan, err := pool.BorrowFlash(amountX, amountY)
	if err != nil {
		return nil, err
	}
	loan.Owner = owner
	if pos != nil {
		pos.FlashCount++
	}
	if err := e.custody.ReleaseFunds(amountX, pool.tokenX); err != nil {
		return loan, fmt.Errorf("release borrowed x: %w", err)
	}
	if err := e.custody.ReleaseFunds(amountY, pool.tokenY); err != nil {
		return loan, fmt.Errorf("release borrowed y: %w", err)
	}
	return loan, nil
}

// RepayFlash settles a loan opened through BorrowFlash. The repay is gated
// like every other mutation, against the owner the loan was opened for.
func (e *Engine) RepayFlash(pool *Pool, loan *FlashLoan, repayX, repayY uint64) error {
	owner := solana.PublicKey{}
	if loan != nil {
		owner = loan.Owner
	}
	if err := e.gate(pool, owner, shared.OperationFlash); err != nil {
		return err
	}
	if err := e.custody.LockFunds(repayX, pool.tokenX); err != nil {
		return err
	}
	if err := e.custody.LockFunds(repayY, pool.tokenY); err != nil {
		e.custody.ReleaseFunds(repayX, pool.tokenX)
		return err
	}
	if err := pool.RepayFlash(loan, repayX, repayY); err != nil {
		e.custody.ReleaseFunds(repayX, pool.tokenX)
		e.custody.ReleaseFunds(repayY, pool.tokenY)
		return err
	}
	return nil
}

// Quote is a read-only simulation; no collaborator is consulted.
func (e *Engine) Quote(pool *Pool, amountIn uint64, direction shared.SwapDirection) (*QuoteResult, error) {
	return pool.Quote(amountIn, direction, e.clock.CurrentTimestamp())
}
