package lbclmm

import (
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"

	"github.com/krazyTry/dlmm-go/lbclmm/shared"
)

type custodyEvent struct {
	lock   bool
	amount uint64
	mint   solana.PublicKey
}

// recordingCustody tracks every transfer the engine orders.
type recordingCustody struct {
	events []custodyEvent
}

func (c *recordingCustody) LockFunds(amount uint64, mint solana.PublicKey) error {
	c.events = append(c.events, custodyEvent{lock: true, amount: amount, mint: mint})
	return nil
}

func (c *recordingCustody) ReleaseFunds(amount uint64, mint solana.PublicKey) error {
	c.events = append(c.events, custodyEvent{lock: false, amount: amount, mint: mint})
	return nil
}

// net is locked minus released for one mint.
func (c *recordingCustody) net(mint solana.PublicKey) int64 {
	var n int64
	for _, e := range c.events {
		if !e.mint.Equals(mint) {
			continue
		}
		if e.lock {
			n += int64(e.amount)
		} else {
			n -= int64(e.amount)
		}
	}
	return n
}

// failingCustody rejects transfers in the configured direction and records
// the rest.
type failingCustody struct {
	recordingCustody
	failLock    bool
	failRelease bool
}

func (c *failingCustody) LockFunds(amount uint64, mint solana.PublicKey) error {
	if c.failLock {
		return errors.New("vault rejected lock")
	}
	return c.recordingCustody.LockFunds(amount, mint)
}

func (c *failingCustody) ReleaseFunds(amount uint64, mint solana.PublicKey) error {
	if c.failRelease {
		return errors.New("vault rejected release")
	}
	return c.recordingCustody.ReleaseFunds(amount, mint)
}

type blocklistGuard struct {
	blocked solana.PublicKey
}

func (g blocklistGuard) AssertNotBlocked(owner solana.PublicKey, _ shared.Operation) error {
	if owner.Equals(g.blocked) {
		return errors.New("owner blocked")
	}
	return nil
}

type fixedClock uint64

func (c fixedClock) CurrentTimestamp() uint64 { return uint64(c) }

type pinnedVersion uint8

func (v pinnedVersion) AssertCurrentVersion(version uint8) error {
	if version != uint8(v) {
		return errors.New("version mismatch")
	}
	return nil
}

var (
	mintX = solana.PublicKey{0xAA}
	mintY = solana.PublicKey{0xBB}
)

func testEnginePool(t *testing.T, custody Custody, guard AccessGuard, clock Clock, version VersionGuard) (*Engine, *Pool) {
	t.Helper()
	pool, err := NewPool(solana.PublicKey{}, PoolParameters{
		BinStep:    100,
		ActiveID:   5,
		TokenXMint: mintX,
		TokenYMint: mintY,
	})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	return NewEngine(custody, guard, clock, version), pool
}

func TestEngineBlockedOwner(t *testing.T) {
	blocked := solana.PublicKey{0x66}
	engine, pool := testEnginePool(t, nil, blocklistGuard{blocked: blocked}, nil, nil)

	if _, err := engine.SwapExactIn(pool, blocked, 100, shared.SwapForY); err != ErrBlocked {
		t.Fatalf("swap: err = %v, want ErrBlocked", err)
	}
	if _, err := engine.OpenPosition(pool, blocked, 0, 10); err != ErrBlocked {
		t.Fatalf("open: err = %v, want ErrBlocked", err)
	}
	pos, err := engine.OpenPosition(pool, solana.PublicKey{0x01}, 0, 10)
	if err != nil {
		t.Fatalf("open for clean owner: %v", err)
	}
	pos.Owner = blocked
	if _, err := engine.AddLiquidity(pool, pos, []BinLiquidityAmount{{BinID: 5, AmountY: 1}}); err != ErrBlocked {
		t.Fatalf("add: err = %v, want ErrBlocked", err)
	}
}

func TestEngineVersionGate(t *testing.T) {
	engine, pool := testEnginePool(t, nil, nil, nil, pinnedVersion(3))
	if _, err := engine.SwapExactIn(pool, solana.PublicKey{1}, 100, shared.SwapForY); err != ErrStaleVersion {
		t.Fatalf("err = %v, want ErrStaleVersion", err)
	}

	current, err := NewPool(solana.PublicKey{}, PoolParameters{BinStep: 100, ActiveID: 5, Version: 3})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	if _, err := NewEngine(nil, nil, nil, pinnedVersion(3)).OpenPosition(current, solana.PublicKey{1}, 0, 0); err != nil {
		t.Fatalf("matching version rejected: %v", err)
	}
}

// Repaying a flash loan mutates the pool like any other operation, so the
// version and access gates must hold there too.
func TestEngineRepayFlashGated(t *testing.T) {
	engine, pool := testEnginePool(t, nil, nil, fixedClock(0), pinnedVersion(9))
	seedBin(t, pool, 5, 1000, 1000)
	loan, err := pool.BorrowFlash(100, 0)
	if err != nil {
		t.Fatalf("BorrowFlash: %v", err)
	}
	if err := engine.RepayFlash(pool, loan, 100, 0); err != ErrStaleVersion {
		t.Fatalf("stale repay: err = %v, want ErrStaleVersion", err)
	}
	if x, _ := pool.BinReserves(5); x != 900 {
		t.Fatalf("reserve X = %d after rejected repay, want 900", x)
	}
	if _, err := pool.BorrowFlash(1, 0); err != ErrFlashLoanOutstanding {
		t.Fatalf("loan settled despite rejected repay: err = %v", err)
	}

	blocked := solana.PublicKey{0x66}
	engine, pool = testEnginePool(t, nil, blocklistGuard{blocked: blocked}, fixedClock(0), nil)
	seedBin(t, pool, 5, 1000, 1000)
	loan, err = pool.BorrowFlash(100, 0)
	if err != nil {
		t.Fatalf("BorrowFlash: %v", err)
	}
	loan.Owner = blocked
	if err := engine.RepayFlash(pool, loan, 100, 0); err != ErrBlocked {
		t.Fatalf("blocked repay: err = %v, want ErrBlocked", err)
	}
	if x, _ := pool.BinReserves(5); x != 900 {
		t.Fatalf("reserve X = %d after blocked repay, want 900", x)
	}
}

// When custody refuses to lock the input an exact-out swap sized, the pool
// must stay untouched.
func TestEngineSwapExactOutCustodyFailureAborts(t *testing.T) {
	custody := &failingCustody{failLock: true}
	engine, pool := testEnginePool(t, custody, nil, fixedClock(0), nil)
	seedBin(t, pool, 5, 0, 1000)

	if _, err := engine.SwapExactOut(pool, solana.PublicKey{1}, 100, shared.SwapForY); err == nil {
		t.Fatal("expected custody error")
	}
	if _, y := pool.BinReserves(5); y != 1000 {
		t.Fatalf("reserve Y = %d after aborted swap, want 1000", y)
	}
	if got := pool.ActiveBinID(); got != 5 {
		t.Fatalf("active bin = %d after aborted swap, want 5", got)
	}
	if len(custody.events) != 0 {
		t.Fatalf("custody recorded %d transfers for an aborted swap", len(custody.events))
	}
}

// A release failure after the pool has committed cannot be rolled back; the
// committed result must come back alongside the error for reconciliation.
func TestEngineSwapReleaseFailureReturnsResult(t *testing.T) {
	custody := &failingCustody{failRelease: true}
	engine, pool := testEnginePool(t, custody, nil, fixedClock(0), nil)
	seedBin(t, pool, 5, 0, 1000)

	result, err := engine.SwapExactIn(pool, solana.PublicKey{1}, 100, shared.SwapForY)
	if err == nil {
		t.Fatal("expected release error")
	}
	if result == nil {
		t.Fatal("committed result missing from release failure")
	}
	if _, y := pool.BinReserves(5); y != 1000-result.AmountOut {
		t.Fatalf("reserve Y = %d, want committed %d", y, 1000-result.AmountOut)
	}
}

func TestEngineCustodyFlow(t *testing.T) {
	custody := &recordingCustody{}
	engine, pool := testEnginePool(t, custody, nil, fixedClock(0), nil)
	owner := solana.PublicKey{1}

	pos, err := engine.OpenPosition(pool, owner, 5, 10)
	if err != nil {
		t.Fatalf("OpenPosition: %v", err)
	}
	var deposits []BinLiquidityAmount
	for id := int32(5); id <= 10; id++ {
		deposits = append(deposits, BinLiquidityAmount{BinID: id, AmountY: 100})
	}
	if _, err := engine.AddLiquidity(pool, pos, deposits); err != nil {
		t.Fatalf("AddLiquidity: %v", err)
	}
	if got := custody.net(mintY); got != 600 {
		t.Fatalf("net Y after deposit = %d, want 600 locked", got)
	}
	if got := custody.net(mintX); got != 0 {
		t.Fatalf("net X after deposit = %d, want 0", got)
	}

	result, err := engine.SwapExactIn(pool, owner, 1000, shared.SwapForY)
	if err != nil {
		t.Fatalf("SwapExactIn: %v", err)
	}
	if !result.IsExceed {
		t.Fatal("expected IsExceed")
	}
	// partial fill: only the consumed input stays locked
	if got := custody.net(mintX); got != int64(result.AmountIn) {
		t.Fatalf("net X after swap = %d, want consumed %d", got, result.AmountIn)
	}
	if got := custody.net(mintY); got != 600-int64(result.AmountOut) {
		t.Fatalf("net Y after swap = %d, want %d", got, 600-int64(result.AmountOut))
	}
}

func TestEngineRemoveReleasesFunds(t *testing.T) {
	custody := &recordingCustody{}
	engine, pool := testEnginePool(t, custody, nil, fixedClock(0), nil)
	owner := solana.PublicKey{1}

	pos, err := engine.OpenPosition(pool, owner, 5, 5)
	if err != nil {
		t.Fatalf("OpenPosition: %v", err)
	}
	minted, err := engine.AddLiquidity(pool, pos, []BinLiquidityAmount{{BinID: 5, AmountX: 300, AmountY: 700}})
	if err != nil {
		t.Fatalf("AddLiquidity: %v", err)
	}
	out, err := engine.RemoveLiquidity(pool, pos, []BinShare{{BinID: 5, Shares: minted[0]}})
	if err != nil {
		t.Fatalf("RemoveLiquidity: %v", err)
	}
	if out[0].AmountX != 300 || out[0].AmountY != 700 {
		t.Fatalf("returned (%d, %d), want (300, 700)", out[0].AmountX, out[0].AmountY)
	}
	if x, y := custody.net(mintX), custody.net(mintY); x != 0 || y != 0 {
		t.Fatalf("net custody = (%d, %d) after full round trip, want (0, 0)", x, y)
	}
}

func TestEngineFlashCount(t *testing.T) {
	engine, pool := testEnginePool(t, nil, nil, fixedClock(0), nil)
	owner := solana.PublicKey{1}

	pos, err := engine.OpenPosition(pool, owner, 5, 5)
	if err != nil {
		t.Fatalf("OpenPosition: %v", err)
	}
	if _, err := engine.AddLiquidity(pool, pos, []BinLiquidityAmount{{BinID: 5, AmountX: 1000, AmountY: 1000}}); err != nil {
		t.Fatalf("AddLiquidity: %v", err)
	}

	loan, err := engine.BorrowFlash(pool, pos, 100, 0)
	if err != nil {
		t.Fatalf("BorrowFlash: %v", err)
	}
	if pos.FlashCount != 1 {
		t.Fatalf("FlashCount = %d, want 1", pos.FlashCount)
	}
	if !loan.Owner.Equals(owner) {
		t.Fatalf("loan owner = %s, want %s", loan.Owner, owner)
	}
	if err := engine.RepayFlash(pool, loan, 100, 0); err != nil {
		t.Fatalf("RepayFlash: %v", err)
	}
}

func TestEngineQuoteUsesClock(t *testing.T) {
	engine, pool := testEnginePool(t, nil, nil, fixedClock(42), nil)
	seedBin(t, pool, 5, 0, 100)

	quote, err := engine.Quote(pool, 10, shared.SwapForY)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if quote.AmountOut == 0 {
		t.Fatal("quote returned no output against funded bin")
	}
	if got := pool.Volatility().LastUpdateTimestamp; got != 0 {
		t.Fatalf("quote advanced the volatility clock to %d", got)
	}
}
