package dlmm

import (
	"github.com/krazyTry/dlmm-go/lbclmm"
)

// NewEngine creates the swap and liquidity-accounting engine.
//
// Example:
//
// engine := dlmm.NewEngine(custody, guard, clock, version)
//
// pool, _ := lbclmm.NewPool(address, params)
//
// result, _ := engine.SwapExactIn(pool, owner, amountIn, shared.SwapForY)
var NewEngine = lbclmm.NewEngine

// NewPool creates a pool with an empty bin ledger.
//
// Example:
//
// pool, _ := dlmm.NewPool(address, lbclmm.PoolParameters{BinStep: 100, ActiveID: 0})
var NewPool = lbclmm.NewPool
