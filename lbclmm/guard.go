package lbclmm

import (
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/krazyTry/dlmm-go/lbclmm/shared"
)

// Custody moves value in and out of the pool's vaults. The engine only
// computes amounts; it never holds funds itself.
type Custody interface {
	LockFunds(amount uint64, mint solana.PublicKey) error
	ReleaseFunds(amount uint64, mint solana.PublicKey) error
}

// AccessGuard is consulted before every mutation. A positive block aborts
// the whole operation.
type AccessGuard interface {
	AssertNotBlocked(owner solana.PublicKey, op shared.Operation) error
}

// Clock supplies the timestamps used for volatility decay and reward accrual.
type Clock interface {
	CurrentTimestamp() uint64
}

// VersionGuard rejects callers built against a different protocol version.
type VersionGuard interface {
	AssertCurrentVersion(version uint8) error
}

type noopCustody struct{}

func (noopCustody) LockFunds(uint64, solana.PublicKey) error    { return nil }
func (noopCustody) ReleaseFunds(uint64, solana.PublicKey) error { return nil }

type allowAllGuard struct{}

func (allowAllGuard) AssertNotBlocked(solana.PublicKey, shared.Operation) error { return nil }

type systemClock struct{}

func (systemClock) CurrentTimestamp() uint64 { return uint64(time.Now().Unix()) }

type anyVersion struct{}

func (anyVersion) AssertCurrentVersion(uint8) error { return nil }
