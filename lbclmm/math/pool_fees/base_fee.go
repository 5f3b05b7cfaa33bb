package pool_fees

import (
	"errors"
	"math/big"

	"github.com/krazyTry/dlmm-go/lbclmm/shared"
)

// BaseFeeNumerator derives the flat fee numerator for a bin step from a
// dimensionless base factor: baseFactor * binStep * 10 at 1e9 precision.
func BaseFeeNumerator(baseFactor, binStep uint16) *big.Int {
	fee := new(big.Int).Mul(big.NewInt(int64(baseFactor)), big.NewInt(int64(binStep)))
	return fee.Mul(fee, big.NewInt(10))
}

func ValidateBaseFeeNumerator(numerator *big.Int) error {
	if numerator.Sign() < 0 || numerator.Cmp(big.NewInt(shared.MaxFeeNumerator)) > 0 {
		return errors.New("base fee numerator exceeds maximum")
	}
	return nil
}
