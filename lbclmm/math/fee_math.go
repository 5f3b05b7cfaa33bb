package math

import (
	"errors"
	"math/big"

	"github.com/krazyTry/dlmm-go/lbclmm/shared"
)

// GetExcludedFeeAmount strips the fee out of a gross input amount. The fee
// rounds up, in the pool's favor.
func GetExcludedFeeAmount(tradeFeeNumerator, includedFeeAmount *big.Int) (*big.Int, *big.Int) {
	tradingFee := MulDiv(includedFeeAmount, tradeFeeNumerator, big.NewInt(shared.FeeDenominator), shared.RoundingUp)
	excluded := new(big.Int).Sub(includedFeeAmount, tradingFee)
	return excluded, tradingFee
}

// GetIncludedFeeAmount grosses a net amount back up so that stripping the fee
// from the result yields at least the net amount.
func GetIncludedFeeAmount(tradeFeeNumerator, excludedFeeAmount *big.Int) (*big.Int, *big.Int, error) {
	denominator := new(big.Int).Sub(big.NewInt(shared.FeeDenominator), tradeFeeNumerator)
	if denominator.Sign() <= 0 {
		return nil, nil, errors.New("invalid fee numerator")
	}
	included := MulDiv(excludedFeeAmount, big.NewInt(shared.FeeDenominator), denominator, shared.RoundingUp)
	feeAmount := new(big.Int).Sub(included, excludedFeeAmount)
	return included, feeAmount, nil
}
