package pool_fees

import (
	"errors"
	"math/big"

	"github.com/krazyTry/dlmm-go/lbclmm/shared"
)

// DynamicFeeParameters configure the volatility-sensitive fee component.
// A zero value disables it.
type DynamicFeeParameters struct {
	// FilterPeriod is the window (seconds) inside which repeated swaps keep
	// accumulating volatility without refreshing the references.
	FilterPeriod uint16
	// DecayPeriod is the window after which accumulated volatility is fully
	// forgotten.
	DecayPeriod uint16
	// ReductionFactor (bps) scales the surviving volatility when references
	// refresh inside the decay window.
	ReductionFactor uint16
	// VariableFeeControl scales the squared volatility term.
	VariableFeeControl uint32
	// MaxVolatilityAccumulator caps the accumulator.
	MaxVolatilityAccumulator uint32
}

const (
	FilterPeriodDefault    = 10
	DecayPeriodDefault     = 120
	ReductionFactorDefault = 5000
)

func (p DynamicFeeParameters) Enabled() bool {
	return p.VariableFeeControl != 0
}

func (p DynamicFeeParameters) Validate() error {
	if !p.Enabled() {
		return nil
	}
	if p.ReductionFactor > shared.BasisPointMax {
		return errors.New("reduction factor exceeds basis point max")
	}
	if p.FilterPeriod >= p.DecayPeriod {
		return errors.New("filter period must be shorter than decay period")
	}
	return nil
}

// UpdateReferences refreshes the id and volatility references from the time
// elapsed since the tracker last moved. Inside the filter period nothing
// changes; inside the decay period the accumulator survives scaled by the
// reduction factor; past it volatility is forgotten.
func UpdateReferences(vt *shared.VolatilityTracker, p DynamicFeeParameters, activeID int32, timestamp uint64) {
	elapsed := uint64(0)
	if timestamp > vt.LastUpdateTimestamp {
		elapsed = timestamp - vt.LastUpdateTimestamp
	}
	if elapsed >= uint64(p.FilterPeriod) {
		vt.IDReference = activeID
		if elapsed < uint64(p.DecayPeriod) {
			vt.VolatilityReference = vt.VolatilityAccumulator * uint64(p.ReductionFactor) / shared.BasisPointMax
		} else {
			vt.VolatilityReference = 0
		}
	}
	vt.LastUpdateTimestamp = timestamp
}

// UpdateVolatilityAccumulator bumps the accumulator by the distance of the
// active id from the reference, in basis points per bin, clamped to the
// configured maximum.
func UpdateVolatilityAccumulator(vt *shared.VolatilityTracker, p DynamicFeeParameters, activeID int32) {
	delta := int64(activeID) - int64(vt.IDReference)
	if delta < 0 {
		delta = -delta
	}
	acc := vt.VolatilityReference + uint64(delta)*shared.BasisPointMax
	if acc > uint64(p.MaxVolatilityAccumulator) {
		acc = uint64(p.MaxVolatilityAccumulator)
	}
	vt.VolatilityAccumulator = acc
}

// GetVariableFeeNumerator computes the volatility component of the swap fee:
// variableFeeControl * (volatilityAccumulator * binStep)^2 / 1e11, rounded up.
func GetVariableFeeNumerator(p DynamicFeeParameters, vt shared.VolatilityTracker, binStep uint16) *big.Int {
	if !p.Enabled() {
		return big.NewInt(0)
	}
	volatilityTimesBinStep := new(big.Int).Mul(
		new(big.Int).SetUint64(vt.VolatilityAccumulator),
		big.NewInt(int64(binStep)),
	)
	squareVfaBin := new(big.Int).Mul(volatilityTimesBinStep, volatilityTimesBinStep)
	vFee := new(big.Int).Mul(squareVfaBin, big.NewInt(int64(p.VariableFeeControl)))
	vFee.Add(vFee, shared.DynamicFeeRoundingOffset)
	return vFee.Div(vFee, shared.DynamicFeeScalingFactor)
}
