package math

import (
	"errors"
	"math/big"

	binary "github.com/gagliardetto/binary"
	"github.com/shopspring/decimal"

	"github.com/krazyTry/dlmm-go/lbclmm/shared"
)

func MulDiv(x, y, denominator *big.Int, rounding shared.Rounding) *big.Int {
	if denominator.Sign() == 0 {
		return big.NewInt(0)
	}
	mul := new(big.Int).Mul(x, y)
	div, mod := new(big.Int).QuoRem(mul, denominator, new(big.Int))
	if rounding == shared.RoundingUp && mod.Sign() != 0 {
		return div.Add(div, big.NewInt(1))
	}
	return div
}

// MulShr computes x * y >> offset.
func MulShr(x, y *big.Int, offset uint, rounding shared.Rounding) *big.Int {
	denominator := new(big.Int).Lsh(big.NewInt(1), offset)
	return MulDiv(x, y, denominator, rounding)
}

// ShlDiv computes (x << offset) / y.
func ShlDiv(x, y *big.Int, offset uint, rounding shared.Rounding) (*big.Int, error) {
	if y.Sign() == 0 {
		return nil, errors.New("division by zero")
	}
	numerator := new(big.Int).Lsh(x, offset)
	div, mod := new(big.Int).QuoRem(numerator, y, new(big.Int))
	if rounding == shared.RoundingUp && mod.Sign() != 0 {
		return div.Add(div, big.NewInt(1)), nil
	}
	return div, nil
}

func CastU64(v *big.Int) (uint64, error) {
	if v.Sign() < 0 || v.Cmp(shared.U64Max) > 0 {
		return 0, errors.New("value does not fit into u64")
	}
	return v.Uint64(), nil
}

func Q64ToDecimal(num *big.Int, decimalPlaces int32) decimal.Decimal {
	if num == nil {
		return decimal.Zero
	}
	out := decimal.NewFromBigInt(num, 0).Div(decimal.NewFromBigInt(
		new(big.Int).Lsh(big.NewInt(1), shared.ScaleOffset),
		0,
	))
	if decimalPlaces >= 0 {
		return out.Round(decimalPlaces)
	}
	return out
}

func U128ToBig(v binary.Uint128) *big.Int {
	return v.BigInt()
}

func U128FromBig(v *big.Int) (binary.Uint128, error) {
	if v == nil {
		return binary.Uint128{}, nil
	}
	if v.Sign() < 0 || v.Cmp(shared.MaxU128) > 0 {
		return binary.Uint128{}, errors.New("value does not fit into u128")
	}
	lo := new(big.Int).And(v, new(big.Int).SetUint64(^uint64(0))).Uint64()
	hi := new(big.Int).Rsh(new(big.Int).Set(v), 64).Uint64()
	return binary.Uint128{Lo: lo, Hi: hi}, nil
}

// U128FromString parses a decimal literal into a Uint128.
func U128FromString(s string) (binary.Uint128, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return binary.Uint128{}, errors.New("invalid u128 literal")
	}
	return U128FromBig(v)
}

// Pow computes base^exp where base is Q64.64, via iterative squaring.
// Intermediates carry twice the fractional width, so the truncation error
// stays below one Q64.64 unit even at the largest exponents; a reciprocal
// taken any earlier would eat the mantissa and collapse neighboring
// exponents onto the same price. A zero result means the value left the
// Q64.64 range.
func Pow(base, exp *big.Int) *big.Int {
	if exp == nil || exp.Sign() == 0 {
		return new(big.Int).Set(shared.OneQ64)
	}
	absExp := new(big.Int).Abs(exp)
	if absExp.Cmp(shared.MaxExponential) > 0 {
		return big.NewInt(0)
	}

	const powOffset = 2 * shared.ScaleOffset
	// Largest intermediate that can still fold back into a u128 Q64.64 value.
	limit := new(big.Int).Lsh(shared.MaxU128, shared.ScaleOffset)

	result := new(big.Int).Lsh(big.NewInt(1), powOffset)
	squared := new(big.Int).Lsh(base, shared.ScaleOffset)
	bits := absExp.BitLen()
	for bit := 0; bit < bits; bit++ {
		if absExp.Bit(bit) == 1 {
			result.Mul(result, squared)
			result.Rsh(result, powOffset)
			if result.Cmp(limit) > 0 {
				return big.NewInt(0)
			}
		}
		if bit == bits-1 {
			break
		}
		squared.Mul(squared, squared)
		squared.Rsh(squared, powOffset)
		if squared.Cmp(limit) > 0 {
			return big.NewInt(0)
		}
	}

	if exp.Sign() < 0 {
		if result.Sign() == 0 {
			return big.NewInt(0)
		}
		// 2^(3*64) / result lands directly back on Q64.64.
		return new(big.Int).Div(new(big.Int).Lsh(big.NewInt(1), 3*shared.ScaleOffset), result)
	}
	return result.Rsh(result, shared.ScaleOffset)
}
