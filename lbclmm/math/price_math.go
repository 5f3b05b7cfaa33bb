package math

import (
	"errors"
	"math/big"

	"github.com/krazyTry/dlmm-go/lbclmm/shared"
)

// GetPriceFromID returns the Q64.64 price of a bin: (1 + binStep/10000)^id.
// Ids whose price leaves the Q64.64 range error out: overflow past the u128
// width on the high side, and on the low side the point where the ladder
// spacing price*binStep/10000 drops under one raw unit, below which adjacent
// ids collapse onto the same price and the id cannot be recovered.
func GetPriceFromID(id int32, binStep uint16) (*big.Int, error) {
	if id > shared.MaxBinID || id < shared.MinBinID {
		return nil, errors.New("bin id out of range")
	}
	if binStep == 0 || binStep > shared.BasisPointMax {
		return nil, errors.New("invalid bin step")
	}
	bps := new(big.Int).Lsh(big.NewInt(int64(binStep)), shared.ScaleOffset)
	bps.Div(bps, big.NewInt(shared.BasisPointMax))
	base := new(big.Int).Add(shared.OneQ64, bps)
	price := Pow(base, big.NewInt(int64(id)))
	if price.Sign() == 0 {
		return nil, errors.New("price overflow")
	}
	spacing := new(big.Int).Mul(price, big.NewInt(int64(binStep)))
	if spacing.Cmp(big.NewInt(2*shared.BasisPointMax)) < 0 {
		return nil, errors.New("price underflow")
	}
	return price, nil
}

// GetIDFromPrice recovers the bin id whose price floor-matches the given
// Q64.64 price: the largest id with GetPriceFromID(id) <= price. Pow is
// deterministic, so the round trip through GetPriceFromID is exact.
func GetIDFromPrice(price *big.Int, binStep uint16) (int32, error) {
	if price == nil || price.Sign() <= 0 {
		return 0, errors.New("price must be positive")
	}

	lo, hi := int32(shared.MinBinID), int32(shared.MaxBinID)
	for lo < hi {
		mid := int32((int64(lo) + int64(hi) + 1) / 2)
		p, err := GetPriceFromID(mid, binStep)
		if err != nil {
			// Out of the Q64.64 range: an overflowed positive id is above
			// any target, an underflowed negative id below it.
			if mid > 0 {
				hi = mid - 1
			} else {
				lo = mid
			}
			continue
		}
		if p.Cmp(price) <= 0 {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	p, err := GetPriceFromID(lo, binStep)
	if err != nil || p.Cmp(price) > 0 {
		return 0, errors.New("price outside bin id range")
	}
	return lo, nil
}
