package lbclmm

import (
	"math/big"

	dlmmmath "github.com/krazyTry/dlmm-go/lbclmm/math"
	"github.com/krazyTry/dlmm-go/lbclmm/shared"
)

// BinLedger owns one pool's sparse bin set. Bins are allocated lazily on the
// first deposit and released once fully drained. A word-sliced bitmap tracks
// which ids are funded so swaps can jump straight to the next funded bin.
type BinLedger struct {
	binStep uint16
	bins    map[int32]*Bin
	bitmap  map[int32]uint64
	prices  map[int32]*big.Int
}

func newBinLedger(binStep uint16) *BinLedger {
	return &BinLedger{
		binStep: binStep,
		bins:    make(map[int32]*Bin),
		bitmap:  make(map[int32]uint64),
		prices:  make(map[int32]*big.Int),
	}
}

// GetBin returns a copy of the bin at id, or a zero-valued bin if none is
// stored. Reads never allocate.
func (l *BinLedger) GetBin(id int32) Bin {
	if b, ok := l.bins[id]; ok {
		return *b
	}
	return Bin{}
}

func (l *BinLedger) getOrCreate(id int32) *Bin {
	if b, ok := l.bins[id]; ok {
		return b
	}
	b := &Bin{}
	l.bins[id] = b
	l.bitmap[id>>6] |= 1 << uint(id&63)
	return b
}

func (l *BinLedger) release(id int32) {
	delete(l.bins, id)
	word := id >> 6
	l.bitmap[word] &^= 1 << uint(id&63)
	if l.bitmap[word] == 0 {
		delete(l.bitmap, word)
	}
}

func (l *BinLedger) priceOf(id int32) (*big.Int, error) {
	if p, ok := l.prices[id]; ok {
		return p, nil
	}
	p, err := dlmmmath.GetPriceFromID(id, l.binStep)
	if err != nil {
		return nil, err
	}
	l.prices[id] = p
	return p, nil
}

// NextFundedBin returns the nearest funded bin id strictly past fromID in
// the swap direction. SwapForY walks upward, SwapForX downward.
func (l *BinLedger) NextFundedBin(fromID int32, direction shared.SwapDirection) (int32, bool) {
	found := false
	var best int32
	for word, bits := range l.bitmap {
		base := word << 6
		for bit := 0; bit < 64; bit++ {
			if bits&(1<<uint(bit)) == 0 {
				continue
			}
			id := base + int32(bit)
			if direction == shared.SwapForY {
				if id <= fromID {
					continue
				}
				if !found || id < best {
					best, found = id, true
				}
			} else {
				if id >= fromID {
					continue
				}
				if !found || id > best {
					best, found = id, true
				}
			}
		}
	}
	return best, found
}

// deposit adds reserves to a bin, minting liquidity shares.
func (l *BinLedger) deposit(id int32, deltaX, deltaY uint64) (*big.Int, error) {
	price, err := l.priceOf(id)
	if err != nil {
		return nil, err
	}
	b := l.getOrCreate(id)
	minted, err := b.mint(price, deltaX, deltaY)
	if err != nil {
		if b.isDrained() {
			l.release(id)
		}
		return nil, err
	}
	return minted, nil
}

// workBin hands out a mutable copy of the bin for staged operations.
func (l *BinLedger) workBin(work map[int32]*Bin, id int32) *Bin {
	if w, ok := work[id]; ok {
		return w
	}
	b := l.GetBin(id)
	work[id] = &b
	return &b
}

// commitBins writes staged bin states back, releasing drained bins.
func (l *BinLedger) commitBins(work map[int32]*Bin) {
	for id, w := range work {
		if w.isDrained() {
			if _, ok := l.bins[id]; ok {
				l.release(id)
			}
			continue
		}
		b := l.getOrCreate(id)
		*b = *w
	}
}
