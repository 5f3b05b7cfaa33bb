package lbclmm

import "errors"

var (
	ErrInvalidDirection      = errors.New("invalid swap direction")
	ErrInvalidBinRange       = errors.New("invalid bin range")
	ErrInvalidRewardIndex    = errors.New("invalid reward index")
	ErrZeroAmount            = errors.New("amount cannot be zero")
	ErrMathOverflow          = errors.New("math overflow")
	ErrFeeRateOutOfRange     = errors.New("fee rate out of range")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrInsufficientShares    = errors.New("insufficient liquidity shares")
	ErrFlashRepayMismatch    = errors.New("flash repay below amount owed")
	ErrFlashLoanOutstanding  = errors.New("flash loan already outstanding")
	ErrFlashLoanUnknown      = errors.New("unknown flash loan")
	ErrInvalidPosition       = errors.New("position is closed or belongs to another pool")
	ErrBlocked               = errors.New("operation blocked")
	ErrStaleVersion          = errors.New("stale protocol version")
	ErrPositionNotEmpty      = errors.New("position still holds shares or uncollected amounts")
)
