// Package fixedpoint holds the overflow-checked integer arithmetic shared by
// the reward accounting. Every product is formed in a 256-bit intermediate,
// divided with floor semantics and narrowed back to 64 bits; a narrowing that
// would drop high bits fails with domain.ErrMathOverflow.
package fixedpoint

import (
	"fmt"
	"math"

	"github.com/holiman/uint256"
	"github.com/vitos/yield_staking/internal/domain"
)

const (
	BpsDenominator     uint64 = 10_000
	PercentDenominator uint64 = 100
)

// MulDiv returns floor(a*b/d).
func MulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, fmt.Errorf("%w: division by zero in %d*%d/0", domain.ErrMathOverflow, a, b)
	}
	x := uint256.NewInt(a)
	x.Mul(x, uint256.NewInt(b))
	x.Div(x, uint256.NewInt(d))
	if !x.IsUint64() {
		return 0, fmt.Errorf("%w: %d*%d/%d exceeds 64 bits", domain.ErrMathOverflow, a, b, d)
	}
	return x.Uint64(), nil
}

// Bps returns floor(amount*rate/10000).
func Bps(amount, rate uint64) (uint64, error) {
	return MulDiv(amount, rate, BpsDenominator)
}

// Percent returns floor(amount*pct/100).
func Percent(amount, pct uint64) (uint64, error) {
	return MulDiv(amount, pct, PercentDenominator)
}

func Add(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, fmt.Errorf("%w: %d+%d", domain.ErrMathOverflow, a, b)
	}
	return a + b, nil
}

func Sub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, fmt.Errorf("%w: %d-%d", domain.ErrMathOverflow, a, b)
	}
	return a - b, nil
}

// Sum adds amounts, failing on the first wrap.
func Sum(amounts []uint64) (uint64, error) {
	var total uint64
	for _, a := range amounts {
		var err error
		if total, err = Add(total, a); err != nil {
			return 0, err
		}
	}
	return total, nil
}
