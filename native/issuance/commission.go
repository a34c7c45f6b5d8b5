package issuance

import (
	"fmt"

	"github.com/holiman/uint256"
)

var hundred = uint256.NewInt(100)

// Split computes floor(amount * pct / 100) in 256-bit arithmetic and returns
// the beneficiary amount for mode alongside the commission.
func Split(amount, pct uint64, mode CommissionMode) (uint64, uint64, error) {
	if pct > MaxCommissionPercent {
		return 0, 0, fmt.Errorf("%w: commission percent %d", ErrInvalidPolicy, pct)
	}
	wide := new(uint256.Int).SetUint64(amount)
	wide.Mul(wide, uint256.NewInt(pct))
	wide.Div(wide, hundred)
	if !wide.IsUint64() {
		return 0, 0, fmt.Errorf("%w: commission on %d", ErrOverflow, amount)
	}
	commission := wide.Uint64()
	switch mode {
	case CommissionCarveOut:
		return amount - commission, commission, nil
	case "", CommissionAdditive:
		if amount+commission < amount {
			return 0, 0, fmt.Errorf("%w: amount plus commission", ErrOverflow)
		}
		return amount, commission, nil
	default:
		return 0, 0, fmt.Errorf("%w: commission mode %q", ErrInvalidPolicy, mode)
	}
}
