package issuance

import (
	"fmt"
	"math/bits"
)

// Window is the inclusive range of elapsed minutes eligible for issuance.
type Window struct {
	MinMinutes uint64
	MaxMinutes uint64
}

// DefaultWindow is the current 1..34 minute window.
func DefaultWindow() Window { return Window{MinMinutes: 1, MaxMinutes: 34} }

// LegacyWindow is the older 7..34 minute window.
func LegacyWindow() Window { return Window{MinMinutes: 7, MaxMinutes: 34} }

// Validate rejects empty or inverted windows.
func (w Window) Validate() error {
	if w.MaxMinutes == 0 {
		return fmt.Errorf("issuance window maximum must be positive")
	}
	if w.MinMinutes > w.MaxMinutes {
		return fmt.Errorf("issuance window minimum %d exceeds maximum %d", w.MinMinutes, w.MaxMinutes)
	}
	return nil
}

// Contains reports whether minutes lies inside the window.
func (w Window) Contains(minutes uint64) bool {
	return minutes >= w.MinMinutes && minutes <= w.MaxMinutes
}

// Timing is the throttle verdict for one beneficiary.
type Timing struct {
	Minutes  uint64
	Eligible bool
	Amount   uint64
}

// Throttle gates beneficiary issuance on the time since the last issuance.
type Throttle struct {
	window Window
}

// NewThrottle builds a throttle over window.
func NewThrottle(window Window) Throttle {
	return Throttle{window: window}
}

// Window returns the configured window.
func (t Throttle) Window() Window { return t.window }

// ElapsedMinutes returns whole minutes between lastIssued and now. Clock
// regressions count as zero and an unset lastIssued counts from 0.
func ElapsedMinutes(lastIssued, now uint64) uint64 {
	if now <= lastIssued {
		return 0
	}
	return (now - lastIssued) / 60
}

// Evaluate computes the timing verdict. Amounts are only set for eligible
// timings.
func (t Throttle) Evaluate(lastIssued, now, rate uint64) (Timing, error) {
	minutes := ElapsedMinutes(lastIssued, now)
	timing := Timing{Minutes: minutes}
	if !t.window.Contains(minutes) {
		return timing, nil
	}
	amount, err := mulUint64(minutes, rate)
	if err != nil {
		return timing, err
	}
	timing.Eligible = true
	timing.Amount = amount
	return timing, nil
}

// MaxAmount is the largest amount Evaluate can produce for rate.
func (t Throttle) MaxAmount(rate uint64) (uint64, error) {
	return mulUint64(t.window.MaxMinutes, rate)
}

func mulUint64(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, fmt.Errorf("%w: %d x %d", ErrOverflow, a, b)
	}
	return lo, nil
}
