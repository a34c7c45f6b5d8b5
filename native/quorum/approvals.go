package quorum

import (
	"errors"

	"playmint/crypto"
)

// DefaultApprovalCapacity mirrors the number of validators sharing one group.
const DefaultApprovalCapacity = ValidatorsPerGroup

// ErrApprovalsFull is returned when a new validator cannot join a full set.
var ErrApprovalsFull = errors.New("quorum: approval set is full")

// Approvals is the pending approval set of a beneficiary. Members are unique;
// the first member anchors the group distance check.
type Approvals []crypto.Address

// Contains reports whether validator already approved.
func (a Approvals) Contains(validator crypto.Address) bool {
	for _, member := range a {
		if member == validator {
			return true
		}
	}
	return false
}

// Add appends validator when absent. The boolean reports whether the set grew.
func (a *Approvals) Add(validator crypto.Address, capacity int) (bool, error) {
	if a.Contains(validator) {
		return false, nil
	}
	if capacity <= 0 {
		capacity = DefaultApprovalCapacity
	}
	if len(*a) >= capacity {
		return false, ErrApprovalsFull
	}
	*a = append(*a, validator)
	return true, nil
}

// Clear empties the set.
func (a *Approvals) Clear() {
	*a = nil
}

// Clone returns an independent copy.
func (a Approvals) Clone() Approvals {
	if len(a) == 0 {
		return nil
	}
	return append(Approvals(nil), a...)
}
