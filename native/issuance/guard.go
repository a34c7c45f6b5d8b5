package issuance

import (
	"context"
	"fmt"
)

// Guard re-reads a beneficiary before finalising and refuses to proceed when
// its issuance marker moved since processing began.
type Guard struct {
	store Store
}

// NewGuard returns a guard reading through store.
func NewGuard(store Store) Guard {
	return Guard{store: store}
}

// Check compares the stored LastIssued for id with observed.
func (g Guard) Check(ctx context.Context, id, observed uint64) error {
	var current BeneficiaryRecord
	if err := g.store.Read(ctx, beneficiaryKey(id), &current); err != nil {
		return fmt.Errorf("issuance: guard read beneficiary %d: %w", id, err)
	}
	if current.LastIssued != observed {
		return fmt.Errorf("%w: beneficiary %d marker %d, observed %d", ErrConcurrentIssuance, id, current.LastIssued, observed)
	}
	return nil
}
