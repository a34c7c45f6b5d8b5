package issuance

import (
	"context"
	"fmt"
	"log/slog"

	"playmint/core/events"
	"playmint/crypto"
)

func (e *Engine) ownerPolicy(ctx context.Context, caller crypto.Address) (Policy, error) {
	policy, err := e.loadPolicy(ctx)
	if err != nil {
		return policy, err
	}
	if caller != policy.Owner {
		return policy, fmt.Errorf("%w: owner only", ErrUnauthorized)
	}
	return policy, nil
}

// UpdatePolicy applies an owner update. Locked fields are skipped and listed
// in the returned slice.
func (e *Engine) UpdatePolicy(ctx context.Context, caller crypto.Address, update PolicyUpdate) (Policy, []string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	policy, err := e.ownerPolicy(ctx, caller)
	if err != nil {
		return Policy{}, nil, err
	}
	next, skipped, err := policy.Apply(update)
	if err != nil {
		return Policy{}, nil, err
	}
	if err := e.store.Write(ctx, policyKey(), &next); err != nil {
		return Policy{}, nil, err
	}
	e.emit(events.PolicyUpdated{Actor: caller, Action: "update"})
	e.logger.Info("policy updated",
		slog.String("component", "issuance"),
		slog.Uint64("rate", next.RatePerMinute),
		slog.Uint64("commission", next.CommissionPercent),
		slog.Any("skipped", skipped))
	return next, skipped, nil
}

// LockField permanently freezes one governed field.
func (e *Engine) LockField(ctx context.Context, caller crypto.Address, field string) (Policy, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	policy, err := e.ownerPolicy(ctx, caller)
	if err != nil {
		return Policy{}, err
	}
	if err := policy.Lock(field); err != nil {
		return Policy{}, err
	}
	if err := e.store.Write(ctx, policyKey(), &policy); err != nil {
		return Policy{}, err
	}
	e.emit(events.PolicyUpdated{Actor: caller, Action: "lock", Field: field})
	return policy, nil
}

// TransferOwnership hands governance to next.
func (e *Engine) TransferOwnership(ctx context.Context, caller, next crypto.Address) (Policy, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if next.IsZero() {
		return Policy{}, fmt.Errorf("%w: zero owner", ErrInvalidPolicy)
	}
	policy, err := e.ownerPolicy(ctx, caller)
	if err != nil {
		return Policy{}, err
	}
	policy.Owner = next
	if err := e.store.Write(ctx, policyKey(), &policy); err != nil {
		return Policy{}, err
	}
	e.emit(events.PolicyUpdated{Actor: caller, Action: "transfer_ownership"})
	e.logger.Warn("ownership transferred",
		slog.String("component", "issuance"),
		slog.String("from", caller.String()),
		slog.String("to", next.String()))
	return policy, nil
}

// ResetApprovals clears a stuck approval set. The reset is recorded as a
// time-gated issuance: LastIssued is stamped so the next mint waits a full
// window.
func (e *Engine) ResetApprovals(ctx context.Context, caller crypto.Address, id uint64) (BeneficiaryRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.ownerPolicy(ctx, caller); err != nil {
		return BeneficiaryRecord{}, err
	}
	rec, err := e.loadBeneficiary(ctx, id)
	if err != nil {
		return BeneficiaryRecord{}, err
	}
	rec.LastIssued = e.now()
	rec.Approvals.Clear()
	if err := e.store.Write(ctx, beneficiaryKey(id), &rec); err != nil {
		return BeneficiaryRecord{}, err
	}
	e.emit(events.PolicyUpdated{Actor: caller, Action: "reset_approvals"})
	return rec, nil
}
