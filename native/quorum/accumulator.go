package quorum

import (
	"playmint/crypto"
)

// Outcome is the result of evaluating a beneficiary's approval set.
type Outcome uint8

const (
	// Pending means more approvals are required.
	Pending Outcome = iota
	// Consensus means the approvers agree closely enough to issue.
	Consensus
	// Rejected means an approver sits too far from the anchor group. The
	// set is kept so later evaluations can still succeed.
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Consensus:
		return "consensus"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// View is the epoch snapshot an approval is evaluated against.
type View struct {
	Seed             uint64
	SeedSet          bool
	ActiveValidators uint64
	TotalValidators  uint64
}

// Threshold returns the approvals required for the given active population.
// Zero means quorum cannot be reached.
func Threshold(active uint64) int {
	switch {
	case active > 1:
		return 2
	case active == 1:
		return 1
	default:
		return 0
	}
}

// Decision reports how an approval was evaluated.
type Decision struct {
	Outcome     Outcome
	Added       bool
	Threshold   int
	Approvals   int
	Groups      uint64
	Tolerance   uint64
	MaxDistance uint64
}

// Accumulator evaluates approvals with a shared assigner and tolerance policy.
type Accumulator struct {
	assigner *Assigner
	policy   TolerancePolicy
	capacity int
}

// NewAccumulator wires the accumulator. A nil assigner hashes every lookup.
func NewAccumulator(assigner *Assigner, policy TolerancePolicy, capacity int) *Accumulator {
	if capacity <= 0 {
		capacity = DefaultApprovalCapacity
	}
	return &Accumulator{assigner: assigner, policy: policy, capacity: capacity}
}

// Capacity returns the maximum approval set size.
func (a *Accumulator) Capacity() int {
	return a.capacity
}

// Approve records validator in set and evaluates quorum. ErrApprovalsFull is
// returned, with the set untouched, when a new validator does not fit.
func (a *Accumulator) Approve(set *Approvals, validator crypto.Address, view View) (Decision, error) {
	added, err := set.Add(validator, a.capacity)
	if err != nil {
		return Decision{Outcome: Pending, Approvals: len(*set)}, err
	}
	decision := a.Evaluate(*set, view)
	decision.Added = added
	return decision, nil
}

// Evaluate checks an approval set without modifying it.
func (a *Accumulator) Evaluate(set Approvals, view View) Decision {
	decision := Decision{
		Outcome:   Pending,
		Threshold: Threshold(view.ActiveValidators),
		Approvals: len(set),
		Groups:    GroupCount(view.TotalValidators),
		Tolerance: a.policy.Tolerance(view.TotalValidators),
	}
	if !view.SeedSet || decision.Threshold == 0 || len(set) < decision.Threshold {
		return decision
	}
	ids := make([]uint64, len(set))
	for i, member := range set {
		ids[i] = a.assigner.Group(member, view.Seed, decision.Groups)
	}
	widest, ok := WithinTolerance(ids, decision.Groups, decision.Tolerance)
	decision.MaxDistance = widest
	if ok {
		decision.Outcome = Consensus
	} else {
		decision.Outcome = Rejected
	}
	return decision
}
