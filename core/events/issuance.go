package events

import (
	"strconv"

	"playmint/core/types"
	"playmint/crypto"
)

const (
	TypeValidatorCheckedIn = "validator.checked_in"
	TypeEpochRolled        = "epoch.rolled"
	TypeIssuanceOutcome    = "issuance.outcome"
	TypeValidatorClaimed   = "validator.claimed"
	TypePolicyUpdated      = "policy.updated"
)

// ValidatorCheckedIn is emitted after every accepted check-in.
type ValidatorCheckedIn struct {
	Validator   crypto.Address
	Epoch       uint64
	Seed        uint64
	SeedVersion uint64
	Counted     bool
	Timestamp   uint64
}

func (ValidatorCheckedIn) EventType() string { return TypeValidatorCheckedIn }

func (e ValidatorCheckedIn) Event() *types.Event {
	return &types.Event{
		Type: TypeValidatorCheckedIn,
		Attributes: map[string]string{
			"validator":   e.Validator.String(),
			"epoch":       strconv.FormatUint(e.Epoch, 10),
			"seed":        strconv.FormatUint(e.Seed, 10),
			"seedVersion": strconv.FormatUint(e.SeedVersion, 10),
			"counted":     strconv.FormatBool(e.Counted),
			"timestamp":   strconv.FormatUint(e.Timestamp, 10),
		},
	}
}

// EpochRolled signals that a check-in opened a new epoch.
type EpochRolled struct {
	Epoch     uint64
	Timestamp uint64
}

func (EpochRolled) EventType() string { return TypeEpochRolled }

func (e EpochRolled) Event() *types.Event {
	return &types.Event{
		Type: TypeEpochRolled,
		Attributes: map[string]string{
			"epoch":     strconv.FormatUint(e.Epoch, 10),
			"timestamp": strconv.FormatUint(e.Timestamp, 10),
		},
	}
}

// IssuanceOutcome reports the result of one submission item.
type IssuanceOutcome struct {
	Validator     crypto.Address
	BeneficiaryID uint64
	Status        string
	Amount        uint64
	Commission    uint64
	Reason        string
	ReceiptID     string
}

func (IssuanceOutcome) EventType() string { return TypeIssuanceOutcome }

func (e IssuanceOutcome) Event() *types.Event {
	attrs := map[string]string{
		"validator":   e.Validator.String(),
		"beneficiary": strconv.FormatUint(e.BeneficiaryID, 10),
		"status":      e.Status,
		"amount":      strconv.FormatUint(e.Amount, 10),
		"commission":  strconv.FormatUint(e.Commission, 10),
		"receiptId":   e.ReceiptID,
	}
	if e.Reason != "" {
		attrs["reason"] = e.Reason
	}
	return &types.Event{Type: TypeIssuanceOutcome, Attributes: attrs}
}

// ValidatorClaimed is emitted when a validator self-claim mints.
type ValidatorClaimed struct {
	Validator crypto.Address
	Minutes   uint64
	Amount    uint64
	Timestamp uint64
}

func (ValidatorClaimed) EventType() string { return TypeValidatorClaimed }

func (e ValidatorClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypeValidatorClaimed,
		Attributes: map[string]string{
			"validator": e.Validator.String(),
			"minutes":   strconv.FormatUint(e.Minutes, 10),
			"amount":    strconv.FormatUint(e.Amount, 10),
			"timestamp": strconv.FormatUint(e.Timestamp, 10),
		},
	}
}

// PolicyUpdated captures governance changes.
type PolicyUpdated struct {
	Actor  crypto.Address
	Action string
	Field  string
}

func (PolicyUpdated) EventType() string { return TypePolicyUpdated }

func (e PolicyUpdated) Event() *types.Event {
	attrs := map[string]string{
		"actor":  e.Actor.String(),
		"action": e.Action,
	}
	if e.Field != "" {
		attrs["field"] = e.Field
	}
	return &types.Event{Type: TypePolicyUpdated, Attributes: attrs}
}
