package issuance

import (
	"fmt"
	"strings"

	"playmint/crypto"
)

const (
	// MaxRate bounds both the beneficiary and validator per-minute rates.
	MaxRate = 60_000_000
	// MaxCommissionPercent bounds CommissionPercent.
	MaxCommissionPercent = 100

	DefaultRatePerMinute      = 2_833_333
	DefaultValidatorClaimRate = 28_570
	DefaultCommissionPercent  = 0
)

// CommissionMode selects how the commission relates to the beneficiary amount.
type CommissionMode string

const (
	// CommissionAdditive mints the commission on top of the full amount.
	CommissionAdditive CommissionMode = "additive"
	// CommissionCarveOut deducts the commission from the beneficiary amount.
	CommissionCarveOut CommissionMode = "carve_out"
)

// Valid reports whether the mode is recognised. The empty mode means additive.
func (m CommissionMode) Valid() bool {
	switch m {
	case "", CommissionAdditive, CommissionCarveOut:
		return true
	default:
		return false
	}
}

// Lock field names accepted by LockField.
const (
	LockRate       = "rate"
	LockClaimRate  = "claim_rate"
	LockCommission = "commission"
)

// Policy holds the governed issuance parameters.
type Policy struct {
	RatePerMinute         uint64         `json:"ratePerMinute"`
	ValidatorClaimRate    uint64         `json:"validatorClaimRate"`
	CommissionPercent     uint64         `json:"commissionPercent"`
	CommissionDestination crypto.Address `json:"commissionDestination"`
	CommissionMode        CommissionMode `json:"commissionMode"`

	RateLocked       bool `json:"rateLocked"`
	ClaimRateLocked  bool `json:"claimRateLocked"`
	CommissionLocked bool `json:"commissionLocked"`

	Owner             crypto.Address `json:"owner"`
	Curated           bool           `json:"curated"`
	GatekeeperNetwork string         `json:"gatekeeperNetwork"`
	BeneficiaryLimit  uint64         `json:"beneficiaryLimit"`
}

// DefaultPolicy returns a curated policy owned by owner.
func DefaultPolicy(owner crypto.Address) Policy {
	return Policy{
		RatePerMinute:      DefaultRatePerMinute,
		ValidatorClaimRate: DefaultValidatorClaimRate,
		CommissionPercent:  DefaultCommissionPercent,
		CommissionMode:     CommissionAdditive,
		Owner:              owner,
		Curated:            true,
	}
}

// Validate enforces the policy bounds.
func (p Policy) Validate() error {
	if p.RatePerMinute > MaxRate {
		return fmt.Errorf("%w: rate per minute %d exceeds %d", ErrInvalidPolicy, p.RatePerMinute, MaxRate)
	}
	if p.ValidatorClaimRate > MaxRate {
		return fmt.Errorf("%w: validator claim rate %d exceeds %d", ErrInvalidPolicy, p.ValidatorClaimRate, MaxRate)
	}
	if p.CommissionPercent > MaxCommissionPercent {
		return fmt.Errorf("%w: commission percent %d exceeds %d", ErrInvalidPolicy, p.CommissionPercent, MaxCommissionPercent)
	}
	if p.CommissionPercent > 0 && p.CommissionDestination.IsZero() {
		return fmt.Errorf("%w: commission destination required", ErrInvalidPolicy)
	}
	if !p.CommissionMode.Valid() {
		return fmt.Errorf("%w: commission mode %q", ErrInvalidPolicy, p.CommissionMode)
	}
	if p.Owner.IsZero() {
		return fmt.Errorf("%w: owner required", ErrInvalidPolicy)
	}
	return nil
}

// Mode returns the effective commission mode.
func (p Policy) Mode() CommissionMode {
	if p.CommissionMode == "" {
		return CommissionAdditive
	}
	return p.CommissionMode
}

// PolicyUpdate carries optional replacements. Nil fields are left untouched.
type PolicyUpdate struct {
	RatePerMinute         *uint64         `json:"ratePerMinute,omitempty"`
	ValidatorClaimRate    *uint64         `json:"validatorClaimRate,omitempty"`
	CommissionPercent     *uint64         `json:"commissionPercent,omitempty"`
	CommissionDestination *crypto.Address `json:"commissionDestination,omitempty"`
	CommissionMode        *CommissionMode `json:"commissionMode,omitempty"`
	Curated               *bool           `json:"curated,omitempty"`
	GatekeeperNetwork     *string         `json:"gatekeeperNetwork,omitempty"`
	BeneficiaryLimit      *uint64         `json:"beneficiaryLimit,omitempty"`
}

// Apply merges the update into a copy of p. Fields guarded by a lock are
// skipped and reported; the merged policy must still validate.
func (p Policy) Apply(update PolicyUpdate) (Policy, []string, error) {
	next := p
	var skipped []string
	if update.RatePerMinute != nil {
		if p.RateLocked {
			skipped = append(skipped, "ratePerMinute")
		} else {
			next.RatePerMinute = *update.RatePerMinute
		}
	}
	if update.ValidatorClaimRate != nil {
		if p.ClaimRateLocked {
			skipped = append(skipped, "validatorClaimRate")
		} else {
			next.ValidatorClaimRate = *update.ValidatorClaimRate
		}
	}
	if update.CommissionPercent != nil || update.CommissionDestination != nil || update.CommissionMode != nil {
		if p.CommissionLocked {
			skipped = append(skipped, "commission")
		} else {
			if update.CommissionPercent != nil {
				next.CommissionPercent = *update.CommissionPercent
			}
			if update.CommissionDestination != nil {
				next.CommissionDestination = *update.CommissionDestination
			}
			if update.CommissionMode != nil {
				next.CommissionMode = *update.CommissionMode
			}
		}
	}
	if update.Curated != nil {
		next.Curated = *update.Curated
	}
	if update.GatekeeperNetwork != nil {
		next.GatekeeperNetwork = strings.TrimSpace(*update.GatekeeperNetwork)
	}
	if update.BeneficiaryLimit != nil {
		next.BeneficiaryLimit = *update.BeneficiaryLimit
	}
	if err := next.Validate(); err != nil {
		return p, nil, err
	}
	return next, skipped, nil
}

// Lock sets the named lock flag. Locks are permanent.
func (p *Policy) Lock(field string) error {
	switch strings.ToLower(strings.TrimSpace(field)) {
	case LockRate:
		p.RateLocked = true
	case LockClaimRate:
		p.ClaimRateLocked = true
	case LockCommission:
		p.CommissionLocked = true
	default:
		return fmt.Errorf("%w: %q", ErrUnknownLockField, field)
	}
	return nil
}
