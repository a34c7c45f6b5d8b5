package genesis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"playmint/crypto"
	"playmint/native/issuance"
)

// Spec is the YAML roster used to bootstrap a fresh engine.
type Spec struct {
	Owner         string            `yaml:"owner"`
	Policy        PolicySpec        `yaml:"policy"`
	Validators    []string          `yaml:"validators"`
	Beneficiaries []BeneficiarySpec `yaml:"beneficiaries"`
	Locks         []string          `yaml:"locks"`
}

// PolicySpec overrides the default policy. Omitted fields keep their defaults.
type PolicySpec struct {
	RatePerMinute         *uint64 `yaml:"rate_per_minute"`
	ValidatorClaimRate    *uint64 `yaml:"validator_claim_rate"`
	CommissionPercent     *uint64 `yaml:"commission_percent"`
	CommissionDestination string  `yaml:"commission_destination"`
	CommissionMode        string  `yaml:"commission_mode"`
	Curated               *bool   `yaml:"curated"`
	GatekeeperNetwork     string  `yaml:"gatekeeper_network"`
	BeneficiaryLimit      *uint64 `yaml:"beneficiary_limit"`
}

// BeneficiarySpec registers one beneficiary at genesis.
type BeneficiarySpec struct {
	Name        string `yaml:"name"`
	Authority   string `yaml:"authority"`
	Destination string `yaml:"destination"`
}

// Load decodes the genesis file at path.
func Load(path string) (*Spec, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open genesis: %w", err)
	}
	defer file.Close()
	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	var spec Spec
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode genesis: %w", err)
	}
	return &spec, nil
}

// Apply bootstraps engine from spec. defaultOwner is used when the spec names
// no owner. An engine that is already bootstrapped is left untouched and Apply
// reports false.
func Apply(ctx context.Context, engine *issuance.Engine, spec *Spec, defaultOwner crypto.Address) (bool, error) {
	if spec == nil {
		spec = &Spec{}
	}
	ready, err := engine.Bootstrapped(ctx)
	if err != nil {
		return false, err
	}
	if ready {
		return false, nil
	}

	owner := defaultOwner
	if strings.TrimSpace(spec.Owner) != "" {
		if owner, err = crypto.ParseAddress(spec.Owner); err != nil {
			return false, fmt.Errorf("genesis owner: %w", err)
		}
	}
	if owner.IsZero() {
		return false, errors.New("genesis: owner required")
	}
	policy, err := spec.Policy.build(owner)
	if err != nil {
		return false, err
	}

	// Open registration only lets validators enrol themselves, so the roster
	// is loaded under a curated policy and the mode is restored afterwards.
	curated := policy.Curated
	policy.Curated = true
	if err := engine.Bootstrap(ctx, policy); err != nil {
		return false, err
	}
	for i, raw := range spec.Validators {
		addr, err := crypto.ParseAddress(raw)
		if err != nil {
			return false, fmt.Errorf("genesis validator %d: %w", i, err)
		}
		if _, err := engine.RegisterValidator(ctx, owner, addr); err != nil {
			return false, fmt.Errorf("genesis validator %s: %w", addr, err)
		}
	}
	for i, b := range spec.Beneficiaries {
		authority := owner
		if strings.TrimSpace(b.Authority) != "" {
			if authority, err = crypto.ParseAddress(b.Authority); err != nil {
				return false, fmt.Errorf("genesis beneficiary %d authority: %w", i, err)
			}
		}
		destination, err := crypto.ParseAddress(b.Destination)
		if err != nil {
			return false, fmt.Errorf("genesis beneficiary %d destination: %w", i, err)
		}
		if _, err := engine.RegisterBeneficiary(ctx, authority, b.Name, destination); err != nil {
			return false, fmt.Errorf("genesis beneficiary %q: %w", b.Name, err)
		}
	}
	if !curated {
		open := false
		if _, _, err := engine.UpdatePolicy(ctx, owner, issuance.PolicyUpdate{Curated: &open}); err != nil {
			return false, err
		}
	}
	for _, field := range spec.Locks {
		if _, err := engine.LockField(ctx, owner, field); err != nil {
			return false, fmt.Errorf("genesis lock %q: %w", field, err)
		}
	}
	return true, nil
}

func (p PolicySpec) build(owner crypto.Address) (issuance.Policy, error) {
	policy := issuance.DefaultPolicy(owner)
	if p.RatePerMinute != nil {
		policy.RatePerMinute = *p.RatePerMinute
	}
	if p.ValidatorClaimRate != nil {
		policy.ValidatorClaimRate = *p.ValidatorClaimRate
	}
	if p.CommissionPercent != nil {
		policy.CommissionPercent = *p.CommissionPercent
	}
	if strings.TrimSpace(p.CommissionDestination) != "" {
		addr, err := crypto.ParseAddress(p.CommissionDestination)
		if err != nil {
			return issuance.Policy{}, fmt.Errorf("genesis commission destination: %w", err)
		}
		policy.CommissionDestination = addr
	}
	if mode := strings.TrimSpace(p.CommissionMode); mode != "" {
		policy.CommissionMode = issuance.CommissionMode(strings.ToLower(mode))
	}
	if p.Curated != nil {
		policy.Curated = *p.Curated
	}
	policy.GatekeeperNetwork = strings.TrimSpace(p.GatekeeperNetwork)
	if p.BeneficiaryLimit != nil {
		policy.BeneficiaryLimit = *p.BeneficiaryLimit
	}
	if err := policy.Validate(); err != nil {
		return issuance.Policy{}, err
	}
	return policy, nil
}
