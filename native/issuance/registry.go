package issuance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"playmint/core/state"
	"playmint/crypto"
)

// RegisterValidator adds addr to the validator population. Curated policies
// only accept registrations from the owner; open policies accept
// self-registration from attested identities.
func (e *Engine) RegisterValidator(ctx context.Context, caller, addr crypto.Address) (ValidatorRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if addr.IsZero() {
		return ValidatorRecord{}, fmt.Errorf("%w: zero validator address", ErrInvalidDestination)
	}
	policy, err := e.loadPolicy(ctx)
	if err != nil {
		return ValidatorRecord{}, err
	}
	if policy.Curated {
		if caller != policy.Owner {
			return ValidatorRecord{}, fmt.Errorf("%w: curated registration requires the owner", ErrUnauthorized)
		}
	} else {
		if caller != addr {
			return ValidatorRecord{}, fmt.Errorf("%w: validators register themselves", ErrUnauthorized)
		}
		if err := e.verify(ctx, addr, policy.GatekeeperNetwork); err != nil {
			return ValidatorRecord{}, err
		}
	}
	st, err := e.loadEpoch(ctx)
	if err != nil {
		return ValidatorRecord{}, err
	}

	rec := ValidatorRecord{Address: addr, RegisteredAt: e.now()}
	if err := e.store.Create(ctx, validatorKey(addr), &rec); err != nil {
		if errors.Is(err, state.ErrExists) {
			return ValidatorRecord{}, fmt.Errorf("%w: %s", ErrValidatorExists, addr)
		}
		return ValidatorRecord{}, err
	}
	st.TotalValidators++
	if err := e.store.Write(ctx, epochKey(), &st); err != nil {
		return ValidatorRecord{}, err
	}
	e.publishEpoch(st)
	e.logger.Info("validator registered",
		slog.String("component", "issuance"),
		slog.String("validator", addr.String()),
		slog.Uint64("total", st.TotalValidators))
	return rec, nil
}

// RegisterBeneficiary creates a beneficiary owned by authority under a unique
// name. Identifiers are assigned sequentially from 1.
func (e *Engine) RegisterBeneficiary(ctx context.Context, authority crypto.Address, name string, destination crypto.Address) (BeneficiaryRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if destination.IsZero() {
		return BeneficiaryRecord{}, fmt.Errorf("%w: zero destination", ErrInvalidDestination)
	}
	normalized, err := NormalizeName(name)
	if err != nil {
		return BeneficiaryRecord{}, err
	}
	policy, err := e.loadPolicy(ctx)
	if err != nil {
		return BeneficiaryRecord{}, err
	}
	if err := e.verify(ctx, authority, policy.GatekeeperNetwork); err != nil {
		return BeneficiaryRecord{}, err
	}
	st, err := e.loadEpoch(ctx)
	if err != nil {
		return BeneficiaryRecord{}, err
	}
	if policy.BeneficiaryLimit != 0 && st.TotalBeneficiaries >= policy.BeneficiaryLimit {
		return BeneficiaryRecord{}, fmt.Errorf("%w: %d", ErrBeneficiaryLimit, policy.BeneficiaryLimit)
	}

	id := st.TotalBeneficiaries + 1
	if err := e.reserveName(ctx, normalized, id); err != nil {
		return BeneficiaryRecord{}, err
	}
	rec := BeneficiaryRecord{
		ID:           id,
		Name:         strings.TrimSpace(name),
		Authority:    authority,
		Destination:  destination,
		RegisteredAt: e.now(),
	}
	if err := e.store.Create(ctx, beneficiaryKey(id), &rec); err != nil {
		if relErr := e.releaseName(ctx, normalized); relErr != nil {
			return BeneficiaryRecord{}, errors.Join(err, relErr)
		}
		return BeneficiaryRecord{}, err
	}
	st.TotalBeneficiaries = id
	if err := e.store.Write(ctx, epochKey(), &st); err != nil {
		return BeneficiaryRecord{}, err
	}
	e.logger.Info("beneficiary registered",
		slog.String("component", "issuance"),
		slog.Uint64("beneficiary", id),
		slog.String("authority", authority.String()))
	return rec, nil
}

// reserveName claims normalized for id. Released names can be claimed again.
func (e *Engine) reserveName(ctx context.Context, normalized string, id uint64) error {
	var existing nameIndex
	err := e.store.Read(ctx, nameKey(normalized), &existing)
	switch {
	case err == nil && existing.Active:
		return fmt.Errorf("%w: %q", ErrNameTaken, normalized)
	case err != nil && !errors.Is(err, state.ErrNotFound):
		return err
	}
	return e.store.Write(ctx, nameKey(normalized), &nameIndex{BeneficiaryID: id, Active: true})
}

func (e *Engine) releaseName(ctx context.Context, normalized string) error {
	return e.store.Write(ctx, nameKey(normalized), &nameIndex{})
}

// BeneficiaryByName resolves a registered name.
func (e *Engine) BeneficiaryByName(ctx context.Context, name string) (BeneficiaryRecord, error) {
	normalized, err := NormalizeName(name)
	if err != nil {
		return BeneficiaryRecord{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	var idx nameIndex
	if err := e.store.Read(ctx, nameKey(normalized), &idx); err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return BeneficiaryRecord{}, fmt.Errorf("%w: %q", ErrUnknownBeneficiary, normalized)
		}
		return BeneficiaryRecord{}, err
	}
	if !idx.Active {
		return BeneficiaryRecord{}, fmt.Errorf("%w: %q", ErrUnknownBeneficiary, normalized)
	}
	return e.loadBeneficiary(ctx, idx.BeneficiaryID)
}

func (e *Engine) loadOwned(ctx context.Context, caller crypto.Address, id uint64) (BeneficiaryRecord, error) {
	rec, err := e.loadBeneficiary(ctx, id)
	if err != nil {
		return rec, err
	}
	if rec.Authority != caller {
		return rec, fmt.Errorf("%w: not the beneficiary authority", ErrUnauthorized)
	}
	return rec, nil
}

func cooling(last, now uint64) bool {
	return last != 0 && now >= last && now-last < ChangeCooldownSeconds
}

// RenameBeneficiary changes the display name, at most once per day.
func (e *Engine) RenameBeneficiary(ctx context.Context, caller crypto.Address, id uint64, name string) (BeneficiaryRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	normalized, err := NormalizeName(name)
	if err != nil {
		return BeneficiaryRecord{}, err
	}
	policy, err := e.loadPolicy(ctx)
	if err != nil {
		return BeneficiaryRecord{}, err
	}
	if err := e.verify(ctx, caller, policy.GatekeeperNetwork); err != nil {
		return BeneficiaryRecord{}, err
	}
	rec, err := e.loadOwned(ctx, caller, id)
	if err != nil {
		return BeneficiaryRecord{}, err
	}
	now := e.now()
	if cooling(rec.LastNameChange, now) {
		return BeneficiaryRecord{}, fmt.Errorf("%w: name", ErrCooldownActive)
	}
	previous, err := NormalizeName(rec.Name)
	if err != nil {
		return BeneficiaryRecord{}, err
	}
	if previous != normalized {
		if err := e.reserveName(ctx, normalized, id); err != nil {
			return BeneficiaryRecord{}, err
		}
		if err := e.releaseName(ctx, previous); err != nil {
			return BeneficiaryRecord{}, err
		}
	}
	rec.Name = strings.TrimSpace(name)
	rec.LastNameChange = now
	if err := e.store.Write(ctx, beneficiaryKey(id), &rec); err != nil {
		return BeneficiaryRecord{}, err
	}
	return rec, nil
}

// ChangeDestination replaces the reward destination, at most once per day.
func (e *Engine) ChangeDestination(ctx context.Context, caller crypto.Address, id uint64, destination crypto.Address) (BeneficiaryRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if destination.IsZero() {
		return BeneficiaryRecord{}, fmt.Errorf("%w: zero destination", ErrInvalidDestination)
	}
	rec, err := e.loadOwned(ctx, caller, id)
	if err != nil {
		return BeneficiaryRecord{}, err
	}
	now := e.now()
	if cooling(rec.LastDestinationChange, now) {
		return BeneficiaryRecord{}, fmt.Errorf("%w: destination", ErrCooldownActive)
	}
	rec.Destination = destination
	rec.LastDestinationChange = now
	if err := e.store.Write(ctx, beneficiaryKey(id), &rec); err != nil {
		return BeneficiaryRecord{}, err
	}
	return rec, nil
}
