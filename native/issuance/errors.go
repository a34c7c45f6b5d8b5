package issuance

import "errors"

var (
	ErrNotBootstrapped     = errors.New("issuance: engine state not initialised")
	ErrAlreadyBootstrapped = errors.New("issuance: engine state already initialised")
	ErrUnknownValidator    = errors.New("issuance: validator not registered")
	ErrUnknownBeneficiary  = errors.New("issuance: beneficiary not registered")
	ErrValidatorExists     = errors.New("issuance: validator already registered")
	ErrUnauthorized        = errors.New("issuance: caller not authorised")
	ErrGatewayRejected     = errors.New("issuance: identity verification failed")
	ErrReferenceMismatch   = errors.New("issuance: batch references do not match beneficiaries")
	ErrCommissionMismatch  = errors.New("issuance: commission destination mismatch")
	ErrOverflow            = errors.New("issuance: arithmetic overflow")
	ErrInvalidPolicy       = errors.New("issuance: invalid policy")
	ErrUnknownLockField    = errors.New("issuance: unknown lock field")
	ErrBeneficiaryLimit    = errors.New("issuance: beneficiary limit reached")
	ErrInvalidName         = errors.New("issuance: invalid beneficiary name")
	ErrNameTaken           = errors.New("issuance: beneficiary name already taken")
	ErrCooldownActive      = errors.New("issuance: change cooldown still active")
	ErrInvalidDestination  = errors.New("issuance: invalid destination")
	ErrConcurrentIssuance  = errors.New("issuance: beneficiary issued concurrently")
)
