package bank

import (
	"context"
	"errors"
	"time"

	"github.com/holiman/uint256"

	"playmint/crypto"
)

var (
	// ErrZeroDestination is returned when minting to the zero address.
	ErrZeroDestination = errors.New("bank: destination required")
	// ErrZeroAmount is returned when minting nothing.
	ErrZeroAmount = errors.New("bank: amount must be positive")
)

// Entry is one journaled mint.
type Entry struct {
	ID          string         `json:"id"`
	Destination crypto.Address `json:"destination"`
	Amount      uint64         `json:"amount"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// Journal exposes the mint history of a ledger.
type Journal interface {
	Entries(ctx context.Context, since, until time.Time) ([]Entry, error)
}

// Balances exposes per-address totals.
type Balances interface {
	Balance(ctx context.Context, addr crypto.Address) (*uint256.Int, error)
}

func validateMint(destination crypto.Address, amount uint64) error {
	if destination.IsZero() {
		return ErrZeroDestination
	}
	if amount == 0 {
		return ErrZeroAmount
	}
	return nil
}

func inRange(ts, since, until time.Time) bool {
	if !since.IsZero() && ts.Before(since) {
		return false
	}
	if !until.IsZero() && !ts.Before(until) {
		return false
	}
	return true
}
