package issuance

import (
	"context"

	"playmint/core/state"
	"playmint/crypto"
)

// Store is the keyed record store the engine persists through.
type Store interface {
	Create(ctx context.Context, key state.Key, rec any) error
	Read(ctx context.Context, key state.Key, out any) error
	Write(ctx context.Context, key state.Key, rec any) error
	Exists(ctx context.Context, key state.Key) (bool, error)
}

// Ledger mints reward tokens. The engine never calls Mint twice for the same
// logical event.
type Ledger interface {
	Mint(ctx context.Context, destination crypto.Address, amount uint64) error
}

// Gateway verifies that identity holds a valid attestation for network.
type Gateway interface {
	Verify(ctx context.Context, identity crypto.Address, network string) error
}
