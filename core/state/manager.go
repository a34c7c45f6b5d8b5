package state

import (
	"context"
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"playmint/storage"
)

var (
	// ErrNotFound is returned when a record has never been created.
	ErrNotFound = errors.New("state: record not found")
	// ErrExists is returned by Create when the key is already taken.
	ErrExists = errors.New("state: record already exists")
)

// Key addresses a record by entity kind and a discriminating byte string
// (an address, a sequence number, a normalised name).
type Key struct {
	Kind          Kind
	Discriminator []byte
}

// NewKey builds a key from a kind and discriminator.
func NewKey(kind Kind, discriminator []byte) Key {
	return Key{Kind: kind, Discriminator: append([]byte(nil), discriminator...)}
}

// Hash derives the storage key. Kinds and discriminators are joined with a
// separator the kind names never contain.
func (k Key) Hash() []byte {
	buf := make([]byte, 0, len(k.Kind)+1+len(k.Discriminator))
	buf = append(buf, k.Kind...)
	buf = append(buf, ':')
	buf = append(buf, k.Discriminator...)
	return ethcrypto.Keccak256(buf)
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%x", k.Kind, k.Discriminator)
}

// RecordStore persists RLP-encoded records in a storage.Database.
type RecordStore struct {
	db storage.Database
}

// NewRecordStore wraps the supplied database.
func NewRecordStore(db storage.Database) *RecordStore {
	return &RecordStore{db: db}
}

// Create stores rec under key, failing with ErrExists when the key is taken.
func (s *RecordStore) Create(ctx context.Context, key Key, rec any) error {
	exists, err := s.Exists(ctx, key)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrExists, key)
	}
	return s.Write(ctx, key, rec)
}

// Read decodes the record stored under key into out.
func (s *RecordStore) Read(ctx context.Context, key Key, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := s.db.Get(key.Hash())
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return fmt.Errorf("state: read %s: %w", key, err)
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return fmt.Errorf("state: decode %s: %w", key, err)
	}
	return nil
}

// Write encodes rec and overwrites whatever is stored under key.
func (s *RecordStore) Write(ctx context.Context, key Key, rec any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	encoded, err := rlp.EncodeToBytes(rec)
	if err != nil {
		return fmt.Errorf("state: encode %s: %w", key, err)
	}
	if err := s.db.Put(key.Hash(), encoded); err != nil {
		return fmt.Errorf("state: write %s: %w", key, err)
	}
	return nil
}

// Exists reports whether a record is stored under key.
func (s *RecordStore) Exists(ctx context.Context, key Key) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	ok, err := s.db.Has(key.Hash())
	if err != nil {
		return false, fmt.Errorf("state: exists %s: %w", key, err)
	}
	return ok, nil
}
