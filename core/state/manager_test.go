package state

import (
	"context"
	"errors"
	"testing"

	"playmint/storage"
)

type sampleRecord struct {
	Address [20]byte
	Stamp   uint64
	Members [][20]byte
}

func TestRecordStoreLifecycle(t *testing.T) {
	store := NewRecordStore(storage.NewMemDB())
	ctx := context.Background()
	key := NewKey(KindValidator, []byte{0x01})

	var out sampleRecord
	if err := store.Read(ctx, key, &out); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	rec := sampleRecord{Stamp: 42, Members: [][20]byte{{0xaa}}}
	if err := store.Create(ctx, key, &rec); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, key, &rec); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	rec.Stamp = 43
	if err := store.Write(ctx, key, &rec); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := store.Read(ctx, key, &out); err != nil {
		t.Fatalf("read: %v", err)
	}
	if out.Stamp != 43 || len(out.Members) != 1 || out.Members[0][0] != 0xaa {
		t.Fatalf("unexpected record %+v", out)
	}
	ok, err := store.Exists(ctx, key)
	if err != nil || !ok {
		t.Fatalf("expected record to exist: %v %v", ok, err)
	}
}

func TestKeyHashSeparatesKinds(t *testing.T) {
	a := NewKey(KindValidator, []byte("x"))
	b := NewKey(KindBeneficiary, []byte("x"))
	if string(a.Hash()) == string(b.Hash()) {
		t.Fatalf("keys of different kinds collided")
	}
}

func TestRecordStoreHonoursCancelledContext(t *testing.T) {
	store := NewRecordStore(storage.NewMemDB())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := store.Write(ctx, NewKey(KindEpoch, nil), &sampleRecord{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}
