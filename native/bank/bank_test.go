package bank

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"playmint/crypto"
)

func newTestJournal(t *testing.T) *JournalLedger {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("sqlite open: %v", err)
	}
	ledger, err := NewJournalLedger(db)
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	t.Cleanup(func() { _ = ledger.Close() })
	return ledger
}

func TestMemoryLedgerMint(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()
	alice := crypto.Address{0x01}

	require.NoError(t, ledger.Mint(ctx, alice, 56_666_660))
	require.NoError(t, ledger.Mint(ctx, alice, 4))
	balance, err := ledger.Balance(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, uint64(56_666_664), balance.Uint64())

	require.ErrorIs(t, ledger.Mint(ctx, crypto.Address{}, 1), ErrZeroDestination)
	require.ErrorIs(t, ledger.Mint(ctx, alice, 0), ErrZeroAmount)

	entries, err := ledger.Entries(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, uint64(56_666_664), ledger.TotalMinted().Uint64())
}

func TestMemoryLedgerEntriesRange(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		ts := base.Add(time.Duration(i) * time.Hour)
		ledger.SetNowFunc(func() time.Time { return ts })
		require.NoError(t, ledger.Mint(ctx, crypto.Address{byte(i + 1)}, 10))
	}
	entries, err := ledger.Entries(ctx, base.Add(time.Hour), base.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, crypto.Address{2}, entries[0].Destination)
}

func TestMemoryLedgerHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, NewMemoryLedger().Mint(ctx, crypto.Address{1}, 1), context.Canceled)
}

func TestJournalLedgerMint(t *testing.T) {
	ctx := context.Background()
	ledger := newTestJournal(t)
	alice := crypto.Address{0xaa}
	bob := crypto.Address{0xbb}

	require.NoError(t, ledger.Mint(ctx, alice, 100))
	require.NoError(t, ledger.Mint(ctx, alice, 23))
	require.NoError(t, ledger.Mint(ctx, bob, 7))

	balance, err := ledger.Balance(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, uint64(123), balance.Uint64())

	empty, err := ledger.Balance(ctx, crypto.Address{0xcc})
	require.NoError(t, err)
	require.True(t, empty.IsZero())

	entries, err := ledger.Entries(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, bob, entries[2].Destination)
	require.NotEmpty(t, entries[0].ID)
}

func TestJournalLedgerRejectsInvalidMint(t *testing.T) {
	ledger := newTestJournal(t)
	require.ErrorIs(t, ledger.Mint(context.Background(), crypto.Address{}, 5), ErrZeroDestination)
}

func TestOpenJournalUnknownDriver(t *testing.T) {
	_, err := OpenJournal("oracle", "")
	require.Error(t, err)
}
