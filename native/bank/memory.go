package bank

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"playmint/crypto"
)

// MemoryLedger keeps balances and the mint journal in memory.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[crypto.Address]*uint256.Int
	entries  []Entry
	nowFn    func() time.Time
}

// NewMemoryLedger returns an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances: make(map[crypto.Address]*uint256.Int),
		nowFn:    time.Now,
	}
}

// SetNowFunc overrides the journal timestamp source.
func (l *MemoryLedger) SetNowFunc(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if now == nil {
		now = time.Now
	}
	l.nowFn = now
}

// Mint credits destination and journals the mint.
func (l *MemoryLedger) Mint(ctx context.Context, destination crypto.Address, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateMint(destination, amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	balance, ok := l.balances[destination]
	if !ok {
		balance = new(uint256.Int)
		l.balances[destination] = balance
	}
	balance.Add(balance, uint256.NewInt(amount))
	l.entries = append(l.entries, Entry{
		ID:          uuid.NewString(),
		Destination: destination,
		Amount:      amount,
		CreatedAt:   l.nowFn().UTC(),
	})
	return nil
}

// Balance returns a copy of addr's balance.
func (l *MemoryLedger) Balance(_ context.Context, addr crypto.Address) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if balance, ok := l.balances[addr]; ok {
		return new(uint256.Int).Set(balance), nil
	}
	return new(uint256.Int), nil
}

// Entries returns journaled mints in [since, until). Zero bounds are open.
func (l *MemoryLedger) Entries(_ context.Context, since, until time.Time) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, 0, len(l.entries))
	for _, entry := range l.entries {
		if inRange(entry.CreatedAt, since, until) {
			out = append(out, entry)
		}
	}
	return out, nil
}

// TotalMinted sums every journaled mint.
func (l *MemoryLedger) TotalMinted() *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := new(uint256.Int)
	for _, entry := range l.entries {
		total.Add(total, uint256.NewInt(entry.Amount))
	}
	return total
}
