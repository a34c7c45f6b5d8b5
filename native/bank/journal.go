package bank

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"playmint/crypto"
)

// MintRecord is the persisted journal row.
type MintRecord struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Destination string    `gorm:"size:42;index;not null"`
	Amount      uint64    `gorm:"not null"`
	CreatedAt   time.Time `gorm:"index"`
}

// BalanceRecord holds the running total per destination as a decimal string.
type BalanceRecord struct {
	Address   string `gorm:"primaryKey;size:42"`
	Amount    string `gorm:"not null"`
	UpdatedAt time.Time
}

// AutoMigrate performs the journal schema migrations.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&MintRecord{}, &BalanceRecord{})
}

// JournalLedger persists mints and balances through gorm.
type JournalLedger struct {
	db    *gorm.DB
	nowFn func() time.Time
}

// OpenJournal opens a journal ledger. driver is "sqlite" or "postgres".
func OpenJournal(driver, dsn string) (*JournalLedger, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("bank: unsupported journal driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("bank: open journal: %w", err)
	}
	return NewJournalLedger(db)
}

// NewJournalLedger migrates db and wraps it.
func NewJournalLedger(db *gorm.DB) (*JournalLedger, error) {
	if db == nil {
		return nil, errors.New("bank: journal database required")
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("bank: migrate journal: %w", err)
	}
	return &JournalLedger{db: db, nowFn: time.Now}, nil
}

// SetNowFunc overrides the journal timestamp source.
func (l *JournalLedger) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	l.nowFn = now
}

// Mint journals the mint and updates the destination balance atomically.
func (l *JournalLedger) Mint(ctx context.Context, destination crypto.Address, amount uint64) error {
	if err := validateMint(destination, amount); err != nil {
		return err
	}
	addr := destination.String()
	now := l.nowFn().UTC()
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := MintRecord{ID: uuid.New(), Destination: addr, Amount: amount, CreatedAt: now}
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("bank: journal mint: %w", err)
		}
		var balance BalanceRecord
		err := tx.First(&balance, "address = ?", addr).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			balance = BalanceRecord{Address: addr, Amount: "0"}
		case err != nil:
			return fmt.Errorf("bank: load balance: %w", err)
		}
		current, err := uint256.FromDecimal(balance.Amount)
		if err != nil {
			return fmt.Errorf("bank: corrupt balance for %s: %w", addr, err)
		}
		current.Add(current, uint256.NewInt(amount))
		balance.Amount = current.Dec()
		balance.UpdatedAt = now
		if err := tx.Save(&balance).Error; err != nil {
			return fmt.Errorf("bank: store balance: %w", err)
		}
		return nil
	})
}

// Balance returns addr's persisted balance.
func (l *JournalLedger) Balance(ctx context.Context, addr crypto.Address) (*uint256.Int, error) {
	var balance BalanceRecord
	err := l.db.WithContext(ctx).First(&balance, "address = ?", addr.String()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return new(uint256.Int), nil
	}
	if err != nil {
		return nil, fmt.Errorf("bank: load balance: %w", err)
	}
	return uint256.FromDecimal(balance.Amount)
}

// Entries returns journaled mints in [since, until) ordered by time.
func (l *JournalLedger) Entries(ctx context.Context, since, until time.Time) ([]Entry, error) {
	query := l.db.WithContext(ctx).Model(&MintRecord{})
	if !since.IsZero() {
		query = query.Where("created_at >= ?", since.UTC())
	}
	if !until.IsZero() {
		query = query.Where("created_at < ?", until.UTC())
	}
	var rows []MintRecord
	if err := query.Order("created_at asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("bank: list journal: %w", err)
	}
	out := make([]Entry, 0, len(rows))
	for _, row := range rows {
		dest, err := crypto.ParseAddress(row.Destination)
		if err != nil {
			return nil, fmt.Errorf("bank: journal row %s: %w", row.ID, err)
		}
		out = append(out, Entry{ID: row.ID.String(), Destination: dest, Amount: row.Amount, CreatedAt: row.CreatedAt})
	}
	return out, nil
}

// Close releases the underlying connection pool.
func (l *JournalLedger) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
