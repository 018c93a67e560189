package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dan-merlea/sc-krogan-public/core/airdrop"
	nativeairdrop "github.com/dan-merlea/sc-krogan-public/native/airdrop"
)

const defaultListLimit = 50

// Store persists settlements for queries and exports.
type Store struct {
	db *gorm.DB
}

// Open connects to driver ("sqlite" or "postgres") and migrates the schema.
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("history: unsupported driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", driver, err)
	}
	return New(db)
}

// New wraps an open gorm handle and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("history: nil database")
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecordSettlement stores a committed settlement and its rows in one
// transaction. Recording the same settlement twice is a no-op.
func (s *Store) RecordSettlement(ctx context.Context, settlement *nativeairdrop.Settlement) error {
	if settlement == nil {
		return errors.New("history: nil settlement")
	}
	row := toRow(settlement)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&Settlement{}).Where("hash = ?", row.Hash).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}
		return tx.Create(row).Error
	})
}

func toRow(settlement *nativeairdrop.Settlement) *Settlement {
	id := uuid.New()
	native := "0"
	if settlement.Native != nil {
		native = settlement.Native.String()
	}
	row := &Settlement{
		ID:           id,
		Hash:         airdrop.PoolID(settlement.ID).String(),
		Claimant:     settlement.Claimant.String(),
		EntryCount:   len(settlement.Rewards),
		NativeAmount: native,
		TransferRoot: settlement.TransferRoot.Hex(),
		SettledAt:    time.Unix(settlement.SettledAt, 0).UTC(),
	}
	for i, reward := range settlement.Rewards {
		row.Entries = append(row.Entries, Entry{
			ID:           uuid.New(),
			SettlementID: id,
			Position:     i,
			Pool:         reward.Pool.String(),
			Units:        reward.Units,
			Asset:        reward.Reward.Asset,
			Nonce:        reward.Reward.Nonce,
			Amount:       amountString(reward.Reward),
		})
	}
	for i, payment := range settlement.Payments() {
		row.Transfers = append(row.Transfers, Transfer{
			ID:           uuid.New(),
			SettlementID: id,
			Position:     i,
			Kind:         transferKind(payment),
			Asset:        payment.Asset,
			Nonce:        payment.Nonce,
			Amount:       amountString(payment),
		})
	}
	return row
}

func transferKind(p airdrop.Payment) string {
	switch {
	case p.IsNative():
		return KindNative
	case p.IsIndexed():
		return KindIndexed
	default:
		return KindFungible
	}
}

func amountString(p airdrop.Payment) string {
	if p.Amount == nil {
		return "0"
	}
	return p.Amount.String()
}

// ListByClaimant returns the most recent settlements of claimant, newest
// first, with entries and transfers loaded.
func (s *Store) ListByClaimant(ctx context.Context, claimant string, limit int) ([]Settlement, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	var rows []Settlement
	err := s.db.WithContext(ctx).
		Preload("Entries", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("Transfers", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("claimant = ?", claimant).
		Order("settled_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// SettlementsSince returns settlements at or after since, oldest first, with
// transfers loaded.
func (s *Store) SettlementsSince(ctx context.Context, since time.Time) ([]Settlement, error) {
	var rows []Settlement
	err := s.db.WithContext(ctx).
		Preload("Transfers", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("settled_at >= ?", since.UTC()).
		Order("settled_at ASC").
		Find(&rows).Error
	return rows, err
}
