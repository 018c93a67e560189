package history

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Settlement is one committed claim batch.
type Settlement struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Hash         string    `gorm:"uniqueIndex;size:66"`
	Claimant     string    `gorm:"index;size:128"`
	EntryCount   int       `gorm:"not null"`
	NativeAmount string    `gorm:"not null"`
	TransferRoot string    `gorm:"size:66"`
	SettledAt    time.Time `gorm:"index"`
	Entries      []Entry
	Transfers    []Transfer
	CreatedAt    time.Time
}

// Entry is the reward computed for one (pool, units) claim.
type Entry struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	SettlementID uuid.UUID `gorm:"type:uuid;index"`
	Position     int       `gorm:"not null"`
	Pool         string    `gorm:"index;size:66"`
	Units        uint32    `gorm:"not null"`
	Asset        string    `gorm:"size:32"`
	Nonce        uint64
	Amount       string `gorm:"not null"`
}

// Transfer kinds.
const (
	KindNative   = "native"
	KindFungible = "fungible"
	KindIndexed  = "indexed"
)

// Transfer is one payment executed by a settlement.
type Transfer struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	SettlementID uuid.UUID `gorm:"type:uuid;index"`
	Position     int       `gorm:"not null"`
	Kind         string    `gorm:"size:16"`
	Asset        string    `gorm:"size:32"`
	Nonce        uint64
	Amount       string `gorm:"not null"`
}

// AutoMigrate performs all schema migrations for the history store.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Settlement{},
		&Entry{},
		&Transfer{},
	)
}
