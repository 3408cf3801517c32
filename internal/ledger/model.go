package ledger

import (
	"time"

	"github.com/lib/pq"
)

const (
	TypeIncome  = "income"
	TypeExpense = "expense"
)

// Transaction is the authoritative business record. The spreadsheet
// carries a mirrored copy; SheetsSynced/SyncAttempts/LastSyncAt drive
// the reconciler and never gate durability here.
type Transaction struct {
	ID   string `gorm:"primaryKey;type:text"` // uuid, doubles as the mirror's natural key
	Type string `gorm:"index;not null"`       // income | expense

	Date   time.Time `gorm:"not null"`
	Amount string    `gorm:"type:text;not null"` // normalized decimal string

	Properties   pq.StringArray `gorm:"type:text[]"`
	Platform     string         `gorm:"type:text"`
	Counterparty string         `gorm:"type:text"` // guest name or vendor
	PaymentType  string         `gorm:"type:text"`
	AccountType  string         `gorm:"type:text"`

	Category    string `gorm:"type:text"` // expense only
	Description string `gorm:"type:text"` // expense only
	PaidBy      string `gorm:"type:text"` // expense only

	CheckinDate  *time.Time
	CheckoutDate *time.Time
	SupDuration  string `gorm:"type:text"`

	Notes      string `gorm:"type:text"`
	ReceiptURL string `gorm:"type:text"`
	Source     string `gorm:"type:text"` // ocr | manual

	// Explicitly-skipped fields, kept so renderers can warn instead of
	// silently omitting.
	SkippedFields pq.StringArray `gorm:"type:text[]"`

	CancelledAt *time.Time

	SheetsSynced bool `gorm:"index;not null;default:false"`
	SyncAttempts int  `gorm:"not null;default:0"`
	LastSyncAt   *time.Time

	CreatedAt time.Time `gorm:"index;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}
