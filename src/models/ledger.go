// src/models/ledger.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Categorization methods recorded on a transaction.
const (
	CategorizedByInput   = "input"   // explicit category supplied by the import source
	CategorizedByPattern = "pattern" // learned merchant pattern match
	CategorizedByUser    = "user"    // explicit correction after import
)

// Account represents one real-world account transactions belong to.
// Accounts are never deleted; downstream tooling deactivates them by
// convention.
type Account struct {
	ID           int64      `json:"id"`
	AccountKey   string     `json:"account_key"` // stable external identity, e.g. "chk-1"
	DisplayName  string     `json:"display_name"`
	Institution  string     `json:"institution"`
	AccountType  string     `json:"account_type"`
	LastFour     *string    `json:"last_four,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	LastImportAt *time.Time `json:"last_import_at,omitempty"`
}

// Transaction is one ledger row. Created only by the import pipeline,
// mutated only by explicit category corrections. Re-importing a row with the
// same fingerprint is a no-op.
type Transaction struct {
	ID            int64           `json:"id"`
	Date          string          `json:"date"` // YYYY-MM-DD
	Merchant      string          `json:"merchant"`
	Description   string          `json:"description"` // normalized description
	Amount        decimal.Decimal `json:"amount"`
	AccountID     int64           `json:"account_id"`
	CategoryID    *int64          `json:"category_id,omitempty"`
	Fingerprint   string          `json:"fingerprint"`
	CategorizedBy string          `json:"categorized_by,omitempty"`
	Confidence    *float64        `json:"confidence,omitempty"` // only set for automated categorization
	Metadata      string          `json:"metadata"`             // free-form JSON blob
	CreatedAt     time.Time       `json:"created_at"`
}

// Category is one node of the spending taxonomy.
type Category struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Subcategory   *string   `json:"subcategory,omitempty"`
	UsageCount    int64     `json:"usage_count"`
	AutoGenerated bool      `json:"auto_generated"`
	UserApproved  bool      `json:"user_approved"`
	CreatedAt     time.Time `json:"created_at"`
}

// MerchantPattern is a learned mapping from a normalized merchant key to a
// category. Patterns are upserted by key, never duplicated.
type MerchantPattern struct {
	ID         int64     `json:"id"`
	Pattern    string    `json:"pattern"`
	CategoryID int64     `json:"category_id"`
	Confidence float64   `json:"confidence"`
	UsageCount int64     `json:"usage_count"`
	LearnedAt  time.Time `json:"learned_at"`
}

// Document records the content hash of an imported source statement so that
// re-importing the same file is a no-op.
type Document struct {
	ID          int64     `json:"id"`
	ContentHash string    `json:"content_hash"`
	FileName    string    `json:"file_name"`
	ImportedAt  time.Time `json:"imported_at"`
}
