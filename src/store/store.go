// src/store/store.go
package store

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Conflict and lookup errors surfaced by the store. Duplicate errors are
// expected outcomes of idempotent imports, not failures.
var (
	ErrNotFound             = errors.New("not found")
	ErrDuplicateFingerprint = errors.New("duplicate transaction fingerprint")
	ErrDuplicateDocument    = errors.New("duplicate document content hash")
)

// DateLayout is the storage format for dates; timestamps use RFC 3339 UTC.
const DateLayout = "2006-01-02"

// Store wraps the SQLite handle with the ledger's persistence operations.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure on the
// given column (modernc/sqlite surfaces these as plain error strings).
func isUniqueViolation(err error, constraint string) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: "+constraint)
}

func scanNullDecimal(ns sql.NullString) (*decimal.Decimal, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(ns.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func decimalArg(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}
