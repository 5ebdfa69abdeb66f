// src/store/transactions.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/username/ledgerguard/src/models"
)

// InsertTransaction appends one transaction to the ledger. A fingerprint
// collision means the row is already present and returns
// ErrDuplicateFingerprint; the caller treats that as a skip, not a failure.
func (s *Store) InsertTransaction(ctx context.Context, tx *models.Transaction) (int64, error) {
	metadata := tx.Metadata
	if metadata == "" {
		metadata = "{}"
	}
	var confidence any
	if tx.Confidence != nil {
		confidence = *tx.Confidence
	}
	var categoryID any
	if tx.CategoryID != nil {
		categoryID = *tx.CategoryID
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (date, merchant, description, amount, account_id, category_id,
			fingerprint, categorized_by, confidence, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.Date, tx.Merchant, tx.Description, tx.Amount.String(), tx.AccountID, categoryID,
		tx.Fingerprint, tx.CategorizedBy, confidence, metadata, nowUTC())
	if err != nil {
		if isUniqueViolation(err, "transactions.fingerprint") {
			return 0, ErrDuplicateFingerprint
		}
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("transaction last insert id: %w", err)
	}
	return id, nil
}

// FingerprintExists reports whether a transaction with this fingerprint is
// already in the ledger.
func (s *Store) FingerprintExists(ctx context.Context, fingerprint string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM transactions WHERE fingerprint = ?`, fingerprint).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check fingerprint: %w", err)
	}
	return true, nil
}

// GetTransactionByID returns one ledger row.
func (s *Store) GetTransactionByID(ctx context.Context, id int64) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, date, merchant, description, amount, account_id, category_id,
			fingerprint, categorized_by, confidence, metadata, created_at
		FROM transactions WHERE id = ?`, id)
	return scanTransaction(row)
}

// UpdateTransactionCategory is the one sanctioned transaction mutation: an
// explicit category correction. Confidence is cleared since the assignment is
// no longer automated.
func (s *Store) UpdateTransactionCategory(ctx context.Context, id int64, categoryID *int64) error {
	var arg any
	if categoryID != nil {
		arg = *categoryID
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET category_id = ?, categorized_by = ?, confidence = NULL
		WHERE id = ?`, arg, models.CategorizedByUser, id)
	if err != nil {
		return fmt.Errorf("update transaction category: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transaction rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// TransactionFilter narrows ListTransactions. Zero values mean "no filter".
type TransactionFilter struct {
	AccountID         *int64
	FromDate          string // YYYY-MM-DD inclusive
	ToDate            string // YYYY-MM-DD inclusive
	UncategorizedOnly bool
	Limit             int
}

// ListTransactions returns ledger rows newest first, honoring the filter.
func (s *Store) ListTransactions(ctx context.Context, filter TransactionFilter) ([]models.Transaction, error) {
	query := `
		SELECT id, date, merchant, description, amount, account_id, category_id,
			fingerprint, categorized_by, confidence, metadata, created_at
		FROM transactions WHERE 1=1`
	args := make([]any, 0, 4)

	if filter.AccountID != nil {
		query += " AND account_id = ?"
		args = append(args, *filter.AccountID)
	}
	if filter.FromDate != "" {
		query += " AND date >= ?"
		args = append(args, filter.FromDate)
	}
	if filter.ToDate != "" {
		query += " AND date <= ?"
		args = append(args, filter.ToDate)
	}
	if filter.UncategorizedOnly {
		query += " AND category_id IS NULL"
	}
	query += " ORDER BY date DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	transactions := make([]models.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return transactions, nil
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var t models.Transaction
	var amount, createdAt string
	var categoryID sql.NullInt64
	var confidence sql.NullFloat64
	err := row.Scan(&t.ID, &t.Date, &t.Merchant, &t.Description, &amount, &t.AccountID,
		&categoryID, &t.Fingerprint, &t.CategorizedBy, &confidence, &t.Metadata, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	t.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse transaction amount %q: %w", amount, err)
	}
	if categoryID.Valid {
		t.CategoryID = &categoryID.Int64
	}
	if confidence.Valid {
		t.Confidence = &confidence.Float64
	}
	t.CreatedAt = parseTime(createdAt)
	return &t, nil
}
