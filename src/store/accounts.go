// src/store/accounts.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/username/ledgerguard/src/models"
)

// GetAccountByKey looks an account up by its stable external key.
func (s *Store) GetAccountByKey(ctx context.Context, accountKey string) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, account_key, display_name, institution, account_type, last_four, created_at, last_import_at
		FROM accounts WHERE account_key = ?`, accountKey)
	return scanAccount(row)
}

// GetOrCreateAccount returns the account for accountKey, creating it on first
// sight. Accounts are never deleted, so the id is stable once created.
func (s *Store) GetOrCreateAccount(ctx context.Context, accountKey, displayName string) (*models.Account, error) {
	account, err := s.GetAccountByKey(ctx, accountKey)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if displayName == "" {
		displayName = accountKey
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (account_key, display_name, created_at)
		VALUES (?, ?, ?)`, accountKey, displayName, nowUTC())
	if err != nil {
		// Lost a race with another insert of the same key; re-read.
		if isUniqueViolation(err, "accounts.account_key") {
			return s.GetAccountByKey(ctx, accountKey)
		}
		return nil, fmt.Errorf("insert account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("account last insert id: %w", err)
	}
	return s.getAccountByID(ctx, id)
}

// TouchAccountImport stamps the account's last-import time.
func (s *Store) TouchAccountImport(ctx context.Context, accountID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET last_import_at = ? WHERE id = ?`, nowUTC(), accountID)
	if err != nil {
		return fmt.Errorf("touch account import: %w", err)
	}
	return nil
}

// ListAccounts returns all accounts ordered by creation.
func (s *Store) ListAccounts(ctx context.Context) ([]models.Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_key, display_name, institution, account_type, last_four, created_at, last_import_at
		FROM accounts ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]models.Account, 0)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

func (s *Store) getAccountByID(ctx context.Context, id int64) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, account_key, display_name, institution, account_type, last_four, created_at, last_import_at
		FROM accounts WHERE id = ?`, id)
	return scanAccount(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var a models.Account
	var lastFour, createdAt sql.NullString
	var lastImportAt sql.NullString
	err := row.Scan(&a.ID, &a.AccountKey, &a.DisplayName, &a.Institution, &a.AccountType, &lastFour, &createdAt, &lastImportAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan account: %w", err)
	}
	if lastFour.Valid {
		a.LastFour = &lastFour.String
	}
	if createdAt.Valid {
		a.CreatedAt = parseTime(createdAt.String)
	}
	if lastImportAt.Valid {
		t := parseTime(lastImportAt.String)
		a.LastImportAt = &t
	}
	return &a, nil
}
