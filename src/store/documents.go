// src/store/documents.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/username/ledgerguard/src/models"
)

// InsertDocument records a source statement's content hash. A hash collision
// means the exact file was imported before and returns ErrDuplicateDocument.
func (s *Store) InsertDocument(ctx context.Context, contentHash, fileName string) (*models.Document, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (content_hash, file_name, imported_at)
		VALUES (?, ?, ?)`, contentHash, fileName, nowUTC())
	if err != nil {
		if isUniqueViolation(err, "documents.content_hash") {
			return nil, ErrDuplicateDocument
		}
		return nil, fmt.Errorf("insert document: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("document last insert id: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, content_hash, file_name, imported_at FROM documents WHERE id = ?`, id)
	return scanDocument(row)
}

// DocumentExists reports whether a statement with this content hash was
// already imported.
func (s *Store) DocumentExists(ctx context.Context, contentHash string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM documents WHERE content_hash = ?`, contentHash).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check document hash: %w", err)
	}
	return true, nil
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var d models.Document
	var importedAt string
	err := row.Scan(&d.ID, &d.ContentHash, &d.FileName, &importedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan document: %w", err)
	}
	d.ImportedAt = parseTime(importedAt)
	return &d, nil
}
