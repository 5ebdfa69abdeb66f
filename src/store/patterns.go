// src/store/patterns.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/username/ledgerguard/src/models"
)

// LookupPattern finds the learned pattern that best matches the normalized
// merchant key, or nil when nothing matches. A stored pattern matches when it
// is a prefix of the key, so the exact key is always the longest possible
// match. Most-specific wins: longest pattern, then highest confidence, then
// most recently learned.
func (s *Store) LookupPattern(ctx context.Context, key string) (*models.MerchantPattern, error) {
	if key == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, pattern, category_id, confidence, usage_count, learned_at
		FROM merchant_patterns
		WHERE ? LIKE pattern || '%'
		ORDER BY LENGTH(pattern) DESC, confidence DESC, learned_at DESC, id DESC
		LIMIT 1`, key)

	pattern, err := scanPattern(row)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return pattern, err
}

// LearnPattern upserts the pattern for key: an existing row is updated in
// place (category, confidence, learned date), never duplicated. Returns the
// stored pattern and whether it was newly created.
func (s *Store) LearnPattern(ctx context.Context, key string, categoryID int64, confidence float64) (*models.MerchantPattern, bool, error) {
	if key == "" {
		return nil, false, fmt.Errorf("learn pattern: empty key")
	}

	var existingID int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM merchant_patterns WHERE pattern = ?`, key).Scan(&existingID)
	created := errors.Is(err, sql.ErrNoRows)
	if err != nil && !created {
		return nil, false, fmt.Errorf("lookup existing pattern: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO merchant_patterns (pattern, category_id, confidence, usage_count, learned_at)
		VALUES (?, ?, ?, 0, ?)
		ON CONFLICT(pattern) DO UPDATE SET
			category_id = excluded.category_id,
			confidence = excluded.confidence,
			learned_at = excluded.learned_at`,
		key, categoryID, confidence, nowUTC())
	if err != nil {
		return nil, false, fmt.Errorf("upsert pattern: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, pattern, category_id, confidence, usage_count, learned_at
		FROM merchant_patterns WHERE pattern = ?`, key)
	pattern, err := scanPattern(row)
	if err != nil {
		return nil, false, err
	}
	return pattern, created, nil
}

// RecordPatternUse increments the usage counter of a successfully applied
// pattern.
func (s *Store) RecordPatternUse(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE merchant_patterns SET usage_count = usage_count + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("record pattern use: %w", err)
	}
	return nil
}

// ListPatterns returns all learned patterns, most recently learned first.
func (s *Store) ListPatterns(ctx context.Context) ([]models.MerchantPattern, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pattern, category_id, confidence, usage_count, learned_at
		FROM merchant_patterns ORDER BY learned_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query patterns: %w", err)
	}
	defer rows.Close()

	patterns := make([]models.MerchantPattern, 0)
	for rows.Next() {
		pattern, err := scanPattern(rows)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, *pattern)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate patterns: %w", err)
	}
	return patterns, nil
}

func scanPattern(row rowScanner) (*models.MerchantPattern, error) {
	var p models.MerchantPattern
	var learnedAt string
	err := row.Scan(&p.ID, &p.Pattern, &p.CategoryID, &p.Confidence, &p.UsageCount, &learnedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan pattern: %w", err)
	}
	p.LearnedAt = parseTime(learnedAt)
	return &p, nil
}
