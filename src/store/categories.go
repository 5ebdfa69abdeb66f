// src/store/categories.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/username/ledgerguard/src/models"
)

// GetCategory returns the category with the given name/subcategory pair.
func (s *Store) GetCategory(ctx context.Context, name string, subcategory *string) (*models.Category, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, subcategory, usage_count, auto_generated, user_approved, created_at
		FROM categories
		WHERE name = ? AND ((subcategory IS NULL AND ? IS NULL) OR subcategory = ?)`,
		name, subcategoryArg(subcategory), subcategoryArg(subcategory))
	return scanCategory(row)
}

// GetCategoryByID returns one category by primary key.
func (s *Store) GetCategoryByID(ctx context.Context, id int64) (*models.Category, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, subcategory, usage_count, auto_generated, user_approved, created_at
		FROM categories WHERE id = ?`, id)
	return scanCategory(row)
}

// GetOrCreateCategory returns the category, creating it when absent. The
// second return value reports whether a new taxonomy node was created, so
// importers can surface taxonomy growth instead of letting it drift silently.
func (s *Store) GetOrCreateCategory(ctx context.Context, name string, subcategory *string, autoGenerated bool) (*models.Category, bool, error) {
	category, err := s.GetCategory(ctx, name, subcategory)
	if err == nil {
		return category, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	auto := 0
	if autoGenerated {
		auto = 1
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (name, subcategory, auto_generated, user_approved, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		name, subcategoryArg(subcategory), auto, boolToInt(!autoGenerated), nowUTC())
	if err != nil {
		if isUniqueViolation(err, "categories.name") {
			category, err = s.GetCategory(ctx, name, subcategory)
			return category, false, err
		}
		return nil, false, fmt.Errorf("insert category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, false, fmt.Errorf("category last insert id: %w", err)
	}
	category, err = s.GetCategoryByID(ctx, id)
	return category, true, err
}

// IncrementCategoryUsage bumps the usage counter of a category.
func (s *Store) IncrementCategoryUsage(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE categories SET usage_count = usage_count + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("increment category usage: %w", err)
	}
	return nil
}

// ListCategories returns the whole taxonomy ordered by name.
func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, subcategory, usage_count, auto_generated, user_approved, created_at
		FROM categories ORDER BY name ASC, subcategory ASC`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	categories := make([]models.Category, 0)
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, *category)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return categories, nil
}

func scanCategory(row rowScanner) (*models.Category, error) {
	var c models.Category
	var subcategory, createdAt sql.NullString
	var auto, approved int
	err := row.Scan(&c.ID, &c.Name, &subcategory, &c.UsageCount, &auto, &approved, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan category: %w", err)
	}
	if subcategory.Valid {
		c.Subcategory = &subcategory.String
	}
	c.AutoGenerated = auto == 1
	c.UserApproved = approved == 1
	if createdAt.Valid {
		c.CreatedAt = parseTime(createdAt.String)
	}
	return &c, nil
}

func subcategoryArg(subcategory *string) any {
	if subcategory == nil || *subcategory == "" {
		return nil
	}
	return *subcategory
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
