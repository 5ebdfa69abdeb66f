// src/processors/categorizer.go
package processors

import (
	"context"

	"github.com/username/ledgerguard/src/models"
)

// PatternSource is the slice of the store the categorizer needs: learned
// merchant pattern lookup by normalized key.
type PatternSource interface {
	LookupPattern(ctx context.Context, key string) (*models.MerchantPattern, error)
}

// CategoryDecision is the outcome of categorizing one record.
type CategoryDecision struct {
	CategoryID *int64
	Method     string // models.CategorizedByPattern, or "" when uncategorized
	Confidence *float64
	PatternID  int64 // pattern that matched, 0 when none
}

// Categorizer applies learned merchant patterns to raw merchant strings.
// Explicit categories carried by the input take precedence over the
// categorizer and are handled by the import pipeline before it is consulted.
type Categorizer struct {
	patterns        PatternSource
	confidenceFloor float64
}

func NewCategorizer(patterns PatternSource, confidenceFloor float64) *Categorizer {
	return &Categorizer{patterns: patterns, confidenceFloor: confidenceFloor}
}

// Categorize looks up the learned pattern for the merchant's normalized key.
// A match below the confidence floor is treated as no match, leaving the
// record uncategorized rather than guessing.
func (c *Categorizer) Categorize(ctx context.Context, rawMerchant string) (CategoryDecision, error) {
	key := NormalizeMerchantKey(rawMerchant)

	pattern, err := c.patterns.LookupPattern(ctx, key)
	if err != nil {
		return CategoryDecision{}, err
	}
	if pattern == nil || pattern.Confidence < c.confidenceFloor {
		return CategoryDecision{}, nil
	}

	confidence := pattern.Confidence
	categoryID := pattern.CategoryID
	return CategoryDecision{
		CategoryID: &categoryID,
		Method:     models.CategorizedByPattern,
		Confidence: &confidence,
		PatternID:  pattern.ID,
	}, nil
}
