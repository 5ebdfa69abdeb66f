// src/services/import_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/username/ledgerguard/src/logger"
	"github.com/username/ledgerguard/src/models"
	"github.com/username/ledgerguard/src/processors"
	"github.com/username/ledgerguard/src/security/validation"
	"github.com/username/ledgerguard/src/store"
)

// plannedRecord is one validated input record with everything the apply phase
// needs, resolved symbolically (category by name, not id) since preview must
// not write.
type plannedRecord struct {
	index       int
	date        string
	merchant    string
	description string
	amount      decimal.Decimal
	accountKey  string
	fingerprint string
	metadata    string

	method       string // models.CategorizedBy* or "" when uncategorized
	confidence   *float64
	categoryName string // set when method == input
	subcategory  *string
	categoryID   *int64 // set when method == pattern
	patternID    int64  // pattern to credit on apply, 0 when none

	duplicate   bool // known duplicate at preview time (store or intra-batch)
	newCategory bool // category would be created on apply
	learnKey    string
}

// ImportPlan is the value handed from Preview to Apply: the caller inspects
// Summary, then submits the plan back unchanged. A plan commits at most once.
type ImportPlan struct {
	Summary models.ImportSummary

	records []plannedRecord
	opts    ImportOptions

	mu      sync.Mutex
	applied bool
}

type importServiceImpl struct {
	store          *store.Store
	categorizer    *processors.Categorizer
	portfolio      PortfolioService // cache invalidation after writes
	learnThreshold float64
}

// NewImportService wires the import pipeline. portfolio may be nil when no
// derived-view cache needs invalidation (tests).
func NewImportService(st *store.Store, categorizer *processors.Categorizer, portfolio PortfolioService, learnThreshold float64) ImportService {
	return &importServiceImpl{
		store:          st,
		categorizer:    categorizer,
		portfolio:      portfolio,
		learnThreshold: learnThreshold,
	}
}

// Preview validates, deduplicates and categorizes the batch without touching
// the store. The returned plan's Summary reports exactly what Apply would do.
func (s *importServiceImpl) Preview(ctx context.Context, records []models.EnrichedRecord, opts ImportOptions) (*ImportPlan, error) {
	if len(records) == 0 {
		return nil, ErrEmptyBatch
	}
	if opts.LearnThreshold <= 0 {
		opts.LearnThreshold = s.learnThreshold
	}

	plan := &ImportPlan{opts: opts}
	plan.Summary.NewCategories = []string{}
	plan.Summary.LearnedPatterns = []string{}
	plan.Summary.Malformed = []models.SkippedRecord{}

	if opts.DocumentHash != "" {
		known, err := s.store.DocumentExists(ctx, opts.DocumentHash)
		if err != nil {
			return nil, fmt.Errorf("preview: check document: %w", err)
		}
		if known {
			// Whole statement seen before: the entire batch is a no-op.
			plan.Summary.DuplicateDocument = true
			plan.Summary.SkippedDuplicates = len(records)
			return plan, nil
		}
	}

	seenFingerprints := make(map[string]bool)
	seenCategories := make(map[string]bool)
	seenPatterns := make(map[string]bool)

	for i, rec := range records {
		planned, reason := s.validateRecord(i, rec)
		if reason != "" {
			plan.Summary.Malformed = append(plan.Summary.Malformed, models.SkippedRecord{Index: i, Reason: reason})
			continue
		}

		exists, err := s.store.FingerprintExists(ctx, planned.fingerprint)
		if err != nil {
			return nil, fmt.Errorf("preview: check fingerprint: %w", err)
		}
		if exists || seenFingerprints[planned.fingerprint] {
			planned.duplicate = true
			plan.Summary.SkippedDuplicates++
			plan.records = append(plan.records, *planned)
			continue
		}
		seenFingerprints[planned.fingerprint] = true

		if err := s.categorizeRecord(ctx, planned, &rec); err != nil {
			return nil, fmt.Errorf("preview: categorize record %d: %w", i, err)
		}

		switch planned.method {
		case models.CategorizedByInput:
			label := planned.categoryName
			if planned.subcategory != nil {
				label += "/" + *planned.subcategory
			}
			_, err := s.store.GetCategory(ctx, planned.categoryName, planned.subcategory)
			switch {
			case errors.Is(err, store.ErrNotFound):
				planned.newCategory = true
				if !seenCategories[label] {
					seenCategories[label] = true
					plan.Summary.NewCategories = append(plan.Summary.NewCategories, label)
				}
			case err != nil:
				return nil, fmt.Errorf("preview: check category: %w", err)
			default:
				plan.Summary.MatchedCategories++
			}
		case models.CategorizedByPattern:
			plan.Summary.MatchedCategories++
		}

		// Pattern learning: only explicit input categories at or above the
		// learning threshold, so low-confidence guesses cannot poison
		// future auto-categorization.
		if opts.LearnPatterns && planned.method == models.CategorizedByInput &&
			planned.confidence != nil && *planned.confidence >= opts.LearnThreshold {
			planned.learnKey = processors.NormalizeMerchantKey(planned.merchant)
			if planned.learnKey != "" && !seenPatterns[planned.learnKey] {
				seenPatterns[planned.learnKey] = true
				plan.Summary.LearnedPatterns = append(plan.Summary.LearnedPatterns, planned.learnKey)
			}
		}

		plan.Summary.Inserted++
		plan.records = append(plan.records, *planned)
	}

	return plan, nil
}

// Apply commits a plan. Fingerprints are re-checked at write time: a preview
// is computed without locks, so rows inserted in the preview→apply gap demote
// to skips instead of failing the batch.
func (s *importServiceImpl) Apply(ctx context.Context, plan *ImportPlan) (*models.ImportSummary, error) {
	if plan == nil {
		return nil, errors.New("apply: nil plan")
	}
	plan.mu.Lock()
	if plan.applied {
		plan.mu.Unlock()
		return nil, ErrPlanAlreadyApplied
	}
	plan.applied = true
	plan.mu.Unlock()

	summary := models.ImportSummary{
		Applied:         true,
		NewCategories:   []string{},
		LearnedPatterns: []string{},
		Malformed:       append([]models.SkippedRecord{}, plan.Summary.Malformed...),
	}

	if plan.Summary.DuplicateDocument {
		summary.DuplicateDocument = true
		summary.SkippedDuplicates = plan.Summary.SkippedDuplicates
		return &summary, nil
	}

	if plan.opts.DocumentHash != "" {
		_, err := s.store.InsertDocument(ctx, plan.opts.DocumentHash, plan.opts.DocumentName)
		if errors.Is(err, store.ErrDuplicateDocument) {
			// The statement landed between preview and apply.
			summary.DuplicateDocument = true
			summary.SkippedDuplicates = len(plan.records)
			return &summary, nil
		}
		if err != nil {
			return nil, fmt.Errorf("apply: record document: %w", err)
		}
	}

	touchedAccounts := make(map[int64]bool)
	learnedCategoryByKey := make(map[string]learnTarget)

	for i := range plan.records {
		rec := &plan.records[i]
		if rec.duplicate {
			summary.SkippedDuplicates++
			continue
		}

		account, err := s.store.GetOrCreateAccount(ctx, rec.accountKey, "")
		if err != nil {
			summary.Malformed = append(summary.Malformed, models.SkippedRecord{
				Index: rec.index, Reason: fmt.Sprintf("account: %v", err)})
			continue
		}

		categoryID := rec.categoryID
		if rec.method == models.CategorizedByInput {
			category, created, err := s.store.GetOrCreateCategory(ctx, rec.categoryName, rec.subcategory, true)
			if err != nil {
				summary.Malformed = append(summary.Malformed, models.SkippedRecord{
					Index: rec.index, Reason: fmt.Sprintf("category: %v", err)})
				continue
			}
			categoryID = &category.ID
			if created {
				label := rec.categoryName
				if rec.subcategory != nil {
					label += "/" + *rec.subcategory
				}
				summary.NewCategories = append(summary.NewCategories, label)
			} else {
				summary.MatchedCategories++
			}
		} else if rec.method == models.CategorizedByPattern {
			summary.MatchedCategories++
		}

		tx := &models.Transaction{
			Date:          rec.date,
			Merchant:      rec.merchant,
			Description:   rec.description,
			Amount:        rec.amount,
			AccountID:     account.ID,
			CategoryID:    categoryID,
			Fingerprint:   rec.fingerprint,
			CategorizedBy: rec.method,
			Confidence:    rec.confidence,
			Metadata:      rec.metadata,
		}
		_, err = s.store.InsertTransaction(ctx, tx)
		if errors.Is(err, store.ErrDuplicateFingerprint) {
			// Preview→apply race: someone inserted this row in the gap.
			summary.SkippedDuplicates++
			continue
		}
		if err != nil {
			// Integrity failure aborts this write only; the batch goes on.
			logger.L.Warn("Import write failed, continuing batch", "index", rec.index, "error", err)
			summary.Malformed = append(summary.Malformed, models.SkippedRecord{
				Index: rec.index, Reason: fmt.Sprintf("write: %v", err)})
			continue
		}
		summary.Inserted++
		touchedAccounts[account.ID] = true

		if categoryID != nil {
			if err := s.store.IncrementCategoryUsage(ctx, *categoryID); err != nil {
				logger.L.Warn("Failed to bump category usage", "categoryID", *categoryID, "error", err)
			}
		}
		if rec.patternID != 0 {
			if err := s.store.RecordPatternUse(ctx, rec.patternID); err != nil {
				logger.L.Warn("Failed to bump pattern usage", "patternID", rec.patternID, "error", err)
			}
		}
		if rec.learnKey != "" && categoryID != nil && rec.confidence != nil {
			learnedCategoryByKey[rec.learnKey] = learnTarget{categoryID: *categoryID, confidence: *rec.confidence}
		}
	}

	for key, target := range learnedCategoryByKey {
		if _, _, err := s.store.LearnPattern(ctx, key, target.categoryID, target.confidence); err != nil {
			logger.L.Warn("Failed to learn pattern", "pattern", key, "error", err)
			continue
		}
		summary.LearnedPatterns = append(summary.LearnedPatterns, key)
	}

	for accountID := range touchedAccounts {
		if err := s.store.TouchAccountImport(ctx, accountID); err != nil {
			logger.L.Warn("Failed to stamp account import time", "accountID", accountID, "error", err)
		}
	}

	if s.portfolio != nil && summary.Inserted > 0 {
		s.portfolio.InvalidateCache()
	}

	logger.L.Info("Import batch applied",
		"inserted", summary.Inserted,
		"skippedDuplicates", summary.SkippedDuplicates,
		"newCategories", len(summary.NewCategories),
		"learnedPatterns", len(summary.LearnedPatterns),
		"malformed", len(summary.Malformed))
	return &summary, nil
}

type learnTarget struct {
	categoryID int64
	confidence float64
}

// validateRecord sanitizes and validates one input record. A non-empty reason
// marks the record malformed; malformed records are reported individually and
// never abort the batch.
func (s *importServiceImpl) validateRecord(index int, rec models.EnrichedRecord) (*plannedRecord, string) {
	accountKey := validation.CleanField(rec.AccountKey)
	if err := validation.ValidateStringNotEmpty(accountKey, "account_key"); err != nil {
		return nil, err.Error()
	}
	if err := validation.ValidateStringMaxLength(accountKey, validation.MaxAccountKeyLength, "account_key"); err != nil {
		return nil, err.Error()
	}

	merchant := validation.CleanField(rec.Merchant)
	if err := validation.ValidateStringNotEmpty(merchant, "merchant"); err != nil {
		return nil, err.Error()
	}
	if err := validation.ValidateStringMaxLength(merchant, validation.MaxMerchantLength, "merchant"); err != nil {
		return nil, err.Error()
	}

	if _, err := validation.ValidateDateString(rec.Date, "date"); err != nil {
		return nil, err.Error()
	}
	date := rec.Date

	amount, err := validation.ValidateAmountString(rec.Amount, "amount")
	if err != nil {
		return nil, err.Error()
	}

	description := validation.CleanField(rec.Description)
	if description == "" {
		description = merchant
	}
	if err := validation.ValidateStringMaxLength(description, validation.MaxDescriptionLength, "description"); err != nil {
		return nil, err.Error()
	}
	description = processors.NormalizeDescription(description)

	if err := validation.ValidateMetadataJSON(rec.Metadata, "metadata"); err != nil {
		return nil, err.Error()
	}

	var confidence *float64
	if rec.Confidence != nil {
		if err := validation.ValidateConfidence(*rec.Confidence, "confidence"); err != nil {
			return nil, err.Error()
		}
		c := *rec.Confidence
		confidence = &c
	}

	categoryName := validation.CleanField(rec.Category)
	if err := validation.ValidateStringMaxLength(categoryName, validation.MaxCategoryNameLength, "category"); err != nil {
		return nil, err.Error()
	}
	var subcategory *string
	if sub := validation.CleanField(rec.Subcategory); sub != "" {
		if err := validation.ValidateStringMaxLength(sub, validation.MaxCategoryNameLength, "subcategory"); err != nil {
			return nil, err.Error()
		}
		subcategory = &sub
	}

	return &plannedRecord{
		index:        index,
		date:         date,
		merchant:     merchant,
		description:  description,
		amount:       amount,
		accountKey:   accountKey,
		fingerprint:  processors.ComputeFingerprint(accountKey, date, amount, description),
		metadata:     rec.Metadata,
		confidence:   confidence,
		categoryName: categoryName,
		subcategory:  subcategory,
	}, ""
}

// categorizeRecord fills in the planned record's category decision following
// the precedence: explicit input category, then learned pattern, then
// uncategorized.
func (s *importServiceImpl) categorizeRecord(ctx context.Context, planned *plannedRecord, rec *models.EnrichedRecord) error {
	if planned.categoryName != "" {
		planned.method = models.CategorizedByInput
		return nil
	}

	decision, err := s.categorizer.Categorize(ctx, planned.merchant)
	if err != nil {
		return err
	}
	if decision.CategoryID != nil {
		planned.method = models.CategorizedByPattern
		planned.categoryID = decision.CategoryID
		planned.confidence = decision.Confidence
		planned.patternID = decision.PatternID
	}
	return nil
}
