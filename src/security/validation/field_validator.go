// src/security/validation/field_validator.go
package validation

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

var ErrValidationFailed = fmt.Errorf("validation failed")

// Constants for lengths remain here
const (
	DefaultMaxStringLength = 255
	MaxAccountKeyLength    = 64
	MaxMerchantLength      = 255
	MaxDescriptionLength   = 1024
	MaxCategoryNameLength  = 100
	MaxMetadataLength      = 4096
)

// --- String Validators ---

// ValidateStringNotEmpty checks if a string is not empty after trimming.
func ValidateStringNotEmpty(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrValidationFailed, fieldName)
	}
	return nil
}

// ValidateStringMaxLength checks if a string's UTF-8 character count is within max bounds.
func ValidateStringMaxLength(s string, maxLength int, fieldName string) error {
	if utf8.RuneCountInString(s) > maxLength {
		return fmt.Errorf("%w: %s exceeds maximum length of %d characters", ErrValidationFailed, fieldName, maxLength)
	}
	return nil
}

// --- Numeric Validators ---

// ValidateAmountString parses a signed decimal amount. Thousands separators
// are not accepted; the extraction collaborator is expected to emit canonical
// "-12.50" style values.
func ValidateAmountString(s, fieldName string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return decimal.Zero, fmt.Errorf("%w: %s cannot be empty", ErrValidationFailed, fieldName)
	}
	amount, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s ('%s') is not a valid decimal amount", ErrValidationFailed, fieldName, s)
	}
	return amount, nil
}

// ValidateConfidence checks a confidence score is within [0, 1].
func ValidateConfidence(v float64, fieldName string) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%w: %s must be between 0 and 1, got %g", ErrValidationFailed, fieldName, v)
	}
	return nil
}

// --- Date Validator ---

// ValidateDateString checks if a string is a valid date in "YYYY-MM-DD" format.
func ValidateDateString(s, fieldName string) (time.Time, error) {
	trimmed := strings.TrimSpace(s)
	if err := ValidateStringNotEmpty(trimmed, fieldName); err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse("2006-01-02", trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s ('%s') is not a valid date (expected YYYY-MM-DD)", ErrValidationFailed, fieldName, s)
	}
	if t.Format("2006-01-02") != trimmed {
		return time.Time{}, fmt.Errorf("%w: %s ('%s') is not a canonical YYYY-MM-DD date", ErrValidationFailed, fieldName, s)
	}
	return t, nil
}

// --- Metadata Validator ---

// ValidateMetadataJSON checks that a metadata blob, when present, is valid
// JSON and within size bounds. Empty input is allowed and means "{}".
func ValidateMetadataJSON(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	if err := ValidateStringMaxLength(s, MaxMetadataLength, fieldName); err != nil {
		return err
	}
	if !json.Valid([]byte(s)) {
		return fmt.Errorf("%w: %s is not valid JSON", ErrValidationFailed, fieldName)
	}
	return nil
}
