// src/models/importing.go
package models

// EnrichedRecord is one extracted transaction as handed over by the external
// extraction/enrichment collaborator. All fields arrive as strings; the
// import pipeline validates and parses them per record.
type EnrichedRecord struct {
	Date        string   `json:"date"`     // YYYY-MM-DD
	Merchant    string   `json:"merchant"` // raw merchant string
	Amount      string   `json:"amount"`   // signed decimal
	Description string   `json:"description"`
	AccountKey  string   `json:"account_key"`
	Category    string   `json:"category,omitempty"`
	Subcategory string   `json:"subcategory,omitempty"`
	Confidence  *float64 `json:"confidence,omitempty"`
	Metadata    string   `json:"metadata,omitempty"` // free-form JSON
}

// SkippedRecord reports one malformed input record and why it was skipped.
type SkippedRecord struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// ImportSummary is the outcome of an import preview or apply: identical
// shape, so the caller sees at apply time exactly what the preview promised.
type ImportSummary struct {
	Applied           bool            `json:"applied"`
	Inserted          int             `json:"inserted"`
	SkippedDuplicates int             `json:"skipped_duplicates"`
	DuplicateDocument bool            `json:"duplicate_document"`
	NewCategories     []string        `json:"new_categories"`
	MatchedCategories int             `json:"matched_categories"`
	LearnedPatterns   []string        `json:"learned_patterns"`
	Malformed         []SkippedRecord `json:"malformed"`
}
