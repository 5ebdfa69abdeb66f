// src/processors/fingerprint.go
package processors

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	whitespaceRe  = regexp.MustCompile(`\s+`)
	punctNoiseRe  = regexp.MustCompile(`[^\pL\pN&' ]+`)
	refMarkerRe   = regexp.MustCompile(`[#*]`)
	digitTailRe   = regexp.MustCompile(`^\d{2,}$`)
	refSuffixRe   = regexp.MustCompile(`^(?:x+|no|ref|nr)\d+$`)
)

// ComputeFingerprint produces the stable identity hash used for transaction
// dedup. Two imports of the same logical transaction, from the same file or
// different ones, hash identically: the amount is canonicalized through
// decimal (so "12.5" and "12.50" agree) and the description is normalized
// before hashing.
func ComputeFingerprint(accountKey, date string, amount decimal.Decimal, description string) string {
	input := fmt.Sprintf("%s|%s|%s|%s",
		strings.TrimSpace(accountKey),
		strings.TrimSpace(date),
		amount.String(),
		NormalizeDescription(description),
	)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])
}

// NormalizeDescription lower-cases and collapses whitespace. Deliberately
// milder than NormalizeMerchantKey: store/reference numbers stay in, since
// they distinguish otherwise identical same-day transactions.
func NormalizeDescription(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(strings.ToLower(s), " "))
}

// NormalizeMerchantKey reduces a raw merchant string to the key learned
// patterns are matched on. Case-folded, punctuation noise dropped, trailing
// store/reference numbers stripped, whitespace collapsed. Pure and total: for
// input that normalizes to nothing it degrades to the collapsed lower-case
// form rather than failing.
func NormalizeMerchantKey(raw string) string {
	s := strings.ToLower(raw)
	s = refMarkerRe.ReplaceAllString(s, " ")
	s = punctNoiseRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))

	// Strip trailing store numbers and reference codes ("442", "x7731",
	// "ref1234"), but never strip the whole string down to nothing.
	fields := strings.Fields(s)
	for len(fields) > 1 {
		last := fields[len(fields)-1]
		if digitTailRe.MatchString(last) || refSuffixRe.MatchString(last) {
			fields = fields[:len(fields)-1]
			continue
		}
		break
	}
	s = strings.Join(fields, " ")

	if s == "" {
		return NormalizeDescription(raw)
	}
	return s
}
