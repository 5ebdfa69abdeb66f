// src/security/queryguard/queryguard_test.go
package queryguard

import (
	"errors"
	"testing"
)

func newTestGuard() *Guard {
	return New(200, 1000)
}

func rejectionCode(t *testing.T, err error) ReasonCode {
	t.Helper()
	var guardErr *GuardError
	if !errors.As(err, &guardErr) {
		t.Fatalf("expected *GuardError, got %T: %v", err, err)
	}
	return guardErr.Code
}

func TestValidateAcceptsPlainSelect(t *testing.T) {
	v, err := newTestGuard().Validate("SELECT id, merchant FROM transactions WHERE amount < 0", 0)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	want := "SELECT id , merchant FROM transactions WHERE amount < 0 LIMIT 200"
	if v.SQL != want {
		t.Errorf("SQL = %q, want %q", v.SQL, want)
	}
	if v.EffectiveLimit != 200 {
		t.Errorf("EffectiveLimit = %d, want 200", v.EffectiveLimit)
	}
}

func TestValidateAcceptsWithCTE(t *testing.T) {
	v, err := newTestGuard().Validate("WITH spend AS (SELECT category_id, SUM(amount) total FROM transactions GROUP BY category_id) SELECT * FROM spend", 0)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if v.EffectiveLimit != 200 {
		t.Errorf("EffectiveLimit = %d, want 200", v.EffectiveLimit)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name  string
		query string
		code  ReasonCode
	}{
		{"multi statement", "SELECT 1; DROP TABLE transactions", ReasonMultiStatement},
		{"piggybacked select", "SELECT 1; SELECT 2", ReasonMultiStatement},
		{"update", "UPDATE transactions SET amount = 0", ReasonForbiddenKeyword},
		{"delete", "DELETE FROM transactions", ReasonForbiddenKeyword},
		{"pragma", "PRAGMA table_info(transactions)", ReasonForbiddenKeyword},
		{"insert select", "INSERT INTO t SELECT * FROM transactions", ReasonForbiddenKeyword},
		{"select into", "SELECT * INTO dump FROM transactions", ReasonForbiddenKeyword},
		{"attach", "SELECT 1 FROM t; ATTACH DATABASE 'x' AS y", ReasonMultiStatement},
		{"cte with delete", "WITH x AS (SELECT 1) DELETE FROM transactions", ReasonForbiddenKeyword},
		{"empty", "", ReasonUnparsable},
		{"only comment", "/* nothing here */", ReasonUnparsable},
		{"only semicolon", ";", ReasonUnparsable},
		{"unterminated comment", "SELECT 1 /* oops", ReasonUnparsable},
		{"unterminated string", "SELECT 'oops", ReasonUnparsable},
		{"limit without number", "SELECT 1 LIMIT abc", ReasonUnparsable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newTestGuard().Validate(tc.query, 0)
			if err == nil {
				t.Fatalf("expected rejection for %q", tc.query)
			}
			if code := rejectionCode(t, err); code != tc.code {
				t.Errorf("reason = %q, want %q", code, tc.code)
			}
		})
	}
}

func TestValidateTokenAwareNoFalsePositives(t *testing.T) {
	// Forbidden words inside string literals, quoted identifiers or larger
	// identifiers must not trip the keyword scan.
	tests := []string{
		"SELECT * FROM transactions WHERE merchant = 'drop shipping ltd'",
		`SELECT "update" FROM renames`,
		"SELECT updated_at FROM accounts",
		"SELECT inserted, deleted_count FROM audit_view",
	}
	for _, query := range tests {
		if _, err := newTestGuard().Validate(query, 0); err != nil {
			t.Errorf("Validate(%q) rejected: %v", query, err)
		}
	}
}

func TestValidateCommentHiddenStatementStripped(t *testing.T) {
	// The comment is removed, not merely tolerated: the write inside it never
	// reaches the executed SQL.
	v, err := newTestGuard().Validate("/* DELETE FROM transactions */ SELECT 1", 0)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if v.SQL != "SELECT 1 LIMIT 200" {
		t.Errorf("SQL = %q, want %q", v.SQL, "SELECT 1 LIMIT 200")
	}
}

func TestValidateLineCommentStripped(t *testing.T) {
	v, err := newTestGuard().Validate("SELECT 1 -- drop table transactions\n", 0)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if v.SQL != "SELECT 1 LIMIT 200" {
		t.Errorf("SQL = %q, want %q", v.SQL, "SELECT 1 LIMIT 200")
	}
}

func TestValidateTrailingSemicolonAllowed(t *testing.T) {
	v, err := newTestGuard().Validate("SELECT 1;", 0)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if v.SQL != "SELECT 1 LIMIT 200" {
		t.Errorf("SQL = %q, want %q", v.SQL, "SELECT 1 LIMIT 200")
	}
}

func TestValidateLimitClamping(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		hint      int
		wantLimit int
		wantSQL   string
	}{
		{"no limit uses default", "SELECT 1", 0, 200, "SELECT 1 LIMIT 200"},
		{"hint within max", "SELECT 1", 50, 50, "SELECT 1 LIMIT 50"},
		{"hint above max clamped", "SELECT 1", 5000, 1000, "SELECT 1 LIMIT 1000"},
		{"in-query limit kept", "SELECT 1 LIMIT 10", 0, 10, "SELECT 1 LIMIT 10"},
		{"in-query limit beats hint", "SELECT 1 LIMIT 10", 500, 10, "SELECT 1 LIMIT 10"},
		{"oversized in-query limit clamped", "SELECT 1 LIMIT 999999", 0, 1000, "SELECT 1 LIMIT 1000"},
		{"offset comma form", "SELECT 1 LIMIT 20, 999999", 0, 1000, "SELECT 1 LIMIT 20 , 1000"},
		{"offset keyword form", "SELECT 1 LIMIT 999999 OFFSET 5", 0, 1000, "SELECT 1 LIMIT 1000 OFFSET 5"},
		{"negative limit clamped", "SELECT 1 LIMIT -1", 0, 1000, "SELECT 1 LIMIT 1000"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v, err := newTestGuard().Validate(tc.query, tc.hint)
			if err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if v.EffectiveLimit != tc.wantLimit {
				t.Errorf("EffectiveLimit = %d, want %d", v.EffectiveLimit, tc.wantLimit)
			}
			if v.SQL != tc.wantSQL {
				t.Errorf("SQL = %q, want %q", v.SQL, tc.wantSQL)
			}
		})
	}
}

func TestValidateSubqueryLimitNotTopLevel(t *testing.T) {
	// A LIMIT inside parentheses belongs to the subquery; the outer statement
	// still gets its own bound appended.
	v, err := newTestGuard().Validate("SELECT * FROM (SELECT id FROM transactions LIMIT 5)", 0)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if v.EffectiveLimit != 200 {
		t.Errorf("EffectiveLimit = %d, want 200", v.EffectiveLimit)
	}
	want := "SELECT * FROM ( SELECT id FROM transactions LIMIT 5 ) LIMIT 200"
	if v.SQL != want {
		t.Errorf("SQL = %q, want %q", v.SQL, want)
	}
}

func TestTokenizeOperators(t *testing.T) {
	tokens, err := tokenize("SELECT data ->> 'x' FROM t WHERE a >= 1 AND b != 2")
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	var ops []string
	for _, tok := range tokens {
		if tok.kind == tokenPunct {
			ops = append(ops, tok.text)
		}
	}
	want := []string{"->>", ">=", "!="}
	if len(ops) != len(want) {
		t.Fatalf("operators = %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("operator %d = %q, want %q", i, ops[i], want[i])
		}
	}
}

func TestTokenizeStringEscapes(t *testing.T) {
	tokens, err := tokenize("SELECT 'it''s fine'")
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	if len(tokens) != 2 {
		t.Fatalf("token count = %d, want 2", len(tokens))
	}
	if tokens[1].kind != tokenString {
		t.Fatalf("second token kind = %v, want string", tokens[1].kind)
	}
}
