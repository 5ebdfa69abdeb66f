// src/security/queryguard/queryguard.go
//
// The query guard is the read path of the trust boundary: it accepts a
// caller-supplied SQL string and either returns a single-statement, read-only,
// row-bounded query ready for execution, or rejects it with a machine-readable
// reason. Detection is token-aware, never substring-aware: a comment cannot
// smuggle a second statement past the scanner, and an identifier that merely
// contains a forbidden word is not a false positive.
package queryguard

import (
	"fmt"
	"strconv"
	"strings"
)

// ReasonCode identifies why a query was rejected.
type ReasonCode string

const (
	ReasonMultiStatement   ReasonCode = "multi_statement"
	ReasonForbiddenKeyword ReasonCode = "forbidden_keyword"
	ReasonUnparsable       ReasonCode = "unparsable"
)

// GuardError is a guard rejection. It is always produced before anything
// reaches storage.
type GuardError struct {
	Code   ReasonCode
	Detail string
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("query rejected (%s): %s", e.Code, e.Detail)
}

// Validated is a query that passed every guard stage, reassembled from its
// tokens (comments stripped, trailing semicolon dropped) with the effective
// row limit applied.
type Validated struct {
	SQL            string `json:"sql"`
	EffectiveLimit int    `json:"effective_limit"`
}

// Guard validates externally supplied queries. It holds no mutable state and
// is safe for concurrent use.
type Guard struct {
	defaultLimit int
	maxLimit     int
}

// New returns a Guard with the given default and hard-maximum row limits.
func New(defaultLimit, maxLimit int) *Guard {
	if maxLimit <= 0 {
		maxLimit = 1000
	}
	if defaultLimit <= 0 || defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	return &Guard{defaultLimit: defaultLimit, maxLimit: maxLimit}
}

// Statements that read. Everything else is rejected up front.
var allowedLeading = map[string]bool{
	"select": true,
	"with":   true, // read-only query with named auxiliary sub-clauses
}

// Any of these appearing as a bare keyword token anywhere in the statement
// rejects it. SQLite cannot nest DML inside a SELECT, so a blanket token scan
// has no false negatives, and quoted identifiers/string literals never reach
// this set.
var forbiddenKeywords = map[string]bool{
	"insert": true, "update": true, "delete": true, "replace": true,
	"drop": true, "create": true, "alter": true, "truncate": true,
	"attach": true, "detach": true, "pragma": true, "vacuum": true,
	"reindex": true, "analyze": true, "grant": true, "revoke": true,
	"begin": true, "commit": true, "rollback": true, "savepoint": true,
	"release": true, "into": true, "returning": true, "merge": true,
	"exec": true, "execute": true, "call": true,
}

// Validate runs the four guard stages: comment stripping (inside the
// tokenizer), single-statement check, keyword allow-list, and bound
// enforcement. limitHint is the caller's requested row limit; zero means "use
// the default". Hints and in-query LIMIT clauses above the hard maximum are
// silently clamped, never rejected, and the effective limit actually applied
// is always reported back.
func (g *Guard) Validate(queryText string, limitHint int) (*Validated, error) {
	tokens, err := tokenize(queryText)
	if err != nil {
		return nil, &GuardError{Code: ReasonUnparsable, Detail: err.Error()}
	}
	if len(tokens) == 0 {
		return nil, &GuardError{Code: ReasonUnparsable, Detail: "empty query"}
	}

	// Single-statement check: one optional trailing terminator, nothing
	// after it.
	for i, tok := range tokens {
		if tok.kind == tokenPunct && tok.text == ";" {
			if i != len(tokens)-1 {
				return nil, &GuardError{Code: ReasonMultiStatement, Detail: "statement terminator followed by more input"}
			}
			tokens = tokens[:i]
		}
	}
	if len(tokens) == 0 {
		return nil, &GuardError{Code: ReasonUnparsable, Detail: "empty query"}
	}

	// Allow-list: the statement must be a read-only form.
	leading := tokens[0]
	if leading.kind != tokenWord || !allowedLeading[strings.ToLower(leading.text)] {
		return nil, &GuardError{Code: ReasonForbiddenKeyword, Detail: fmt.Sprintf("statement must start with SELECT or WITH, got %q", leading.text)}
	}
	for _, tok := range tokens {
		if tok.kind == tokenWord && forbiddenKeywords[strings.ToLower(tok.text)] {
			return nil, &GuardError{Code: ReasonForbiddenKeyword, Detail: fmt.Sprintf("forbidden keyword %q", strings.ToUpper(tok.text))}
		}
	}

	tokens, effectiveLimit, err := g.enforceLimit(tokens, limitHint)
	if err != nil {
		return nil, err
	}

	return &Validated{SQL: joinTokens(tokens), EffectiveLimit: effectiveLimit}, nil
}

// enforceLimit applies stage four. A top-level LIMIT clause (paren depth
// zero) is clamped in place; without one, the hint or default is appended.
func (g *Guard) enforceLimit(tokens []token, limitHint int) ([]token, int, error) {
	limitIdx := -1
	depth := 0
	for i, tok := range tokens {
		if tok.kind == tokenPunct {
			switch tok.text {
			case "(":
				depth++
			case ")":
				depth--
			}
			continue
		}
		if depth == 0 && tok.kind == tokenWord && strings.EqualFold(tok.text, "limit") {
			limitIdx = i
		}
	}

	if limitIdx < 0 {
		limit := g.defaultLimit
		if limitHint > 0 {
			limit = min(limitHint, g.maxLimit)
		}
		tokens = append(tokens,
			token{kind: tokenWord, text: "LIMIT"},
			token{kind: tokenNumber, text: strconv.Itoa(limit)})
		return tokens, limit, nil
	}

	// The row-count literal is the token after LIMIT, except in the
	// "LIMIT offset, count" form where it is the one after the comma. A
	// negative literal means unbounded in SQLite and is clamped like any
	// over-maximum request.
	countIdx := limitIdx + 1
	negative := false
	if countIdx < len(tokens) && tokens[countIdx].kind == tokenPunct && tokens[countIdx].text == "-" {
		negative = true
		countIdx++
	}
	if countIdx >= len(tokens) || tokens[countIdx].kind != tokenNumber {
		return nil, 0, &GuardError{Code: ReasonUnparsable, Detail: "LIMIT must be followed by a numeric literal"}
	}
	if commaIdx := countIdx + 1; commaIdx < len(tokens) && tokens[commaIdx].kind == tokenPunct && tokens[commaIdx].text == "," {
		countIdx = commaIdx + 1
		negative = false
		if countIdx < len(tokens) && tokens[countIdx].kind == tokenPunct && tokens[countIdx].text == "-" {
			negative = true
			countIdx++
		}
		if countIdx >= len(tokens) || tokens[countIdx].kind != tokenNumber {
			return nil, 0, &GuardError{Code: ReasonUnparsable, Detail: "LIMIT must be followed by a numeric literal"}
		}
	}

	requested, err := strconv.Atoi(tokens[countIdx].text)
	if err != nil {
		return nil, 0, &GuardError{Code: ReasonUnparsable, Detail: fmt.Sprintf("invalid LIMIT value %q", tokens[countIdx].text)}
	}

	effective := requested
	if negative || requested > g.maxLimit {
		effective = g.maxLimit
	}
	tokens[countIdx] = token{kind: tokenNumber, text: strconv.Itoa(effective)}
	if negative {
		// drop the sign token rewritten away by the clamp
		tokens = append(tokens[:countIdx-1], tokens[countIdx:]...)
	}
	return tokens, effective, nil
}

// joinTokens reassembles the validated statement. Token-boundary whitespace
// is normalized to single spaces; literals and quoted identifiers are
// preserved verbatim.
func joinTokens(tokens []token) string {
	parts := make([]string, len(tokens))
	for i, tok := range tokens {
		parts[i] = tok.text
	}
	return strings.Join(parts, " ")
}
