// src/security/queryguard/tokenizer.go
package queryguard

import "fmt"

type tokenKind int

const (
	tokenWord   tokenKind = iota // bare keyword or identifier
	tokenNumber                  // numeric literal
	tokenString                  // 'single-quoted' string literal
	tokenIdent                   // quoted identifier: double-quoted, backtick-quoted or [bracketed]
	tokenPunct                   // operator or punctuation
)

type token struct {
	kind tokenKind
	text string
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isWordStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' || c >= 0x80
}

func isWordPart(c byte) bool {
	return isWordStart(c) || isDigit(c) || c == '$'
}

// multi-char operators that must survive as single tokens so the validated
// statement can be reassembled from tokens.
var twoCharOps = map[string]bool{
	"<=": true, ">=": true, "<>": true, "!=": true, "==": true,
	"||": true, "<<": true, ">>": true, "->": true,
}

// tokenize splits queryText into SQL tokens, discarding whitespace and
// comments. String literals and quoted identifiers are kept opaque (quotes
// included) so their contents can never be mistaken for keywords. Returns an
// unparsable error for unterminated strings, identifiers or block comments.
func tokenize(queryText string) ([]token, error) {
	var tokens []token
	i, n := 0, len(queryText)

	for i < n {
		c := queryText[i]
		switch {
		case isSpace(c):
			i++

		case c == '-' && i+1 < n && queryText[i+1] == '-':
			// line comment
			for i < n && queryText[i] != '\n' {
				i++
			}

		case c == '/' && i+1 < n && queryText[i+1] == '*':
			end := -1
			for j := i + 2; j+1 < n; j++ {
				if queryText[j] == '*' && queryText[j+1] == '/' {
					end = j + 2
					break
				}
			}
			if end < 0 {
				return nil, fmt.Errorf("unterminated block comment")
			}
			i = end

		case c == '\'':
			text, next, err := scanQuoted(queryText, i, '\'')
			if err != nil {
				return nil, fmt.Errorf("unterminated string literal")
			}
			tokens = append(tokens, token{kind: tokenString, text: text})
			i = next

		case c == '"' || c == '`':
			text, next, err := scanQuoted(queryText, i, c)
			if err != nil {
				return nil, fmt.Errorf("unterminated quoted identifier")
			}
			tokens = append(tokens, token{kind: tokenIdent, text: text})
			i = next

		case c == '[':
			end := -1
			for j := i + 1; j < n; j++ {
				if queryText[j] == ']' {
					end = j
					break
				}
			}
			if end < 0 {
				return nil, fmt.Errorf("unterminated bracketed identifier")
			}
			tokens = append(tokens, token{kind: tokenIdent, text: queryText[i : end+1]})
			i = end + 1

		case isDigit(c) || (c == '.' && i+1 < n && isDigit(queryText[i+1])):
			start := i
			for i < n && (isDigit(queryText[i]) || queryText[i] == '.' ||
				(queryText[i]|0x20) >= 'a' && (queryText[i]|0x20) <= 'z') {
				// exponent sign belongs to the literal: 1e+5, 2E-3
				if (queryText[i]|0x20) == 'e' && i+1 < n && (queryText[i+1] == '+' || queryText[i+1] == '-') {
					i++
				}
				i++
			}
			tokens = append(tokens, token{kind: tokenNumber, text: queryText[start:i]})

		case isWordStart(c):
			start := i
			for i < n && isWordPart(queryText[i]) {
				i++
			}
			tokens = append(tokens, token{kind: tokenWord, text: queryText[start:i]})

		default:
			if i+2 < n && queryText[i:i+3] == "->>" {
				tokens = append(tokens, token{kind: tokenPunct, text: "->>"})
				i += 3
				break
			}
			if i+1 < n && twoCharOps[queryText[i:i+2]] {
				tokens = append(tokens, token{kind: tokenPunct, text: queryText[i : i+2]})
				i += 2
				break
			}
			tokens = append(tokens, token{kind: tokenPunct, text: string(c)})
			i++
		}
	}
	return tokens, nil
}

// scanQuoted consumes a quoted region starting at start, where a doubled
// quote character is an escape. Returns the region including quotes and the
// index just past it.
func scanQuoted(s string, start int, quote byte) (string, int, error) {
	i := start + 1
	n := len(s)
	for i < n {
		if s[i] == quote {
			if i+1 < n && s[i+1] == quote {
				i += 2
				continue
			}
			return s[start : i+1], i + 1, nil
		}
		i++
	}
	return "", 0, fmt.Errorf("unterminated")
}
