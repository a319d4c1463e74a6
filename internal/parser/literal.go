package parser

import (
	"strconv"

	"github.com/vladisrael/arx-lang/internal/lexer"
)

// parseIntLiteral parses a decimal integer token, defaulting to 0 on an
// unparseable lexeme rather than propagating a second error path — the
// lexer already guarantees the token's text is all-digit.
func parseIntLiteral(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}

// parseFloatLiteral parses a digit-dot-digit float token.
func parseFloatLiteral(s string) float64 {
	v, _ := strconv.ParseFloat(s, 32)
	return v
}

// stringValue decodes the raw token text of a STRING token (escapes are
// decoded lazily here rather than in the lexer so the lexer stays a pure
// maximal-munch scanner, per spec.md §4.1).
func stringValue(t lexer.Token) string {
	return lexer.Decode(t.Val)
}
