package analysis

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var (
	reStringLiteral = regexp.MustCompile(`'[^']*'|"[^"]*"`)
	reNumberLiteral = regexp.MustCompile(`\b\d+(\.\d+)?\b`)
	reWhitespace    = regexp.MustCompile(`\s+`)
)

// Fingerprint normalizes a query and hashes it, so textually different
// invocations of the same query shape (different literals, casing, or
// whitespace) share a cache entry and group together in history.
func Fingerprint(query string) string {
	norm := strings.ToLower(strings.TrimSpace(query))
	norm = reStringLiteral.ReplaceAllString(norm, "?")
	norm = reNumberLiteral.ReplaceAllString(norm, "?")
	norm = reWhitespace.ReplaceAllString(norm, " ")

	sum := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:])
}
