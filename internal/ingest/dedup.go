package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// NormalizeContent standardizes content before hashing so that incidental
// whitespace differences do not defeat deduplication.
func NormalizeContent(content string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(content, " "))
}

// ComputeContentHash returns the SHA-256 hex digest of the normalized
// content text. The hash covers the text alone, with no source or project
// scoping: identical content is stored at most once across the entire
// store, even when different sources surface it.
func ComputeContentHash(content string) string {
	sum := sha256.Sum256([]byte(NormalizeContent(content)))
	return hex.EncodeToString(sum[:])
}
