package issuance

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxNameLength bounds the normalised beneficiary name in bytes.
const MaxNameLength = 30

// NormalizeName folds case and applies NFKC so visually identical names
// collide in the name index.
func NormalizeName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if !utf8.ValidString(trimmed) {
		return "", fmt.Errorf("%w: not utf-8", ErrInvalidName)
	}
	normalized := norm.NFKC.String(strings.ToLower(trimmed))
	if len(normalized) > MaxNameLength {
		return "", fmt.Errorf("%w: longer than %d bytes", ErrInvalidName, MaxNameLength)
	}
	return normalized, nil
}
