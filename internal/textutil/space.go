package textutil

import (
	"strings"
	"unicode"
)

// IsSpace reports whether r is whitespace in the broad sense legacy
// descriptors rely on: Unicode white space plus the ASCII information
// separators U+001C to U+001F.
func IsSpace(r rune) bool {
	return unicode.IsSpace(r) || (r >= 0x1c && r <= 0x1f)
}

// TrimSpace returns s without leading and trailing runes matching IsSpace.
func TrimSpace(s string) string {
	return strings.TrimFunc(s, IsSpace)
}
