package pmmail

import (
	"strings"
	"testing"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", "Inbox", "Inbox"},
		{"trims whitespace", "  Sent Items \t\r\n", "Sent Items"},
		{"colon", "Work: Mail", "Work_ Mail"},
		{"slashes", `a/b\c`, "a_b_c"},
		{"all reserved", `\/*?:"<>|`, "_________"},
		{"inner whitespace kept", "My  Folder", "My  Folder"},
		{"umlauts kept", "Gelöschte Objekte", "Gelöschte Objekte"},
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
		{"information separators trimmed", "\x1cInbox\x1f", "Inbox"},
		{"non-breaking space trimmed", "\u00a0Inbox\u0085", "Inbox"},
		{"reserved at edges", " |Inbox| ", "_Inbox_"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeName(tt.input); got != tt.expected {
				t.Errorf("SanitizeName(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSanitizeName_Properties(t *testing.T) {
	inputs := []string{
		"", " ", "Inbox", " a:b ", `C:\Users\mail`, "x\"y\"z", "<tag>",
		"\u00a0nbsp\u00a0", "tab\tinside", "?*?*", "Ünïcödé | name",
		"trailing space |", "| leading", "..", "a/../b",
	}
	for _, in := range inputs {
		out := SanitizeName(in)
		if strings.ContainsAny(out, `\/*?:"<>|`) {
			t.Errorf("SanitizeName(%q) = %q still contains a reserved character", in, out)
		}
		if out != strings.TrimSpace(out) {
			t.Errorf("SanitizeName(%q) = %q has surrounding whitespace", in, out)
		}
		if again := SanitizeName(out); again != out {
			t.Errorf("SanitizeName not idempotent for %q: %q then %q", in, out, again)
		}
	}
}
