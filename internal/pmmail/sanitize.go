package pmmail

import (
	"strings"

	"github.com/wesm/pmmail2eml/internal/textutil"
)

// reservedReplacer maps characters that are unsafe in a path segment on
// any common filesystem to an underscore.
var reservedReplacer = strings.NewReplacer(
	`\`, "_",
	"/", "_",
	"*", "_",
	"?", "_",
	":", "_",
	`"`, "_",
	"<", "_",
	">", "_",
	"|", "_",
)

// SanitizeName returns name trimmed of surrounding whitespace with every
// filesystem-reserved character replaced by an underscore. It is total
// and idempotent.
func SanitizeName(name string) string {
	return reservedReplacer.Replace(textutil.TrimSpace(name))
}
