package pmmail

import (
	"bytes"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/wesm/pmmail2eml/internal/textutil"
)

// nameStrategy extracts a display name from preprocessed descriptor text.
// It reports false when the text does not match its layout.
type nameStrategy func(text string) (string, bool)

// wsClass matches the whitespace textutil.IsSpace accepts below U+0100.
const wsClass = `\s\v\x1c-\x1f\x85\xa0`

var (
	acctDelimitedRe = regexp.MustCompile(`ACCTNAME\|+([^|]+)`)
	acctInlineRe    = regexp.MustCompile(`ACCTNAME[` + wsClass + `]*([A-Za-z0-9@._\-` + wsClass + `]+)`)

	// Folder patterns are anchored at the start of the cleaned text.
	folderClassicRe    = regexp.MustCompile(`^([\wÄÖÜäöüß\s\-]+?)(?:fi|ﬁ)\d`)
	folderNormalizedRe = regexp.MustCompile(`^!?([A-Za-zÄÖÜäöüß\s\-]+?)[0-9;|]`)
	folderGenericRe    = regexp.MustCompile(`^!?([^|;\r\n]+)`)
)

var accountStrategies = []nameStrategy{
	submatch(acctDelimitedRe),
	submatch(acctInlineRe),
}

var folderStrategies = []nameStrategy{
	submatch(folderClassicRe),
	submatch(folderNormalizedRe),
	submatch(folderGenericRe),
}

// submatch returns a strategy yielding the first capture group of re,
// sanitized. Matches that sanitize to the empty string do not count.
func submatch(re *regexp.Regexp) nameStrategy {
	return func(text string) (string, bool) {
		m := re.FindStringSubmatch(text)
		if m == nil {
			return "", false
		}
		name := SanitizeName(m[1])
		return name, name != ""
	}
}

func firstMatch(text string, strategies []nameStrategy) (string, bool) {
	for _, s := range strategies {
		if name, ok := s(text); ok {
			return name, true
		}
	}
	return "", false
}

// accountText turns raw ACCT.INI bytes into searchable text: NUL bytes
// become pipe delimiters and the rest is read as Latin-1.
func accountText(raw []byte) string {
	return textutil.DecodeLatin1(bytes.ReplaceAll(raw, []byte{0}, []byte{'|'}))
}

// folderText turns raw FOLDER.INI bytes into the cleaned form the folder
// patterns run against: NULs removed, invalid UTF-8 dropped, trimmed, and
// every rune outside printable ASCII replaced by a pipe.
func folderText(raw []byte) string {
	text := textutil.TrimSpace(textutil.DropInvalidUTF8(bytes.ReplaceAll(raw, []byte{0}, nil)))
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7e {
			return '|'
		}
		return r
	}, text)
}

// AccountNameFromBytes extracts the account display name from the
// contents of an ACCT.INI descriptor.
func AccountNameFromBytes(raw []byte) (string, bool) {
	return firstMatch(accountText(raw), accountStrategies)
}

// FolderNameFromBytes extracts the folder display name from the contents
// of a FOLDER.INI descriptor.
func FolderNameFromBytes(raw []byte) (string, bool) {
	return firstMatch(folderText(raw), folderStrategies)
}

// Decoder reads account and folder descriptors. It never fails: any
// problem is logged and the sanitized directory stem is used instead.
type Decoder struct {
	// Logger is optional; defaults to slog.Default().
	Logger *slog.Logger
}

func (d *Decoder) log() *slog.Logger {
	if d == nil || d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// AccountName returns the display name for the account directory dir.
func (d *Decoder) AccountName(dir string) string {
	return d.decode(dir, AccountDescriptor, AccountNameFromBytes)
}

// FolderName returns the display name for the folder directory dir.
func (d *Decoder) FolderName(dir string) string {
	return d.decode(dir, FolderDescriptor, FolderNameFromBytes)
}

func (d *Decoder) decode(
	dir, descriptor string, extract func([]byte) (string, bool),
) string {
	log := d.log()
	fallback := SanitizeName(stem(dir))

	path, err := findDescriptor(dir, descriptor)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn("descriptor missing, using directory name",
			"descriptor", descriptor,
			"dir", dir,
			"name", fallback,
		)
		return fallback
	}
	if err != nil {
		log.Error("locate descriptor", "dir", dir, "error", err)
		return fallback
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		log.Error("read descriptor", "path", path, "error", err)
		return fallback
	}

	if name, ok := extract(raw); ok {
		log.Debug("decoded display name", "path", path, "name", name)
		return name
	}

	log.Warn("no display name found in descriptor, using directory name",
		"path", path,
		"name", fallback,
	)
	return fallback
}

// findDescriptor returns the path of the named descriptor inside dir.
// Archives copied off case-insensitive filesystems may carry the name in
// any case, so an exact miss falls back to a case-insensitive scan.
func findDescriptor(dir, name string) (string, error) {
	exact := filepath.Join(dir, name)
	info, err := os.Stat(exact)
	if err == nil && info.Mode().IsRegular() {
		return exact, nil
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.Type().IsRegular() && strings.EqualFold(e.Name(), name) {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", fs.ErrNotExist
}
