package testutil

import (
	"path/filepath"
	"testing"
)

// OLE2Signature is the 8-byte magic that opens every compound file.
var OLE2Signature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// AccountDescriptor returns ACCT.INI contents in the NUL-delimited layout
// PMMail writes, with name stored after the ACCTNAME key.
func AccountDescriptor(name string) []byte {
	return []byte("\x00\x02POPHOST\x00\x00pop.example.com\x00" +
		"ACCTNAME\x00\x00" + name + "\x00\x00" +
		"REPLYTO\x00\x00\x00")
}

// FolderDescriptor returns FOLDER.INI contents in the classic layout:
// the folder name directly followed by "fi" and a digit.
func FolderDescriptor(name string) []byte {
	return []byte(name + "fi1\x00\x00;Y;0;\x00")
}

// PlainMessage returns a small RFC 5322 message.
func PlainMessage(subject string) []byte {
	return []byte("From: sender@example.com\r\n" +
		"To: recipient@example.com\r\n" +
		"Subject: " + subject + "\r\n" +
		"\r\n" +
		"Body of " + subject + "\r\n")
}

// CompoundMessage returns bytes that carry the compound file signature.
// The remainder is filler; callers that need a parseable file stub the
// parser.
func CompoundMessage(filler string) []byte {
	return append(append([]byte{}, OLE2Signature...), filler...)
}

// Archive builds a PMMail directory tree under a temporary root.
type Archive struct {
	t    *testing.T
	Root string
}

// NewArchive creates an empty archive root in t.TempDir().
func NewArchive(t *testing.T) *Archive {
	t.Helper()
	return &Archive{t: t, Root: t.TempDir()}
}

// Account creates the account directory rel (for example "A1.ACT") and,
// when descriptor is non-nil, its ACCT.INI. Returns the absolute path.
func (a *Archive) Account(rel string, descriptor []byte) string {
	a.t.Helper()
	dir := MkdirAll(a.t, a.Root, rel)
	if descriptor != nil {
		WriteFile(a.t, dir, "ACCT.INI", descriptor)
	}
	return dir
}

// Folder creates the folder directory rel (for example "A1.ACT/F1.FLD")
// and, when descriptor is non-nil, its FOLDER.INI.
func (a *Archive) Folder(rel string, descriptor []byte) string {
	a.t.Helper()
	dir := MkdirAll(a.t, a.Root, rel)
	if descriptor != nil {
		WriteFile(a.t, dir, "FOLDER.INI", descriptor)
	}
	return dir
}

// Message writes a message file at rel.
func (a *Archive) Message(rel string, content []byte) string {
	a.t.Helper()
	return WriteFile(a.t, a.Root, rel, content)
}

// Path joins rel onto the archive root.
func (a *Archive) Path(rel string) string {
	return filepath.Join(a.Root, filepath.FromSlash(rel))
}
