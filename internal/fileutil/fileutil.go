// Package fileutil provides the file creation helpers used when writing
// the converted tree.
package fileutil

import (
	"io/fs"
	"os"

	"github.com/creachadair/atomicfile"
)

// Default permissions for converted output.
const (
	DirPerm  fs.FileMode = 0755
	FilePerm fs.FileMode = 0644
)

// MkdirAll creates a directory path and all parents that do not yet exist.
// It succeeds if the directory already exists, including when another
// goroutine creates it concurrently.
func MkdirAll(path string) error {
	return os.MkdirAll(path, DirPerm)
}

// WriteFileAtomic writes data to a temporary file next to path and renames
// it into place. Readers see either the previous file or the complete new
// one; a failed write leaves nothing behind.
func WriteFileAtomic(path string, data []byte) error {
	return atomicfile.WriteData(path, data, FilePerm)
}

// OpenAppend opens path for appending, creating it if needed. Used for the
// run log, which accumulates across runs.
func OpenAppend(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, FilePerm)
}
