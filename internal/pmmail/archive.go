// Package pmmail reads the on-disk layout of a PMMail 2000 archive:
// account (.ACT) and folder (.FLD) directories with their ACCT.INI and
// FOLDER.INI descriptors, and the .msg message files stored inside them.
package pmmail

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Archive layout constants.
const (
	AccountExt        = ".ACT"
	FolderExt         = ".FLD"
	AccountDescriptor = "ACCT.INI"
	FolderDescriptor  = "FOLDER.INI"
	MessageExt        = ".msg"
	OutputExt         = ".eml"
)

// NodeKind distinguishes account directories from folder directories.
type NodeKind int

const (
	KindAccount NodeKind = iota
	KindFolder
)

func (k NodeKind) String() string {
	switch k {
	case KindAccount:
		return "account"
	case KindFolder:
		return "folder"
	default:
		return fmt.Sprintf("NodeKind(%d)", int(k))
	}
}

// Node is an account or folder directory of the archive.
type Node struct {
	// Path is the directory path including its .ACT/.FLD extension.
	Path string

	// Key is Path with the extension removed. It is the identity used
	// to look up display names.
	Key string

	Kind NodeKind

	// Name is the decoded display name.
	Name string
}

// MessageFile is a candidate message discovered under the archive root.
type MessageFile struct {
	Path    string
	RelPath string
}

// NameMap maps node keys to display names. It is built once by
// BuildNameMap and never modified afterwards, so it is safe to share
// between goroutines.
type NameMap struct {
	names map[string]string
	nodes []Node
}

// Lookup returns the display name recorded for key.
func (m *NameMap) Lookup(key string) (string, bool) {
	if m == nil {
		return "", false
	}
	name, ok := m.names[filepath.Clean(key)]
	return name, ok
}

// Len returns the number of distinct keys.
func (m *NameMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.names)
}

// Nodes returns every decoded node in insertion order: accounts first,
// then folders, each sorted by path.
func (m *NameMap) Nodes() []Node {
	if m == nil {
		return nil
	}
	out := make([]Node, len(m.nodes))
	copy(out, m.nodes)
	return out
}

// BuildNameMap walks root once and decodes every account and folder
// directory it finds.
//
// When an account and a folder reduce to the same key, the folder wins:
// accounts are inserted before folders and later inserts overwrite.
// Unreadable subdirectories are logged and skipped; only a failure to
// read root itself is returned.
func BuildNameMap(root string, dec *Decoder) (*NameMap, error) {
	root = filepath.Clean(root)
	log := dec.log()

	var accounts, folders []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			log.Warn("skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() || path == root {
			return nil
		}
		ext := filepath.Ext(d.Name())
		switch {
		case strings.EqualFold(ext, AccountExt):
			accounts = append(accounts, path)
		case strings.EqualFold(ext, FolderExt):
			folders = append(folders, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan archive %q: %w", root, err)
	}

	sort.Strings(accounts)
	sort.Strings(folders)

	m := &NameMap{
		names: make(map[string]string, len(accounts)+len(folders)),
		nodes: make([]Node, 0, len(accounts)+len(folders)),
	}
	for _, p := range accounts {
		m.add(Node{Path: p, Key: stripExt(p), Kind: KindAccount, Name: dec.AccountName(p)})
	}
	for _, p := range folders {
		m.add(Node{Path: p, Key: stripExt(p), Kind: KindFolder, Name: dec.FolderName(p)})
	}

	log.Info("built name map",
		"root", root,
		"accounts", len(accounts),
		"folders", len(folders),
	)
	return m, nil
}

func (m *NameMap) add(n Node) {
	m.names[n.Key] = n.Name
	m.nodes = append(m.nodes, n)
}

// DiscoverMessages returns every regular file under root whose extension
// is .msg in any case, sorted by path. Unreadable subdirectories are
// logged and skipped.
func DiscoverMessages(root string, log *slog.Logger) ([]MessageFile, error) {
	if log == nil {
		log = slog.Default()
	}
	root = filepath.Clean(root)

	var files []MessageFile
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			log.Warn("skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if !strings.EqualFold(filepath.Ext(d.Name()), MessageExt) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relative path for %q: %w", path, err)
		}
		files = append(files, MessageFile{Path: path, RelPath: rel})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover messages in %q: %w", root, err)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})
	return files, nil
}

// ResolveOutputPath rewrites a message path relative to root into the
// output path relative to the target root. Each leading segment whose
// extension-stripped absolute path has a display name in names is
// replaced by it; other segments are kept verbatim. The extension of the
// last segment becomes .eml.
func ResolveOutputPath(rel string, names *NameMap, root string) string {
	root = filepath.Clean(root)
	orig := strings.Split(filepath.ToSlash(filepath.Clean(rel)), "/")
	parts := make([]string, len(orig))
	copy(parts, orig)

	for i := range orig {
		abs := filepath.Join(append([]string{root}, orig[:i+1]...)...)
		if name, ok := names.Lookup(stripExt(abs)); ok && validSegment(name) {
			parts[i] = name
		}
	}

	last := len(parts) - 1
	parts[last] = stripExt(parts[last]) + OutputExt
	return filepath.Join(parts...)
}

// stripExt removes the extension from the last element of p. A name made
// only of a leading dot and an extension (".hidden") is left alone.
func stripExt(p string) string {
	base := filepath.Base(p)
	ext := filepath.Ext(base)
	if ext == "" || ext == base {
		return p
	}
	return p[:len(p)-len(ext)]
}

// stem returns the base name of dir without its extension.
func stem(dir string) string {
	return stripExt(filepath.Base(dir))
}

// validSegment reports whether name can stand in for a single path
// segment without collapsing or escaping the output tree.
func validSegment(name string) bool {
	return name != "" && name != "." && name != ".."
}

// IsDir reports whether path exists and is a directory.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
