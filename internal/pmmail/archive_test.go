package pmmail

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wesm/pmmail2eml/internal/testutil"
)

func nameMapOf(entries map[string]string) *NameMap {
	m := &NameMap{names: make(map[string]string)}
	for k, v := range entries {
		m.names[filepath.Clean(k)] = v
	}
	return m
}

func TestBuildNameMap(t *testing.T) {
	a := testutil.NewArchive(t)
	a.Account("A1.ACT", testutil.AccountDescriptor("Personal"))
	a.Folder("A1.ACT/F1.FLD", testutil.FolderDescriptor("Inbox"))
	a.Folder("A1.ACT/F2.FLD", testutil.FolderDescriptor("Sent"))
	a.Account("A2.act", testutil.AccountDescriptor("Work"))
	a.Folder("A2.act/F1.FLD", nil)
	testutil.MkdirAll(t, a.Root, "A1.ACT/plain")

	logger, _ := testutil.NewLogger()
	m, err := BuildNameMap(a.Root, &Decoder{Logger: logger})
	if err != nil {
		t.Fatalf("BuildNameMap: %v", err)
	}

	got := make(map[string]string)
	for _, n := range m.Nodes() {
		rel, err := filepath.Rel(a.Root, n.Key)
		if err != nil {
			t.Fatalf("rel: %v", err)
		}
		got[filepath.ToSlash(rel)] = n.Name
	}
	want := map[string]string{
		"A1":        "Personal",
		"A1.ACT/F1": "Inbox",
		"A1.ACT/F2": "Sent",
		"A2":        "Work",
		"A2.act/F1": "F1",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("name map mismatch (-want +got):\n%s", diff)
	}
	if m.Len() != len(want) {
		t.Errorf("Len = %d, want %d", m.Len(), len(want))
	}
}

func TestBuildNameMap_NodeOrder(t *testing.T) {
	a := testutil.NewArchive(t)
	a.Folder("A1.ACT/F1.FLD", testutil.FolderDescriptor("Inbox"))
	a.Account("A1.ACT", testutil.AccountDescriptor("Personal"))
	a.Account("A0.ACT", testutil.AccountDescriptor("Archive"))

	m, err := BuildNameMap(a.Root, &Decoder{})
	if err != nil {
		t.Fatalf("BuildNameMap: %v", err)
	}

	var kinds []string
	var names []string
	for _, n := range m.Nodes() {
		kinds = append(kinds, n.Kind.String())
		names = append(names, n.Name)
	}
	testutil.AssertStrings(t, kinds, "account", "account", "folder")
	testutil.AssertStrings(t, names, "Archive", "Personal", "Inbox")
}

func TestBuildNameMap_FolderWinsKeyCollision(t *testing.T) {
	a := testutil.NewArchive(t)
	a.Account("X.ACT", testutil.AccountDescriptor("AccountName"))
	a.Folder("X.FLD", testutil.FolderDescriptor("FolderName"))

	m, err := BuildNameMap(a.Root, &Decoder{})
	if err != nil {
		t.Fatalf("BuildNameMap: %v", err)
	}
	name, ok := m.Lookup(a.Path("X"))
	if !ok || name != "FolderName" {
		t.Errorf("Lookup = (%q, %v), want (%q, true)", name, ok, "FolderName")
	}
	if m.Len() != 1 {
		t.Errorf("Len = %d, want 1", m.Len())
	}
	if n := len(m.Nodes()); n != 2 {
		t.Errorf("Nodes = %d, want 2", n)
	}
}

func TestBuildNameMap_IgnoresDescriptorLookalikeFiles(t *testing.T) {
	a := testutil.NewArchive(t)
	a.Message("notes.ACT", []byte("not a directory"))

	m, err := BuildNameMap(a.Root, &Decoder{})
	if err != nil {
		t.Fatalf("BuildNameMap: %v", err)
	}
	if m.Len() != 0 {
		t.Errorf("Len = %d, want 0", m.Len())
	}
}

func TestBuildNameMap_MissingRoot(t *testing.T) {
	_, err := BuildNameMap(filepath.Join(t.TempDir(), "nope"), &Decoder{})
	if err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestDiscoverMessages(t *testing.T) {
	a := testutil.NewArchive(t)
	a.Message("A1.ACT/F1.FLD/b.msg", []byte("x"))
	a.Message("A1.ACT/F1.FLD/a.MSG", []byte("x"))
	a.Message("A1.ACT/F1.FLD/FOLDER.INI", []byte("x"))
	a.Message("A1.ACT/c.Msg", []byte("x"))
	a.Message("top.msg", []byte("x"))
	testutil.MkdirAll(t, a.Root, "dir.msg")

	files, err := DiscoverMessages(a.Root, nil)
	if err != nil {
		t.Fatalf("DiscoverMessages: %v", err)
	}

	var rels []string
	for _, f := range files {
		rels = append(rels, filepath.ToSlash(f.RelPath))
		if f.Path != filepath.Join(a.Root, f.RelPath) {
			t.Errorf("Path %q does not match RelPath %q", f.Path, f.RelPath)
		}
	}
	testutil.AssertStrings(t, rels,
		"A1.ACT/F1.FLD/a.MSG",
		"A1.ACT/F1.FLD/b.msg",
		"A1.ACT/c.Msg",
		"top.msg",
	)
}

func TestDiscoverMessages_MissingRoot(t *testing.T) {
	if _, err := DiscoverMessages(filepath.Join(t.TempDir(), "nope"), nil); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestResolveOutputPath(t *testing.T) {
	root := filepath.FromSlash("/archive")
	names := nameMapOf(map[string]string{
		filepath.FromSlash("/archive/ABC123"):     "Inbox",
		filepath.FromSlash("/archive/A1"):         "Personal",
		filepath.FromSlash("/archive/A1.ACT/F1"):  "Inbox",
		filepath.FromSlash("/archive/A1.ACT/BAD"): "..",
		filepath.FromSlash("/archive/A1.ACT/NIL"): "",
	})

	tests := []struct {
		name string
		rel  string
		want string
	}{
		{"partially mapped", "ABC123/DEF456/msg1.msg", "Inbox/DEF456/msg1.eml"},
		{"fully mapped", "A1.ACT/F1.FLD/0001.msg", "Personal/Inbox/0001.eml"},
		{"unmapped kept verbatim", "ZZZ.ACT/YYY.FLD/0002.MSG", "ZZZ.ACT/YYY.FLD/0002.eml"},
		{"top level message", "loose.msg", "loose.eml"},
		{"unsafe name ignored", "A1.ACT/BAD.FLD/m.msg", "Personal/BAD.FLD/m.eml"},
		{"empty name ignored", "A1.ACT/NIL.FLD/m.msg", "Personal/NIL.FLD/m.eml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveOutputPath(filepath.FromSlash(tt.rel), names, root)
			if filepath.ToSlash(got) != tt.want {
				t.Errorf("ResolveOutputPath(%q) = %q, want %q", tt.rel, got, tt.want)
			}
		})
	}
}

func TestResolveOutputPath_Deterministic(t *testing.T) {
	names := nameMapOf(map[string]string{"/r/A": "Alpha"})
	first := ResolveOutputPath("A.ACT/x.msg", names, "/r")
	for i := 0; i < 10; i++ {
		if got := ResolveOutputPath("A.ACT/x.msg", names, "/r"); got != first {
			t.Fatalf("run %d: got %q, want %q", i, got, first)
		}
	}
}

func TestResolveOutputPath_NilMap(t *testing.T) {
	got := ResolveOutputPath(filepath.FromSlash("A.ACT/x.msg"), nil, "/r")
	if filepath.ToSlash(got) != "A.ACT/x.eml" {
		t.Errorf("got %q", got)
	}
}

func TestResolveOutputPath_WithBuiltMap(t *testing.T) {
	a := testutil.NewArchive(t)
	a.Account("A1.ACT", testutil.AccountDescriptor("Personal"))
	a.Folder("A1.ACT/F1.FLD", testutil.FolderDescriptor("Inbox"))
	a.Message("A1.ACT/F1.FLD/00000001.MSG", testutil.PlainMessage("hi"))

	m, err := BuildNameMap(a.Root, &Decoder{})
	if err != nil {
		t.Fatalf("BuildNameMap: %v", err)
	}
	files, err := DiscoverMessages(a.Root, nil)
	if err != nil {
		t.Fatalf("DiscoverMessages: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("got %d files, want 1", len(files))
	}
	got := ResolveOutputPath(files[0].RelPath, m, a.Root)
	if filepath.ToSlash(got) != "Personal/Inbox/00000001.eml" {
		t.Errorf("got %q", got)
	}
}

func TestStripExt(t *testing.T) {
	tests := []struct{ in, want string }{
		{"A1.ACT", "A1"},
		{"/x/y/F1.FLD", "/x/y/F1"},
		{"noext", "noext"},
		{".hidden", ".hidden"},
		{"a.b.c", "a.b"},
	}
	for _, tt := range tests {
		if got := stripExt(tt.in); got != tt.want {
			t.Errorf("stripExt(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
