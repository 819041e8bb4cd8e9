package archive

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
)

func writeZip(t *testing.T, members map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Smith.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := zip.NewWriter(f)
	for name, content := range members {
		mw, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := mw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExpandFiltersPlatformMetadata(t *testing.T) {
	container := writeZip(t, map[string]string{
		"Smith/passport.pdf":           "pdf bytes",
		"Smith/._passport.pdf":         "resource fork",
		"__MACOSX/Smith/passport.pdf":  "finder junk",
		"Smith/.__hidden/._thumbs.png": "more junk",
	})

	entries, err := NewExpander(nil).Expand(container, t.TempDir())
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expand() returned %d entries, want 1: %+v", len(entries), entries)
	}
	if entries[0].Name != "passport.pdf" {
		t.Errorf("entry name = %q, want %q", entries[0].Name, "passport.pdf")
	}
	b, err := os.ReadFile(entries[0].Path)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "pdf bytes" {
		t.Errorf("entry content = %q, want %q", b, "pdf bytes")
	}
}

func TestExpandKeepsFirstOfCollidingMembers(t *testing.T) {
	// Flattening maps both members to doc.pdf; the first one wins.
	path := filepath.Join(t.TempDir(), "Smith.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := zip.NewWriter(f)
	for _, m := range []struct{ name, content string }{
		{"A/doc.pdf", "first copy"},
		{"B/doc.pdf", "second copy"},
	} {
		mw, err := w.Create(m.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := mw.Write([]byte(m.content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	entries, err := NewExpander(nil).Expand(path, t.TempDir())
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expand() returned %d entries, want 1: %+v", len(entries), entries)
	}
	b, err := os.ReadFile(entries[0].Path)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "first copy" {
		t.Errorf("entry content = %q, want the first member kept", b)
	}
}

func TestExpandFlattensHostilePaths(t *testing.T) {
	dest := t.TempDir()
	container := writeZip(t, map[string]string{
		"../../escape.txt": "should not escape",
	})

	entries, err := NewExpander(nil).Expand(container, dest)
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expand() returned %d entries, want 1", len(entries))
	}
	if filepath.Dir(entries[0].Path) != mustAbs(t, dest) {
		t.Errorf("member escaped destination: %s", entries[0].Path)
	}
}

func mustAbs(t *testing.T, p string) string {
	t.Helper()
	abs, err := filepath.Abs(p)
	if err != nil {
		t.Fatal(err)
	}
	return abs
}

func TestExpandRejectsUnknownContainer(t *testing.T) {
	if _, err := NewExpander(nil).Expand("docs.rar", t.TempDir()); err == nil {
		t.Fatal("Expand() accepted an unsupported container")
	}
}

func TestApplicantNameFromContainer(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Smith.zip", "Smith"},
		{"Jane Doe.tar.gz", "Jane Doe"},
		{"garcia.tgz", "garcia"},
		{"uploads/Smith.zip", "Smith"},
	}
	for _, tt := range tests {
		if got := ApplicantNameFromContainer(tt.in); got != tt.want {
			t.Errorf("ApplicantNameFromContainer(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
