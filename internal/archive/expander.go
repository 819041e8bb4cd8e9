// Package archive expands uploaded containers (ZIP, tar.gz) into individual
// member files for the single-document pipeline.
package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Entry is one extracted member file.
type Entry struct {
	Name string // base file name, used in the composite identity
	Path string // absolute path inside the extraction directory
}

// Expander unpacks containers into a scratch directory.
type Expander struct {
	logger *slog.Logger
}

func NewExpander(logger *slog.Logger) *Expander {
	if logger == nil {
		logger = slog.Default()
	}
	return &Expander{logger: logger}
}

// ApplicantNameFromContainer infers the applicant from the container file name
// with the extension stripped.
func ApplicantNameFromContainer(containerName string) string {
	name := filepath.Base(containerName)
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".tar.gz") {
		return name[:len(name)-len(".tar.gz")]
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Expand unpacks the container at containerPath into destDir and returns the
// usable member entries. Platform metadata (`._*` files, `__MACOSX` paths) and
// directory entries are skipped. The caller owns destDir cleanup.
func (e *Expander) Expand(containerPath, destDir string) ([]Entry, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("create extraction dir: %w", err)
	}

	lower := strings.ToLower(containerPath)
	var (
		entries []Entry
		err     error
	)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		entries, err = e.expandZip(containerPath, destDir)
	case strings.HasSuffix(lower, ".tgz"), strings.HasSuffix(lower, ".tar.gz"):
		entries, err = e.expandTarGz(containerPath, destDir)
	default:
		return nil, fmt.Errorf("unsupported container: %s", filepath.Base(containerPath))
	}
	if err != nil {
		return nil, err
	}

	e.logger.Info("archive.expanded",
		"container", filepath.Base(containerPath),
		"entries", len(entries),
	)
	return entries, nil
}

func (e *Expander) expandZip(containerPath, destDir string) ([]Entry, error) {
	r, err := zip.OpenReader(containerPath)
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	var entries []Entry
	seen := make(map[string]struct{})
	for _, f := range r.File {
		if f.FileInfo().IsDir() || skipEntry(f.Name) {
			continue
		}
		base := memberBase(f.Name)
		if _, dup := seen[base]; dup {
			e.logger.Warn("archive.duplicate_member", "name", base, "member", f.Name)
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open zip member %s: %w", f.Name, err)
		}
		entry, err := e.writeMember(destDir, base, rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		seen[base] = struct{}{}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (e *Expander) expandTarGz(containerPath, destDir string) ([]Entry, error) {
	f, err := os.Open(containerPath)
	if err != nil {
		return nil, fmt.Errorf("open container: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("open gzip stream: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	var entries []Entry
	seen := make(map[string]struct{})
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read tar: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg || skipEntry(hdr.Name) {
			continue
		}
		base := memberBase(hdr.Name)
		if _, dup := seen[base]; dup {
			e.logger.Warn("archive.duplicate_member", "name", base, "member", hdr.Name)
			continue
		}
		entry, err := e.writeMember(destDir, base, tr)
		if err != nil {
			return nil, err
		}
		seen[base] = struct{}{}
		entries = append(entries, entry)
	}
	return entries, nil
}

// memberBase flattens a member path to its base name. Member paths are never
// trusted as-is, which also defuses path traversal in hostile archives.
// Flattening can collide member names from different subdirectories; the
// expand loops keep the first member and log the rest.
func memberBase(memberName string) string {
	return filepath.Base(filepath.FromSlash(memberName))
}

func (e *Expander) writeMember(destDir, base string, r io.Reader) (Entry, error) {
	dest := filepath.Join(destDir, base)

	out, err := os.Create(dest)
	if err != nil {
		return Entry{}, fmt.Errorf("create member %s: %w", base, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return Entry{}, fmt.Errorf("write member %s: %w", base, err)
	}
	if err := out.Close(); err != nil {
		return Entry{}, fmt.Errorf("close member %s: %w", base, err)
	}

	abs, err := filepath.Abs(dest)
	if err != nil {
		abs = dest
	}
	return Entry{Name: base, Path: abs}, nil
}

// skipEntry filters platform metadata out of the member list.
func skipEntry(name string) bool {
	if strings.Contains(name, "__MACOSX") {
		return true
	}
	return strings.HasPrefix(filepath.Base(filepath.FromSlash(name)), "._")
}
