package constants

import "strings"

// File formats for the extraction engine.
const (
	PDF     = "PDF"
	DOCX    = "DOCX"
	IMAGE   = "IMAGE"
	TXT     = "TXT"
	ARCHIVE = "ARCHIVE"
)

// AllowedExtensions holds the file extensions the intake pipeline accepts.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"docx": {},
	"txt":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"heic": {},
	"zip":  {},
	"tgz":  {},
	"gz":   {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat maps a normalized extension to a file format, or "".
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "docx":
		return DOCX
	case "txt":
		return TXT
	case "jpg", "jpeg", "png", "heic":
		return IMAGE
	case "zip", "tgz", "gz":
		return ARCHIVE
	}
	return ""
}

// IsArchiveName reports whether the file name looks like a supported container.
func IsArchiveName(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".zip") ||
		strings.HasSuffix(lower, ".tgz") ||
		strings.HasSuffix(lower, ".tar.gz")
}

// DriveFolderMimeType marks sub-folder entries in remote listings. The pipeline
// does not recurse into them.
const DriveFolderMimeType = "application/vnd.google-apps.folder"
