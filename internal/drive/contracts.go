// Package drive is the boundary to the remote file store holding the intake
// folders (Incoming, Processing, Verified, NeedsReview).
package drive

import "context"

// File is one remote file listing entry.
type File struct {
	ID          string
	Name        string
	MimeType    string
	CreatedTime string
}

// FileStore lists, downloads and moves remote files between folders. Folders
// are identified purely by configured external identifiers; a file occupies
// exactly one folder at any observation point and changes folder only through
// Move. Nothing here locks against a second pipeline instance racing on the
// same folders.
type FileStore interface {
	List(ctx context.Context, folderID string) ([]File, error)
	Download(ctx context.Context, fileID, destPath string) error
	Move(ctx context.Context, fileID, fromFolderID, toFolderID string) error
}

// Folders holds the configured folder identifiers for the pipeline states.
type Folders struct {
	Incoming    string
	Processing  string
	Verified    string
	NeedsReview string
}
