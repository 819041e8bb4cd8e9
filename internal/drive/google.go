package drive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// GoogleStore implements FileStore on the Google Drive v3 API using a service
// account.
type GoogleStore struct {
	svc    *gdrive.Service
	logger *slog.Logger
}

func NewGoogleStore(ctx context.Context, credentialsFile string, logger *slog.Logger) (*GoogleStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	svc, err := gdrive.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(gdrive.DriveScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &GoogleStore{svc: svc, logger: logger}, nil
}

// List returns the non-trashed files directly inside folderID, in the order
// the API returns them.
func (g *GoogleStore) List(ctx context.Context, folderID string) ([]File, error) {
	var files []File
	pageToken := ""
	for {
		call := g.svc.Files.List().
			Q(fmt.Sprintf("'%s' in parents and trashed = false", folderID)).
			Fields("nextPageToken, files(id, name, mimeType, createdTime)").
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		res, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("list folder %s: %w", folderID, err)
		}
		for _, f := range res.Files {
			files = append(files, File{
				ID:          f.Id,
				Name:        f.Name,
				MimeType:    f.MimeType,
				CreatedTime: f.CreatedTime,
			})
		}
		if res.NextPageToken == "" {
			break
		}
		pageToken = res.NextPageToken
	}
	return files, nil
}

// Download streams the file contents to destPath.
func (g *GoogleStore) Download(ctx context.Context, fileID, destPath string) error {
	res, err := g.svc.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return fmt.Errorf("download %s: %w", fileID, err)
	}
	defer res.Body.Close()

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", destPath, err)
	}
	if _, err := io.Copy(out, res.Body); err != nil {
		out.Close()
		return fmt.Errorf("write %s: %w", destPath, err)
	}
	return out.Close()
}

// Move reparents the file from one folder to another. The previous parents
// are read back first so a file that drifted into multiple parents still ends
// up only in the destination.
func (g *GoogleStore) Move(ctx context.Context, fileID, fromFolderID, toFolderID string) error {
	f, err := g.svc.Files.Get(fileID).Fields("parents").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get parents of %s: %w", fileID, err)
	}
	previous := strings.Join(f.Parents, ",")
	if previous == "" {
		previous = fromFolderID
	}

	_, err = g.svc.Files.Update(fileID, nil).
		AddParents(toFolderID).
		RemoveParents(previous).
		Fields("id, parents").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("move %s: %w", fileID, err)
	}
	g.logger.Debug("drive.move.ok", "file_id", fileID, "to", toFolderID)
	return nil
}
