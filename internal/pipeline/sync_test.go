package pipeline

import (
	"context"
	"testing"
	"time"

	"visadocs/constants"
	"visadocs/internal/drive"
	"visadocs/internal/repository"
)

func TestRecoverStuckFilesRequeuesToIncoming(t *testing.T) {
	ctx := context.Background()
	files := newFakeFiles()
	files.add("folder-processing", drive.File{ID: "f1", Name: "stuck.pdf"}, []byte("pdf"))
	files.add("folder-processing", drive.File{ID: "d1", Name: "nested", MimeType: constants.DriveFolderMimeType}, nil)

	p, _ := newTestProcessor(t, files, &fakeExtractor{}, &fakeIntel{}, nil)

	p.RecoverStuckFiles(ctx)

	if got := files.folderOf("f1"); got != "folder-incoming" {
		t.Errorf("stuck file folder = %s, want folder-incoming", got)
	}
	if got := files.folderOf("d1"); got != "folder-processing" {
		t.Errorf("folder entry was moved to %s", got)
	}
}

func seedDocument(t *testing.T, store *repository.Store, documentID, fileName string, score int) {
	t.Helper()
	if _, err := store.UpsertDocument(context.Background(), repository.UpsertDocumentParams{
		DocumentID:        documentID,
		FileName:          fileName,
		ProcessingStage:   constants.StageVerified,
		CompletenessScore: score,
		UploadDate:        time.Now(),
	}); err != nil {
		t.Fatal(err)
	}
}

func TestSyncFoldersForcesPassedInVerified(t *testing.T) {
	ctx := context.Background()
	files := newFakeFiles()
	files.add("folder-verified", drive.File{ID: "f1", Name: "moved.pdf"}, nil)

	p, store := newTestProcessor(t, files, &fakeExtractor{}, &fakeIntel{}, nil)
	seedDocument(t, store, "f1", "moved.pdf", 40) // Needs Review in DB

	p.SyncFolders(ctx)

	doc, err := store.GetDocumentByDocumentID(ctx, "f1")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Status != constants.StatusPassed {
		t.Errorf("status = %q, want %q", doc.Status, constants.StatusPassed)
	}
}

func TestSyncFoldersForcesNeedsReviewUnlessReviewTier(t *testing.T) {
	ctx := context.Background()
	files := newFakeFiles()
	files.add("folder-needs-review", drive.File{ID: "f1", Name: "demoted.pdf"}, nil)
	files.add("folder-needs-review", drive.File{ID: "f2", Name: "partial.pdf"}, nil)

	p, store := newTestProcessor(t, files, &fakeExtractor{}, &fakeIntel{}, nil)
	seedDocument(t, store, "f1", "demoted.pdf", 95) // Passed in DB
	seedDocument(t, store, "f2", "partial.pdf", 95)
	if err := store.UpdateDocumentStatus(ctx, "f2", constants.StatusPartial); err != nil {
		t.Fatal(err)
	}

	p.SyncFolders(ctx)

	demoted, err := store.GetDocumentByDocumentID(ctx, "f1")
	if err != nil {
		t.Fatal(err)
	}
	if demoted.Status != constants.StatusNeedsReview {
		t.Errorf("demoted status = %q, want %q", demoted.Status, constants.StatusNeedsReview)
	}

	partial, err := store.GetDocumentByDocumentID(ctx, "f2")
	if err != nil {
		t.Fatal(err)
	}
	if partial.Status != constants.StatusPartial {
		t.Errorf("partial status = %q, want %q", partial.Status, constants.StatusPartial)
	}
}

func TestSyncFoldersIgnoresUnknownFiles(t *testing.T) {
	ctx := context.Background()
	files := newFakeFiles()
	files.add("folder-verified", drive.File{ID: "manual-upload", Name: "manual.pdf"}, nil)

	p, _ := newTestProcessor(t, files, &fakeExtractor{}, &fakeIntel{}, nil)

	// Must not panic or error-loop on files with no database record.
	p.SyncFolders(ctx)
}
