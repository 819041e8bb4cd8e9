package pipeline

import (
	"context"
	"errors"

	"visadocs/constants"
	"visadocs/internal/common"
)

// RecoverStuckFiles moves everything left in Processing back to Incoming.
// Runs at startup and before each cycle, so a crash mid-file means reprocess,
// never a lost document; the upsert makes the redo harmless.
func (p *Processor) RecoverStuckFiles(ctx context.Context) {
	listing, err := p.files.List(ctx, p.folders.Processing)
	if err != nil {
		p.log.Error("recover.list.failed", "error", err)
		return
	}

	moved := 0
	for _, f := range listing {
		if f.MimeType == constants.DriveFolderMimeType {
			continue
		}
		if err := p.files.Move(ctx, f.ID, p.folders.Processing, p.folders.Incoming); err != nil {
			p.log.Error("recover.move.failed", "name", f.Name, "id", f.ID, "error", err)
			continue
		}
		moved++
	}
	if moved > 0 {
		p.log.Info("recover.requeued", "count", moved)
	}
}

// SyncFolders reconciles database status with manual folder moves. A file in
// Verified forces Passed. A file in NeedsReview forces Needs Review unless the
// record already carries a review-tier status.
func (p *Processor) SyncFolders(ctx context.Context) {
	p.syncFolder(ctx, p.folders.Verified, "verified", func(status string) (string, bool) {
		if status == constants.StatusPassed {
			return "", false
		}
		return constants.StatusPassed, true
	})
	p.syncFolder(ctx, p.folders.NeedsReview, "needs_review", func(status string) (string, bool) {
		if status == constants.StatusNeedsReview || status == constants.StatusPartial {
			return "", false
		}
		return constants.StatusNeedsReview, true
	})
}

func (p *Processor) syncFolder(ctx context.Context, folderID, folderName string, reconcile func(status string) (string, bool)) {
	listing, err := p.files.List(ctx, folderID)
	if err != nil {
		p.log.Error("sync.list.failed", "folder", folderName, "error", err)
		return
	}

	updated := 0
	for _, f := range listing {
		if f.MimeType == constants.DriveFolderMimeType {
			continue
		}
		doc, err := p.repo.GetDocumentByDocumentID(ctx, f.ID)
		if errors.Is(err, common.ErrNotFound) {
			continue
		}
		if err != nil {
			p.log.Error("sync.lookup.failed", "name", f.Name, "error", err)
			continue
		}
		next, change := reconcile(doc.Status)
		if !change {
			continue
		}
		if err := p.repo.UpdateDocumentStatus(ctx, f.ID, next); err != nil {
			p.log.Error("sync.update.failed", "name", f.Name, "error", err)
			continue
		}
		p.log.Info("sync.status_forced",
			"file_name", doc.FileName,
			"folder", folderName,
			"from", doc.Status,
			"to", next,
		)
		updated++
	}
	if updated > 0 {
		p.log.Info("sync.folder.done", "folder", folderName, "updated", updated)
	}
}
