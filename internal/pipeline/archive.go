package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"visadocs/internal/archive"
	"visadocs/internal/drive"
)

// processArchive expands a container and runs every member through the
// single-document path under one applicant and one transaction. A persistence
// failure aborts the remaining members; anything else is per-member and does
// not stop the batch. The container itself moves to Verified regardless of
// member outcomes, since per-member status lives in the database.
func (p *Processor) processArchive(ctx context.Context, f drive.File, containerPath string) error {
	applicantName := archive.ApplicantNameFromContainer(f.Name)
	p.log.Info("pipeline.archive.start", "container", f.Name, "applicant", applicantName)

	extractDir := filepath.Join(p.workDir, "tmp_extract_"+applicantName)
	entries, err := p.expander.Expand(containerPath, extractDir)
	defer func() {
		if err := os.RemoveAll(extractDir); err != nil {
			p.log.Warn("pipeline.archive.cleanup_failed", "dir", extractDir, "error", err)
		}
	}()
	if err != nil {
		// The container stays in Processing; the recovery sweep requeues it.
		return fmt.Errorf("expand %s: %w", f.Name, err)
	}
	if len(entries) == 0 {
		p.log.Warn("pipeline.archive.empty", "container", f.Name)
		return nil
	}

	uow, err := p.repo.Begin(ctx)
	if err != nil {
		return err
	}
	defer uow.Rollback()

	applicant, err := uow.GetOrCreateApplicant(ctx, applicantName)
	if err != nil {
		return err
	}

	recorded := 0
	for _, entry := range entries {
		out, err := p.processSingleDocument(ctx, uow, singleInput{
			DocumentID:    f.ID + ":" + entry.Name,
			FileName:      entry.Name,
			Path:          entry.Path,
			ApplicantName: applicantName,
			ApplicantID:   &applicant.ID,
		})
		if err != nil {
			return fmt.Errorf("archive member %s: %w", entry.Name, err)
		}
		if out.Recorded {
			recorded++
		}
	}
	if err := uow.Commit(); err != nil {
		return fmt.Errorf("commit archive batch: %w", err)
	}

	if err := p.files.Move(ctx, f.ID, p.folders.Processing, p.folders.Verified); err != nil {
		return fmt.Errorf("move container to verified: %w", err)
	}
	p.log.Info("pipeline.archive.done",
		"container", f.Name,
		"applicant", applicantName,
		"members", len(entries),
		"recorded", recorded,
	)
	return nil
}
