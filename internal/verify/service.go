// Package verify implements the manual review workflow: approving, rejecting
// and correcting records the pipeline flagged for review. Every action lands
// in the audit log.
package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"visadocs/constants"
	"visadocs/internal/drive"
	"visadocs/internal/entity"
	"visadocs/internal/repository"
)

// Service applies review decisions to document records and, where it makes
// sense, to the folder state machine.
type Service struct {
	logger  *slog.Logger
	repo    *repository.Store
	files   drive.FileStore
	folders drive.Folders
}

func NewService(logger *slog.Logger, repo *repository.Store, files drive.FileStore, folders drive.Folders) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger, repo: repo, files: files, folders: folders}
}

// Approve marks the record verified and Passed, then moves the file out of
// the review folder. The folder move is best effort; the database is the
// source of truth and the reconciliation pass agrees with Passed.
func (s *Service) Approve(ctx context.Context, documentID, reviewer, notes string) error {
	uow, err := s.repo.Begin(ctx)
	if err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.UpdateVerification(ctx, documentID, repository.VerificationUpdate{
		Status:           constants.VerificationVerified,
		VerifiedBy:       reviewer,
		Notes:            notes,
		ComplianceStatus: constants.StatusPassed,
	}); err != nil {
		return err
	}
	if err := uow.AppendAudit(ctx, documentID, entity.AuditVerificationApproved, reviewer, map[string]string{
		"notes": notes,
	}); err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return err
	}

	if err := s.files.Move(ctx, documentFileID(documentID), s.folders.NeedsReview, s.folders.Verified); err != nil {
		s.logger.Warn("verify.approve.move_failed", "document_id", documentID, "error", err)
	}
	s.logger.Info("verify.approved", "document_id", documentID, "reviewer", reviewer)
	return nil
}

// RejectAndReprocess marks the record for reprocessing and requeues the
// source file into Incoming so the next poll cycle runs it again.
func (s *Service) RejectAndReprocess(ctx context.Context, documentID, reviewer, reason string) error {
	uow, err := s.repo.Begin(ctx)
	if err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.UpdateVerification(ctx, documentID, repository.VerificationUpdate{
		Status:     constants.VerificationReprocess,
		VerifiedBy: reviewer,
		Notes:      reason,
	}); err != nil {
		return err
	}
	if err := uow.AppendAudit(ctx, documentID, entity.AuditVerificationRejected, reviewer, map[string]string{
		"reason": reason,
	}); err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return err
	}

	if err := s.files.Move(ctx, documentFileID(documentID), s.folders.NeedsReview, s.folders.Incoming); err != nil {
		return fmt.Errorf("requeue for reprocessing: %w", err)
	}
	s.logger.Info("verify.rejected", "document_id", documentID, "reviewer", reviewer)
	return nil
}

// Correct merges reviewer-supplied field values into the stored analysis and
// marks the record manually corrected. The original values go into the audit
// trail, not the document row.
func (s *Service) Correct(ctx context.Context, documentID, reviewer string, corrections map[string]any, notes string) error {
	if len(corrections) == 0 {
		return fmt.Errorf("no corrections supplied")
	}

	doc, err := s.repo.GetDocumentByDocumentID(ctx, documentID)
	if err != nil {
		return err
	}

	merged, err := mergeAnalysis(doc.Analysis, corrections)
	if err != nil {
		return fmt.Errorf("merge corrections: %w", err)
	}

	uow, err := s.repo.Begin(ctx)
	if err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.UpdateVerification(ctx, documentID, repository.VerificationUpdate{
		Status:     constants.VerificationCorrected,
		VerifiedBy: reviewer,
		Notes:      notes,
		Analysis:   merged,
	}); err != nil {
		return err
	}
	if err := uow.AppendAudit(ctx, documentID, entity.AuditVerificationCorrected, reviewer, map[string]any{
		"corrections": corrections,
		"notes":       notes,
	}); err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return err
	}

	s.logger.Info("verify.corrected",
		"document_id", documentID,
		"reviewer", reviewer,
		"fields", len(corrections),
	)
	return nil
}

// mergeAnalysis overlays corrections onto the stored payload's extracted_data
// object, creating it when the original analysis was empty or malformed.
func mergeAnalysis(stored json.RawMessage, corrections map[string]any) (json.RawMessage, error) {
	payload := map[string]any{}
	if len(stored) > 0 {
		if err := json.Unmarshal(stored, &payload); err != nil {
			payload = map[string]any{}
		}
	}

	extracted, _ := payload["extracted_data"].(map[string]any)
	if extracted == nil {
		extracted = map[string]any{}
	}
	for k, v := range corrections {
		extracted[k] = v
	}
	payload["extracted_data"] = extracted

	return json.Marshal(payload)
}

// documentFileID strips the member suffix from a composite archive identity;
// folder moves operate on the container file.
func documentFileID(documentID string) string {
	for i := 0; i < len(documentID); i++ {
		if documentID[i] == ':' {
			return documentID[:i]
		}
	}
	return documentID
}
