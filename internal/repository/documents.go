package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"visadocs/constants"
	"visadocs/internal/common"
	"visadocs/internal/entity"
)

// UpsertDocumentParams carries everything one processing pass produced.
type UpsertDocumentParams struct {
	DocumentID        string
	FileName          string // namespaced `{applicant}/{name}` when applicable
	ApplicantID       *int64
	DocumentType      string
	VisaCategory      string
	ProcessingStage   string
	CompletenessScore int
	ConfidenceScore   *int
	FieldConfidence   map[string]int
	OCRMetadata       *entity.OCRMetadata
	ExpiryDate        *time.Time
	Analysis          json.RawMessage
	UploadDate        time.Time
}

// DeriveComplianceStatus maps a completeness score to the stored status.
func DeriveComplianceStatus(completenessScore int) string {
	if completenessScore >= constants.PassedCompletenessThreshold {
		return constants.StatusPassed
	}
	return constants.StatusNeedsReview
}

// DeriveVerificationStatus maps confidence to verified/pending. A document
// without a confidence score is treated as fully confident.
func DeriveVerificationStatus(confidenceScore *int) constants.VerificationStatus {
	conf := 100
	if confidenceScore != nil {
		conf = *confidenceScore
	}
	if conf >= constants.VerifiedConfidenceThreshold {
		return constants.VerificationVerified
	}
	return constants.VerificationPending
}

var documentColumns = []string{
	"id", "document_id", "applicant_id", "file_name", "document_type",
	"visa_category", "status", "processing_stage", "completeness_score",
	"confidence_score", "field_confidence", "ocr_metadata",
	"verification_status", "verified_by", "verified_at", "verification_notes",
	"expiry_date", "ai_analysis", "version",
	"upload_date", "created_at", "updated_at",
}

// UpsertDocument creates or updates the record identified by p.FileName.
// Reprocessing updates in place and bumps the version counter; a record is
// never duplicated for the same identity.
func (q *queries) UpsertDocument(ctx context.Context, p UpsertDocumentParams) (*entity.Document, error) {
	existing, err := q.GetDocumentByFileName(ctx, p.FileName)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	status := DeriveComplianceStatus(p.CompletenessScore)
	verification := DeriveVerificationStatus(p.ConfidenceScore)

	fieldConf, err := marshalNullable(p.FieldConfidence)
	if err != nil {
		return nil, fmt.Errorf("marshal field confidence: %w", err)
	}
	ocrMeta, err := marshalNullable(p.OCRMetadata)
	if err != nil {
		return nil, fmt.Errorf("marshal ocr metadata: %w", err)
	}
	var analysis any
	if len(p.Analysis) > 0 {
		analysis = string(p.Analysis)
	}

	if existing != nil {
		update := q.sb.Update("documents").
			Set("document_id", p.DocumentID).
			Set("document_type", p.DocumentType).
			Set("visa_category", p.VisaCategory).
			Set("status", status).
			Set("processing_stage", p.ProcessingStage).
			Set("completeness_score", p.CompletenessScore).
			Set("confidence_score", nullableInt(p.ConfidenceScore)).
			Set("field_confidence", fieldConf).
			Set("ocr_metadata", ocrMeta).
			Set("verification_status", string(verification)).
			Set("expiry_date", nullableTime(p.ExpiryDate)).
			Set("ai_analysis", analysis).
			Set("version", existing.Version+1).
			Set("upload_date", p.UploadDate).
			Set("updated_at", time.Now()).
			Where(sq.Eq{"id": existing.ID})
		if p.ApplicantID != nil {
			update = update.Set("applicant_id", *p.ApplicantID)
		}
		query, args, err := update.ToSql()
		if err != nil {
			return nil, err
		}
		if _, err := q.db.ExecContext(ctx, query, args...); err != nil {
			q.logger.Error("document update failed", "file_name", p.FileName, "error", err)
			return nil, common.WrapError(common.ErrPersistence, err.Error())
		}
		q.logger.Info("document updated", "file_name", p.FileName, "version", existing.Version+1)
		return q.GetDocumentByFileName(ctx, p.FileName)
	}

	insert := q.sb.Insert("documents").
		Columns("document_id", "applicant_id", "file_name", "document_type",
			"visa_category", "status", "processing_stage", "completeness_score",
			"confidence_score", "field_confidence", "ocr_metadata",
			"verification_status", "expiry_date", "ai_analysis", "version",
			"upload_date").
		Values(p.DocumentID, nullableInt64(p.ApplicantID), p.FileName,
			p.DocumentType, p.VisaCategory, status, p.ProcessingStage,
			p.CompletenessScore, nullableInt(p.ConfidenceScore), fieldConf,
			ocrMeta, string(verification), nullableTime(p.ExpiryDate),
			analysis, 1, p.UploadDate)
	query, args, err := insert.ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := q.db.ExecContext(ctx, query, args...); err != nil {
		q.logger.Error("document insert failed", "file_name", p.FileName, "error", err)
		return nil, common.WrapError(common.ErrPersistence, err.Error())
	}
	q.logger.Info("document created", "file_name", p.FileName, "status", status)
	return q.GetDocumentByFileName(ctx, p.FileName)
}

// GetDocumentByFileName looks a record up by its namespaced identity.
func (q *queries) GetDocumentByFileName(ctx context.Context, fileName string) (*entity.Document, error) {
	query, args, err := q.sb.Select(documentColumns...).
		From("documents").
		Where(sq.Eq{"file_name": fileName}).
		ToSql()
	if err != nil {
		return nil, err
	}
	return q.scanDocument(q.db.QueryRowContext(ctx, query, args...))
}

// GetDocumentByDocumentID looks a record up by its source-file identifier.
func (q *queries) GetDocumentByDocumentID(ctx context.Context, documentID string) (*entity.Document, error) {
	query, args, err := q.sb.Select(documentColumns...).
		From("documents").
		Where(sq.Eq{"document_id": documentID}).
		ToSql()
	if err != nil {
		return nil, err
	}
	return q.scanDocument(q.db.QueryRowContext(ctx, query, args...))
}

// UpdateDocumentStatus forces the compliance status, used by the folder
// reconciliation pass.
func (q *queries) UpdateDocumentStatus(ctx context.Context, documentID, status string) error {
	query, args, err := q.sb.Update("documents").
		Set("status", status).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"document_id": documentID}).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := q.db.ExecContext(ctx, query, args...); err != nil {
		return common.WrapError(common.ErrPersistence, err.Error())
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (q *queries) scanDocument(row rowScanner) (*entity.Document, error) {
	var (
		d            entity.Document
		applicantID  sql.NullInt64
		docType      sql.NullString
		visaCategory sql.NullString
		status       sql.NullString
		stage        sql.NullString
		confidence   sql.NullInt64
		fieldConf    sql.NullString
		ocrMeta      sql.NullString
		verifiedBy   sql.NullString
		verifiedAt   sql.NullTime
		notes        sql.NullString
		expiry       sql.NullTime
		analysis     sql.NullString
		uploadDate   sql.NullTime
	)
	err := row.Scan(&d.ID, &d.DocumentID, &applicantID, &d.FileName, &docType,
		&visaCategory, &status, &stage, &d.CompletenessScore, &confidence,
		&fieldConf, &ocrMeta, &d.VerificationStatus, &verifiedBy, &verifiedAt,
		&notes, &expiry, &analysis, &d.Version, &uploadDate,
		&d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan document: %w", err)
	}

	if applicantID.Valid {
		d.ApplicantID = &applicantID.Int64
	}
	d.DocumentType = docType.String
	d.VisaCategory = visaCategory.String
	d.Status = status.String
	d.ProcessingStage = stage.String
	if confidence.Valid {
		v := int(confidence.Int64)
		d.ConfidenceScore = &v
	}
	if fieldConf.Valid && fieldConf.String != "" {
		if err := json.Unmarshal([]byte(fieldConf.String), &d.FieldConfidence); err != nil {
			q.logger.Warn("bad field_confidence payload", "file_name", d.FileName, "error", err)
		}
	}
	if ocrMeta.Valid && ocrMeta.String != "" {
		var m entity.OCRMetadata
		if err := json.Unmarshal([]byte(ocrMeta.String), &m); err != nil {
			q.logger.Warn("bad ocr_metadata payload", "file_name", d.FileName, "error", err)
		} else {
			d.OCRMetadata = &m
		}
	}
	if verifiedBy.Valid {
		d.VerifiedBy = &verifiedBy.String
	}
	if verifiedAt.Valid {
		d.VerifiedAt = &verifiedAt.Time
	}
	if notes.Valid {
		d.VerificationNotes = &notes.String
	}
	if expiry.Valid {
		d.ExpiryDate = &expiry.Time
	}
	if analysis.Valid && analysis.String != "" {
		d.Analysis = json.RawMessage(analysis.String)
	}
	if uploadDate.Valid {
		d.UploadDate = uploadDate.Time
	}
	return &d, nil
}

func marshalNullable(v any) (any, error) {
	switch t := v.(type) {
	case map[string]int:
		if t == nil {
			return nil, nil
		}
	case *entity.OCRMetadata:
		if t == nil {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func nullableInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableInt64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return *p
}
