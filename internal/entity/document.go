package entity

import (
	"encoding/json"
	"time"

	"visadocs/constants"
)

// Document is one processed immigration document. Identity is the namespaced
// FileName (`{applicant}/{name}` when an applicant context exists); DocumentID
// is the raw source-file identifier or a `{containerId}:{memberName}` composite
// for archive members.
type Document struct {
	ID                 int64
	DocumentID         string
	ApplicantID        *int64
	FileName           string
	DocumentType       string
	VisaCategory       string
	Status             string // compliance: Passed | Partial | Failed | Needs Review
	ProcessingStage    string
	CompletenessScore  int
	ConfidenceScore    *int
	FieldConfidence    map[string]int
	OCRMetadata        *OCRMetadata
	VerificationStatus constants.VerificationStatus
	VerifiedBy         *string
	VerifiedAt         *time.Time
	VerificationNotes  *string
	ExpiryDate         *time.Time
	Analysis           json.RawMessage
	Version            int
	UploadDate         time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// OCRMetadata captures quality information when the OCR path was taken.
// JSON keys match the stored analysis payloads.
type OCRMetadata struct {
	OCRConfidence int      `json:"ocr_confidence"`
	QualityIssues []string `json:"quality_issues,omitempty"`
	TextClarity   string   `json:"text_clarity,omitempty"`
	OCRUsed       bool     `json:"ocr_used"`
}
