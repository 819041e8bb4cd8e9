package entity

import (
	"encoding/json"
	"time"
)

// AuditEntry is an immutable record of a verification action.
type AuditEntry struct {
	ID          int64
	DocumentID  string
	Action      string
	PerformedBy string
	Details     json.RawMessage
	Timestamp   time.Time
}

// Audit actions written by the verification workflow.
const (
	AuditVerificationApproved  = "verification_approved"
	AuditVerificationRejected  = "verification_rejected"
	AuditVerificationCorrected = "verification_corrected"
)
