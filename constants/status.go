package constants

// VerificationStatus is the lifecycle label of an extracted document record,
// distinct from its folder location.
type VerificationStatus string

// Stable values (store these exact strings in DB).
const (
	VerificationPending   VerificationStatus = "pending"
	VerificationVerified  VerificationStatus = "verified"
	VerificationRejected  VerificationStatus = "rejected"
	VerificationCorrected VerificationStatus = "manually_corrected"
	VerificationReprocess VerificationStatus = "reprocessing"
)

// ValidVerificationStatus reports whether s is one of the enumerated values.
func ValidVerificationStatus(s string) bool {
	switch VerificationStatus(s) {
	case VerificationPending, VerificationVerified, VerificationRejected,
		VerificationCorrected, VerificationReprocess:
		return true
	}
	return false
}

// Compliance status derived from the completeness score.
const (
	StatusPassed      = "Passed"
	StatusPartial     = "Partial"
	StatusFailed      = "Failed"
	StatusNeedsReview = "Needs Review"
)

// Processing stages recorded on the document row.
const (
	StageVerified         = "Verified"
	StageExtractionFailed = "Text Extraction Failed"
)

// Pipeline thresholds.
const (
	// DirectTextMinChars is the minimum trimmed length of directly extracted
	// text before the engine falls back to OCR.
	DirectTextMinChars = 200

	// MaxOCRPages caps how many pages are rendered for the OCR path.
	MaxOCRPages = 10

	// RetryScoreThreshold triggers the forced-OCR retry for non-OCR results.
	RetryScoreThreshold = 50

	// VerifiedConfidenceThreshold decides verified vs pending.
	VerifiedConfidenceThreshold = 70

	// PassedCompletenessThreshold decides Passed vs Needs Review.
	PassedCompletenessThreshold = 90

	// DefaultOCRConfidence is assumed when the OCR capability returns an
	// unstructured transcription.
	DefaultOCRConfidence = 50
)
