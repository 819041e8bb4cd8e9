// Package intelligence is the boundary to the external document-analysis
// capability. Responses are validated and decoded into typed results here so
// the rest of the pipeline never digs through raw JSON.
package intelligence

import (
	"context"
	"encoding/json"
)

// Classification is the result of the classify call.
type Classification struct {
	DocumentType string  `json:"document_type"`
	VisaCategory string  `json:"visa_category"`
	Confidence   float64 `json:"confidence"`
	Summary      string  `json:"summary"`
}

// DateMap holds extracted dates keyed by free-form labels. Nested groupings
// (e.g. an "other_dates" object) are flattened into the top level on decode.
type DateMap map[string]string

func (d *DateMap) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := DateMap{}
	flattenDates(raw, out)
	*d = out
	return nil
}

func flattenDates(in map[string]any, out DateMap) {
	for k, v := range in {
		switch t := v.(type) {
		case string:
			out[k] = t
		case map[string]any:
			flattenDates(t, out)
		}
	}
}

// ExtractedData is the structured payload inside an analysis result.
type ExtractedData struct {
	Names            []string `json:"names"`
	Dates            DateMap  `json:"dates"`
	ReferenceNumbers []string `json:"reference_numbers"`
	HasSignature     bool     `json:"has_signature"`
	HasOfficialSeal  bool     `json:"has_official_seal"`
}

// Analysis is the result of verifying a document against visa-category
// requirements. Raw preserves the exact payload for persistence.
type Analysis struct {
	IsCorrectType     bool            `json:"is_correct_type"`
	ExtractedData     ExtractedData   `json:"extracted_data"`
	FieldConfidence   map[string]int  `json:"field_confidence"`
	ConfidenceScore   *int            `json:"confidence_score"`
	CompletenessScore int             `json:"completeness_score"`
	Findings          []string        `json:"findings"`
	MissingElements   []string        `json:"missing_elements"`
	ComplianceStatus  string          `json:"compliance_status"`
	Summary           string          `json:"summary"`
	Raw               json.RawMessage `json:"-"`
}

// OCRResult is the transcription of rendered page images. Structured is false
// when the capability answered with plain text instead of the assessment JSON;
// callers then apply default confidence.
type OCRResult struct {
	TranscribedText string   `json:"transcribed_text"`
	OCRConfidence   int      `json:"ocr_confidence"`
	QualityIssues   []string `json:"quality_issues"`
	TextClarity     string   `json:"text_clarity"`
	Structured      bool     `json:"-"`
}

// DocumentIntelligence is the adapter interface the pipeline depends on.
// A nil result with a non-nil error signals a failed call; callers log and
// abort the current file, they never retry here.
type DocumentIntelligence interface {
	Classify(ctx context.Context, text string) (*Classification, error)
	Analyze(ctx context.Context, text, visaCategory, documentType string) (*Analysis, error)
	OCR(ctx context.Context, imagePaths []string) (*OCRResult, error)
}
