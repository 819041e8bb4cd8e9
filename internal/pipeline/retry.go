package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"

	"visadocs/constants"
	"visadocs/internal/entity"
	"visadocs/internal/intelligence"
)

// attemptState is the retry machine: a document is analyzed once on the first
// pass and at most once more with forced OCR.
type attemptState int

const (
	firstPass attemptState = iota
	retriedWithForcedOCR
)

func (s attemptState) String() string {
	if s == retriedWithForcedOCR {
		return "retried_with_forced_ocr"
	}
	return "first_pass"
}

// Outcome is one extraction+analysis result the controller arbitrates over.
type Outcome struct {
	Text     string
	OCR      *entity.OCRMetadata
	Analysis *intelligence.Analysis
}

// Analyzer is the slice of the intelligence client the controller needs.
// Classification is deliberately not re-run on retry.
type Analyzer interface {
	Analyze(ctx context.Context, text, visaCategory, documentType string) (*intelligence.Analysis, error)
}

// RetryController re-runs extraction with forced OCR when a first-pass
// analysis scored poorly without OCR having been tried, and keeps whichever
// outcome scores higher. Ties go to the retry, whose text came through the
// more thorough path.
type RetryController struct {
	extract Extractor
	analyze Analyzer
	logger  *slog.Logger
}

func NewRetryController(extract Extractor, analyze Analyzer, logger *slog.Logger) *RetryController {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryController{extract: extract, analyze: analyze, logger: logger}
}

// Resolve returns the outcome to persist. The original outcome is returned
// unchanged unless the retry fires and scores at least as high.
func (r *RetryController) Resolve(ctx context.Context, path string, first Outcome, visaCategory, documentType string) Outcome {
	state := firstPass
	if !r.shouldRetry(path, first) {
		return first
	}

	state = retriedWithForcedOCR
	r.logger.Info("retry.forced_ocr",
		"path", filepath.Base(path),
		"state", state,
		"first_score", first.Analysis.CompletenessScore,
	)

	res := r.extract.Extract(ctx, path, true)
	if res.Text == "" {
		r.logger.Warn("retry.extraction_empty", "path", filepath.Base(path))
		return first
	}

	analysis, err := r.analyze.Analyze(ctx, res.Text, visaCategory, documentType)
	if err != nil || analysis == nil {
		r.logger.Error("retry.analysis_failed", "path", filepath.Base(path), "error", err)
		return first
	}

	if analysis.CompletenessScore < first.Analysis.CompletenessScore {
		r.logger.Info("retry.kept_original",
			"first_score", first.Analysis.CompletenessScore,
			"retry_score", analysis.CompletenessScore,
		)
		return first
	}

	r.logger.Info("retry.adopted",
		"first_score", first.Analysis.CompletenessScore,
		"retry_score", analysis.CompletenessScore,
	)
	return Outcome{Text: res.Text, OCR: res.OCR, Analysis: analysis}
}

// shouldRetry fires only when the score is low, OCR was not already part of
// the first pass, and the source is a renderable PDF. Images go through OCR
// on the first pass anyway, and no other format has a render path for the
// forced OCR to improve on.
func (r *RetryController) shouldRetry(path string, first Outcome) bool {
	if first.Analysis == nil {
		return false
	}
	if first.Analysis.CompletenessScore >= constants.RetryScoreThreshold {
		return false
	}
	if first.OCR != nil && first.OCR.OCRUsed {
		return false
	}
	return constants.MapExtToFormat(filepath.Ext(path)) == constants.PDF
}
