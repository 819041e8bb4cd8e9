// Package extract turns a downloaded document into text, deciding between
// direct extraction and image-based OCR through the document-intelligence
// OCR capability.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"

	"visadocs/constants"
	"visadocs/internal/entity"
	"visadocs/internal/intelligence"
)

// OCRCapability is the slice of the intelligence adapter the engine needs.
type OCRCapability interface {
	OCR(ctx context.Context, imagePaths []string) (*intelligence.OCRResult, error)
}

// Config for the extraction engine.
type Config struct {
	Pdftoppm string // binary name or absolute path; if empty -> "pdftoppm"
	DPI      int    // rasterization DPI for scanned pages, default 200
	MaxPages int    // pages rendered for OCR, default constants.MaxOCRPages
	WorkDir  string // scratch space for rendered pages; "" -> system temp
}

// Result of one extraction attempt. OCR is non-nil only when the OCR path ran.
type Result struct {
	Text string
	OCR  *entity.OCRMetadata
}

// Engine implements extraction with OCR fallback. Extraction is never fatal
// to the caller: every failure is logged and mapped to an empty Result.
type Engine struct {
	cfg     Config
	ocr     OCRCapability
	runner  Runner
	pdfText func(path string) (string, error)
	logger  *slog.Logger
}

func NewEngine(cfg Config, ocr OCRCapability, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 200
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = constants.MaxOCRPages
	}
	return &Engine{
		cfg:     cfg,
		ocr:     ocr,
		runner:  execRunner{logger: logger},
		pdfText: extractPDFText,
		logger:  logger,
	}
}

// Extract returns the text of the document at path. Non-image files get a
// direct extraction first; OCR runs when forced, when direct extraction comes
// back empty, or when the trimmed text is under constants.DirectTextMinChars
// (a mostly-empty extraction usually means a scanned, non-text-native page).
// Native images go straight to OCR.
func (e *Engine) Extract(ctx context.Context, path string, forceOCR bool) Result {
	format := constants.MapExtToFormat(filepath.Ext(path))

	if format == constants.IMAGE {
		return e.ocrImages(ctx, []string{path})
	}

	var text string
	if !forceOCR {
		var err error
		text, err = e.extractDirect(path, format)
		if err != nil {
			e.logger.Error("extract.direct.failed", "path", path, "format", format, "error", err)
			text = ""
		}
	}

	trimmed := strings.TrimSpace(text)
	if forceOCR || len(trimmed) < constants.DirectTextMinChars {
		if format != constants.PDF {
			// Only PDFs can be rendered for OCR; keep whatever direct
			// extraction produced.
			if forceOCR {
				e.logger.Warn("extract.ocr.unsupported_format", "path", path, "format", format)
			}
			return Result{Text: text}
		}
		reason := "forced"
		if !forceOCR {
			reason = fmt.Sprintf("insufficient text (%d chars)", len(trimmed))
		}
		e.logger.Info("extract.ocr.fallback", "path", filepath.Base(path), "reason", reason)

		pages, cleanup, err := e.renderPDFPages(ctx, path)
		if err != nil {
			e.logger.Error("extract.render.failed", "path", path, "error", err)
			return Result{Text: text}
		}
		defer cleanup()
		return e.ocrImages(ctx, pages)
	}

	return Result{Text: text}
}

// ocrImages sends page images to the OCR capability and unwraps the result.
// An unstructured answer is wrapped with default confidence; a failed call
// yields empty text with zero confidence so the record surfaces for review.
func (e *Engine) ocrImages(ctx context.Context, paths []string) Result {
	res, err := e.ocr.OCR(ctx, paths)
	if err != nil || res == nil {
		e.logger.Error("extract.ocr.failed", "pages", len(paths), "error", err)
		meta := &entity.OCRMetadata{OCRUsed: true, TextClarity: "poor"}
		if err != nil {
			meta.QualityIssues = []string{err.Error()}
		}
		return Result{Text: "", OCR: meta}
	}

	if !res.Structured {
		return Result{
			Text: res.TranscribedText,
			OCR: &entity.OCRMetadata{
				OCRConfidence: constants.DefaultOCRConfidence,
				OCRUsed:       true,
			},
		}
	}
	return Result{
		Text: res.TranscribedText,
		OCR: &entity.OCRMetadata{
			OCRConfidence: res.OCRConfidence,
			QualityIssues: res.QualityIssues,
			TextClarity:   res.TextClarity,
			OCRUsed:       true,
		},
	}
}

func (e *Engine) extractDirect(path, format string) (text string, err error) {
	switch format {
	case constants.PDF:
		return e.pdfText(path)
	case constants.DOCX:
		return extractDocxText(path)
	case constants.TXT:
		b, err := os.ReadFile(path)
		return string(b), err
	}
	return "", fmt.Errorf("unsupported format: %q", format)
}

func extractPDFText(path string) (text string, err error) {
	// The pdf library panics on some malformed files; contain that here.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parse panic: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, _ := page.GetPlainText(nil)
		b.WriteString(pageText)
	}
	return b.String(), nil
}

func extractDocxText(path string) (string, error) {
	d, err := docx.ReadDocxFile(path)
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer d.Close()
	return d.Editable().GetContent(), nil
}
