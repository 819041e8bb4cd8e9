// Package pipeline is the intake orchestrator: it polls the Incoming folder,
// walks each file through extraction, classification, analysis and
// persistence, and advances it through the folder state machine. Files are
// processed strictly one at a time, in listing order, with per-file failure
// isolation.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"visadocs/constants"
	"visadocs/internal/archive"
	"visadocs/internal/drive"
	"visadocs/internal/expiry"
	"visadocs/internal/extract"
	"visadocs/internal/intelligence"
	"visadocs/internal/repository"
)

// Extractor is the slice of the extraction engine the pipeline depends on.
type Extractor interface {
	Extract(ctx context.Context, path string, forceOCR bool) extract.Result
}

// Deps wires the orchestrator together.
type Deps struct {
	Logger     *slog.Logger
	Files      drive.FileStore
	Folders    drive.Folders
	Repo       *repository.Store
	Extractor  Extractor
	Intel      intelligence.DocumentIntelligence
	Expander   Expander
	Resolver   *expiry.Resolver
	Notifier   Notifier
	WorkDir    string
	MaxRecords int // retention cap passed to cleanup each cycle
}

// Expander is the slice of the archive package the pipeline depends on.
type Expander interface {
	Expand(containerPath, destDir string) ([]archive.Entry, error)
}

type Processor struct {
	log        *slog.Logger
	files      drive.FileStore
	folders    drive.Folders
	repo       *repository.Store
	extract    Extractor
	intel      intelligence.DocumentIntelligence
	retry      *RetryController
	expander   Expander
	resolver   *expiry.Resolver
	notifier   Notifier
	workDir    string
	maxRecords int
}

func NewProcessor(d Deps) *Processor {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Resolver == nil {
		d.Resolver = expiry.NewResolver(d.Logger)
	}
	if d.Notifier == nil {
		d.Notifier = &LogNotifier{Logger: d.Logger}
	}
	if d.WorkDir == "" {
		d.WorkDir = os.TempDir()
	}
	return &Processor{
		log:        d.Logger,
		files:      d.Files,
		folders:    d.Folders,
		repo:       d.Repo,
		extract:    d.Extractor,
		intel:      d.Intel,
		retry:      NewRetryController(d.Extractor, d.Intel, d.Logger),
		expander:   d.Expander,
		resolver:   d.Resolver,
		notifier:   d.Notifier,
		workDir:    d.WorkDir,
		maxRecords: d.MaxRecords,
	}
}

// RunCycle processes the current Incoming listing to completion. A listing
// failure aborts the cycle; a single file failure is logged and the loop
// moves on to the next file.
func (p *Processor) RunCycle(ctx context.Context) {
	p.log.Info("pipeline.cycle.start")

	if err := p.repo.Cleanup(ctx, p.maxRecords); err != nil {
		p.log.Error("pipeline.cleanup.failed", "error", err)
	}

	listing, err := p.files.List(ctx, p.folders.Incoming)
	if err != nil {
		p.log.Error("pipeline.list.failed", "folder", "incoming", "error", err)
		return
	}

	var files []drive.File
	subFolders := 0
	for _, f := range listing {
		if f.MimeType == constants.DriveFolderMimeType {
			subFolders++
			continue
		}
		files = append(files, f)
	}
	if subFolders > 0 {
		// Recursive scanning of the incoming location is unsupported.
		p.log.Warn("pipeline.skipping_subfolders", "count", subFolders)
	}
	if len(files) == 0 {
		p.log.Info("pipeline.cycle.end", "files", 0)
		return
	}

	p.log.Info("pipeline.files_found", "count", len(files))
	for _, f := range files {
		if err := p.processFile(ctx, f); err != nil {
			p.log.Error("pipeline.file.failed", "name", f.Name, "id", f.ID, "error", err)
		}
	}
	p.log.Info("pipeline.cycle.end", "files", len(files))
}

// processFile moves one file into Processing, downloads it and dispatches to
// the archive or single-document path.
func (p *Processor) processFile(ctx context.Context, f drive.File) error {
	p.log.Info("pipeline.file.start", "name", f.Name, "id", f.ID)

	if err := p.files.Move(ctx, f.ID, p.folders.Incoming, p.folders.Processing); err != nil {
		return fmt.Errorf("move to processing: %w", err)
	}

	tempPath := filepath.Join(p.workDir, "tmp_"+f.Name)
	if err := p.files.Download(ctx, f.ID, tempPath); err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer func() {
		if err := os.Remove(tempPath); err != nil && !os.IsNotExist(err) {
			p.log.Warn("pipeline.temp_cleanup_failed", "path", tempPath, "error", err)
		}
	}()

	if constants.IsArchiveName(f.Name) {
		return p.processArchive(ctx, f, tempPath)
	}

	uow, err := p.repo.Begin(ctx)
	if err != nil {
		return err
	}
	defer uow.Rollback()

	out, err := p.processSingleDocument(ctx, uow, singleInput{
		DocumentID: f.ID,
		FileName:   f.Name,
		Path:       tempPath,
	})
	if err != nil {
		return err
	}
	if !out.Recorded {
		// No record was written (unsupported type or failed
		// classification/analysis); the file stays in Processing for the
		// next recovery sweep.
		return nil
	}
	if err := uow.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	dest := p.folders.Verified
	destName := "verified"
	if out.Status != constants.StatusPassed {
		dest = p.folders.NeedsReview
		destName = "needs_review"
	}
	if err := p.files.Move(ctx, f.ID, p.folders.Processing, dest); err != nil {
		return fmt.Errorf("move to %s: %w", destName, err)
	}
	p.notifier.NotifyProcessed(ctx, f.Name, out.Status, out.VisaCategory, out.Score)
	p.log.Info("pipeline.file.done", "name", f.Name, "status", out.Status, "folder", destName)
	return nil
}

// singleInput identifies one document for the single-document path.
type singleInput struct {
	DocumentID    string // source-file id, or `{containerId}:{memberName}`
	FileName      string
	Path          string
	ApplicantName string
	ApplicantID   *int64
}

// outcome reports what the single-document path did.
type outcome struct {
	Recorded     bool
	Status       string
	VisaCategory string
	Score        int
}

// processSingleDocument runs extraction, classification, analysis, the
// low-confidence retry and persistence for one document. Only persistence
// errors are returned; everything else resolves to a logged outcome.
func (p *Processor) processSingleDocument(ctx context.Context, uow *repository.UnitOfWork, in singleInput) (outcome, error) {
	format := constants.MapExtToFormat(filepath.Ext(in.FileName))
	switch format {
	case constants.PDF, constants.DOCX, constants.TXT, constants.IMAGE:
	default:
		p.log.Warn("pipeline.unsupported_type", "name", in.FileName)
		return outcome{}, nil
	}

	uniqueName := in.FileName
	if in.ApplicantName != "" {
		uniqueName = in.ApplicantName + "/" + in.FileName
	}

	res := p.extract.Extract(ctx, in.Path, false)
	if strings.TrimSpace(res.Text) == "" {
		// Persist the failure so it is visible on the dashboard instead of
		// silently vanishing.
		p.log.Warn("pipeline.extraction_empty", "name", in.FileName)
		doc, err := uow.UpsertDocument(ctx, repository.UpsertDocumentParams{
			DocumentID:        in.DocumentID,
			FileName:          uniqueName,
			ApplicantID:       in.ApplicantID,
			DocumentType:      "Unknown",
			VisaCategory:      "Unknown",
			ProcessingStage:   constants.StageExtractionFailed,
			CompletenessScore: 0,
			OCRMetadata:       res.OCR,
			Analysis:          json.RawMessage(`{"error":"OCR/Text extraction failed. Manual review required."}`),
			UploadDate:        time.Now(),
		})
		if err != nil {
			return outcome{}, err
		}
		return outcome{Recorded: true, Status: doc.Status}, nil
	}

	classification, err := p.intel.Classify(ctx, res.Text)
	if err != nil || classification == nil {
		p.log.Error("pipeline.classification_failed", "name", in.FileName, "error", err)
		return outcome{}, nil
	}

	analysis, err := p.intel.Analyze(ctx, res.Text, classification.VisaCategory, classification.DocumentType)
	if err != nil || analysis == nil {
		p.log.Error("pipeline.analysis_failed", "name", in.FileName, "error", err)
		return outcome{}, nil
	}

	final := p.retry.Resolve(ctx, in.Path, Outcome{
		Text:     res.Text,
		OCR:      res.OCR,
		Analysis: analysis,
	}, classification.VisaCategory, classification.DocumentType)

	expiryDate := p.resolver.Resolve(final.Analysis.ExtractedData.Dates, classification.DocumentType)

	doc, err := uow.UpsertDocument(ctx, repository.UpsertDocumentParams{
		DocumentID:        in.DocumentID,
		FileName:          uniqueName,
		ApplicantID:       in.ApplicantID,
		DocumentType:      classification.DocumentType,
		VisaCategory:      classification.VisaCategory,
		ProcessingStage:   constants.StageVerified,
		CompletenessScore: final.Analysis.CompletenessScore,
		ConfidenceScore:   final.Analysis.ConfidenceScore,
		FieldConfidence:   final.Analysis.FieldConfidence,
		OCRMetadata:       final.OCR,
		ExpiryDate:        expiryDate,
		Analysis:          final.Analysis.Raw,
		UploadDate:        time.Now(),
	})
	if err != nil {
		return outcome{}, err
	}

	p.log.Info("pipeline.document_recorded",
		"file_name", uniqueName,
		"document_type", classification.DocumentType,
		"visa_category", classification.VisaCategory,
		"completeness", final.Analysis.CompletenessScore,
		"status", doc.Status,
		"version", doc.Version,
	)
	return outcome{
		Recorded:     true,
		Status:       doc.Status,
		VisaCategory: classification.VisaCategory,
		Score:        final.Analysis.CompletenessScore,
	}, nil
}
