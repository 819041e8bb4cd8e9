package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"

	"visadocs/constants"
	"visadocs/internal/archive"
	"visadocs/internal/drive"
	"visadocs/internal/entity"
	"visadocs/internal/extract"
	"visadocs/internal/intelligence"
	"visadocs/internal/repository"
)

// fakeFiles is an in-memory FileStore tracking folder membership.
type fakeFiles struct {
	mu      sync.Mutex
	loc     map[string]string // fileID -> folderID
	meta    map[string]drive.File
	content map[string][]byte
	listErr error
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{
		loc:     map[string]string{},
		meta:    map[string]drive.File{},
		content: map[string][]byte{},
	}
}

func (f *fakeFiles) add(folderID string, file drive.File, content []byte) {
	f.loc[file.ID] = folderID
	f.meta[file.ID] = file
	f.content[file.ID] = content
}

func (f *fakeFiles) List(ctx context.Context, folderID string) ([]drive.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []drive.File
	for id, folder := range f.loc {
		if folder == folderID {
			out = append(out, f.meta[id])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeFiles) Download(ctx context.Context, fileID, destPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.content[fileID]
	if !ok {
		return fmt.Errorf("unknown file %s", fileID)
	}
	return os.WriteFile(destPath, content, 0o644)
}

func (f *fakeFiles) Move(ctx context.Context, fileID, fromFolderID, toFolderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loc[fileID] != fromFolderID {
		return fmt.Errorf("file %s not in folder %s", fileID, fromFolderID)
	}
	f.loc[fileID] = toFolderID
	return nil
}

func (f *fakeFiles) folderOf(fileID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loc[fileID]
}

// fakeExtractor returns canned results keyed by the forceOCR flag.
type fakeExtractor struct {
	direct extract.Result
	forced extract.Result
	calls  []bool
}

func (f *fakeExtractor) Extract(ctx context.Context, path string, forceOCR bool) extract.Result {
	f.calls = append(f.calls, forceOCR)
	if forceOCR {
		return f.forced
	}
	return f.direct
}

// fakeIntel returns canned classification and a sequence of analyses.
type fakeIntel struct {
	classification *intelligence.Classification
	classifyErr    error
	analyses       []*intelligence.Analysis
	analyzeErr     error
	analyzeCalls   int
}

func (f *fakeIntel) Classify(ctx context.Context, text string) (*intelligence.Classification, error) {
	if f.classifyErr != nil {
		return nil, f.classifyErr
	}
	return f.classification, nil
}

func (f *fakeIntel) Analyze(ctx context.Context, text, visaCategory, documentType string) (*intelligence.Analysis, error) {
	if f.analyzeErr != nil {
		return nil, f.analyzeErr
	}
	idx := f.analyzeCalls
	f.analyzeCalls++
	if idx >= len(f.analyses) {
		idx = len(f.analyses) - 1
	}
	return f.analyses[idx], nil
}

func (f *fakeIntel) OCR(ctx context.Context, imagePaths []string) (*intelligence.OCRResult, error) {
	return nil, errors.New("not used in pipeline tests")
}

// fakeExpander materializes fixed entries into the destination directory.
type fakeExpander struct {
	members map[string]string // name -> content
	err     error
}

func (f *fakeExpander) Expand(containerPath, destDir string) ([]archive.Entry, error) {
	if f.err != nil {
		return nil, f.err
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(f.members))
	for name := range f.members {
		names = append(names, name)
	}
	sort.Strings(names)
	var entries []archive.Entry
	for _, name := range names {
		path := destDir + "/" + name
		if err := os.WriteFile(path, []byte(f.members[name]), 0o644); err != nil {
			return nil, err
		}
		entries = append(entries, archive.Entry{Name: name, Path: path})
	}
	return entries, nil
}

func analysisWithScore(score int) *intelligence.Analysis {
	raw := fmt.Sprintf(`{"completeness_score":%d}`, score)
	return &intelligence.Analysis{
		IsCorrectType:     true,
		CompletenessScore: score,
		Raw:               json.RawMessage(raw),
	}
}

func testFolders() drive.Folders {
	return drive.Folders{
		Incoming:    "folder-incoming",
		Processing:  "folder-processing",
		Verified:    "folder-verified",
		NeedsReview: "folder-needs-review",
	}
}

func newTestStore(t *testing.T) *repository.Store {
	t.Helper()
	ctx := context.Background()
	store, err := repository.Open(ctx, repository.Config{Driver: "sqlite", DSN: ":memory:"}, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.InitSchema(ctx); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	return store
}

func newTestProcessor(t *testing.T, files *fakeFiles, ext *fakeExtractor, intel *fakeIntel, exp Expander) (*Processor, *repository.Store) {
	t.Helper()
	store := newTestStore(t)
	p := NewProcessor(Deps{
		Files:     files,
		Folders:   testFolders(),
		Repo:      store,
		Extractor: ext,
		Intel:     intel,
		Expander:  exp,
		WorkDir:   t.TempDir(),
	})
	return p, store
}

func TestRunCycleRoutesPassedDocumentToVerified(t *testing.T) {
	ctx := context.Background()
	files := newFakeFiles()
	files.add("folder-incoming", drive.File{ID: "f1", Name: "passport.pdf"}, []byte("pdf"))

	ext := &fakeExtractor{direct: extract.Result{Text: strings.Repeat("passport text ", 30)}}
	intel := &fakeIntel{
		classification: &intelligence.Classification{DocumentType: "Passport", VisaCategory: "H-1B"},
		analyses:       []*intelligence.Analysis{analysisWithScore(95)},
	}
	p, store := newTestProcessor(t, files, ext, intel, nil)

	p.RunCycle(ctx)

	if got := files.folderOf("f1"); got != "folder-verified" {
		t.Fatalf("file folder = %s, want folder-verified", got)
	}
	doc, err := store.GetDocumentByFileName(ctx, "passport.pdf")
	if err != nil {
		t.Fatalf("record missing: %v", err)
	}
	if doc.Status != constants.StatusPassed {
		t.Errorf("status = %q, want %q", doc.Status, constants.StatusPassed)
	}
	if doc.DocumentID != "f1" {
		t.Errorf("document_id = %q, want f1", doc.DocumentID)
	}
	if doc.DocumentType != "Passport" {
		t.Errorf("document_type = %q, want Passport", doc.DocumentType)
	}
}

func TestRunCycleRoutesLowScoreToNeedsReview(t *testing.T) {
	ctx := context.Background()
	files := newFakeFiles()
	files.add("folder-incoming", drive.File{ID: "f1", Name: "letter.docx"}, []byte("docx"))

	ext := &fakeExtractor{direct: extract.Result{Text: strings.Repeat("employment letter ", 30)}}
	intel := &fakeIntel{
		classification: &intelligence.Classification{DocumentType: "Employment Letter", VisaCategory: "H-1B"},
		analyses:       []*intelligence.Analysis{analysisWithScore(60)},
	}
	p, store := newTestProcessor(t, files, ext, intel, nil)

	p.RunCycle(ctx)

	if got := files.folderOf("f1"); got != "folder-needs-review" {
		t.Fatalf("file folder = %s, want folder-needs-review", got)
	}
	doc, err := store.GetDocumentByFileName(ctx, "letter.docx")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Status != constants.StatusNeedsReview {
		t.Errorf("status = %q, want %q", doc.Status, constants.StatusNeedsReview)
	}
}

func TestRunCycleSkipsSubFolders(t *testing.T) {
	ctx := context.Background()
	files := newFakeFiles()
	files.add("folder-incoming", drive.File{ID: "d1", Name: "nested", MimeType: constants.DriveFolderMimeType}, nil)

	ext := &fakeExtractor{}
	p, _ := newTestProcessor(t, files, ext, &fakeIntel{}, nil)

	p.RunCycle(ctx)

	if got := files.folderOf("d1"); got != "folder-incoming" {
		t.Errorf("sub-folder was moved to %s", got)
	}
	if len(ext.calls) != 0 {
		t.Errorf("sub-folder was extracted %d times", len(ext.calls))
	}
}

func TestRunCycleRecordsExtractionFailure(t *testing.T) {
	ctx := context.Background()
	files := newFakeFiles()
	files.add("folder-incoming", drive.File{ID: "f1", Name: "scan.pdf"}, []byte("pdf"))

	ext := &fakeExtractor{direct: extract.Result{
		Text: "",
		OCR:  &entity.OCRMetadata{OCRUsed: true, TextClarity: "poor"},
	}}
	intel := &fakeIntel{}
	p, store := newTestProcessor(t, files, ext, intel, nil)

	p.RunCycle(ctx)

	doc, err := store.GetDocumentByFileName(ctx, "scan.pdf")
	if err != nil {
		t.Fatalf("failure record missing: %v", err)
	}
	if doc.ProcessingStage != constants.StageExtractionFailed {
		t.Errorf("stage = %q, want %q", doc.ProcessingStage, constants.StageExtractionFailed)
	}
	if doc.CompletenessScore != 0 {
		t.Errorf("completeness = %d, want 0", doc.CompletenessScore)
	}
	if doc.Status != constants.StatusNeedsReview {
		t.Errorf("status = %q, want %q", doc.Status, constants.StatusNeedsReview)
	}
	if got := files.folderOf("f1"); got != "folder-needs-review" {
		t.Errorf("file folder = %s, want folder-needs-review", got)
	}
}

func TestRunCycleLeavesFileInProcessingWhenClassificationFails(t *testing.T) {
	ctx := context.Background()
	files := newFakeFiles()
	files.add("folder-incoming", drive.File{ID: "f1", Name: "doc.pdf"}, []byte("pdf"))

	ext := &fakeExtractor{direct: extract.Result{Text: strings.Repeat("text ", 100)}}
	intel := &fakeIntel{classifyErr: errors.New("model unavailable")}
	p, store := newTestProcessor(t, files, ext, intel, nil)

	p.RunCycle(ctx)

	if got := files.folderOf("f1"); got != "folder-processing" {
		t.Errorf("file folder = %s, want folder-processing", got)
	}
	if _, err := store.GetDocumentByFileName(ctx, "doc.pdf"); err == nil {
		t.Error("record written despite failed classification")
	}
}

func TestProcessArchiveNamespacesMembersUnderApplicant(t *testing.T) {
	ctx := context.Background()
	files := newFakeFiles()
	files.add("folder-incoming", drive.File{ID: "arc1", Name: "Smith.zip"}, []byte("zip"))

	ext := &fakeExtractor{direct: extract.Result{Text: strings.Repeat("document body ", 30)}}
	intel := &fakeIntel{
		classification: &intelligence.Classification{DocumentType: "Passport", VisaCategory: "H-1B"},
		analyses:       []*intelligence.Analysis{analysisWithScore(95)},
	}
	exp := &fakeExpander{members: map[string]string{
		"passport.pdf": "pdf one",
		"diploma.pdf":  "pdf two",
	}}
	p, store := newTestProcessor(t, files, ext, intel, exp)

	p.RunCycle(ctx)

	// Container goes to Verified regardless of member status.
	if got := files.folderOf("arc1"); got != "folder-verified" {
		t.Fatalf("container folder = %s, want folder-verified", got)
	}

	applicant, err := store.GetOrCreateApplicant(ctx, "Smith")
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"passport.pdf", "diploma.pdf"} {
		doc, err := store.GetDocumentByFileName(ctx, "Smith/"+name)
		if err != nil {
			t.Fatalf("member %s missing: %v", name, err)
		}
		if doc.DocumentID != "arc1:"+name {
			t.Errorf("member %s document_id = %q, want %q", name, doc.DocumentID, "arc1:"+name)
		}
		if doc.ApplicantID == nil || *doc.ApplicantID != applicant.ID {
			t.Errorf("member %s not linked to applicant", name)
		}
	}
}

func TestProcessArchiveExpansionFailureLeavesContainerInProcessing(t *testing.T) {
	ctx := context.Background()
	files := newFakeFiles()
	files.add("folder-incoming", drive.File{ID: "arc1", Name: "Broken.zip"}, []byte("zip"))

	p, _ := newTestProcessor(t, files, &fakeExtractor{}, &fakeIntel{}, &fakeExpander{err: errors.New("corrupt archive")})

	p.RunCycle(ctx)

	if got := files.folderOf("arc1"); got != "folder-processing" {
		t.Errorf("container folder = %s, want folder-processing", got)
	}
}
