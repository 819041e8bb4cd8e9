package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"visadocs/constants"
)

// renderPDFPages rasterizes the first pages of a PDF into PNG images for the
// OCR path. The returned cleanup removes the whole scratch directory and is
// safe to call unconditionally.
func (e *Engine) renderPDFPages(ctx context.Context, path string) ([]string, func(), error) {
	tmpDir, err := os.MkdirTemp(e.cfg.WorkDir, "visadocs-pages-*")
	if err != nil {
		return nil, func() {}, err
	}
	cleanup := func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("extract.render.cleanup_failed", "dir", tmpDir, "error", err)
		}
	}

	lastPage := e.cfg.MaxPages
	if count, err := api.PageCountFile(path); err == nil && count < lastPage {
		lastPage = count
	}

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r <dpi> -png -f 1 -l <lastPage> <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm,
		"-r", fmt.Sprintf("%d", e.cfg.DPI),
		"-png",
		"-f", "1",
		"-l", fmt.Sprintf("%d", lastPage),
		path, prefix)
	if err != nil {
		cleanup()
		return nil, func() {}, fmt.Errorf("render pages: %s: %w", string(errb), err)
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if len(matches) > constants.MaxOCRPages {
		matches = matches[:constants.MaxOCRPages]
	}
	if len(matches) == 0 {
		cleanup()
		return nil, func() {}, fmt.Errorf("no pages rendered")
	}
	return matches, cleanup, nil
}
