package extract

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Runner abstracts the external page-rasterizer invocation so tests can
// substitute it.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// execRunner shells out for real. pdftoppm writes the rendered pages to disk
// and reports problems on stderr, so stdout is captured only for completeness.
type execRunner struct {
	logger *slog.Logger
}

func (r execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	if err != nil {
		r.logger.Error("extract.exec.failed",
			"bin", name,
			"elapsed_ms", time.Since(start).Milliseconds(),
			"stderr", firstLine(stderr.String()),
			"error", err,
		)
		return stdout.Bytes(), stderr.Bytes(), err
	}
	r.logger.Debug("extract.exec.ok",
		"bin", name,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return stdout.Bytes(), stderr.Bytes(), nil
}

// firstLine keeps log records bounded; pdftoppm diagnostics fit on one line.
func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	const max = 200
	if len(s) > max {
		s = s[:max]
	}
	return s
}
