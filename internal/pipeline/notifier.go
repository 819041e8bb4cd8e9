package pipeline

import (
	"context"
	"log/slog"
)

// Notifier receives completion events for standalone documents. Archive
// members are intentionally not announced one by one.
type Notifier interface {
	NotifyProcessed(ctx context.Context, fileName, status, visaCategory string, completenessScore int)
}

// LogNotifier is the default sink, announcing completions on the log stream.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n *LogNotifier) NotifyProcessed(ctx context.Context, fileName, status, visaCategory string, completenessScore int) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("notify.document_processed",
		"file_name", fileName,
		"status", status,
		"visa_category", visaCategory,
		"completeness", completenessScore,
	)
}
