package pipeline

import (
	"context"
	"time"
)

// Run polls until the context is canceled. Each iteration requeues stuck
// files, processes the Incoming folder and reconciles manual folder moves.
func (p *Processor) Run(ctx context.Context, interval time.Duration) {
	p.log.Info("pipeline.start", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		p.RecoverStuckFiles(ctx)
		p.RunCycle(ctx)
		p.SyncFolders(ctx)

		select {
		case <-ctx.Done():
			p.log.Info("pipeline.stop", "reason", ctx.Err())
			return
		case <-ticker.C:
		}
	}
}
