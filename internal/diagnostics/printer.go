package diagnostics

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// PrintInterval is how often the console printer logs a fresh
// snapshot of a node's core routing components.
const PrintInterval = 1 * time.Second

// RunPrinter logs source's snapshot on PrintInterval until ctx is
// canceled. It is a diagnostic convenience only: nothing about
// correctness depends on it running.
func RunPrinter(ctx context.Context, source StateSource, logger *zap.Logger) {
	ticker := time.NewTicker(PrintInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logSnapshot(source.Snapshot(), logger)
		}
	}
}

func logSnapshot(snap Snapshot, logger *zap.Logger) {
	predecessor := "NONE"
	if snap.Predecessor != nil {
		predecessor = snap.Predecessor.PublicAddr.String()
	}

	successors := make([]string, len(snap.SuccessorList))
	for i, n := range snap.SuccessorList {
		successors[i] = n.PublicAddr.String()
	}

	logger.Info("node core components",
		zap.String("self", snap.Self.PublicAddr.String()),
		zap.String("predecessor", predecessor),
		zap.Strings("successor_list", successors))
}
