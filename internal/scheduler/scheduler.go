package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"dirmanage/internal/cleanup"
	"dirmanage/internal/disk"
	"dirmanage/internal/filter"
)

// Job is one scheduled cycle.
type Job func(ctx context.Context) error

// Run calls job once immediately and then every interval until ctx is done.
// A failing cycle is logged and the schedule continues. The returned error
// is ctx.Err().
func Run(ctx context.Context, interval time.Duration, job Job, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if job == nil {
		return errors.New("nil job")
	}
	if interval <= 0 {
		return errors.New("interval must be positive")
	}

	runCycle(ctx, job, logger)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("scheduler shutting down")
			return ctx.Err()
		case <-ticker.C:
			runCycle(ctx, job, logger)
		}
	}
}

func runCycle(ctx context.Context, job Job, logger *zap.Logger) {
	if ctx.Err() != nil {
		return
	}
	if err := job(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("error running cycle", zap.Error(err))
	}
}

// CycleReport is what one reclamation cycle did.
type CycleReport struct {
	Suggested int
	Batch     *cleanup.BatchResult
	Usage     *disk.Usage
}

// ReclaimJob returns a Job that deletes everything under root matching
// criteria. Filesystem usage of root is sampled first so the free space gauge
// tracks each cycle. report, when set, receives every completed cycle.
func ReclaimJob(cleaner *cleanup.Cleaner, root string, criteria filter.Criteria, logger *zap.Logger, report func(CycleReport)) Job {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context) error {
		start := time.Now()
		var cr CycleReport

		usage, err := disk.GetUsage(root)
		if err != nil {
			logger.Warn("failed to get disk usage", zap.String("root", root), zap.Error(err))
		} else {
			cr.Usage = usage
		}

		sugg, batch, err := cleaner.FilterAndDelete(ctx, root, criteria)
		if sugg != nil {
			cr.Suggested = len(sugg.Suggestions)
		}
		cr.Batch = batch
		if report != nil && batch != nil {
			report(cr)
		}
		if err != nil {
			return err
		}

		logger.Info("cycle complete",
			zap.String("root", root),
			zap.Int("candidates", cr.Suggested),
			zap.Int("deleted", batch.Deleted),
			zap.Int("failed", batch.Failed),
			zap.Int64("freed", batch.BytesFreed),
			zap.Duration("duration", time.Since(start)))
		return nil
	}
}
