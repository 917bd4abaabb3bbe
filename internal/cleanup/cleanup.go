// Package cleanup runs the SRU workflow: walk a root, select files with the
// size/recency/owner filter, and delete the selection as a batch with one
// outcome per file.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dirmanage/internal/activity"
	"dirmanage/internal/filter"
	"dirmanage/internal/fsops"
	"dirmanage/internal/limiter"
	"dirmanage/internal/metrics"
	"dirmanage/internal/safety"
	"dirmanage/internal/scan"
)

// DefaultWorkers is the batch concurrency when Options.Workers is unset.
const DefaultWorkers = 4

// ErrInvalidSelection is returned by Pick for out-of-range indices.
var ErrInvalidSelection = errors.New("invalid selection")

// Options configure a Cleaner.
type Options struct {
	DryRun bool
	// Workers bounds concurrent deletions; the guard still serializes each syscall
	Workers int
	// ProtectedPaths are refused in addition to the built-in system paths
	ProtectedPaths []string
	// MaxDeletesPerSecond paces dispatch; 0 means unpaced. Dry runs are never paced.
	MaxDeletesPerSecond float64
}

// Cleaner composes the walker, filter and engine for SRU runs.
type Cleaner struct {
	engine   *fsops.Engine
	walker   *scan.Walker
	recorder activity.Recorder
	logger   *zap.Logger
	opts     Options
	pacer    *limiter.Pacer
	now      func() time.Time
}

// Option customizes a Cleaner.
type Option func(*Cleaner)

// WithRecorder sets where activity entries go.
func WithRecorder(r activity.Recorder) Option {
	return func(c *Cleaner) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Cleaner) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCleaner creates a Cleaner over engine and walker.
func NewCleaner(engine *fsops.Engine, walker *scan.Walker, opts Options, options ...Option) *Cleaner {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	c := &Cleaner{
		engine:   engine,
		walker:   walker,
		recorder: activity.Nop{},
		logger:   zap.NewNop(),
		opts:     opts,
		now:      time.Now,
	}
	if !opts.DryRun {
		c.pacer = limiter.NewPacer(opts.MaxDeletesPerSecond, opts.Workers)
	}
	for _, o := range options {
		o(c)
	}
	return c
}

// Suggestion is one file selected by the SRU filter.
type Suggestion struct {
	Record  scan.Record
	AgeDays float64
	Reason  filter.Reason
}

// SuggestResult lists the files matching criteria under Root.
type SuggestResult struct {
	Root        string
	Criteria    filter.Criteria
	Suggestions []Suggestion
	// Truncated counts matches dropped by the walker record limit
	Truncated   int
	TotalBytes  int64
	EvaluatedAt time.Time
}

// Records returns the suggested records in order.
func (r *SuggestResult) Records() []scan.Record {
	out := make([]scan.Record, len(r.Suggestions))
	for i, s := range r.Suggestions {
		out[i] = s.Record
	}
	return out
}

// Suggest walks root and returns the files matching criteria, in walk order.
// The filter is evaluated against the clock at the time of the call.
func (c *Cleaner) Suggest(root string, criteria filter.Criteria) (*SuggestResult, error) {
	if err := criteria.Validate(); err != nil {
		return nil, err
	}

	now := c.now()
	pred := criteria.Predicate()

	snap, err := c.walker.CollectFunc(root, func(r scan.Record) bool { return pred(r, now) })
	if err != nil && !errors.Is(err, scan.ErrTooManyRecords) {
		return nil, err
	}

	res := &SuggestResult{
		Root:        snap.Root,
		Criteria:    criteria,
		Truncated:   snap.Truncated,
		EvaluatedAt: now,
	}
	for _, rec := range snap.Records {
		res.Suggestions = append(res.Suggestions, Suggestion{
			Record:  rec,
			AgeDays: filter.AgeDays(rec, now),
			Reason:  filter.Explain(rec, criteria, now),
		})
		res.TotalBytes += rec.Size
	}

	c.logger.Info("suggestions ready",
		zap.String("root", res.Root),
		zap.Stringer("criteria", criteria),
		zap.Int("matches", len(res.Suggestions)),
		zap.Int64("bytes", res.TotalBytes))

	// The partial list is still useful under the error overflow policy
	return res, err
}

// Pick selects suggestions by 1-based index, as shown to the operator.
func Pick(res *SuggestResult, indices []int) ([]scan.Record, error) {
	out := make([]scan.Record, 0, len(indices))
	seen := make(map[int]bool, len(indices))
	for _, i := range indices {
		if i < 1 || i > len(res.Suggestions) {
			return nil, fmt.Errorf("%w: %d (have 1-%d)", ErrInvalidSelection, i, len(res.Suggestions))
		}
		if seen[i] {
			continue
		}
		seen[i] = true
		out = append(out, res.Suggestions[i-1].Record)
	}
	return out, nil
}

// Status is the result of one batch item.
type Status string

const (
	StatusDeleted Status = "deleted"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
	StatusDryRun  Status = "dry_run"
)

// ItemOutcome is the per-file result of a batch.
type ItemOutcome struct {
	fsops.Outcome
	Record scan.Record
	Status Status
	// Note explains skips (safety refusal, cancellation)
	Note string
}

// BatchResult holds every item outcome of one Delete call, in input order.
type BatchResult struct {
	Root       string
	DryRun     bool
	Items      []ItemOutcome
	Deleted    int
	Failed     int
	Skipped    int
	Simulated  int
	BytesFreed int64
	Duration   time.Duration
}

// Failures returns the items that failed.
func (b *BatchResult) Failures() []ItemOutcome {
	var out []ItemOutcome
	for _, it := range b.Items {
		if it.Status == StatusFailed {
			out = append(out, it)
		}
	}
	return out
}

// Delete removes records that lie under root. One failing file never stops
// the others; every record gets an ItemOutcome. Records are not re-checked
// against the filter, so a file changed since the walk is still removed.
//
// ctx is checked between dispatches, after any pacing wait: once it is done,
// remaining records are reported as skipped and the error is returned with
// the partial result.
func (c *Cleaner) Delete(ctx context.Context, root string, records []scan.Record) (*BatchResult, error) {
	start := time.Now()
	validator := safety.NewValidator([]string{root}, c.opts.ProtectedPaths)

	res := &BatchResult{
		Root:   root,
		DryRun: c.opts.DryRun,
		Items:  make([]ItemOutcome, len(records)),
	}

	c.logger.Info("starting batch delete",
		zap.String("root", root),
		zap.Int("files", len(records)),
		zap.Bool("dry_run", c.opts.DryRun),
		zap.Int("workers", c.opts.Workers),
		zap.Bool("paced", c.pacer.Limited()))

	var g errgroup.Group
	g.SetLimit(c.opts.Workers)

	var stopErr error
	dispatched := 0
	for i, rec := range records {
		if err := c.pacer.Wait(ctx); err != nil {
			stopErr = err
			break
		}
		g.Go(func() error {
			res.Items[i] = c.deleteItem(validator, rec)
			return nil
		})
		dispatched++
	}
	_ = g.Wait()

	for i := dispatched; i < len(records); i++ {
		res.Items[i] = ItemOutcome{
			Outcome: fsops.Outcome{Path: records[i].Path},
			Record:  records[i],
			Status:  StatusSkipped,
			Note:    "canceled",
		}
	}

	for _, it := range res.Items {
		switch it.Status {
		case StatusDeleted:
			res.Deleted++
			res.BytesFreed += it.Record.Size
		case StatusFailed:
			res.Failed++
		case StatusSkipped:
			res.Skipped++
		case StatusDryRun:
			res.Simulated++
		}
	}
	res.Duration = time.Since(start)

	metrics.RecordBatch(res.Deleted, res.Failed, res.Skipped, res.Simulated, res.Duration)
	c.logger.Info("batch delete complete",
		zap.String("root", root),
		zap.Int("deleted", res.Deleted),
		zap.Int("failed", res.Failed),
		zap.Int("skipped", res.Skipped),
		zap.Int("dry_run", res.Simulated),
		zap.Int64("bytes_freed", res.BytesFreed),
		zap.Duration("elapsed", res.Duration))

	if stopErr == nil {
		stopErr = ctx.Err()
	}
	return res, stopErr
}

// FilterAndDelete runs Suggest then deletes every suggestion.
func (c *Cleaner) FilterAndDelete(ctx context.Context, root string, criteria filter.Criteria) (*SuggestResult, *BatchResult, error) {
	sugg, err := c.Suggest(root, criteria)
	if err != nil {
		return sugg, nil, err
	}
	batch, err := c.Delete(ctx, sugg.Root, sugg.Records())
	return sugg, batch, err
}

func (c *Cleaner) deleteItem(v *safety.Validator, rec scan.Record) ItemOutcome {
	out := ItemOutcome{Outcome: fsops.Outcome{Path: rec.Path}, Record: rec}

	if err := v.ValidateDeleteTarget(rec.Path); err != nil {
		out.Status = StatusSkipped
		out.Note = err.Error()
		c.logger.Warn("refusing to delete", zap.String("path", rec.Path), zap.Error(err))
		c.record(rec, activity.ActionSkipped, out.Note)
		return out
	}

	if c.opts.DryRun {
		out.Succeeded = true
		out.Status = StatusDryRun
		c.logger.Info("[DRY RUN] would delete file", zap.String("path", rec.Path), zap.Int64("size", rec.Size))
		c.record(rec, activity.ActionDryRun, "")
		return out
	}

	if err := c.engine.DeleteOne(rec.Path); err != nil {
		out.Outcome = fsops.NewOutcome(rec.Path, err)
		out.Status = StatusFailed
		c.record(rec, activity.ActionFailed, err.Error())
		return out
	}

	out.Succeeded = true
	out.Status = StatusDeleted
	metrics.RecordDeletions(1, rec.Size)
	c.record(rec, activity.ActionDeleted, "")
	return out
}

func (c *Cleaner) record(rec scan.Record, action activity.Action, errMsg string) {
	err := c.recorder.Record(activity.Entry{
		Timestamp: c.now(),
		Action:    action,
		Path:      rec.Path,
		Size:      rec.Size,
		Owner:     rec.Owner,
		Error:     errMsg,
	})
	if err != nil {
		// History is best effort; the deletion itself already happened
		c.logger.Error("failed to record activity", zap.String("path", rec.Path), zap.Error(err))
	}
}
