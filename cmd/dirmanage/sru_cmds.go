package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"dirmanage/internal/cleanup"
	"dirmanage/internal/exitcodes"
	"dirmanage/internal/filter"
	"dirmanage/internal/scheduler"
)

// criteriaFlags override the sru section of the config when set.
type criteriaFlags struct {
	minSize string
	minAge  int
	owner   string
}

func (f *criteriaFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.minSize, "min-size", "", `Only files larger than this (e.g. "500", "10MB", "1GiB")`)
	cmd.Flags().IntVar(&f.minAge, "min-age", 0, "Only files older than this many days")
	cmd.Flags().StringVar(&f.owner, "owner", "", `Only files owned by this user ("all" for any owner)`)
}

func (f *criteriaFlags) apply(cmd *cobra.Command, base filter.Criteria) (filter.Criteria, error) {
	c := base
	if cmd.Flags().Changed("min-size") {
		n, err := humanize.ParseBytes(f.minSize)
		if err != nil {
			return c, usageError(fmt.Errorf("--min-size: %w", err))
		}
		c.MinSizeBytes = int64(n)
	}
	if cmd.Flags().Changed("min-age") {
		c.MinAgeDays = f.minAge
	}
	if cmd.Flags().Changed("owner") {
		c.Owner = f.owner
	}
	if err := c.Validate(); err != nil {
		return c, usageError(err)
	}
	return c, nil
}

func newSRUCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sru",
		Short: "Space reclamation: suggest and delete files by size, age and owner",
	}
	cmd.AddCommand(newSRUSuggestCmd(v), newSRUDeleteCmd(v), newSRUWatchCmd(v))
	return cmd
}

func newSRUSuggestCmd(v *viper.Viper) *cobra.Command {
	var flags criteriaFlags

	cmd := &cobra.Command{
		Use:   "suggest [dir]",
		Short: "List files that match the reclamation criteria",
		Args:  checkArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(v)
			if err != nil {
				return err
			}
			defer a.close()

			criteria, err := flags.apply(cmd, a.cfg.SRU)
			if err != nil {
				return err
			}
			dir, err := a.dir(args, 0)
			if err != nil {
				return err
			}

			cleaner := cleanup.NewCleaner(a.engine, a.walker(a.cfg.WalkOptions()), a.cfg.CleanupOptions(),
				cleanup.WithRecorder(a.recorder), cleanup.WithLogger(a.logger))
			res, err := cleaner.Suggest(dir, criteria)
			if res == nil {
				return err
			}
			if werr := printSuggestions(cmd.OutOrStdout(), res); werr != nil {
				return werr
			}
			return err
		},
	}

	flags.register(cmd)
	return cmd
}

func printSuggestions(w io.Writer, res *cleanup.SuggestResult) error {
	if len(res.Suggestions) == 0 {
		fmt.Fprintf(w, "No files under %s match %s\n", res.Root, res.Criteria)
		return nil
	}

	// Every suggestion satisfied the same criteria.
	fmt.Fprintf(w, "Matched: %s\n\n", res.Suggestions[0].Reason.ToHumanReadable())

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSIZE\tAGE\tOWNER\tPATH\tREASON")
	for i, s := range res.Suggestions {
		fmt.Fprintf(tw, "%d\t%s\t%.1fd\t%s\t%s\t%s\n",
			i+1, humanize.IBytes(uint64(s.Record.Size)), s.AgeDays, s.Record.Owner, s.Record.Path, s.Reason.ToLogString())
	}
	fmt.Fprintf(tw, "\n%d files, %s reclaimable\n", len(res.Suggestions), humanize.IBytes(uint64(res.TotalBytes)))
	if res.Truncated > 0 {
		fmt.Fprintf(tw, "(%d more matches not shown: walk.max_records reached)\n", res.Truncated)
	}
	return tw.Flush()
}

func newSRUDeleteCmd(v *viper.Viper) *cobra.Command {
	var (
		flags criteriaFlags
		picks []int
		all   bool
	)

	cmd := &cobra.Command{
		Use:   "delete [dir]",
		Short: "Delete suggested files chosen with --pick, or all of them with --all",
		Long: `Delete re-runs the suggestion with the same criteria and removes the
selected entries. Indices refer to the numbering printed by "sru suggest".
Every file gets its own outcome; one failure never stops the others.`,
		Args: checkArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(picks) > 0) {
				return usageError(errors.New("choose files with exactly one of --pick or --all"))
			}

			a, err := newApp(v)
			if err != nil {
				return err
			}
			defer a.close()

			criteria, err := flags.apply(cmd, a.cfg.SRU)
			if err != nil {
				return err
			}
			dir, err := a.dir(args, 0)
			if err != nil {
				return err
			}

			cleaner := cleanup.NewCleaner(a.engine, a.walker(a.cfg.WalkOptions()), a.cfg.CleanupOptions(),
				cleanup.WithRecorder(a.recorder), cleanup.WithLogger(a.logger))
			res, err := cleaner.Suggest(dir, criteria)
			if err != nil {
				// Never delete from a selection the walker could not finish
				return err
			}

			records := res.Records()
			if !all {
				if records, err = cleanup.Pick(res, picks); err != nil {
					return usageError(err)
				}
			}
			if len(records) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No files under %s match %s\n", res.Root, criteria)
				return nil
			}

			batch, err := cleaner.Delete(cmd.Context(), res.Root, records)
			if batch != nil {
				if werr := printBatch(cmd.OutOrStdout(), batch); werr != nil {
					return werr
				}
			}
			if err != nil {
				return err
			}
			if batch.Failed > 0 {
				return &exitError{
					code: exitcodes.PartialFailure,
					err:  fmt.Errorf("%d of %d deletions failed", batch.Failed, len(batch.Items)),
				}
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().IntSliceVar(&picks, "pick", nil, "Suggestion numbers to delete, e.g. --pick 1,3")
	cmd.Flags().BoolVar(&all, "all", false, "Delete every suggested file")
	return cmd
}

func printBatch(w io.Writer, b *cleanup.BatchResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tSIZE\tPATH\tNOTE")
	for _, it := range b.Items {
		note := it.Note
		if note == "" && it.Err != nil {
			note = it.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", it.Status, humanize.IBytes(uint64(it.Record.Size)), it.Record.Path, note)
	}
	fmt.Fprintf(tw, "\nDeleted %d, failed %d, skipped %d, dry run %d. Freed %s in %s.\n",
		b.Deleted, b.Failed, b.Skipped, b.Simulated, humanize.IBytes(uint64(b.BytesFreed)), b.Duration.Round(time.Millisecond))
	return tw.Flush()
}

func newSRUWatchCmd(v *viper.Viper) *cobra.Command {
	var (
		flags    criteriaFlags
		interval time.Duration
		once     bool
	)

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Delete every matching file now and then again on a fixed interval",
		Long: `Watch runs unattended reclamation: each cycle deletes every file matching
the criteria, without confirmation. Use --dry-run first. Runs until
interrupted unless --once is given.`,
		Args: checkArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(v)
			if err != nil {
				return err
			}
			defer a.close()

			criteria, err := flags.apply(cmd, a.cfg.SRU)
			if err != nil {
				return err
			}
			dir, err := a.dir(args, 0)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("interval") {
				interval = a.cfg.Interval()
			}
			if interval <= 0 {
				return usageError(fmt.Errorf("--interval must be positive, got %s", interval))
			}

			cleaner := cleanup.NewCleaner(a.engine, a.walker(a.cfg.WalkOptions()), a.cfg.CleanupOptions(),
				cleanup.WithRecorder(a.recorder), cleanup.WithLogger(a.logger))
			out := cmd.OutOrStdout()
			job := scheduler.ReclaimJob(cleaner, dir, criteria, a.logger, func(cr scheduler.CycleReport) {
				b := cr.Batch
				fmt.Fprintf(out, "%s: %d candidates, deleted %d, failed %d, dry run %d, freed %s\n",
					time.Now().Format("2006-01-02 15:04:05"), cr.Suggested, b.Deleted, b.Failed, b.Simulated,
					humanize.IBytes(uint64(b.BytesFreed)))
			})

			if once {
				return job(cmd.Context())
			}
			a.logger.Info("starting reclamation schedule",
				zap.String("root", dir), zap.Stringer("criteria", criteria), zap.Duration("interval", interval))
			if err := scheduler.Run(cmd.Context(), interval, job, a.logger); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().DurationVar(&interval, "interval", time.Hour, "Pause between cycles (default from schedule.interval)")
	cmd.Flags().BoolVar(&once, "once", false, "Run a single cycle and exit")
	return cmd
}
