package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"dirmanage/internal/activity"
	"dirmanage/internal/filter"
	"dirmanage/internal/report"
	"dirmanage/internal/scan"
)

// collectErr separates the walk result from its error. A snapshot cut short
// by the error overflow policy is still printed; other failures are returned.
func collectErr(snap *scan.Snapshot, err error) (*scan.Snapshot, error) {
	if err == nil || errors.Is(err, scan.ErrTooManyRecords) {
		return snap, err
	}
	return nil, err
}

func printTruncated(w io.Writer, snap *scan.Snapshot) {
	if snap.Truncated > 0 {
		fmt.Fprintf(w, "(%d more files not shown: walk.max_records reached)\n", snap.Truncated)
	}
}

func newListCmd(v *viper.Viper) *cobra.Command {
	var (
		sortBy    string
		recursive bool
	)

	cmd := &cobra.Command{
		Use:   "list [dir]",
		Short: "List files with size, owner and modification time",
		Args:  checkArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := scan.ParseSortKey(sortBy)
			if err != nil {
				return usageError(err)
			}

			a, err := newApp(v)
			if err != nil {
				return err
			}
			defer a.close()

			dir, err := a.dir(args, 0)
			if err != nil {
				return err
			}

			opts := a.cfg.WalkOptions()
			if !recursive {
				opts.MaxDepth = 1
			}
			snap, err := collectErr(a.walker(opts).Collect(dir))
			if snap == nil {
				return err
			}

			scan.SortRecords(snap.Records, key)
			out := cmd.OutOrStdout()
			if len(snap.Records) == 0 {
				fmt.Fprintf(out, "No files found in %s\n", snap.Root)
			} else if werr := report.RenderListing(out, snap.Records); werr != nil {
				return werr
			}
			printTruncated(out, snap)
			return err
		},
	}

	cmd.Flags().StringVarP(&sortBy, "sort", "s", string(scan.SortByName), "Sort by name, size or date")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Descend into subdirectories")
	return cmd
}

func newSearchCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "search <text> [dir]",
		Short: "Find files whose name contains text (case-sensitive)",
		Long: `Search walks the tree recursively and prints every regular file whose
base name contains the given text. Use an extension such as ".log" to
search by file type.`,
		Args: checkArgs(cobra.RangeArgs(1, 2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(v)
			if err != nil {
				return err
			}
			defer a.close()

			dir, err := a.dir(args, 1)
			if err != nil {
				return err
			}

			match := filter.NameContains(args[0])
			now := time.Now()
			snap, err := collectErr(a.walker(a.cfg.WalkOptions()).CollectFunc(dir, func(r scan.Record) bool {
				return match(r, now)
			}))
			if snap == nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(snap.Records) == 0 {
				fmt.Fprintln(out, "No matching files found.")
			} else if werr := report.RenderPaths(out, snap.Records); werr != nil {
				return werr
			}
			printTruncated(out, snap)
			return err
		},
	}
}

func newReportCmd(v *viper.Viper) *cobra.Command {
	var (
		txtPath string
		csvPath string
		format  string
	)

	cmd := &cobra.Command{
		Use:   "report [dir]",
		Short: "Write TXT and CSV snapshot reports of a directory tree",
		Args:  checkArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "txt" && format != "csv" && format != "both" {
				return usageError(fmt.Errorf("unknown report format %q (want txt, csv or both)", format))
			}

			a, err := newApp(v)
			if err != nil {
				return err
			}
			defer a.close()

			dir, err := a.dir(args, 0)
			if err != nil {
				return err
			}
			if txtPath == "" {
				txtPath = a.cfg.Report.TXTPath
			}
			if csvPath == "" {
				csvPath = a.cfg.Report.CSVPath
			}

			snap, err := collectErr(a.walker(a.cfg.WalkOptions()).Collect(dir))
			if snap == nil {
				return err
			}
			scan.SortRecords(snap.Records, scan.SortByName)

			gen := report.NewGenerator(a.guard, a.logger)
			out := cmd.OutOrStdout()
			var outputs []string
			if format != "csv" {
				outputs = append(outputs, txtPath)
				if werr := gen.WriteTXT(txtPath, snap); werr != nil {
					return werr
				}
			}
			if format != "txt" {
				outputs = append(outputs, csvPath)
				if werr := gen.WriteCSV(csvPath, snap); werr != nil {
					return werr
				}
			}
			for _, p := range outputs {
				a.record(activity.Entry{
					Action: activity.ActionReported,
					Path:   p,
					Target: snap.Root,
					Size:   scan.TotalSize(snap.Records),
				})
				fmt.Fprintf(out, "Report written to %s (%d files)\n", p, len(snap.Records))
			}
			printTruncated(out, snap)
			return err
		},
	}

	cmd.Flags().StringVar(&txtPath, "txt", "", "TXT report path (default from config)")
	cmd.Flags().StringVar(&csvPath, "csv", "", "CSV report path (default from config)")
	cmd.Flags().StringVar(&format, "format", "both", "Report format: txt, csv or both")
	return cmd
}
