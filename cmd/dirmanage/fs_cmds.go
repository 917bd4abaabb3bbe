package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"dirmanage/internal/activity"
	"dirmanage/internal/exitcodes"
	"dirmanage/internal/fsops"
	"dirmanage/internal/scan"
)

// operands resolves args to absolute paths and refuses protected ones.
func (a *app) operands(args []string) ([]string, error) {
	out := make([]string, len(args))
	for i, arg := range args {
		// Raw input, so ".." segments are still visible
		if err := a.validator.ValidateOperand(arg); err != nil {
			return nil, err
		}
		p, err := absPath(arg)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

func sizeOf(path string) int64 {
	info, err := os.Lstat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// twoPathCmd builds cp, mv and rename, which share argument handling.
func twoPathCmd(v *viper.Viper, use, short string, action activity.Action, verb string,
	run func(e *fsops.Engine, src, dst string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  checkArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(v)
			if err != nil {
				return err
			}
			defer a.close()

			paths, err := a.operands(args)
			if err != nil {
				return err
			}
			src, dst := paths[0], paths[1]

			out := cmd.OutOrStdout()
			err = a.mutate(action, src, dst, sizeOf(src), func() error {
				return run(a.engine, src, dst)
			})
			switch {
			case a.cfg.Cleanup.DryRun:
				fmt.Fprintf(out, "[DRY RUN] would %s %s -> %s\n", verb, src, dst)
			case errors.Is(err, fsops.ErrPartialMove):
				fmt.Fprintf(out, "Copied %s -> %s but could not remove the source; both files now exist\n", src, dst)
				return &exitError{code: exitcodes.PartialFailure, err: err}
			case err == nil:
				fmt.Fprintf(out, "%s: %s -> %s\n", action, src, dst)
			}
			return err
		},
	}
}

func newCopyCmd(v *viper.Viper) *cobra.Command {
	return twoPathCmd(v, "cp <src> <dst>", "Copy a file, keeping its mode and timestamps",
		activity.ActionCopied, "copy", (*fsops.Engine).Copy)
}

func newMoveCmd(v *viper.Viper) *cobra.Command {
	return twoPathCmd(v, "mv <src> <dst>", "Move a file, copying across filesystems when needed",
		activity.ActionMoved, "move", (*fsops.Engine).Move)
}

func newRenameCmd(v *viper.Viper) *cobra.Command {
	return twoPathCmd(v, "rename <old> <new>", "Rename a file or directory within one filesystem",
		activity.ActionRenamed, "rename", (*fsops.Engine).Rename)
}

func newRemoveCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <file>",
		Short: "Delete a single file",
		Args:  checkArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(v)
			if err != nil {
				return err
			}
			defer a.close()

			paths, err := a.operands(args)
			if err != nil {
				return err
			}
			path := paths[0]
			size := sizeOf(path)

			err = a.mutate(activity.ActionDeleted, path, "", size, func() error {
				return a.engine.DeleteOne(path)
			})
			if err != nil {
				return err
			}
			if a.cfg.Cleanup.DryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "[DRY RUN] would delete %s (%s)\n", path, humanize.IBytes(uint64(size)))
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s (%s)\n", path, humanize.IBytes(uint64(size)))
			return nil
		},
	}
}

func newMkdirCmd(v *viper.Viper) *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "mkdir <dir>",
		Short: "Create a directory; the parent must exist",
		Args:  checkArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			perm, err := strconv.ParseUint(mode, 8, 32)
			if err != nil || perm > 0o7777 {
				return usageError(fmt.Errorf("invalid --mode %q: want octal permissions such as 0755", mode))
			}

			a, err := newApp(v)
			if err != nil {
				return err
			}
			defer a.close()

			paths, err := a.operands(args)
			if err != nil {
				return err
			}
			path := paths[0]

			err = a.mutate(activity.ActionMkdir, path, "", 0, func() error {
				return a.engine.CreateDirectory(path, os.FileMode(perm))
			})
			if err != nil {
				return err
			}
			if a.cfg.Cleanup.DryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "[DRY RUN] would create %s\n", path)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", "0755", "Permissions for the new directory (octal)")
	return cmd
}

func newRmtreeCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "rmtree <dir>",
		Short: "Delete a directory and everything beneath it",
		Long: `rmtree removes children before parents and never follows symbolic links.
The first failure stops the removal; whatever was already deleted stays
deleted and the failing path is reported.`,
		Args: checkArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(v)
			if err != nil {
				return err
			}
			defer a.close()

			paths, err := a.operands(args)
			if err != nil {
				return err
			}
			path := paths[0]
			out := cmd.OutOrStdout()

			if a.cfg.Cleanup.DryRun {
				if err := a.engine.CheckTreeRoot(path); err != nil {
					return err
				}
				snap, err := a.walker(scan.Options{}).Collect(path)
				if err != nil {
					return err
				}
				total := scan.TotalSize(snap.Records)
				a.record(activity.Entry{Action: activity.ActionDryRun, Path: path, Size: total, Reason: string(activity.ActionRmtree)})
				fmt.Fprintf(out, "[DRY RUN] would remove %s: %d files (%s)\n", path, len(snap.Records), humanize.IBytes(uint64(total)))
				return nil
			}

			summary, err := a.engine.RemoveTree(path)
			e := activity.Entry{Action: activity.ActionRmtree, Path: path, Size: summary.Bytes}
			if err != nil {
				e.Action = activity.ActionFailed
				e.Reason = string(activity.ActionRmtree)
				e.Error = err.Error()
			}
			a.record(e)

			fmt.Fprintf(out, "Removed %d files and %d directories (%s) under %s\n",
				summary.Files, summary.Dirs, humanize.IBytes(uint64(summary.Bytes)), path)
			if err != nil {
				a.logger.Error("tree removal stopped", zap.String("failed_path", fsops.PathOf(err)), zap.Error(err))
				return err
			}
			return nil
		},
	}
}
