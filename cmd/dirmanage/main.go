package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// newRootCmd builds the command tree. Each call gets its own viper instance
// so flags and DIRMANAGE_* environment overrides never leak between runs.
func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("DIRMANAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:   "dirmanage",
		Short: "Directory maintenance: list, search, report and reclaim space",
		Long: `dirmanage inspects a directory tree and performs guarded file operations.
SRU (space reclamation) selects files by size, age and owner and deletes
only the ones you confirm.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Path to YAML configuration file")
	pf.String("root", "", "Directory to operate on (overrides config root)")
	pf.Bool("dry-run", false, "Report what would change without modifying anything")
	pf.BoolP("verbose", "v", false, "Enable debug logging")
	for _, name := range []string{"config", "root", "dry-run", "verbose"} {
		_ = v.BindPFlag(name, pf.Lookup(name))
	}

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	rootCmd.AddCommand(
		newListCmd(v),
		newSearchCmd(v),
		newReportCmd(v),
		newSRUCmd(v),
		newCopyCmd(v),
		newMoveCmd(v),
		newRenameCmd(v),
		newRemoveCmd(v),
		newMkdirCmd(v),
		newRmtreeCmd(v),
	)
	return rootCmd
}
