// Command safefile inspects and repairs files managed by the safefile
// library: it can print their content (recovering from backups when the
// main file is corrupt), list the backup ring, promote a backup slot, and
// clean up temp files orphaned by interrupted writes.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ewachtel/safefile"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "safefile",
		Short:         "Inspect and repair durably persisted JSON files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if viper.GetBool("verbose") {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
	}

	flags := root.PersistentFlags()
	flags.Int("backups", safefile.DefaultBackupCount, "size of the backup ring")
	flags.Duration("lock-timeout", safefile.DefaultLockTimeout, "how long to wait for the file lock")
	flags.Bool("fsync", true, "force writes to stable storage")
	flags.BoolP("verbose", "v", false, "enable debug logging")

	viper.SetEnvPrefix("SAFEFILE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	for _, name := range []string{"backups", "lock-timeout", "fsync", "verbose"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}

	root.AddCommand(
		newCatCmd(),
		newInspectCmd(),
		newBackupsCmd(),
		newRestoreCmd(),
		newCleanCmd(),
	)
	return root
}

func newManager(path string) (*safefile.Manager, error) {
	return safefile.New(path,
		safefile.WithBackupCount(viper.GetInt("backups")),
		safefile.WithLockTimeout(viper.GetDuration("lock-timeout")),
		safefile.WithFsync(viper.GetBool("fsync")),
	)
}

func newCatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat <file>",
		Short: "Print a managed file's content, recovering from backups if needed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newManager(args[0])
			if err != nil {
				return err
			}
			var v any
			info, err := m.Load(&v)
			if err != nil {
				return err
			}
			if info.Recovered() {
				logrus.WithFields(logrus.Fields{
					"slot":   info.RecoveredSlot,
					"backup": info.Path,
				}).Warn("content recovered from backup; the main file is corrupt")
			}
			out, err := json.MarshalIndent(v, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

func newInspectCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Report on a managed file, its lock, backups, and stale temps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newManager(args[0])
			if err != nil {
				return err
			}
			info, err := m.Inspect()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if asJSON {
				out, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(w, string(out))
				return nil
			}
			fmt.Fprintf(w, "path:    %s\n", info.Path)
			fmt.Fprintf(w, "exists:  %t\n", info.Exists)
			if info.Exists {
				fmt.Fprintf(w, "size:    %d\n", info.Size)
				fmt.Fprintf(w, "mtime:   %s\n", info.ModTime.Format(time.RFC3339))
			}
			fmt.Fprintf(w, "locked:  %t\n", info.Locked)
			fmt.Fprintf(w, "backups: %d\n", len(info.Backups))
			for _, b := range info.Backups {
				fmt.Fprintf(w, "  [%d] %s (%d bytes, %s)\n", b.Slot, b.Path, b.Size, b.ModTime.Format(time.RFC3339))
			}
			for _, p := range info.StaleTemps {
				fmt.Fprintf(w, "stale temp: %s\n", p)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit machine-readable output")
	return cmd
}

func newBackupsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backups <file>",
		Short: "List the backup ring, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newManager(args[0])
			if err != nil {
				return err
			}
			info, err := m.Inspect()
			if err != nil {
				return err
			}
			if len(info.Backups) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no backups")
				return nil
			}
			for _, b := range info.Backups {
				fmt.Fprintf(cmd.OutOrStdout(), "[%d] %s (%d bytes, %s)\n",
					b.Slot, b.Path, b.Size, b.ModTime.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func newRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <file> <slot>",
		Short: "Promote a backup slot to the main file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid slot %q: %w", args[1], err)
			}
			m, err := newManager(args[0])
			if err != nil {
				return err
			}
			if err := m.Restore(slot); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %s from backup slot %d\n", args[0], slot)
			return nil
		},
	}
}

func newCleanCmd() *cobra.Command {
	var (
		dryRun bool
		minAge time.Duration
	)
	cmd := &cobra.Command{
		Use:   "clean <file>",
		Short: "Remove temp files orphaned by interrupted writes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newManager(args[0])
			if err != nil {
				return err
			}
			report, err := m.CleanStaleTemps(safefile.Cleaner{MinAge: minAge, DryRun: dryRun})
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			verb := "removed"
			if dryRun {
				verb = "would remove"
			}
			for _, p := range report.Removed {
				fmt.Fprintf(w, "%s %s\n", verb, p)
			}
			for _, p := range report.Skipped {
				fmt.Fprintf(w, "skipped %s\n", p)
			}
			if len(report.Removed) == 0 && len(report.Skipped) == 0 {
				fmt.Fprintln(w, "nothing to clean")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report without deleting")
	cmd.Flags().DurationVar(&minAge, "min-age", 0, "minimum temp file age to treat as orphaned (default 1h)")
	return cmd
}
