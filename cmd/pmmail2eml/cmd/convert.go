package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/wesm/pmmail2eml/internal/classify"
	"github.com/wesm/pmmail2eml/internal/converter"
	"github.com/wesm/pmmail2eml/internal/fileutil"
	"github.com/wesm/pmmail2eml/internal/outlook"
	"github.com/wesm/pmmail2eml/internal/pmmail"
)

var (
	convertWorkers    int
	convertLogFile    string
	convertNoProgress bool
)

var convertCmd = &cobra.Command{
	Use:   "convert [source] [target]",
	Short: "Convert a PMMail 2000 archive into .eml files",
	Long: `Convert every message file of a PMMail 2000 archive into an .eml file.

The source is the PMMail data directory containing the *.ACT account
directories. The converted tree mirrors it, with each account and folder
directory renamed to the display name stored in its ACCT.INI or
FOLDER.INI. Existing .eml files are overwritten, so an interrupted run can
simply be repeated.

Messages PMMail saved in the Outlook compound-file format are rebuilt as
MIME messages. Plain-text messages are copied with invalid UTF-8 dropped.
Anything else keeps its first 4096 bytes and is logged as a warning.

Source and target default to [convert] source_dir and target_dir in the
config file.

Examples:
  pmmail2eml convert "/mnt/c/PMMail" ~/Mail/pmmail
  pmmail2eml convert --workers 4 --log-file /tmp/pmmail.log`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		source := argOr(args, 0, cfg.Convert.SourceDir)
		target := argOr(args, 1, cfg.Convert.TargetDir)
		if source == "" || target == "" {
			return fmt.Errorf("source and target directories are required (arguments or [convert] in %s)",
				cfg.ConfigFilePath())
		}

		workers := cfg.Convert.Workers
		if cmd.Flags().Changed("workers") {
			workers = convertWorkers
		}
		if workers < 1 {
			return fmt.Errorf("--workers must be at least 1")
		}

		out := cmd.OutOrStdout()

		// Nothing may be written when the source is missing, including
		// the run log.
		if !pmmail.IsDir(source) {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: source directory %s does not exist.\n", source)
			return fmt.Errorf("%w: %s", converter.ErrSourceNotFound, source)
		}

		logPath := convertLogFile
		if logPath == "" {
			logPath = cfg.LogFilePath(target)
		}
		if err := fileutil.MkdirAll(filepath.Dir(logPath)); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		logFile, err := fileutil.OpenAppend(logPath)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer logFile.Close()
		runLogger := newLogger(logFile)

		var progress converter.Progress = converter.NullProgress{}
		if !convertNoProgress {
			progress = newCLIProgress(cmd.ErrOrStderr())
		}

		summary, err := converter.Run(cmd.Context(), converter.Options{
			SourceDir: source,
			TargetDir: target,
			Workers:   workers,
			Parser:    outlook.NewConverter(runLogger),
			Logger:    runLogger,
			Progress:  progress,
		})
		if err != nil {
			return err
		}

		if summary.Interrupted {
			fmt.Fprintln(out, "Conversion interrupted. Run again to finish.")
		}
		fmt.Fprintf(out, "Done. Converted: %d, Errors: %d. Log: %s\n",
			summary.Converted, summary.Failed, logPath)
		if summary.Truncated > 0 {
			fmt.Fprintf(out, "  %d files were cut to their first %d bytes; see the log.\n",
				summary.Truncated, classify.SniffSize)
		}
		if summary.Collisions > 0 {
			fmt.Fprintf(out, "  %d files share an output path with an earlier file and overwrote it; see the log.\n",
				summary.Collisions)
		}
		if verbose {
			printKinds(out, summary)
		}

		if summary.Interrupted {
			return context.Canceled
		}
		if summary.Failed > 0 {
			return fmt.Errorf("%d of %d files failed to convert", summary.Failed, summary.Discovered)
		}
		return nil
	},
}

// printKinds breaks the discovered files down by detected format.
func printKinds(out io.Writer, s *converter.Summary) {
	for _, kind := range []classify.Kind{
		classify.KindCompound, classify.KindPlainText, classify.KindBinary, classify.KindUnknown,
	} {
		if n := s.ByKind[kind]; n > 0 {
			fmt.Fprintf(out, "  %-12s %d\n", kind.String()+":", n)
		}
	}
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().IntVar(&convertWorkers, "workers", 1, "number of files converted concurrently")
	convertCmd.Flags().StringVar(&convertLogFile, "log-file", "", "run log (default: <target>/conversion_log.txt)")
	convertCmd.Flags().BoolVar(&convertNoProgress, "no-progress", false, "do not show the progress bar")
}
