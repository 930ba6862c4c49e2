package cmd

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/wesm/pmmail2eml/internal/mime"
	"github.com/wesm/pmmail2eml/internal/pmmail"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [target]",
	Short: "Check that converted .eml files parse as mail",
	Long: `Parse every .eml file under a converted tree and report how many read
cleanly, how many parsed with warnings and how many could not be parsed.

Files salvaged from unrecognized binary messages usually show up as
warnings or unparseable. With --verbose every file is listed with its
sender, recipient and attachment counts, plus any parser findings.

Examples:
  pmmail2eml verify ~/Mail/pmmail
  pmmail2eml verify -v ~/Mail/pmmail`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := argOr(args, 0, cfg.Convert.TargetDir)
		if target == "" {
			return fmt.Errorf("target directory is required (argument or [convert] target_dir in %s)",
				cfg.ConfigFilePath())
		}
		if !pmmail.IsDir(target) {
			return fmt.Errorf("%s is not a directory", target)
		}

		out := cmd.OutOrStdout()
		counts := make(map[mime.Status]int)
		var recipients, attachments, inline int
		err := filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				logger.Warn("skipping unreadable path", "path", path, "error", err)
				return nil
			}
			if !d.Type().IsRegular() || !strings.EqualFold(filepath.Ext(path), pmmail.OutputExt) {
				return nil
			}
			if err := cmd.Context().Err(); err != nil {
				return err
			}

			raw, err := os.ReadFile(path)
			if err != nil {
				logger.Warn("read failed", "path", path, "error", err)
				counts[mime.StatusUnparseable]++
				return nil
			}
			r := mime.Inspect(raw)
			counts[r.Status]++
			recipients += r.Recipients
			attachments += r.Attachments
			inline += r.Inline
			if verbose {
				printReport(out, target, path, r)
			}
			return nil
		})
		if err != nil {
			return err
		}

		total := counts[mime.StatusOK] + counts[mime.StatusWarnings] + counts[mime.StatusUnparseable]
		fmt.Fprintf(out, "Checked %d files.\n", total)
		fmt.Fprintf(out, "  OK:            %d\n", counts[mime.StatusOK])
		fmt.Fprintf(out, "  Warnings:      %d\n", counts[mime.StatusWarnings])
		fmt.Fprintf(out, "  Unparseable:   %d\n", counts[mime.StatusUnparseable])
		fmt.Fprintf(out, "Recipients:      %d\n", recipients)
		fmt.Fprintf(out, "Attachments:     %d (%d inline)\n", attachments, inline)
		return nil
	},
}

func printReport(w io.Writer, target, path string, r mime.Report) {
	rel, err := filepath.Rel(target, path)
	if err != nil {
		rel = path
	}
	line := fmt.Sprintf("%-12s %s: from=%s recipients=%d attachments=%d body=%d",
		r.Status, filepath.ToSlash(rel), r.From.Email, r.Recipients, r.Attachments, r.BodyChars)
	if len(r.Findings) > 0 {
		line += " (" + strings.Join(r.Findings, "; ") + ")"
	}
	fmt.Fprintln(w, line)
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
