package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/wesm/pmmail2eml/internal/pmmail"
)

var listFoldersCmd = &cobra.Command{
	Use:   "list-folders [source]",
	Short: "Show the display name decoded for each account and folder",
	Long: `List every account (.ACT) and folder (.FLD) directory of a PMMail 2000
archive together with the display name read from its ACCT.INI or
FOLDER.INI. These are the directory names convert will use.

Examples:
  pmmail2eml list-folders "/mnt/c/PMMail"`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source := argOr(args, 0, cfg.Convert.SourceDir)
		if source == "" {
			return fmt.Errorf("source directory is required (argument or [convert] source_dir in %s)",
				cfg.ConfigFilePath())
		}
		if !pmmail.IsDir(source) {
			return fmt.Errorf("%s is not a directory", source)
		}

		names, err := pmmail.BuildNameMap(source, &pmmail.Decoder{Logger: logger})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		nodes := names.Nodes()
		if len(nodes) == 0 {
			fmt.Fprintln(out, "No accounts or folders found.")
			return nil
		}

		fmt.Fprintf(out, "%-8s  %-40s  %s\n", "KIND", "DIRECTORY", "NAME")
		for _, n := range nodes {
			rel, err := filepath.Rel(source, n.Path)
			if err != nil {
				rel = n.Path
			}
			fmt.Fprintf(out, "%-8s  %-40s  %s\n", n.Kind, filepath.ToSlash(rel), n.Name)
		}
		fmt.Fprintf(out, "\n%d entries\n", len(nodes))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listFoldersCmd)
}
