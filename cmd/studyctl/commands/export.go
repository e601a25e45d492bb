package commands

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashureev/ideation-study/internal/export"
)

func newExportCmd(open opener) *cobra.Command {
	var (
		table string
		out   string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export one table as CSV, or every table as a ZIP",
		Long: `Export study data for analysis.

With --table, writes that table as CSV (stdout unless --out is given).
Without --table, writes every table into a ZIP archive named
export_<timestamp>.zip unless --out is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := open()
			if err != nil {
				return err
			}
			defer func() { _ = repo.Close() }()

			now := time.Now()
			if table == "" && out == "" {
				out = export.ZipName(now)
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("creating %s: %w", out, err)
				}
				defer func() { _ = f.Close() }()
				w = f
			}

			if table != "" {
				err = export.Table(cmd.Context(), w, repo, table)
			} else {
				err = export.Zip(cmd.Context(), w, repo, now)
			}
			if err != nil {
				return err
			}

			if out != "" && out != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", out)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&table, "table", "t", "", "Table to export as CSV")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (\"-\" for stdout)")

	return cmd
}
