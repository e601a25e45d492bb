package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ashureev/ideation-study/internal/domain"
	"github.com/ashureev/ideation-study/internal/store"
)

func newCountsCmd(open opener) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "counts",
		Short: "Show row counts per table and participants per cell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := open()
			if err != nil {
				return err
			}
			defer func() { _ = repo.Close() }()

			ctx := cmd.Context()
			tables, err := repo.TableCounts(ctx)
			if err != nil {
				return fmt.Errorf("counting tables: %w", err)
			}
			cells, err := repo.CountAssignments(ctx)
			if err != nil {
				return fmt.Errorf("counting cells: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				byCell := make(map[string]int, len(cells))
				for _, c := range domain.AllCells() {
					byCell[c.String()] = cells[c]
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]interface{}{
					"tables": tables,
					"cells":  byCell,
				})
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TABLE\tROWS")
			for _, t := range store.ExportTables {
				fmt.Fprintf(w, "%s\t%d\n", t, tables[t])
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, "CELL\tPARTICIPANTS")
			for _, c := range domain.AllCells() {
				fmt.Fprintf(w, "%s\t%d\n", c, cells[c])
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	return cmd
}
