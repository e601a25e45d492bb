package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ashureev/ideation-study/internal/assignment"
)

func newAssignCmd(open opener) *cobra.Command {
	var lookupOnly bool

	cmd := &cobra.Command{
		Use:   "assign <participant-id>...",
		Short: "Resolve or assign participants' conditions",
		Long: `Resolve each participant's condition, assigning one with the
same quota-balanced rule the server uses if none exists yet.

With --lookup, existing assignments are printed and nothing is written.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := open()
			if err != nil {
				return err
			}
			defer func() { _ = repo.Close() }()

			engine := assignment.NewEngine(repo)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PARTICIPANT\tPLANNING\tFEEDBACK")

			for _, pid := range args {
				if lookupOnly {
					a, err := engine.Lookup(cmd.Context(), pid)
					if err != nil {
						return fmt.Errorf("looking up %s: %w", pid, err)
					}
					if a == nil {
						fmt.Fprintf(w, "%s\t-\t-\n", pid)
						continue
					}
					fmt.Fprintf(w, "%s\t%s\t%s\n", pid, a.Cell.Planning, a.Cell.Feedback)
					continue
				}

				cell, err := engine.ResolveOrAssign(cmd.Context(), pid)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", pid, cell.Planning, cell.Feedback)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&lookupOnly, "lookup", false, "Only print existing assignments")

	return cmd
}
