// Package commands implements the studyctl admin CLI.
package commands

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ashureev/ideation-study/internal/store"
)

const defaultDBPath = "./data/experiment.db"

// NewRootCmd creates the studyctl root command.
func NewRootCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "studyctl",
		Short: "Inspect and export ideation study data",
		Long: `studyctl works directly on the study database.

Examples:
  studyctl counts
  studyctl export --table chat_log --out chat_log.csv
  studyctl export --out all.zip
  studyctl assign 3f1c2b9e-...`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			_ = godotenv.Load()
			if !cmd.Flags().Changed("db") {
				if env := os.Getenv("DB_PATH"); env != "" {
					dbPath = env
				}
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&dbPath, "db", defaultDBPath, "Path to the SQLite database (env DB_PATH)")

	open := func() (store.Repository, error) {
		repo, err := store.NewSQLite(dbPath)
		if err != nil {
			return nil, fmt.Errorf("opening database %s: %w", dbPath, err)
		}
		return repo, nil
	}

	cmd.AddCommand(newCountsCmd(open))
	cmd.AddCommand(newExportCmd(open))
	cmd.AddCommand(newAssignCmd(open))

	return cmd
}

// opener opens the repository selected by the root flags.
type opener func() (store.Repository, error)

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
