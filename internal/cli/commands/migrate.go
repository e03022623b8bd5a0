package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Long: `Apply the embedded schema migrations to the configured database.

Import commands migrate automatically; this command is useful to prepare a
database ahead of time or to check its schema version.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := NewCommandContextWithoutStore(cmd)
			s, err := openStore(cmd.Context(), cc.Cfg, cc.Logger)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			before, err := s.MigrationVersion(cmd.Context())
			if err != nil {
				return err
			}
			if err := s.Migrate(cmd.Context()); err != nil {
				return err
			}
			after, err := s.MigrationVersion(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if before == after {
				_, _ = fmt.Fprintf(out, "Database is up to date (version %d)\n", after)
				return nil
			}
			_, _ = fmt.Fprintf(out, "Migrated database from version %d to %d\n", before, after)
			return nil
		},
	}
}
