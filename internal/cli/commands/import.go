package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/leapstack-labs/leapingest/internal/fetch"
	"github.com/leapstack-labs/leapingest/internal/ipeds"
	"github.com/leapstack-labs/leapingest/internal/scholarship"
	"github.com/leapstack-labs/leapingest/internal/store"
	"github.com/spf13/cobra"
)

// Dataset names recorded in the run ledger.
const (
	DatasetIPEDS        = "ipeds"
	DatasetScholarships = "scholarships"
)

// NewImportCommand creates the import command.
func NewImportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a dataset into the database",
		Long: `Import one of the supported datasets into the database.

Each import is recorded in the run ledger with its row counters. Use
'leapingest runs' to list previous imports.`,
	}

	cmd.AddCommand(newImportIPEDSCommand())
	cmd.AddCommand(newImportScholarshipsCommand())

	return cmd
}

func newImportIPEDSCommand() *cobra.Command {
	var year int

	cmd := &cobra.Command{
		Use:   "ipeds",
		Short: "Import the IPEDS institutional survey files",
		Long: `Download the IPEDS survey files for a year and import them.

The directory file (HD) creates institutions; the other files update them.
The completions file (C_A) rebuilds every program. Files are imported in a
fixed order regardless of --only.`,
		Example: `  # Import every survey file for the configured year
  leapingest import ipeds

  # Re-import the directory and financial aid files for 2016
  leapingest import ipeds --only HD,SFA --year 2016

  # Use previously downloaded files
  leapingest import ipeds --skip-download`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			year, err = resolveYear(cmd, year, cc.Cfg.IPEDS.Year)
			if err != nil {
				return err
			}

			imp := &ipeds.Importer{
				Institutions: cc.Store.Institutions(),
				Programs:     cc.Store.Programs(),
				Fetcher:      fetch.New(cc.Cfg.FetchConfig(), cc.Logger),
				Logger:       cc.Logger,
				Year:         year,
			}

			var summary *ipeds.Summary
			err = recordRun(cmd.Context(), cc.Store, cc.Logger, DatasetIPEDS, func(ctx context.Context) (store.RunStats, error) {
				var err error
				summary, err = imp.Import(ctx, cc.Cfg.IPEDS.Only)
				if summary == nil {
					return store.RunStats{}, err
				}
				return summary.Total, err
			})
			if summary != nil {
				renderIPEDSSummary(cmd.OutOrStdout(), summary)
			}
			if err == nil {
				reportCount(cmd.Context(), cmd.OutOrStdout(), cc.Logger, "institutions", cc.Store.Institutions())
			}
			return err
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "Survey year (default from config)")
	cmd.Flags().StringSlice("only", nil, "Import only these files (HD,IC,IC_AY,ADM,EFFY,EF_D,GR,C_A,SFA)")
	cmd.Flags().Bool("skip-download", false, "Use cached files instead of downloading")

	_ = cmd.RegisterFlagCompletionFunc("only", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		var tags []string
		for _, f := range ipeds.Files(0) {
			tags = append(tags, string(f.Tag))
		}
		return tags, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func newImportScholarshipsCommand() *cobra.Command {
	var year int

	cmd := &cobra.Command{
		Use:   "scholarships",
		Short: "Import the Peterson's scholarship directory",
		Long: `Import the Peterson's scholarship directory from the data directory.

The three directory files must be sorted by scholarship id and have the same
number of rows. Scholarships missing from the files are deleted afterwards.`,
		Example: `  leapingest import scholarships --data-dir data/petersons_scholarships --year 2017`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			year, err = resolveYear(cmd, year, cc.Cfg.Scholarships.Year)
			if err != nil {
				return err
			}

			imp := &scholarship.Importer{
				Scholarships: cc.Store.Scholarships(),
				Logger:       cc.Logger,
				DataDir:      cc.Cfg.DataDir,
				Year:         year,
				AllowUneven:  cc.Cfg.Scholarships.AllowUneven,
			}

			var (
				stats store.RunStats
				ran   bool
			)
			err = recordRun(cmd.Context(), cc.Store, cc.Logger, DatasetScholarships, func(ctx context.Context) (store.RunStats, error) {
				res, err := imp.Import(ctx)
				if res != nil {
					ran = true
					stats = store.RunStats{
						Read:     res.Rows,
						Imported: res.Upserted,
						Skipped:  res.Skipped,
						Failed:   res.Failed,
						Deleted:  res.Deleted,
					}
				}
				return stats, err
			})
			if ran {
				renderStats(cmd.OutOrStdout(), []statsRow{{Name: "scholarships", Stats: stats}}, nil)
			}
			if err == nil {
				reportCount(cmd.Context(), cmd.OutOrStdout(), cc.Logger, "scholarships", cc.Store.Scholarships())
			}
			return err
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "Directory year (default from config)")
	cmd.Flags().Bool("allow-uneven", false, "Continue when the directory files have different row counts")

	return cmd
}

// reportCount prints how many records the table holds after an import.
func reportCount(ctx context.Context, w io.Writer, logger *slog.Logger, noun string, table *store.EntityTable) {
	n, err := table.Count(ctx)
	if err != nil {
		logger.Warn("failed to count records", "table", noun, "error", err)
		return
	}
	_, _ = fmt.Fprintf(w, "%d %s in database\n", n, noun)
}

// recordRun wraps an import in a ledger entry. The entry is completed even
// when ctx has been cancelled.
func recordRun(ctx context.Context, ledger store.RunLedger, logger *slog.Logger, dataset string, fn func(context.Context) (store.RunStats, error)) error {
	run, err := ledger.CreateRun(ctx, dataset)
	if err != nil {
		return err
	}
	logger.Info("import started", "dataset", dataset, "run", run.ID)

	stats, runErr := fn(ctx)

	status, errMsg := store.RunStatusCompleted, ""
	if runErr != nil {
		status, errMsg = store.RunStatusFailed, runErr.Error()
	}
	if err := ledger.CompleteRun(context.WithoutCancel(ctx), run.ID, status, stats, errMsg); err != nil {
		logger.Error("failed to record import run", "run", run.ID, "error", err)
		if runErr == nil {
			return fmt.Errorf("failed to record import run: %w", err)
		}
	}

	logger.Info("import finished", "dataset", dataset, "run", run.ID, "status", string(status))
	return runErr
}
