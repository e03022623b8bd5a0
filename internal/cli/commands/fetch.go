package commands

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/leapingest/internal/fetch"
	"github.com/leapstack-labs/leapingest/internal/ipeds"
	"github.com/spf13/cobra"
)

// NewFetchCommand creates the fetch command.
func NewFetchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download source files without importing them",
	}
	cmd.AddCommand(newFetchIPEDSCommand())
	return cmd
}

func newFetchIPEDSCommand() *cobra.Command {
	var year int

	cmd := &cobra.Command{
		Use:   "ipeds",
		Short: "Download the IPEDS survey files into the cache directory",
		Example: `  # Warm the cache, then import offline
  leapingest fetch ipeds --year 2015
  leapingest import ipeds --year 2015 --skip-download`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := NewCommandContextWithoutStore(cmd)
			var err error
			year, err = resolveYear(cmd, year, cc.Cfg.IPEDS.Year)
			if err != nil {
				return err
			}

			files, err := ipeds.Select(ipeds.Files(year), cc.Cfg.IPEDS.Only)
			if err != nil {
				return err
			}

			fetcher := fetch.New(cc.Cfg.FetchConfig(), cc.Logger)
			paths, err := fetcher.FetchAll(cmd.Context(), ipeds.Names(files))
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"File", "Tag", "Path"})
			for _, f := range files {
				t.AppendRow(table.Row{f.Name, string(f.Tag), paths[f.Name]})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "Survey year (default from config)")
	cmd.Flags().StringSlice("only", nil, "Download only these files")
	cmd.Flags().Bool("skip-download", false, "Only report files already in the cache")

	return cmd
}
