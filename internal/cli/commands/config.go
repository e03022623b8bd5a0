package commands

import (
	"fmt"

	"github.com/leapstack-labs/leapingest/internal/cli/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewConfigCommand creates the config command.
func NewConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long: `Print the configuration after applying defaults, the config file,
LEAPINGEST_* environment variables and flags. The database password is
redacted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := getConfig()

			data, err := yaml.Marshal(cfg.Redacted())
			if err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}

			out := cmd.OutOrStdout()
			if file := config.GetConfigFileUsed(); file != "" {
				_, _ = fmt.Fprintf(out, "# config file: %s\n", file)
			}
			_, err = out.Write(data)
			return err
		},
	}
}
