package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Create a leapingest.yaml with default settings",
		Long: `Create a leapingest.yaml configuration file and a .gitignore that
excludes the local database and download cache.`,
		Example: `  # Initialize in current directory
  leapingest init

  # Force overwrite existing config
  leapingest init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runInit(cmd, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")

	return cmd
}

func runInit(cmd *cobra.Command, dir string, force bool) error {
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	if _, err := os.Stat(filepath.Join(dir, "leapingest.yaml")); err == nil && !force {
		return fmt.Errorf("leapingest.yaml already exists. Use --force to overwrite")
	}

	written, err := copyTemplate("default", dir, force)
	if err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	out := cmd.OutOrStdout()
	for _, f := range written {
		_, _ = fmt.Fprintf(out, "  created %s\n", f)
	}
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out, "Next steps:")
	_, _ = fmt.Fprintln(out, "  1. Adjust leapingest.yaml")
	_, _ = fmt.Fprintln(out, "  2. Run 'leapingest import ipeds' to load institutions")
	_, _ = fmt.Fprintln(out, "  3. Run 'leapingest import scholarships' to load the scholarship directory")

	return nil
}
