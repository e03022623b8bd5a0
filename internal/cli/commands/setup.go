package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/leapingest/internal/cli/config"
	"github.com/leapstack-labs/leapingest/internal/store"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg    *config.Config
	Logger *slog.Logger
	Store  *store.SQLStore
}

// NewCommandContext opens the configured store and applies pending
// migrations. Returns the context and a cleanup function that must be called
// (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cc := NewCommandContextWithoutStore(cmd)

	s, err := openStore(cmd.Context(), cc.Cfg, cc.Logger)
	if err != nil {
		return nil, nil, err
	}
	if err := s.Migrate(cmd.Context()); err != nil {
		_ = s.Close()
		return nil, nil, err
	}
	cc.Store = s

	cleanup := func() {
		_ = s.Close()
	}
	return cc, cleanup, nil
}

// NewCommandContextWithoutStore creates a CommandContext without a store.
// Useful for commands that don't need database access.
func NewCommandContextWithoutStore(cmd *cobra.Command) *CommandContext {
	return &CommandContext{
		Cfg:    getConfig(),
		Logger: config.GetLogger(cmd.Context()),
	}
}

// getConfig returns the current configuration, or the defaults when no
// configuration was loaded.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return config.Default()
}

// openStore creates the SQLite directory when needed and connects.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*store.SQLStore, error) {
	sc := cfg.StoreConfig()
	if store.Dialect(sc.Driver) == store.DialectSQLite && sc.Path != "" && sc.Path != ":memory:" {
		dir := filepath.Dir(sc.Path)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}
	return store.Open(ctx, sc, logger)
}

// resolveYear returns the --year flag value when it was given, otherwise the
// configured year. Flag values are validated here because they bypass
// Config.Validate.
func resolveYear(cmd *cobra.Command, flagYear, configured int) (int, error) {
	if !cmd.Flags().Changed("year") {
		return configured, nil
	}
	if err := config.ValidateYear("--year", flagYear); err != nil {
		return 0, err
	}
	return flagYear, nil
}
