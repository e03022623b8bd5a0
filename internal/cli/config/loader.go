package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/leapstack-labs/leapingest/internal/fetch"
	"github.com/leapstack-labs/leapingest/internal/store"
	"github.com/spf13/pflag"
)

// loggerKey is used to store logger in context.
type loggerKey struct{}

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

var configFileNames = []string{"leapingest.yaml", "leapingest.yml"}

// flagKeys maps global flag names onto config keys where they differ.
var flagKeys = map[string]string{
	"database":      "database.path",
	"driver":        "database.driver",
	"only":          "ipeds.only",
	"skip-download": "ipeds.skip_download",
	"allow-uneven":  "scholarships.allow_uneven",
}

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config
)

// findConfigUpward searches upward from startDir for a leapingest config file.
func findConfigUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		for _, name := range configFileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"database.driver":            DefaultDriver,
		"database.path":              DefaultDatabasePath,
		"cache_dir":                  DefaultCacheDir,
		"data_dir":                   DefaultDataDir,
		"verbose":                    false,
		"log_format":                 DefaultLogFormat,
		"ipeds.base_url":             DefaultIPEDSBaseURL,
		"ipeds.year":                 DefaultIPEDSYear,
		"ipeds.download_concurrency": DefaultConcurrency,
		"ipeds.retry_max":            DefaultRetryMax,
		"ipeds.timeout":              DefaultTimeout.String(),
		"ipeds.skip_download":        false,
		"scholarships.year":          DefaultScholarYear,
		"scholarships.allow_uneven":  false,
	}
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
// Relative paths from the config file are resolved against its directory;
// relative paths given as flags stay relative to the working directory.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k = koanf.New(".")

	// 1. Load defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Find and load config file
	configFileUsed = cfgFile
	if configFileUsed == "" {
		if cwd, err := os.Getwd(); err == nil {
			configFileUsed = findConfigUpward(cwd)
		}
	}
	baseDir := ""
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
		if abs, err := filepath.Abs(configFileUsed); err == nil {
			baseDir = filepath.Dir(abs)
		}
	}

	// 3. Load environment variables (LEAPINGEST_ prefix)
	// Transform: LEAPINGEST_IPEDS__YEAR -> ipeds.year
	if err := k.Load(env.Provider(DefaultEnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Load flags (highest priority)
	var flagPaths map[string]bool
	if flags != nil {
		flagPaths = make(map[string]bool)
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key := flagKey(f.Name)
			flagPaths[key] = true
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			Result:           &cfg,
			WeaklyTypedInput: true,
		},
	}); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// 6. Resolve file-relative paths
	if baseDir != "" {
		if !flagPaths["database.path"] {
			cfg.Database.Path = resolvePathRelativeTo(cfg.Database.Path, baseDir)
		}
		if !flagPaths["cache_dir"] {
			cfg.CacheDir = resolvePathRelativeTo(cfg.CacheDir, baseDir)
		}
		if !flagPaths["data_dir"] {
			cfg.DataDir = resolvePathRelativeTo(cfg.DataDir, baseDir)
		}
	}

	cfg.Database.Driver = strings.ToLower(cfg.Database.Driver)
	expandDatabaseEnvVars(&cfg.Database)
	for i, tag := range cfg.IPEDS.Only {
		cfg.IPEDS.Only[i] = strings.ToUpper(strings.TrimSpace(tag))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	currentConfig = &cfg

	return &cfg, nil
}

// envKey maps LEAPINGEST_SECTION__FIELD to section.field.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, DefaultEnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// flagKey maps a kebab-case flag name to its config key.
func flagKey(name string) string {
	if key, ok := flagKeys[name]; ok {
		return key
	}
	return strings.ReplaceAll(name, "-", "_")
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the currently loaded configuration.
func GetCurrentConfig() *Config {
	return currentConfig
}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

// NewLogger builds the process logger for the configured format.
func NewLogger(w io.Writer, format string, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})
}

// expandDatabaseEnvVars expands environment variables in connection fields.
func expandDatabaseEnvVars(d *DatabaseConfig) {
	d.Host = expandEnvVars(d.Host)
	d.User = expandEnvVars(d.User)
	d.Password = expandEnvVars(d.Password)
	d.Name = expandEnvVars(d.Name)
	d.Path = expandEnvVars(d.Path)
}

// StoreConfig converts the database section for store.Open.
func (c *Config) StoreConfig() store.Config {
	return store.Config{
		Driver:   c.Database.Driver,
		Path:     c.Database.Path,
		Host:     c.Database.Host,
		Port:     c.Database.Port,
		User:     c.Database.User,
		Password: c.Database.Password,
		Name:     c.Database.Name,
		SSLMode:  c.Database.SSLMode,
	}
}

// FetchConfig converts the IPEDS section for fetch.New.
func (c *Config) FetchConfig() fetch.Config {
	return fetch.Config{
		BaseURL:      c.IPEDS.BaseURL,
		CacheDir:     c.CacheDir,
		Concurrency:  c.IPEDS.DownloadConcurrency,
		RetryMax:     c.IPEDS.RetryMax,
		Timeout:      c.IPEDS.Timeout,
		SkipDownload: c.IPEDS.SkipDownload,
	}
}
