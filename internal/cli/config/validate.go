package config

import (
	"fmt"
	"strings"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Database.Driver) {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown database driver %q\nHint: set database.driver in leapingest.yaml to sqlite or postgres", c.Database.Driver)
	}

	if c.CacheDir == "" {
		return fmt.Errorf("cache_dir is required")
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q (expected text or json)", c.LogFormat)
	}

	if err := ValidateYear("ipeds.year", c.IPEDS.Year); err != nil {
		return err
	}
	if err := ValidateYear("scholarships.year", c.Scholarships.Year); err != nil {
		return err
	}
	if c.IPEDS.DownloadConcurrency < 1 {
		return fmt.Errorf("ipeds.download_concurrency must be at least 1")
	}
	if c.IPEDS.RetryMax < 0 {
		return fmt.Errorf("ipeds.retry_max must not be negative")
	}

	return nil
}

// ValidateYear checks that year is a four-digit year. key names the setting
// or flag in the error.
func ValidateYear(key string, year int) error {
	if year < 2000 || year > 2099 {
		return fmt.Errorf("%s must be a four-digit year, got %d", key, year)
	}
	return nil
}
