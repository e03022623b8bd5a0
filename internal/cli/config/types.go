// Package config provides configuration management for the leapingest CLI.
package config

import "time"

// Config holds all CLI configuration options.
type Config struct {
	Database     DatabaseConfig     `koanf:"database" yaml:"database"`
	CacheDir     string             `koanf:"cache_dir" yaml:"cache_dir"`
	DataDir      string             `koanf:"data_dir" yaml:"data_dir"`
	Verbose      bool               `koanf:"verbose" yaml:"verbose"`
	LogFormat    string             `koanf:"log_format" yaml:"log_format"`
	IPEDS        IPEDSConfig        `koanf:"ipeds" yaml:"ipeds"`
	Scholarships ScholarshipsConfig `koanf:"scholarships" yaml:"scholarships"`
}

// DatabaseConfig selects and addresses the store.
type DatabaseConfig struct {
	Driver   string `koanf:"driver" yaml:"driver"`
	Path     string `koanf:"path" yaml:"path,omitempty"`
	Host     string `koanf:"host" yaml:"host,omitempty"`
	Port     int    `koanf:"port" yaml:"port,omitempty"`
	User     string `koanf:"user" yaml:"user,omitempty"`
	Password string `koanf:"password" yaml:"password,omitempty"`
	Name     string `koanf:"name" yaml:"name,omitempty"`
	SSLMode  string `koanf:"sslmode" yaml:"sslmode,omitempty"`
}

// IPEDSConfig controls the IPEDS download and import.
type IPEDSConfig struct {
	BaseURL             string        `koanf:"base_url" yaml:"base_url"`
	Year                int           `koanf:"year" yaml:"year"`
	Only                []string      `koanf:"only" yaml:"only,omitempty"`
	DownloadConcurrency int           `koanf:"download_concurrency" yaml:"download_concurrency"`
	RetryMax            int           `koanf:"retry_max" yaml:"retry_max"`
	Timeout             time.Duration `koanf:"timeout" yaml:"timeout"`
	SkipDownload        bool          `koanf:"skip_download" yaml:"skip_download"`
}

// ScholarshipsConfig controls the Peterson's directory import.
type ScholarshipsConfig struct {
	Year        int  `koanf:"year" yaml:"year"`
	AllowUneven bool `koanf:"allow_uneven" yaml:"allow_uneven"`
}

// Default configuration values.
const (
	DefaultDriver       = "sqlite"
	DefaultDatabasePath = ".leapingest/leapingest.db"
	DefaultCacheDir     = ".leapingest/cache"
	DefaultDataDir      = "data/petersons_scholarships"
	DefaultLogFormat    = "text"
	DefaultIPEDSBaseURL = "https://nces.ed.gov/ipeds/datacenter/data/"
	DefaultIPEDSYear    = 2015
	DefaultConcurrency  = 3
	DefaultRetryMax     = 3
	DefaultTimeout      = 10 * time.Minute
	DefaultScholarYear  = 2017
	DefaultEnvPrefix    = "LEAPINGEST_"
)

// Redacted returns a copy of c with secrets masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	out.IPEDS.Only = append([]string(nil), c.IPEDS.Only...)
	if out.Database.Password != "" {
		out.Database.Password = "********"
	}
	return &out
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Database:  DatabaseConfig{Driver: DefaultDriver, Path: DefaultDatabasePath},
		CacheDir:  DefaultCacheDir,
		DataDir:   DefaultDataDir,
		LogFormat: DefaultLogFormat,
		IPEDS: IPEDSConfig{
			BaseURL:             DefaultIPEDSBaseURL,
			Year:                DefaultIPEDSYear,
			DownloadConcurrency: DefaultConcurrency,
			RetryMax:            DefaultRetryMax,
			Timeout:             DefaultTimeout,
		},
		Scholarships: ScholarshipsConfig{Year: DefaultScholarYear},
	}
}
