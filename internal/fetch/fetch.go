// Package fetch downloads IPEDS survey archives and extracts their CSV files
// into a local cache.
package fetch

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/sync/errgroup"
)

// ErrDownload is returned when an archive cannot be downloaded or extracted.
var ErrDownload = errors.New("download failed")

// Defaults.
const (
	DefaultBaseURL     = "https://nces.ed.gov/ipeds/datacenter/data/"
	DefaultRetryMax    = 3
	DefaultTimeout     = 10 * time.Minute
	DefaultConcurrency = 3
)

// revisedSuffix marks the revised release of a survey file inside an archive.
const revisedSuffix = "_rv.csv"

// Config controls where archives come from and where CSVs land.
type Config struct {
	BaseURL     string
	CacheDir    string
	Concurrency int
	RetryMax    int
	Timeout     time.Duration
	// SkipDownload uses CSVs already in CacheDir.
	SkipDownload bool
}

// Fetcher downloads and extracts survey archives.
type Fetcher struct {
	cfg    Config
	client *retryablehttp.Client
	logger *slog.Logger
}

// New creates a Fetcher, filling unset config values with defaults.
// If logger is nil, a discard logger is used.
func New(cfg Config, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = DefaultRetryMax
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	client := retryablehttp.NewClient()
	client.RetryMax = cfg.RetryMax
	client.HTTPClient.Timeout = cfg.Timeout
	client.Logger = logger

	return &Fetcher{cfg: cfg, client: client, logger: logger}
}

// Path returns the cache location of the CSV for a survey file.
func (f *Fetcher) Path(name string) string {
	return filepath.Join(f.cfg.CacheDir, strings.ToLower(name)+".csv")
}

// Fetch makes the CSV for name available in the cache and returns its path.
func (f *Fetcher) Fetch(ctx context.Context, name string) (string, error) {
	target := f.Path(name)

	if f.cfg.SkipDownload {
		if _, err := os.Stat(target); err != nil {
			return "", fmt.Errorf("%w: %s: not in cache: %w", ErrDownload, name, err)
		}
		f.logger.Debug("using cached file", slog.String("file", name), slog.String("path", target))
		return target, nil
	}

	if err := os.MkdirAll(f.cfg.CacheDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create cache dir: %w", err)
	}

	url := f.cfg.BaseURL + name + ".zip"
	f.logger.Info("downloading", slog.String("file", name), slog.String("url", url))

	archive, err := f.download(ctx, url)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrDownload, name, err)
	}
	defer func() { _ = os.Remove(archive) }()

	entry, err := extract(archive, target)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrDownload, name, err)
	}

	f.logger.Debug("extracted", slog.String("file", name), slog.String("entry", entry), slog.String("path", target))
	return target, nil
}

// FetchAll fetches names in parallel and returns their paths by name.
// The first failure cancels the remaining downloads.
func (f *Fetcher) FetchAll(ctx context.Context, names []string) (map[string]string, error) {
	paths := make([]string, len(names))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.Concurrency)
	for i, name := range names {
		g.Go(func() error {
			p, err := f.Fetch(ctx, name)
			if err != nil {
				return err
			}
			paths[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := make(map[string]string, len(names))
	for i, name := range names {
		result[name] = paths[i]
	}
	return result, nil
}

// download stores the body of url in a temporary file in the cache dir.
func (f *Fetcher) download(ctx context.Context, url string) (string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}

	tmp, err := os.CreateTemp(f.cfg.CacheDir, "download-*.zip")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

// extract copies the survey CSV out of archive into target and returns the
// name of the entry used.
func extract(archive, target string) (string, error) {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return "", fmt.Errorf("failed to open archive: %w", err)
	}
	defer func() { _ = zr.Close() }()

	entry := selectEntry(zr.File)
	if entry == nil {
		return "", errors.New("archive contains no csv file")
	}

	src, err := entry.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", entry.Name, err)
	}
	defer func() { _ = src.Close() }()

	tmp, err := os.CreateTemp(filepath.Dir(target), "extract-*.csv")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, src); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to extract %s: %w", entry.Name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	return entry.Name, nil
}

// selectEntry prefers the revised release and falls back to the first CSV.
func selectEntry(files []*zip.File) *zip.File {
	var first *zip.File
	for _, file := range files {
		name := strings.ToLower(path.Base(file.Name))
		if !strings.HasSuffix(name, ".csv") {
			continue
		}
		if strings.HasSuffix(name, revisedSuffix) {
			return file
		}
		if first == nil {
			first = file
		}
	}
	return first
}
