// Package scholarship imports the Peterson's scholarship directory.
//
// The directory ships as three CSV files with one row per scholarship, all
// sorted by scholarship id, plus tab-separated code tables. The files are
// read in lock step and merged into a single record per scholarship.
package scholarship

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/leapstack-labs/leapingest/internal/correlate"
	"github.com/leapstack-labs/leapingest/internal/lookup"
	"github.com/leapstack-labs/leapingest/internal/source"
)

// Importer runs the scholarship import.
type Importer struct {
	// Scholarships receives merged records and prunes the ones not seen.
	Scholarships correlate.Sink
	Logger       *slog.Logger
	// DataDir holds the directory files and side tables.
	DataDir string
	Year    int
	// AllowUneven continues to stale deletion when the files have different
	// row counts.
	AllowUneven bool
}

// Import loads the side tables, correlates the directory files and deletes
// scholarships that are no longer listed.
func (imp *Importer) Import(ctx context.Context) (*correlate.Result, error) {
	logger := imp.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	logger.Info("loading side tables", slog.String("dir", imp.DataDir))
	tables, err := lookup.Load(imp.DataDir, SideTables(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load side tables: %w", err)
	}

	files, err := Files(imp.Year, tables)
	if err != nil {
		return nil, err
	}

	inputs := make([]correlate.Input, 0, len(files))
	for _, f := range files {
		r, err := source.Open(filepath.Join(imp.DataDir, f.Filename), source.Options{})
		if err != nil {
			closeInputs(inputs)
			return nil, err
		}
		inputs = append(inputs, correlate.Input{Name: f.Filename, Cursor: r, Mapping: f.Mapping})
	}
	defer closeInputs(inputs)

	logger.Info("importing scholarships", slog.Int("year", imp.Year))
	driver := &correlate.Driver{
		KeyAttribute: KeyAttribute,
		Sink:         &pruneLogger{Sink: imp.Scholarships, logger: logger},
		Logger:       logger,
		AllowUneven:  imp.AllowUneven,
	}
	return driver.Run(ctx, inputs...)
}

func closeInputs(inputs []correlate.Input) {
	for _, in := range inputs {
		if r, ok := in.Cursor.(*source.Reader); ok {
			_ = r.Close()
		}
	}
}

// pruneLogger reports how many scholarships a run removes.
type pruneLogger struct {
	correlate.Sink
	logger *slog.Logger
}

func (p *pruneLogger) DeleteAllExcept(ctx context.Context, keep map[string]struct{}) (int, error) {
	n, err := p.Sink.DeleteAllExcept(ctx, keep)
	if err != nil {
		return n, err
	}
	p.logger.Info(fmt.Sprintf("removed %d scholarship(s) from the database", n))
	return n, nil
}
