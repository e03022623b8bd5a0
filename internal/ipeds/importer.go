// Package ipeds imports the IPEDS institutional data release.
//
// Each survey file is walked row by row and dispatched on its tag: the
// directory file creates institutions, the other files update existing ones,
// the completions file rebuilds programs and the financial aid file
// reconciles counts and averages.
package ipeds

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leapingest/internal/correlate"
	"github.com/leapstack-labs/leapingest/internal/mapping"
	"github.com/leapstack-labs/leapingest/internal/source"
	"github.com/leapstack-labs/leapingest/internal/store"
	"github.com/leapstack-labs/leapingest/internal/transform"
)

// Fetcher makes survey CSVs available locally.
type Fetcher interface {
	FetchAll(ctx context.Context, names []string) (map[string]string, error)
}

// FileSummary holds the counters of one imported file.
type FileSummary struct {
	File  File
	Stats store.RunStats
}

// Summary holds the counters of an import.
type Summary struct {
	Files []FileSummary
	Total store.RunStats
}

// Importer runs the IPEDS import.
type Importer struct {
	Institutions store.EntityGateway
	Programs     store.ProgramGateway
	Fetcher      Fetcher
	Logger       *slog.Logger
	Year         int
}

// Import fetches the selected files and imports them in order. An empty only
// imports every file.
func (imp *Importer) Import(ctx context.Context, only []string) (*Summary, error) {
	files, err := Select(Files(imp.Year), only)
	if err != nil {
		return nil, err
	}

	paths, err := imp.Fetcher.FetchAll(ctx, Names(files))
	if err != nil {
		return nil, fmt.Errorf("aborting import as not all files were downloaded: %w", err)
	}

	d := imp.dispatcher()
	summary := &Summary{}
	for _, f := range files {
		stats, err := d.importPath(ctx, f, paths[f.Name])
		summary.Files = append(summary.Files, FileSummary{File: f, Stats: stats})
		summary.Total.Add(stats)
		if err != nil {
			return summary, err
		}
	}
	return summary, nil
}

func (imp *Importer) dispatcher() *dispatcher {
	logger := imp.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &dispatcher{
		institutions: imp.Institutions,
		programs:     imp.Programs,
		mappings:     Mappings(),
		logger:       logger,
	}
}

// outcome is the result of handling one row.
type outcome int

const (
	imported outcome = iota
	skipped
	failed
)

// dispatcher routes rows to the handler for their file. It carries the
// per-run state shared across files.
type dispatcher struct {
	institutions store.EntityGateway
	programs     store.ProgramGateway
	mappings     map[Tag]mapping.FieldMapping
	logger       *slog.Logger

	programsReset bool
}

func (d *dispatcher) importPath(ctx context.Context, f File, path string) (store.RunStats, error) {
	if path == "" {
		return store.RunStats{}, fmt.Errorf("%s: no local file", f.Name)
	}
	r, err := source.Open(path, source.Options{})
	if err != nil {
		return store.RunStats{}, err
	}
	defer func() { _ = r.Close() }()

	d.logger.Info("importing", slog.String("file", f.Name), slog.String("path", path))
	return d.importFile(ctx, f, r)
}

// importFile walks every row of cursor through the handler for f.
func (d *dispatcher) importFile(ctx context.Context, f File, cursor correlate.Cursor) (store.RunStats, error) {
	var stats store.RunStats

	n, err := correlate.Walk(ctx, cursor, func(row source.Row) error {
		switch d.handle(ctx, f.Tag, row, &stats) {
		case imported:
			stats.Imported++
		case skipped:
			stats.Skipped++
		case failed:
			stats.Failed++
		}
		return nil
	})
	stats.Read = n
	if err != nil {
		return stats, fmt.Errorf("%s: %w", f.Name, err)
	}

	d.logger.Info("imported file",
		slog.String("file", f.Name),
		slog.Int("read", stats.Read),
		slog.Int("imported", stats.Imported),
		slog.Int("skipped", stats.Skipped),
		slog.Int("failed", stats.Failed))
	return stats, nil
}

func (d *dispatcher) handle(ctx context.Context, tag Tag, row source.Row, stats *store.RunStats) outcome {
	switch tag {
	case TagHD:
		return d.importAttributes(ctx, mapping.MapRow(row, d.mappings[TagHD]), true)
	case TagEFFY:
		// EFFYLEV 2 is the undergraduate total
		if transform.Atoi(row.Value("EFFYLEV")) != 2 {
			return skipped
		}
		return d.importAttributes(ctx, mapping.MapRow(row, d.mappings[TagEFFY]), false)
	case TagGR:
		return d.handleGraduationRate(ctx, row)
	case TagCA:
		if !d.programsReset {
			d.programsReset = true
			d.logger.Info("resetting programs before re-importing")
			n, err := d.programs.DeleteAllPrograms(ctx)
			if err != nil {
				d.logger.Error("failed to reset programs", slog.Any("error", err))
				return failed
			}
			stats.Deleted += n
		}
		return d.handleCompletion(ctx, row)
	case TagSFA:
		return d.handleFinancialAid(ctx, row)
	default:
		m, ok := d.mappings[tag]
		if !ok {
			d.logger.Error("no mapping for file", slog.String("tag", string(tag)))
			return failed
		}
		return d.importAttributes(ctx, mapping.MapRow(row, m), false)
	}
}

// importAttributes writes attrs to the institution they identify. Unless
// create is set, institutions that do not exist are skipped.
func (d *dispatcher) importAttributes(ctx context.Context, attrs mapping.AttributeSet, create bool) outcome {
	id := attrs.String(KeyAttribute)
	if id == "" {
		d.logger.Warn("skipping row without " + KeyColumn)
		return skipped
	}

	var (
		inst *store.Entity
		err  error
	)
	if create {
		inst, err = d.institutions.FindOrCreate(ctx, id)
	} else {
		inst, err = d.institutions.FindByExternalID(ctx, id)
	}
	if err != nil {
		d.logger.Error("failed to load institution", slog.String(KeyAttribute, id), slog.Any("error", err))
		return failed
	}
	if inst == nil {
		d.logger.Debug("skipping row as institution not found", slog.String(KeyAttribute, id))
		return skipped
	}

	if err := d.institutions.Update(ctx, inst, attrs); err != nil {
		d.logger.Error("failed to update institution", slog.String(KeyAttribute, id), slog.Any("error", err))
		return failed
	}
	return imported
}

func (d *dispatcher) handleGraduationRate(ctx context.Context, row source.Row) outcome {
	field, ok := graduationRateFields[transform.Atoi(row.Value("GRTYPE"))]
	if !ok {
		return skipped
	}
	attrs := mapping.AttributeSet{
		KeyAttribute: transform.TrimOrNull(row.Value(KeyColumn)),
		field:        transform.TrimOrNull(row.Value("GRTOTLT")),
	}
	return d.importAttributes(ctx, attrs, false)
}

// handleCompletion records the number of awards an institution conferred in
// one program at one award level.
func (d *dispatcher) handleCompletion(ctx context.Context, row source.Row) outcome {
	id := strings.TrimSpace(row.Value(KeyColumn))
	if id == "" {
		d.logger.Warn("skipping row without " + KeyColumn)
		return skipped
	}

	inst, err := d.institutions.FindByExternalID(ctx, id)
	if err != nil {
		d.logger.Error("failed to load institution", slog.String(KeyAttribute, id), slog.Any("error", err))
		return failed
	}
	if inst == nil {
		d.logger.Debug("skipping row as institution not found", slog.String(KeyAttribute, id))
		return skipped
	}

	cipCode := strings.TrimSpace(row.Value("CIPCODE"))
	level := strings.TrimSpace(row.Value("AWLEVEL"))
	program, err := d.programs.FindOrCreateProgram(ctx, inst.ID, cipCode, level)
	if err != nil {
		d.logger.Error("failed to load program",
			slog.String(KeyAttribute, id), slog.String("cip_code", cipCode), slog.Any("error", err))
		return failed
	}

	// awards are counted for first majors only
	if transform.Atoi(row.Value("MAJORNUM")) == 1 {
		if v, ok := transform.IntOrNull("CTOTALT")(row).(int64); ok {
			program.Awards = &v
		} else {
			program.Awards = nil
		}
	}

	if err := d.programs.SaveProgram(ctx, program); err != nil {
		d.logger.Error("failed to save program",
			slog.String(KeyAttribute, id), slog.String("cip_code", cipCode), slog.Any("error", err))
		return failed
	}
	return imported
}

func (d *dispatcher) handleFinancialAid(ctx context.Context, row source.Row) outcome {
	attrs, mismatches := MapFinancialAid(row)
	for _, m := range mismatches {
		d.logger.Warn(fmt.Sprintf("calculated average %d != %d for IPEDS ID %s",
			m.Calculated, m.Reported, attrs.String(KeyAttribute)),
			slog.String("field", m.Field))
	}
	return d.importAttributes(ctx, attrs, false)
}
