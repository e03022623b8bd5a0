// Package lookup holds the code-to-label side tables consulted while mapping
// rows. Tables are loaded completely before any mapping that uses them is
// built and are read-only afterwards.
package lookup

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapingest/internal/source"
)

// Table maps short codes to human readable labels.
type Table struct {
	name   string
	labels map[string]string
}

// NewTable builds a table from a code/label map. The map is copied.
func NewTable(name string, labels map[string]string) Table {
	m := make(map[string]string, len(labels))
	for k, v := range labels {
		m[k] = v
	}
	return Table{name: name, labels: m}
}

// Name returns the table name.
func (t Table) Name() string {
	return t.name
}

// Lookup returns the label for code.
func (t Table) Lookup(code string) (string, bool) {
	label, ok := t.labels[code]
	return label, ok
}

// Len returns the number of entries.
func (t Table) Len() int {
	return len(t.labels)
}

// Tables is a named set of lookup tables.
type Tables struct {
	tables map[string]Table
}

// NewTables collects already built tables.
func NewTables(tables ...Table) *Tables {
	ts := &Tables{tables: make(map[string]Table, len(tables))}
	for _, t := range tables {
		ts.tables[t.name] = t
	}
	return ts
}

// Get returns the named table.
func (ts *Tables) Get(name string) (Table, bool) {
	if ts == nil {
		return Table{}, false
	}
	t, ok := ts.tables[name]
	return t, ok
}

// Names returns the loaded table names, sorted.
func (ts *Tables) Names() []string {
	out := make([]string, 0, len(ts.tables))
	for name := range ts.tables {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// File names a table and the file it is read from.
type File struct {
	Name     string
	Filename string
}

// Load reads every file from dir. Files are tab separated with a header row;
// the first column is the code and the second the label.
func Load(dir string, files []File, logger *slog.Logger) (*Tables, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ts := &Tables{tables: make(map[string]Table, len(files))}
	for _, f := range files {
		path := filepath.Join(dir, f.Filename)
		logger.Debug("loading lookup table", "table", f.Name, "path", path)

		t, err := loadFile(f.Name, path)
		if err != nil {
			return nil, err
		}
		ts.tables[f.Name] = t
		logger.Info("loaded lookup table", "table", f.Name, "entries", t.Len())
	}
	logger.Debug("lookup tables ready", "tables", ts.Names())
	return ts, nil
}

func loadFile(name, path string) (Table, error) {
	r, err := source.Open(path, source.Options{Comma: '\t'})
	if err != nil {
		return Table{}, fmt.Errorf("failed to load lookup table %s: %w", name, err)
	}
	defer func() { _ = r.Close() }()

	return read(name, r)
}

// Read builds a table from an open reader.
func Read(name string, in io.Reader) (Table, error) {
	r, err := source.NewReader(name, in, source.Options{Comma: '\t'})
	if err != nil {
		return Table{}, fmt.Errorf("failed to load lookup table %s: %w", name, err)
	}
	return read(name, r)
}

func read(name string, r *source.Reader) (Table, error) {
	cols := r.Header().Names()
	if len(cols) < 2 {
		return Table{}, fmt.Errorf("lookup table %s: expected 2 columns, got %d", name, len(cols))
	}

	labels := make(map[string]string)
	for {
		row, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("lookup table %s: %w", name, err)
		}
		code := strings.TrimSpace(row.Value(cols[0]))
		if code == "" {
			continue
		}
		labels[code] = strings.TrimSpace(row.Value(cols[1]))
	}
	return Table{name: name, labels: labels}, nil
}
