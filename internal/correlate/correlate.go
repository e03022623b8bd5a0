// Package correlate walks source files row by row.
//
// Driver advances several files in lock step, joining the rows at each
// position on a shared external identifier. Walk is the single-file form used
// by per-file importers.
package correlate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/leapstack-labs/leapingest/internal/mapping"
	"github.com/leapstack-labs/leapingest/internal/source"
)

var (
	// ErrMisaligned is returned when files disagree on the key at the same
	// row position, meaning they are not sorted the same way.
	ErrMisaligned = errors.New("source files are not sorted or misaligned")

	// ErrUnevenFiles is returned when files run out of rows at different
	// positions.
	ErrUnevenFiles = errors.New("source files have different row counts")
)

// Cursor yields the rows of one file in order.
type Cursor interface {
	HasNext() bool
	Next() (source.Row, error)
	Err() error
}

// Input is one file taking part in a correlated run.
type Input struct {
	Name    string
	Cursor  Cursor
	Mapping mapping.FieldMapping
}

// Sink receives merged records.
type Sink interface {
	// Upsert creates the record identified by key or updates it.
	Upsert(ctx context.Context, key string, attrs mapping.AttributeSet) error
	// DeleteAllExcept removes every record whose key is not in keep and
	// returns how many were removed.
	DeleteAllExcept(ctx context.Context, keep map[string]struct{}) (int, error)
}

// Result summarizes a correlated run.
type Result struct {
	Rows     int
	Upserted int
	Failed   int
	Skipped  int
	Deleted  int
	Seen     map[string]struct{}
}

// Driver merges rows from several sorted files of equal length.
type Driver struct {
	// KeyAttribute is the attribute every mapping produces for the shared
	// external identifier.
	KeyAttribute string
	Sink         Sink
	Logger       *slog.Logger
	// AllowUneven logs instead of failing when files end at different rows.
	// Stale records are still deleted in that case.
	AllowUneven bool
}

// Run correlates inputs until the first one is exhausted, then deletes every
// record not seen during the run.
//
// A key mismatch at any row position aborts immediately with ErrMisaligned;
// records already upserted are kept and nothing is deleted.
func (d *Driver) Run(ctx context.Context, inputs ...Input) (*Result, error) {
	if len(inputs) == 0 {
		return nil, errors.New("correlate: no inputs")
	}
	if d.KeyAttribute == "" {
		return nil, errors.New("correlate: key attribute is required")
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	res := &Result{Seen: make(map[string]struct{})}

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if !allHaveNext(inputs) {
			break
		}

		attrs, key, err := d.step(inputs, res.Rows)
		if err != nil {
			return res, err
		}
		res.Rows++

		if key == "" {
			logger.Warn("skipping row without key", "row", res.Rows)
			res.Skipped++
			continue
		}
		res.Seen[key] = struct{}{}

		if err := d.Sink.Upsert(ctx, key, attrs); err != nil {
			logger.Error("failed to upsert record", d.KeyAttribute, key, "error", err)
			res.Failed++
			continue
		}
		res.Upserted++
	}

	if err := readErrors(inputs); err != nil {
		return res, err
	}

	if remaining := unfinished(inputs); len(remaining) > 0 {
		if !d.AllowUneven {
			return res, fmt.Errorf("%w: %v still have rows after %d rows", ErrUnevenFiles, remaining, res.Rows)
		}
		logger.Warn("source files have different row counts", "unfinished", remaining, "rows", res.Rows)
	}

	deleted, err := d.Sink.DeleteAllExcept(ctx, res.Seen)
	if err != nil {
		return res, fmt.Errorf("failed to delete stale records: %w", err)
	}
	res.Deleted = deleted
	logger.Info("correlated import finished",
		"rows", res.Rows, "upserted", res.Upserted, "failed", res.Failed,
		"skipped", res.Skipped, "deleted", res.Deleted)

	return res, nil
}

// step reads one row from every input and merges the mapped attributes.
func (d *Driver) step(inputs []Input, index int) (mapping.AttributeSet, string, error) {
	merged := make(mapping.AttributeSet)
	var key, keySource string

	for _, in := range inputs {
		row, err := in.Cursor.Next()
		if err != nil {
			return nil, "", fmt.Errorf("%s: row %d: %w", in.Name, index+1, err)
		}
		attrs := mapping.MapRow(row, in.Mapping)

		k := attrs.String(d.KeyAttribute)
		switch {
		case k == "":
		case key == "":
			key, keySource = k, in.Name
		case k != key:
			return nil, "", fmt.Errorf("%w: row %d: %s has %s %q but %s has %q",
				ErrMisaligned, index+1, in.Name, d.KeyAttribute, k, keySource, key)
		}
		mapping.Merge(merged, attrs)
	}
	return merged, key, nil
}

func allHaveNext(inputs []Input) bool {
	for _, in := range inputs {
		if !in.Cursor.HasNext() {
			return false
		}
	}
	return true
}

func unfinished(inputs []Input) []string {
	var names []string
	for _, in := range inputs {
		if in.Cursor.HasNext() {
			names = append(names, in.Name)
		}
	}
	return names
}

func readErrors(inputs []Input) error {
	for _, in := range inputs {
		if err := in.Cursor.Err(); err != nil {
			return fmt.Errorf("%s: %w", in.Name, err)
		}
	}
	return nil
}

// Walk calls fn for every row of cursor in order and returns the number of
// rows visited. It stops at the first error returned by fn.
func Walk(ctx context.Context, cursor Cursor, fn func(row source.Row) error) (int, error) {
	n := 0
	for cursor.HasNext() {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		row, err := cursor.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return n, err
		}
		n++
		if err := fn(row); err != nil {
			return n, err
		}
	}
	if err := cursor.Err(); err != nil {
		return n, err
	}
	return n, nil
}
