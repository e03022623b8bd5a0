// Package source reads the flat files published by the upstream datasets.
//
// Files are Latin-1 encoded and decoded to UTF-8 while reading. Each line is
// exposed as an immutable Row keyed by the trimmed header names.
package source

import "strings"

// Header maps column names to their position in a record.
type Header struct {
	names []string
	index map[string]int
}

// NewHeader builds a header from raw column names. Names are trimmed of
// surrounding whitespace and a leading byte order mark. When a name repeats,
// the first occurrence wins.
func NewHeader(names []string) *Header {
	h := &Header{
		names: make([]string, len(names)),
		index: make(map[string]int, len(names)),
	}
	for i, name := range names {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		name = strings.TrimSpace(name)
		h.names[i] = name
		if _, dup := h.index[name]; !dup {
			h.index[name] = i
		}
	}
	return h
}

// Names returns the column names in file order.
func (h *Header) Names() []string {
	out := make([]string, len(h.names))
	copy(out, h.names)
	return out
}

// Row is one line of a source file.
type Row struct {
	header *Header
	values []string
}

// NewRow pairs a record with its header. The record is copied.
func NewRow(h *Header, record []string) Row {
	values := make([]string, len(record))
	copy(values, record)
	return Row{header: h, values: values}
}

// RowFromMap builds a row from column/value pairs, mostly for tests and
// for callers assembling rows by hand.
func RowFromMap(m map[string]string) Row {
	names := make([]string, 0, len(m))
	values := make([]string, 0, len(m))
	for k, v := range m {
		names = append(names, k)
		values = append(values, v)
	}
	return Row{header: NewHeader(names), values: values}
}

// Get returns the raw value of column and whether the column exists in the
// row. Short records report trailing columns as absent.
func (r Row) Get(column string) (string, bool) {
	if r.header == nil {
		return "", false
	}
	i, ok := r.header.index[column]
	if !ok || i >= len(r.values) {
		return "", false
	}
	return r.values[i], true
}

// Value returns the raw value of column, or "" when absent.
func (r Row) Value(column string) string {
	v, _ := r.Get(column)
	return v
}

// Blank reports whether column is absent or contains only whitespace.
func (r Row) Blank(column string) bool {
	return strings.TrimSpace(r.Value(column)) == ""
}
