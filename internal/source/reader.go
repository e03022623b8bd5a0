package source

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/text/encoding/charmap"
)

// Options controls how a file is parsed.
type Options struct {
	// Comma is the field delimiter. Defaults to ','.
	Comma rune
	// UTF8 skips Latin-1 decoding for inputs that are already UTF-8.
	UTF8 bool
}

// Reader is a forward-only cursor over the rows of one delimited file.
//
// HasNext reads one record ahead so the caller can detect exhaustion before
// calling Next.
type Reader struct {
	name   string
	closer io.Closer
	csv    *csv.Reader
	header *Header

	next    []string
	fetched bool
	err     error
	line    int
}

// Open opens path and reads its header row.
func Open(path string, opts Options) (*Reader, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	r, err := NewReader(path, f, opts)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// NewReader wraps an already opened stream. name is used in error messages.
func NewReader(name string, in io.Reader, opts Options) (*Reader, error) {
	in, err := skipBOM(in)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read header: %w", name, err)
	}
	if !opts.UTF8 {
		in = charmap.ISO8859_1.NewDecoder().Reader(in)
	}
	cr := csv.NewReader(in)
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	names, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: missing header row", name)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read header: %w", name, err)
	}

	return &Reader{
		name:   name,
		csv:    cr,
		header: NewHeader(names),
		line:   1,
	}, nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// skipBOM drops a UTF-8 byte order mark. It must run on the raw bytes, before
// Latin-1 decoding turns the mark into three ordinary characters.
func skipBOM(in io.Reader) (io.Reader, error) {
	br := bufio.NewReader(in)
	head, err := br.Peek(len(utf8BOM))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br, nil
}

// Name returns the name the reader was opened with.
func (r *Reader) Name() string {
	return r.name
}

// Header returns the parsed header.
func (r *Reader) Header() *Header {
	return r.header
}

// HasNext reports whether another row is available. It returns false at end
// of file and on read errors; Err distinguishes the two.
func (r *Reader) HasNext() bool {
	if r.fetched {
		return r.next != nil
	}
	if r.err != nil {
		return false
	}
	r.fetched = true
	record, err := r.csv.Read()
	if err != nil {
		if !errors.Is(err, io.EOF) {
			r.err = fmt.Errorf("%s: line %d: %w", r.name, r.line+1, err)
		}
		r.next = nil
		return false
	}
	r.line++
	r.next = record
	return true
}

// Next returns the next row. It returns io.EOF once the file is exhausted.
func (r *Reader) Next() (Row, error) {
	if !r.HasNext() {
		if r.err != nil {
			return Row{}, r.err
		}
		return Row{}, io.EOF
	}
	row := Row{header: r.header, values: r.next}
	r.next = nil
	r.fetched = false
	return row, nil
}

// Err returns the first read error, if any. End of file is not an error.
func (r *Reader) Err() error {
	return r.err
}

// Close closes the underlying file when the reader owns it.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
