package correlate

import (
	"io"

	"github.com/leapstack-labs/leapingest/internal/source"
)

// SliceCursor iterates over rows held in memory.
type SliceCursor struct {
	rows []source.Row
	pos  int
}

// NewSliceCursor returns a cursor over rows.
func NewSliceCursor(rows ...source.Row) *SliceCursor {
	return &SliceCursor{rows: rows}
}

// HasNext reports whether rows remain.
func (c *SliceCursor) HasNext() bool {
	return c.pos < len(c.rows)
}

// Next returns the next row or io.EOF.
func (c *SliceCursor) Next() (source.Row, error) {
	if !c.HasNext() {
		return source.Row{}, io.EOF
	}
	r := c.rows[c.pos]
	c.pos++
	return r, nil
}

// Err always returns nil.
func (c *SliceCursor) Err() error {
	return nil
}

var (
	_ Cursor = (*SliceCursor)(nil)
	_ Cursor = (*source.Reader)(nil)
)
