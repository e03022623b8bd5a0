// Package transform provides the column transformers used by field mappings.
//
// A Transformer turns one raw row into a normalized value. The value is one
// of nil, int64, bool, string or []string. Transformers are built by the
// factory functions in this package and never modify the row.
package transform

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapingest/internal/source"
)

// Marker is the value several source formats use for a selected checkbox.
const Marker = "X"

// Transformer derives a normalized value from a row.
type Transformer func(row source.Row) any

// TrimOrNull strips surrounding whitespace. Empty strings and a lone period
// (used by some files for missing values) become nil.
func TrimOrNull(value string) any {
	v := strings.TrimSpace(value)
	if v == "" || v == "." {
		return nil
	}
	return v
}

// Normalize applies TrimOrNull to strings and passes other values through.
func Normalize(value any) any {
	if s, ok := value.(string); ok {
		return TrimOrNull(s)
	}
	return value
}

// Atoi parses the leading integer of s the way the upstream tools do:
// surrounding whitespace is ignored, an optional sign is accepted and parsing
// stops at the first non-digit. Anything unparsable is 0.
func Atoi(s string) int64 {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// String returns the trimmed value of column, or nil when blank.
func String(column string) Transformer {
	return func(row source.Row) any {
		return TrimOrNull(row.Value(column))
	}
}

// PositiveIntOrNull parses column as an integer and returns nil unless it is
// greater than zero.
func PositiveIntOrNull(column string) Transformer {
	return func(row source.Row) any {
		if n := Atoi(row.Value(column)); n > 0 {
			return n
		}
		return nil
	}
}

// IntOrNull returns nil for a blank column and the parsed integer otherwise.
func IntOrNull(column string) Transformer {
	return func(row source.Row) any {
		if row.Blank(column) {
			return nil
		}
		return Atoi(row.Value(column))
	}
}

// BoolFromOne is true when column parses to 1.
func BoolFromOne(column string) Transformer {
	return func(row source.Row) any {
		return Atoi(row.Value(column)) == 1
	}
}

// BoolFromAnyOne is true when any of columns parses to 1.
func BoolFromAnyOne(columns ...string) Transformer {
	return func(row source.Row) any {
		for _, c := range columns {
			if Atoi(row.Value(c)) == 1 {
				return true
			}
		}
		return false
	}
}

var schemeRe = regexp.MustCompile(`(?i)^https?://.+$`)

// NormalizeURL trims raw and prefixes http:// when no http or https scheme is
// present. Blank input yields nil.
func NormalizeURL(raw string) any {
	u := strings.TrimSpace(raw)
	if u == "" {
		return nil
	}
	if !schemeRe.MatchString(u) {
		u = "http://" + u
	}
	return u
}

// URLOrNull normalizes column with NormalizeURL.
func URLOrNull(column string) Transformer {
	return func(row source.Row) any {
		return NormalizeURL(row.Value(column))
	}
}

func marked(row source.Row, column string) bool {
	return strings.TrimSpace(row.Value(column)) == Marker
}

// YesNo reads a pair of checkbox columns. A marker in yesColumn is true, a
// marker in noColumn is false and neither is nil. If both are marked the yes
// column wins.
func YesNo(yesColumn, noColumn string) Transformer {
	return func(row source.Row) any {
		switch {
		case marked(row, yesColumn):
			return true
		case marked(row, noColumn):
			return false
		default:
			return nil
		}
	}
}

// Flag is true when column holds the marker.
func Flag(column string) Transformer {
	return func(row source.Row) any {
		return marked(row, column)
	}
}
