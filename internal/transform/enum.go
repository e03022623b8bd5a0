package transform

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/leapingest/internal/lookup"
	"github.com/leapstack-labs/leapingest/internal/source"
)

// Choice pairs an enumeration label with the checkbox column that selects it.
type Choice struct {
	Label  string
	Column string
}

// Choices builds an ordered choice list from alternating label/column
// arguments. Declaration order is significant for SingleEnum.
func Choices(pairs ...string) []Choice {
	if len(pairs)%2 != 0 {
		panic(fmt.Sprintf("transform.Choices: odd number of arguments (%d)", len(pairs)))
	}
	out := make([]Choice, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, Choice{Label: pairs[i], Column: pairs[i+1]})
	}
	return out
}

// SingleEnum returns the label of the first marked choice, or nil.
func SingleEnum(choices []Choice) Transformer {
	choices = append([]Choice(nil), choices...)
	return func(row source.Row) any {
		for _, c := range choices {
			if marked(row, c.Column) {
				return c.Label
			}
		}
		return nil
	}
}

// MultiEnum returns the labels of every marked choice in declaration order.
func MultiEnum(choices []Choice) Transformer {
	choices = append([]Choice(nil), choices...)
	return func(row source.Row) any {
		out := []string{}
		for _, c := range choices {
			if marked(row, c.Column) {
				out = append(out, c.Label)
			}
		}
		return out
	}
}

// Range is an inclusive integer range.
type Range struct {
	From, To int
}

// RangedLookup reads columns prefix+From through prefix+To. When table is
// non-nil each value is translated through it and values missing from the
// table are dropped. Blank values are always dropped.
func RangedLookup(r Range, prefix string, table *lookup.Table) Transformer {
	var columns []string
	for i := r.From; i <= r.To; i++ {
		columns = append(columns, prefix+strconv.Itoa(i))
	}
	return func(row source.Row) any {
		out := []string{}
		for _, c := range columns {
			v := strings.TrimSpace(row.Value(c))
			if v == "" {
				continue
			}
			if table != nil {
				label, ok := table.Lookup(v)
				if !ok {
					continue
				}
				v = label
			}
			out = append(out, v)
		}
		return out
	}
}

// Month codes that stand for a rolling or varying date rather than a day of
// the year.
const (
	MonthContinuous = "C"
	MonthVaries     = "V"
)

// ConditionalMonthDay combines a month and a day column into an "MM-DD"
// string. The month codes C and V are returned verbatim. Missing or invalid
// parts yield nil.
func ConditionalMonthDay(monthColumn, dayColumn string) Transformer {
	return func(row source.Row) any {
		month := strings.TrimSpace(row.Value(monthColumn))
		if month == MonthContinuous || month == MonthVaries {
			return month
		}
		return MonthDay(month, row.Value(dayColumn))
	}
}

// MonthDay formats month and day as "MM-DD", or returns nil when either is
// not a valid calendar value. February 29 is accepted.
func MonthDay(month, day string) any {
	m, err := strconv.Atoi(strings.TrimSpace(month))
	if err != nil || m < 1 || m > 12 {
		return nil
	}
	d, err := strconv.Atoi(strings.TrimSpace(day))
	if err != nil || d < 1 {
		return nil
	}
	// 2000 is a leap year so Feb 29 survives the round trip.
	t := time.Date(2000, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Month() != time.Month(m) || t.Day() != d {
		return nil
	}
	return fmt.Sprintf("%02d-%02d", m, d)
}
