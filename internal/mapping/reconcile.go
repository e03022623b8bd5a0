package mapping

import (
	"math"

	"github.com/leapstack-labs/leapingest/internal/source"
	"github.com/leapstack-labs/leapingest/internal/transform"
)

// CountColumns names the count, total and average columns of one aid
// category.
type CountColumns struct {
	Count   string
	Total   string
	Average string
}

// Suffixed builds CountColumns by appending the three type codes to prefix
// and then suffix, e.g. Suffixed("AGRNT_", "", "N", "T", "A").
func Suffixed(prefix, suffix, count, total, average string) CountColumns {
	return CountColumns{
		Count:   prefix + count + suffix,
		Total:   prefix + total + suffix,
		Average: prefix + average + suffix,
	}
}

// Reconciliation is the outcome of reconciling a count, a total and an
// average.
type Reconciliation struct {
	Count   *int64
	Average *int64
	// Computed is round(total/count), valid when a total was present.
	Computed int64
	// Mismatch is set when a provided average differs from Computed.
	Mismatch bool
}

// Reconcile derives the count and average reported by a row.
//
// A blank count yields no values. Without a total the average is nil. When
// the average column is blank it is computed from total and count (0 for a
// zero count); when present it is kept as is and compared to the computed
// value.
func Reconcile(row source.Row, cols CountColumns) Reconciliation {
	var r Reconciliation
	if row.Blank(cols.Count) {
		return r
	}
	count := transform.Atoi(row.Value(cols.Count))
	r.Count = &count

	if row.Blank(cols.Total) {
		return r
	}
	total := transform.Atoi(row.Value(cols.Total))
	if count > 0 {
		r.Computed = int64(math.Round(float64(total) / float64(count)))
	}

	if row.Blank(cols.Average) {
		avg := r.Computed
		r.Average = &avg
		return r
	}
	avg := transform.Atoi(row.Value(cols.Average))
	r.Average = &avg
	r.Mismatch = avg != r.Computed
	return r
}

// Apply stores the count and average into attrs under the given names.
func (r Reconciliation) Apply(attrs AttributeSet, countField, averageField string) {
	attrs[countField] = int64OrNil(r.Count)
	attrs[averageField] = int64OrNil(r.Average)
}

func int64OrNil(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}
