package ipeds

import (
	"strconv"

	"github.com/leapstack-labs/leapingest/internal/mapping"
	"github.com/leapstack-labs/leapingest/internal/source"
	"github.com/leapstack-labs/leapingest/internal/transform"
)

// Income bands reported for federal aid recipients.
const incomeBands = 5

// AverageMismatch records a reported average that disagrees with
// round(total / count).
type AverageMismatch struct {
	Field      string
	Calculated int64
	Reported   int64
}

// MapFinancialAid converts one row of the student financial aid file.
//
// Public institutions report the segment columns under GIS*/NPIS* names and
// private ones under GRN*/NPT*; a row is public when GISTN2 is set. For
// private institutions the single net price applies to in-state and
// out-of-state students alike.
func MapFinancialAid(row source.Row) (mapping.AttributeSet, []AverageMismatch) {
	attrs := mapping.AttributeSet{
		KeyAttribute:               transform.TrimOrNull(row.Value(KeyColumn)),
		"aid_cohort":               positiveOrNil(row, "SCUGFFN"),
		"aid_cohort_undergraduate": positiveOrNil(row, "SCUGRAD"),
		"aid_count":                positiveOrNil(row, "ANYAIDN"),
	}

	var mismatches []AverageMismatch
	reconcile := func(cols mapping.CountColumns, field string) {
		r := mapping.Reconcile(row, cols)
		r.Apply(attrs, field+"_count", field+"_amount")
		if r.Mismatch {
			mismatches = append(mismatches, AverageMismatch{
				Field:      field + "_amount",
				Calculated: r.Computed,
				Reported:   *r.Average,
			})
		}
	}

	for _, c := range AidCategories() {
		reconcile(mapping.Suffixed(c.Prefix, "", "N", "T", "A"), c.Field)
	}

	public := !row.Blank("GISTN2")

	segment, federal, netPrice, overall := "GRNT", "GRN4", "NPT4", "NPGRN2"
	if public {
		segment, federal, netPrice, overall = "GIST", "GIS4", "NPIS4", "NPIST2"
	}

	reconcile(mapping.Suffixed(segment, "2", "N", "T", "A"), "grant_or_scholarship_segment")
	reconcile(mapping.Suffixed(federal, "2", "G", "T", "A"), "grant_or_scholarship_segment_federal")

	for band := 1; band <= incomeBands; band++ {
		b := strconv.Itoa(band)
		reconcile(mapping.Suffixed(federal, b+"2", "G", "T", "A"),
			"grant_or_scholarship_segment_federal_income_"+b)

		price := positiveOrNil(row, netPrice+b+"2")
		attrs["net_price_in_state_income_"+b] = price
		if !public {
			attrs["net_price_out_of_state_income_"+b] = price
		}
	}

	price := positiveOrNil(row, overall)
	attrs["net_price_in_state"] = price
	if !public {
		attrs["net_price_out_of_state"] = price
	}

	return attrs, mismatches
}

func positiveOrNil(row source.Row, column string) any {
	return transform.PositiveIntOrNull(column)(row)
}
