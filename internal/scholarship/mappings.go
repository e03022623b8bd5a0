package scholarship

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapingest/internal/lookup"
	"github.com/leapstack-labs/leapingest/internal/mapping"
	"github.com/leapstack-labs/leapingest/internal/transform"
)

// KeyAttribute is the identifier shared by the three directory files.
const KeyAttribute = "petersons_id"

// Side table names.
const (
	TableFieldsOfStudy         = "fields_of_study"
	TableEthnicities           = "ethnicities"
	TableReligiousAffiliations = "religious_affiliations"
)

// SideTables lists the code tables shipped with the directory.
func SideTables() []lookup.File {
	return []lookup.File{
		{Name: TableFieldsOfStudy, Filename: "CD1_ACAD.txt"},
		{Name: TableEthnicities, Filename: "CD4_ETHN.txt"},
		{Name: TableReligiousAffiliations, Filename: "CD5_RELG.txt"},
	}
}

// File is one of the parallel directory files.
type File struct {
	Filename string
	Mapping  mapping.FieldMapping
}

// Files returns the directory files of year with their mappings. Every side
// table must be present in tables.
func Files(year int, tables *lookup.Tables) ([]File, error) {
	table := func(name string) (*lookup.Table, error) {
		t, ok := tables.Get(name)
		if !ok {
			return nil, fmt.Errorf("side table %s not loaded", name)
		}
		return &t, nil
	}
	fields, err := table(TableFieldsOfStudy)
	if err != nil {
		return nil, err
	}
	religions, err := table(TableReligiousAffiliations)
	if err != nil {
		return nil, err
	}
	ethnicities, err := table(TableEthnicities)
	if err != nil {
		return nil, err
	}

	d := mapping.Derived

	awards := mapping.New("PA",
		d(KeyAttribute, str("id")),
		d("count_min", integer("loawds")),
		d("count_max", integer("hiawds")),
		d("amount_min", integer("loamnt")),
		d("amount_max", integer("hiamnt")),
		d("application_deadline", transform.ConditionalMonthDay(up("apdlmo"), up("apdlda"))),
		d("renewable", transform.YesNo(up("renyes"), up("renno"))),
		d("sponsor_url", str("sponsor-url")),
		d("high_school", transform.YesNo(up("hs-yes"), up("hs-no"))),
		d("award_type", enum("scholarship", "schol", "loan", "loan", "prize", "prize")),
		d("last_year_count", integer("numawd")),
		d("last_year_total", integer("totalawd")),
		d("school_types", enumArray("two_year", "twoyr", "four_year", "fouryr", "trade_or_tech", "trtech")),
		d("military_services", enumArray(
			"any", "anysvc",
			"air_force", "af",
			"army", "army",
			"navy", "navy",
			"marines", "marines",
			"coast_guard", "cg",
			"air_national_guard", "airng",
			"army_national_guard", "armyng",
			"special", "kd",
		)),
		d("student_type", enum("full_time", "ft_only", "part_time", "pt_only", "both", "ft_pt")),
		d("residency_states", array(1, 10, "st", nil)),
		d("use_states", array(1, 15, "sr-st", nil)),
		d("fields_of_study", array(1, 12, "m-stud", fields)),
		d("religious_affiliations", array(1, 3, "rel", religions)),
		d("ethnicities", array(1, 5, "eth", ethnicities)),
		d("races", enumArray("american_indian", "indesk", "asian", "asian", "black", "black", "hispanic", "hisp")),
		d("disabilities", enumArray("blind", "blind", "deaf", "deaf", "physical", "phys", "learning", "learn")),
	).KeyedBy(KeyAttribute)

	eligibility := mapping.New("PA_2",
		d(KeyAttribute, str("id")),
		d("last_year_applications", integer("numapp")),
		d("postgrad", transform.Flag(up("postgrad"))),
		d("award_type", enum("forgivable_loan", "floan", "grant", "grant", "fellowship", "fellow")),
		d("citizenship_restrictions", array(0, 5, "citizen", nil)),
		d("citizenships_allowed", enumArray("us", "usa_y", "canadian", "can_y", "other", "frn_y")),
		d("apply_url", str("appl_online_url")),
	).KeyedBy(KeyAttribute)

	descriptions := mapping.New("PA_D",
		d(KeyAttribute, str("id")),
		d("name", str("program_name")),
		d("description", str("desc")),
		d("donor_name", str("donor_name")),
		d("donor_description", str("donor_desc")),
	).KeyedBy(KeyAttribute)

	return []File{
		{Filename: fmt.Sprintf("PA%d.csv", year), Mapping: awards},
		{Filename: fmt.Sprintf("PA%d_2.csv", year), Mapping: eligibility},
		{Filename: fmt.Sprintf("PA%d_D.csv", year), Mapping: descriptions},
	}, nil
}

// Column names are declared in lower case; the files carry upper-case
// headers.
func up(column string) string {
	return strings.ToUpper(column)
}

func str(column string) transform.Transformer {
	return transform.String(up(column))
}

func integer(column string) transform.Transformer {
	return transform.IntOrNull(up(column))
}

func choices(pairs []string) []transform.Choice {
	cs := transform.Choices(pairs...)
	for i := range cs {
		cs[i].Column = up(cs[i].Column)
	}
	return cs
}

func enum(pairs ...string) transform.Transformer {
	return transform.SingleEnum(choices(pairs))
}

func enumArray(pairs ...string) transform.Transformer {
	return transform.MultiEnum(choices(pairs))
}

func array(from, to int, prefix string, table *lookup.Table) transform.Transformer {
	return transform.RangedLookup(transform.Range{From: from, To: to}, up(prefix), table)
}
