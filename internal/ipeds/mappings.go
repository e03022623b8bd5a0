package ipeds

import (
	"github.com/leapstack-labs/leapingest/internal/mapping"
	"github.com/leapstack-labs/leapingest/internal/transform"
)

// Identifier columns and attributes.
const (
	KeyAttribute = "ipeds_id"
	KeyColumn    = "UNITID"
)

var (
	col       = mapping.Column
	derived   = mapping.Derived
	positive  = transform.PositiveIntOrNull
	ifOne     = transform.BoolFromOne
	ifAnyOne  = transform.BoolFromAnyOne
	normalURL = transform.URLOrNull
)

// Mappings returns the field mappings of the row-per-institution files,
// each keyed by ipeds_id.
func Mappings() map[Tag]mapping.FieldMapping {
	m := map[Tag]mapping.FieldMapping{
		TagHD: mapping.New(string(TagHD),
			derived("active", ifOne("CYACTIVE")),
			col("name", "INSTNM"),
			col("address", "ADDR"),
			col("city", "CITY"),
			col("state", "STABBR"),
			col("zip", "ZIP"),
			col("latitude", "LATITUDE"),
			col("longitude", "LONGITUD"),
			derived("nces_locale_code", positive("LOCALE")),
			col("phone", "GENTELE"),
			derived("url", normalURL("WEBADDR")),
			derived("admissions_url", normalURL("ADMINURL")),
			derived("financial_aid_url", normalURL("FAIDURL")),
			derived("application_url", normalURL("APPLURL")),
			derived("net_price_calculator_url", normalURL("NPRICURL")),
			derived("level", positive("ICLEVEL")),
			derived("control", positive("CONTROL")),
			derived("category", positive("INSTCAT")),
		),
		TagIC: mapping.New(string(TagIC),
			derived("religious_affiliation", positive("RELAFFIL")),
			derived("offers_associates_degree", ifOne("LEVEL3")),
			derived("offers_bachelors_degree", ifOne("LEVEL5")),
			derived("offers_masters_degree", ifOne("LEVEL7")),
			derived("offers_doctors_degree", ifAnyOne("LEVEL17", "LEVEL18", "LEVEL19")),
			derived("offers_undergraduate_certificate", ifAnyOne("LEVEL1", "LEVEL2", "LEVEL4")),
			derived("offers_graduate_certificate", ifAnyOne("LEVEL6", "LEVEL8")),
		),
		TagICAY: mapping.New(string(TagICAY),
			col("tuition_in_district", "TUITION1"),
			col("tuition_in_state", "TUITION2"),
			col("tuition_out_of_state", "TUITION3"),
			col("fees_in_district", "FEE1"),
			col("fees_in_state", "FEE2"),
			col("fees_out_of_state", "FEE3"),
			col("books_and_supplies", "CHG4AY3"),
			col("room_and_board_on_campus", "CHG5AY3"),
			col("room_and_board_off_campus_without_family", "CHG7AY3"),
			col("other_expenses_on_campus", "CHG6AY3"),
			col("other_expenses_off_campus_without_family", "CHG8AY3"),
			col("other_expenses_off_campus_with_family", "CHG9AY3"),
		),
		TagADM: mapping.New(string(TagADM),
			col("applied", "APPLCN"),
			col("accepted", "ADMSSN"),
			col("enrolled", "ENRLT"),
			col("sat_reading_25", "SATVR25"),
			col("sat_reading_75", "SATVR75"),
			col("sat_math_25", "SATMT25"),
			col("sat_math_75", "SATMT75"),
			col("sat_writing_25", "SATWR25"),
			col("sat_writing_75", "SATWR75"),
			col("act_composite_25", "ACTCM25"),
			col("act_composite_75", "ACTCM75"),
			col("act_english_25", "ACTEN25"),
			col("act_english_75", "ACTEN75"),
			col("act_math_25", "ACTMT25"),
			col("act_math_75", "ACTMT75"),
			col("act_writing_25", "ACTWR25"),
			col("act_writing_75", "ACTWR75"),
		),
		TagEFFY: mapping.New(string(TagEFFY),
			col("students_undergraduate", "EFYTOTLT"),
			col("students_undergraduate_male", "EFYTOTLM"),
			col("students_undergraduate_female", "EFYTOTLW"),
		),
		TagEFD: mapping.New(string(TagEFD),
			col("student_faculty_ratio", "STUFACR"),
			col("retention_rate", "RET_PCF"),
		),
	}
	for tag, fm := range m {
		m[tag] = fm.WithKey(KeyAttribute, KeyColumn)
	}
	return m
}

// AidCategory maps a financial-aid column prefix onto the attribute prefix
// of its <field>_count and <field>_amount pair.
type AidCategory struct {
	Field  string
	Prefix string
}

// AidCategories returns the count/total/average categories of the financial
// aid file.
func AidCategories() []AidCategory {
	return []AidCategory{
		{Field: "grant_or_scholarship_undergraduate", Prefix: "UAGRNT"},
		{Field: "grant_federal_pell_undergraduate", Prefix: "UPGRNT"},
		{Field: "student_loan_federal_undergraduate", Prefix: "UFLOAN"},

		{Field: "grant_or_scholarship", Prefix: "AGRNT_"},
		{Field: "grant_federal", Prefix: "FGRNT_"},
		{Field: "grant_federal_pell", Prefix: "PGRNT_"},
		{Field: "grant_federal_other", Prefix: "OFGRT_"},
		{Field: "grant_or_scholarship_state_local", Prefix: "SGRNT_"},
		{Field: "grant_or_scholarship_institutional", Prefix: "IGRNT_"},

		{Field: "student_loan", Prefix: "LOAN_"},
		{Field: "student_loan_federal", Prefix: "FLOAN_"},
		{Field: "student_loan_other", Prefix: "OLOAN_"},
	}
}

// graduationRateFields maps GRTYPE codes onto the attribute holding GRTOTLT.
var graduationRateFields = map[int64]string{
	2:  "graduation_rate_bachelors_cohort",
	3:  "graduation_rate_bachelors_completers_150_pct",
	29: "graduation_rate_certificate_cohort",
	30: "graduation_rate_certificate_completers_150_pct",
}
