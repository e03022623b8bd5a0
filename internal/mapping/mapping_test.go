package mapping

import (
	"testing"

	"github.com/leapstack-labs/leapingest/internal/source"
	"github.com/leapstack-labs/leapingest/internal/transform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func row(kv ...string) source.Row {
	m := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i]] = kv[i+1]
	}
	return source.RowFromMap(m)
}

func TestMapRow(t *testing.T) {
	m := New("HD",
		Column("name", "INSTNM"),
		Column("zip", "ZIP"),
		Column("sat_math_25", "SATMT25"),
		Column("missing", "NOPE"),
		Derived("active", transform.BoolFromOne("CYACTIVE")),
		Derived("url", transform.URLOrNull("WEBADDR")),
		Derived("padded", func(source.Row) any { return "  spaced  " }),
	).WithKey("ipeds_id", "UNITID")

	r := row("UNITID", "100654", "INSTNM", " Alabama A & M University ", "ZIP", "35762", "SATMT25", ".", "CYACTIVE", "1", "WEBADDR", "www.aamu.edu/")
	attrs := MapRow(r, m)

	assert.Equal(t, AttributeSet{
		"ipeds_id":    "100654",
		"name":        "Alabama A & M University",
		"zip":         "35762",
		"sat_math_25": nil,
		"missing":     nil,
		"active":      true,
		"url":         "http://www.aamu.edu/",
		"padded":      "spaced",
	}, attrs)

	// the row is left untouched
	assert.Equal(t, " Alabama A & M University ", r.Value("INSTNM"))
}

func TestFieldMapping_WithKey(t *testing.T) {
	base := New("EF_D", Column("student_faculty_ratio", "STUFACR"))
	keyed := base.WithKey("ipeds_id", "UNITID")

	assert.Equal(t, "", base.Key())
	assert.Equal(t, []string{"student_faculty_ratio"}, base.Targets(), "WithKey must not modify the receiver")

	assert.Equal(t, "ipeds_id", keyed.Key())
	assert.Equal(t, "EF_D", keyed.Name())
	assert.Equal(t, []string{"student_faculty_ratio", "ipeds_id"}, keyed.Targets())

	fields := keyed.Fields()
	require.Len(t, fields, 2)
	assert.Equal(t, "UNITID", fields[1].SourceColumn())
	fields[0] = Column("changed", "X")
	assert.Equal(t, "student_faculty_ratio", keyed.Fields()[0].Target, "Fields returns a copy")
}

func TestFieldMapping_KeyedBy(t *testing.T) {
	m := New("PA", Derived("petersons_id", transform.String("ID"))).KeyedBy("petersons_id")
	assert.Equal(t, "petersons_id", m.Key())
	assert.Equal(t, "", m.Fields()[0].SourceColumn())
	assert.Equal(t, AttributeSet{"petersons_id": "42"}, MapRow(row("ID", "42"), m))
}

func TestMerge_FirstNonNilWins(t *testing.T) {
	dst := AttributeSet{"a": "first", "b": nil}
	Merge(dst, AttributeSet{"a": "second", "b": "filled", "c": nil})
	Merge(dst, AttributeSet{"c": "late"})

	assert.Equal(t, AttributeSet{"a": "first", "b": "filled", "c": "late"}, dst)
}

func TestAttributeSet_Helpers(t *testing.T) {
	a := AttributeSet{"s": "x", "n": int64(3), "z": nil}
	assert.Equal(t, "x", a.String("s"))
	assert.Equal(t, "3", a.String("n"))
	assert.Equal(t, "", a.String("z"))
	assert.Equal(t, "", a.String("absent"))
}
