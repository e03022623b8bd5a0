// Package mapping applies declarative field mappings to source rows.
//
// A FieldMapping lists target attributes in declaration order. Each attribute
// is filled either directly from a source column or by a transformer.
package mapping

import (
	"fmt"

	"github.com/leapstack-labs/leapingest/internal/source"
	"github.com/leapstack-labs/leapingest/internal/transform"
)

// AttributeSet is the normalized result of mapping one or more rows.
type AttributeSet map[string]any

// String returns the attribute as a string. Non-string values are formatted
// with fmt; nil yields "".
func (a AttributeSet) String(key string) string {
	switch v := a[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Merge copies src into dst. For each attribute the first non-nil value
// wins: an existing non-nil value in dst is never overwritten.
func Merge(dst, src AttributeSet) {
	for k, v := range src {
		if cur, ok := dst[k]; ok && cur != nil {
			continue
		}
		dst[k] = v
	}
}

type fieldKind int

const (
	fieldColumn fieldKind = iota
	fieldDerived
)

// Field is one entry of a FieldMapping.
type Field struct {
	Target string
	kind   fieldKind
	column string
	derive transform.Transformer
}

// Column maps target directly from a source column.
func Column(target, column string) Field {
	return Field{Target: target, kind: fieldColumn, column: column}
}

// Derived maps target through a transformer.
func Derived(target string, fn transform.Transformer) Field {
	return Field{Target: target, kind: fieldDerived, derive: fn}
}

// Resolve computes the field's value for row.
func (f Field) Resolve(row source.Row) any {
	switch f.kind {
	case fieldColumn:
		return transform.TrimOrNull(row.Value(f.column))
	case fieldDerived:
		return transform.Normalize(f.derive(row))
	default:
		panic(fmt.Sprintf("mapping: unknown field kind %d for %q", f.kind, f.Target))
	}
}

// SourceColumn returns the column of a direct field, or "" for derived ones.
func (f Field) SourceColumn() string {
	if f.kind == fieldColumn {
		return f.column
	}
	return ""
}

// FieldMapping describes how one source-file layout maps onto target
// attributes.
type FieldMapping struct {
	name   string
	key    string
	fields []Field
}

// New creates a mapping. Later fields with the same target override earlier
// ones at map time.
func New(name string, fields ...Field) FieldMapping {
	return FieldMapping{name: name, fields: append([]Field(nil), fields...)}
}

// WithKey returns a copy of m that also maps keyAttr from keyColumn and marks
// keyAttr as the external identifier.
func (m FieldMapping) WithKey(keyAttr, keyColumn string) FieldMapping {
	out := m.withKeyAttr(keyAttr)
	out.fields = append(out.fields, Column(keyAttr, keyColumn))
	return out
}

// KeyedBy returns a copy of m that marks keyAttr, already produced by one of
// its fields, as the external identifier.
func (m FieldMapping) KeyedBy(keyAttr string) FieldMapping {
	return m.withKeyAttr(keyAttr)
}

func (m FieldMapping) withKeyAttr(keyAttr string) FieldMapping {
	return FieldMapping{
		name:   m.name,
		key:    keyAttr,
		fields: append([]Field(nil), m.fields...),
	}
}

// Name returns the mapping name.
func (m FieldMapping) Name() string {
	return m.name
}

// Key returns the external identifier attribute, or "" when unset.
func (m FieldMapping) Key() string {
	return m.key
}

// Fields returns a copy of the fields in declaration order.
func (m FieldMapping) Fields() []Field {
	return append([]Field(nil), m.fields...)
}

// Targets returns the target attribute names in declaration order.
func (m FieldMapping) Targets() []string {
	out := make([]string, 0, len(m.fields))
	for _, f := range m.fields {
		out = append(out, f.Target)
	}
	return out
}

// MapRow applies m to row.
func MapRow(row source.Row, m FieldMapping) AttributeSet {
	attrs := make(AttributeSet, len(m.fields))
	for _, f := range m.fields {
		attrs[f.Target] = f.Resolve(row)
	}
	return attrs
}
