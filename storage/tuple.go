package storage

import (
	"strings"

	"github.com/juju/errors"

	"github.com/tilestore/tilestore/catalog"
	"github.com/tilestore/tilestore/types"
)

// Tuple is one logical row laid out against a schema.
type Tuple struct {
	schema *catalog.Schema
	values []types.Value
}

func NewTuple(schema *catalog.Schema, values []types.Value) (*Tuple, error) {
	if len(values) != schema.ColumnCount() {
		return nil, errors.Errorf("tuple has %d values, schema %s expects %d",
			len(values), schema, schema.ColumnCount())
	}
	vals := make([]types.Value, len(values))
	copy(vals, values)
	return &Tuple{schema: schema, values: vals}, nil
}

func (t *Tuple) Schema() *catalog.Schema { return t.schema }

func (t *Tuple) ColumnCount() int { return len(t.values) }

func (t *Tuple) Value(offset int) types.Value { return t.values[offset] }

func (t *Tuple) SetValue(offset int, v types.Value) { t.values[offset] = v }

func (t *Tuple) IsNull(offset int) bool { return t.values[offset].IsNull() }

// Project extracts the values at the given column offsets, in order. Index
// key construction uses this with the index's KeyColumns.
func (t *Tuple) Project(offsets []int) []types.Value {
	out := make([]types.Value, len(offsets))
	for i, off := range offsets {
		out[i] = t.values[off]
	}
	return out
}

func (t *Tuple) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, v := range t.values {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(v.String())
	}
	b.WriteByte(')')
	return b.String()
}
