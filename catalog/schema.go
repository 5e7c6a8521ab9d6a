package catalog

import (
	"fmt"
	"strings"

	"github.com/tilestore/tilestore/types"
)

// Column describes one logical column of a table.
type Column struct {
	Name    string
	Type    types.ValType
	NotNull bool
	// ForeignKeyName is set when the column participates in a foreign-key
	// constraint registered on the owning table.
	ForeignKeyName string
}

// Schema is the ordered column layout of a table or of a single tile.
type Schema struct {
	columns []Column
}

func NewSchema(columns []Column) *Schema {
	cols := make([]Column, len(columns))
	copy(cols, columns)
	return &Schema{columns: cols}
}

func (s *Schema) ColumnCount() int { return len(s.columns) }

func (s *Schema) Column(offset int) Column { return s.columns[offset] }

// AllowNull reports whether the column at offset accepts NULL values.
func (s *Schema) AllowNull(offset int) bool { return !s.columns[offset].NotNull }

// ColumnOffset returns the offset of the named column, or -1.
func (s *Schema) ColumnOffset(name string) int {
	for i, c := range s.columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// MarkForeignKey tags the named column with a foreign-key constraint name.
func (s *Schema) MarkForeignKey(column, constraint string) bool {
	off := s.ColumnOffset(column)
	if off < 0 {
		return false
	}
	s.columns[off].ForeignKeyName = constraint
	return true
}

func (s *Schema) Copy() *Schema {
	return NewSchema(s.columns)
}

func (s *Schema) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, c := range s.columns {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s %s", c.Name, c.Type)
		if c.NotNull {
			b.WriteString(" NOT NULL")
		}
	}
	b.WriteByte(')')
	return b.String()
}
