package storage

import (
	"github.com/tilestore/tilestore/catalog"
	"github.com/tilestore/tilestore/types"
)

// Tile is one physical column segment of a tile group: the values of a
// contiguous group of columns for every slot, stored column-major. Slots are
// written at most once by the claiming transaction; concurrent writers always
// target distinct slots, so no locking happens here.
type Tile struct {
	schema  *catalog.Schema
	columns [][]types.Value
}

func NewTile(schema *catalog.Schema, capacity uint32) *Tile {
	cols := make([][]types.Value, schema.ColumnCount())
	for i := range cols {
		cols[i] = make([]types.Value, capacity)
	}
	return &Tile{schema: schema, columns: cols}
}

func (t *Tile) Schema() *catalog.Schema { return t.schema }

func (t *Tile) ColumnCount() int { return len(t.columns) }

func (t *Tile) Value(slot uint32, column int) types.Value {
	return t.columns[column][slot]
}

func (t *Tile) SetValue(v types.Value, slot uint32, column int) {
	t.columns[column][slot] = v
}
