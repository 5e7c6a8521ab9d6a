package storage

import (
	"github.com/tilestore/tilestore/catalog"
	"github.com/tilestore/tilestore/common"
	"github.com/tilestore/tilestore/types"
)

// TileColumn is the physical address of a logical column inside a tile
// group: which tile, and which column offset within that tile.
type TileColumn struct {
	Tile   int
	Column int
}

// ColumnMap maps logical column offsets to their physical tile locations.
type ColumnMap map[int]TileColumn

// DefaultColumnMap places every column in a single tile, row-store style.
func DefaultColumnMap(columnCount int) ColumnMap {
	m := make(ColumnMap, columnCount)
	for i := 0; i < columnCount; i++ {
		m[i] = TileColumn{Tile: 0, Column: i}
	}
	return m
}

func (m ColumnMap) copyMap() ColumnMap {
	out := make(ColumnMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// TileGroup is a fixed-capacity container of tuple slots: one or more tiles
// holding column values plus an MVCC header. Slots are claimed monotonically
// and never reused; deletion only marks. A tile group is resolved through the
// Manager by id, which lets transformation replace the instance behind an id
// without invalidating outstanding ItemPointers.
type TileGroup struct {
	id       common.OID
	tableOID common.OID

	schema      *catalog.Schema
	tileSchemas []*catalog.Schema
	columnMap   ColumnMap

	tiles     []*Tile
	header    *TileGroupHeader
	allocated uint32
}

func NewTileGroup(tableOID, id common.OID, schema *catalog.Schema,
	tileSchemas []*catalog.Schema, columnMap ColumnMap, capacity uint32) *TileGroup {

	tiles := make([]*Tile, len(tileSchemas))
	for i, ts := range tileSchemas {
		tiles[i] = NewTile(ts, capacity)
	}
	return &TileGroup{
		id:          id,
		tableOID:    tableOID,
		schema:      schema,
		tileSchemas: tileSchemas,
		columnMap:   columnMap.copyMap(),
		tiles:       tiles,
		header:      NewTileGroupHeader(capacity),
		allocated:   capacity,
	}
}

func (tg *TileGroup) ID() common.OID { return tg.id }

func (tg *TileGroup) TableOID() common.OID { return tg.tableOID }

func (tg *TileGroup) Schema() *catalog.Schema { return tg.schema }

func (tg *TileGroup) Header() *TileGroupHeader { return tg.header }

func (tg *TileGroup) Tile(offset int) *Tile { return tg.tiles[offset] }

func (tg *TileGroup) TileCount() int { return len(tg.tiles) }

func (tg *TileGroup) TileSchemas() []*catalog.Schema { return tg.tileSchemas }

func (tg *TileGroup) ColumnMap() ColumnMap { return tg.columnMap.copyMap() }

func (tg *TileGroup) AllocatedTupleCount() uint32 { return tg.allocated }

func (tg *TileGroup) NextTupleSlot() uint32 { return tg.header.NextTupleSlot() }

// LocateTileAndColumn resolves a logical column to its physical tile and
// in-tile column offset.
func (tg *TileGroup) LocateTileAndColumn(column int) (int, int) {
	tc := tg.columnMap[column]
	return tc.Tile, tc.Column
}

// InsertTuple claims a slot for the transaction and writes the tuple's
// values. It reports false when the tile group is full. The new version
// starts with begin/end at the max commit id, visible only to its writer
// until the transaction manager stamps the commit.
func (tg *TileGroup) InsertTuple(txn common.TxnID, tuple *Tuple) (uint32, bool) {
	slot, ok := tg.header.NextEmptyTupleSlot()
	if !ok {
		return common.InvalidSlot, false
	}

	for col := 0; col < tuple.ColumnCount(); col++ {
		tileOff, colOff := tg.LocateTileAndColumn(col)
		tg.tiles[tileOff].SetValue(tuple.Value(col), slot, colOff)
	}

	tg.header.SetTransactionID(slot, txn)
	return slot, true
}

// DeleteTuple latches the slot for the transaction and verifies the version
// is deletable. It fails when the slot is latched by a concurrent writer,
// already superseded by a committed delete, or not yet visible to the
// deleting transaction. The end commit stamp is written at commit time.
func (tg *TileGroup) DeleteTuple(txn common.TxnID, slot uint32, lastCID common.CommitID) bool {
	h := tg.header
	if slot >= h.NextTupleSlot() {
		return false
	}
	if h.TransactionID(slot) == txn {
		// Deleting a version this transaction created; the latch is already
		// held. Only legal if no delete is pending on it.
		return h.EndCommitID(slot) == common.MaxCommitID
	}
	if !h.LatchTupleSlot(slot, txn) {
		return false
	}
	if h.EndCommitID(slot) != common.MaxCommitID || h.BeginCommitID(slot) > lastCID {
		h.ReleaseTupleSlot(slot)
		return false
	}
	return true
}

// GetValue reads one column of one slot through the column map.
func (tg *TileGroup) GetValue(slot uint32, column int) types.Value {
	tileOff, colOff := tg.LocateTileAndColumn(column)
	return tg.tiles[tileOff].Value(slot, colOff)
}

// GetTuple reassembles the logical tuple stored at slot.
func (tg *TileGroup) GetTuple(slot uint32) *Tuple {
	values := make([]types.Value, tg.schema.ColumnCount())
	for col := range values {
		values[col] = tg.GetValue(slot, col)
	}
	return &Tuple{schema: tg.schema, values: values}
}
