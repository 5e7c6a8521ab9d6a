package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilestore/tilestore/catalog"
	"github.com/tilestore/tilestore/common"
	"github.com/tilestore/tilestore/types"
)

func newTestTileGroup(capacity uint32) *TileGroup {
	schema := testSchema()
	return NewTileGroup(0, 1, schema, []*catalog.Schema{schema.Copy()},
		DefaultColumnMap(schema.ColumnCount()), capacity)
}

func TestTileGroupInsertUntilFull(t *testing.T) {
	tg := newTestTileGroup(2)
	schema := tg.Schema()

	slot0, ok := tg.InsertTuple(10, mustTuple(t, schema, 1, "a"))
	require.True(t, ok)
	assert.Equal(t, uint32(0), slot0)

	slot1, ok := tg.InsertTuple(10, mustTuple(t, schema, 2, "b"))
	require.True(t, ok)
	assert.Equal(t, uint32(1), slot1)
	assert.Equal(t, uint32(2), tg.NextTupleSlot())

	// Exhausted: the claim fails and the cursor stays capped.
	_, ok = tg.InsertTuple(10, mustTuple(t, schema, 3, "c"))
	assert.False(t, ok)
	assert.Equal(t, uint32(2), tg.NextTupleSlot())

	got := tg.GetTuple(slot1)
	assert.Equal(t, int64(2), got.Value(0).Int64())
	assert.Equal(t, "b", got.Value(1).Varchar())
}

func TestHeaderVisibility(t *testing.T) {
	tg := newTestTileGroup(4)
	h := tg.Header()

	slot, ok := tg.InsertTuple(10, mustTuple(t, tg.Schema(), 1, "a"))
	require.True(t, ok)

	// Uncommitted: visible only to the writer.
	assert.True(t, h.IsVisible(slot, 10, 0))
	assert.False(t, h.IsVisible(slot, 11, 0))

	h.CommitInsert(slot, 5)

	// Committed at 5: visible to readers at or past that horizon, including
	// the former writer.
	assert.True(t, h.IsVisible(slot, 11, 5))
	assert.True(t, h.IsVisible(slot, 10, 5))
	assert.False(t, h.IsVisible(slot, 11, 4))

	h.CommitDelete(slot, 8)
	assert.True(t, h.IsVisible(slot, 11, 7))
	assert.False(t, h.IsVisible(slot, 11, 8))

	// Unclaimed and out-of-range slots are never visible.
	assert.False(t, h.IsVisible(1, 11, 5))
	assert.False(t, h.IsVisible(99, 11, 5))
}

func TestHeaderAbortInsert(t *testing.T) {
	tg := newTestTileGroup(4)
	h := tg.Header()

	slot, ok := tg.InsertTuple(10, mustTuple(t, tg.Schema(), 1, "a"))
	require.True(t, ok)
	require.True(t, h.IsVisible(slot, 10, 0))

	h.AbortInsert(slot)
	assert.False(t, h.IsVisible(slot, 10, 0))
	assert.Equal(t, common.InvalidTxnID, h.TransactionID(slot))
}

func TestTileGroupDeleteConflicts(t *testing.T) {
	tg := newTestTileGroup(4)
	h := tg.Header()

	slot, ok := tg.InsertTuple(10, mustTuple(t, tg.Schema(), 1, "a"))
	require.True(t, ok)

	// Deleting a version this transaction just created is legal: the latch
	// is already held.
	assert.True(t, tg.DeleteTuple(10, slot, 0))

	// A concurrent writer cannot latch the uncommitted slot.
	assert.False(t, tg.DeleteTuple(11, slot, 0))

	h.CommitInsert(slot, 3)

	// A reader behind the insert's commit cannot delete what it cannot see;
	// the latch is released on the way out.
	assert.False(t, tg.DeleteTuple(11, slot, 2))
	assert.Equal(t, common.InitialTxnID, h.TransactionID(slot))

	// A reader at the horizon deletes and holds the latch.
	assert.True(t, tg.DeleteTuple(11, slot, 3))
	assert.Equal(t, common.TxnID(11), h.TransactionID(slot))

	// Second deleter conflicts on the latch.
	assert.False(t, tg.DeleteTuple(12, slot, 3))

	h.CommitDelete(slot, 4)

	// A superseded version cannot be deleted again.
	assert.False(t, tg.DeleteTuple(12, slot, 4))

	// Out-of-range slots fail outright.
	assert.False(t, tg.DeleteTuple(12, 99, 4))
}

func TestHeaderVersionLinks(t *testing.T) {
	h := NewTileGroupHeader(2)
	assert.Equal(t, common.InvalidItemPointer, h.NextItemPointer(0))

	p := common.ItemPointer{Block: 7, Offset: 3}
	h.SetNextItemPointer(0, p)
	assert.Equal(t, p, h.NextItemPointer(0))
}

func TestColumnMapResolution(t *testing.T) {
	schema := testSchema()
	// Two tiles: id in tile 0, name in tile 1.
	columnMap := ColumnMap{
		0: {Tile: 0, Column: 0},
		1: {Tile: 1, Column: 0},
	}
	tileSchemas := []*catalog.Schema{
		catalog.NewSchema([]catalog.Column{schema.Column(0)}),
		catalog.NewSchema([]catalog.Column{schema.Column(1)}),
	}
	tg := NewTileGroup(0, 2, schema, tileSchemas, columnMap, 4)

	slot, ok := tg.InsertTuple(10, mustTuple(t, schema, 42, "split"))
	require.True(t, ok)

	tile, col := tg.LocateTileAndColumn(1)
	assert.Equal(t, 1, tile)
	assert.Equal(t, 0, col)

	assert.True(t, types.NewIntValue(42).Equal(tg.GetValue(slot, 0)))
	assert.True(t, types.NewVarcharValue("split").Equal(tg.GetValue(slot, 1)))
}
