package storage

import "github.com/tilestore/tilestore/common"

// TableIterator enumerates the tuple versions visible to a transaction, in
// tile group order, then slot order. It observes the tile group sequence as
// it stood per step; tuples inserted behind the cursor during iteration may
// or may not be seen.
type TableIterator struct {
	table *DataTable
	tx    Transaction

	tgOffset int
	tg       *TileGroup
	slot     uint32

	tuple    *Tuple
	location common.ItemPointer
}

// Iterator returns a scan handle over the table's tile groups.
func (t *DataTable) Iterator(tx Transaction) *TableIterator {
	return &TableIterator{table: t, tx: tx}
}

// Next advances to the next visible tuple version.
func (it *TableIterator) Next() bool {
	for {
		if it.tg == nil {
			if it.tgOffset >= it.table.TileGroupCount() {
				return false
			}
			tg, err := it.table.TileGroup(it.tgOffset)
			if err != nil {
				return false
			}
			it.tg = tg
			it.slot = 0
		}

		limit := it.tg.NextTupleSlot()
		for it.slot < limit {
			slot := it.slot
			it.slot++
			if it.tg.Header().IsVisible(slot, it.tx.ID(), it.tx.LastCommitID()) {
				it.tuple = it.tg.GetTuple(slot)
				it.location = common.ItemPointer{Block: it.tg.ID(), Offset: slot}
				return true
			}
		}

		it.tg = nil
		it.tgOffset++
	}
}

// Tuple returns the tuple at the cursor. Valid after Next reports true.
func (it *TableIterator) Tuple() *Tuple { return it.tuple }

// Location returns the address of the tuple at the cursor.
func (it *TableIterator) Location() common.ItemPointer { return it.location }
