package storage

import (
	"sync"
	"sync/atomic"

	"github.com/tilestore/tilestore/common"
)

// TileGroupHeader holds the per-slot MVCC metadata of a tile group: the
// writer transaction id (which doubles as the slot latch), begin/end commit
// stamps and the next-version link. The slot cursor and the id/stamp fields
// are manipulated with atomics; version links are guarded by a small mutex.
type TileGroupHeader struct {
	allocated uint32
	nextSlot  uint32

	txnIDs    []uint64
	beginCIDs []uint64
	endCIDs   []uint64

	mu   sync.Mutex
	next []common.ItemPointer
}

func NewTileGroupHeader(allocated uint32) *TileGroupHeader {
	h := &TileGroupHeader{
		allocated: allocated,
		txnIDs:    make([]uint64, allocated),
		beginCIDs: make([]uint64, allocated),
		endCIDs:   make([]uint64, allocated),
		next:      make([]common.ItemPointer, allocated),
	}
	for i := uint32(0); i < allocated; i++ {
		h.beginCIDs[i] = uint64(common.MaxCommitID)
		h.endCIDs[i] = uint64(common.MaxCommitID)
		h.next[i] = common.InvalidItemPointer
	}
	return h
}

func (h *TileGroupHeader) AllocatedCount() uint32 { return h.allocated }

// NextTupleSlot is the number of claimed slots, capped at capacity.
func (h *TileGroupHeader) NextTupleSlot() uint32 {
	n := atomic.LoadUint32(&h.nextSlot)
	if n > h.allocated {
		return h.allocated
	}
	return n
}

// NextEmptyTupleSlot claims the next free slot. Claimed slots are never
// handed out twice; a full header reports false.
func (h *TileGroupHeader) NextEmptyTupleSlot() (uint32, bool) {
	n := atomic.AddUint32(&h.nextSlot, 1) - 1
	if n >= h.allocated {
		return common.InvalidSlot, false
	}
	return n, true
}

func (h *TileGroupHeader) TransactionID(slot uint32) common.TxnID {
	return common.TxnID(atomic.LoadUint64(&h.txnIDs[slot]))
}

func (h *TileGroupHeader) SetTransactionID(slot uint32, txn common.TxnID) {
	atomic.StoreUint64(&h.txnIDs[slot], uint64(txn))
}

func (h *TileGroupHeader) BeginCommitID(slot uint32) common.CommitID {
	return common.CommitID(atomic.LoadUint64(&h.beginCIDs[slot]))
}

func (h *TileGroupHeader) SetBeginCommitID(slot uint32, cid common.CommitID) {
	atomic.StoreUint64(&h.beginCIDs[slot], uint64(cid))
}

func (h *TileGroupHeader) EndCommitID(slot uint32) common.CommitID {
	return common.CommitID(atomic.LoadUint64(&h.endCIDs[slot]))
}

func (h *TileGroupHeader) SetEndCommitID(slot uint32, cid common.CommitID) {
	atomic.StoreUint64(&h.endCIDs[slot], uint64(cid))
}

func (h *TileGroupHeader) NextItemPointer(slot uint32) common.ItemPointer {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.next[slot]
}

func (h *TileGroupHeader) SetNextItemPointer(slot uint32, p common.ItemPointer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next[slot] = p
}

// LatchTupleSlot claims the slot for txn. Only a committed slot (latch value
// InitialTxnID) can be claimed; a concurrent writer holding the latch makes
// this fail.
func (h *TileGroupHeader) LatchTupleSlot(slot uint32, txn common.TxnID) bool {
	return atomic.CompareAndSwapUint64(&h.txnIDs[slot],
		uint64(common.InitialTxnID), uint64(txn))
}

// ReleaseTupleSlot hands the latch back without changing version stamps.
func (h *TileGroupHeader) ReleaseTupleSlot(slot uint32) {
	atomic.StoreUint64(&h.txnIDs[slot], uint64(common.InitialTxnID))
}

// IsVisible answers whether the version at slot is visible to a reader with
// the given transaction id and last seen commit id: either a committed
// version inside the reader's horizon, or the reader's own uncommitted write.
func (h *TileGroupHeader) IsVisible(slot uint32, txn common.TxnID, atCID common.CommitID) bool {
	if slot >= h.NextTupleSlot() {
		return false
	}
	tupleTxn := h.TransactionID(slot)
	if tupleTxn == common.InvalidTxnID {
		return false
	}
	own := tupleTxn == txn
	activated := atCID >= h.BeginCommitID(slot)
	invalidated := atCID >= h.EndCommitID(slot)

	return (!own && activated && !invalidated) ||
		(own && !activated && !invalidated)
}

// CommitInsert stamps the begin commit id and releases the writer latch.
func (h *TileGroupHeader) CommitInsert(slot uint32, cid common.CommitID) {
	h.SetBeginCommitID(slot, cid)
	h.SetTransactionID(slot, common.InitialTxnID)
}

// CommitDelete stamps the end commit id and releases the writer latch.
func (h *TileGroupHeader) CommitDelete(slot uint32, cid common.CommitID) {
	h.SetEndCommitID(slot, cid)
	h.SetTransactionID(slot, common.InitialTxnID)
}

// AbortInsert marks the slot as never visible. The physical slot stays
// occupied until vacuum reclaims it.
func (h *TileGroupHeader) AbortInsert(slot uint32) {
	h.SetTransactionID(slot, common.InvalidTxnID)
}

// AbortDelete releases the delete latch, leaving the version intact.
func (h *TileGroupHeader) AbortDelete(slot uint32) {
	h.ReleaseTupleSlot(slot)
}

// CopyFrom copies the other header's entire MVCC state verbatim. Used by
// tile group transformation to preserve version history exactly.
func (h *TileGroupHeader) CopyFrom(o *TileGroupHeader) {
	atomic.StoreUint32(&h.nextSlot, atomic.LoadUint32(&o.nextSlot))
	for i := uint32(0); i < o.allocated && i < h.allocated; i++ {
		atomic.StoreUint64(&h.txnIDs[i], atomic.LoadUint64(&o.txnIDs[i]))
		atomic.StoreUint64(&h.beginCIDs[i], atomic.LoadUint64(&o.beginCIDs[i]))
		atomic.StoreUint64(&h.endCIDs[i], atomic.LoadUint64(&o.endCIDs[i]))
	}
	o.mu.Lock()
	links := make([]common.ItemPointer, len(o.next))
	copy(links, o.next)
	o.mu.Unlock()

	h.mu.Lock()
	copy(h.next, links)
	h.mu.Unlock()
}
