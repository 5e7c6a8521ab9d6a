package common

import (
	"fmt"
	"math"
)

// OID identifies catalog objects: tables, tile groups, indexes and foreign
// keys. Tile group OIDs are issued by the storage manager and stay valid for
// the lifetime of the process even when the instance behind them is replaced.
type OID uint32

const InvalidOID OID = math.MaxUint32

// TxnID identifies an in-flight transaction. The per-slot transaction id in a
// tile group header doubles as the slot's writer latch.
type TxnID uint64

const (
	// InvalidTxnID marks a slot that has never been written, or an aborted
	// insert that must never become visible.
	InvalidTxnID TxnID = 0
	// InitialTxnID marks a slot whose writer has committed; no transaction
	// holds the slot latch.
	InitialTxnID TxnID = 1
)

// CommitID is a monotonically increasing commit timestamp. Version visibility
// compares a reader's last seen commit id against the begin/end stamps of a
// slot.
type CommitID uint64

const (
	InvalidCommitID CommitID = 0
	MaxCommitID     CommitID = math.MaxUint64
)

// InvalidSlot is the sentinel tuple offset within a tile group.
const InvalidSlot uint32 = math.MaxUint32

// ItemPointer addresses one tuple version: tile group id plus slot offset.
// It survives tile group transformation, which replaces the instance behind
// the id without renumbering slots.
type ItemPointer struct {
	Block  OID
	Offset uint32
}

// InvalidItemPointer represents "no location".
var InvalidItemPointer = ItemPointer{Block: InvalidOID, Offset: InvalidSlot}

func (p ItemPointer) IsValid() bool {
	return p.Block != InvalidOID && p.Offset != InvalidSlot
}

func (p ItemPointer) String() string {
	if !p.IsValid() {
		return "(invalid)"
	}
	return fmt.Sprintf("(%d, %d)", p.Block, p.Offset)
}
