package storage

import (
	"fmt"
	"strings"
	"sync"

	"github.com/juju/errors"

	"github.com/tilestore/tilestore/catalog"
	"github.com/tilestore/tilestore/common"
	"github.com/tilestore/tilestore/index"
	"github.com/tilestore/tilestore/logger"
	"github.com/tilestore/tilestore/metrics"
)

// Transaction is what the storage layer needs from the transaction manager:
// the transaction id and the last commit id it has seen. Both are used
// verbatim in every visibility call.
type Transaction interface {
	ID() common.TxnID
	LastCommitID() common.CommitID
}

// DataTable owns an append-only sequence of tile group ids, the indexes and
// foreign keys defined over it, and approximate tuple statistics. The mutex
// guards only the id sequence and the index/foreign-key lists; slot claims
// and index scans run outside it so unrelated mutations never serialize on
// the table.
type DataTable struct {
	mu sync.Mutex

	oid    common.OID
	name   string
	schema *catalog.Schema

	mgr                *Manager
	tuplesPerTileGroup uint32

	tileGroups  []common.OID
	indexes     []index.Index
	foreignKeys []*catalog.ForeignKey

	// Approximate counters: adjusted without synchronization against
	// concurrent mutation, lost updates tolerated.
	numberOfTuples float64
	dirty          bool

	hasPrimaryKey         bool
	uniqueConstraintCount int

	metrics *metrics.TableMetrics
}

// NewDataTable builds a table with one empty tile group, so the table always
// has a last tile group to claim slots from.
func NewDataTable(mgr *Manager, oid common.OID, name string,
	schema *catalog.Schema, tuplesPerTileGroup uint32) *DataTable {

	t := &DataTable{
		oid:                oid,
		name:               name,
		schema:             schema,
		mgr:                mgr,
		tuplesPerTileGroup: tuplesPerTileGroup,
	}
	t.addDefaultTileGroup()
	return t
}

func (t *DataTable) OID() common.OID { return t.oid }

func (t *DataTable) Name() string { return t.name }

func (t *DataTable) Schema() *catalog.Schema { return t.schema }

// SetMetrics wires optional prometheus instrumentation. Not safe to call
// concurrently with mutations.
func (t *DataTable) SetMetrics(m *metrics.TableMetrics) { t.metrics = m }

//===----------------------------------------------------------------------===//
// Tuple helpers
//===----------------------------------------------------------------------===//

func (t *DataTable) checkNulls(tuple *Tuple) int {
	for col := tuple.ColumnCount() - 1; col >= 0; col-- {
		if tuple.IsNull(col) && !t.schema.AllowNull(col) {
			return col
		}
	}
	return -1
}

func (t *DataTable) checkConstraints(tuple *Tuple) error {
	if col := t.checkNulls(tuple); col >= 0 {
		return errors.Annotatef(ErrConstraintViolation,
			"NULL in non-nullable column %q of table %s",
			t.schema.Column(col).Name, t.name)
	}
	return nil
}

// containsVisibleEntry reports whether any of the locations holds a version
// visible to the transaction. This is the visibility half of the unique-key
// existence check.
func (t *DataTable) containsVisibleEntry(locations []common.ItemPointer, tx Transaction) bool {
	for _, loc := range locations {
		tg, err := t.mgr.GetTileGroup(loc.Block)
		if err != nil {
			logger.Errorf("index entry %s points at an unregistered tile group: %v", loc, err)
			continue
		}
		if tg.Header().IsVisible(loc.Offset, tx.ID(), tx.LastCommitID()) {
			return true
		}
	}
	return false
}

// GetTupleSlot checks tuple integrity and claims a slot in the last tile
// group, growing the table when the last one is exhausted. The mutex covers
// only the read of which tile group is last; the claim itself is the tile
// group's own concurrency-safe operation. The loop is unbounded because
// every growth strictly adds capacity.
func (t *DataTable) GetTupleSlot(tx Transaction, tuple *Tuple) (common.ItemPointer, error) {
	if err := t.checkConstraints(tuple); err != nil {
		return common.InvalidItemPointer, err
	}

	txnID := tx.ID()
	for {
		t.mu.Lock()
		last := t.tileGroups[len(t.tileGroups)-1]
		t.mu.Unlock()

		tg, err := t.mgr.GetTileGroup(last)
		if err != nil {
			return common.InvalidItemPointer,
				errors.Annotatef(ErrSlotAcquisitionFailed, "resolving last tile group %d: %v", last, err)
		}

		slot, ok := tg.InsertTuple(txnID, tuple)
		if ok {
			logger.Debugf("claimed slot %d in tile group %d for txn %d", slot, tg.ID(), txnID)
			return common.ItemPointer{Block: tg.ID(), Offset: slot}, nil
		}
		t.addDefaultTileGroup()
	}
}

//===----------------------------------------------------------------------===//
// Insert
//===----------------------------------------------------------------------===//

// InsertTuple claims a slot and runs the index coordination protocol. On an
// index conflict the claimed slot stays physically occupied but never becomes
// visible; reclaiming it is vacuum's job.
func (t *DataTable) InsertTuple(tx Transaction, tuple *Tuple) (common.ItemPointer, error) {
	location, err := t.GetTupleSlot(tx, tuple)
	if err != nil {
		t.metrics.ObserveOperation(t.name, "insert", "constraint_violation")
		return common.InvalidItemPointer, err
	}

	if err := t.insertInIndexes(tx, tuple, location); err != nil {
		logger.Warnf("index constraint violated on table %s: %v", t.name, err)
		if errors.Cause(err) == ErrIndexConflict {
			t.metrics.ObserveConflict(t.name, "index")
			t.metrics.ObserveOperation(t.name, "insert", "index_conflict")
		} else {
			t.metrics.ObserveOperation(t.name, "insert", "internal_consistency")
		}
		return common.InvalidItemPointer, err
	}

	t.IncreaseNumberOfTuplesBy(1)
	for _, idx := range t.snapshotIndexes() {
		idx.IncreaseNumberOfTuplesBy(1)
	}
	t.metrics.ObserveOperation(t.name, "insert", "ok")
	return location, nil
}

// insertInIndexes runs the two-phase index protocol.
//
// Phase one checks, for every primary/unique index, whether a version with
// the same key is visible to the transaction. The phase runs outside the
// table guard, so two concurrent inserters of the same key can both pass it:
// read-committed-grade detection, with the stronger certification left to
// the transaction manager. This does not guarantee serializability.
//
// Phase two inserts into every index. A rejection here means phase one raced
// with a concurrent writer; it surfaces as an internal-consistency error, not
// an ordinary conflict.
func (t *DataTable) insertInIndexes(tx Transaction, tuple *Tuple, location common.ItemPointer) error {
	indexes := t.snapshotIndexes()

	for i := len(indexes) - 1; i >= 0; i-- {
		meta := indexes[i].Metadata()
		switch meta.Type {
		case index.TypePrimaryKey, index.TypeUnique:
			key := tuple.Project(meta.KeyColumns)
			if t.containsVisibleEntry(indexes[i].Scan(key), tx) {
				return errors.Annotatef(ErrIndexConflict,
					"visible duplicate key in index %s", meta.Name)
			}
		}
		logger.Debugf("index constraint check on %s passed", meta.Name)
	}

	for i := len(indexes) - 1; i >= 0; i-- {
		meta := indexes[i].Metadata()
		key := tuple.Project(meta.KeyColumns)
		if err := indexes[i].Insert(key, location); err != nil {
			logger.Errorf("index %s rejected an entry the existence phase cleared: %v",
				meta.Name, err)
			return errors.Annotatef(ErrInternalConsistency,
				"index %s rejected entry at %s", meta.Name, location)
		}
	}
	return nil
}

//===----------------------------------------------------------------------===//
// Update
//===----------------------------------------------------------------------===//

// UpdateTuple installs a new physical version of the row. The fast path
// assumes no indexed column changed and just redirects every index entry to
// the new slot; when some index rejects that, the slow path validates and
// inserts the new keys through the full insert protocol. On total failure
// the freshly claimed slot is left behind for vacuum.
func (t *DataTable) UpdateTuple(tx Transaction, tuple *Tuple) (common.ItemPointer, error) {
	location, err := t.GetTupleSlot(tx, tuple)
	if err != nil {
		t.metrics.ObserveOperation(t.name, "update", "constraint_violation")
		return common.InvalidItemPointer, err
	}

	if t.updateInIndexes(tuple, location) {
		t.metrics.ObserveOperation(t.name, "update", "ok")
		return location, nil
	}

	if err := t.insertInIndexes(tx, tuple, location); err != nil {
		t.metrics.ObserveOperation(t.name, "update", "index_conflict")
		return common.InvalidItemPointer, err
	}
	t.metrics.ObserveOperation(t.name, "update", "ok")
	return location, nil
}

// updateInIndexes attempts the same-key fast path on every index. Any index
// reporting the key absent aborts the attempt.
func (t *DataTable) updateInIndexes(tuple *Tuple, location common.ItemPointer) bool {
	for _, idx := range t.snapshotIndexes() {
		key := tuple.Project(idx.Metadata().KeyColumns)
		if !idx.UpdateInPlace(key, location) {
			logger.Debugf("same-key update failed on index %s", idx.Metadata().Name)
			return false
		}
	}
	return true
}

//===----------------------------------------------------------------------===//
// Delete
//===----------------------------------------------------------------------===//

// DeleteTuple delegates to the tile group's delete. Index entries of the
// deleted version are deliberately left in place; vacuum removes them later,
// which trades stale-entry tolerance for not touching every index here.
func (t *DataTable) DeleteTuple(tx Transaction, location common.ItemPointer) error {
	tg, err := t.mgr.GetTileGroup(location.Block)
	if err != nil {
		return errors.Annotatef(ErrTileGroupNotFound,
			"deleting %s from table %s", location, t.name)
	}

	if !tg.DeleteTuple(tx.ID(), location.Offset, tx.LastCommitID()) {
		logger.Warnf("failed to delete tuple %s from table %s, txn %d",
			location, t.name, tx.ID())
		t.metrics.ObserveConflict(t.name, "delete")
		t.metrics.ObserveOperation(t.name, "delete", "conflict")
		return errors.Annotatef(ErrDeleteConflict, "location %s", location)
	}

	t.DecreaseNumberOfTuplesBy(1)
	t.metrics.ObserveOperation(t.name, "delete", "ok")
	return nil
}

//===----------------------------------------------------------------------===//
// Tile groups
//===----------------------------------------------------------------------===//

// addDefaultTileGroup builds a tile group with the table's schema in a
// single tile and appends it when growth is actually needed. Two threads
// racing on the same exhaustion event are resolved under the mutex: the
// loser observes a last tile group with free slots and discards its fresh
// tile group without ever registering it.
func (t *DataTable) addDefaultTileGroup() common.OID {
	columnMap := DefaultColumnMap(t.schema.ColumnCount())
	tileSchemas := []*catalog.Schema{t.schema.Copy()}
	id := t.mgr.NextOID()
	tg := NewTileGroup(t.oid, id, t.schema, tileSchemas, columnMap, t.tuplesPerTileGroup)

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.tileGroups) > 0 {
		last, err := t.mgr.GetTileGroup(t.tileGroups[len(t.tileGroups)-1])
		if err == nil && last.NextTupleSlot() < last.AllocatedTupleCount() {
			// Someone else already grew the table for this exhaustion event.
			return common.InvalidOID
		}
	}

	// Register in the locator before the id becomes reachable through the
	// table's sequence.
	t.mgr.SetTileGroup(id, tg)
	t.tileGroups = append(t.tileGroups, id)
	logger.Debugf("table %s added tile group %d (capacity %d)", t.name, id, t.tuplesPerTileGroup)
	return id
}

// AddTileGroup appends an externally built tile group, for recovery-style
// callers that rebuild tables from existing data.
func (t *DataTable) AddTileGroup(tg *TileGroup) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mgr.SetTileGroup(tg.ID(), tg)
	t.tileGroups = append(t.tileGroups, tg.ID())
}

func (t *DataTable) TileGroupCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tileGroups)
}

// TileGroup resolves the tile group at a position in the table's sequence.
func (t *DataTable) TileGroup(offset int) (*TileGroup, error) {
	t.mu.Lock()
	if offset < 0 || offset >= len(t.tileGroups) {
		t.mu.Unlock()
		return nil, errors.Annotatef(ErrTileGroupNotFound,
			"offset %d of table %s", offset, t.name)
	}
	id := t.tileGroups[offset]
	t.mu.Unlock()
	return t.mgr.GetTileGroup(id)
}

// TileGroupByID resolves a tile group id through the locator.
func (t *DataTable) TileGroupByID(id common.OID) (*TileGroup, error) {
	return t.mgr.GetTileGroup(id)
}

//===----------------------------------------------------------------------===//
// Indexes
//===----------------------------------------------------------------------===//

func (t *DataTable) AddIndex(idx index.Index) {
	t.mu.Lock()
	t.indexes = append(t.indexes, idx)
	t.mu.Unlock()

	switch idx.Metadata().Type {
	case index.TypePrimaryKey:
		t.hasPrimaryKey = true
	case index.TypeUnique:
		t.uniqueConstraintCount++
	}
}

func (t *DataTable) IndexByOID(oid common.OID) (index.Index, error) {
	for _, idx := range t.snapshotIndexes() {
		if idx.Metadata().OID == oid {
			return idx, nil
		}
	}
	return nil, errors.Annotatef(ErrIndexNotFound, "index %d of table %s", oid, t.name)
}

func (t *DataTable) DropIndexByOID(oid common.OID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, idx := range t.indexes {
		if idx.Metadata().OID == oid {
			t.indexes = append(t.indexes[:i], t.indexes[i+1:]...)
			return nil
		}
	}
	return errors.Annotatef(ErrIndexNotFound, "index %d of table %s", oid, t.name)
}

func (t *DataTable) Index(offset int) (index.Index, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if offset < 0 || offset >= len(t.indexes) {
		return nil, errors.Annotatef(ErrIndexNotFound, "offset %d of table %s", offset, t.name)
	}
	return t.indexes[offset], nil
}

func (t *DataTable) IndexCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.indexes)
}

func (t *DataTable) HasPrimaryKey() bool { return t.hasPrimaryKey }

func (t *DataTable) UniqueConstraintCount() int { return t.uniqueConstraintCount }

func (t *DataTable) snapshotIndexes() []index.Index {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]index.Index, len(t.indexes))
	copy(out, t.indexes)
	return out
}

//===----------------------------------------------------------------------===//
// Foreign keys
//===----------------------------------------------------------------------===//

// AddForeignKey registers the descriptor and tags the referencing columns of
// the owning schema with the constraint name.
func (t *DataTable) AddForeignKey(fk *catalog.ForeignKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, col := range fk.Columns {
		if !t.schema.MarkForeignKey(col, fk.ConstraintName) {
			logger.Warnf("foreign key %s references unknown column %q of table %s",
				fk.ConstraintName, col, t.name)
		}
	}
	t.foreignKeys = append(t.foreignKeys, fk)
}

func (t *DataTable) ForeignKey(offset int) (*catalog.ForeignKey, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if offset < 0 || offset >= len(t.foreignKeys) {
		return nil, errors.Annotatef(ErrForeignKeyNotFound, "offset %d of table %s", offset, t.name)
	}
	return t.foreignKeys[offset], nil
}

func (t *DataTable) DropForeignKey(offset int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if offset < 0 || offset >= len(t.foreignKeys) {
		return errors.Annotatef(ErrForeignKeyNotFound, "offset %d of table %s", offset, t.name)
	}
	t.foreignKeys = append(t.foreignKeys[:offset], t.foreignKeys[offset+1:]...)
	return nil
}

func (t *DataTable) ForeignKeyCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.foreignKeys)
}

//===----------------------------------------------------------------------===//
// Statistics
//===----------------------------------------------------------------------===//

// The tuple counter is a float adjusted without synchronization: concurrent
// updates may lose increments. It is approximate bookkeeping for the stats
// collector, not a correctness-critical value.

func (t *DataTable) IncreaseNumberOfTuplesBy(amount float64) {
	t.numberOfTuples += amount
	t.dirty = true
	t.metrics.SetTupleCount(t.name, t.numberOfTuples)
}

func (t *DataTable) DecreaseNumberOfTuplesBy(amount float64) {
	t.numberOfTuples -= amount
	t.dirty = true
	t.metrics.SetTupleCount(t.name, t.numberOfTuples)
}

func (t *DataTable) SetNumberOfTuples(n float64) {
	t.numberOfTuples = n
	t.dirty = true
	t.metrics.SetTupleCount(t.name, t.numberOfTuples)
}

func (t *DataTable) NumberOfTuples() float64 { return t.numberOfTuples }

func (t *DataTable) IsDirty() bool { return t.dirty }

// ResetDirty is called by the external checkpoint/stats process after it has
// observed the counters.
func (t *DataTable) ResetDirty() { t.dirty = false }

//===----------------------------------------------------------------------===//
// Teardown
//===----------------------------------------------------------------------===//

// Drop releases everything the table exclusively owns: its tile groups are
// removed from the locator, indexes and foreign keys are discarded. Callers
// must guarantee no operation is in flight; the table does not detect
// quiescence.
func (t *DataTable) Drop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range t.tileGroups {
		t.mgr.DropTileGroup(id)
	}
	t.tileGroups = nil
	t.indexes = nil
	t.foreignKeys = nil
}

func (t *DataTable) String() string {
	var b strings.Builder
	b.WriteString("=====================================================\n")
	fmt.Fprintf(&b, "TABLE %s %s\n", t.name, t.schema)

	t.mu.Lock()
	ids := make([]common.OID, len(t.tileGroups))
	copy(ids, t.tileGroups)
	t.mu.Unlock()

	total := uint32(0)
	for i, id := range ids {
		tg, err := t.mgr.GetTileGroup(id)
		if err != nil {
			fmt.Fprintf(&b, "Tile Group #%d (id %d): unresolvable\n", i, id)
			continue
		}
		n := tg.NextTupleSlot()
		fmt.Fprintf(&b, "Tile Group #%d (id %d): %d/%d tuples\n",
			i, id, n, tg.AllocatedTupleCount())
		total += n
	}
	fmt.Fprintf(&b, "Total Tuple Count: %d\n", total)
	b.WriteString("=====================================================\n")
	return b.String()
}
