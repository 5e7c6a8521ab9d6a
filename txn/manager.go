package txn

import (
	"sync"
	"sync/atomic"

	"github.com/juju/errors"

	"github.com/tilestore/tilestore/common"
	"github.com/tilestore/tilestore/logger"
	"github.com/tilestore/tilestore/storage"
)

var (
	ErrTransactionNotActive = errors.New("transaction not active")
)

// Manager issues transaction ids, tracks active transactions, and turns a
// transaction's write set into MVCC header stamps at commit or abort. Commit
// stamping goes through the tile group locator so it keeps working across
// tile group transformation.
type Manager struct {
	locator *storage.Manager

	nextTxnID     uint64
	lastCommitted uint64

	mu     sync.Mutex
	active map[common.TxnID]*Transaction
}

func NewManager(locator *storage.Manager) *Manager {
	return &Manager{
		locator:   locator,
		nextTxnID: uint64(common.InitialTxnID),
		active:    make(map[common.TxnID]*Transaction),
	}
}

// Begin starts a transaction. Its last commit id is the commit horizon at
// start time: every version committed at or before it is visible.
func (m *Manager) Begin() *Transaction {
	id := common.TxnID(atomic.AddUint64(&m.nextTxnID, 1))
	t := &Transaction{
		id:           id,
		lastCommitID: common.CommitID(atomic.LoadUint64(&m.lastCommitted)),
		state:        StateActive,
	}

	m.mu.Lock()
	m.active[id] = t
	m.mu.Unlock()

	logger.Debugf("txn %d began at commit horizon %d", t.id, t.lastCommitID)
	return t
}

// LastCommittedID returns the current commit horizon.
func (m *Manager) LastCommittedID() common.CommitID {
	return common.CommitID(atomic.LoadUint64(&m.lastCommitted))
}

// Commit assigns the next commit id and stamps every slot in the write set:
// inserted versions get their begin commit id, deleted versions their end
// commit id, and all writer latches are released.
func (m *Manager) Commit(t *Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.active[t.id]; !ok {
		return errors.Annotatef(ErrTransactionNotActive, "txn %d", t.id)
	}
	cid := common.CommitID(atomic.LoadUint64(&m.lastCommitted) + 1)

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, loc := range t.inserted {
		tg, err := m.locator.GetTileGroup(loc.Block)
		if err != nil {
			return errors.Annotatef(err, "committing insert at %s", loc)
		}
		tg.Header().CommitInsert(loc.Offset, cid)
	}
	for _, loc := range t.deleted {
		tg, err := m.locator.GetTileGroup(loc.Block)
		if err != nil {
			return errors.Annotatef(err, "committing delete at %s", loc)
		}
		tg.Header().CommitDelete(loc.Offset, cid)
	}

	atomic.StoreUint64(&m.lastCommitted, uint64(cid))
	t.state = StateCommitted
	delete(m.active, t.id)

	logger.Debugf("txn %d committed as commit id %d", t.id, cid)
	return nil
}

// Abort invalidates every inserted slot (it never becomes visible; vacuum
// reclaims the space) and releases delete latches.
func (m *Manager) Abort(t *Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.active[t.id]; !ok {
		return errors.Annotatef(ErrTransactionNotActive, "txn %d", t.id)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, loc := range t.inserted {
		tg, err := m.locator.GetTileGroup(loc.Block)
		if err != nil {
			logger.Errorf("aborting txn %d: insert at %s unresolvable: %v", t.id, loc, err)
			continue
		}
		tg.Header().AbortInsert(loc.Offset)
	}
	for _, loc := range t.deleted {
		tg, err := m.locator.GetTileGroup(loc.Block)
		if err != nil {
			logger.Errorf("aborting txn %d: delete at %s unresolvable: %v", t.id, loc, err)
			continue
		}
		tg.Header().AbortDelete(loc.Offset)
	}

	t.state = StateAborted
	delete(m.active, t.id)

	logger.Debugf("txn %d aborted", t.id)
	return nil
}

// ActiveCount reports the number of in-flight transactions.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}
