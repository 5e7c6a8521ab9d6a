package txn

import (
	"sync"

	"github.com/tilestore/tilestore/common"
)

// State of a transaction in the registry.
type State int

const (
	StateActive State = iota
	StateCommitted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateCommitted:
		return "committed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Transaction is the context the storage layer consumes: a transaction id
// and the last commit id visible when the transaction began. It also carries
// the write set the manager stamps at commit.
type Transaction struct {
	id           common.TxnID
	lastCommitID common.CommitID

	mu       sync.Mutex
	state    State
	inserted []common.ItemPointer
	deleted  []common.ItemPointer
}

func (t *Transaction) ID() common.TxnID { return t.id }

func (t *Transaction) LastCommitID() common.CommitID { return t.lastCommitID }

func (t *Transaction) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// RecordInsert adds a freshly claimed location to the write set.
func (t *Transaction) RecordInsert(loc common.ItemPointer) {
	t.mu.Lock()
	t.inserted = append(t.inserted, loc)
	t.mu.Unlock()
}

// RecordDelete adds a latched-for-delete location to the write set.
func (t *Transaction) RecordDelete(loc common.ItemPointer) {
	t.mu.Lock()
	t.deleted = append(t.deleted, loc)
	t.mu.Unlock()
}
