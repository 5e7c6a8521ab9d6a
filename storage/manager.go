package storage

import (
	"sync"
	"sync/atomic"

	"github.com/juju/errors"

	"github.com/tilestore/tilestore/common"
)

// Manager is the tile group locator: the process-wide mapping from tile
// group id to live instance, and the allocator of new ids. It replaces the
// original design's global catalog singleton with an explicit service object
// shared by the tables of one database. An id registered here stays
// resolvable for the owning table's lifetime; transformation swaps the
// instance behind the id in place.
type Manager struct {
	nextOID uint32

	mu         sync.RWMutex
	tileGroups map[common.OID]*TileGroup
}

func NewManager() *Manager {
	return &Manager{tileGroups: make(map[common.OID]*TileGroup)}
}

// NextOID issues a fresh object id.
func (m *Manager) NextOID() common.OID {
	return common.OID(atomic.AddUint32(&m.nextOID, 1) - 1)
}

// SetTileGroup registers a tile group under its id, or atomically replaces
// the instance already registered there.
func (m *Manager) SetTileGroup(id common.OID, tg *TileGroup) {
	m.mu.Lock()
	m.tileGroups[id] = tg
	m.mu.Unlock()
}

// GetTileGroup resolves an id to the live instance.
func (m *Manager) GetTileGroup(id common.OID) (*TileGroup, error) {
	m.mu.RLock()
	tg, ok := m.tileGroups[id]
	m.mu.RUnlock()
	if !ok {
		return nil, errors.Annotatef(ErrTileGroupNotFound, "tile group %d", id)
	}
	return tg, nil
}

// DropTileGroup removes an id from the locator. Only the owning table calls
// this, at teardown.
func (m *Manager) DropTileGroup(id common.OID) {
	m.mu.Lock()
	delete(m.tileGroups, id)
	m.mu.Unlock()
}

func (m *Manager) TileGroupCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tileGroups)
}
