package storage

import (
	"sync"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilestore/tilestore/common"
)

func TestManagerRegisterResolveDrop(t *testing.T) {
	m := NewManager()

	id := m.NextOID()
	tg := newTestTileGroup(4)
	m.SetTileGroup(id, tg)

	got, err := m.GetTileGroup(id)
	require.NoError(t, err)
	assert.Same(t, tg, got)
	assert.Equal(t, 1, m.TileGroupCount())

	// Replacing the instance behind an id keeps the id resolvable.
	other := newTestTileGroup(4)
	m.SetTileGroup(id, other)
	got, err = m.GetTileGroup(id)
	require.NoError(t, err)
	assert.Same(t, other, got)

	m.DropTileGroup(id)
	_, err = m.GetTileGroup(id)
	require.Error(t, err)
	assert.Equal(t, ErrTileGroupNotFound, errors.Cause(err))
}

func TestManagerOIDsAreUnique(t *testing.T) {
	m := NewManager()

	const workers = 8
	const perWorker = 100
	var (
		mu   sync.Mutex
		seen = make(map[common.OID]struct{})
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id := m.NextOID()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, workers*perWorker)
}
