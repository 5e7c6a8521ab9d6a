package index

import (
	"fmt"
	"sync"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilestore/tilestore/common"
	"github.com/tilestore/tilestore/types"
)

func intKey(v int64) []types.Value {
	return []types.Value{types.NewIntValue(v)}
}

func loc(block, offset uint32) common.ItemPointer {
	return common.ItemPointer{Block: common.OID(block), Offset: offset}
}

func newHash() *HashIndex {
	return NewHashIndex(&Metadata{OID: 1, Name: "h", Type: TypeDefault, KeyColumns: []int{0}})
}

func TestHashIndexInsertScan(t *testing.T) {
	idx := newHash()

	require.NoError(t, idx.Insert(intKey(1), loc(0, 0)))
	require.NoError(t, idx.Insert(intKey(2), loc(0, 1)))
	assert.Equal(t, 2, idx.EntryCount())

	assert.Equal(t, []common.ItemPointer{loc(0, 0)}, idx.Scan(intKey(1)))
	assert.Nil(t, idx.Scan(intKey(3)))
}

func TestHashIndexIsMultimap(t *testing.T) {
	idx := newHash()

	// Multiple versions of one key are legal.
	require.NoError(t, idx.Insert(intKey(1), loc(0, 0)))
	require.NoError(t, idx.Insert(intKey(1), loc(0, 5)))
	assert.Len(t, idx.Scan(intKey(1)), 2)
	assert.Equal(t, 2, idx.EntryCount())

	// Only the exact (key, location) pair is rejected.
	err := idx.Insert(intKey(1), loc(0, 5))
	require.Error(t, err)
	assert.Equal(t, ErrDuplicateEntry, errors.Cause(err))
	assert.Equal(t, 2, idx.EntryCount())
}

func TestHashIndexUpdateInPlace(t *testing.T) {
	idx := newHash()

	assert.False(t, idx.UpdateInPlace(intKey(1), loc(1, 0)))

	require.NoError(t, idx.Insert(intKey(1), loc(0, 0)))
	assert.True(t, idx.UpdateInPlace(intKey(1), loc(1, 0)))
	assert.Equal(t, []common.ItemPointer{loc(1, 0)}, idx.Scan(intKey(1)))
	assert.Equal(t, 1, idx.EntryCount())

	// With several versions only the most recent one is redirected.
	require.NoError(t, idx.Insert(intKey(1), loc(2, 0)))
	assert.True(t, idx.UpdateInPlace(intKey(1), loc(3, 0)))
	assert.Equal(t, []common.ItemPointer{loc(1, 0), loc(3, 0)}, idx.Scan(intKey(1)))
}

func TestHashIndexDelete(t *testing.T) {
	idx := newHash()

	require.NoError(t, idx.Insert(intKey(1), loc(0, 0)))
	require.NoError(t, idx.Insert(intKey(1), loc(0, 1)))

	assert.False(t, idx.Delete(intKey(2), loc(0, 0)))
	assert.False(t, idx.Delete(intKey(1), loc(9, 9)))

	assert.True(t, idx.Delete(intKey(1), loc(0, 0)))
	assert.Equal(t, []common.ItemPointer{loc(0, 1)}, idx.Scan(intKey(1)))
	assert.Equal(t, 1, idx.EntryCount())
}

func TestHashIndexCompositeKeys(t *testing.T) {
	idx := NewHashIndex(&Metadata{OID: 2, Name: "comp", KeyColumns: []int{0, 1}})

	k1 := []types.Value{types.NewIntValue(1), types.NewVarcharValue("a")}
	k2 := []types.Value{types.NewIntValue(1), types.NewVarcharValue("b")}
	require.NoError(t, idx.Insert(k1, loc(0, 0)))
	require.NoError(t, idx.Insert(k2, loc(0, 1)))

	assert.Equal(t, []common.ItemPointer{loc(0, 0)}, idx.Scan(k1))
	assert.Equal(t, []common.ItemPointer{loc(0, 1)}, idx.Scan(k2))
}

func TestHashIndexConcurrentInsert(t *testing.T) {
	idx := newHash()

	const workers = 8
	const perWorker = 100
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				key := intKey(int64(i))
				if err := idx.Insert(key, loc(uint32(w), uint32(i))); err != nil {
					t.Errorf("insert: %v", err)
				}
				idx.Scan(key)
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, workers*perWorker, idx.EntryCount())
	for i := 0; i < perWorker; i++ {
		assert.Len(t, idx.Scan(intKey(int64(i))), workers, fmt.Sprintf("key %d", i))
	}
}
