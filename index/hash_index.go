package index

import (
	"bytes"
	"sync"

	"github.com/OneOfOne/xxhash"
	"github.com/juju/errors"

	"github.com/tilestore/tilestore/common"
	"github.com/tilestore/tilestore/types"
)

// HashIndex buckets entries by the xxhash of the encoded key. Collisions are
// resolved by comparing the full encoded key within the bucket.
type HashIndex struct {
	baseIndex

	mu      sync.RWMutex
	buckets map[uint64][]*hashEntry
	entries int
}

type hashEntry struct {
	key       []byte
	locations []common.ItemPointer
}

func NewHashIndex(meta *Metadata) *HashIndex {
	return &HashIndex{
		baseIndex: baseIndex{meta: meta},
		buckets:   make(map[uint64][]*hashEntry),
	}
}

func hashKey(key []byte) uint64 {
	h := xxhash.New64()
	h.Write(key)
	return h.Sum64()
}

func (idx *HashIndex) lookup(hash uint64, key []byte) *hashEntry {
	for _, e := range idx.buckets[hash] {
		if bytes.Equal(e.key, key) {
			return e
		}
	}
	return nil
}

func (idx *HashIndex) Scan(key []types.Value) []common.ItemPointer {
	enc := EncodeKey(key)
	hash := hashKey(enc)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	e := idx.lookup(hash, enc)
	if e == nil {
		return nil
	}
	out := make([]common.ItemPointer, len(e.locations))
	copy(out, e.locations)
	return out
}

func (idx *HashIndex) Insert(key []types.Value, location common.ItemPointer) error {
	enc := EncodeKey(key)
	hash := hashKey(enc)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	e := idx.lookup(hash, enc)
	if e == nil {
		idx.buckets[hash] = append(idx.buckets[hash], &hashEntry{
			key:       enc,
			locations: []common.ItemPointer{location},
		})
		idx.entries++
		return nil
	}
	for _, loc := range e.locations {
		if loc == location {
			return errors.Annotatef(ErrDuplicateEntry, "index %s location %s", idx.meta.Name, location)
		}
	}
	e.locations = append(e.locations, location)
	idx.entries++
	return nil
}

func (idx *HashIndex) UpdateInPlace(key []types.Value, location common.ItemPointer) bool {
	enc := EncodeKey(key)
	hash := hashKey(enc)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	e := idx.lookup(hash, enc)
	if e == nil || len(e.locations) == 0 {
		return false
	}
	// Redirect the most recent version stored under this key.
	e.locations[len(e.locations)-1] = location
	return true
}

func (idx *HashIndex) Delete(key []types.Value, location common.ItemPointer) bool {
	enc := EncodeKey(key)
	hash := hashKey(enc)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	e := idx.lookup(hash, enc)
	if e == nil {
		return false
	}
	for i, loc := range e.locations {
		if loc == location {
			e.locations = append(e.locations[:i], e.locations[i+1:]...)
			idx.entries--
			return true
		}
	}
	return false
}

func (idx *HashIndex) EntryCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.entries
}
