package index

import (
	"bytes"
	"sort"
	"sync"

	"github.com/juju/errors"

	"github.com/tilestore/tilestore/common"
	"github.com/tilestore/tilestore/types"
)

// OrderedIndex keeps entries sorted by key. It stands in for a B-tree behind
// the same contract: exact-match scans plus ordered range scans.
type OrderedIndex struct {
	baseIndex

	mu      sync.RWMutex
	keys    []*orderedEntry
	entries int
}

type orderedEntry struct {
	key       []types.Value
	enc       []byte
	locations []common.ItemPointer
}

func NewOrderedIndex(meta *Metadata) *OrderedIndex {
	return &OrderedIndex{baseIndex: baseIndex{meta: meta}}
}

// compareKeys orders key tuples column by column. Keys within one index share
// a schema; if a malformed key slips in, the encoded form breaks the tie.
func compareKeys(a, b *orderedEntry) int {
	n := len(a.key)
	if len(b.key) < n {
		n = len(b.key)
	}
	for i := 0; i < n; i++ {
		c, err := a.key[i].Compare(b.key[i])
		if err != nil {
			return bytes.Compare(a.enc, b.enc)
		}
		if c != 0 {
			return c
		}
	}
	return len(a.key) - len(b.key)
}

// search returns the insertion position of key and whether it is present.
func (idx *OrderedIndex) search(e *orderedEntry) (int, bool) {
	pos := sort.Search(len(idx.keys), func(i int) bool {
		return compareKeys(idx.keys[i], e) >= 0
	})
	if pos < len(idx.keys) && compareKeys(idx.keys[pos], e) == 0 {
		return pos, true
	}
	return pos, false
}

func (idx *OrderedIndex) Scan(key []types.Value) []common.ItemPointer {
	probe := &orderedEntry{key: key, enc: EncodeKey(key)}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	pos, found := idx.search(probe)
	if !found {
		return nil
	}
	out := make([]common.ItemPointer, len(idx.keys[pos].locations))
	copy(out, idx.keys[pos].locations)
	return out
}

// ScanRange returns every location whose key lies in [low, high], inclusive.
func (idx *OrderedIndex) ScanRange(low, high []types.Value) []common.ItemPointer {
	lo := &orderedEntry{key: low, enc: EncodeKey(low)}
	hi := &orderedEntry{key: high, enc: EncodeKey(high)}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	start, _ := idx.search(lo)
	var out []common.ItemPointer
	for i := start; i < len(idx.keys); i++ {
		if compareKeys(idx.keys[i], hi) > 0 {
			break
		}
		out = append(out, idx.keys[i].locations...)
	}
	return out
}

func (idx *OrderedIndex) Insert(key []types.Value, location common.ItemPointer) error {
	e := &orderedEntry{key: key, enc: EncodeKey(key)}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	pos, found := idx.search(e)
	if !found {
		e.locations = []common.ItemPointer{location}
		idx.keys = append(idx.keys, nil)
		copy(idx.keys[pos+1:], idx.keys[pos:])
		idx.keys[pos] = e
		idx.entries++
		return nil
	}
	existing := idx.keys[pos]
	for _, loc := range existing.locations {
		if loc == location {
			return errors.Annotatef(ErrDuplicateEntry, "index %s location %s", idx.meta.Name, location)
		}
	}
	existing.locations = append(existing.locations, location)
	idx.entries++
	return nil
}

func (idx *OrderedIndex) UpdateInPlace(key []types.Value, location common.ItemPointer) bool {
	e := &orderedEntry{key: key, enc: EncodeKey(key)}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	pos, found := idx.search(e)
	if !found || len(idx.keys[pos].locations) == 0 {
		return false
	}
	locs := idx.keys[pos].locations
	locs[len(locs)-1] = location
	return true
}

func (idx *OrderedIndex) Delete(key []types.Value, location common.ItemPointer) bool {
	e := &orderedEntry{key: key, enc: EncodeKey(key)}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	pos, found := idx.search(e)
	if !found {
		return false
	}
	existing := idx.keys[pos]
	for i, loc := range existing.locations {
		if loc == location {
			existing.locations = append(existing.locations[:i], existing.locations[i+1:]...)
			idx.entries--
			if len(existing.locations) == 0 {
				idx.keys = append(idx.keys[:pos], idx.keys[pos+1:]...)
			}
			return true
		}
	}
	return false
}

func (idx *OrderedIndex) EntryCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.entries
}
