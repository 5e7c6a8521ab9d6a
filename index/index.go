package index

import (
	"github.com/tilestore/tilestore/common"
	"github.com/tilestore/tilestore/types"
)

// Type tags an index with its constraint kind. Only primary-key and unique
// indexes participate in the table's visibility-based existence check.
type Type uint8

const (
	TypeDefault Type = iota
	TypeUnique
	TypePrimaryKey
)

func (t Type) String() string {
	switch t {
	case TypeDefault:
		return "default"
	case TypeUnique:
		return "unique"
	case TypePrimaryKey:
		return "primary-key"
	default:
		return "unknown"
	}
}

// Metadata identifies an index and its key projection over the base table.
type Metadata struct {
	OID  common.OID
	Name string
	Type Type
	// KeyColumns holds the offsets of the indexed columns in the base-table
	// schema, in key order.
	KeyColumns []int
}

// Index is the contract the table drives during insert and update. Indexes
// are multimaps over MVCC versions: structural duplicates are legal, and key
// uniqueness is enforced above this layer through version visibility.
type Index interface {
	Metadata() *Metadata

	// Scan returns every location stored under the key.
	Scan(key []types.Value) []common.ItemPointer
	// Insert adds key -> location. It rejects only an exact duplicate
	// (key, location) pair.
	Insert(key []types.Value, location common.ItemPointer) error
	// UpdateInPlace redirects an existing entry for the key to the new
	// location. It reports false when the key is absent, which signals the
	// caller that the update is not a same-key update.
	UpdateInPlace(key []types.Value, location common.ItemPointer) bool
	// Delete removes one key -> location pair; used by vacuum-style callers.
	Delete(key []types.Value, location common.ItemPointer) bool
	// EntryCount is the number of stored locations.
	EntryCount() int

	NumberOfTuples() float64
	IncreaseNumberOfTuplesBy(amount float64)
	DecreaseNumberOfTuplesBy(amount float64)
}

// baseIndex carries metadata and the approximate tuple counter shared by the
// implementations. The counter is ordinary bookkeeping, not synchronized.
type baseIndex struct {
	meta           *Metadata
	numberOfTuples float64
}

func (b *baseIndex) Metadata() *Metadata { return b.meta }

func (b *baseIndex) NumberOfTuples() float64 { return b.numberOfTuples }

func (b *baseIndex) IncreaseNumberOfTuplesBy(amount float64) {
	b.numberOfTuples += amount
}

func (b *baseIndex) DecreaseNumberOfTuplesBy(amount float64) {
	b.numberOfTuples -= amount
}

// EncodeKey flattens a key tuple into a stable byte form used for hashing
// and equality.
func EncodeKey(key []types.Value) []byte {
	var buf []byte
	for _, v := range key {
		buf = v.EncodeKey(buf)
	}
	return buf
}
