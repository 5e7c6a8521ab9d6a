package catalog

import "github.com/tilestore/tilestore/common"

// ForeignKey describes a foreign-key constraint owned by a table. The storage
// layer only stores the descriptor; enforcement is the executor's concern.
type ForeignKey struct {
	OID            common.OID
	ConstraintName string
	RefTableName   string
	Columns        []string
	RefColumns     []string
	UpdateAction   string
	DeleteAction   string
}
