package storage

import "errors"

// Table operation error kinds. Call sites annotate these with juju/errors;
// callers classify with errors.Cause.
var (
	// ErrConstraintViolation: a declared constraint (not-null) failed.
	// Retrying without fixing the input will fail again.
	ErrConstraintViolation = errors.New("constraint violation")
	// ErrIndexConflict: a visible duplicate key exists in a primary/unique
	// index. The transaction manager decides between retry and abort.
	ErrIndexConflict = errors.New("index constraint conflict")
	// ErrDeleteConflict: write-write race on delete; the transaction must
	// abort or retry.
	ErrDeleteConflict = errors.New("delete conflict")
	// ErrSlotAcquisitionFailed: reserved for allocation failure; the growth
	// retry loop makes it unreachable under normal operation.
	ErrSlotAcquisitionFailed = errors.New("tuple slot acquisition failed")
	// ErrInternalConsistency: an index rejected a mutation the existence
	// phase had already cleared. Signals a concurrency-model gap, not a
	// routine conflict; monitoring must treat it as an engine-correctness
	// signal.
	ErrInternalConsistency = errors.New("index internal consistency violation")

	ErrTileGroupNotFound  = errors.New("tile group not found")
	ErrIndexNotFound      = errors.New("index not found")
	ErrForeignKeyNotFound = errors.New("foreign key not found")
)
