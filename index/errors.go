package index

import "errors"

var (
	ErrDuplicateEntry = errors.New("duplicate index entry")
)
