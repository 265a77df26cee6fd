package repository

import "errors"

// Driver-agnostic sentinel errors. The mongo implementations translate
// driver errors into these so services and test fakes never import the
// driver to branch on an outcome.
var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicateKey = errors.New("duplicate key")
)
