package store

import "github.com/communalgrowth/docsub/internal/errors"

// Sentinel errors. They match the coded errors of the same kind, so callers
// may test with either store.ErrNotFound or errors.ErrNotFound.
var (
	ErrNotFound      = errors.NotFound("resource not found")
	ErrAlreadyExists = errors.AlreadyExists("resource already exists")
	ErrConflict      = errors.Conflictf("conflicting identifier")
)
