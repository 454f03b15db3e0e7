package model

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors shared by repositories, use cases and controllers.
var (
	// ErrValidation is bad client input: oversized text, unparseable mandatory date, unsupported format.
	ErrValidation = goerr.New("validation error")

	// ErrNotFound is a missing memory on delete or archive.
	ErrNotFound = goerr.New("memory not found")

	// ErrNotReady is a repository used before it was opened or after it was closed.
	ErrNotReady = goerr.New("repository is not ready")

	// ErrConflict is an insert with an ID that already exists.
	ErrConflict = goerr.New("memory already exists")
)

// Keys for goerr values
const (
	MemoryIDKey = "memory_id"
	ProjectKey  = "project"
	FormatKey   = "format"
	DateKey     = "date"
)
