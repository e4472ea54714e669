package core

import "errors"

// Engine error taxonomy. Adapters wrap their failures with these using %w.
var (
	ErrMalformedDocument = errors.New("malformed document")
	ErrMigration         = errors.New("unrecognized document version")
	ErrImport            = errors.New("import failed")
	ErrProbandFetch      = errors.New("subject metadata unavailable")
	ErrPersist           = errors.New("persist failed")
	ErrNoDocument        = errors.New("no document stored")
	ErrSaveInProgress    = errors.New("save already in progress")
	ErrVersionNotFound   = errors.New("version not found")
	ErrReadOnly          = errors.New("store is in read-only mode")
)
