package storage

import "errors"

// Common storage errors
var (
	// ErrDocumentNotFound indicates that document was not found in storage
	ErrDocumentNotFound = errors.New("document not found")

	// ErrDocumentAlreadyExists indicates that document with this ID already exists
	ErrDocumentAlreadyExists = errors.New("document already exists")

	// ErrStaleVersion indicates that storage already holds a newer version
	ErrStaleVersion = errors.New("stale document version")
)
