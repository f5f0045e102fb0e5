package repository

import "errors"

// ErrDocumentGone is returned when a write targets a document that no longer exists.
var ErrDocumentGone = errors.New("document no longer exists")
