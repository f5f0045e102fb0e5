package app

import "errors"

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrMessageEmpty     = errors.New("message content is empty")
	ErrMessageTooLong   = errors.New("message content is too long")
	ErrUnsupportedFile  = errors.New("only pdf files are accepted")
	ErrFileTooLarge     = errors.New("file exceeds the size limit")
	ErrDocumentNotFound = errors.New("document not found")
	ErrPersistence      = errors.New("persistence failed")
	ErrIngestEnqueue    = errors.New("ingestion enqueue failed")
	ErrRetrieval        = errors.New("retrieval failed")
	ErrGeneration       = errors.New("answer generation failed")
)
