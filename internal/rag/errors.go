package rag

import "errors"

var (
	ErrInvalidChunking   = errors.New("invalid chunking parameters")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)
