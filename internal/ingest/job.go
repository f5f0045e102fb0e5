package ingest

import (
	"context"
	"errors"
)

var ErrQueueFull = errors.New("ingestion queue is full")

// Job carries the sanitized text of one document to be chunked and embedded.
// PageBreaks holds the rune offset where each page after the first starts.
// Replace drops the document's existing chunks once the job starts running.
type Job struct {
	DocumentID uint   `json:"document_id"`
	Text       string `json:"text"`
	PageBreaks []int  `json:"page_breaks,omitempty"`
	PageCount  int    `json:"page_count"`
	Replace    bool   `json:"replace,omitempty"`
}

// Queue accepts jobs for background processing.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
}

// Processor runs a single job to completion.
type Processor interface {
	Process(ctx context.Context, job Job) (Report, error)
}
