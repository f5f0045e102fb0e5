package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"campusrag/internal/model"
	"campusrag/internal/rag"
	"campusrag/internal/repository"
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type ChunkWriter interface {
	Save(ctx context.Context, chunk *model.Chunk) error
	DeleteByDocumentID(ctx context.Context, documentID uint) error
}

type Options struct {
	ChunkSize    int
	ChunkOverlap int
	Dimension    int
	// Delay is the minimum spacing between two embedding calls of one job.
	Delay        time.Duration
}

// Report summarizes one processed job.
type Report struct {
	DocumentID uint
	Chunks     int
	Indexed    int
	Skipped    int
}

// Orchestrator turns a document's text into stored, embedded chunks.
type Orchestrator struct {
	embedder Embedder
	chunks   ChunkWriter
	opts     Options
	logger   *slog.Logger
}

func NewOrchestrator(embedder Embedder, chunks ChunkWriter, opts Options, logger *slog.Logger) *Orchestrator {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = rag.DefaultChunkSize
	}
	if opts.ChunkOverlap < 0 {
		opts.ChunkOverlap = rag.DefaultChunkOverlap
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{embedder: embedder, chunks: chunks, opts: opts, logger: logger}
}

// Process chunks the job text and embeds and stores every chunk in order.
// A chunk whose embedding fails or has the wrong dimension is skipped. A
// storage failure stops the job, as does the document disappearing.
func (o *Orchestrator) Process(ctx context.Context, job Job) (Report, error) {
	report := Report{DocumentID: job.DocumentID}
	logger := o.logger.With("document_id", job.DocumentID)

	var (
		passages []rag.Passage
		err      error
	)
	if job.PageCount > 0 || len(job.PageBreaks) > 0 {
		passages, err = rag.SplitPages(job.Text, job.PageBreaks, o.opts.ChunkSize, o.opts.ChunkOverlap)
	} else {
		passages, err = rag.Split(job.Text, o.opts.ChunkSize, o.opts.ChunkOverlap, nil)
	}
	if err != nil {
		return report, fmt.Errorf("chunk document %d failed: %w", job.DocumentID, err)
	}
	report.Chunks = len(passages)
	logger.Info("document chunked", "chunks", len(passages), "pages", job.PageCount)

	if job.Replace {
		if err := o.chunks.DeleteByDocumentID(ctx, job.DocumentID); err != nil {
			return report, fmt.Errorf("drop chunks of document %d failed: %w", job.DocumentID, err)
		}
		logger.Info("previous chunks dropped")
	}

	limiter := o.limiter()
	for _, p := range passages {
		if err := limiter.Wait(ctx); err != nil {
			return report, err
		}

		vec, err := o.embedder.Embed(ctx, p.Content)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			logger.Warn("embed chunk failed, skipping", "chunk_index", p.ChunkIndex, "error", err)
			report.Skipped++
			continue
		}
		if o.opts.Dimension > 0 && len(vec) != o.opts.Dimension {
			logger.Warn("embedding has wrong dimension, skipping",
				"chunk_index", p.ChunkIndex, "got", len(vec), "want", o.opts.Dimension)
			report.Skipped++
			continue
		}

		chunk := &model.Chunk{
			DocumentID: job.DocumentID,
			ChunkIndex: p.ChunkIndex,
			PageNumber: p.PageNumber,
			Content:    p.Content,
		}
		chunk.SetEmbedding(vec)
		if err := o.chunks.Save(ctx, chunk); err != nil {
			if errors.Is(err, repository.ErrDocumentGone) {
				logger.Info("document deleted during ingestion, stopping", "chunk_index", p.ChunkIndex)
			}
			return report, fmt.Errorf("store chunk %d of document %d failed: %w", p.ChunkIndex, job.DocumentID, err)
		}
		report.Indexed++
	}

	logger.Info("document ingested", "chunks", report.Chunks, "indexed", report.Indexed, "skipped", report.Skipped)
	return report, nil
}

func (o *Orchestrator) limiter() *rate.Limiter {
	if o.opts.Delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(o.opts.Delay), 1)
}
