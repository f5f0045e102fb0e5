package app

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"campusrag/internal/model"
	"campusrag/internal/rag"
)

var tracer = otel.Tracer("campusrag/internal/app")

type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type ChunkSource interface {
	ListEmbedded(ctx context.Context) ([]model.Chunk, error)
}

type DocumentLookup interface {
	GetByIDs(ctx context.Context, ids []uint) ([]model.Document, error)
}

// Retriever answers a query with the most similar stored chunks and the
// documents they belong to.
type Retriever struct {
	embedder QueryEmbedder
	chunks   ChunkSource
	docs     DocumentLookup
	logger   *slog.Logger
}

func NewRetriever(embedder QueryEmbedder, chunks ChunkSource, docs DocumentLookup, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{embedder: embedder, chunks: chunks, docs: docs, logger: logger}
}

// Retrieve returns at most limit chunks scoring at least threshold, best
// first, and the distinct documents they cite in order of first appearance.
func (r *Retriever) Retrieve(ctx context.Context, query string, limit int, threshold float64) (result rag.RetrievalResult, err error) {
	ctx, span := tracer.Start(ctx, "rag.retrieve", trace.WithAttributes(
		attribute.Int("rag.limit", limit),
		attribute.Float64("rag.threshold", threshold),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "retrieve failed")
		}
		span.End()
	}()

	result = rag.RetrievalResult{Query: query, Chunks: []rag.RetrievedChunk{}, Documents: []rag.SourceDocument{}}

	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return result, fmt.Errorf("embed query failed: %w", err)
	}

	stored, err := r.chunks.ListEmbedded(ctx)
	if err != nil {
		return result, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	byID := make(map[uint]*model.Chunk, len(stored))
	candidates := make([]rag.Candidate, 0, len(stored))
	for i := range stored {
		c := &stored[i]
		byID[c.ID] = c
		candidates = append(candidates, rag.Candidate{ChunkID: c.ID, DocumentID: c.DocumentID, ChunkIndex: c.ChunkIndex, Vector: c.Vector()})
	}

	// A stored vector of another length means the corpus mixes embedding
	// models; no ranking over it is meaningful.
	matches, err := rag.Search(queryVec, candidates, limit, threshold)
	if err != nil {
		r.logger.Error("corpus embedding dimension differs from query", "query_dim", len(queryVec), "error", err)
		return result, fmt.Errorf("search failed: %w", err)
	}
	span.SetAttributes(attribute.Int("rag.candidates", len(candidates)), attribute.Int("rag.matches", len(matches)))

	var docOrder []uint
	seen := make(map[uint]bool)
	for _, m := range matches {
		c := byID[m.ChunkID]
		result.Chunks = append(result.Chunks, rag.RetrievedChunk{
			ChunkID:    c.ID,
			DocumentID: c.DocumentID,
			ChunkIndex: c.ChunkIndex,
			PageNumber: c.PageNumber,
			Content:    c.Content,
			Score:      m.Score,
		})
		if !seen[c.DocumentID] {
			seen[c.DocumentID] = true
			docOrder = append(docOrder, c.DocumentID)
		}
	}
	if len(docOrder) == 0 {
		return result, nil
	}

	docs, err := r.docs.GetByIDs(ctx, docOrder)
	if err != nil {
		return result, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	byDoc := make(map[uint]model.Document, len(docs))
	for _, d := range docs {
		byDoc[d.ID] = d
	}
	for _, id := range docOrder {
		d, ok := byDoc[id]
		if !ok {
			continue
		}
		result.Documents = append(result.Documents, rag.SourceDocument{ID: d.ID, Title: d.Title, Category: string(d.Category)})
	}
	return result, nil
}
