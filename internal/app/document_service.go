package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"campusrag/internal/ingest"
	"campusrag/internal/model"
	"campusrag/internal/platform/blobstore"
	"campusrag/internal/rag"
	"campusrag/internal/repository"
)

const DefaultMaxUploadBytes = 10 << 20

type DocumentStore interface {
	Create(ctx context.Context, doc *model.Document) error
	GetByID(ctx context.Context, id uint) (*model.Document, error)
	List(ctx context.Context) ([]model.Document, error)
	Delete(ctx context.Context, id uint) error
}

type ChunkAdmin interface {
	CountByDocumentIDs(ctx context.Context, documentIDs []uint) (map[uint]int64, error)
	ListByDocumentID(ctx context.Context, documentID uint) ([]model.Chunk, error)
}

// PageExtractor returns the text of each page of a PDF.
type PageExtractor func(data []byte) ([]string, error)

type DocumentService struct {
	docs     DocumentStore
	chunks   ChunkAdmin
	blobs    blobstore.Store
	queue    ingest.Queue
	extract  PageExtractor
	maxBytes int64
	logger   *slog.Logger
}

type UploadInput struct {
	Title       string
	Category    string
	Filename    string
	ContentType string
	Data        []byte
	UploadedBy  uint
}

type DocumentView struct {
	model.Document
	ChunkCount int64 `json:"chunk_count"`
}

func NewDocumentService(
	docs DocumentStore,
	chunks ChunkAdmin,
	blobs blobstore.Store,
	queue ingest.Queue,
	extract PageExtractor,
	maxBytes int64,
	logger *slog.Logger,
) *DocumentService {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentService{
		docs:     docs,
		chunks:   chunks,
		blobs:    blobs,
		queue:    queue,
		extract:  extract,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// Upload stores the file, records the document and schedules its ingestion.
// The document is returned as soon as the job is queued; chunks appear as
// the job progresses.
func (s *DocumentService) Upload(ctx context.Context, in UploadInput) (*model.Document, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" || len(in.Data) == 0 || in.UploadedBy == 0 {
		return nil, ErrInvalidInput
	}
	if utf8.RuneCountInString(title) > model.MaxNameLength {
		return nil, fmt.Errorf("%w: title longer than %d characters", ErrInvalidInput, model.MaxNameLength)
	}
	if !isPDF(in.ContentType, in.Data) {
		return nil, ErrUnsupportedFile
	}
	if int64(len(in.Data)) > s.maxBytes {
		return nil, ErrFileTooLarge
	}
	category, ok := model.ParseCategory(in.Category)
	if !ok {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, in.Category)
	}

	pages, err := s.extract(in.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFile, err)
	}
	text, breaks := joinPages(pages)
	if strings.TrimSpace(text) == "" {
		s.logger.Warn("uploaded pdf has no extractable text", "filename", in.Filename, "pages", len(pages))
	}

	filename := safeFilename(in.Filename)
	key, err := s.blobs.Put(ctx, uuid.NewString()+"-"+filename, in.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	doc := &model.Document{
		Title:      title,
		Filename:   filename,
		StorageKey: key,
		Category:   category,
		UploadedBy: in.UploadedBy,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			s.logger.Warn("remove orphan blob failed", "key", key, "error", delErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	job := ingest.Job{DocumentID: doc.ID, Text: text, PageBreaks: breaks, PageCount: len(pages)}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.logger.Error("enqueue ingestion failed", "document_id", doc.ID, "error", err)
		return doc, fmt.Errorf("%w: %v", ErrIngestEnqueue, err)
	}
	s.logger.Info("document uploaded", "document_id", doc.ID, "pages", len(pages), "bytes", len(in.Data))
	return doc, nil
}

func (s *DocumentService) List(ctx context.Context) ([]DocumentView, error) {
	docs, err := s.docs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	ids := make([]uint, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	counts, err := s.chunks.CountByDocumentIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	views := make([]DocumentView, 0, len(docs))
	for _, d := range docs {
		views = append(views, DocumentView{Document: d, ChunkCount: counts[d.ID]})
	}
	return views, nil
}

// Chunks returns the stored passages of a document in reading order.
func (s *DocumentService) Chunks(ctx context.Context, id uint) ([]model.Chunk, error) {
	if _, err := s.get(ctx, id); err != nil {
		return nil, err
	}
	chunks, err := s.chunks.ListByDocumentID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if chunks == nil {
		chunks = []model.Chunk{}
	}
	return chunks, nil
}

// Download returns the document and its original file.
func (s *DocumentService) Download(ctx context.Context, id uint) (*model.Document, []byte, error) {
	doc, err := s.get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.blobs.Get(ctx, doc.StorageKey)
	if errors.Is(err, blobstore.ErrNotFound) {
		return nil, nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return doc, data, nil
}

// Delete removes the document with its chunks, then its file.
func (s *DocumentService) Delete(ctx context.Context, id uint) error {
	doc, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.docs.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrDocumentGone) {
			return ErrDocumentNotFound
		}
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := s.blobs.Delete(ctx, doc.StorageKey); err != nil {
		s.logger.Warn("delete document file failed", "document_id", id, "key", doc.StorageKey, "error", err)
	}
	s.logger.Info("document deleted", "document_id", id)
	return nil
}

// Reprocess ingests the stored file again. The current chunks stay
// searchable until the queued job starts and replaces them.
func (s *DocumentService) Reprocess(ctx context.Context, id uint) error {
	doc, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	data, err := s.blobs.Get(ctx, doc.StorageKey)
	if errors.Is(err, blobstore.ErrNotFound) {
		return ErrDocumentNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	pages, err := s.extract(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedFile, err)
	}
	text, breaks := joinPages(pages)
	job := ingest.Job{DocumentID: id, Text: text, PageBreaks: breaks, PageCount: len(pages), Replace: true}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("%w: %v", ErrIngestEnqueue, err)
	}
	s.logger.Info("document queued for reprocessing", "document_id", id)
	return nil
}

func (s *DocumentService) get(ctx context.Context, id uint) (*model.Document, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

// joinPages sanitizes every page and joins them with newlines. breaks[i] is
// the rune offset at which page i+2 starts.
func joinPages(pages []string) (string, []int) {
	var b strings.Builder
	breaks := make([]int, 0, len(pages))
	offset := 0
	for i, page := range pages {
		if i > 0 {
			b.WriteByte('\n')
			offset++
			breaks = append(breaks, offset)
		}
		clean := rag.Sanitize(page)
		b.WriteString(clean)
		offset += utf8.RuneCountInString(clean)
	}
	return b.String(), breaks
}

func isPDF(contentType string, data []byte) bool {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil && mediaType == "application/pdf" {
		return true
	}
	return bytes.HasPrefix(data, []byte("%PDF-"))
}

func safeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		if r == '/' || r < 0x20 {
			return -1
		}
		return r
	}, name)
	name = strings.TrimLeft(name, ".")
	if name == "" {
		return "document.pdf"
	}
	if runes := []rune(name); len(runes) > model.MaxNameLength {
		ext := []rune(filepath.Ext(name))
		if len(ext) >= model.MaxNameLength {
			ext = nil
		}
		name = string(runes[:model.MaxNameLength-len(ext)]) + string(ext)
	}
	return name
}
