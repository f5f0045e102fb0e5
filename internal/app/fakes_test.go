package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"campusrag/internal/ai"
	"campusrag/internal/model"
	"campusrag/internal/rag"
)

// eventLog records sink events and message writes in the order they happen.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, fmt.Sprintf(format, args...))
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

type recordingSink struct {
	log         *eventLog
	failContent int // content write number that fails, 0 = never
	contents    int
}

func (s *recordingSink) Content(delta string) error {
	s.contents++
	if s.failContent > 0 && s.contents == s.failContent {
		return errors.New("broken pipe")
	}
	s.log.add("content:%s", delta)
	return nil
}

func (s *recordingSink) Sources(sources []model.SourceRef) error {
	s.log.add("sources:%d", len(sources))
	return nil
}

func (s *recordingSink) Done() error {
	s.log.add("done")
	return nil
}

func (s *recordingSink) Fail(message string) error {
	s.log.add("fail:%s", message)
	return nil
}

type memoryMessages struct {
	log       *eventLog
	mu        sync.Mutex
	messages  []model.Message
	err       error
	nextID    uint
	afterList func()
}

func (m *memoryMessages) Create(_ context.Context, msg *model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.nextID++
	msg.ID = m.nextID
	m.messages = append(m.messages, *msg)
	if m.log != nil {
		m.log.add("persist:%s", msg.Role)
	}
	return nil
}

func (m *memoryMessages) ListRecentByUserID(_ context.Context, userID uint, limit int) ([]model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Message
	for _, msg := range m.messages {
		if msg.UserID == userID {
			out = append(out, msg)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	if m.afterList != nil {
		m.mu.Unlock()
		m.afterList()
		m.mu.Lock()
	}
	return out, nil
}

func (m *memoryMessages) byRole(role model.Role) []model.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Message
	for _, msg := range m.messages {
		if msg.Role == role {
			out = append(out, msg)
		}
	}
	return out
}

// scriptedGenerator streams deltas and then ends with streamErr.
type scriptedGenerator struct {
	deltas    []string
	streamErr error
	openErr   error
	answer    string
	prompts   []string
	mu        sync.Mutex
}

func (g *scriptedGenerator) StreamComplete(ctx context.Context, prompt string) (*ai.Stream, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()
	if g.openErr != nil {
		return nil, g.openErr
	}
	return ai.NewStream(ctx, func(ctx context.Context, emit ai.EmitFunc) error {
		for _, d := range g.deltas {
			if !emit(d) {
				return ctx.Err()
			}
		}
		return g.streamErr
	}), nil
}

func (g *scriptedGenerator) Complete(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()
	if g.openErr != nil {
		return "", g.openErr
	}
	return g.answer, nil
}

type fixedEmbedder struct {
	vec []float32
	err error
}

func (e fixedEmbedder) Embed(context.Context, string) ([]float32, error) {
	return e.vec, e.err
}

type staticChunks []model.Chunk

func (s staticChunks) ListEmbedded(context.Context) ([]model.Chunk, error) {
	return s, nil
}

type staticDocs []model.Document

func (s staticDocs) GetByIDs(_ context.Context, ids []uint) ([]model.Document, error) {
	var out []model.Document
	for _, d := range s {
		for _, id := range ids {
			if d.ID == id {
				out = append(out, d)
			}
		}
	}
	return out, nil
}

type staticRetriever struct {
	result rag.RetrievalResult
	err    error
}

func (r staticRetriever) Retrieve(_ context.Context, query string, _ int, _ float64) (rag.RetrievalResult, error) {
	res := r.result
	res.Query = query
	return res, r.err
}

func chunkWithVector(id, docID uint, index int, content string, vec []float32) model.Chunk {
	c := model.Chunk{ID: id, DocumentID: docID, ChunkIndex: index, Content: content}
	c.SetEmbedding(vec)
	return c
}
