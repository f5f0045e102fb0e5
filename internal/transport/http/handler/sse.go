package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"campusrag/internal/model"
)

var doneFrame = []byte("data: [DONE]\n\n")

type contentFrame struct {
	Content string `json:"content"`
}

type sourcesFrame struct {
	Type    string            `json:"type"`
	Sources []model.SourceRef `json:"sources"`
}

type errorFrame struct {
	Error string `json:"error"`
}

type streamWriter interface {
	io.Writer
	http.Flusher
	Header() http.Header
	WriteHeader(statusCode int)
}

// sseSink writes a streamed answer as server-sent events. Headers are only
// sent with the first frame so that a request rejected before generation can
// still get a plain JSON error.
type sseSink struct {
	w       streamWriter
	started bool
}

func newSSESink(w streamWriter) *sseSink {
	return &sseSink{w: w}
}

func (s *sseSink) Content(delta string) error {
	return s.writeJSON(contentFrame{Content: delta})
}

func (s *sseSink) Sources(sources []model.SourceRef) error {
	if sources == nil {
		sources = []model.SourceRef{}
	}
	return s.writeJSON(sourcesFrame{Type: "sources", Sources: sources})
}

func (s *sseSink) Done() error {
	return s.write(doneFrame)
}

func (s *sseSink) Fail(message string) error {
	return s.writeJSON(errorFrame{Error: message})
}

func (s *sseSink) writeJSON(v any) error {
	frame, err := encodeFrame(v)
	if err != nil {
		return err
	}
	return s.write(frame)
}

func (s *sseSink) write(frame []byte) error {
	if !s.started {
		h := s.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}
	if _, err := s.w.Write(frame); err != nil {
		return err
	}
	s.w.Flush()
	return nil
}

// encodeFrame renders v as one "data:" event. HTML characters are kept as is.
func encodeFrame(v any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("data: ")
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode sse frame failed: %w", err)
	}
	// Encode ends with a newline; an event needs a blank line after it.
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
