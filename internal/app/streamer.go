package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"campusrag/internal/ai"
	"campusrag/internal/model"
)

// GenerationErrorMessage is the only error text a streaming client ever sees.
const GenerationErrorMessage = "Erreur lors de la génération de la réponse"

type StreamState int

const (
	StreamIdle StreamState = iota
	StreamStreaming
	StreamCompleted
	StreamCancelled
	StreamFailed
)

func (s StreamState) String() string {
	switch s {
	case StreamIdle:
		return "idle"
	case StreamStreaming:
		return "streaming"
	case StreamCompleted:
		return "completed"
	case StreamCancelled:
		return "cancelled"
	case StreamFailed:
		return "failed"
	default:
		return fmt.Sprintf("StreamState(%d)", int(s))
	}
}

// EventSink receives the events of one streamed answer. A write error from
// any method means the client is gone.
type EventSink interface {
	Content(delta string) error
	Sources(sources []model.SourceRef) error
	Done() error
	Fail(message string) error
}

type StreamGenerator interface {
	StreamComplete(ctx context.Context, prompt string) (*ai.Stream, error)
}

type MessageWriter interface {
	Create(ctx context.Context, message *model.Message) error
}

// Turn is one grounded question ready for generation.
type Turn struct {
	UserID  uint
	Prompt  string
	Sources []model.SourceRef
}

// Streamer relays generated text to a sink and records the final answer.
type Streamer struct {
	generator StreamGenerator
	messages  MessageWriter
	logger    *slog.Logger
}

func NewStreamer(generator StreamGenerator, messages MessageWriter, logger *slog.Logger) *Streamer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Streamer{generator: generator, messages: messages, logger: logger}
}

// Run streams the answer to turn.Prompt. Deltas reach the sink in provider
// order. After the provider finishes, the answer is stored and then the
// sources and completion events are sent. If ctx ends or the sink stops
// accepting writes, the provider stream is closed and nothing is stored.
// Provider and storage failures produce exactly one Fail event.
func (s *Streamer) Run(ctx context.Context, turn Turn, sink EventSink) (state StreamState, err error) {
	ctx, span := tracer.Start(ctx, "rag.generate")
	defer func() {
		span.SetAttributes(attribute.String("rag.stream_state", state.String()))
		if state == StreamFailed {
			span.RecordError(err)
			span.SetStatus(codes.Error, "generation failed")
		}
		span.End()
	}()
	logger := s.logger.With("user_id", turn.UserID)

	stream, err := s.generator.StreamComplete(ctx, turn.Prompt)
	if err != nil {
		if ctx.Err() != nil {
			return StreamCancelled, ctx.Err()
		}
		logger.Error("open generation stream failed", "error", err)
		s.fail(sink, logger)
		return StreamFailed, err
	}
	defer stream.Close()

	var answer strings.Builder
	state = StreamStreaming
recv:
	for {
		select {
		case <-ctx.Done():
			return StreamCancelled, ctx.Err()
		case delta, ok := <-stream.C:
			if !ok {
				break recv
			}
			answer.WriteString(delta)
			if err := sink.Content(delta); err != nil {
				logger.Info("client stopped reading, abandoning answer", "error", err)
				return StreamCancelled, err
			}
		}
	}

	if err := stream.Err(); err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return StreamCancelled, err
		}
		logger.Error("generation stream failed", "error", err, "partial_len", answer.Len())
		s.fail(sink, logger)
		return StreamFailed, err
	}

	msg := &model.Message{UserID: turn.UserID, Role: model.RoleAssistant, Content: answer.String()}
	if err := msg.SetSources(turn.Sources); err != nil {
		s.fail(sink, logger)
		return StreamFailed, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		if ctx.Err() != nil {
			return StreamCancelled, ctx.Err()
		}
		logger.Error("persist assistant message failed", "error", err)
		s.fail(sink, logger)
		return StreamFailed, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if err := sink.Sources(turn.Sources); err != nil {
		logger.Info("client left before sources frame", "error", err)
		return StreamCompleted, nil
	}
	if err := sink.Done(); err != nil {
		logger.Info("client left before done frame", "error", err)
	}
	return StreamCompleted, nil
}

func (s *Streamer) fail(sink EventSink, logger *slog.Logger) {
	if err := sink.Fail(GenerationErrorMessage); err != nil {
		logger.Info("write error frame failed", "error", err)
	}
}
