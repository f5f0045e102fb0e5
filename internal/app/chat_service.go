package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"campusrag/internal/model"
	"campusrag/internal/rag"
)

const (
	MaxQuestionLength   = 1000
	DefaultHistoryLimit = 50
)

type MessageStore interface {
	Create(ctx context.Context, message *model.Message) error
	ListRecentByUserID(ctx context.Context, userID uint, limit int) ([]model.Message, error)
}

// HistoryCache is optional; a nil cache always reads through. Get reports a
// generation that Set must be given back; Set ignores the write when an
// Invalidate happened in between.
type HistoryCache interface {
	Get(ctx context.Context, userID uint, limit int) ([]model.Message, int64, bool, error)
	Set(ctx context.Context, userID uint, limit int, generation int64, messages []model.Message) error
	Invalidate(ctx context.Context, userID uint) error
}

type ContextRetriever interface {
	Retrieve(ctx context.Context, query string, limit int, threshold float64) (rag.RetrievalResult, error)
}

type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type RetrievalSettings struct {
	TopK      int
	Threshold float64
}

type ChatService struct {
	messages  MessageStore
	cache     HistoryCache
	retriever ContextRetriever
	completer Completer
	streamer  *Streamer
	settings  RetrievalSettings
	logger    *slog.Logger
}

type AskResult struct {
	Answer  string            `json:"answer"`
	Sources []model.SourceRef `json:"sources"`
}

func NewChatService(
	messages MessageStore,
	cache HistoryCache,
	retriever ContextRetriever,
	generator interface {
		StreamGenerator
		Completer
	},
	settings RetrievalSettings,
	logger *slog.Logger,
) *ChatService {
	if logger == nil {
		logger = slog.Default()
	}
	if settings.TopK <= 0 {
		settings.TopK = 5
	}
	s := &ChatService{
		messages:  messages,
		cache:     cache,
		retriever: retriever,
		completer: generator,
		settings:  settings,
		logger:    logger,
	}
	s.streamer = NewStreamer(generator, messageWriterFunc(s.saveMessage), logger)
	return s
}

// Stream answers question for userID through sink. Invalid questions are
// rejected before any event is written.
func (s *ChatService) Stream(ctx context.Context, userID uint, question string, sink EventSink) (StreamState, error) {
	question, err := validateQuestion(question)
	if err != nil {
		return StreamIdle, err
	}

	turn, err := s.prepare(ctx, userID, question)
	if err != nil {
		if ctx.Err() != nil {
			return StreamCancelled, ctx.Err()
		}
		s.logger.Error("prepare chat turn failed", "user_id", userID, "error", err)
		if failErr := sink.Fail(GenerationErrorMessage); failErr != nil {
			s.logger.Info("write error frame failed", "error", failErr)
		}
		return StreamFailed, err
	}
	return s.streamer.Run(ctx, turn, sink)
}

// Ask is the non-streaming variant of Stream.
func (s *ChatService) Ask(ctx context.Context, userID uint, question string) (*AskResult, error) {
	question, err := validateQuestion(question)
	if err != nil {
		return nil, err
	}

	turn, err := s.prepare(ctx, userID, question)
	if err != nil {
		return nil, err
	}

	answer, err := s.completer.Complete(ctx, turn.Prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	msg := &model.Message{UserID: userID, Role: model.RoleAssistant, Content: answer}
	if err := msg.SetSources(turn.Sources); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := s.saveMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return &AskResult{Answer: answer, Sources: turn.Sources}, nil
}

// History returns the user's most recent messages, oldest first.
func (s *ChatService) History(ctx context.Context, userID uint, limit int) ([]model.Message, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	if limit <= 0 || limit > 200 {
		limit = DefaultHistoryLimit
	}

	var (
		generation int64
		cacheable  bool
	)
	if s.cache != nil {
		cached, gen, ok, err := s.cache.Get(ctx, userID, limit)
		switch {
		case err != nil:
			s.logger.Warn("read history cache failed", "user_id", userID, "error", err)
		case ok:
			return cached, nil
		default:
			generation, cacheable = gen, true
		}
	}

	messages, err := s.messages.ListRecentByUserID(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if messages == nil {
		messages = []model.Message{}
	}

	if cacheable {
		if err := s.cache.Set(ctx, userID, limit, generation, messages); err != nil {
			s.logger.Warn("write history cache failed", "user_id", userID, "error", err)
		}
	}
	return messages, nil
}

func (s *ChatService) prepare(ctx context.Context, userID uint, question string) (Turn, error) {
	if userID == 0 {
		return Turn{}, ErrInvalidInput
	}

	if err := s.saveMessage(ctx, &model.Message{UserID: userID, Role: model.RoleUser, Content: question}); err != nil {
		return Turn{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	result, err := s.retriever.Retrieve(ctx, question, s.settings.TopK, s.settings.Threshold)
	if err != nil {
		return Turn{}, fmt.Errorf("%w: %w", ErrRetrieval, err)
	}

	sources := make([]model.SourceRef, 0, len(result.Documents))
	for _, d := range result.Documents {
		sources = append(sources, model.SourceRef{Title: d.Title, Category: d.Category})
	}
	return Turn{
		UserID:  userID,
		Prompt:  rag.BuildPrompt(question, rag.AssembleContext(result)),
		Sources: sources,
	}, nil
}

func (s *ChatService) saveMessage(ctx context.Context, msg *model.Message) error {
	if err := s.messages.Create(ctx, msg); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, msg.UserID); err != nil {
			s.logger.Warn("invalidate history cache failed", "user_id", msg.UserID, "error", err)
		}
	}
	return nil
}

func validateQuestion(question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrMessageEmpty
	}
	if utf8.RuneCountInString(question) > MaxQuestionLength {
		return "", ErrMessageTooLong
	}
	return question, nil
}

type messageWriterFunc func(ctx context.Context, msg *model.Message) error

func (f messageWriterFunc) Create(ctx context.Context, msg *model.Message) error {
	return f(ctx, msg)
}
