package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"campusrag/internal/rag"
)

// Config holds settings for an OpenAI-compatible endpoint.
type Config struct {
	BaseURL        string
	APIKey         string
	ChatModel      string
	EmbeddingModel string
	Dimension      int // required embedding length, 0 disables the check
	Temperature    float32
	MaxTokens      int
	Timeout        time.Duration
}

type OpenAIClient struct {
	client *openai.Client
	cfg    Config
}

func NewOpenAIClient(cfg Config) *OpenAIClient {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	oc.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIClient{client: openai.NewClientWithConfig(oc), cfg: cfg}
}

// Embed returns the embedding vector for text.
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &ProviderError{Op: "embed", Err: ErrEmptyInput}
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.cfg.EmbeddingModel),
		Input: []string{text},
	})
	if err != nil {
		return nil, classify("embed", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, &ProviderError{Op: "embed", Err: ErrEmptyResponse}
	}

	raw := resp.Data[0].Embedding
	vec := make([]float32, len(raw))
	for i := range raw {
		vec[i] = float32(raw[i])
	}
	if c.cfg.Dimension > 0 && len(vec) != c.cfg.Dimension {
		return nil, &ProviderError{
			Op:  "embed",
			Err: fmt.Errorf("%w: got %d, want %d", rag.ErrDimensionMismatch, len(vec), c.cfg.Dimension),
		}
	}
	return vec, nil
}

func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, c.chatRequest(prompt))
	if err != nil {
		return "", classify("complete", err)
	}
	if len(resp.Choices) == 0 {
		return "", &ProviderError{Op: "complete", Err: ErrEmptyResponse}
	}
	return resp.Choices[0].Message.Content, nil
}

// StreamComplete opens a streamed completion. Failures while opening the
// stream are returned directly; failures after the first delta surface via
// Stream.Err.
func (c *OpenAIClient) StreamComplete(ctx context.Context, prompt string) (*Stream, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	upstream, err := c.client.CreateChatCompletionStream(streamCtx, c.chatRequest(prompt))
	if err != nil {
		cancel()
		return nil, classify("stream", err)
	}

	return startStream(streamCtx, cancel, func(ctx context.Context, emit EmitFunc) error {
		defer upstream.Close()
		for {
			chunk, err := upstream.Recv()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return classify("stream", err)
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			if !emit(delta) {
				return ctx.Err()
			}
		}
	}), nil
}

func (c *OpenAIClient) chatRequest(prompt string) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model: c.cfg.ChatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}
}
