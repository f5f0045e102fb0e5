package ai

import (
	"context"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"campusrag/internal/rag"
)

// Resilient wraps a Provider and degrades to synthetic output when the
// provider reports a quota or rate-limit failure. Other failures pass through.
type Resilient struct {
	next   Provider
	dim    int
	pacing time.Duration
	logger *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

func NewResilient(next Provider, dim int, pacing time.Duration, logger *slog.Logger) *Resilient {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resilient{
		next:   next,
		dim:    dim,
		pacing: pacing,
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *Resilient) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := r.next.Embed(ctx, text)
	if err == nil || !IsTransient(err) {
		return vec, err
	}
	r.logger.Warn("embedding provider unavailable, using synthetic vector", "error", err)
	return r.syntheticVector(), nil
}

func (r *Resilient) Complete(ctx context.Context, prompt string) (string, error) {
	answer, err := r.next.Complete(ctx, prompt)
	if err == nil || !IsTransient(err) {
		return answer, err
	}
	r.logger.Warn("completion provider unavailable, using canned answer", "error", err)
	return CannedAnswer(rag.QuestionFromPrompt(prompt)), nil
}

func (r *Resilient) StreamComplete(ctx context.Context, prompt string) (*Stream, error) {
	s, err := r.next.StreamComplete(ctx, prompt)
	if err == nil || !IsTransient(err) {
		return s, err
	}
	r.logger.Warn("streaming provider unavailable, streaming canned answer", "error", err)

	words := strings.Split(CannedAnswer(rag.QuestionFromPrompt(prompt)), " ")
	return NewStream(ctx, func(ctx context.Context, emit EmitFunc) error {
		for i, word := range words {
			if i > 0 && r.pacing > 0 {
				timer := time.NewTimer(r.pacing)
				select {
				case <-ctx.Done():
					timer.Stop()
					return ctx.Err()
				case <-timer.C:
				}
			}
			if !emit(word + " ") {
				return ctx.Err()
			}
		}
		return nil
	}), nil
}

// syntheticVector draws D independent values uniformly from [-0.5, 0.5).
func (r *Resilient) syntheticVector() []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	vec := make([]float32, r.dim)
	for i := range vec {
		vec[i] = r.rng.Float32() - 0.5
	}
	return vec
}

// Offline stands in for a provider when no credentials are configured. Every
// call fails transiently so a wrapping Resilient serves synthetic output.
type Offline struct{}

func (Offline) Embed(context.Context, string) ([]float32, error) {
	return nil, &ProviderError{Op: "embed", Transient: true, Err: ErrNoCredentials}
}

func (Offline) Complete(context.Context, string) (string, error) {
	return "", &ProviderError{Op: "complete", Transient: true, Err: ErrNoCredentials}
}

func (Offline) StreamComplete(context.Context, string) (*Stream, error) {
	return nil, &ProviderError{Op: "stream", Transient: true, Err: ErrNoCredentials}
}
