package ai

import "context"

// Provider is the language-model backend used for embeddings and answers.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Complete(ctx context.Context, prompt string) (string, error)
	StreamComplete(ctx context.Context, prompt string) (*Stream, error)
}

// Stream delivers generated text deltas in order on C. C is closed when the
// generation ends; Err then reports why it ended.
type Stream struct {
	C <-chan string

	done   chan struct{}
	err    error
	cancel context.CancelFunc
}

// Err blocks until the stream has finished and returns its terminal error,
// nil on a clean end.
func (s *Stream) Err() error {
	<-s.done
	return s.err
}

// Close stops the producer and waits for it to exit. Safe to call more than once.
func (s *Stream) Close() {
	s.cancel()
	<-s.done
}

// EmitFunc forwards one delta; it returns false once the consumer is gone.
type EmitFunc func(delta string) bool

// NewStream runs produce on its own goroutine and exposes what it emits as a
// Stream. produce must return once ctx is done.
func NewStream(parent context.Context, produce func(ctx context.Context, emit EmitFunc) error) *Stream {
	ctx, cancel := context.WithCancel(parent)
	return startStream(ctx, cancel, produce)
}

// startStream runs produce on its own goroutine. cancel must cancel ctx; it is
// invoked by Close and once produce returns.
func startStream(ctx context.Context, cancel context.CancelFunc, produce func(ctx context.Context, emit EmitFunc) error) *Stream {
	ch := make(chan string)
	s := &Stream{C: ch, done: make(chan struct{}), cancel: cancel}

	go func() {
		defer close(s.done)
		defer cancel()

		s.err = produce(ctx, func(delta string) bool {
			select {
			case ch <- delta:
				return true
			case <-ctx.Done():
				return false
			}
		})
		close(ch)
	}()
	return s
}
