package ingest

import (
	"context"
	"log/slog"
	"sync"
)

// Pool is the in-process Queue: a bounded buffer drained by a fixed number of
// worker goroutines. Jobs still buffered at shutdown are dropped.
type Pool struct {
	processor Processor
	jobs      chan Job
	workers   int
	logger    *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPool(processor Processor, workers, size int, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if size <= 0 {
		size = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		processor: processor,
		jobs:      make(chan Job, size),
		workers:   workers,
		logger:    logger,
	}
}

// Start launches the workers. Calling Start twice is a no-op.
func (p *Pool) Start(ctx context.Context) {
	if p.cancel != nil {
		return
	}
	poolCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for {
				select {
				case <-poolCtx.Done():
					return
				case job := <-p.jobs:
					if _, err := p.processor.Process(poolCtx, job); err != nil {
						p.logger.Error("ingestion job failed", "worker", id, "document_id", job.DocumentID, "error", err)
					}
				}
			}
		}(i)
	}
}

// Enqueue never blocks: a full buffer yields ErrQueueFull.
func (p *Pool) Enqueue(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case p.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *Pool) Close() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}
