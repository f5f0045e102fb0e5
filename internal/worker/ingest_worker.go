package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"campusrag/internal/ingest"
	"campusrag/internal/platform/rabbitmq"
)

// IngestWorker consumes ingestion jobs published by rabbitmq.JobPublisher.
// Each delivery is acked once processed; jobs that cannot be decoded or fail
// are dropped without requeue and can be retried through reprocessing.
type IngestWorker struct {
	conn      *amqp.Connection
	processor ingest.Processor
	queueName string
	workers   int
	logger    *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewIngestWorker(conn *amqp.Connection, processor ingest.Processor, queueName string, workers int, logger *slog.Logger) *IngestWorker {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestWorker{
		conn:      conn,
		processor: processor,
		queueName: queueName,
		workers:   workers,
		logger:    logger,
	}
}

func (w *IngestWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	if err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}

	if err := ch.Qos(w.workers, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker prefetch failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	var consumers sync.WaitGroup
	for i := 0; i < w.workers; i++ {
		consumers.Add(1)
		go func(id int) {
			defer consumers.Done()
			for {
				select {
				case <-workerCtx.Done():
					return
				case d, ok := <-deliveries:
					if !ok {
						return
					}
					w.handle(workerCtx, id, d)
				}
			}
		}(i)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		consumers.Wait()
		_ = ch.Close()
	}()

	w.logger.Info("ingest worker started", "queue", w.queueName, "workers", w.workers)
	return nil
}

func (w *IngestWorker) handle(ctx context.Context, id int, d amqp.Delivery) {
	job, err := rabbitmq.DecodeJob(d.Body)
	if err != nil {
		w.logger.Error("worker decode job failed", "worker", id, "error", err)
		_ = d.Nack(false, false)
		return
	}

	report, err := w.processor.Process(ctx, job)
	if err != nil {
		if ctx.Err() != nil {
			// shutting down: let the broker hand the job to the next consumer
			_ = d.Nack(false, true)
			return
		}
		w.logger.Error("worker process job failed", "worker", id, "document_id", job.DocumentID, "error", err)
		_ = d.Nack(false, false)
		return
	}

	w.logger.Info("worker processed job", "worker", id, "document_id", report.DocumentID, "indexed", report.Indexed, "skipped", report.Skipped)
	_ = d.Ack(false)
}

func (w *IngestWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
