package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"campusrag/internal/ingest"
)

// JobPublisher is the broker-backed ingest.Queue.
type JobPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewJobPublisher(conn *amqp.Connection, queueName string) *JobPublisher {
	return &JobPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *JobPublisher) Enqueue(ctx context.Context, job ingest.Job) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if err := DeclareQueue(ch, p.queueName); err != nil {
		return err
	}

	payload, err := EncodeJob(job)
	if err != nil {
		return err
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
			Type:         "ingest.job",
		},
	); err != nil {
		return fmt.Errorf("publish ingest job failed: %w", err)
	}
	return nil
}

func EncodeJob(job ingest.Job) ([]byte, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal ingest job failed: %w", err)
	}
	return payload, nil
}

func DecodeJob(body []byte) (ingest.Job, error) {
	var job ingest.Job
	if err := json.Unmarshal(body, &job); err != nil {
		return ingest.Job{}, fmt.Errorf("unmarshal ingest job failed: %w", err)
	}
	if job.DocumentID == 0 {
		return ingest.Job{}, fmt.Errorf("ingest job without document id")
	}
	return job, nil
}
