// Package queue bridges the external trigger queue to the digest job.
package queue

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// fetchBackoff spaces out retries when the brokers are unreachable.
const fetchBackoff = 5 * time.Second

// Job is the work triggered by a queue message.
type Job interface {
	Run(ctx context.Context) error
}

// Reader is the subset of kafka.Reader the consumer needs.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer long-polls the trigger topic and runs the digest job once per
// message. The message payload is irrelevant; its presence is the trigger.
// Offsets are committed only after a successful run, so an unacknowledged
// trigger is redelivered once the group's offset is re-read (at-least-once).
type Consumer struct {
	reader  Reader
	job     Job
	logger  *slog.Logger
	backoff time.Duration
}

// New creates a queue consumer.
func New(reader Reader, job Job, logger *slog.Logger) *Consumer {
	return &Consumer{
		reader:  reader,
		job:     job,
		logger:  logger,
		backoff: fetchBackoff,
	}
}

// NewReader builds a consumer-group reader for the trigger topic.
func NewReader(brokers []string, topic, group string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  group,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 1 << 20,
		MaxWait:  10 * time.Second,
	})
}

// Consume blocks, processing triggers until ctx is cancelled.
func (c *Consumer) Consume(ctx context.Context) error {
	c.logger.Info("Queue consumer starting")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.logger.Info("Queue consumer stopping", "error", ctx.Err())
				return ctx.Err()
			}
			// Transport trouble must not kill the consumer; keep polling.
			c.logger.Warn("Queue fetch failed, retrying", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff):
			}
			continue
		}

		c.logger.Info("Trigger received", "partition", msg.Partition, "offset", msg.Offset)

		if err := c.job.Run(ctx); err != nil {
			// Leave the message uncommitted; the group redelivers it after
			// the configured interval.
			c.logger.Error("Digest run failed, trigger left unacknowledged",
				"offset", msg.Offset,
				"error", err)
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Warn("Commit failed, trigger may be redelivered", "offset", msg.Offset, "error", err)
			continue
		}

		c.logger.Info("Trigger acknowledged", "offset", msg.Offset)
	}
}

// Close releases the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
