package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

// maxHandlerRetries bounds the attempts per message before it is
// dead-lettered and committed.
const maxHandlerRetries = 3

// Handler processes one decoded envelope.
type Handler func(ctx context.Context, event *Event) error

// ConsumerConfig holds Kafka reader settings.
type ConsumerConfig struct {
	Brokers  []string
	GroupID  string
	Topic    string
	MinBytes int
	MaxBytes int
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// DeadLetterer receives messages whose handler failed on every attempt.
type DeadLetterer interface {
	Publish(ctx context.Context, msg kafka.Message, lastErr error, group string) error
}

// Consumer reads one topic within a consumer group and commits each message
// after it has been handled, dead-lettered or found undecodable.
type Consumer struct {
	reader     messageReader
	topic      string
	group      string
	handler    Handler
	deadLetter DeadLetterer
	backoff    time.Duration
	logger     *slog.Logger
	closeOnce  sync.Once
}

func NewConsumer(cfg ConsumerConfig, handler Handler, logger *slog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
	})
	return newConsumer(r, cfg, handler, logger)
}

func newConsumer(r messageReader, cfg ConsumerConfig, handler Handler, logger *slog.Logger) *Consumer {
	return &Consumer{
		reader:  r,
		topic:   cfg.Topic,
		group:   cfg.GroupID,
		handler: handler,
		backoff: 100 * time.Millisecond,
		logger:  logger.With(slog.String("topic", cfg.Topic), slog.String("group", cfg.GroupID)),
	}
}

// WithDeadLetter routes exhausted messages to dl instead of dropping them.
func (c *Consumer) WithDeadLetter(dl DeadLetterer) *Consumer {
	c.deadLetter = dl
	return c
}

// Start consumes until ctx is canceled.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping")
				return nil
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			c.logger.Error("failed to fetch message", slog.String("error", err.Error()))
			continue
		}
		consumerMessagesReceived.WithLabelValues(c.topic).Inc()

		if err := c.process(ctx, msg); err != nil {
			// Only a canceled context stops processing mid-message; the
			// message stays uncommitted and is redelivered.
			return nil
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("failed to commit message",
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
				slog.String("error", err.Error()),
			)
		}
	}
}

// process runs the handler with retries. It returns an error only when ctx
// ends before the message is settled.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	event, err := UnmarshalEvent(msg.Value)
	if err != nil {
		consumerMessagesFailed.WithLabelValues(c.topic, "decode").Inc()
		c.logger.Error("failed to unmarshal event",
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
		c.sendToDeadLetter(ctx, msg, err)
		return nil
	}

	ctx = otel.GetTextMapPropagator().Extract(ctx, headerCarrier{headers: &msg.Headers})

	var lastErr error
	for attempt := 1; attempt <= maxHandlerRetries; attempt++ {
		start := time.Now()
		lastErr = c.handler(ctx, event)
		consumerHandleDuration.WithLabelValues(c.topic).Observe(time.Since(start).Seconds())
		if lastErr == nil {
			return nil
		}

		c.logger.WarnContext(ctx, "handler failed, will retry",
			slog.String("event_type", event.EventType),
			slog.String("aggregate_id", event.AggregateID),
			slog.Int("attempt", attempt),
			slog.String("error", lastErr.Error()),
		)
		if attempt == maxHandlerRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * c.backoff):
		}
	}

	consumerMessagesFailed.WithLabelValues(c.topic, "handler").Inc()
	c.logger.ErrorContext(ctx, "handler failed after all retries",
		slog.String("event_type", event.EventType),
		slog.String("aggregate_id", event.AggregateID),
		slog.Int64("offset", msg.Offset),
		slog.String("error", lastErr.Error()),
	)
	c.sendToDeadLetter(ctx, msg, lastErr)
	return nil
}

func (c *Consumer) sendToDeadLetter(ctx context.Context, msg kafka.Message, cause error) {
	if c.deadLetter == nil {
		return
	}
	if err := c.deadLetter.Publish(ctx, msg, cause, c.group); err != nil {
		c.logger.ErrorContext(ctx, "dead-letter publish failed", slog.String("error", err.Error()))
	}
}

// Close is safe to call more than once.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.reader.Close()
	})
	if err != nil {
		return fmt.Errorf("close consumer %s: %w", c.topic, err)
	}
	return nil
}
