package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"

	kafkago "github.com/segmentio/kafka-go"

	"trimly/pkg/kafka/config"
	"trimly/pkg/logger"
)

// Consumer reads messages in a loop and hands them to a MessageHandler.
// Transient handler failures are retried up to MaxRetries; exhausted or
// permanent failures go to the dead letter topic and the offset is committed
// so the partition keeps moving.
type Consumer struct {
	reader    *kafkago.Reader
	dlqWriter *kafkago.Writer
	cfg       *config.Config
	log       *logger.Logger
	closed    bool
	mu        sync.RWMutex
}

func NewConsumer(cfg *config.Config, log *logger.Logger) (*Consumer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("consumer group id is required")
	}

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: cfg.ReadMinBytes,
		MaxBytes: cfg.ReadMaxBytes,
		MaxWait:  cfg.ReadMaxWait,
	})

	c := &Consumer{reader: reader, cfg: cfg, log: log}
	if cfg.DLQTopic != "" {
		c.dlqWriter = &kafkago.Writer{
			Addr:         kafkago.TCP(cfg.Brokers...),
			Topic:        cfg.DLQTopic,
			Balancer:     &kafkago.Hash{},
			RequiredAcks: kafkago.RequireAll,
		}
	}
	return c, nil
}

// Consume blocks until ctx is cancelled or the consumer is closed.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	c.log.Info("consumer started",
		"topic", c.cfg.Topic,
		"group_id", c.cfg.GroupID)

	for {
		kmsg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || c.isClosed() {
				return nil
			}
			c.log.Error("failed to fetch message", "error", err)
			continue
		}

		msg := fromKafkaMessage(kmsg)
		if err := c.process(ctx, msg, handler); err != nil {
			c.log.Error("message handling failed, routing to dlq",
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err)
			if dlqErr := c.sendToDLQ(ctx, msg, err); dlqErr != nil {
				c.log.Error("failed to write to dead letter topic", "error", dlqErr)
			}
		}

		if err := c.reader.CommitMessages(ctx, kmsg); err != nil {
			c.log.Error("failed to commit offset",
				"partition", kmsg.Partition,
				"offset", kmsg.Offset,
				"error", err)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg Message, handler MessageHandler) error {
	var err error
	for {
		err = handler(ctx, msg)
		if err == nil {
			return nil
		}
		if !ShouldRetry(err, msg.GetRetryCount(), c.cfg.MaxRetries) {
			return err
		}
		msg.IncrementRetryCount()
		c.log.Warn("retrying message",
			"event_id", msg.GetEventID(),
			"attempt", msg.GetRetryCount(),
			"error", err)
	}
}

func (c *Consumer) sendToDLQ(ctx context.Context, msg Message, cause error) error {
	if c.dlqWriter == nil {
		return nil
	}
	msg.Headers[HeaderOriginalTopic] = msg.Topic
	msg.Headers["failure-reason"] = cause.Error()
	return c.dlqWriter.WriteMessages(ctx, toKafkaMessage(msg))
}

func (c *Consumer) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *Consumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.dlqWriter != nil {
		if err := c.dlqWriter.Close(); err != nil {
			c.log.Error("failed to close dlq writer", "error", err)
		}
	}
	return c.reader.Close()
}

func fromKafkaMessage(kmsg kafkago.Message) Message {
	headers := make(map[string]string, len(kmsg.Headers))
	for _, h := range kmsg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return Message{
		Key:       string(kmsg.Key),
		Value:     kmsg.Value,
		Headers:   headers,
		Topic:     kmsg.Topic,
		Partition: kmsg.Partition,
		Offset:    kmsg.Offset,
		Timestamp: kmsg.Time,
	}
}
