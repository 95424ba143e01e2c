package kafka

import (
	"context"
	"fmt"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"trimly/pkg/kafka/config"
	"trimly/pkg/logger"
)

// Producer wraps a kafka-go writer. Failed publishes optionally land on a
// dead letter topic so the original payload is never lost.
type Producer struct {
	writer    *kafkago.Writer
	dlqWriter *kafkago.Writer
	cfg       *config.Config
	log       *logger.Logger
	closed    bool
	mu        sync.RWMutex
}

func NewProducer(cfg *config.Config, log *logger.Logger) (*Producer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	writer := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: requiredAcks(cfg.RequiredAcks),
		Compression:  compression(cfg.Compression),
		MaxAttempts:  cfg.MaxRetries + 1,
	}

	p := &Producer{writer: writer, cfg: cfg, log: log}
	if cfg.DLQTopic != "" {
		p.dlqWriter = &kafkago.Writer{
			Addr:         kafkago.TCP(cfg.Brokers...),
			Topic:        cfg.DLQTopic,
			Balancer:     &kafkago.Hash{},
			RequiredAcks: kafkago.RequireAll,
		}
	}
	return p, nil
}

func (p *Producer) Publish(ctx context.Context, msg Message) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrProducerClosed
	}
	if msg.Key == "" {
		return ErrEmptyKey
	}
	if len(msg.Value) == 0 {
		return ErrEmptyValue
	}

	start := time.Now()
	err := p.writer.WriteMessages(ctx, toKafkaMessage(msg))
	if err != nil {
		p.log.Error("failed to publish message",
			"topic", p.cfg.Topic,
			"key", msg.Key,
			"event_type", msg.GetEventType(),
			"error", err)
		if dlqErr := p.publishToDLQ(ctx, msg, err); dlqErr != nil {
			p.log.Error("failed to publish to dead letter topic",
				"dlq_topic", p.cfg.DLQTopic,
				"key", msg.Key,
				"error", dlqErr)
		}
		return fmt.Errorf("publishing to %s: %w", p.cfg.Topic, err)
	}

	p.log.Debug("message published",
		"topic", p.cfg.Topic,
		"key", msg.Key,
		"event_type", msg.GetEventType(),
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (p *Producer) publishToDLQ(ctx context.Context, msg Message, cause error) error {
	if p.dlqWriter == nil {
		return nil
	}
	msg.Headers[HeaderOriginalTopic] = p.cfg.Topic
	msg.Headers["failure-reason"] = cause.Error()
	return p.dlqWriter.WriteMessages(ctx, toKafkaMessage(msg))
}

func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.dlqWriter != nil {
		if err := p.dlqWriter.Close(); err != nil {
			p.log.Error("failed to close dlq writer", "error", err)
		}
	}
	return p.writer.Close()
}

func toKafkaMessage(msg Message) kafkago.Message {
	headers := make([]kafkago.Header, 0, len(msg.Headers))
	for k, v := range msg.Headers {
		headers = append(headers, kafkago.Header{Key: k, Value: []byte(v)})
	}
	return kafkago.Message{
		Key:     []byte(msg.Key),
		Value:   msg.Value,
		Headers: headers,
		Time:    msg.Timestamp,
	}
}

func requiredAcks(acks string) kafkago.RequiredAcks {
	switch acks {
	case "none":
		return kafkago.RequireNone
	case "one":
		return kafkago.RequireOne
	default:
		return kafkago.RequireAll
	}
}

func compression(codec string) kafkago.Compression {
	switch codec {
	case "gzip":
		return kafkago.Gzip
	case "lz4":
		return kafkago.Lz4
	case "zstd":
		return kafkago.Zstd
	case "none":
		return 0
	default:
		return kafkago.Snappy
	}
}
