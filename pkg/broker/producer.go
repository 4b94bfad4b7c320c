// Package broker wraps the Kafka client: an ordered keyed producer and a
// batch-polling consumer group with manual offset commits.
package broker

import (
	"context"
	"sync"
	"time"

	"github.com/hdcustody/walletd/pkg/config"
	"github.com/hdcustody/walletd/pkg/events"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ErrPublishFailed is returned when the broker did not acknowledge a
// message.
var ErrPublishFailed = errors.New("publish failed")

// messageWriter is the part of kafka.Writer the producer needs. Tests
// substitute it.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes event envelopes. The underlying writer is initialised
// lazily on first publish and is safe for concurrent use.
type Producer struct {
	cfg config.Kafka
	log *zap.Logger

	mtx       sync.Mutex
	writer    messageWriter
	newWriter func() messageWriter
}

// NewProducer returns an unconnected producer.
func NewProducer(cfg config.Kafka, log *zap.Logger) *Producer {
	p := &Producer{cfg: cfg, log: log}
	p.newWriter = p.defaultWriter
	return p
}

func (p *Producer) defaultWriter() messageWriter {
	return &kafka.Writer{
		Addr:         kafka.TCP(p.cfg.BootstrapServers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Gzip,
		BatchBytes:   16384,
		BatchTimeout: 10 * time.Millisecond,
	}
}

func (p *Producer) getWriter() messageWriter {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	if p.writer == nil {
		p.writer = p.newWriter()
	}
	return p.writer
}

// Publish sends one envelope to topic and waits for broker acknowledgement.
func (p *Producer) Publish(ctx context.Context, topic string, env events.Envelope) error {
	err := p.getWriter().WriteMessages(ctx, toMessage(topic, env))
	if err != nil {
		p.log.Error("failed to publish event",
			zap.String("topic", topic), zap.Error(err))
		return errors.Wrapf(ErrPublishFailed, "topic %s: %s", topic, err)
	}
	return nil
}

// PublishBatch sends all envelopes in one write. Individual sends may
// succeed while the call fails; consumers have to be idempotent.
func (p *Producer) PublishBatch(ctx context.Context, topic string, envs []events.Envelope) error {
	if len(envs) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, len(envs))
	for i, env := range envs {
		msgs[i] = toMessage(topic, env)
	}
	err := p.getWriter().WriteMessages(ctx, msgs...)
	if err == nil {
		return nil
	}
	failed := len(msgs)
	var writeErrs kafka.WriteErrors
	if errors.As(err, &writeErrs) {
		failed = writeErrs.Count()
	}
	p.log.Error("batch publish had failures",
		zap.String("topic", topic),
		zap.Int("failed", failed),
		zap.Int("total", len(msgs)))
	return errors.Wrapf(ErrPublishFailed, "topic %s: %d of %d messages failed", topic, failed, len(msgs))
}

// Close shuts the writer down if it was ever opened.
func (p *Producer) Close() error {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	if p.writer == nil {
		return nil
	}
	err := p.writer.Close()
	p.writer = nil
	return err
}

func toMessage(topic string, env events.Envelope) kafka.Message {
	headers := make([]kafka.Header, len(env.Headers))
	for i, h := range env.Headers {
		headers[i] = kafka.Header{Key: h.Key, Value: h.Value}
	}
	return kafka.Message{
		Topic:   topic,
		Key:     env.Key,
		Value:   env.Value,
		Headers: headers,
	}
}
