package broker

import (
	"context"
	"sync"
	"time"

	"github.com/hdcustody/walletd/pkg/config"
	"github.com/hdcustody/walletd/pkg/events"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Handler processes one decoded user.verified event. A returned error keeps
// the whole batch uncommitted.
type Handler func(ctx context.Context, e events.UserVerifiedEvent) error

// messageReader is the part of kafka.Reader the consumer needs. Tests
// substitute it.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer polls user.verified in batches, dispatches records in parallel
// and commits offsets only after every record of the batch succeeded. A
// failed batch is retried before new records are fetched, so processing is
// at-least-once and the handler has to dedupe.
type Consumer struct {
	cfg     config.Kafka
	log     *zap.Logger
	handler Handler

	reader  messageReader
	running *atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// pending holds a batch whose processing failed; it is re-dispatched
	// on the next loop turn instead of fetching new records.
	pending []kafka.Message

	// sleep is replaceable in tests to skip real backoff waits.
	sleep func(ctx context.Context, d time.Duration)
}

// NewConsumer builds a consumer group reader for the user.verified topic.
func NewConsumer(cfg config.Kafka, handler Handler, log *zap.Logger) *Consumer {
	return &Consumer{
		cfg:     cfg,
		log:     log,
		handler: handler,
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:           cfg.BootstrapServers,
			GroupID:           cfg.ConsumerGroup,
			Topic:             cfg.TopicUserVerified,
			MinBytes:          1,
			MaxBytes:          10 << 20,
			MaxWait:           500 * time.Millisecond,
			SessionTimeout:    30 * time.Second,
			HeartbeatInterval: 10 * time.Second,
			StartOffset:       kafka.FirstOffset,
			// CommitInterval zero means synchronous, explicit commits.
			CommitInterval: 0,
		}),
		running: atomic.NewBool(false),
		sleep:   sleepCtx,
	}
}

// Start launches the consume loop.
func (c *Consumer) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.running.Store(true)
	c.wg.Add(1)
	go c.loop(ctx)
	c.log.Info("consumer started",
		zap.String("topic", c.cfg.TopicUserVerified),
		zap.String("group", c.cfg.ConsumerGroup))
}

// Running reports whether the consume loop is active, used by health
// checks.
func (c *Consumer) Running() bool {
	return c.running.Load()
}

// Shutdown stops the loop, cancels in-flight record tasks and closes the
// reader. Uncommitted records will be redelivered.
func (c *Consumer) Shutdown() {
	if !c.running.Swap(false) {
		return
	}
	c.cancel()
	c.wg.Wait()
	if err := c.reader.Close(); err != nil {
		c.log.Error("failed to close consumer", zap.Error(err))
	}
	c.log.Info("consumer stopped")
}

func (c *Consumer) loop(ctx context.Context) {
	defer c.wg.Done()
	for c.running.Load() && ctx.Err() == nil {
		batch := c.pending
		if len(batch) == 0 {
			batch = c.fetchBatch(ctx)
		}
		if len(batch) == 0 {
			continue
		}

		failures := c.dispatch(ctx, batch)
		if failures > 0 {
			c.log.Error("batch processing had failures, batch will be retried",
				zap.Int("failures", failures), zap.Int("batch", len(batch)))
			c.pending = batch
			c.sleep(ctx, time.Second)
			continue
		}
		c.pending = nil
		c.commitOffsets(ctx, batch)
	}
}

// fetchBatch collects up to batch_processing_size records within one poll
// timeout window.
func (c *Consumer) fetchBatch(ctx context.Context) []kafka.Message {
	pollCtx, cancel := context.WithTimeout(ctx, c.cfg.PollTimeout())
	defer cancel()

	var batch []kafka.Message
	for len(batch) < c.cfg.BatchProcessingSize {
		msg, err := c.reader.FetchMessage(pollCtx)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
				c.log.Error("fetch failed", zap.Error(err))
			}
			break
		}
		batch = append(batch, msg)
	}
	return batch
}

// dispatch processes every record of the batch in parallel and returns the
// number of failures. Record order within a batch is not preserved.
func (c *Consumer) dispatch(ctx context.Context, batch []kafka.Message) int {
	var (
		wg       sync.WaitGroup
		mtx      sync.Mutex
		failures int
	)
	for _, msg := range batch {
		wg.Add(1)
		go func(msg kafka.Message) {
			defer wg.Done()
			if err := c.processMessage(ctx, msg); err != nil {
				mtx.Lock()
				failures++
				mtx.Unlock()
			}
		}(msg)
	}
	wg.Wait()
	return failures
}

func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) error {
	event, err := events.DecodeUserVerified(msg.Value)
	if err != nil {
		c.log.Error("failed to decode record",
			zap.Int64("offset", msg.Offset), zap.Error(err))
		return err
	}
	c.log.Info("received user.verified event",
		zap.String("user_id", event.UserID),
		zap.String("network", event.Network),
		zap.Int64("offset", msg.Offset))

	if err := c.handler(ctx, event); err != nil {
		c.log.Error("failed to process record",
			zap.Int64("offset", msg.Offset), zap.Error(err))
		return err
	}
	return nil
}

// commitOffsets commits the batch with a three-attempt exponential backoff.
func (c *Consumer) commitOffsets(ctx context.Context, batch []kafka.Message) {
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			c.sleep(ctx, time.Duration(1<<(attempt-1))*time.Second)
		}
		if err = c.reader.CommitMessages(ctx, batch...); err == nil {
			return
		}
	}
	c.log.Error("failed to commit offsets", zap.Error(err))
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
