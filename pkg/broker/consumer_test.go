package broker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/hdcustody/walletd/pkg/config"
	"github.com/hdcustody/walletd/pkg/events"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeReader struct {
	mtx       sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mtx.Lock()
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mtx.Unlock()
		return msg, nil
	}
	r.mtx.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) committedCount() int {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return len(r.committed)
}

func userVerifiedMessage(t *testing.T, userID, network string, offset int64) kafka.Message {
	t.Helper()
	value, err := json.Marshal(events.NewUserVerified(userID, network))
	require.NoError(t, err)
	return kafka.Message{Topic: "user.verified", Key: []byte(userID), Value: value, Offset: offset}
}

func testConsumer(t *testing.T, reader *fakeReader, handler Handler) *Consumer {
	t.Helper()
	cfg := config.Default().Kafka
	cfg.ConsumerPollTimeoutMS = 50
	c := NewConsumer(cfg, handler, zaptest.NewLogger(t))
	c.reader = reader
	c.sleep = func(context.Context, time.Duration) {}
	return c
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestConsumerProcessesAndCommits(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{
		userVerifiedMessage(t, "u1", "ethereum", 0),
		userVerifiedMessage(t, "u2", "tron", 1),
		userVerifiedMessage(t, "u3", "bitcoin", 2),
	}}

	var (
		mtx  sync.Mutex
		seen []string
	)
	c := testConsumer(t, reader, func(_ context.Context, e events.UserVerifiedEvent) error {
		mtx.Lock()
		defer mtx.Unlock()
		seen = append(seen, e.UserID+":"+e.Network)
		return nil
	})

	c.Start()
	require.True(t, c.Running())
	waitFor(t, func() bool { return reader.committedCount() == 3 })
	c.Shutdown()

	require.False(t, c.Running())
	require.True(t, reader.closed)
	mtx.Lock()
	defer mtx.Unlock()
	require.ElementsMatch(t, []string{"u1:ethereum", "u2:tron", "u3:bitcoin"}, seen)
}

func TestConsumerRetriesFailedBatch(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{
		userVerifiedMessage(t, "u1", "ethereum", 0),
		userVerifiedMessage(t, "u2", "ethereum", 1),
	}}

	var (
		mtx      sync.Mutex
		attempts = map[string]int{}
	)
	c := testConsumer(t, reader, func(_ context.Context, e events.UserVerifiedEvent) error {
		mtx.Lock()
		defer mtx.Unlock()
		attempts[e.UserID]++
		if e.UserID == "u2" && attempts["u2"] == 1 {
			return errors.New("transient failure")
		}
		return nil
	})

	c.Start()
	waitFor(t, func() bool { return reader.committedCount() == 2 })
	c.Shutdown()

	mtx.Lock()
	defer mtx.Unlock()
	// The whole batch is re-dispatched after the failure: u2 twice and u1
	// at least once more (duplicates are the handler's problem).
	require.Equal(t, 2, attempts["u2"])
	require.GreaterOrEqual(t, attempts["u1"], 1)
}

func TestConsumerDoesNotCommitMalformedRecords(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{
		{Topic: "user.verified", Value: []byte("not json"), Offset: 0},
	}}

	calls := 0
	c := testConsumer(t, reader, func(context.Context, events.UserVerifiedEvent) error {
		calls++
		return nil
	})

	c.Start()
	time.Sleep(200 * time.Millisecond)
	c.Shutdown()

	require.Equal(t, 0, calls)
	require.Equal(t, 0, reader.committedCount())
}

func TestConsumerShutdownIdempotent(t *testing.T) {
	reader := &fakeReader{}
	c := testConsumer(t, reader, func(context.Context, events.UserVerifiedEvent) error { return nil })
	c.Start()
	c.Shutdown()
	c.Shutdown()
	require.False(t, c.Running())
}
