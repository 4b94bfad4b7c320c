package broker

import (
	"context"
	"testing"

	"github.com/hdcustody/walletd/pkg/config"
	"github.com/hdcustody/walletd/pkg/events"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeWriter struct {
	written []kafka.Message
	err     error
	closed  bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func testProducer(t *testing.T, w *fakeWriter) *Producer {
	t.Helper()
	p := NewProducer(config.Default().Kafka, zaptest.NewLogger(t))
	p.newWriter = func() messageWriter { return w }
	return p
}

func TestPublish(t *testing.T) {
	w := &fakeWriter{}
	p := testProducer(t, w)

	env, err := events.NewUserVerified("u1", "ethereum").Envelope()
	require.NoError(t, err)
	require.NoError(t, p.Publish(context.Background(), "user.verified", env))

	require.Len(t, w.written, 1)
	msg := w.written[0]
	require.Equal(t, "user.verified", msg.Topic)
	require.Equal(t, []byte("u1"), msg.Key)
	require.Len(t, msg.Headers, 2)
	require.Equal(t, "event_type", msg.Headers[0].Key)
}

func TestPublishFailure(t *testing.T) {
	w := &fakeWriter{err: kafka.LeaderNotAvailable}
	p := testProducer(t, w)

	env, err := events.NewWalletCreated("u1", "tron", "Taddr").Envelope()
	require.NoError(t, err)
	err = p.Publish(context.Background(), "wallet.created", env)
	require.ErrorIs(t, err, ErrPublishFailed)
}

func TestPublishBatch(t *testing.T) {
	w := &fakeWriter{}
	p := testProducer(t, w)

	var envs []events.Envelope
	for _, user := range []string{"a", "b", "c"} {
		env, err := events.NewUserVerified(user, "bitcoin").Envelope()
		require.NoError(t, err)
		envs = append(envs, env)
	}
	require.NoError(t, p.PublishBatch(context.Background(), "user.verified", envs))
	require.Len(t, w.written, 3)

	require.NoError(t, p.PublishBatch(context.Background(), "user.verified", nil))
}

func TestPublishBatchPartialFailure(t *testing.T) {
	w := &fakeWriter{err: kafka.WriteErrors{nil, kafka.LeaderNotAvailable, kafka.LeaderNotAvailable}}
	p := testProducer(t, w)

	var envs []events.Envelope
	for _, user := range []string{"a", "b", "c"} {
		env, err := events.NewUserVerified(user, "ethereum").Envelope()
		require.NoError(t, err)
		envs = append(envs, env)
	}
	err := p.PublishBatch(context.Background(), "user.verified", envs)
	require.ErrorIs(t, err, ErrPublishFailed)
	require.Contains(t, err.Error(), "2 of 3")
}

func TestProducerLazyInitAndClose(t *testing.T) {
	w := &fakeWriter{}
	p := testProducer(t, w)
	inits := 0
	inner := p.newWriter
	p.newWriter = func() messageWriter {
		inits++
		return inner()
	}

	env, err := events.NewUserVerified("u", "tron").Envelope()
	require.NoError(t, err)
	require.NoError(t, p.Publish(context.Background(), "t", env))
	require.NoError(t, p.Publish(context.Background(), "t", env))
	require.Equal(t, 1, inits)

	require.NoError(t, p.Close())
	require.True(t, w.closed)
	require.NoError(t, p.Close()) // idempotent
}
