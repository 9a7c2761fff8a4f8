package rabbitmq

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcrabbitmq "github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"go.uber.org/zap/zaptest"
)

func TestBackoff(t *testing.T) {
	base := 500 * time.Millisecond
	assert.Equal(t, base, Backoff(base, 0))
	assert.Equal(t, base, Backoff(base, 1))
	assert.Equal(t, time.Second, Backoff(base, 2))
	assert.Equal(t, 4*time.Second, Backoff(base, 4))
	assert.Equal(t, time.Minute, Backoff(base, 20))
	assert.Equal(t, time.Minute, Backoff(2*time.Minute, 1))
}

func TestAttemptFromHeaders(t *testing.T) {
	assert.Equal(t, 1, attemptFromHeaders(nil))
	assert.Equal(t, 1, attemptFromHeaders(amqp.Table{}))
	assert.Equal(t, 3, attemptFromHeaders(amqp.Table{"x-delivery-count": int64(2)}))
	assert.Equal(t, 2, attemptFromHeaders(amqp.Table{"x-death": []interface{}{amqp.Table{}}}))
}

func TestConsumerRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	container, err := tcrabbitmq.Run(ctx, "rabbitmq:3.12-management-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	url, err := container.AmqpURL(ctx)
	require.NoError(t, err)

	cfg := ConsumerConfig{
		URL:         url,
		Queue:       "frames.convert",
		Exchange:    "frameconv",
		DLQ:         "frames.convert.dlq",
		StatusQueue: "frames.status",
		Prefetch:    1,
		WorkerCount: 2,
		BaseDelayMs: 10,
	}

	var calls atomic.Int32
	handled := make(chan []byte, 4)
	consumer, err := NewConsumer(cfg, func(_ context.Context, body []byte) error {
		// Fail the first delivery to exercise the requeue path.
		if calls.Add(1) == 1 {
			return errors.New("transient")
		}
		handled <- body
		return nil
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer consumer.Close()

	conn, err := amqp.Dial(url)
	require.NoError(t, err)
	defer conn.Close()

	pub, err := NewPublisher(conn, cfg.Exchange)
	require.NoError(t, err)
	defer pub.Close()

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- consumer.Start(runCtx) }()

	require.NoError(t, pub.PublishRequest(ctx, []byte(`{"job_id":"x"}`)))

	select {
	case body := <-handled:
		assert.JSONEq(t, `{"job_id":"x"}`, string(body))
	case <-time.After(30 * time.Second):
		t.Fatal("request was not redelivered and handled")
	}
	assert.GreaterOrEqual(t, calls.Load(), int32(2))

	require.NoError(t, NewStatusPublisher(pub).PublishStatus(ctx, []byte(`{"status":"COMPLETED"}`)))
	require.NoError(t, NewDLQPublisher(pub, cfg.DLQ).PublishToDLQ(ctx, []byte(`{}`), "bad frame"))

	ch, err := conn.Channel()
	require.NoError(t, err)
	defer ch.Close()

	require.Eventually(t, func() bool {
		_, ok, _ := ch.Get(cfg.StatusQueue, true)
		return ok
	}, 10*time.Second, 100*time.Millisecond)

	var dead amqp.Delivery
	require.Eventually(t, func() bool {
		var ok bool
		dead, ok, _ = ch.Get(cfg.DLQ, true)
		return ok
	}, 10*time.Second, 100*time.Millisecond)
	assert.Equal(t, "bad frame", dead.Headers["x-dlq-reason"])

	stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("consumer did not stop")
	}
}
