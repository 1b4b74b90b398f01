package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/SAP-F-2025/course-portal/internal/config"
	"github.com/SAP-F-2025/course-portal/internal/payment"
	"github.com/SAP-F-2025/course-portal/internal/utils"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBusWithoutBrokersUsesGoChannel(t *testing.T) {
	bus, err := NewBus(config.KafkaConfig{}, "i1", utils.NewDiscardLogger())
	require.NoError(t, err)
	defer bus.Close()

	assert.Equal(t, "gochannel", bus.Transport)
	assert.Equal(t, DefaultTopic, bus.Topic)
}

func TestPublisherToRelay(t *testing.T) {
	logger := utils.NewDiscardLogger()
	bus, err := NewBus(config.KafkaConfig{Topic: "test.checkout"}, "", logger)
	require.NoError(t, err)
	defer bus.Close()

	var (
		mu  sync.Mutex
		got []CheckoutEvent
	)
	relay, err := NewRelay(bus, logger, func(_ context.Context, ev CheckoutEvent) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = relay.Run(ctx) }()
	<-relay.Running()

	pub := NewPublisher(bus, logger)
	go pub.Run(ctx)

	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	pub.Observe(payment.Transition{
		AttemptID: "a1", StudentID: "s1", CourseID: "c1",
		From: payment.StateVerifying, To: payment.StateFailed,
		Kind: payment.KindBackend, Message: "Payment verification failed.", At: at,
	})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	ev := got[0]
	mu.Unlock()
	assert.Equal(t, "a1", ev.AttemptID)
	assert.Equal(t, "s1", ev.StudentID)
	assert.Equal(t, payment.StateFailed, ev.To)
	assert.Equal(t, payment.KindBackend, ev.ErrorKind)
	assert.Equal(t, "Payment verification failed.", ev.Message)
	assert.True(t, at.Equal(ev.At))
}

func TestRelaySkipsMalformedEvents(t *testing.T) {
	logger := utils.NewDiscardLogger()
	bus, err := NewBus(config.KafkaConfig{}, "", logger)
	require.NoError(t, err)
	defer bus.Close()

	calls := make(chan CheckoutEvent, 2)
	relay, err := NewRelay(bus, logger, func(_ context.Context, ev CheckoutEvent) { calls <- ev })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = relay.Run(ctx) }()
	<-relay.Running()

	require.NoError(t, bus.Publisher.Publish(bus.Topic, message.NewMessage(watermill.NewUUID(), []byte("{not json"))))
	good, err := encode(CheckoutEvent{AttemptID: "a2", To: payment.StateReady})
	require.NoError(t, err)
	require.NoError(t, bus.Publisher.Publish(bus.Topic, good))

	select {
	case ev := <-calls:
		assert.Equal(t, "a2", ev.AttemptID)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not deliver the valid event")
	}
}

func TestObserveDropsWhenQueueFull(t *testing.T) {
	p := &Publisher{queue: make(chan CheckoutEvent, 1), logger: utils.NewDiscardLogger()}
	p.Observe(payment.Transition{AttemptID: "a"})
	p.Observe(payment.Transition{AttemptID: "b"})
	assert.Len(t, p.queue, 1)
}

func TestEncodeSetsPartitionKey(t *testing.T) {
	msg, err := encode(CheckoutEvent{StudentID: "s9", To: payment.StateSuccess})
	require.NoError(t, err)
	assert.Equal(t, "s9", msg.Metadata.Get("partition_key"))
	assert.Equal(t, "SUCCESS", msg.Metadata.Get("state"))

	ev, err := decode(msg)
	require.NoError(t, err)
	assert.Equal(t, payment.StateSuccess, ev.To)
}
