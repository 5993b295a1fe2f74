package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"desci/pkg/platform/events"
	"desci/pkg/platform/events/memory"
)

func paymentEvent(report string) events.Event {
	return events.Event{
		ID:     uuid.New(),
		Topics: []string{events.TopicPaymentMade, report},
		Data:   []byte(`{"contributor":"C1","amount":"1"}`),
	}
}

func TestPublisher_SyncMode(t *testing.T) {
	sink := memory.NewSink()
	pub := NewPublisher(sink)
	defer pub.Close()

	err := pub.Publish(context.Background(), []events.Event{paymentEvent("r1")})
	require.NoError(t, err)

	got := sink.Events()
	require.Len(t, got, 1)
	assert.Equal(t, "r1", got[0].Topics[1])
}

func TestPublisher_SyncModeReturnsSinkError(t *testing.T) {
	boom := errors.New("broker down")
	pub := NewPublisher(events.SinkFunc(func(context.Context, []events.Event) error { return boom }))

	err := pub.Publish(context.Background(), []events.Event{paymentEvent("r1")})
	assert.ErrorIs(t, err, boom)
}

func TestPublisher_AsyncMode(t *testing.T) {
	sink := memory.NewSink()
	pub := NewPublisher(sink, WithAsyncBuffer(10))
	defer pub.Close()

	err := pub.Publish(context.Background(), []events.Event{paymentEvent("r1")})
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return len(sink.Events()) == 1 }, time.Second, 10*time.Millisecond)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	sink := memory.NewSink()
	pub := NewPublisher(sink, WithAsyncBuffer(100))

	for range 10 {
		require.NoError(t, pub.Publish(context.Background(), []events.Event{paymentEvent("r1")}))
	}

	// Close should drain all batches
	require.NoError(t, pub.Close())
	assert.Len(t, sink.Events(), 10, "all events should be drained on close")

	assert.Error(t, pub.Publish(context.Background(), []events.Event{paymentEvent("late")}))
}

func TestPublisher_AsyncPreservesBatchOrder(t *testing.T) {
	sink := memory.NewSink()
	pub := NewPublisher(sink, WithAsyncBuffer(10))

	for _, r := range []string{"a", "b", "c"} {
		require.NoError(t, pub.Publish(context.Background(), []events.Event{paymentEvent(r)}))
	}
	require.NoError(t, pub.Close())

	got := sink.Events()
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].Topics[1])
	assert.Equal(t, "b", got[1].Topics[1])
	assert.Equal(t, "c", got[2].Topics[1])
}

func TestPublisher_BufferFull_DropsBatch(t *testing.T) {
	release := make(chan struct{})
	blocking := events.SinkFunc(func(context.Context, []events.Event) error {
		<-release
		return nil
	})
	pub := NewPublisher(blocking, WithAsyncBuffer(1))

	var wg sync.WaitGroup
	var mu sync.Mutex
	var full int
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if errors.Is(pub.Publish(context.Background(), []events.Event{paymentEvent("r")}), ErrBufferFull) {
				mu.Lock()
				full++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Positive(t, full, "a one-slot buffer cannot take ten batches while the sink is blocked")
	close(release)
	require.NoError(t, pub.Close())
}

func TestPublisher_EmptyBatchIsNoop(t *testing.T) {
	sink := memory.NewSink()
	pub := NewPublisher(sink, WithAsyncBuffer(1))
	require.NoError(t, pub.Publish(context.Background(), nil))
	require.NoError(t, pub.Close())
	assert.Empty(t, sink.Events())
}
