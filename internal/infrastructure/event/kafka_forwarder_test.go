package event

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erp/reservation/internal/domain/reservation"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	calls    int
	delay    time.Duration
	err      error
	closed   bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.delay > 0 {
		time.Sleep(w.delay)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *recordingWriter) written() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.messages...)
}

func newCreatedEvent(t *testing.T) *reservation.ReservationCreatedEvent {
	t.Helper()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	owner, err := reservation.NewOwnerRef("order", "SO-1")
	require.NoError(t, err)
	r, err := reservation.NewReservation(reservation.NewStockKey(uuid.New(), uuid.New()),
		decimal.NewFromInt(3), time.Minute, owner, now)
	require.NoError(t, err)
	return reservation.NewReservationCreatedEvent(r)
}

func TestKafkaEventForwarder_Handle(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	writer := &recordingWriter{}
	serializer := NewReservationEventSerializer()
	forwarder := NewKafkaEventForwarder(writer, serializer, "rsv.events", zap.NewNop())
	event := newCreatedEvent(t)

	ctx, span := otel.Tracer("test").Start(context.Background(), "parent")
	require.NoError(t, forwarder.Handle(ctx, event))
	span.End()
	require.NoError(t, forwarder.Close())

	messages := writer.written()
	require.Len(t, messages, 1)
	msg := messages[0]
	carrier := NewHeaderCarrier(&msg)
	assert.Equal(t, event.AggregateID().String(), string(msg.Key))
	assert.Equal(t, reservation.EventTypeReservationCreated, carrier.Get(HeaderEventType))
	assert.Equal(t, event.EventID().String(), carrier.Get(HeaderEventID))
	assert.Contains(t, carrier.Get("traceparent"), span.SpanContext().TraceID().String())

	decoded, err := serializer.Deserialize(carrier.Get(HeaderEventType), msg.Value)
	require.NoError(t, err)
	got, ok := decoded.(*reservation.ReservationCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, event.ReservationID, got.ReservationID)
	assert.True(t, event.Quantity.Equal(got.Quantity))
	assert.Equal(t, event.Owner, got.Owner)
}

func TestKafkaEventForwarder_WriteErrorIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	writer := &recordingWriter{err: errors.New("broker down")}
	forwarder := NewKafkaEventForwarder(writer, NewReservationEventSerializer(), "rsv.events", zap.New(core))

	require.NoError(t, forwarder.Handle(context.Background(), newCreatedEvent(t)))
	require.NoError(t, forwarder.Close())
	assert.True(t, writer.closed)

	entries := logs.FilterMessage("Failed to write events to kafka").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "broker down", entries[0].ContextMap()["error"])
}

func TestKafkaEventForwarder_SlowBrokerDoesNotBlockPublishers(t *testing.T) {
	writer := &recordingWriter{delay: 200 * time.Millisecond}
	forwarder := NewKafkaEventForwarder(writer, NewReservationEventSerializer(), "rsv.events", zap.NewNop())
	bus := NewInMemoryEventBus(zap.NewNop())
	bus.Subscribe(forwarder)
	require.NoError(t, bus.Start(context.Background()))

	start := time.Now()
	for i := 0; i < 20; i++ {
		require.NoError(t, bus.Publish(context.Background(), newCreatedEvent(t)))
	}
	assert.Less(t, time.Since(start), 150*time.Millisecond)

	require.NoError(t, forwarder.Close())
	assert.Len(t, writer.written(), 20)
	writer.mu.Lock()
	defer writer.mu.Unlock()
	assert.Less(t, writer.calls, 20, "queued events should be written in batches")
}

func TestKafkaEventForwarder_FullQueueDrops(t *testing.T) {
	release := make(chan struct{})
	writer := &blockingWriter{release: release}
	forwarder := NewKafkaEventForwarder(writer, NewReservationEventSerializer(), "rsv.events", zap.NewNop(),
		WithForwardQueueSize(1))

	// first event is picked up by the write loop and blocks there; the second fills the queue
	require.NoError(t, forwarder.Handle(context.Background(), newCreatedEvent(t)))
	require.Eventually(t, func() bool { return writer.started.Load() }, time.Second, 5*time.Millisecond)
	require.NoError(t, forwarder.Handle(context.Background(), newCreatedEvent(t)))

	err := forwarder.Handle(context.Background(), newCreatedEvent(t))
	assert.ErrorIs(t, err, ErrForwardQueueFull)

	close(release)
	require.NoError(t, forwarder.Close())
	assert.ErrorIs(t, forwarder.Handle(context.Background(), newCreatedEvent(t)), ErrForwarderClosed)
}

type blockingWriter struct {
	release chan struct{}
	started atomic.Bool
}

func (w *blockingWriter) WriteMessages(_ context.Context, _ ...kafka.Message) error {
	w.started.Store(true)
	<-w.release
	return nil
}

func (w *blockingWriter) Close() error { return nil }

func TestHeaderCarrier_SetReplaces(t *testing.T) {
	msg := kafka.Message{}
	c := NewHeaderCarrier(&msg)
	c.Set("a", "1")
	c.Set("a", "2")
	c.Set("b", "3")

	assert.Equal(t, "2", c.Get("a"))
	assert.ElementsMatch(t, []string{"a", "b"}, c.Keys())
	assert.Empty(t, c.Get("missing"))
}
