package event

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/erp/reservation/internal/domain/shared"
	"github.com/erp/reservation/internal/infrastructure/config"
	"github.com/erp/reservation/internal/infrastructure/telemetry"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Kafka header names set on every forwarded event
const (
	HeaderEventType     = "event-type"
	HeaderEventID       = "event-id"
	HeaderAggregateType = "aggregate-type"
	HeaderContentType   = "content-type"
)

// MessageWriter is the subset of *kafka.Writer the forwarder needs
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter builds a writer that hashes on the message key, so all events of one
// aggregate land on one partition in order.
func NewKafkaWriter(cfg config.KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           cfg.BatchTimeout,
		WriteTimeout:           cfg.WriteTimeout,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

var (
	// ErrForwardQueueFull is returned by Handle when the writer cannot keep up
	ErrForwardQueueFull = errors.New("kafka forward queue full")
	// ErrForwarderClosed is returned by Handle after Close
	ErrForwarderClosed = errors.New("kafka forwarder closed")
)

// DefaultForwardQueueSize bounds the events waiting for the background writer
const DefaultForwardQueueSize = 4096

// maxForwardBatch caps the messages handed to one WriteMessages call
const maxForwardBatch = 256

// KafkaEventForwarder is an event handler that republishes every domain event to Kafka.
// Handle only serializes and enqueues; a background loop drains the queue in batches, so
// request and sweep latency never waits on the broker. The current trace context travels in
// W3C headers. Delivery is at most once: a full queue or a failed write drops events with a log.
type KafkaEventForwarder struct {
	writer     MessageWriter
	serializer *EventSerializer
	topic      string
	logger     *zap.Logger

	queue     chan kafka.Message
	done      chan struct{}
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// KafkaEventForwarderOption configures a KafkaEventForwarder
type KafkaEventForwarderOption func(*KafkaEventForwarder)

// WithForwardQueueSize sets how many events may wait for the writer
func WithForwardQueueSize(size int) KafkaEventForwarderOption {
	return func(f *KafkaEventForwarder) {
		if size > 0 {
			f.queue = make(chan kafka.Message, size)
		}
	}
}

// NewKafkaEventForwarder creates a forwarder writing through writer and starts its write loop.
// Close stops the loop after flushing queued events.
func NewKafkaEventForwarder(writer MessageWriter, serializer *EventSerializer, topic string, logger *zap.Logger, opts ...KafkaEventForwarderOption) *KafkaEventForwarder {
	f := &KafkaEventForwarder{
		writer:     writer,
		serializer: serializer,
		topic:      topic,
		logger:     logger,
		queue:      make(chan kafka.Message, DefaultForwardQueueSize),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	go f.run()
	return f
}

// EventTypes returns nil: the forwarder receives every event
func (f *KafkaEventForwarder) EventTypes() []string {
	return nil
}

// Handle serializes event and queues it for Kafka keyed by aggregate id
func (f *KafkaEventForwarder) Handle(ctx context.Context, event shared.DomainEvent) error {
	ctx, span := telemetry.StartSpan(ctx, f.topic+" publish",
		telemetry.WithSpanKind(trace.SpanKindProducer),
		telemetry.WithAttribute("messaging.system", "kafka"),
		telemetry.WithAttribute("messaging.destination.name", f.topic),
		telemetry.WithAttribute("event.type", event.EventType()),
	)
	defer span.End()

	payload, err := f.serializer.Serialize(event)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.AggregateID().String()),
		Value: payload,
		Time:  event.OccurredAt(),
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(event.EventType())},
			{Key: HeaderEventID, Value: []byte(event.EventID().String())},
			{Key: HeaderAggregateType, Value: []byte(event.AggregateType())},
			{Key: HeaderContentType, Value: []byte("application/json")},
		},
	}
	otel.GetTextMapPropagator().Inject(ctx, NewHeaderCarrier(&msg))

	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		err := ErrForwarderClosed
		telemetry.RecordError(span, err)
		return err
	}
	select {
	case f.queue <- msg:
		return nil
	default:
		err := fmt.Errorf("kafka forward queue full, dropping %s: %w", event.EventType(), ErrForwardQueueFull)
		telemetry.RecordError(span, err)
		return err
	}
}

func (f *KafkaEventForwarder) run() {
	defer close(f.done)
	batch := make([]kafka.Message, 0, maxForwardBatch)
	for msg := range f.queue {
		batch = append(batch[:0], msg)
	drain:
		for len(batch) < maxForwardBatch {
			select {
			case next, ok := <-f.queue:
				if !ok {
					break drain
				}
				batch = append(batch, next)
			default:
				break drain
			}
		}
		f.write(batch)
	}
}

func (f *KafkaEventForwarder) write(batch []kafka.Message) {
	if err := f.writer.WriteMessages(context.Background(), batch...); err != nil {
		f.logger.Error("Failed to write events to kafka",
			zap.String("topic", f.topic),
			zap.Int("dropped", len(batch)),
			zap.Error(err),
		)
		return
	}
	f.logger.Debug("Events forwarded to kafka",
		zap.String("topic", f.topic),
		zap.Int("count", len(batch)),
	)
}

// Close stops accepting events, flushes the queue and closes the writer
func (f *KafkaEventForwarder) Close() error {
	var err error
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.closed = true
		close(f.queue)
		f.mu.Unlock()
		<-f.done
		err = f.writer.Close()
	})
	return err
}

// HeaderCarrier adapts Kafka message headers to propagation.TextMapCarrier
type HeaderCarrier struct {
	msg *kafka.Message
}

// NewHeaderCarrier wraps msg
func NewHeaderCarrier(msg *kafka.Message) HeaderCarrier {
	return HeaderCarrier{msg: msg}
}

// Get returns the value of the first header named key
func (c HeaderCarrier) Get(key string) string {
	for _, h := range c.msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// Set replaces or appends the header named key
func (c HeaderCarrier) Set(key, value string) {
	for i, h := range c.msg.Headers {
		if h.Key == key {
			c.msg.Headers[i].Value = []byte(value)
			return
		}
	}
	c.msg.Headers = append(c.msg.Headers, kafka.Header{Key: key, Value: []byte(value)})
}

// Keys lists the header names
func (c HeaderCarrier) Keys() []string {
	keys := make([]string, len(c.msg.Headers))
	for i, h := range c.msg.Headers {
		keys[i] = h.Key
	}
	return keys
}

var _ shared.EventHandler = (*KafkaEventForwarder)(nil)
