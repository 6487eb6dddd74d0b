package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher is what the HTTP layer depends on; a nil-safe no-op keeps the
// pipeline usable when no broker is configured (tests, local runs).
type Publisher interface {
	Publish(eventType string, orderID int64, payload any)
}

// Producer publishes order lifecycle events asynchronously. Messages go
// through a buffered inbox drained by a single goroutine; a full inbox
// drops the event rather than blocking a checkout.
type Producer struct {
	w       *kafka.Writer
	inbox   chan kafka.Message
	closeCh chan struct{}
	service string
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
}

func NewProducer(brokers []string, topic, service string, buf int, logger *zap.Logger) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
		service: service,
		logger:  logger,
	}
}

func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.closeCh)
		for {
			select {
			case <-ctx.Done():
				p.drain()
				return
			case m := <-p.inbox:
				p.write(m)
			}
		}
	}()
}

// drain marks the producer closed before touching the channel. The write
// lock waits out any Publish holding the read lock, so no send can race
// the close; late Publish calls drop their event instead of panicking.
func (p *Producer) drain() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	close(p.inbox)
	for m := range p.inbox {
		p.write(m)
	}
	_ = p.w.Close()
}

func (p *Producer) write(m kafka.Message) {
	if err := p.w.WriteMessages(context.Background(), m); err != nil {
		p.logger.Warn("publish event failed",
			zap.String("topic", p.w.Topic),
			zap.Error(err))
	}
}

func (p *Producer) Publish(eventType string, orderID int64, payload any) {
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      p.service,
		CorrelationID: string(PartitionKey(orderID)),
		Payload:       MustMarshal(payload),
	}

	m := kafka.Message{
		Key:   PartitionKey(orderID),
		Value: MustMarshal(ev),
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "x-event-type", Value: []byte(eventType)},
			{Key: "x-event-version", Value: []byte("1")},
		},
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.Warn("producer shut down, dropping event",
			zap.String("event_type", eventType),
			zap.Int64("order_id", orderID))
		return
	}

	select {
	case p.inbox <- m:
	default:
		p.logger.Warn("event inbox full, dropping event",
			zap.String("event_type", eventType),
			zap.Int64("order_id", orderID))
	}
}

// NopPublisher satisfies Publisher when eventing is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(string, int64, any) {}
