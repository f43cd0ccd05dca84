// Package bus is the shared message bus adapter and consume-process-
// publish machinery every participant wires identically, built on a
// durable consistent-hash exchange per topic with manual ack.
package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"paymentsaga/internal/event"
)

// Bus wraps a single AMQP connection shared by a participant's
// publisher and all of its consumer shards.
type Bus struct {
	url  string
	log  zerolog.Logger
	conn *amqp091.Connection

	mu        sync.Mutex
	pubCh     *amqp091.Channel
	declared  map[event.Topic]bool
}

// New returns a Bus that has not yet connected.
func New(url string, log zerolog.Logger) *Bus {
	return &Bus{url: url, log: log, declared: make(map[event.Topic]bool)}
}

// Connect dials the broker and opens the publishing channel. Topic
// exchanges are declared lazily, on first publish or subscribe.
func (b *Bus) Connect() error {
	conn, err := amqp091.Dial(b.url)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open publish channel: %w", err)
	}

	b.conn = conn
	b.pubCh = ch
	return nil
}

// Close tears down the connection. Safe to call on an unconnected Bus.
func (b *Bus) Close() error {
	if b.pubCh != nil {
		b.pubCh.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

// exchangeName maps a logical topic onto its consistent-hash exchange.
func exchangeName(topic event.Topic) string {
	return "saga." + string(topic)
}

// consistentHashWeight is the equal weight every shard queue binds at;
// the exchange hashes the routing key (sagaId) across bound queues.
const consistentHashWeight = "10"

func (b *Bus) declareExchange(ch *amqp091.Channel, topic event.Topic) error {
	b.mu.Lock()
	already := b.declared[topic]
	b.mu.Unlock()
	if already {
		return nil
	}

	err := ch.ExchangeDeclare(
		exchangeName(topic),
		"x-consistent-hash",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare exchange %s: %w", topic, err)
	}

	b.mu.Lock()
	b.declared[topic] = true
	b.mu.Unlock()
	return nil
}

// Publish enriches and encodes env, then publishes it keyed on SagaID
// so every event for one saga hashes to the same shard queue within a
// topic.
func (b *Bus) Publish(ctx context.Context, topic event.Topic, env event.Envelope) error {
	if b.pubCh == nil {
		return fmt.Errorf("bus: publish channel not initialized")
	}
	if err := b.declareExchange(b.pubCh, topic); err != nil {
		return err
	}

	body, err := event.Encode(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	err = b.pubCh.PublishWithContext(
		ctx,
		exchangeName(topic),
		env.SagaID,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Type:         string(env.EventType),
			MessageId:    env.EventID,
			CorrelationId: env.CorrelationID,
			Timestamp:    env.Timestamp,
			Headers: amqp091.Table{
				"eventType":     string(env.EventType),
				"eventId":       env.EventID,
				"correlationId": env.CorrelationID,
				"retry-count":   env.Metadata.RetryCount,
			},
			Body: body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s on %s: %w", env.EventType, topic, err)
	}
	return nil
}

// PublishRaw publishes an already-encoded body with an explicit routing
// key, bypassing the envelope model. Used for dead-letter records,
// which are not part of the event taxonomy.
func (b *Bus) PublishRaw(ctx context.Context, topic event.Topic, routingKey string, body []byte) error {
	if b.pubCh == nil {
		return fmt.Errorf("bus: publish channel not initialized")
	}
	if err := b.declareExchange(b.pubCh, topic); err != nil {
		return err
	}

	return b.pubCh.PublishWithContext(
		ctx,
		exchangeName(topic),
		routingKey,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Body:         body,
		},
	)
}

// shardQueueName is the per-(topic, consumer group, shard) queue name.
func shardQueueName(topic event.Topic, consumerGroup string, shard int) string {
	return fmt.Sprintf("%s.%s.%d", topic, consumerGroup, shard)
}
