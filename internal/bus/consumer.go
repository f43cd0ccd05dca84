package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"paymentsaga/internal/dlq"
	"paymentsaga/internal/event"
	"paymentsaga/internal/retrypolicy"
)

// Handler processes one decoded envelope. Returning nil acknowledges
// the delivery; returning an error drives the retry/DLQ machinery.
type Handler func(ctx context.Context, env event.Envelope) error

// DLQWriter persists a dead-letter record. The default implementation
// publishes it back onto the bus's own dead-letter topic.
type DLQWriter interface {
	Write(ctx context.Context, rec dlq.Record) error
}

// busDLQWriter publishes dead-letter records as raw JSON on
// event.TopicDeadLetter, keyed by the original routing key.
type busDLQWriter struct{ b *Bus }

func (w busDLQWriter) Write(ctx context.Context, rec dlq.Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal dead-letter record: %w", err)
	}
	return w.b.PublishRaw(ctx, event.TopicDeadLetter, rec.Key, body)
}

// DefaultDLQWriter returns a DLQWriter backed by this Bus.
func (b *Bus) DefaultDLQWriter() DLQWriter {
	return busDLQWriter{b: b}
}

// Subscribe starts `shards` consumer goroutines bound to the same
// consistent-hash exchange for topic, one queue per shard. Every
// sagaId hashes to exactly one shard, so a single goroutine processes
// all of a saga's events on this topic strictly in emission order;
// different sagas run in parallel across shards.
//
// On handler error the delivery is retried in place (policy), holding
// the shard's worker rather than forcing bus redelivery, so ordering
// within the shard is never disturbed by a requeue landing out of
// turn. On retry exhaustion the delivery is written to the dead-letter
// topic and acknowledged so the shard advances past the poison
// message.
func (b *Bus) Subscribe(ctx context.Context, topic event.Topic, consumerGroup string, shards int, policy retrypolicy.Policy, dlqWriter DLQWriter, handler Handler) error {
	if shards <= 0 {
		shards = 1
	}

	for i := 0; i < shards; i++ {
		ch, err := b.conn.Channel()
		if err != nil {
			return fmt.Errorf("open consumer channel: %w", err)
		}
		if err := b.declareExchange(ch, topic); err != nil {
			return err
		}

		queueName := shardQueueName(topic, consumerGroup, i)
		if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", queueName, err)
		}
		if err := ch.QueueBind(queueName, consistentHashWeight, exchangeName(topic), false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", queueName, err)
		}
		if err := ch.Qos(1, 0, false); err != nil {
			return fmt.Errorf("set qos on %s: %w", queueName, err)
		}

		msgs, err := ch.Consume(queueName, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("consume %s: %w", queueName, err)
		}

		go b.runShard(ctx, ch, topic, queueName, msgs, policy, dlqWriter, handler)
	}

	return nil
}

func (b *Bus) runShard(ctx context.Context, ch *amqp091.Channel, topic event.Topic, queueName string, msgs <-chan amqp091.Delivery, policy retrypolicy.Policy, dlqWriter DLQWriter, handler Handler) {
	log := b.log.With().Str("topic", string(topic)).Str("queue", queueName).Logger()
	log.Info().Msg("shard worker started")

	for {
		select {
		case <-ctx.Done():
			ch.Close()
			log.Info().Msg("shard worker draining and stopping")
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			b.handleDelivery(ctx, topic, queueName, msg, policy, dlqWriter, handler, log)
		}
	}
}

func (b *Bus) handleDelivery(ctx context.Context, topic event.Topic, queueName string, msg amqp091.Delivery, policy retrypolicy.Policy, dlqWriter DLQWriter, handler Handler, log zerolog.Logger) {
	env, err := event.Decode(msg.Body)
	if err != nil {
		log.Error().Err(err).Msg("malformed envelope, routing to dead-letter")
		b.deadLetter(ctx, topic, queueName, msg, fmt.Errorf("decode envelope: %w", err), dlqWriter, log)
		_ = msg.Ack(false)
		return
	}

	handlerErr := retrypolicy.Do(ctx, b.log, policy, func() error {
		return handler(ctx, env)
	})

	if handlerErr != nil {
		log.Error().Err(handlerErr).Str("eventId", env.EventID).Str("sagaId", env.SagaID).
			Msg("handler exhausted retries, routing to dead-letter")
		b.deadLetter(ctx, topic, queueName, msg, handlerErr, dlqWriter, log)
	}

	// Ack unconditionally: on success the handler already committed the
	// local state change; on exhaustion the poison message has already
	// been dead-lettered. Either way the shard must advance.
	_ = msg.Ack(false)
}

func (b *Bus) deadLetter(ctx context.Context, topic event.Topic, queueName string, msg amqp091.Delivery, cause error, dlqWriter DLQWriter, log zerolog.Logger) {
	rec := dlq.Record{
		OriginalTopic: string(topic),
		Partition:     queueName,
		Offset:        msg.DeliveryTag,
		Key:           msg.RoutingKey,
		Value:         msg.Body,
		Exception:     cause.Error(),
		Stack:         fmt.Sprintf("%+v", cause),
		Timestamp:     time.Now().UTC(),
	}

	if err := dlqWriter.Write(ctx, rec); err != nil {
		// The partition must never be blocked by a broken DLQ.
		log.Error().Err(err).Msg("failed to write dead-letter record, message dropped after logging")
	}
}
