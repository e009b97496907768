package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/gamenight/scheduler/internal/telemetry"
)

// Publisher publishes envelopes to the topic exchange. Implementations
// MUST wait for a broker confirm before returning success — callers
// (the schedule daemons, the API service) rely on that to know it is
// safe to delete the schedule row / commit the mutation (spec §4.1,
// §4.3 step 3).
type Publisher interface {
	// Publish sends env with routing key env.EventType and an optional
	// TTL. ttl == NoExpiration means never expire — used for
	// GAME_STARTED/COMPLETED, which must always eventually be
	// delivered (spec §4.3). Any ttl >= 0, including zero, sets a real
	// broker-side expiration — a reminder for a game that already
	// started carries ttl == 0 and must expire immediately, not live
	// forever.
	Publish(ctx context.Context, env Envelope, ttl time.Duration) error
	Close() error
}

// Consumer delivers envelopes one at a time with manual ack (spec §4.5,
// DESIGN NOTES §9 "async generators -> explicit loop with explicit
// ack/nack").
type Consumer interface {
	// Consume calls handle for every delivered message until ctx is
	// cancelled. handle returning nil acks; a non-nil error nacks
	// without requeue, which the dead-letter-exchange binding routes to
	// the queue's dedicated DLQ (spec §4.1, §4.5 "Handler failure
	// policy").
	Consume(ctx context.Context, queue string, handle func(Envelope) error) error
	Close() error
}

// AMQPClient is the concrete amqp091-go-backed Publisher+Consumer. One
// instance is shared by a component for all its publishing; a dedicated
// channel is opened per Consume call, matching the teacher's one
// connection/channel-per-concern shape (internal/database.DB wraps one
// *sql.DB per component the same way).
type AMQPClient struct {
	conn *amqp.Connection
}

// Dial opens a connection and enables publisher confirms on the
// channels it creates for publishing (spec §4.1 "Publisher confirms are
// enabled").
func Dial(url string) (*AMQPClient, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	return &AMQPClient{conn: conn}, nil
}

func (c *AMQPClient) Close() error {
	return c.conn.Close()
}

// DeclareTopology declares the exchange, DLX, and every queue in specs,
// wiring each primary queue's x-dead-letter-exchange/routing-key so a
// NACKed or rejected message lands in exactly that queue's own DLQ
// (spec §4.1). Run once by the Init Service (C9) before any other
// component connects.
func (c *AMQPClient) DeclareTopology(specs []QueueSpec) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(ExchangeEvents, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", ExchangeEvents, err)
	}
	if err := ch.ExchangeDeclare(ExchangeDLX, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", ExchangeDLX, err)
	}

	for _, spec := range specs {
		dlqRoutingKey := spec.DLQName

		if _, err := ch.QueueDeclare(spec.DLQName, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare dlq %s: %w", spec.DLQName, err)
		}
		if err := ch.QueueBind(spec.DLQName, dlqRoutingKey, ExchangeDLX, false, nil); err != nil {
			return fmt.Errorf("bind dlq %s: %w", spec.DLQName, err)
		}

		primaryArgs := amqp.Table{
			"x-dead-letter-exchange":    ExchangeDLX,
			"x-dead-letter-routing-key": dlqRoutingKey,
		}
		if _, err := ch.QueueDeclare(spec.Name, true, false, false, false, primaryArgs); err != nil {
			return fmt.Errorf("declare queue %s: %w", spec.Name, err)
		}
		for _, pattern := range spec.BindingPatterns {
			if err := ch.QueueBind(spec.Name, pattern, ExchangeEvents, false, nil); err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", spec.Name, pattern, err)
			}
		}
	}
	return nil
}

// Publish implements Publisher. It opens a confirm-mode channel,
// publishes with the routing key taken from env.EventType, and blocks
// for the broker's ack before returning — callers treat that ack as the
// durability boundary (spec §4.1, §4.3 step 3).
func (c *AMQPClient) Publish(ctx context.Context, env Envelope, ttl time.Duration) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("open publish channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("enable publisher confirms: %w", err)
	}
	confirms := ch.NotifyPublish(make(chan amqp.Confirmation, 1))

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		MessageId:    env.EventID.String(),
		Timestamp:    env.Timestamp,
		DeliveryMode: amqp.Persistent,
	}
	if ttl >= 0 {
		msg.Expiration = fmt.Sprintf("%d", ttl.Milliseconds())
	}

	if err := ch.PublishWithContext(ctx, ExchangeEvents, string(env.EventType), false, false, msg); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	select {
	case confirm := <-confirms:
		if !confirm.Ack {
			return fmt.Errorf("broker nacked publish of event %s", env.EventID)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(10 * time.Second):
		return fmt.Errorf("timed out waiting for publish confirm of event %s", env.EventID)
	}
}

// Consume implements Consumer with manual ack (spec §4.5): every
// delivery is either acked on handle-success or nacked without requeue
// on handle-failure, which the queue's dead-letter binding routes to
// its DLQ. `message.process()`-style auto-ack is deliberately not
// offered here.
func (c *AMQPClient) Consume(ctx context.Context, queue string, handle func(Envelope) error) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("open consume channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Qos(10, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.ConsumeWithContext(ctx, queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queue, err)
	}

	logger := telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{"queue": queue})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel for %s closed", queue)
			}
			var env Envelope
			if err := json.Unmarshal(d.Body, &env); err != nil {
				logger.WithError(err).Error("failed to decode envelope, dropping to dlq")
				_ = d.Nack(false, false)
				continue
			}
			if err := handle(env); err != nil {
				logger.WithError(err).WithField("event_id", env.EventID).Warn("handler failed, nacking to dlq")
				_ = d.Nack(false, false)
				continue
			}
			if err := d.Ack(false); err != nil {
				logger.WithError(err).WithField("event_id", env.EventID).Error("failed to ack delivery")
			}
		}
	}
}
