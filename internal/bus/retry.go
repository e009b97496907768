package bus

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/gamenight/scheduler/internal/telemetry"
)

// DrainDLQOnce implements one pass of the retry daemon's tick (C6, spec
// §4.4): consume everything currently sitting in dlqName one message at
// a time, republish each to the exchange/routing-key it originally died
// from (recovered from the broker's x-death header), and ack only after
// the republish's own confirm succeeds. A republish failure nacks with
// requeue so the message waits in the DLQ for the next tick rather than
// being lost.
//
// This is the DLQ's *only* consumer (spec §4.4 "sole owner") — the
// schedule daemons never call this.
func (c *AMQPClient) DrainDLQOnce(ctx context.Context, dlqName string) (int, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return 0, fmt.Errorf("open dlq channel: %w", err)
	}
	defer ch.Close()

	// Messages that cannot be republished stay unacked until the pass
	// ends, so Get does not hand them straight back; they are then
	// requeued and wait in the DLQ for the next tick.
	var held []amqp.Delivery
	defer func() {
		for _, m := range held {
			_ = m.Nack(false, true)
		}
	}()

	logger := telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{"dlq": dlqName})

	republished := 0
	for {
		msg, ok, err := ch.Get(dlqName, false)
		if err != nil {
			return republished, fmt.Errorf("get from dlq %s: %w", dlqName, err)
		}
		if !ok {
			return republished, nil
		}

		exchange, routingKey, derr := originalDestination(msg)
		if derr != nil {
			logger.WithError(derr).Error("dlq message missing x-death header, cannot determine original destination")
			held = append(held, msg)
			continue
		}

		if err := c.republish(ctx, exchange, routingKey, msg); err != nil {
			logger.WithError(err).WithField("exchange", exchange).Warn("republish failed, leaving in dlq for next tick")
			held = append(held, msg)
			continue
		}
		if err := msg.Ack(false); err != nil {
			logger.WithError(err).Error("failed to ack drained dlq message")
		}
		republished++
	}
}

// originalDestination recovers the exchange and routing key a
// dead-lettered message was originally published to from AMQP's
// standard x-death header array (one entry is appended per dead-letter
// hop; the most recent is first).
func originalDestination(msg amqp.Delivery) (exchange, routingKey string, err error) {
	xdeath, ok := msg.Headers["x-death"].([]interface{})
	if !ok || len(xdeath) == 0 {
		return "", "", fmt.Errorf("no x-death header present")
	}
	entry, ok := xdeath[0].(amqp.Table)
	if !ok {
		return "", "", fmt.Errorf("unexpected x-death entry shape")
	}
	exchange, _ = entry["exchange"].(string)
	if keys, ok := entry["routing-keys"].([]interface{}); ok && len(keys) > 0 {
		routingKey, _ = keys[0].(string)
	}
	if exchange == "" || routingKey == "" {
		return "", "", fmt.Errorf("x-death entry missing exchange/routing-keys")
	}
	return exchange, routingKey, nil
}

func (c *AMQPClient) republish(ctx context.Context, exchange, routingKey string, msg amqp.Delivery) error {
	pubCh, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("open republish channel: %w", err)
	}
	defer pubCh.Close()

	if err := pubCh.Confirm(false); err != nil {
		return fmt.Errorf("enable confirms: %w", err)
	}
	confirms := pubCh.NotifyPublish(make(chan amqp.Confirmation, 1))

	pub := amqp.Publishing{
		ContentType:  msg.ContentType,
		Body:         msg.Body,
		MessageId:    msg.MessageId,
		Timestamp:    msg.Timestamp,
		DeliveryMode: amqp.Persistent,
		Expiration:   msg.Expiration,
	}
	if err := pubCh.PublishWithContext(ctx, exchange, routingKey, false, false, pub); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	select {
	case confirm := <-confirms:
		if !confirm.Ack {
			return fmt.Errorf("broker nacked republish")
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(10 * time.Second):
		return fmt.Errorf("timed out waiting for republish confirm")
	}
}
