package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const Exchange = "order.events"

// Client wraps an AMQP connection with publisher confirms enabled, so a
// publish only returns once the broker has acked it.
type Client struct {
	conn *amqp.Connection
	ch   *amqp.Channel

	acks <-chan amqp.Confirmation
	mu   sync.Mutex // serializes Publish while confirms are in flight
}

func Dial(url string) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	acks := ch.NotifyPublish(make(chan amqp.Confirmation, 1))

	return &Client{conn: conn, ch: ch, acks: acks}, nil
}

func (c *Client) Close() {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func (c *Client) publish(ctx context.Context, key string, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ch.PublishWithContext(
		ctx,
		Exchange,
		key,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Timestamp:    time.Now(),
			Body:         body,
		},
	); err != nil {
		return err
	}

	select {
	case conf := <-c.acks:
		if conf.Ack {
			return nil
		}
		return errors.New("publish NACK from broker")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AMQPEmitter publishes engine events to the order.events topic exchange.
type AMQPEmitter struct {
	client *Client
}

func NewAMQPEmitter(client *Client) *AMQPEmitter {
	return &AMQPEmitter{client: client}
}

func (e *AMQPEmitter) StatusChanged(ctx context.Context, ev StatusChanged) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return e.client.publish(ctx, StatusRoutingKey(ev.ToStatus), body)
}

func (e *AMQPEmitter) CancellationCompleted(ctx context.Context, ev CancellationCompleted) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return e.client.publish(ctx, "order.cancellation.completed", body)
}

func StatusRoutingKey(toStatus string) string {
	return "order.status." + toStatus
}
