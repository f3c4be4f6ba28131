// Package events publishes inventory and auction changes to a message broker.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Topic names a change stream.
type Topic string

const (
	ItemCreated Topic = "item.created"
	ItemUpdated Topic = "item.updated"
	ItemDeleted Topic = "item.deleted"
	BidPlaced   Topic = "bid.placed"
)

// Topics lists every topic published by the server.
var Topics = []Topic{ItemCreated, ItemUpdated, ItemDeleted, BidPlaced}

// Event is the envelope written to the broker.
type Event struct {
	Topic    Topic     `json:"topic"`
	Actor    string    `json:"actor,omitempty"`
	Occurred time.Time `json:"occurred"`
	Data     any       `json:"data"`
}

// Publisher sends change events. Publish must not block request handling
// on broker outages for longer than the caller's context allows.
type Publisher interface {
	Publish(ctx context.Context, topic Topic, actor string, data any) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Topic, string, any) error { return nil }
func (Nop) Close() error                                      { return nil }

// AMQPPublisher publishes JSON events to a durable topic exchange.
type AMQPPublisher struct {
	conn     *amqp.Connection
	exchange string

	mu sync.Mutex
	ch *amqp.Channel
}

// DialAMQP connects to the broker and declares the exchange plus one
// durable queue per topic bound to it.
func DialAMQP(url, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening channel: %w", err)
	}

	if err := declare(ch, exchange); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &AMQPPublisher{conn: conn, exchange: exchange, ch: ch}, nil
}

func declare(ch *amqp.Channel, exchange string) error {
	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // noWait
		nil,
	); err != nil {
		return fmt.Errorf("declaring exchange %s: %w", exchange, err)
	}
	for _, topic := range Topics {
		name := queueName(exchange, topic)
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declaring queue %s: %w", name, err)
		}
		if err := ch.QueueBind(name, string(topic), exchange, false, nil); err != nil {
			return fmt.Errorf("binding queue %s: %w", name, err)
		}
	}
	return nil
}

func queueName(exchange string, topic Topic) string {
	return fmt.Sprintf("%s_%s", exchange, topic)
}

func (p *AMQPPublisher) Publish(ctx context.Context, topic Topic, actor string, data any) error {
	body, err := Marshal(topic, actor, data, time.Now())
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil || p.ch.IsClosed() {
		ch, err := p.conn.Channel()
		if err != nil {
			return fmt.Errorf("reopening channel: %w", err)
		}
		p.ch = ch
	}

	err = p.ch.PublishWithContext(ctx, p.exchange, string(topic), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publishing %s: %w", topic, err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		p.ch.Close()
	}
	return p.conn.Close()
}

// Marshal encodes the event envelope.
func Marshal(topic Topic, actor string, data any, now time.Time) ([]byte, error) {
	body, err := json.Marshal(Event{Topic: topic, Actor: actor, Occurred: now.UTC(), Data: data})
	if err != nil {
		return nil, fmt.Errorf("encoding %s event: %w", topic, err)
	}
	return body, nil
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	Events []Event
}

func (r *Recorder) Publish(_ context.Context, topic Topic, actor string, data any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, Event{Topic: topic, Actor: actor, Occurred: time.Now(), Data: data})
	return nil
}

func (r *Recorder) Close() error { return nil }

// Topics returns the recorded topics in order.
func (r *Recorder) Topics() []Topic {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Topic, len(r.Events))
	for i, e := range r.Events {
		out[i] = e.Topic
	}
	return out
}
