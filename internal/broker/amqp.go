// Package broker forwards domain events to a RabbitMQ topic exchange so
// services outside the API process (printers, notification workers) can
// consume them.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/kiwari-pos/floorops/internal/events"
)

const publishTimeout = 5 * time.Second

// channel is the subset of *amqp.Channel used by Publisher.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher publishes events to a durable topic exchange with routing key
// "<tenant_id>.<event_type>".
type Publisher struct {
	conn     *amqp.Connection
	ch       channel
	exchange string
	log      logrus.FieldLogger

	// amqp channels are not safe for concurrent publishes
	mu sync.Mutex
}

// Dial connects to url and declares the exchange.
func Dial(url, exchange string, log logrus.FieldLogger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %q: %w", exchange, err)
	}

	log.WithField("exchange", exchange).Info("connected to rabbitmq")
	p := newPublisher(ch, exchange, log)
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, exchange string, log logrus.FieldLogger) *Publisher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Publisher{ch: ch, exchange: exchange, log: log}
}

// RoutingKey returns the topic key for evt. Consumers bind with patterns like
// "*.order_paid" or "<tenant_id>.#".
func RoutingKey(evt events.Event) string {
	return evt.TenantID.String() + "." + evt.Type
}

func (p *Publisher) Publish(ctx context.Context, evt events.Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx,
		p.exchange,      // exchange
		RoutingKey(evt), // routing key
		false,           // mandatory
		false,           // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Type:         evt.Type,
			Timestamp:    evt.OccurredAt,
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("publish %s: %w", evt.Type, err)
	}

	p.log.WithFields(logrus.Fields{
		"routing_key": RoutingKey(evt),
	}).Debug("event published")
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var err error
	if p.ch != nil {
		err = p.ch.Close()
	}
	if p.conn != nil {
		if cerr := p.conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
