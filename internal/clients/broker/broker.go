package broker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shiftfill/outreach/internal/config"
	log "github.com/sirupsen/logrus"
)

const publishTimeout = 5 * time.Second

// channel is the part of *amqp.Channel the broker uses.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type Broker struct {
	conn    *amqp.Connection
	channel channel
	cfg     config.BrokerConfig
}

func Dial(cfg config.BrokerConfig) (*Broker, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to RabbitMQ")
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "failed to open channel")
	}

	b, err := newBroker(ch, cfg)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	b.conn = conn
	return b, nil
}

func newBroker(ch channel, cfg config.BrokerConfig) (*Broker, error) {
	queues := []string{cfg.OpeningsQueue, cfg.InboundQueue, cfg.AssignmentsQueue, cfg.EscalationsQueue}
	for _, queue := range queues {
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return nil, errors.Wrapf(err, "failed to declare queue %s", queue)
		}
	}

	if cfg.Prefetch > 0 {
		if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
			return nil, errors.Wrap(err, "failed to set prefetch")
		}
	}

	log.Infof("connected to RabbitMQ, queues declared: %v", queues)
	return &Broker{channel: ch, cfg: cfg}, nil
}

func (b *Broker) publish(ctx context.Context, queue, messageType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return b.channel.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         messageType,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}

func (b *Broker) Close() error {
	err := b.channel.Close()
	if b.conn != nil {
		if connErr := b.conn.Close(); connErr != nil && err == nil {
			err = connErr
		}
	}
	return err
}
